package testutil

// Ptr returns a pointer to a copy of v
func Ptr[T any](v T) *T {
	return &v
}

// String returns a pointer to s, for optional request fields
func String(s string) *string {
	return Ptr(s)
}

// Bool returns a pointer to b
func Bool(b bool) *bool {
	return Ptr(b)
}
