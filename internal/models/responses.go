package models

// LoginResponse is the body of every 200 answer from the login endpoint.
// Either the tokens are set, or TwoFactor is true with ExpiresAt in epoch milliseconds.
type LoginResponse struct {
	Success      bool   `json:"success,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TwoFactor    bool   `json:"two_factor,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error           string `json:"error"`
	ErrorType       string `json:"error_type,omitempty"`
	WaitTimeSeconds int    `json:"wait_time_seconds,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ListResponse wraps a page of items with its total count
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
