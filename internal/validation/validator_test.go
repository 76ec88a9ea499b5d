package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{name: "Letters And Digits", password: "analytical1843", want: true},
		{name: "Too Short", password: "abc123", want: false},
		{name: "Exactly Min", password: "abcdef12", want: true},
		{name: "Only Letters", password: "onlyletters", want: false},
		{name: "Only Digits", password: "1234567890", want: false},
		{name: "Too Long", password: string(make([]byte, 73)), want: false},
		{name: "Unicode Letters", password: "пароль2024", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsValidPassword(tt.password))
		})
	}
}

func TestField(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		value   string
		wantErr string
	}{
		{name: "Valid Password", tag: "required,password", value: "correct1horse"},
		{name: "Empty Required", tag: "required,password", value: "", wantErr: "This field is required"},
		{name: "Weak Password", tag: "required,password", value: "password", wantErr: "Password must be 8 to 72 characters and contain letters and numbers"},
		{name: "Slug", tag: "slug", value: "hello-world-2"},
		{name: "Bad Slug", tag: "slug", value: "Hello--World", wantErr: "Only lowercase letters, numbers and single hyphens are allowed"},
		{name: "Role", tag: "role", value: "ADMIN"},
		{name: "Unknown Role", tag: "role", value: "ROOT", wantErr: "Unknown role"},
		{name: "Blank", tag: "nospaces", value: "   ", wantErr: "Must not be blank"},
		{name: "Max", tag: "max=3", value: "abcd", wantErr: "Must be at most 3 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Field(tt.tag)(tt.value)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestRegister(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	type form struct {
		Name     string `validate:"nospaces"`
		Password string `validate:"password"`
	}
	require.NoError(t, v.Struct(form{Name: "Ada", Password: "analytical1843"}))
	require.Error(t, v.Struct(form{Name: " ", Password: "analytical1843"}))
}
