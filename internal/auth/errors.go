package auth

import (
	"errors"
	"fmt"
)

// ErrorType discriminates authentication failures. Its values are stable
// strings sent to clients as error_type.
type ErrorType string

const (
	ErrorCredentialsSignin     ErrorType = "CredentialsSignin"
	ErrorOAuthAccountNotLinked ErrorType = "OAuthAccountNotLinked"
	ErrorRegistrationDisabled  ErrorType = "RegistrationDisabled"
	ErrorEmailNotVerified      ErrorType = "EmailNotVerified"
	ErrorEmailInUse            ErrorType = "EmailInUse"
	ErrorInvalidCode           ErrorType = "InvalidCode"
	ErrorCodeExpired           ErrorType = "CodeExpired"
	ErrorChallengeActive       ErrorType = "ChallengeActive"
	ErrorTwoFactorDisabled     ErrorType = "TwoFactorDisabled"
	ErrorPasswordCompromised   ErrorType = "PasswordCompromised"
	ErrorInvalidToken          ErrorType = "InvalidToken"
	ErrorTokenExpired          ErrorType = "TokenExpired"
	ErrorRateLimited           ErrorType = "RateLimited"
	ErrorUnknown               ErrorType = "Unknown"
)

// GenericMessage is shown for every failure that has no specific message
const GenericMessage = "Something went wrong!"

var messages = map[ErrorType]string{
	ErrorCredentialsSignin:     "Invalid credentials!",
	ErrorOAuthAccountNotLinked: "Email already in use with a different provider!",
	ErrorRegistrationDisabled:  "Registration is currently disabled.",
	ErrorEmailNotVerified:      "Please confirm your email address first.",
	ErrorEmailInUse:            "Email already in use!",
	ErrorInvalidCode:           "Invalid code!",
	ErrorCodeExpired:           "Code expired!",
	ErrorChallengeActive:       "A code was already sent. Please wait before requesting a new one.",
	ErrorTwoFactorDisabled:     "Two-factor authentication is not enabled for this account.",
	ErrorPasswordCompromised:   "This password has appeared in a data breach. Please choose a different password.",
	ErrorInvalidToken:          "Token is invalid!",
	ErrorTokenExpired:          "Token has expired!",
	ErrorRateLimited:           "Too many attempts. Please try again later.",
	ErrorUnknown:               GenericMessage,
}

// Message returns the user-facing text for t
func (t ErrorType) Message() string {
	if m, ok := messages[t]; ok {
		return m
	}
	return GenericMessage
}

// Error is a typed authentication failure
type Error struct {
	Type ErrorType
	// WaitTime is the number of seconds before a retry can succeed, for
	// RateLimited and ChallengeActive
	WaitTime int
	Err      error
}

// NewError creates an error of type t
func NewError(t ErrorType) *Error {
	return &Error{Type: t}
}

// RateLimitedError reports a rejected request that may be retried after wait seconds
func RateLimitedError(wait int) *Error {
	return &Error{Type: ErrorRateLimited, WaitTime: wait}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return string(e.Type)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text of e
func (e *Error) Message() string {
	return e.Type.Message()
}

// TypeOf returns the discriminant of err, or ErrorUnknown when err is not an *Error
func TypeOf(err error) ErrorType {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Type
	}
	return ErrorUnknown
}
