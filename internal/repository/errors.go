package repository

import "errors"

var (
	// Common errors
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")

	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already linked")

	// Token errors
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenUsed     = errors.New("token already used")
	ErrTokenNotFound = errors.New("token not found")

	// Two-factor errors
	ErrChallengeNotFound = errors.New("two-factor challenge not found")

	// Post errors
	ErrPostNotFound = errors.New("post not found")
	ErrSlugExists   = errors.New("slug already exists")

	// Comment errors
	ErrCommentNotFound = errors.New("comment not found")
)
