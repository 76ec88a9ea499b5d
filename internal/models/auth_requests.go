package models

// TokenRefreshRequest represents a token refresh request
type TokenRefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// LoginRequest represents a login request. Code is the emailed two-factor code, when one was requested.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"ada@example.com"`
	Password string `json:"password" binding:"required" example:"analytical1843"`
	Code     string `json:"code,omitempty" binding:"omitempty,numeric,len=6" example:"123456"`
}

// ResendTwoFactorRequest asks for a fresh two-factor code
type ResendTwoFactorRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// PasswordResetRequest represents a password reset request
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// EmailVerificationRequest represents an email verification request
type EmailVerificationRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

// ResendVerificationRequest represents a request to resend verification email
type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}
