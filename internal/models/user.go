package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of a user
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role may moderate and administer
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User represents a user in the system
type User struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	EmailVerifiedAt    *time.Time `json:"email_verified_at"`
	Password           *string    `json:"-"` // nil for OAuth-only accounts
	Image              *string    `json:"image,omitempty"`
	Role               Role       `json:"role"`
	IsTwoFactorEnabled bool       `json:"is_two_factor_enabled"`
	LastLoginAt        *time.Time `json:"last_login_at"`
	DeletedAt          *time.Time `json:"deleted_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsAdmin returns true if the user has an admin role
func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

// IsEmailVerified reports whether the email address has been confirmed
func (u *User) IsEmailVerified() bool {
	return u.EmailVerifiedAt != nil
}

// HasPassword reports whether the user can sign in with credentials
func (u *User) HasPassword() bool {
	return u.Password != nil && *u.Password != ""
}

// RegisterRequest represents the request to create a new account
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=100,nospaces" example:"Ada Lovelace"`
	Email    string `json:"email" binding:"required,email,max=255" example:"ada@example.com"`
	Password string `json:"password" binding:"required,password" example:"analytical1843"`
}

// UpdateSettingsRequest represents a partial update of the caller's own account
type UpdateSettingsRequest struct {
	Name               *string `json:"name,omitempty" binding:"omitempty,min=1,max=100,nospaces"`
	Email              *string `json:"email,omitempty" binding:"omitempty,email,max=255"`
	Password           *string `json:"password,omitempty"`
	NewPassword        *string `json:"new_password,omitempty" binding:"omitempty,password"`
	IsTwoFactorEnabled *bool   `json:"is_two_factor_enabled,omitempty"`
}

// UpdateRoleRequest represents the request to change a user's role
type UpdateRoleRequest struct {
	Role Role `json:"role" binding:"required,role" example:"ADMIN"`
}

// CompleteResetRequest represents the request to complete a password reset
type CompleteResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,password"`
}

// UserSummary is the public projection of a user shown next to content
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Image *string   `json:"image,omitempty"`
}

// Summary returns the public projection of u
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Image: u.Image}
}

// SettingsResponse is the result of a settings update
type SettingsResponse struct {
	User *User `json:"user"`
	// VerificationSent is true when a new email address awaits confirmation
	VerificationSent bool   `json:"verification_sent"`
	Message          string `json:"message"`
}
