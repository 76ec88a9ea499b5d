// Package validation provides custom validators for the application
package validation

import (
	"errors"
	"fmt"
	"inkwell/internal/models"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	// PasswordMinLength is the shortest accepted password in bytes
	PasswordMinLength = 8
	// PasswordMaxLength is bcrypt's input limit
	PasswordMaxLength = 72
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

var rules = map[string]validator.Func{
	"nospaces": validateNoSpaces,
	"password": validatePassword,
	"slug":     validateSlug,
	"role":     validateRole,
}

var (
	standalone     *validator.Validate
	standaloneOnce sync.Once
)

// Initialize registers all custom validators
func Initialize() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := Register(v); err != nil {
			panic(err)
		}
	}
}

// Register adds the custom rules to v
func Register(v *validator.Validate) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

func engine() *validator.Validate {
	standaloneOnce.Do(func() {
		standalone = validator.New()
		if err := Register(standalone); err != nil {
			panic(err)
		}
	})
	return standalone
}

// Field adapts a validation tag such as "required,password" to a single
// string check, for validating one form field outside request binding.
func Field(tag string) func(string) error {
	return func(value string) error {
		err := engine().Var(value, tag)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(Message(verrs[0].Tag(), verrs[0].Param()))
		}
		return err
	}
}

// Message returns the user-facing text for a failed rule
func Message(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required"
	case "password":
		return fmt.Sprintf("Password must be %d to %d characters and contain letters and numbers", PasswordMinLength, PasswordMaxLength)
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("Must be at least %s characters", param)
	case "max":
		return fmt.Sprintf("Must be at most %s characters", param)
	case "nospaces":
		return "Must not be blank"
	case "slug":
		return "Only lowercase letters, numbers and single hyphens are allowed"
	case "role":
		return "Unknown role"
	}
	return "Invalid value"
}

// validateNoSpaces checks if a string contains non-space characters
func validateNoSpaces(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return strings.TrimSpace(value) != ""
}

// validatePassword requires 8 to 72 bytes with at least one letter and one digit
func validatePassword(fl validator.FieldLevel) bool {
	return IsValidPassword(fl.Field().String())
}

// IsValidPassword reports whether password satisfies the password rule
func IsValidPassword(password string) bool {
	if len(password) < PasswordMinLength || len(password) > PasswordMaxLength {
		return false
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

func validateRole(fl validator.FieldLevel) bool {
	return models.Role(fl.Field().String()).Valid()
}
