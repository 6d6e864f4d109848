package auth

import (
	"regexp"
	"strings"

	"github.com/platinummonkey/taskapi/pkg/apierrors"
)

const (
	MinNameLength     = 2
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest input bcrypt will hash
	MaxPasswordBytes = 72
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Registration is the input to account creation
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims the name and canonicalizes the email
func (r *Registration) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

// Validate checks name, email and password in that order and returns the
// first violated rule as a validation error
func (r *Registration) Validate() error {
	switch {
	case r.Name == "":
		return apierrors.Validation(`"name" is required`)
	case len([]rune(r.Name)) < MinNameLength:
		return apierrors.Validation(`"name" length must be at least 2 characters long`)
	case r.Email == "":
		return apierrors.Validation(`"email" is required`)
	case !ValidEmail(r.Email):
		return apierrors.Validation(`"email" must be a valid email`)
	}
	return ValidatePassword(r.Password)
}

// ValidatePassword enforces length and character-class rules
func ValidatePassword(password string) error {
	if password == "" {
		return apierrors.Validation(`"password" is required`)
	}
	if len([]rune(password)) < MinPasswordLength {
		return apierrors.Validation(`"password" length must be at least 8 characters long`)
	}
	if len(password) > MaxPasswordBytes {
		return apierrors.Validation(`"password" length must be less than or equal to 72 bytes`)
	}

	var hasLower, hasUpper, hasDigit bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit {
		return apierrors.Validation(`"password" must contain at least one lowercase letter, one uppercase letter and one digit`)
	}
	return nil
}

// ValidEmail reports whether email has a plausible address format
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// NormalizeEmail trims and lowercases an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
