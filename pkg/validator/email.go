package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyEmail indicates the email address is empty
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrInvalidFormat indicates the email address is malformed
	ErrInvalidFormat = errors.New("email address is not valid")

	// ErrWrongDomain indicates the email is not a company address
	ErrWrongDomain = errors.New("email must be a company address")
)

// emailRegex is a deliberately simple shape check; the OTP round trip
// is what actually proves the address works
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailValidator validates that signup emails belong to the company domain
type EmailValidator struct {
	allowedDomain string
}

// NewEmailValidator creates a new email validator for the given domain
func NewEmailValidator(allowedDomain string) *EmailValidator {
	return &EmailValidator{
		allowedDomain: strings.ToLower(strings.TrimSpace(allowedDomain)),
	}
}

// Validate validates an email address against the company domain.
// Returns the sanitized (trimmed, lowercased) address and error if invalid.
func (v *EmailValidator) Validate(email string) (string, error) {
	if email == "" {
		return "", ErrEmptyEmail
	}

	sanitized := strings.ToLower(strings.TrimSpace(email))

	if !emailRegex.MatchString(sanitized) {
		return "", ErrInvalidFormat
	}

	at := strings.LastIndex(sanitized, "@")
	domain := sanitized[at+1:]
	if domain != v.allowedDomain {
		return "", fmt.Errorf("%w: expected @%s", ErrWrongDomain, v.allowedDomain)
	}

	return sanitized, nil
}
