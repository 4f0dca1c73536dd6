package validation

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmailRequired is returned when an email is blank
	ErrEmailRequired = errors.New("email is required")

	// ErrEmailTooLong is returned when an email exceeds 320 characters
	ErrEmailTooLong = errors.New("email is too long")

	// ErrInvalidEmail is returned when an email is not a bare RFC 5322 address
	ErrInvalidEmail = errors.New("invalid email address")

	ErrCompanyNameRequired = errors.New("company name is required")
	ErrCompanyNameTooLong  = errors.New("company name must be at most 255 characters")

	ErrFullNameTooLong = errors.New("full name must be at most 255 characters")

	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
)

const (
	maxEmailLength       = 320
	maxCompanyNameLength = 255
	maxFullNameLength    = 255
	minPasswordLength    = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

// NormalizeEmail trims and lower-cases an email and checks it is a bare
// address (no display name, no angle brackets).
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	if len(email) > maxEmailLength {
		return "", ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

// NormalizeCompanyName trims whitespace and enforces 1..255 characters.
func NormalizeCompanyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrCompanyNameRequired
	}
	if utf8.RuneCountInString(name) > maxCompanyNameLength {
		return "", ErrCompanyNameTooLong
	}
	return name, nil
}

// NormalizeFullName trims a person's name. Blank names become nil.
func NormalizeFullName(name string) (*string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(name) > maxFullNameLength {
		return nil, ErrFullNameTooLong
	}
	return &name, nil
}

// ValidatePassword checks length bounds for a plaintext password.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// IsValidationError reports whether err came from this package.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrEmailRequired, ErrEmailTooLong, ErrInvalidEmail,
		ErrCompanyNameRequired, ErrCompanyNameTooLong,
		ErrFullNameTooLong, ErrPasswordTooShort, ErrPasswordTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
