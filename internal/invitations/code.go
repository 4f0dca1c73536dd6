package invitations

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const (
	// CodeBytes of randomness back every code (120 bits).
	CodeBytes = 15
	// CodeLength is the encoded length: CodeBytes in base32 without padding.
	CodeLength = 24
)

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateCode returns a new random invitation code of CodeLength characters
// from the RFC 4648 base32 alphabet [A-Z2-7].
func GenerateCode() (string, error) {
	b := make([]byte, CodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return codeEncoding.EncodeToString(b), nil
}

// NormalizeCode trims surrounding whitespace and upper-cases a code as typed
// by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCodeFormat reports whether a normalized code could have been
// produced by GenerateCode.
func ValidateCodeFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	decoded, err := codeEncoding.DecodeString(code)
	if err != nil {
		return false
	}
	return len(decoded) == CodeBytes
}
