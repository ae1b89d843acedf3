package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
)

// OpaqueTokenBytes is the amount of random data behind every opaque token (256 bits).
const OpaqueTokenBytes = 32

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenGenerator creates opaque verification and reset tokens.
type TokenGenerator struct {
	byteLength int
}

// NewTokenGenerator creates a generator backed by crypto/rand.
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{byteLength: OpaqueTokenBytes}
}

// Generate returns a fresh opaque token. Uniqueness against stored tokens is
// not checked here.
func (g *TokenGenerator) Generate() (string, error) {
	return GenerateSecureToken(g.byteLength)
}

var _ port.OpaqueTokenGenerator = (*TokenGenerator)(nil)
