package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
)

// SessionTokenTTL is the fixed lifetime of issued session tokens.
const SessionTokenTTL = 24 * time.Hour

var (
	// ErrUnauthenticated is returned for any session token that fails validation.
	// Forged, expired and malformed tokens are deliberately indistinguishable.
	ErrUnauthenticated = errors.New("jwt: unauthenticated")

	// ErrSigningKeyMissing indicates the session signing key was not configured.
	ErrSigningKeyMissing = errors.New("jwt: signing key is required")
)

// SessionTokenConfig is the immutable signing configuration loaded at startup.
type SessionTokenConfig struct {
	SigningKey []byte
	Issuer     string
	Audience   string
}

// Validate ensures every required setting is present.
func (c SessionTokenConfig) Validate() error {
	if len(c.SigningKey) == 0 {
		return ErrSigningKeyMissing
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("jwt: issuer is required")
	}
	if strings.TrimSpace(c.Audience) == "" {
		return fmt.Errorf("jwt: audience is required")
	}
	return nil
}

// SessionClaims carries identity claims on top of the registered JWT claims.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// SessionTokenManager signs and validates HS256 session tokens.
type SessionTokenManager struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewSessionTokenManager constructs a manager from validated configuration.
func NewSessionTokenManager(cfg SessionTokenConfig) (*SessionTokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	m := &SessionTokenManager{
		key:      key,
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		ttl:      SessionTokenTTL,
		now:      time.Now,
	}
	m.parser = m.newParser()
	return m, nil
}

// WithClock overrides the time source (primarily for tests).
func (m *SessionTokenManager) WithClock(now func() time.Time) *SessionTokenManager {
	if now != nil {
		m.now = now
		m.parser = m.newParser()
	}
	return m
}

func (m *SessionTokenManager) newParser() *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
}

// Issue mints a token for the account that expires exactly SessionTokenTTL from now.
func (m *SessionTokenManager) Issue(accountID, email string) (port.SessionToken, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return port.SessionToken{}, fmt.Errorf("jwt: account id is required")
	}

	now := m.now().UTC()
	expiresAt := ceilToSecond(now.Add(m.ttl))

	claims := &SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return port.SessionToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return port.SessionToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// ceilToSecond rounds t up to the NumericDate precision so exp never falls
// before the full TTL and the reported expiry equals the signed claim.
func ceilToSecond(t time.Time) time.Time {
	whole := t.Truncate(time.Second)
	if whole.Equal(t) {
		return t
	}
	return whole.Add(time.Second)
}

// Validate checks signature, issuer, audience and expiry and returns the
// identity carried by the token. Every failure is ErrUnauthenticated.
func (m *SessionTokenManager) Validate(token string) (port.SessionIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return port.SessionIdentity{}, ErrUnauthenticated
	}

	claims := &SessionClaims{}
	parsed, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil {
		return port.SessionIdentity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !parsed.Valid {
		return port.SessionIdentity{}, ErrUnauthenticated
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return port.SessionIdentity{}, ErrUnauthenticated
	}

	return port.SessionIdentity{AccountID: claims.Subject, Email: claims.Email}, nil
}

var _ port.SessionTokenIssuer = (*SessionTokenManager)(nil)
