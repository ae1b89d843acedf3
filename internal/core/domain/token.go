package domain

import "time"

// TokenKind classifies stored recovery tokens.
type TokenKind string

const (
	// TokenKindReset authorizes a password reset.
	TokenKindReset TokenKind = "reset"
)

// RecoveryToken is a single-use, expiring secret bound to an account.
// Email verification tokens are not RecoveryTokens; they live inline on Account
// and never expire.
type RecoveryToken struct {
	ID        string
	AccountID string
	Value     string
	Kind      TokenKind
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// IsExpired reports whether the token has elapsed its validity window.
// A token whose expiry equals at is already expired.
func (t RecoveryToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsActive returns true when the token can still be redeemed.
func (t RecoveryToken) IsActive(at time.Time) bool {
	if t.Used {
		return false
	}
	return !t.IsExpired(at)
}

// Consume marks the token as used.
// Returns true when the token transitions from unused to used.
func (t *RecoveryToken) Consume() bool {
	if t.Used {
		return false
	}
	t.Used = true
	return true
}
