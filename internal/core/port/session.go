package port

import (
	"time"
)

// SessionToken is a signed bearer token and its absolute expiry.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// SessionIdentity is the identity carried by a valid session token.
type SessionIdentity struct {
	AccountID string
	Email     string
}

// SessionTokenIssuer mints and validates stateless bearer tokens.
type SessionTokenIssuer interface {
	Issue(accountID, email string) (SessionToken, error)
	Validate(token string) (SessionIdentity, error)
}
