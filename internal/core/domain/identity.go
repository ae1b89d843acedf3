package domain

import "time"

// Credential algorithms understood by the credential hasher.
const (
	PasswordAlgoHMACSHA512 = "hmac-sha512"
	PasswordAlgoArgon2ID   = "argon2id"
)

// Credential is a derived password hash together with the salt used to key it.
// Hash and Salt are always written as a pair.
type Credential struct {
	Hash      string
	Salt      string
	Algorithm string
}

// Account mirrors the persisted representation of a registered user.
type Account struct {
	ID                string
	Email             string
	PasswordHash      string
	PasswordSalt      string
	PasswordAlgo      string
	EmailVerified     bool
	VerificationToken *string
	CreatedAt         time.Time
	LastLogin         *time.Time
}

// Credential returns the stored password credential.
func (a Account) Credential() Credential {
	return Credential{
		Hash:      a.PasswordHash,
		Salt:      a.PasswordSalt,
		Algorithm: a.PasswordAlgo,
	}
}

// SetCredential replaces hash, salt and algorithm together.
func (a *Account) SetCredential(c Credential) {
	a.PasswordHash = c.Hash
	a.PasswordSalt = c.Salt
	a.PasswordAlgo = c.Algorithm
}

// MarkVerified flips the account into the verified state and clears the pending token.
// Returns true if the account transitioned.
func (a *Account) MarkVerified() bool {
	if a.EmailVerified && a.VerificationToken == nil {
		return false
	}
	a.EmailVerified = true
	a.VerificationToken = nil
	return true
}

// RecordLogin stamps the last successful login time.
func (a *Account) RecordLogin(at time.Time) {
	timeCopy := at
	a.LastLogin = &timeCopy
}
