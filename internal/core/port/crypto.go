package port

import "github.com/arklim/expense-tracker-iam/internal/core/domain"

// PasswordHasher derives and verifies salted password credentials.
type PasswordHasher interface {
	Hash(password string) (domain.Credential, error)
	Verify(password string, credential domain.Credential) bool
}

// OpaqueTokenGenerator produces unpredictable URL-safe tokens.
type OpaqueTokenGenerator interface {
	Generate() (string, error)
}
