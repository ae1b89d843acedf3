package port

import (
	"context"
	"time"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
//
// Lookups return repository.ErrNotFound when no account matches. Create returns
// repository.ErrEmailTaken or repository.ErrTokenTaken on a uniqueness violation
// and yields the store-assigned identifier on success. Email matching is exact
// and case-sensitive.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByVerificationToken(ctx context.Context, token string) (*domain.Account, error)
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateCredential(ctx context.Context, id string, credential domain.Credential) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
