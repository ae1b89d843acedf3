package port

import (
	"context"
	"time"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
)

// RecoveryTokenRepository manages stored recovery tokens.
//
// FindActive only returns a token whose value and kind match, that is unused
// and whose expiry is strictly after at; anything else is repository.ErrNotFound.
// Tokens are never deleted.
type RecoveryTokenRepository interface {
	Create(ctx context.Context, token domain.RecoveryToken) (string, error)
	FindActive(ctx context.Context, value string, kind domain.TokenKind, at time.Time) (*domain.RecoveryToken, error)
	MarkUsed(ctx context.Context, id string) error
}
