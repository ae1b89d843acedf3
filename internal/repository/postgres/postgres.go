package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/expense-tracker-iam/internal/repository"
)

const uniqueViolation = "23505"

// Unique constraints declared by the migrations.
const (
	constraintAccountEmail      = "accounts_email_key"
	constraintVerificationToken = "accounts_verification_token_key"
	constraintRecoveryToken     = "recovery_tokens_value_key"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// classifyUniqueViolation maps unique index violations onto repository errors.
// Any other error is returned unchanged.
func classifyUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintAccountEmail:
		return repository.ErrEmailTaken
	case constraintVerificationToken, constraintRecoveryToken:
		return repository.ErrTokenTaken
	default:
		return err
	}
}
