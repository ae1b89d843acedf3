package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	uuid "github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

const recoveryTokensTable = "iam.recovery_tokens"

// TokenRepository implements port.RecoveryTokenRepository using PostgreSQL.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a recovery token and returns its generated identifier.
func (r *TokenRepository) Create(ctx context.Context, token domain.RecoveryToken) (string, error) {
	id := uuid.NewString()

	stmt, args, err := r.builder.Insert(recoveryTokensTable).
		Columns("id", "account_id", "value", "kind", "created_at", "expires_at", "used").
		Values(id, token.AccountID, token.Value, string(token.Kind), token.CreatedAt, token.ExpiresAt, token.Used).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert recovery token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := classifyUniqueViolation(err); mapped != err {
			return "", mapped
		}
		return "", fmt.Errorf("insert recovery token: %w", err)
	}

	return id, nil
}

// FindActive returns the unused token of the given kind whose expiry is after at.
func (r *TokenRepository) FindActive(ctx context.Context, value string, kind domain.TokenKind, at time.Time) (*domain.RecoveryToken, error) {
	stmt, args, err := r.builder.
		Select("id", "account_id", "value", "kind", "created_at", "expires_at", "used").
		From(recoveryTokensTable).
		Where(squirrel.And{
			squirrel.Eq{"value": value},
			squirrel.Eq{"kind": string(kind)},
			squirrel.Eq{"used": false},
			squirrel.Gt{"expires_at": at},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select recovery token sql: %w", err)
	}

	var (
		token   domain.RecoveryToken
		kindStr string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.AccountID,
		&token.Value,
		&kindStr,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.Used,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan recovery token: %w", err)
	}
	token.Kind = domain.TokenKind(kindStr)

	return &token, nil
}

// MarkUsed flags the token as consumed.
func (r *TokenRepository) MarkUsed(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update(recoveryTokensTable).
		Set("used", true).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark recovery token used sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark recovery token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ port.RecoveryTokenRepository = (*TokenRepository)(nil)
