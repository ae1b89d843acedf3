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

const accountsTable = "iam.accounts"

var accountColumns = []string{
	"id",
	"email",
	"password_hash",
	"password_salt",
	"password_algo",
	"email_verified",
	"verification_token",
	"created_at",
	"last_login",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	return &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new account row and returns its generated identifier.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (string, error) {
	id := uuid.NewString()

	stmt, args, err := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			id,
			account.Email,
			account.PasswordHash,
			account.PasswordSalt,
			account.PasswordAlgo,
			account.EmailVerified,
			account.VerificationToken,
			account.CreatedAt,
			account.LastLogin,
		).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := classifyUniqueViolation(err); mapped != err {
			return "", mapped
		}
		return "", fmt.Errorf("insert account: %w", err)
	}

	return id, nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves an account by exact email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

// GetByVerificationToken retrieves the account holding a pending verification token.
func (r *AccountRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"verification_token": token})
}

// MarkEmailVerified sets email_verified and clears the verification token.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.update(ctx, "mark email verified",
		r.builder.Update(accountsTable).
			Set("email_verified", true).
			Set("verification_token", nil).
			Where(squirrel.Eq{"id": id}))
}

// UpdateCredential replaces hash, salt and algorithm in one statement.
func (r *AccountRepository) UpdateCredential(ctx context.Context, id string, credential domain.Credential) error {
	return r.update(ctx, "update credential",
		r.builder.Update(accountsTable).
			Set("password_hash", credential.Hash).
			Set("password_salt", credential.Salt).
			Set("password_algo", credential.Algorithm).
			Where(squirrel.Eq{"id": id}))
}

// UpdateLastLogin stamps the last successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, "update last login",
		r.builder.Update(accountsTable).
			Set("last_login", at).
			Where(squirrel.Eq{"id": id}))
}

func (r *AccountRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	var account domain.Account
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.PasswordSalt,
		&account.PasswordAlgo,
		&account.EmailVerified,
		&account.VerificationToken,
		&account.CreatedAt,
		&account.LastLogin,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &account, nil
}

func (r *AccountRepository) update(ctx context.Context, action string, query squirrel.UpdateBuilder) error {
	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build %s sql: %w", action, err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
