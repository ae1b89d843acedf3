// Package memory provides process-local repositories for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	uuid "github.com/google/uuid"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

// AccountRepository keeps accounts in a map guarded by a mutex.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewAccountRepository constructs an empty in-memory account store.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]domain.Account)}
}

// Create stores the account under a fresh identifier.
func (r *AccountRepository) Create(_ context.Context, account domain.Account) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return "", repository.ErrEmailTaken
		}
		if account.VerificationToken != nil && existing.VerificationToken != nil &&
			*existing.VerificationToken == *account.VerificationToken {
			return "", repository.ErrTokenTaken
		}
	}

	account.ID = uuid.NewString()
	r.accounts[account.ID] = cloneAccount(account)
	return account.ID, nil
}

// GetByID returns the account with the given identifier.
func (r *AccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneAccount(account)
	return &out, nil
}

// GetByEmail returns the account with exactly the given email.
func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.Email == email })
}

// GetByVerificationToken returns the account holding the pending verification token.
func (r *AccountRepository) GetByVerificationToken(_ context.Context, token string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool {
		return a.VerificationToken != nil && *a.VerificationToken == token
	})
}

// MarkEmailVerified sets the verified flag and clears the pending token.
func (r *AccountRepository) MarkEmailVerified(_ context.Context, id string) error {
	return r.update(id, func(a *domain.Account) { a.MarkVerified() })
}

// UpdateCredential replaces the password hash, salt and algorithm.
func (r *AccountRepository) UpdateCredential(_ context.Context, id string, credential domain.Credential) error {
	return r.update(id, func(a *domain.Account) { a.SetCredential(credential) })
}

// UpdateLastLogin stamps the last successful login.
func (r *AccountRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(a *domain.Account) { a.RecordLogin(at) })
}

func (r *AccountRepository) find(match func(domain.Account) bool) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if match(account) {
			out := cloneAccount(account)
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepository) update(id string, mutate func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	mutate(&account)
	r.accounts[id] = account
	return nil
}

func cloneAccount(a domain.Account) domain.Account {
	if a.VerificationToken != nil {
		token := *a.VerificationToken
		a.VerificationToken = &token
	}
	if a.LastLogin != nil {
		at := *a.LastLogin
		a.LastLogin = &at
	}
	return a
}

var _ port.AccountRepository = (*AccountRepository)(nil)
