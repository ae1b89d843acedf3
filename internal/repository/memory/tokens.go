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

// TokenRepository keeps recovery tokens in memory. Tokens are never removed.
type TokenRepository struct {
	mu      sync.RWMutex
	tokens  map[string]domain.RecoveryToken
	byValue map[string]string
}

// NewTokenRepository constructs an empty in-memory token store.
func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens:  make(map[string]domain.RecoveryToken),
		byValue: make(map[string]string),
	}
}

// Create stores the token; values must be unique across all kinds.
func (r *TokenRepository) Create(_ context.Context, token domain.RecoveryToken) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byValue[token.Value]; exists {
		return "", repository.ErrTokenTaken
	}

	token.ID = uuid.NewString()
	r.tokens[token.ID] = token
	r.byValue[token.Value] = token.ID
	return token.ID, nil
}

// FindActive returns the unused, unexpired token with the given value and kind.
func (r *TokenRepository) FindActive(_ context.Context, value string, kind domain.TokenKind, at time.Time) (*domain.RecoveryToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byValue[value]
	if !ok {
		return nil, repository.ErrNotFound
	}
	token := r.tokens[id]
	if token.Kind != kind || !token.IsActive(at) {
		return nil, repository.ErrNotFound
	}
	return &token, nil
}

// MarkUsed flags the token as consumed.
func (r *TokenRepository) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok {
		return repository.ErrNotFound
	}
	token.Consume()
	r.tokens[id] = token
	return nil
}

// Get returns a stored token regardless of its state.
func (r *TokenRepository) Get(id string) (domain.RecoveryToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.tokens[id]
	return token, ok
}

var _ port.RecoveryTokenRepository = (*TokenRepository)(nil)
