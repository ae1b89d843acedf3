// Package redis stores recovery tokens in Redis hashes keyed by token value.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

const (
	defaultTokenPrefix = "iam:recovery_token"

	fieldID        = "id"
	fieldAccountID = "account_id"
	fieldKind      = "kind"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldUsed      = "used"
)

// createTokenScript writes the value hash and the id pointer in one step,
// or nothing when the value is already taken.
var createTokenScript = red.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'id', ARGV[1],
  'account_id', ARGV[2],
  'kind', ARGV[3],
  'created_at', ARGV[4],
  'expires_at', ARGV[5],
  'used', ARGV[6])
redis.call('SET', KEYS[2], ARGV[7])
return 1
`)

// TokenRepository implements port.RecoveryTokenRepository on Redis.
// Each token is a hash under <prefix>:value:<value>; <prefix>:id:<id> points back to the value.
// Keys carry no TTL: tokens are kept after expiry like in the relational stores.
type TokenRepository struct {
	client *red.Client
	prefix string
}

// NewTokenRepository constructs a repository with the provided client and key prefix.
func NewTokenRepository(client *red.Client, keyPrefix string) *TokenRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultTokenPrefix
	}
	return &TokenRepository{client: client, prefix: prefix}
}

// Create stores the token, failing with ErrTokenTaken if the value already exists.
func (r *TokenRepository) Create(ctx context.Context, token domain.RecoveryToken) (string, error) {
	if token.Value == "" {
		return "", errors.New("token value is required")
	}

	id := uuid.NewString()
	valueKey := r.valueKey(token.Value)

	created, err := createTokenScript.Run(ctx, r.client,
		[]string{valueKey, r.idKey(id)},
		id,
		token.AccountID,
		string(token.Kind),
		strconv.FormatInt(token.CreatedAt.UnixNano(), 10),
		strconv.FormatInt(token.ExpiresAt.UnixNano(), 10),
		formatBool(token.Used),
		token.Value,
	).Int()
	if err != nil {
		return "", fmt.Errorf("redis store recovery token: %w", err)
	}
	if created == 0 {
		return "", repository.ErrTokenTaken
	}

	return id, nil
}

// FindActive returns the unused token of the given kind whose expiry is after at.
func (r *TokenRepository) FindActive(ctx context.Context, value string, kind domain.TokenKind, at time.Time) (*domain.RecoveryToken, error) {
	values, err := r.client.HGetAll(ctx, r.valueKey(value)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall recovery token: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	token, err := decodeToken(value, values)
	if err != nil {
		return nil, err
	}
	if token.Kind != kind || !token.IsActive(at) {
		return nil, repository.ErrNotFound
	}
	return token, nil
}

// MarkUsed flags the token as consumed.
func (r *TokenRepository) MarkUsed(ctx context.Context, id string) error {
	value, err := r.client.Get(ctx, r.idKey(id)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("redis get recovery token id: %w", err)
	}

	if err := r.client.HSet(ctx, r.valueKey(value), fieldUsed, formatBool(true)).Err(); err != nil {
		return fmt.Errorf("redis mark recovery token used: %w", err)
	}
	return nil
}

func (r *TokenRepository) valueKey(value string) string {
	return r.prefix + ":value:" + value
}

func (r *TokenRepository) idKey(id string) string {
	return r.prefix + ":id:" + id
}

func decodeToken(value string, fields map[string]string) (*domain.RecoveryToken, error) {
	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode recovery token created_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode recovery token expires_at: %w", err)
	}

	return &domain.RecoveryToken{
		ID:        fields[fieldID],
		AccountID: fields[fieldAccountID],
		Value:     value,
		Kind:      domain.TokenKind(fields[fieldKind]),
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ExpiresAt: time.Unix(0, expiresAt).UTC(),
		Used:      fields[fieldUsed] == "1",
	}, nil
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

var _ port.RecoveryTokenRepository = (*TokenRepository)(nil)
