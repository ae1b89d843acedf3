package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

// TokenRepository implements port.RecoveryTokenRepository on the Tokens collection.
type TokenRepository struct {
	tokens *mongo.Collection
}

// NewTokenRepository binds the repository to the database's Tokens collection.
func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{tokens: db.Collection(tokensCollection)}
}

// EnsureIndexes creates the unique token value index.
func (r *TokenRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tokenValue", Value: 1}},
		Options: options.Index().SetName(indexTokenValue).SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create tokens index: %w", err)
	}
	return nil
}

// Create inserts the token and returns the generated ObjectID as hex.
func (r *TokenRepository) Create(ctx context.Context, token domain.RecoveryToken) (string, error) {
	doc := toTokenDocument(token)
	doc.ID = bson.NewObjectID()

	if _, err := r.tokens.InsertOne(ctx, doc); err != nil {
		if mapped := classifyDuplicateKey(err); mapped != nil {
			return "", mapped
		}
		return "", fmt.Errorf("insert token: %w", err)
	}
	return doc.ID.Hex(), nil
}

// FindActive returns the unused token of the given kind whose expiry is after at.
func (r *TokenRepository) FindActive(ctx context.Context, value string, kind domain.TokenKind, at time.Time) (*domain.RecoveryToken, error) {
	filter := bson.D{
		{Key: "tokenValue", Value: value},
		{Key: "type", Value: string(kind)},
		{Key: "isUsed", Value: false},
		{Key: "expiresAt", Value: bson.D{{Key: "$gt", Value: at.UTC()}}},
	}

	var doc tokenDocument
	if err := r.tokens.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	token := doc.toRecoveryToken()
	return &token, nil
}

// MarkUsed flags the token as consumed.
func (r *TokenRepository) MarkUsed(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.tokens.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isUsed", Value: true}}}},
	)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ port.RecoveryTokenRepository = (*TokenRepository)(nil)
