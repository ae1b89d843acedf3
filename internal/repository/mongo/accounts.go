package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

// AccountRepository implements port.AccountRepository on the Users collection.
type AccountRepository struct {
	users *mongo.Collection
}

// NewAccountRepository binds the repository to the database's Users collection.
func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{users: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique indexes the repository relies on.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(indexUserEmail).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "emailVerificationToken", Value: 1}},
			Options: options.Index().
				SetName(indexVerificationToken).
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "emailVerificationToken", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create users indexes: %w", err)
	}
	return nil
}

// Create inserts the account and returns the generated ObjectID as hex.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (string, error) {
	doc := toUserDocument(account)
	doc.ID = bson.NewObjectID()

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mapped := classifyDuplicateKey(err); mapped != nil {
			return "", mapped
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return doc.ID.Hex(), nil
}

// GetByID retrieves an account by its hex ObjectID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

// GetByEmail retrieves an account by exact email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

// GetByVerificationToken retrieves the account holding the pending verification token.
func (r *AccountRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "emailVerificationToken", Value: token}})
}

// MarkEmailVerified sets isEmailVerified and clears the verification token.
func (r *AccountRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, "mark email verified", bson.D{
		{Key: "isEmailVerified", Value: true},
		{Key: "emailVerificationToken", Value: nil},
	})
}

// UpdateCredential replaces hash, salt and algorithm in one update.
func (r *AccountRepository) UpdateCredential(ctx context.Context, id string, credential domain.Credential) error {
	return r.updateOne(ctx, id, "update credential", bson.D{
		{Key: "passwordHash", Value: credential.Hash},
		{Key: "passwordSalt", Value: credential.Salt},
		{Key: "passwordAlgo", Value: credential.Algorithm},
	})
}

// UpdateLastLogin stamps the last successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, id, "update last login", bson.D{{Key: "lastLogin", Value: at.UTC()}})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.D) (*domain.Account, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	account := doc.toAccount()
	return &account, nil
}

func (r *AccountRepository) updateOne(ctx context.Context, id, action string, set bson.D) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return repository.ErrNotFound
	}

	res, err := r.users.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// classifyDuplicateKey maps unique index violations to repository errors and
// returns nil for anything else.
func classifyDuplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexUserEmail):
		return repository.ErrEmailTaken
	case strings.Contains(msg, indexVerificationToken), strings.Contains(msg, indexTokenValue):
		return repository.ErrTokenTaken
	default:
		return nil
	}
}

var _ port.AccountRepository = (*AccountRepository)(nil)
