// Package mongo stores accounts and recovery tokens in the Users and Tokens
// collections using the document layout of the existing deployment.
package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
)

const (
	usersCollection  = "Users"
	tokensCollection = "Tokens"

	indexUserEmail         = "email_unique"
	indexVerificationToken = "email_verification_token_unique"
	indexTokenValue        = "token_value_unique"
)

type userDocument struct {
	ID                     bson.ObjectID `bson:"_id,omitempty"`
	Email                  string        `bson:"email"`
	PasswordHash           string        `bson:"passwordHash"`
	PasswordSalt           string        `bson:"passwordSalt"`
	PasswordAlgo           string        `bson:"passwordAlgo,omitempty"`
	IsEmailVerified        bool          `bson:"isEmailVerified"`
	EmailVerificationToken *string       `bson:"emailVerificationToken"`
	CreatedAt              time.Time     `bson:"createdAt"`
	LastLogin              *time.Time    `bson:"lastLogin"`
}

type tokenDocument struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	UserID     string        `bson:"userId"`
	TokenValue string        `bson:"tokenValue"`
	Type       string        `bson:"type"`
	CreatedAt  time.Time     `bson:"createdAt"`
	ExpiresAt  time.Time     `bson:"expiresAt"`
	IsUsed     bool          `bson:"isUsed"`
}

func toUserDocument(a domain.Account) userDocument {
	return userDocument{
		Email:                  a.Email,
		PasswordHash:           a.PasswordHash,
		PasswordSalt:           a.PasswordSalt,
		PasswordAlgo:           a.PasswordAlgo,
		IsEmailVerified:        a.EmailVerified,
		EmailVerificationToken: a.VerificationToken,
		CreatedAt:              a.CreatedAt.UTC(),
		LastLogin:              a.LastLogin,
	}
}

// toAccount maps a stored user. Documents written before the algorithm tag
// existed carry no passwordAlgo and are HMAC-SHA512 credentials.
func (d userDocument) toAccount() domain.Account {
	algo := d.PasswordAlgo
	if algo == "" {
		algo = domain.PasswordAlgoHMACSHA512
	}
	return domain.Account{
		ID:                d.ID.Hex(),
		Email:             d.Email,
		PasswordHash:      d.PasswordHash,
		PasswordSalt:      d.PasswordSalt,
		PasswordAlgo:      algo,
		EmailVerified:     d.IsEmailVerified,
		VerificationToken: d.EmailVerificationToken,
		CreatedAt:         d.CreatedAt,
		LastLogin:         d.LastLogin,
	}
}

func toTokenDocument(t domain.RecoveryToken) tokenDocument {
	return tokenDocument{
		UserID:     t.AccountID,
		TokenValue: t.Value,
		Type:       string(t.Kind),
		CreatedAt:  t.CreatedAt.UTC(),
		ExpiresAt:  t.ExpiresAt.UTC(),
		IsUsed:     t.Used,
	}
}

func (d tokenDocument) toRecoveryToken() domain.RecoveryToken {
	return domain.RecoveryToken{
		ID:        d.ID.Hex(),
		AccountID: d.UserID,
		Value:     d.TokenValue,
		Kind:      domain.TokenKind(d.Type),
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
		Used:      d.IsUsed,
	}
}
