package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

func TestAccountRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository()
	token := "verify-me"

	id, err := repo.Create(ctx, domain.Account{Email: "a@x.com", PasswordHash: "h", PasswordSalt: "s", VerificationToken: &token})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if id == "" {
		t.Fatal("expected store-assigned id")
	}

	if _, err := repo.Create(ctx, domain.Account{Email: "a@x.com"}); !errors.Is(err, repository.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := repo.Create(ctx, domain.Account{Email: "b@x.com", VerificationToken: &token}); !errors.Is(err, repository.ErrTokenTaken) {
		t.Fatalf("expected ErrTokenTaken, got %v", err)
	}

	if _, err := repo.GetByEmail(ctx, "A@x.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("email lookup must be case-sensitive, got %v", err)
	}

	found, err := repo.GetByVerificationToken(ctx, token)
	if err != nil {
		t.Fatalf("GetByVerificationToken returned error: %v", err)
	}
	if found.ID != id {
		t.Fatalf("unexpected account %s", found.ID)
	}

	if err := repo.MarkEmailVerified(ctx, id); err != nil {
		t.Fatalf("MarkEmailVerified returned error: %v", err)
	}
	if _, err := repo.GetByVerificationToken(ctx, token); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("token should be cleared after verification, got %v", err)
	}

	at := time.Now().UTC()
	if err := repo.UpdateLastLogin(ctx, id, at); err != nil {
		t.Fatalf("UpdateLastLogin returned error: %v", err)
	}
	if err := repo.UpdateCredential(ctx, id, domain.Credential{Hash: "h2", Salt: "s2", Algorithm: domain.PasswordAlgoHMACSHA512}); err != nil {
		t.Fatalf("UpdateCredential returned error: %v", err)
	}

	stored, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if !stored.EmailVerified || stored.LastLogin == nil || !stored.LastLogin.Equal(at) {
		t.Fatalf("unexpected stored account: %+v", stored)
	}
	if stored.PasswordHash != "h2" || stored.PasswordSalt != "s2" {
		t.Fatalf("credential not updated: %+v", stored)
	}

	if err := repo.UpdateLastLogin(ctx, "missing", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenRepositoryFindActive(t *testing.T) {
	ctx := context.Background()
	repo := NewTokenRepository()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	id, err := repo.Create(ctx, domain.RecoveryToken{AccountID: "acc", Value: "v1", Kind: domain.TokenKindReset, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := repo.Create(ctx, domain.RecoveryToken{Value: "v1", Kind: domain.TokenKindReset}); !errors.Is(err, repository.ErrTokenTaken) {
		t.Fatalf("expected ErrTokenTaken, got %v", err)
	}

	if _, err := repo.FindActive(ctx, "v1", domain.TokenKindReset, now); err != nil {
		t.Fatalf("FindActive returned error: %v", err)
	}
	if _, err := repo.FindActive(ctx, "v1", domain.TokenKind("verify"), now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("kind mismatch should be ErrNotFound, got %v", err)
	}
	if _, err := repo.FindActive(ctx, "v1", domain.TokenKindReset, now.Add(time.Hour)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("token at expiry should be ErrNotFound, got %v", err)
	}

	if err := repo.MarkUsed(ctx, id); err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}
	if _, err := repo.FindActive(ctx, "v1", domain.TokenKindReset, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("used token should be ErrNotFound, got %v", err)
	}

	stored, ok := repo.Get(id)
	if !ok || !stored.Used {
		t.Fatalf("used token must be retained, got %+v", stored)
	}
}
