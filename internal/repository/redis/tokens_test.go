package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestTokenRepository_CreateAndFindActive(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewTokenRepository(client, "tokens")
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	id, err := repo.Create(ctx, domain.RecoveryToken{
		AccountID: "acc-1",
		Value:     "reset-value",
		Kind:      domain.TokenKindReset,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if got := server.HGet("tokens:value:reset-value", "account_id"); got != "acc-1" {
		t.Fatalf("unexpected stored account id %q", got)
	}
	if server.TTL("tokens:value:reset-value") != 0 {
		t.Fatal("recovery tokens must not expire from the store")
	}

	token, err := repo.FindActive(ctx, "reset-value", domain.TokenKindReset, now)
	if err != nil {
		t.Fatalf("FindActive returned error: %v", err)
	}
	if token.ID != id || token.AccountID != "acc-1" || !token.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected token: %+v", token)
	}
}

func TestTokenRepository_CreateDuplicateValue(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewTokenRepository(client, "")
	ctx := context.Background()

	token := domain.RecoveryToken{AccountID: "acc-1", Value: "dup", Kind: domain.TokenKindReset, ExpiresAt: time.Now().Add(time.Hour)}
	if _, err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := repo.Create(ctx, token); !errors.Is(err, repository.ErrTokenTaken) {
		t.Fatalf("expected ErrTokenTaken, got %v", err)
	}
}

func TestTokenRepository_CreateFailureLeavesNoPartialToken(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewTokenRepository(client, "tokens")
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	token := domain.RecoveryToken{AccountID: "acc-1", Value: "v", Kind: domain.TokenKindReset, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	server.SetError("LOADING redis is loading the dataset")
	if _, err := repo.Create(ctx, token); err == nil {
		t.Fatal("expected Create to fail while redis rejects commands")
	}
	server.SetError("")

	if keys := server.Keys(); len(keys) != 0 {
		t.Fatalf("failed Create must not leave keys behind, got %v", keys)
	}

	id, err := repo.Create(ctx, token)
	if err != nil {
		t.Fatalf("retry after failure returned error: %v", err)
	}
	if _, err := repo.Create(ctx, token); !errors.Is(err, repository.ErrTokenTaken) {
		t.Fatalf("expected ErrTokenTaken, got %v", err)
	}
	if keys := server.Keys(); len(keys) != 2 {
		t.Fatalf("expected value hash and id pointer only, got %v", keys)
	}

	found, err := repo.FindActive(ctx, "v", domain.TokenKindReset, now)
	if err != nil {
		t.Fatalf("FindActive returned error: %v", err)
	}
	if found.ID != id {
		t.Fatalf("duplicate Create must not replace the stored id, got %s want %s", found.ID, id)
	}
}

func TestTokenRepository_FindActiveRejectsInactive(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewTokenRepository(client, "tokens")
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	id, err := repo.Create(ctx, domain.RecoveryToken{AccountID: "acc-1", Value: "v", Kind: domain.TokenKindReset, CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := repo.FindActive(ctx, "v", domain.TokenKindReset, now.Add(time.Hour)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expiry boundary should be inactive, got %v", err)
	}
	if _, err := repo.FindActive(ctx, "v", domain.TokenKind("verify"), now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("kind mismatch should be ErrNotFound, got %v", err)
	}
	if _, err := repo.FindActive(ctx, "missing", domain.TokenKindReset, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("missing token should be ErrNotFound, got %v", err)
	}

	if err := repo.MarkUsed(ctx, id); err != nil {
		t.Fatalf("MarkUsed returned error: %v", err)
	}
	if _, err := repo.FindActive(ctx, "v", domain.TokenKindReset, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("used token should be ErrNotFound, got %v", err)
	}
}

func TestTokenRepository_MarkUsedMissing(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewTokenRepository(client, "tokens")

	if err := repo.MarkUsed(context.Background(), "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
