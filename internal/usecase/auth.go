package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

// LoginResult carries the issued bearer session token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	AccountID string
}

// Login authenticates the account and issues a session token.
//
// Unknown emails and wrong passwords both yield ErrInvalidCredentials; the
// verification state is only revealed once the password is proven.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (result LoginResult, err error) {
	defer func() { s.observe(opLogin, err) }()

	if err := in.Validate(); err != nil {
		return LoginResult{}, validationError(err)
	}

	account, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(in.Password, s.dummyCredential())
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup account: %w", err)
	}

	if !s.hasher.Verify(in.Password, account.Credential()) {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !account.EmailVerified {
		return LoginResult{}, ErrEmailNotVerified
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, s.now().UTC()); err != nil {
		return LoginResult{}, fmt.Errorf("update last login: %w", err)
	}

	token, err := s.sessions.Issue(account.ID, account.Email)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue session token: %w", err)
	}

	s.log(ctx).Info("login succeeded", zap.String("account_id", account.ID))

	return LoginResult{Token: token.Value, ExpiresAt: token.ExpiresAt, AccountID: account.ID}, nil
}

// ValidateSession resolves a bearer token to the identity it carries.
// Every failure is ErrUnauthenticated; the underlying cause is only logged.
func (s *AccountService) ValidateSession(ctx context.Context, token string) (identity port.SessionIdentity, err error) {
	defer func() { s.observe(opValidate, err) }()

	identity, err = s.sessions.Validate(token)
	if err != nil {
		s.log(ctx).Debug("session token rejected", zap.Error(err))
		return port.SessionIdentity{}, ErrUnauthenticated
	}
	return identity, nil
}
