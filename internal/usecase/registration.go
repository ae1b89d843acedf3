package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/infra/logger"
	"github.com/arklim/expense-tracker-iam/internal/repository"
)

// Signup registers an unverified account and sends its verification token.
//
// The account is persisted before the notification is attempted; a delivery
// failure is reported to the caller but the account is not rolled back.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (result MessageResult, err error) {
	defer func() { s.observe(opSignup, err) }()

	if err := in.Validate(); err != nil {
		return MessageResult{}, validationError(err)
	}

	if _, err := s.accounts.GetByEmail(ctx, in.Email); err == nil {
		return MessageResult{}, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return MessageResult{}, fmt.Errorf("lookup account: %w", err)
	}

	credential, err := s.hasher.Hash(in.Password)
	if err != nil {
		return MessageResult{}, fmt.Errorf("hash password: %w", err)
	}

	verificationToken, err := s.opaque.Generate()
	if err != nil {
		return MessageResult{}, fmt.Errorf("generate verification token: %w", err)
	}

	account := domain.Account{
		Email:             in.Email,
		EmailVerified:     false,
		VerificationToken: &verificationToken,
		CreatedAt:         s.now().UTC(),
	}
	account.SetCredential(credential)

	id, err := s.accounts.Create(ctx, account)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return MessageResult{}, ErrDuplicateEmail
		case errors.Is(err, repository.ErrTokenTaken):
			s.log(ctx).Error("verification token collision, entropy source suspect",
				logger.Email("email", in.Email))
			return MessageResult{}, fmt.Errorf("store account: %w", ErrTokenCollision)
		default:
			return MessageResult{}, fmt.Errorf("store account: %w", err)
		}
	}

	if err := s.notifier.SendVerification(ctx, in.Email, verificationToken); err != nil {
		s.log(ctx).Error("send verification failed after account was stored",
			zap.String("account_id", id),
			logger.Email("email", in.Email),
			zap.Error(err))
		return MessageResult{}, fmt.Errorf("send verification: %w", err)
	}

	s.log(ctx).Info("account registered",
		zap.String("account_id", id),
		logger.Email("email", in.Email))

	return MessageResult{Message: MessageSignup}, nil
}

// VerifyEmail marks the account holding token as verified and clears the token.
// A token that was already redeemed is indistinguishable from one that never existed.
func (s *AccountService) VerifyEmail(ctx context.Context, in VerifyEmailInput) (result MessageResult, err error) {
	defer func() { s.observe(opVerifyEmail, err) }()

	if err := in.Validate(); err != nil {
		return MessageResult{}, validationError(err)
	}

	account, err := s.accounts.GetByVerificationToken(ctx, in.Token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResult{}, ErrInvalidToken
		}
		return MessageResult{}, fmt.Errorf("lookup verification token: %w", err)
	}

	if err := s.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResult{}, ErrInvalidToken
		}
		return MessageResult{}, fmt.Errorf("mark email verified: %w", err)
	}

	s.log(ctx).Info("email verified", zap.String("account_id", account.ID))

	return MessageResult{Message: MessageEmailVerified}, nil
}
