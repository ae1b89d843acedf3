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

// RequestPasswordReset issues a one hour reset token for the account, if any.
// The returned message is identical whether or not the email is registered.
func (s *AccountService) RequestPasswordReset(ctx context.Context, in PasswordResetRequestInput) (result MessageResult, err error) {
	defer func() { s.observe(opRequestReset, err) }()

	if err := in.Validate(); err != nil {
		return MessageResult{}, validationError(err)
	}

	// Generated before the lookup so both branches do the same work.
	resetToken, err := s.opaque.Generate()
	if err != nil {
		return MessageResult{}, fmt.Errorf("generate reset token: %w", err)
	}

	account, err := s.accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResult{Message: MessageResetRequested}, nil
		}
		return MessageResult{}, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()
	token := domain.RecoveryToken{
		AccountID: account.ID,
		Value:     resetToken,
		Kind:      domain.TokenKindReset,
		CreatedAt: now,
		ExpiresAt: now.Add(resetTokenTTL),
		Used:      false,
	}

	tokenID, err := s.tokens.Create(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTokenTaken) {
			s.log(ctx).Error("reset token collision, entropy source suspect",
				zap.String("account_id", account.ID))
			return MessageResult{}, fmt.Errorf("store reset token: %w", ErrTokenCollision)
		}
		return MessageResult{}, fmt.Errorf("store reset token: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, account.Email, resetToken); err != nil {
		s.log(ctx).Error("send password reset failed",
			zap.String("account_id", account.ID),
			zap.String("token_id", tokenID),
			logger.Email("email", account.Email),
			zap.Error(err))
		return MessageResult{}, fmt.Errorf("send password reset: %w", err)
	}

	s.log(ctx).Info("password reset requested",
		zap.String("account_id", account.ID),
		zap.String("token_id", tokenID))

	return MessageResult{Message: MessageResetRequested}, nil
}

// CompletePasswordReset redeems an unused, unexpired reset token and replaces
// the account credential. Other outstanding reset tokens for the account stay valid.
func (s *AccountService) CompletePasswordReset(ctx context.Context, in PasswordResetCompleteInput) (result MessageResult, err error) {
	defer func() { s.observe(opCompleteReset, err) }()

	if err := in.Validate(); err != nil {
		return MessageResult{}, validationError(err)
	}

	token, err := s.tokens.FindActive(ctx, in.Token, domain.TokenKindReset, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MessageResult{}, ErrInvalidOrExpiredToken
		}
		return MessageResult{}, fmt.Errorf("lookup reset token: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log(ctx).Error("reset token references missing account",
				zap.String("token_id", token.ID),
				zap.String("account_id", token.AccountID))
			return MessageResult{}, fmt.Errorf("account %s: %w", token.AccountID, ErrInternalInconsistency)
		}
		return MessageResult{}, fmt.Errorf("lookup account: %w", err)
	}

	credential, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return MessageResult{}, fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdateCredential(ctx, account.ID, credential); err != nil {
		return MessageResult{}, fmt.Errorf("update credential: %w", err)
	}

	if err := s.tokens.MarkUsed(ctx, token.ID); err != nil {
		return MessageResult{}, fmt.Errorf("mark reset token used: %w", err)
	}

	s.log(ctx).Info("password reset completed",
		zap.String("account_id", account.ID),
		zap.String("token_id", token.ID))

	return MessageResult{Message: MessagePasswordReset}, nil
}
