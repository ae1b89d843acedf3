package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/infra/logger"
)

const (
	resetTokenTTL = time.Hour

	// MessageSignup is returned after a successful registration.
	MessageSignup = "Registration successful. Please check your email to verify your account."
	// MessageEmailVerified is returned after a successful email verification.
	MessageEmailVerified = "Email verified successfully. You can now log in."
	// MessageResetRequested is returned for every password reset request, whether or not the email is registered.
	MessageResetRequested = "If your email is registered, you will receive a password reset link"
	// MessagePasswordReset is returned after a successful password reset.
	MessagePasswordReset = "Password reset successful. You can now log in with your new password."

	opSignup        = "signup"
	opVerifyEmail   = "verify_email"
	opLogin         = "login"
	opRequestReset  = "request_password_reset"
	opCompleteReset = "complete_password_reset"
	opValidate      = "validate_session"
)

// MessageResult carries the generic success message of a lifecycle operation.
type MessageResult struct {
	Message string
}

// AccountService orchestrates signup, verification, login and password reset
// against the account and recovery token stores. It holds no mutable state of
// its own; concurrent calls for the same account race at the store.
type AccountService struct {
	accounts port.AccountRepository
	tokens   port.RecoveryTokenRepository
	hasher   port.PasswordHasher
	opaque   port.OpaqueTokenGenerator
	sessions port.SessionTokenIssuer
	notifier port.Notifier
	metrics  port.OperationMetrics
	logger   *zap.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummy     domain.Credential
}

// NewAccountService wires the lifecycle manager to its collaborators.
func NewAccountService(
	accounts port.AccountRepository,
	tokens port.RecoveryTokenRepository,
	hasher port.PasswordHasher,
	opaque port.OpaqueTokenGenerator,
	sessions port.SessionTokenIssuer,
	notifier port.Notifier,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		opaque:   opaque,
		sessions: sessions,
		notifier: notifier,
		metrics:  noopMetrics{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
}

// WithLogger attaches a structured logger.
func (s *AccountService) WithLogger(log *zap.Logger) *AccountService {
	if log != nil {
		s.logger = log
	}
	return s
}

// WithMetrics attaches an operation outcome recorder.
func (s *AccountService) WithMetrics(metrics port.OperationMetrics) *AccountService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// WithClock overrides the time source (primarily for tests).
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *AccountService) log(ctx context.Context) *zap.Logger {
	return logger.WithContext(ctx, s.logger)
}

func (s *AccountService) observe(operation string, err error) {
	s.metrics.Observe(operation, outcomeOf(err))
}

// dummyCredential is verified against when no account matches a login, so the
// unknown-email path performs the same hashing work as a wrong password.
func (s *AccountService) dummyCredential() domain.Credential {
	s.dummyOnce.Do(func() {
		cred, err := s.hasher.Hash("dummy-password-for-unknown-accounts")
		if err == nil {
			s.dummy = cred
		}
	})
	return s.dummy
}

func validationError(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

// SignupInput is the registration request.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

// VerifyEmailInput is the email verification request.
type VerifyEmailInput struct {
	Token string `json:"token"`
}

// Validate checks required fields.
func (in VerifyEmailInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Token, validation.Required),
	)
}

// LoginInput is the login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields.
func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

// PasswordResetRequestInput is the forgot-password request.
type PasswordResetRequestInput struct {
	Email string `json:"email"`
}

// Validate checks required fields.
func (in PasswordResetRequestInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
	)
}

// PasswordResetCompleteInput is the reset-password request.
type PasswordResetCompleteInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// Validate checks required fields.
func (in PasswordResetCompleteInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Token, validation.Required),
		validation.Field(&in.NewPassword, validation.Required),
	)
}

type noopMetrics struct{}

func (noopMetrics) Observe(string, string) {}
