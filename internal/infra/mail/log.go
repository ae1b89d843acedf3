package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/infra/logger"
)

// LogNotifier logs notifications instead of sending them. Intended for local
// development; the full link is only emitted at debug level.
type LogNotifier struct {
	links  Links
	logger *zap.Logger
}

// NewLogNotifier constructs a development notifier.
func NewLogNotifier(links Links, log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{links: links, logger: log}
}

// SendVerification logs the verification link.
func (n *LogNotifier) SendVerification(ctx context.Context, email, token string) error {
	link, err := n.links.Verification(token)
	if err != nil {
		return err
	}
	n.emit(ctx, subjectVerification, email, token, link)
	return nil
}

// SendPasswordReset logs the reset link.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	link, err := n.links.Reset(token)
	if err != nil {
		return err
	}
	n.emit(ctx, subjectReset, email, token, link)
	return nil
}

func (n *LogNotifier) emit(ctx context.Context, subject, email, token, link string) {
	log := logger.WithContext(ctx, n.logger)
	log.Info("notification suppressed",
		zap.String("subject", subject),
		logger.Email("to", email),
		logger.Secret("token", token))
	log.Debug("notification link", zap.String("link", link))
}

var _ port.Notifier = (*LogNotifier)(nil)
