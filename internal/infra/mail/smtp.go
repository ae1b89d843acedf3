package mail

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/infra/config"
	"github.com/arklim/expense-tracker-iam/internal/infra/logger"
)

// Message is a rendered HTML email.
type Message struct {
	From    mail.Address
	To      string
	Subject string
	HTML    string
}

// Sender transmits a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPNotifier renders notification emails and hands them to a Sender.
type SMTPNotifier struct {
	sender Sender
	from   mail.Address
	links  Links
	logger *zap.Logger
}

// NewSMTPNotifier builds a notifier delivering through sender.
func NewSMTPNotifier(sender Sender, from mail.Address, links Links, log *zap.Logger) *SMTPNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPNotifier{sender: sender, from: from, links: links, logger: log}
}

// SendVerification emails the verification link.
func (n *SMTPNotifier) SendVerification(ctx context.Context, email, token string) error {
	link, err := n.links.Verification(token)
	if err != nil {
		return err
	}
	body, err := render(verificationTemplate, link)
	if err != nil {
		return err
	}
	return n.deliver(ctx, email, subjectVerification, body)
}

// SendPasswordReset emails the password reset link.
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	link, err := n.links.Reset(token)
	if err != nil {
		return err
	}
	body, err := render(resetTemplate, link)
	if err != nil {
		return err
	}
	return n.deliver(ctx, email, subjectReset, body)
}

func (n *SMTPNotifier) deliver(ctx context.Context, to, subject, body string) error {
	msg := Message{From: n.from, To: to, Subject: subject, HTML: body}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %q email: %w", subject, err)
	}
	logger.WithContext(ctx, n.logger).Info("notification email sent",
		zap.String("subject", subject),
		logger.Email("to", to))
	return nil
}

// SMTPSender delivers messages over SMTP with PLAIN auth.
// EnableSSL selects implicit TLS on port 465 and mandatory STARTTLS elsewhere.
type SMTPSender struct {
	cfg config.SMTPSettings
}

// NewSMTPSender constructs a sender from the SMTP settings.
func NewSMTPSender(cfg config.SMTPSettings) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Send opens a connection per message.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := newMessage(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.cfg.Server, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s:%d: %w", s.cfg.Server, s.cfg.Port, err)
	}
	return nil
}

func (s *SMTPSender) clientOptions() []gomail.Option {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(s.cfg.Timeout),
	}

	switch {
	case s.cfg.EnableSSL && s.cfg.Port == 465:
		opts = append(opts, gomail.WithSSL())
	case s.cfg.EnableSSL:
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	default:
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}

	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func newMessage(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.FromFormat(msg.From.Name, msg.From.Address); err != nil {
		return nil, fmt.Errorf("smtp from %q: %w", msg.From.Address, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("smtp rcpt: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	return m, nil
}

var _ port.Notifier = (*SMTPNotifier)(nil)
