package mail

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/mail"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/expense-tracker-iam/internal/infra/config"
)

type recordingSender struct {
	messages []Message
	err      error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

var testLinks = Links{
	VerificationURL: "https://app.example.com/verify-email",
	ResetURL:        "https://app.example.com/reset?source=email",
}

func TestLinksAppendToken(t *testing.T) {
	verify, err := testLinks.Verification("abc-_123")
	if err != nil {
		t.Fatalf("Verification returned error: %v", err)
	}
	if verify != "https://app.example.com/verify-email?token=abc-_123" {
		t.Fatalf("unexpected verification link %q", verify)
	}

	reset, err := testLinks.Reset("tok")
	if err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if !strings.Contains(reset, "source=email") || !strings.Contains(reset, "token=tok") {
		t.Fatalf("unexpected reset link %q", reset)
	}
}

func TestSMTPNotifierRendersMessages(t *testing.T) {
	sender := &recordingSender{}
	from := mail.Address{Name: "Expense Tracker", Address: "noreply@example.com"}
	notifier := NewSMTPNotifier(sender, from, testLinks, zap.NewNop())

	if err := notifier.SendVerification(context.Background(), "a@x.com", "verify-token"); err != nil {
		t.Fatalf("SendVerification returned error: %v", err)
	}
	if err := notifier.SendPasswordReset(context.Background(), "a@x.com", "reset-token"); err != nil {
		t.Fatalf("SendPasswordReset returned error: %v", err)
	}

	if len(sender.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sender.messages))
	}

	verify := sender.messages[0]
	if verify.Subject != subjectVerification || verify.To != "a@x.com" || verify.From != from {
		t.Fatalf("unexpected verification message: %+v", verify)
	}
	if !strings.Contains(verify.HTML, "https://app.example.com/verify-email?token=verify-token") {
		t.Fatalf("verification body missing link: %s", verify.HTML)
	}

	reset := sender.messages[1]
	if reset.Subject != subjectReset || !strings.Contains(reset.HTML, "token=reset-token") {
		t.Fatalf("unexpected reset message: %+v", reset)
	}
	if !strings.Contains(reset.HTML, "expire in 1 hour") {
		t.Fatalf("reset body must mention expiry: %s", reset.HTML)
	}
}

func TestSMTPNotifierPropagatesSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("connection refused")}
	notifier := NewSMTPNotifier(sender, mail.Address{Address: "noreply@example.com"}, testLinks, nil)

	if err := notifier.SendVerification(context.Background(), "a@x.com", "t"); err == nil {
		t.Fatal("expected delivery failure to be returned")
	}
}

func TestNewMessageRendersHTML(t *testing.T) {
	m, err := newMessage(Message{
		From:    mail.Address{Name: "Expense Tracker", Address: "noreply@example.com"},
		To:      "a@x.com",
		Subject: subjectReset,
		HTML:    "<p>hi</p>",
	})
	if err != nil {
		t.Fatalf("newMessage returned error: %v", err)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo returned error: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{"a@x.com", "noreply@example.com", subjectReset, "text/html", "<p>hi</p>"} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %q in message:\n%s", want, raw)
		}
	}
}

func TestNewMessageRejectsInvalidRecipient(t *testing.T) {
	_, err := newMessage(Message{
		From: mail.Address{Address: "noreply@example.com"},
		To:   "not an address",
	})
	if err == nil {
		t.Fatal("expected invalid recipient to be rejected")
	}
}

func TestSMTPSenderReportsUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	sender := NewSMTPSender(config.SMTPSettings{
		Server:  "127.0.0.1",
		Port:    port,
		Timeout: 2 * time.Second,
	})

	err = sender.Send(context.Background(), Message{
		From:    mail.Address{Address: "noreply@example.com"},
		To:      "a@x.com",
		Subject: subjectVerification,
		HTML:    "<p>hi</p>",
	})
	if err == nil {
		t.Fatal("expected delivery to a closed port to fail")
	}
}

func TestLogNotifierMasksSecrets(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	notifier := NewLogNotifier(testLinks, zap.New(core))

	if err := notifier.SendVerification(context.Background(), "john.doe@example.com", "supersecrettoken"); err != nil {
		t.Fatalf("SendVerification returned error: %v", err)
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 info entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["to"] != "joh***@example.com" || fields["token"] != "su***en" {
		t.Fatalf("secrets not masked: %v", fields)
	}
}
