package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/infra/security"
	"github.com/arklim/expense-tracker-iam/internal/repository/memory"
)

type sentMessage struct {
	kind  string
	email string
	token string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) SendVerification(_ context.Context, email, token string) error {
	return n.record("verification", email, token)
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	return n.record("reset", email, token)
}

func (n *recordingNotifier) record(kind, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{kind: kind, email: email, token: token})
	return nil
}

func (n *recordingNotifier) last(t *testing.T, kind string) sentMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s message sent", kind)
	return sentMessage{}
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (m *recordingMetrics) Observe(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string][]string)
	}
	m.outcomes[operation] = append(m.outcomes[operation], outcome)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixedGenerator returns queued values, then falls back to the real generator.
type fixedGenerator struct {
	mu     sync.Mutex
	values []string
	err    error
}

func (g *fixedGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	if len(g.values) > 0 {
		v := g.values[0]
		g.values = g.values[1:]
		return v, nil
	}
	return security.GenerateSecureToken(security.OpaqueTokenBytes)
}

type fixture struct {
	svc      *AccountService
	accounts *memory.AccountRepository
	tokens   *memory.TokenRepository
	notifier *recordingNotifier
	metrics  *recordingMetrics
	clock    *fakeClock
	opaque   *fixedGenerator
	sessions *security.SessionTokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hasher, err := security.NewCredentialHasher(domain.PasswordAlgoHMACSHA512, security.DefaultArgon2Config())
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	sessions, err := security.NewSessionTokenManager(security.SessionTokenConfig{
		SigningKey: []byte("test-signing-key-with-enough-bytes"),
		Issuer:     "expense-tracker",
		Audience:   "expense-tracker-users",
	})
	require.NoError(t, err)
	sessions.WithClock(clock.Now)

	f := &fixture{
		accounts: memory.NewAccountRepository(),
		tokens:   memory.NewTokenRepository(),
		notifier: &recordingNotifier{},
		metrics:  &recordingMetrics{},
		clock:    clock,
		opaque:   &fixedGenerator{},
		sessions: sessions,
	}
	f.svc = NewAccountService(f.accounts, f.tokens, hasher, f.opaque, sessions, f.notifier).
		WithMetrics(f.metrics).
		WithClock(clock.Now)
	return f
}

// registerVerified signs up and verifies an account, returning its id.
func (f *fixture) registerVerified(t *testing.T, email, password string) string {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, SignupInput{Email: email, Password: password})
	require.NoError(t, err)

	msg := f.notifier.last(t, "verification")
	_, err = f.svc.VerifyEmail(ctx, VerifyEmailInput{Token: msg.token})
	require.NoError(t, err)

	account, err := f.accounts.GetByEmail(ctx, email)
	require.NoError(t, err)
	return account.ID
}

var errBoom = errors.New("boom")
