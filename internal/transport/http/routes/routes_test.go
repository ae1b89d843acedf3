package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/expense-tracker-iam/internal/core/domain"
	"github.com/arklim/expense-tracker-iam/internal/infra/config"
	"github.com/arklim/expense-tracker-iam/internal/infra/security"
	"github.com/arklim/expense-tracker-iam/internal/infra/telemetry"
	"github.com/arklim/expense-tracker-iam/internal/repository/memory"
	"github.com/arklim/expense-tracker-iam/internal/transport/http/middleware"
	httproutes "github.com/arklim/expense-tracker-iam/internal/transport/http/routes"
	"github.com/arklim/expense-tracker-iam/internal/usecase"
)

type capturingNotifier struct {
	verification string
	reset        string
}

func (n *capturingNotifier) SendVerification(_ context.Context, _ string, token string) error {
	n.verification = token
	return nil
}

func (n *capturingNotifier) SendPasswordReset(_ context.Context, _ string, token string) error {
	n.reset = token
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: zaptest.NewLogger(t),
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestReadinessReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: zaptest.NewLogger(t),
		Checks: []httproutes.ReadinessCheck{
			{Name: "postgres", Check: func(context.Context) error { return nil }},
			{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
		},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Checks["postgres"] != "ok" || body.Checks["redis"] != "unavailable" {
		t.Fatalf("unexpected checks %v", body.Checks)
	}
}

func TestMetricsEndpointExposesOperationCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	ops, err := telemetry.NewOperationMetrics(registry, "iam")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	ops.Observe("login", "success")

	r := httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{},
		Logger:   zaptest.NewLogger(t),
		Gatherer: registry,
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("iam_account_operations_total")) {
		t.Fatalf("expected operation counter in exposition, got %s", w.Body.String())
	}
}

type harness struct {
	router   *gin.Engine
	notifier *capturingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher, err := security.NewCredentialHasher(domain.PasswordAlgoHMACSHA512, security.DefaultArgon2Config())
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	sessions, err := security.NewSessionTokenManager(security.SessionTokenConfig{
		SigningKey: []byte("integration-test-signing-key-0123456789"),
		Issuer:     "expense-tracker",
		Audience:   "expense-tracker-users",
	})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	notifier := &capturingNotifier{}
	svc := usecase.NewAccountService(
		memory.NewAccountRepository(),
		memory.NewTokenRepository(),
		hasher,
		security.NewTokenGenerator(),
		sessions,
		notifier,
	).WithLogger(zaptest.NewLogger(t))

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("http metrics: %v", err)
	}

	r := httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:   zaptest.NewLogger(t),
		Accounts: svc,
		Metrics:  metrics,
	})
	return &harness{router: r, notifier: notifier}
}

func (h *harness) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	creds := map[string]string{"email": "a@x.io", "password": "Secret#1"}

	w := h.do(t, http.MethodPost, "/api/v1/auth/signup", creds, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("signup: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[messageBody](t, w).Message; got != usecase.MessageSignup {
		t.Fatalf("signup message %q", got)
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/signup", creds, nil)
	if w.Code != http.StatusConflict || decode[messageBody](t, w).Error != "Email already registered" {
		t.Fatalf("duplicate signup: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/login", creds, nil)
	if w.Code != http.StatusForbidden || decode[messageBody](t, w).Error != "Please verify your email before logging in" {
		t.Fatalf("unverified login: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": h.notifier.verification}, nil)
	if w.Code != http.StatusOK || decode[messageBody](t, w).Message != usecase.MessageEmailVerified {
		t.Fatalf("verify: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": h.notifier.verification}, nil)
	if w.Code != http.StatusBadRequest || decode[messageBody](t, w).Error != "Invalid verification token" {
		t.Fatalf("repeat verify: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@x.io", "password": "wrong"}, nil)
	if w.Code != http.StatusUnauthorized || decode[messageBody](t, w).Error != "Invalid email or password" {
		t.Fatalf("bad password: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/login", creds, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: got %d %s", w.Code, w.Body.String())
	}
	login := decode[struct {
		Token     string    `json:"token"`
		TokenType string    `json:"token_type"`
		ExpiresAt time.Time `json:"expires_at"`
	}](t, w)
	if login.Token == "" || login.TokenType != "Bearer" || login.ExpiresAt.IsZero() {
		t.Fatalf("unexpected login response %+v", login)
	}

	w = h.do(t, http.MethodGet, "/api/v1/auth/session", nil, http.Header{"Authorization": {"Bearer " + login.Token}})
	if w.Code != http.StatusOK {
		t.Fatalf("session: got %d %s", w.Code, w.Body.String())
	}
	session := decode[struct {
		AccountID string `json:"account_id"`
		Email     string `json:"email"`
	}](t, w)
	if session.Email != "a@x.io" || session.AccountID == "" {
		t.Fatalf("unexpected session %+v", session)
	}

	w = h.do(t, http.MethodGet, "/api/v1/auth/session", nil, http.Header{"Authorization": {"Bearer not-a-jwt"}})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad session: expected 401, got %d", w.Code)
	}
}

func TestPasswordResetOverHTTP(t *testing.T) {
	h := newHarness(t)
	creds := map[string]string{"email": "a@x.io", "password": "Secret#1"}
	h.do(t, http.MethodPost, "/api/v1/auth/signup", creds, nil)
	h.do(t, http.MethodPost, "/api/v1/auth/verify-email", map[string]string{"token": h.notifier.verification}, nil)

	w := h.do(t, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "ghost@x.io"}, nil)
	if w.Code != http.StatusOK || decode[messageBody](t, w).Message != usecase.MessageResetRequested {
		t.Fatalf("unknown email: got %d %s", w.Code, w.Body.String())
	}
	if h.notifier.reset != "" {
		t.Fatalf("no reset mail expected for unknown email")
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": "a@x.io"}, nil)
	if w.Code != http.StatusOK || decode[messageBody](t, w).Message != usecase.MessageResetRequested {
		t.Fatalf("known email: got %d %s", w.Code, w.Body.String())
	}

	reset := map[string]string{"token": h.notifier.reset, "newPassword": "N3w!pass"}
	w = h.do(t, http.MethodPost, "/api/v1/auth/reset-password", reset, nil)
	if w.Code != http.StatusOK || decode[messageBody](t, w).Message != usecase.MessagePasswordReset {
		t.Fatalf("reset: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/reset-password", reset, nil)
	if w.Code != http.StatusBadRequest || decode[messageBody](t, w).Error != "Invalid or expired token" {
		t.Fatalf("reused token: got %d %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@x.io", "password": "N3w!pass"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login with new password: got %d %s", w.Code, w.Body.String())
	}
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		path string
		body any
		want string
	}{
		{"/api/v1/auth/signup", map[string]string{"email": "", "password": "x"}, "Email and password are required"},
		{"/api/v1/auth/login", map[string]string{"email": "a@x.io"}, "Email and password are required"},
		{"/api/v1/auth/verify-email", map[string]string{}, "Token is required"},
		{"/api/v1/auth/forgot-password", map[string]string{}, "Email is required"},
		{"/api/v1/auth/reset-password", map[string]string{"token": "t"}, "Token and new password are required"},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			w := h.do(t, http.MethodPost, tc.path, tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			body := decode[messageBody](t, w)
			if body.Error != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, body.Error)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed json: expected 400, got %d", w.Code)
	}
}
