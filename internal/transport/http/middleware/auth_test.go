package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
)

type stubValidator struct {
	identity port.SessionIdentity
	err      error
	token    string
}

func (s *stubValidator) ValidateSession(_ context.Context, token string) (port.SessionIdentity, error) {
	s.token = token
	return s.identity, s.err
}

func newAuthRouter(v SessionValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/me", RequireAuth(v), func(c *gin.Context) {
		identity, ok := GetSessionIdentity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		accountID, _ := GetAuthenticatedAccountID(c)
		c.JSON(http.StatusOK, gin.H{"account_id": accountID, "email": identity.Email})
	})
	return router
}

func TestRequireAuthRejectsMalformedHeaders(t *testing.T) {
	validator := &stubValidator{}
	router := newAuthRouter(validator)

	cases := map[string]string{
		"missing":      "",
		"no scheme":    "abc",
		"wrong scheme": "Basic abc",
		"empty token":  "Bearer  ",
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}

	if validator.token != "" {
		t.Fatalf("validator must not be called for malformed headers, got %q", validator.token)
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	router := newAuthRouter(&stubValidator{err: errors.New("expired")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireAuthStoresIdentity(t *testing.T) {
	validator := &stubValidator{identity: port.SessionIdentity{AccountID: "acc-1", Email: "a@x.io"}}
	router := newAuthRouter(validator)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer good-token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if validator.token != "good-token" {
		t.Fatalf("expected token to be passed through, got %q", validator.token)
	}
	if body := rr.Body.String(); body != `{"account_id":"acc-1","email":"a@x.io"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
