package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
)

const sessionIdentityKey = "session_identity"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// SessionValidator resolves a bearer token into the identity it was issued for.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (port.SessionIdentity, error)
}

// RequireAuth validates the Authorization header and stores the session identity
func RequireAuth(validator SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		if !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: must start with 'Bearer'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing session token"))
			return
		}

		identity, err := validator.ValidateSession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid or expired session token"))
			return
		}

		c.Set(AccountIDKey, identity.AccountID)
		c.Set(sessionIdentityKey, identity)

		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = identity.AccountID
		}

		c.Next()
	}
}

// GetSessionIdentity retrieves the identity stored by RequireAuth.
func GetSessionIdentity(c *gin.Context) (port.SessionIdentity, bool) {
	val, exists := c.Get(sessionIdentityKey)
	if !exists {
		return port.SessionIdentity{}, false
	}
	identity, ok := val.(port.SessionIdentity)
	return identity, ok
}

// GetAuthenticatedAccountID retrieves the account ID from context (helper for handlers)
func GetAuthenticatedAccountID(c *gin.Context) (string, bool) {
	accountID, exists := c.Get(AccountIDKey)
	if !exists {
		return "", false
	}

	if id, ok := accountID.(string); ok {
		return id, true
	}

	return "", false
}
