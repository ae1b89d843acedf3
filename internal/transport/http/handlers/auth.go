package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/expense-tracker-iam/internal/core/port"
	"github.com/arklim/expense-tracker-iam/internal/transport/http/middleware"
	"github.com/arklim/expense-tracker-iam/internal/usecase"
)

const (
	msgSignupRequired    = "Email and password are required"
	msgEmailRegistered   = "Email already registered"
	msgInvalidVerify     = "Invalid verification token"
	msgInvalidLogin      = "Invalid email or password"
	msgVerifyFirst       = "Please verify your email before logging in"
	msgEmailRequired     = "Email is required"
	msgTokenRequired     = "Token is required"
	msgResetRequired     = "Token and new password are required"
	msgInvalidResetToken = "Invalid or expired token"
	msgInternal          = "internal server error"
)

// AccountLifecycle is the account service surface used by the HTTP layer.
type AccountLifecycle interface {
	Signup(ctx context.Context, in usecase.SignupInput) (usecase.MessageResult, error)
	VerifyEmail(ctx context.Context, in usecase.VerifyEmailInput) (usecase.MessageResult, error)
	Login(ctx context.Context, in usecase.LoginInput) (usecase.LoginResult, error)
	RequestPasswordReset(ctx context.Context, in usecase.PasswordResetRequestInput) (usecase.MessageResult, error)
	CompletePasswordReset(ctx context.Context, in usecase.PasswordResetCompleteInput) (usecase.MessageResult, error)
	ValidateSession(ctx context.Context, token string) (port.SessionIdentity, error)
}

// AuthHandler exposes the account lifecycle endpoints.
type AuthHandler struct {
	accounts AccountLifecycle
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(accounts AccountLifecycle) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// RegisterRoutes binds the auth routes to r.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/signup", h.signup)
	r.POST("/verify-email", h.verifyEmail)
	r.POST("/login", h.login)
	r.POST("/forgot-password", h.forgotPassword)
	r.POST("/reset-password", h.resetPassword)
	r.GET("/session", middleware.RequireAuth(h.accounts), h.session)
}

func (h *AuthHandler) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgSignupRequired))
		return
	}

	res, err := h.accounts.Signup(c.Request.Context(), usecase.SignupInput{Email: req.Email, Password: req.Password})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: msgSignupRequired},
			{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: msgEmailRegistered},
		}, http.StatusInternalServerError, msgInternal)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: res.Message})
}

func (h *AuthHandler) verifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgTokenRequired))
		return
	}

	res, err := h.accounts.VerifyEmail(c.Request.Context(), usecase.VerifyEmailInput{Token: req.Token})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: msgTokenRequired},
			{Err: usecase.ErrInvalidToken, Status: http.StatusBadRequest, Message: msgInvalidVerify},
		}, http.StatusInternalServerError, msgInternal)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: res.Message})
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgSignupRequired))
		return
	}

	res, err := h.accounts.Login(c.Request.Context(), usecase.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: msgSignupRequired},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: msgInvalidLogin},
			{Err: usecase.ErrEmailNotVerified, Status: http.StatusForbidden, Message: msgVerifyFirst},
		}, http.StatusInternalServerError, msgInternal)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: res.Token, TokenType: "Bearer", ExpiresAt: res.ExpiresAt})
}

func (h *AuthHandler) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgEmailRequired))
		return
	}

	res, err := h.accounts.RequestPasswordReset(c.Request.Context(), usecase.PasswordResetRequestInput{Email: req.Email})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: msgEmailRequired},
		}, http.StatusInternalServerError, msgInternal)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: res.Message})
}

func (h *AuthHandler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, msgResetRequired))
		return
	}

	res, err := h.accounts.CompletePasswordReset(c.Request.Context(), usecase.PasswordResetCompleteInput{
		Token:       req.Token,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrValidation, Status: http.StatusBadRequest, Message: msgResetRequired},
			{Err: usecase.ErrInvalidOrExpiredToken, Status: http.StatusBadRequest, Message: msgInvalidResetToken},
		}, http.StatusInternalServerError, msgInternal)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: res.Message})
}

func (h *AuthHandler) session(c *gin.Context) {
	identity, ok := middleware.GetSessionIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{AccountID: identity.AccountID, Email: identity.Email})
}
