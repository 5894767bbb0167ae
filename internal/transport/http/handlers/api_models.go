package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/infra/logger"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPairResponse describes a freshly issued access/refresh token pair.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
}

// TokenRefreshRequest represents the payload to rotate a refresh token.
type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest carries the refresh token to revoke on logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutAllResponse summarises a bulk session revocation.
type LogoutAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=3,max=64"`
	Email           string `json:"email" binding:"omitempty,email"`
	Password        string `json:"password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
}

// PasswordChangeRequest captures a password change request body.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// UserResponse describes an account as returned by the API.
type UserResponse struct {
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	Role        string     `json:"role"`
	Enabled     bool       `json:"enabled"`
	Locked      bool       `json:"locked"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SessionResponse provides a compact view of one active refresh token.
// The token itself is never echoed back; only a masked hint is included.
type SessionResponse struct {
	ID         string     `json:"id"`
	TokenHint  string     `json:"token_hint"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	ClientIP   string     `json:"client_ip,omitempty"`
}

// SessionListResponse wraps a user's active sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// LoginAttemptResponse describes one audit record of an authentication attempt.
type LoginAttemptResponse struct {
	Succeeded     bool      `json:"succeeded"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IP            string    `json:"ip,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

// LoginHistoryResponse wraps a user's recent login attempts.
type LoginHistoryResponse struct {
	Attempts []LoginAttemptResponse `json:"attempts"`
	Total    int                    `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newTokenPairResponse(pair *domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		Username:     pair.Username,
		Role:         pair.Role,
	}
}

func newUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		Username:    user.Username,
		Email:       user.Email,
		Role:        string(user.Role),
		Enabled:     user.Enabled,
		Locked:      user.AccountLocked,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

func newSessionResponse(token domain.RefreshToken) SessionResponse {
	return SessionResponse{
		ID:         token.ID,
		TokenHint:  logger.MaskToken(token.Token),
		CreatedAt:  token.CreatedAt,
		ExpiresAt:  token.ExpiryDate,
		LastUsedAt: token.LastUsedAt,
		UserAgent:  token.UserAgent,
		ClientIP:   token.ClientIP,
	}
}

func newLoginAttemptResponse(attempt domain.LoginAttempt) LoginAttemptResponse {
	return LoginAttemptResponse{
		Succeeded:     attempt.Succeeded,
		FailureReason: attempt.FailureReason,
		IP:            attempt.IP,
		UserAgent:     attempt.UserAgent,
		AttemptedAt:   attempt.AttemptedAt,
	}
}
