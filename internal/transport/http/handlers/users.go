package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwtauth/jwt-auth-service/internal/transport/http/middleware"
	"github.com/jwtauth/jwt-auth-service/internal/usecase"
)

// UserHandler exposes registration and self-service account endpoints.
type UserHandler struct {
	users   *usecase.UserService
	tokens  *usecase.TokenService
	history *usecase.LoginHistoryService
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users *usecase.UserService, tokens *usecase.TokenService, history *usecase.LoginHistoryService) *UserHandler {
	return &UserHandler{
		users:   users,
		tokens:  tokens,
		history: history,
	}
}

// RegisterPublicRoutes binds routes that do not require authentication.
func (h *UserHandler) RegisterPublicRoutes(r *gin.RouterGroup, registerMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, registerMiddlewares...)
	chain = append(chain, h.register)
	r.POST("/register", chain...)
}

// RegisterProtectedRoutes binds routes that operate on the authenticated account.
func (h *UserHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.me)
	r.GET("/me/sessions", h.sessions)
	r.GET("/me/logins", h.loginHistory)
}

func (h *UserHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	username := strings.TrimSpace(req.Username)

	user, err := h.users.Register(c.Request.Context(), username, req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(user))
}

func (h *UserHandler) me(c *gin.Context) {
	username, ok := middleware.GetAuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, err := h.users.Get(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, usecase.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load user"))
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h *UserHandler) sessions(c *gin.Context) {
	username, ok := middleware.GetAuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	active, err := h.tokens.ListSessions(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list sessions"))
		return
	}

	sessions := make([]SessionResponse, 0, len(active))
	for _, token := range active {
		sessions = append(sessions, newSessionResponse(token))
	}

	c.JSON(http.StatusOK, SessionListResponse{
		Sessions: sessions,
		Total:    len(sessions),
	})
}

func (h *UserHandler) loginHistory(c *gin.Context) {
	username, ok := middleware.GetAuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	attempts, err := h.history.ListByUser(c.Request.Context(), username, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to load login history"))
		return
	}

	history := make([]LoginAttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		history = append(history, newLoginAttemptResponse(attempt))
	}

	c.JSON(http.StatusOK, LoginHistoryResponse{
		Attempts: history,
		Total:    len(history),
	})
}
