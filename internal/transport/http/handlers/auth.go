package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwtauth/jwt-auth-service/internal/transport/http/middleware"
	"github.com/jwtauth/jwt-auth-service/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login and refresh handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares, refreshMiddlewares []gin.HandlerFunc) {
	r.POST("/login", withHandler(loginMiddlewares, h.login)...)
	r.POST("/refresh", withHandler(refreshMiddlewares, h.refresh)...)
	r.POST("/logout", h.logout)
	r.POST("/logout-all", middleware.RequireAuth(h.auth), h.logoutAll)
	r.POST("/password/change", middleware.RequireAuth(h.auth), h.changePassword)
}

func withHandler(middlewares []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	chain := append([]gin.HandlerFunc{}, middlewares...)
	return append(chain, handler)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	username := strings.TrimSpace(req.Username)
	meta := middleware.ClientMeta(c)

	pair, err := h.auth.Login(c.Request.Context(), username, req.Password, meta)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrLockedOut):
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many failed attempts, try again later"))
		case errors.Is(err, usecase.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
		case errors.Is(err, usecase.ErrAccountInvalid):
			c.JSON(http.StatusForbidden, NewErrorResponse(c, "account is not active"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
		}
		return
	}

	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req TokenRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	meta := middleware.ClientMeta(c)

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, meta)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrExpiredRefreshToken):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "refresh token expired"))
		case errors.Is(err, usecase.ErrInvalidRefreshToken):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid refresh token"))
		case errors.Is(err, usecase.ErrAccountInvalid):
			c.JSON(http.StatusForbidden, NewErrorResponse(c, "account is not active"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to refresh token"))
		}
		return
	}

	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

// logout revokes the presented refresh token. Unknown or already revoked
// tokens still return 204 so the endpoint stays idempotent.
func (h *AuthHandler) logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) logoutAll(c *gin.Context) {
	username, ok := middleware.GetAuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	revoked, err := h.auth.LogoutAll(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke sessions"))
		return
	}

	c.JSON(http.StatusOK, LogoutAllResponse{RevokedCount: revoked})
}

func (h *AuthHandler) changePassword(c *gin.Context) {
	username, ok := middleware.GetAuthenticatedUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid password change payload"))
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), username, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "new password and confirmation do not match"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusBadRequest, Message: "current password is incorrect"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password changed, all sessions revoked"})
}
