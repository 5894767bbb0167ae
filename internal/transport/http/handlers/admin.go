package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwtauth/jwt-auth-service/internal/usecase"
)

// AdminHandler exposes administrative account-state endpoints. Routes are
// expected to be mounted behind an admin role check.
type AdminHandler struct {
	users *usecase.UserService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(users *usecase.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

// RegisterRoutes binds the administrative routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users/:username", h.getUser)
	r.POST("/users/:username/lock", h.lock)
	r.POST("/users/:username/unlock", h.unlock)
	r.POST("/users/:username/disable", h.disable)
	r.POST("/users/:username/enable", h.enable)
}

func (h *AdminHandler) getUser(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username is required"))
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

func (h *AdminHandler) lock(c *gin.Context) {
	h.mutateAccountState(c, h.users.Lock, "account locked")
}

func (h *AdminHandler) unlock(c *gin.Context) {
	h.mutateAccountState(c, h.users.Unlock, "account unlocked")
}

func (h *AdminHandler) disable(c *gin.Context) {
	h.mutateAccountState(c, h.users.Disable, "account disabled")
}

func (h *AdminHandler) enable(c *gin.Context) {
	h.mutateAccountState(c, h.users.Enable, "account enabled")
}

func (h *AdminHandler) mutateAccountState(c *gin.Context, op func(ctx context.Context, username string) error, message string) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username is required"))
		return
	}

	if err := op(c.Request.Context(), username); err != nil {
		if errors.Is(err, usecase.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to update account state"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: message})
}
