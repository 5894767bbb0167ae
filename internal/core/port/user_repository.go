package port

import (
	"context"
	"time"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByUsernameOrEmail(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	UpdatePassword(ctx context.Context, username string, passwordHash string, changedAt time.Time) error
	SetEnabled(ctx context.Context, username string, enabled bool) error
	SetLocked(ctx context.Context, username string, locked bool) error
}
