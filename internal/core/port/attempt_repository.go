package port

import (
	"context"
	"time"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
)

// LoginAttemptRepository stores the durable login audit trail.
type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt domain.LoginAttempt) error
	ListByUser(ctx context.Context, username string, limit int) ([]domain.LoginAttempt, error)
	CountFailedByIPSince(ctx context.Context, ip string, since time.Time) (int, error)
	DeleteBefore(ctx context.Context, threshold time.Time) (int, error)
}
