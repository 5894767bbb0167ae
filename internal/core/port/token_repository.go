package port

import (
	"context"
	"time"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
)

// RefreshTokenRepository manages persisted refresh token records. A record is
// active when it is neither revoked nor past its stored expiry date; queries
// taking a `now` evaluate activity against that instant.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error)
	GetActiveByToken(ctx context.Context, token string, now time.Time) (*domain.RefreshToken, error)
	ListActiveByUser(ctx context.Context, username string, now time.Time) ([]domain.RefreshToken, error)
	CountActiveByUser(ctx context.Context, username string, now time.Time) (int, error)
	ListByUser(ctx context.Context, username string) ([]domain.RefreshToken, error)

	// Revoke flips a single unrevoked record and reports whether exactly one
	// row changed. The conditional update is what serializes concurrent
	// rotations of the same token string.
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAllByUser(ctx context.Context, username string) (int, error)
	TouchLastUsed(ctx context.Context, token string, at time.Time) error

	// RevokeExpired flips every unrevoked record whose expiry date has
	// elapsed; DeleteRevokedBefore hard-deletes revoked records older than
	// the retention threshold. The two passes are deliberately decoupled.
	RevokeExpired(ctx context.Context, now time.Time) (int, error)
	DeleteRevokedBefore(ctx context.Context, threshold time.Time) (int, error)

	// InTx runs fn against a repository view bound to a single transaction,
	// committing when fn returns nil and rolling back otherwise.
	// Implementations without transactional storage run fn directly.
	InTx(ctx context.Context, fn func(RefreshTokenRepository) error) error
}
