package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups the concrete PostgreSQL repository implementations.
type Repositories struct {
	Users         *UserRepository
	RefreshTokens *RefreshTokenRepository
	LoginAttempts *LoginAttemptRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(pool),
		RefreshTokens: NewRefreshTokenRepository(pool),
		LoginAttempts: NewLoginAttemptRepository(pool),
	}
}
