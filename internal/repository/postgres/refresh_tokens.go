package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/core/port"
	"github.com/jwtauth/jwt-auth-service/internal/repository"
)

const refreshTokensTable = "auth.refresh_tokens"

var refreshTokenColumns = []string{
	"id",
	"token",
	"username",
	"expiry_date",
	"revoked",
	"created_at",
	"last_used_at",
	"user_agent",
	"client_ip",
}

// RefreshTokenRepository implements port.RefreshTokenRepository using
// PostgreSQL.
type RefreshTokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRefreshTokenRepository wires a refresh token repository backed by any
// executor that satisfies pgExecutor.
func NewRefreshTokenRepository(exec pgExecutor) *RefreshTokenRepository {
	repo := &RefreshTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *RefreshTokenRepository) WithTx(tx pgx.Tx) *RefreshTokenRepository {
	if tx == nil {
		return r
	}
	return &RefreshTokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// InTx runs fn against a transaction-bound view of the repository. When the
// executor cannot open transactions (it already is one), fn runs directly.
func (r *RefreshTokenRepository) InTx(ctx context.Context, fn func(port.RefreshTokenRepository) error) error {
	starter, ok := r.exec.(txStarter)
	if !ok {
		return fn(r)
	}

	tx, err := starter.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(r.WithTx(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Create inserts a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := r.builder.Insert(refreshTokensTable).
		Columns(refreshTokenColumns...).
		Values(
			token.ID,
			token.Token,
			token.Username,
			token.ExpiryDate,
			token.Revoked,
			token.CreatedAt,
			token.LastUsedAt,
			nullIfEmpty(token.UserAgent),
			nullIfEmpty(token.ClientIP),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

func (r *RefreshTokenRepository) scanToken(row pgx.Row) (*domain.RefreshToken, error) {
	var (
		token      domain.RefreshToken
		lastUsedAt sql.NullTime
		userAgent  sql.NullString
		clientIP   sql.NullString
	)

	if err := row.Scan(
		&token.ID,
		&token.Token,
		&token.Username,
		&token.ExpiryDate,
		&token.Revoked,
		&token.CreatedAt,
		&lastUsedAt,
		&userAgent,
		&clientIP,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	if lastUsedAt.Valid {
		at := lastUsedAt.Time
		token.LastUsedAt = &at
	}
	if userAgent.Valid {
		token.UserAgent = userAgent.String
	}
	if clientIP.Valid {
		token.ClientIP = clientIP.String
	}

	return &token, nil
}

// GetByToken retrieves a record by its token string regardless of state.
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshTokenColumns...).
		From(refreshTokensTable).
		Where(squirrel.Eq{"token": token}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	return r.scanToken(r.exec.QueryRow(ctx, stmt, args...))
}

// GetActiveByToken retrieves a record only if it is unrevoked and unexpired
// at the given instant.
func (r *RefreshTokenRepository) GetActiveByToken(ctx context.Context, token string, now time.Time) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshTokenColumns...).
		From(refreshTokensTable).
		Where(squirrel.Eq{"token": token, "revoked": false}).
		Where(squirrel.Gt{"expiry_date": now}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active refresh token sql: %w", err)
	}

	return r.scanToken(r.exec.QueryRow(ctx, stmt, args...))
}

// ListActiveByUser returns the user's active tokens ordered oldest first,
// which is the eviction order when the per-user cap is enforced.
func (r *RefreshTokenRepository) ListActiveByUser(ctx context.Context, username string, now time.Time) ([]domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshTokenColumns...).
		From(refreshTokensTable).
		Where(squirrel.Eq{"username": username, "revoked": false}).
		Where(squirrel.Gt{"expiry_date": now}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list active tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// CountActiveByUser counts the user's active tokens.
func (r *RefreshTokenRepository) CountActiveByUser(ctx context.Context, username string, now time.Time) (int, error) {
	stmt, args, err := r.builder.Select("count(*)").
		From(refreshTokensTable).
		Where(squirrel.Eq{"username": username, "revoked": false}).
		Where(squirrel.Gt{"expiry_date": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count active tokens sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active tokens: %w", err)
	}

	return count, nil
}

// ListByUser returns every record the user holds, most recently used first.
// Never-used sessions sort after used ones, newest creation first.
func (r *RefreshTokenRepository) ListByUser(ctx context.Context, username string) ([]domain.RefreshToken, error) {
	stmt, args, err := r.builder.Select(refreshTokenColumns...).
		From(refreshTokensTable).
		Where(squirrel.Eq{"username": username}).
		OrderBy("last_used_at DESC NULLS LAST", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *RefreshTokenRepository) collect(rows pgx.Rows) ([]domain.RefreshToken, error) {
	var tokens []domain.RefreshToken
	for rows.Next() {
		token, err := r.scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh tokens: %w", err)
	}
	return tokens, nil
}

// Revoke flips a single unrevoked record. The revoked predicate makes the
// update conditional, so of two concurrent calls for the same token exactly
// one observes an affected row.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) (bool, error) {
	stmt, args, err := r.builder.Update(refreshTokensTable).
		Set("revoked", true).
		Where(squirrel.Eq{"token": token, "revoked": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build revoke token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// RevokeAllByUser flips every unrevoked record the user holds.
func (r *RefreshTokenRepository) RevokeAllByUser(ctx context.Context, username string) (int, error) {
	stmt, args, err := r.builder.Update(refreshTokensTable).
		Set("revoked", true).
		Where(squirrel.Eq{"username": username, "revoked": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke all tokens sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// TouchLastUsed stamps the record's last use time.
func (r *RefreshTokenRepository) TouchLastUsed(ctx context.Context, token string, at time.Time) error {
	stmt, args, err := r.builder.Update(refreshTokensTable).
		Set("last_used_at", at).
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch last used sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("touch last used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeExpired flips every unrevoked record past its expiry date.
func (r *RefreshTokenRepository) RevokeExpired(ctx context.Context, now time.Time) (int, error) {
	stmt, args, err := r.builder.Update(refreshTokensTable).
		Set("revoked", true).
		Where(squirrel.Eq{"revoked": false}).
		Where(squirrel.LtOrEq{"expiry_date": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke expired sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke expired tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// DeleteRevokedBefore hard-deletes revoked records whose expiry date is
// older than the threshold.
func (r *RefreshTokenRepository) DeleteRevokedBefore(ctx context.Context, threshold time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(refreshTokensTable).
		Where(squirrel.Eq{"revoked": true}).
		Where(squirrel.Lt{"expiry_date": threshold}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete revoked sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete revoked tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
