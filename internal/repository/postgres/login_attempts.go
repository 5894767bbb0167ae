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
)

const loginAttemptsTable = "auth.login_attempts"

var loginAttemptColumns = []string{
	"id",
	"username",
	"succeeded",
	"failure_reason",
	"ip",
	"user_agent",
	"attempted_at",
}

// LoginAttemptRepository implements port.LoginAttemptRepository using
// PostgreSQL.
type LoginAttemptRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewLoginAttemptRepository wires a login attempt repository backed by any
// executor that satisfies pgExecutor.
func NewLoginAttemptRepository(exec pgExecutor) *LoginAttemptRepository {
	repo := &LoginAttemptRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Record inserts a login attempt audit row.
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt domain.LoginAttempt) error {
	stmt, args, err := r.builder.Insert(loginAttemptsTable).
		Columns(loginAttemptColumns...).
		Values(
			attempt.ID,
			attempt.Username,
			attempt.Succeeded,
			nullIfEmpty(attempt.FailureReason),
			nullIfEmpty(attempt.IP),
			nullIfEmpty(attempt.UserAgent),
			attempt.AttemptedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}

	return nil
}

// ListByUser returns the user's most recent attempts, newest first.
func (r *LoginAttemptRepository) ListByUser(ctx context.Context, username string, limit int) ([]domain.LoginAttempt, error) {
	stmt, args, err := r.builder.Select(loginAttemptColumns...).
		From(loginAttemptsTable).
		Where(squirrel.Eq{"username": username}).
		OrderBy("attempted_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list login attempts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.LoginAttempt
	for rows.Next() {
		var (
			attempt       domain.LoginAttempt
			failureReason sql.NullString
			ip            sql.NullString
			userAgent     sql.NullString
		)
		if err := rows.Scan(
			&attempt.ID,
			&attempt.Username,
			&attempt.Succeeded,
			&failureReason,
			&ip,
			&userAgent,
			&attempt.AttemptedAt,
		); err != nil {
			if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		if failureReason.Valid {
			attempt.FailureReason = failureReason.String
		}
		if ip.Valid {
			attempt.IP = ip.String
		}
		if userAgent.Valid {
			attempt.UserAgent = userAgent.String
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate login attempts: %w", err)
	}

	return attempts, nil
}

// CountFailedByIPSince counts failed attempts from the IP newer than the
// given instant.
func (r *LoginAttemptRepository) CountFailedByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	stmt, args, err := r.builder.Select("count(*)").
		From(loginAttemptsTable).
		Where(squirrel.Eq{"ip": ip, "succeeded": false}).
		Where(squirrel.Gt{"attempted_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count failed attempts sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed attempts: %w", err)
	}

	return count, nil
}

// DeleteBefore removes audit rows older than the threshold.
func (r *LoginAttemptRepository) DeleteBefore(ctx context.Context, threshold time.Time) (int, error) {
	stmt, args, err := r.builder.Delete(loginAttemptsTable).
		Where(squirrel.Lt{"attempted_at": threshold}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete login attempts sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete login attempts: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
