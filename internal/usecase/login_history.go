package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/core/port"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	suspiciousFailureWindow    = time.Hour
	suspiciousFailureThreshold = 10
)

// LoginHistoryService reads the durable login audit trail.
type LoginHistoryService struct {
	attempts port.LoginAttemptRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewLoginHistoryService constructs a LoginHistoryService instance.
func NewLoginHistoryService(attempts port.LoginAttemptRepository, log *zap.Logger) (*LoginHistoryService, error) {
	if attempts == nil {
		return nil, fmt.Errorf("login attempt repository is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginHistoryService{
		attempts: attempts,
		logger:   log,
		now:      time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *LoginHistoryService) WithClock(now func() time.Time) *LoginHistoryService {
	if now != nil {
		s.now = now
	}
	return s
}

// ListByUser returns the user's recent login attempts, newest first.
func (s *LoginHistoryService) ListByUser(ctx context.Context, username string, limit int) ([]domain.LoginAttempt, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	attempts, err := s.attempts.ListByUser(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("list login attempts: %w", err)
	}
	return attempts, nil
}

// IsIPSuspicious reports whether the IP accumulated enough recent failures
// to be worth flagging: ten or more within the last hour.
func (s *LoginHistoryService) IsIPSuspicious(ctx context.Context, ip string) (bool, error) {
	since := s.now().UTC().Add(-suspiciousFailureWindow)
	count, err := s.attempts.CountFailedByIPSince(ctx, ip, since)
	if err != nil {
		return false, fmt.Errorf("count failed attempts: %w", err)
	}
	return count >= suspiciousFailureThreshold, nil
}

// PruneOlderThan deletes audit rows older than the retention window and
// returns how many were removed.
func (s *LoginHistoryService) PruneOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	threshold := s.now().UTC().Add(-retention)
	count, err := s.attempts.DeleteBefore(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune login attempts: %w", err)
	}
	if count > 0 {
		s.logger.Info("pruned login attempts", zap.Int("count", count))
	}
	return count, nil
}
