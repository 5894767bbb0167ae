package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/core/port"
	"github.com/jwtauth/jwt-auth-service/internal/infra/config"
	"github.com/jwtauth/jwt-auth-service/internal/infra/security"
	"github.com/jwtauth/jwt-auth-service/internal/infra/telemetry"
	"github.com/jwtauth/jwt-auth-service/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultMaxActiveTokens = 5
	defaultRetention       = 24 * time.Hour

	bearerTokenType = "Bearer"
)

// TokenService orchestrates access/refresh pair issuance, rotation, and the
// per-user active-token population.
type TokenService struct {
	cfg     *config.AppConfig
	codec   *security.TokenCodec
	tokens  port.RefreshTokenRepository
	events  port.EventPublisher
	metrics *telemetry.AuthMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(
	cfg *config.AppConfig,
	codec *security.TokenCodec,
	tokens port.RefreshTokenRepository,
	events port.EventPublisher,
	log *zap.Logger,
) (*TokenService, error) {
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("refresh token repository is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &TokenService{
		cfg:    cfg,
		codec:  codec,
		tokens: tokens,
		events: events,
		logger: log,
		now:    time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// WithMetrics attaches the Prometheus collectors for token activity.
func (s *TokenService) WithMetrics(metrics *telemetry.AuthMetrics) *TokenService {
	s.metrics = metrics
	return s
}

func (s *TokenService) accessTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.AccessTokenTTL > 0 {
		return s.cfg.JWT.AccessTokenTTL
	}
	return defaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.RefreshTokenTTL > 0 {
		return s.cfg.JWT.RefreshTokenTTL
	}
	return defaultRefreshTokenTTL
}

func (s *TokenService) maxActive() int {
	if s.cfg != nil && s.cfg.Tokens.MaxActivePerUser > 0 {
		return s.cfg.Tokens.MaxActivePerUser
	}
	return defaultMaxActiveTokens
}

func (s *TokenService) retention() time.Duration {
	if s.cfg != nil && s.cfg.Tokens.RetentionPeriod > 0 {
		return s.cfg.Tokens.RetentionPeriod
	}
	return defaultRetention
}

// IssuePair mints an access/refresh token pair for the user and persists
// the refresh token. When the user already holds the maximum number of
// active refresh tokens, the oldest one is revoked first so eviction is
// strictly first-in-first-out.
func (s *TokenService) IssuePair(ctx context.Context, username string, role domain.Role, meta domain.ClientMeta) (*domain.TokenPair, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	now := s.now().UTC()
	accessTTL := s.accessTTL()

	accessToken, err := s.codec.Issue(username, role.Authority(), security.TokenTypeAccess, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.codec.Issue(username, "", security.TokenTypeRefresh, s.refreshTTL())
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	record := domain.RefreshToken{
		ID:         uuid.NewString(),
		Token:      refreshToken,
		Username:   username,
		ExpiryDate: now.Add(s.refreshTTL()),
		CreatedAt:  now,
		UserAgent:  meta.UserAgent,
		ClientIP:   meta.IP,
	}

	// Cap check and insert share one transaction so concurrent logins for
	// the same user cannot both pass the count and overshoot the cap.
	err = s.tokens.InTx(ctx, func(tokens port.RefreshTokenRepository) error {
		if err := s.enforceActiveCap(ctx, tokens, username, now); err != nil {
			return err
		}
		if err := tokens.Create(ctx, record); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.TokensIssued.WithLabelValues("access").Inc()
		s.metrics.TokensIssued.WithLabelValues("refresh").Inc()
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    bearerTokenType,
		Username:     username,
		Role:         role.Authority(),
		ExpiresIn:    int64(accessTTL.Seconds()),
		IssuedAt:     now,
		ExpiresAt:    now.Add(accessTTL),
	}, nil
}

// enforceActiveCap revokes the oldest active tokens when the user is at the
// limit. Runs against the transaction-bound repository view handed out by
// InTx so the count stays valid until the new record is inserted.
func (s *TokenService) enforceActiveCap(ctx context.Context, tokens port.RefreshTokenRepository, username string, now time.Time) error {
	count, err := tokens.CountActiveByUser(ctx, username, now)
	if err != nil {
		return fmt.Errorf("count active tokens: %w", err)
	}
	if count < s.maxActive() {
		return nil
	}

	active, err := tokens.ListActiveByUser(ctx, username, now)
	if err != nil {
		return fmt.Errorf("list active tokens: %w", err)
	}
	if len(active) == 0 {
		return nil
	}

	evicted := 0
	for i := 0; i <= len(active)-s.maxActive() && i < len(active); i++ {
		if _, err := tokens.Revoke(ctx, active[i].Token); err != nil {
			return fmt.Errorf("revoke oldest token: %w", err)
		}
		evicted++
	}

	if evicted > 0 {
		if s.metrics != nil {
			s.metrics.TokensRevoked.WithLabelValues("cap_eviction").Add(float64(evicted))
		}
		s.logger.Info("evicted oldest refresh tokens",
			zap.String("username", username),
			zap.Int("count", evicted),
		)
	}

	return nil
}

// ValidateRefresh checks a presented refresh token against both the codec
// and the store, and returns the owning username. Signature, type, and
// store mismatches collapse into ErrInvalidRefreshToken so callers cannot
// distinguish which check failed.
func (s *TokenService) ValidateRefresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.codec.Parse(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return "", ErrExpiredRefreshToken
		}
		return "", ErrInvalidRefreshToken
	}
	if !claims.IsRefresh() {
		return "", ErrInvalidRefreshToken
	}

	now := s.now().UTC()
	record, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("lookup refresh token: %w", err)
	}

	if record.Revoked {
		return "", ErrInvalidRefreshToken
	}
	if record.IsExpired(now) {
		return "", ErrExpiredRefreshToken
	}

	return record.Username, nil
}

// Rotate redeems a refresh token for a new pair. The old record is revoked
// before the new pair is issued via a conditional update, so a token can be
// redeemed at most once: the losing side of a concurrent replay observes
// zero affected rows and fails.
func (s *TokenService) Rotate(ctx context.Context, oldToken string, username string, role domain.Role, meta domain.ClientMeta) (*domain.TokenPair, error) {
	now := s.now().UTC()

	revoked, err := s.tokens.Revoke(ctx, oldToken)
	if err != nil {
		return nil, fmt.Errorf("revoke rotated token: %w", err)
	}
	if !revoked {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.tokens.TouchLastUsed(ctx, oldToken, now); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("touch last used failed", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.TokensRevoked.WithLabelValues("rotation").Inc()
	}

	return s.IssuePair(ctx, username, role, meta)
}

// Revoke marks a presented token revoked if it is identifiably an active
// refresh token. Revoking an unknown or already-revoked token is a no-op,
// not an error.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := s.codec.Parse(token)
	if err != nil || !claims.IsRefresh() {
		return nil
	}

	revoked, err := s.tokens.Revoke(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if revoked && s.metrics != nil {
		s.metrics.TokensRevoked.WithLabelValues("logout").Inc()
	}

	return nil
}

// RevokeAll bulk-revokes every active refresh token the user holds and
// returns how many were affected.
func (s *TokenService) RevokeAll(ctx context.Context, username, reason string) (int, error) {
	count, err := s.tokens.RevokeAllByUser(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("revoke all tokens: %w", err)
	}

	if count > 0 {
		if s.metrics != nil {
			s.metrics.TokensRevoked.WithLabelValues(reason).Add(float64(count))
		}
		if s.events != nil {
			event := domain.TokensRevokedEvent{
				EventID:  uuid.NewString(),
				Username: username,
				Count:    count,
				Reason:   reason,
				At:       s.now().UTC(),
			}
			if err := s.events.PublishTokensRevoked(ctx, event); err != nil {
				s.logger.Warn("publish tokens revoked event failed", zap.Error(err))
			}
		}
	}

	return count, nil
}

// ListSessions returns the user's refresh token records ordered by last use.
func (s *TokenService) ListSessions(ctx context.Context, username string) ([]domain.RefreshToken, error) {
	records, err := s.tokens.ListByUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	return records, nil
}

// SweepExpired flips every unrevoked record past its expiry date to
// revoked. First phase of the two-phase maintenance cycle.
func (s *TokenService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	count, err := s.tokens.RevokeExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("revoke expired tokens: %w", err)
	}

	if count > 0 {
		if s.metrics != nil {
			s.metrics.SweepRevoked.Add(float64(count))
		}
		s.logger.Info("revoked expired refresh tokens", zap.Int("count", count))
	}

	return count, nil
}

// PurgeRevoked hard-deletes revoked records whose expiry date is older than
// the retention threshold. Deletion is decoupled from revocation to keep a
// short audit window.
func (s *TokenService) PurgeRevoked(ctx context.Context) (int, error) {
	threshold := s.now().UTC().Add(-s.retention())
	count, err := s.tokens.DeleteRevokedBefore(ctx, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete revoked tokens: %w", err)
	}

	if count > 0 {
		if s.metrics != nil {
			s.metrics.SweepDeleted.Add(float64(count))
		}
		s.logger.Info("purged revoked refresh tokens",
			zap.Int("count", count),
			zap.Time("threshold", threshold),
		)
	}

	return count, nil
}
