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
	"github.com/jwtauth/jwt-auth-service/internal/infra/logger"
	"github.com/jwtauth/jwt-auth-service/internal/infra/security"
	"github.com/jwtauth/jwt-auth-service/internal/repository"
)

var (
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords so responses do not reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountInvalid indicates the account exists and the password
	// matched but the account state forbids login.
	ErrAccountInvalid = errors.New("account is not in a valid state")
	// ErrLockedOut indicates the client IP exceeded the failure threshold.
	ErrLockedOut = errors.New("too many failed attempts, try again later")
	// ErrInvalidRefreshToken covers malformed, unknown, revoked, and
	// wrong-type refresh tokens uniformly.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken indicates the refresh token is past expiry.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	// ErrInvalidAccessToken indicates the access token failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token is past expiry.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrPasswordMismatch indicates the new password and its confirmation
	// differ.
	ErrPasswordMismatch = errors.New("new password and confirmation do not match")
	// ErrPasswordPolicyViolation indicates the new password fails policy.
	ErrPasswordPolicyViolation = errors.New("password does not meet policy")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
)

const (
	failureReasonUnknownUser  = "unknown_user"
	failureReasonBadPassword  = "bad_password"
	failureReasonAccountState = "account_state"
	failureReasonLockedOut    = "locked_out"
	reasonLogoutAll           = "logout_all"
	reasonPasswordChange      = "password_change"
)

// AuthService implements the authentication flows: login, refresh,
// logout, and password change. It composes the throttle, the token service,
// and the persistence ports.
type AuthService struct {
	users     port.UserRepository
	attempts  port.LoginAttemptRepository
	tokens    *TokenService
	throttle  *LoginThrottle
	validator *security.PasswordValidator
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	attempts port.LoginAttemptRepository,
	tokens *TokenService,
	throttle *LoginThrottle,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) (*AuthService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if throttle == nil {
		return nil, fmt.Errorf("login throttle is required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		users:     users,
		attempts:  attempts,
		tokens:    tokens,
		throttle:  throttle,
		validator: validator,
		events:    events,
		logger:    log,
		now:       time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login authenticates the user and returns a fresh token pair. The identifier
// may be either the username or the registered email. The throttle is
// consulted before credentials are ever checked, and a lockout response does
// not disclose whether the credentials were valid.
func (s *AuthService) Login(ctx context.Context, identifier, password string, meta domain.ClientMeta) (*domain.TokenPair, error) {
	clientKey := meta.IP

	if !s.throttle.IsAllowed(clientKey) {
		s.logger.Warn("login rejected, client locked out",
			zap.String("ip", logger.MaskIP(clientKey)),
		)
		s.recordAttempt(ctx, domain.NewFailedAttempt(
			uuid.NewString(), identifier, meta.IP, meta.UserAgent, failureReasonLockedOut, s.now().UTC(),
		))
		return nil, ErrLockedOut
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.registerFailure(ctx, identifier, meta, failureReasonUnknownUser)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if status := domain.EvaluateAccountStatus(*user); status != domain.AccountActive {
		s.logger.Warn("login rejected, account not active",
			zap.String("username", user.Username),
			zap.String("status", string(status)),
		)
		s.registerFailure(ctx, identifier, meta, failureReasonAccountState)
		return nil, ErrAccountInvalid
	}

	match, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !match {
		s.registerFailure(ctx, identifier, meta, failureReasonBadPassword)
		return nil, ErrInvalidCredentials
	}

	s.throttle.RecordSuccess(clientKey)

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.Username, now); err != nil {
		s.logger.Warn("update last login failed", zap.Error(err))
	}
	s.recordAttempt(ctx, domain.NewSuccessfulAttempt(
		uuid.NewString(), user.Username, meta.IP, meta.UserAgent, now,
	))

	pair, err := s.tokens.IssuePair(ctx, user.Username, user.Role, meta)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		event := domain.LoginSucceededEvent{
			EventID:   uuid.NewString(),
			Username:  user.Username,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			At:        now,
		}
		if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
			s.logger.Warn("publish login succeeded event failed", zap.Error(err))
		}
	}

	return pair, nil
}

// registerFailure updates the throttle, writes the audit row, and emits the
// failure and lockout events as appropriate.
func (s *AuthService) registerFailure(ctx context.Context, username string, meta domain.ClientMeta, reason string) {
	now := s.now().UTC()
	failures, lockedNow := s.throttle.RecordFailure(meta.IP)

	s.recordAttempt(ctx, domain.NewFailedAttempt(
		uuid.NewString(), username, meta.IP, meta.UserAgent, reason, now,
	))

	if s.events != nil {
		event := domain.LoginFailedEvent{
			EventID:  uuid.NewString(),
			Username: username,
			Reason:   reason,
			IP:       meta.IP,
			At:       now,
		}
		if err := s.events.PublishLoginFailed(ctx, event); err != nil {
			s.logger.Warn("publish login failed event failed", zap.Error(err))
		}
	}

	if !lockedNow {
		return
	}

	lockedUntil, _ := s.throttle.LockedUntil(meta.IP)
	s.logger.Warn("client locked out",
		zap.String("ip", logger.MaskIP(meta.IP)),
		zap.Int("failures", failures),
		zap.Time("locked_until", lockedUntil),
	)
	if s.tokens.metrics != nil {
		s.tokens.metrics.Lockouts.Inc()
	}
	if s.events != nil {
		event := domain.ClientLockedOutEvent{
			EventID:     uuid.NewString(),
			IP:          meta.IP,
			Failures:    failures,
			LockedUntil: lockedUntil,
			At:          now,
		}
		if err := s.events.PublishClientLockedOut(ctx, event); err != nil {
			s.logger.Warn("publish lockout event failed", zap.Error(err))
		}
	}
}

func (s *AuthService) recordAttempt(ctx context.Context, attempt domain.LoginAttempt) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Record(ctx, attempt); err != nil {
		s.logger.Warn("record login attempt failed", zap.Error(err))
	}
}

// Refresh rotates a refresh token into a new pair. The presented token is
// re-validated against the store, the owning account must still be active,
// and redemption is at-most-once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta domain.ClientMeta) (*domain.TokenPair, error) {
	username, err := s.tokens.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if status := domain.EvaluateAccountStatus(*user); status != domain.AccountActive {
		s.logger.Warn("refresh rejected, account not active",
			zap.String("username", user.Username),
			zap.String("status", string(status)),
		)
		return nil, ErrAccountInvalid
	}

	return s.tokens.Rotate(ctx, refreshToken, user.Username, user.Role, meta)
}

// Logout revokes the presented refresh token. The operation is best effort
// and idempotent: unknown, malformed, or already-revoked tokens succeed.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

// LogoutAll revokes every active refresh token for the user and returns
// how many were revoked.
func (s *AuthService) LogoutAll(ctx context.Context, username string) (int, error) {
	return s.tokens.RevokeAll(ctx, username, reasonLogoutAll)
}

// ChangePassword verifies the current password, enforces the password
// policy on the new one, persists the new hash, and revokes every active
// refresh token so stolen sessions do not survive a password change.
func (s *AuthService) ChangePassword(ctx context.Context, username, currentPassword, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	match, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !match {
		return ErrInvalidCredentials
	}

	policy := security.NewPasswordValidator(
		security.RequireDifferentFrom(currentPassword),
	)
	if err := policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrPasswordPolicyViolation, err)
	}
	if err := s.validator.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrPasswordPolicyViolation, err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, username, hash, now); err != nil {
		return fmt.Errorf("persist password: %w", err)
	}

	revoked, err := s.tokens.RevokeAll(ctx, username, reasonPasswordChange)
	if err != nil {
		// The password is already changed at this point; report the
		// revocation failure rather than pretending the change failed.
		return fmt.Errorf("revoke sessions after password change: %w", err)
	}

	s.logger.Info("password changed",
		zap.String("username", username),
		zap.Int("sessions_revoked", revoked),
	)

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			EventID:       uuid.NewString(),
			Username:      username,
			TokensRevoked: revoked,
			At:            now,
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed event failed", zap.Error(err))
		}
	}

	return nil
}

// ValidateAccessToken parses and validates an access token and returns the
// subject and role claim for the request context.
func (s *AuthService) ValidateAccessToken(token string) (string, string, error) {
	claims, err := s.tokens.codec.Parse(token)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return "", "", ErrExpiredAccessToken
		}
		return "", "", ErrInvalidAccessToken
	}
	if !claims.IsAccess() {
		return "", "", ErrInvalidAccessToken
	}
	return claims.Subject, claims.Role, nil
}
