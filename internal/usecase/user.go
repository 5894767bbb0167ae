package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/core/port"
	"github.com/jwtauth/jwt-auth-service/internal/infra/security"
	"github.com/jwtauth/jwt-auth-service/internal/repository"
)

// ErrUserNotFound indicates the target user does not exist.
var ErrUserNotFound = errors.New("user not found")

const (
	reasonAccountLocked   = "account_locked"
	reasonAccountDisabled = "account_disabled"
)

// UserService handles registration and administrative account state
// changes. Locking or disabling an account also revokes its sessions.
type UserService struct {
	users     port.UserRepository
	tokens    *TokenService
	validator *security.PasswordValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(
	users port.UserRepository,
	tokens *TokenService,
	validator *security.PasswordValidator,
	log *zap.Logger,
) (*UserService, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &UserService{
		users:     users,
		tokens:    tokens,
		validator: validator,
		logger:    log,
		now:       time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (s *UserService) WithClock(now func() time.Time) *UserService {
	if now != nil {
		s.now = now
	}
	return s
}

// Register creates a user account with the USER role. Usernames and emails
// must be unique; the password must pass policy.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrPasswordPolicyViolation)
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	if email != "" {
		taken, err = s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}

	if err := s.validator.Validate(password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPasswordPolicyViolation, err)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Role:         domain.RoleUser,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("username", username))
	return &user, nil
}

// Get returns the user by username.
func (s *UserService) Get(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

// Lock marks the account locked and revokes its active sessions.
func (s *UserService) Lock(ctx context.Context, username string) error {
	if err := s.setLocked(ctx, username, true); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAll(ctx, username, reasonAccountLocked); err != nil {
		return fmt.Errorf("revoke sessions on lock: %w", err)
	}
	s.logger.Info("account locked", zap.String("username", username))
	return nil
}

// Unlock clears the locked flag. Existing sessions were revoked at lock
// time, so nothing is restored.
func (s *UserService) Unlock(ctx context.Context, username string) error {
	if err := s.setLocked(ctx, username, false); err != nil {
		return err
	}
	s.logger.Info("account unlocked", zap.String("username", username))
	return nil
}

func (s *UserService) setLocked(ctx context.Context, username string, locked bool) error {
	if err := s.users.SetLocked(ctx, username, locked); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set locked: %w", err)
	}
	return nil
}

// Disable turns off the account and revokes its active sessions.
func (s *UserService) Disable(ctx context.Context, username string) error {
	if err := s.setEnabled(ctx, username, false); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAll(ctx, username, reasonAccountDisabled); err != nil {
		return fmt.Errorf("revoke sessions on disable: %w", err)
	}
	s.logger.Info("account disabled", zap.String("username", username))
	return nil
}

// Enable re-enables a disabled account.
func (s *UserService) Enable(ctx context.Context, username string) error {
	if err := s.setEnabled(ctx, username, true); err != nil {
		return err
	}
	s.logger.Info("account enabled", zap.String("username", username))
	return nil
}

func (s *UserService) setEnabled(ctx context.Context, username string, enabled bool) error {
	if err := s.users.SetEnabled(ctx, username, enabled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("set enabled: %w", err)
	}
	return nil
}
