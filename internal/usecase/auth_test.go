package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/infra/security"
)

const (
	testPassword = "purple-Monkey-d1shwasher"
	testClientIP = "10.0.0.5"
)

func newActiveUser(t *testing.T, username string, role domain.Role) domain.User {
	t.Helper()

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return domain.User{
		Username:     username,
		PasswordHash: hash,
		Email:        username + "@example.com",
		Role:         role,
		Enabled:      true,
	}
}

type authFixture struct {
	auth     *AuthService
	users    *testUserRepo
	tokens   *testTokenRepo
	attempts *testAttemptRepo
	events   *testEventPublisher
	throttle *LoginThrottle
	clock    *fakeClock
}

func newAuthFixture(t *testing.T, users ...domain.User) *authFixture {
	t.Helper()

	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	userRepo := newTestUserRepo(users...)
	tokenRepo := newTestTokenRepo()
	attemptRepo := &testAttemptRepo{}
	events := &testEventPublisher{}
	throttle := NewLoginThrottle(5, 15*time.Minute).WithClock(clock.Now)

	tokenSvc := newTestTokenService(t, tokenRepo, events, clock.Now)

	auth, err := NewAuthService(userRepo, attemptRepo, tokenSvc, throttle, security.DefaultPasswordValidator(), events, zap.NewNop())
	if err != nil {
		t.Fatalf("create auth service: %v", err)
	}
	auth.WithClock(clock.Now)

	return &authFixture{
		auth:     auth,
		users:    userRepo,
		tokens:   tokenRepo,
		attempts: attemptRepo,
		events:   events,
		throttle: throttle,
		clock:    clock,
	}
}

func (f *authFixture) meta() domain.ClientMeta {
	return domain.ClientMeta{IP: testClientIP, UserAgent: "test-agent"}
}

func TestLoginSuccess(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.Username != "alice" {
		t.Fatalf("expected alice in pair, got %q", pair.Username)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens present")
	}

	if len(fx.attempts.attempts) != 1 || !fx.attempts.attempts[0].Succeeded {
		t.Fatalf("expected one successful audit row, got %+v", fx.attempts.attempts)
	}
	if _, ok := fx.users.lastLoginUpdates["alice"]; !ok {
		t.Fatal("expected last login timestamp updated")
	}
	if len(fx.events.loginSucceeded) != 1 {
		t.Fatalf("expected one login event, got %d", len(fx.events.loginSucceeded))
	}
}

func TestLoginByEmail(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	pair, err := fx.auth.Login(context.Background(), "alice@example.com", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if pair.Username != "alice" {
		t.Fatalf("expected pair issued for alice, got %q", pair.Username)
	}

	// Audit and last-login bookkeeping use the canonical username, not the
	// identifier the client presented.
	if _, ok := fx.users.lastLoginUpdates["alice"]; !ok {
		t.Fatal("expected last login recorded under the username")
	}
	if len(fx.attempts.attempts) != 1 || fx.attempts.attempts[0].Username != "alice" {
		t.Fatalf("expected audit row for alice, got %+v", fx.attempts.attempts)
	}
}

func TestLoginUnknownUserIsGeneric(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.auth.Login(context.Background(), "nobody", "whatever", fx.meta())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	if fx.attempts.failures("nobody") != 1 {
		t.Fatal("expected a failed audit row for unknown user")
	}
	if len(fx.events.loginFailed) != 1 {
		t.Fatalf("expected one failure event, got %d", len(fx.events.loginFailed))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	_, err := fx.auth.Login(context.Background(), "alice", "wrong-password", fx.meta())
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if fx.attempts.failures("alice") != 1 {
		t.Fatal("expected a failed audit row")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	user := newActiveUser(t, "alice", domain.RoleUser)
	user.Enabled = false
	fx := newAuthFixture(t, user)

	_, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if !errors.Is(err, ErrAccountInvalid) {
		t.Fatalf("expected ErrAccountInvalid, got %v", err)
	}
}

func TestLoginLockedAccount(t *testing.T) {
	user := newActiveUser(t, "alice", domain.RoleUser)
	user.AccountLocked = true
	fx := newAuthFixture(t, user)

	_, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if !errors.Is(err, ErrAccountInvalid) {
		t.Fatalf("expected ErrAccountInvalid, got %v", err)
	}
}

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	for i := 0; i < 5; i++ {
		_, err := fx.auth.Login(context.Background(), "alice", "wrong-password", fx.meta())
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Correct credentials no longer help while the IP is locked out.
	_, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}

	if len(fx.events.lockedOut) != 1 {
		t.Fatalf("expected one lockout event, got %d", len(fx.events.lockedOut))
	}
	if fx.events.lockedOut[0].IP != testClientIP {
		t.Fatalf("unexpected lockout IP %q", fx.events.lockedOut[0].IP)
	}
}

func TestLoginLockoutExpiresAndCounterResets(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	for i := 0; i < 5; i++ {
		fx.auth.Login(context.Background(), "alice", "wrong-password", fx.meta())
	}
	if _, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta()); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected ErrLockedOut, got %v", err)
	}

	fx.clock.Advance(15*time.Minute + time.Second)

	pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("expected login to succeed after lockout expiry, got %v", err)
	}
	if pair == nil || pair.Username != "alice" {
		t.Fatalf("unexpected pair after lockout expiry: %+v", pair)
	}
}

func TestLoginThrottleIsPerIP(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	attacker := domain.ClientMeta{IP: "10.0.0.5", UserAgent: "bot"}
	victim := domain.ClientMeta{IP: "192.0.2.20", UserAgent: "browser"}

	for i := 0; i < 5; i++ {
		fx.auth.Login(context.Background(), "alice", "wrong-password", attacker)
	}

	if _, err := fx.auth.Login(context.Background(), "alice", testPassword, attacker); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("expected attacker IP locked out, got %v", err)
	}
	if _, err := fx.auth.Login(context.Background(), "alice", testPassword, victim); err != nil {
		t.Fatalf("expected other IP unaffected, got %v", err)
	}
}

func TestRefreshRotatesAndPreventsReplay(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	fx.clock.Advance(time.Minute)

	rotated, err := fx.auth.Refresh(context.Background(), pair.RefreshToken, fx.meta())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("expected rotation to issue a new refresh token")
	}

	if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken, fx.meta()); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replayed token rejected, got %v", err)
	}

	if _, err := fx.auth.Refresh(context.Background(), rotated.RefreshToken, fx.meta()); err != nil {
		t.Fatalf("expected rotated token redeemable, got %v", err)
	}
}

func TestRefreshRejectsDisabledAccount(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := fx.users.SetEnabled(context.Background(), "alice", false); err != nil {
		t.Fatalf("disable account: %v", err)
	}

	if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken, fx.meta()); !errors.Is(err, ErrAccountInvalid) {
		t.Fatalf("expected ErrAccountInvalid, got %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	if _, err := fx.auth.Refresh(context.Background(), "garbage", fx.meta()); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := fx.auth.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken, fx.meta()); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked token rejected, got %v", err)
	}

	// Logging out again, or with junk, still succeeds.
	if err := fx.auth.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
	if err := fx.auth.Logout(context.Background(), "junk"); err != nil {
		t.Fatalf("junk logout: %v", err)
	}
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	var pairs []*domain.TokenPair
	for i := 0; i < 3; i++ {
		pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
		if err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
		pairs = append(pairs, pair)
		fx.clock.Advance(time.Second)
	}

	count, err := fx.auth.LogoutAll(context.Background(), "alice")
	if err != nil {
		t.Fatalf("logout all: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 sessions revoked, got %d", count)
	}

	for i, pair := range pairs {
		if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken, fx.meta()); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("session %d: expected ErrInvalidRefreshToken, got %v", i, err)
		}
	}
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	const newPassword = "br1ght-Yellow-submar1ne"
	if err := fx.auth.ChangePassword(context.Background(), "alice", testPassword, newPassword, newPassword); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := fx.auth.Refresh(context.Background(), pair.RefreshToken, fx.meta()); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected old session revoked, got %v", err)
	}

	if _, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta()); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := fx.auth.Login(context.Background(), "alice", newPassword, fx.meta()); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}

	if len(fx.events.passwordChanged) != 1 {
		t.Fatalf("expected one password change event, got %d", len(fx.events.passwordChanged))
	}
}

func TestLogoutNeverTouchesUserStore(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestTokenRepo()
	tokenSvc := newTestTokenService(t, repo, nil, clock.Now)

	pair, err := tokenSvc.IssuePair(context.Background(), "alice", domain.RoleUser, domain.ClientMeta{})
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	auth, err := NewAuthService(unexpectedCallUserRepo{}, &testAttemptRepo{}, tokenSvc, NewLoginThrottle(5, 15*time.Minute), security.DefaultPasswordValidator(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("create auth service: %v", err)
	}

	if err := auth.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
}

func TestChangePasswordConfirmationMismatch(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	err := fx.auth.ChangePassword(context.Background(), "alice", testPassword, "br1ght-Yellow-submar1ne", "different-Conf1rmation")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	err := fx.auth.ChangePassword(context.Background(), "alice", "wrong-password", "br1ght-Yellow-submar1ne", "br1ght-Yellow-submar1ne")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordEnforcesPolicy(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleUser))

	// Too short and trivially weak.
	err := fx.auth.ChangePassword(context.Background(), "alice", testPassword, "abc1", "abc1")
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}

	// Identical to the current password.
	err = fx.auth.ChangePassword(context.Background(), "alice", testPassword, testPassword, testPassword)
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation for unchanged password, got %v", err)
	}
}

func TestValidateAccessToken(t *testing.T) {
	fx := newAuthFixture(t, newActiveUser(t, "alice", domain.RoleModerator))

	pair, err := fx.auth.Login(context.Background(), "alice", testPassword, fx.meta())
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	subject, role, err := fx.auth.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if subject != "alice" {
		t.Fatalf("expected subject alice, got %q", subject)
	}
	if role != "ROLE_MODERATOR" {
		t.Fatalf("expected ROLE_MODERATOR, got %q", role)
	}

	// A refresh token is never a valid access token.
	if _, _, err := fx.auth.ValidateAccessToken(pair.RefreshToken); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}

	fx.clock.Advance(16 * time.Minute)
	if _, _, err := fx.auth.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}
