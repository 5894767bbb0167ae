package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/core/port"
	"github.com/jwtauth/jwt-auth-service/internal/repository"
)

type testUserRepo struct {
	users map[string]domain.User

	lastLoginUpdates map[string]time.Time
	passwordUpdates  map[string]string
}

func newTestUserRepo(users ...domain.User) *testUserRepo {
	repo := &testUserRepo{
		users:            make(map[string]domain.User),
		lastLoginUpdates: make(map[string]time.Time),
		passwordUpdates:  make(map[string]string),
	}
	for _, user := range users {
		repo.users[user.Username] = user
	}
	return repo
}

func (r *testUserRepo) Create(_ context.Context, user domain.User) error {
	if _, ok := r.users[user.Username]; ok {
		return repository.ErrDuplicate
	}
	r.users[user.Username] = user
	return nil
}

func (r *testUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if user, ok := r.users[username]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testUserRepo) GetByUsernameOrEmail(_ context.Context, identifier string) (*domain.User, error) {
	if user, ok := r.users[identifier]; ok {
		copy := user
		return &copy, nil
	}
	for _, user := range r.users {
		if user.Email == identifier {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *testUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	_, ok := r.users[username]
	return ok, nil
}

func (r *testUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *testUserRepo) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	user, ok := r.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLoginAt = &at
	r.users[username] = user
	r.lastLoginUpdates[username] = at
	return nil
}

func (r *testUserRepo) UpdatePassword(_ context.Context, username, passwordHash string, changedAt time.Time) error {
	user, ok := r.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = changedAt
	r.users[username] = user
	r.passwordUpdates[username] = passwordHash
	return nil
}

func (r *testUserRepo) SetEnabled(_ context.Context, username string, enabled bool) error {
	user, ok := r.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	user.Enabled = enabled
	r.users[username] = user
	return nil
}

func (r *testUserRepo) SetLocked(_ context.Context, username string, locked bool) error {
	user, ok := r.users[username]
	if !ok {
		return repository.ErrNotFound
	}
	user.AccountLocked = locked
	r.users[username] = user
	return nil
}

// testTokenRepo is an in-memory RefreshTokenRepository with the same
// activity semantics as the SQL implementation.
type testTokenRepo struct {
	tokens map[string]*domain.RefreshToken

	createErr error
	revokeErr error
}

func newTestTokenRepo() *testTokenRepo {
	return &testTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *testTokenRepo) Create(_ context.Context, token domain.RefreshToken) error {
	if r.createErr != nil {
		return r.createErr
	}
	copy := token
	r.tokens[token.Token] = &copy
	return nil
}

func (r *testTokenRepo) GetByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	if record, ok := r.tokens[token]; ok {
		copy := *record
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testTokenRepo) GetActiveByToken(_ context.Context, token string, now time.Time) (*domain.RefreshToken, error) {
	record, ok := r.tokens[token]
	if !ok || !record.IsActive(now) {
		return nil, repository.ErrNotFound
	}
	copy := *record
	return &copy, nil
}

func (r *testTokenRepo) ListActiveByUser(_ context.Context, username string, now time.Time) ([]domain.RefreshToken, error) {
	var active []domain.RefreshToken
	for _, record := range r.tokens {
		if record.Username == username && record.IsActive(now) {
			active = append(active, *record)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return active, nil
}

func (r *testTokenRepo) CountActiveByUser(ctx context.Context, username string, now time.Time) (int, error) {
	active, err := r.ListActiveByUser(ctx, username, now)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

func (r *testTokenRepo) ListByUser(_ context.Context, username string) ([]domain.RefreshToken, error) {
	var records []domain.RefreshToken
	for _, record := range r.tokens {
		if record.Username == username {
			records = append(records, *record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		left, right := records[i], records[j]
		switch {
		case left.LastUsedAt != nil && right.LastUsedAt != nil:
			return left.LastUsedAt.After(*right.LastUsedAt)
		case left.LastUsedAt != nil:
			return true
		case right.LastUsedAt != nil:
			return false
		default:
			return left.CreatedAt.After(right.CreatedAt)
		}
	})
	return records, nil
}

func (r *testTokenRepo) InTx(_ context.Context, fn func(port.RefreshTokenRepository) error) error {
	return fn(r)
}

func (r *testTokenRepo) Revoke(_ context.Context, token string) (bool, error) {
	if r.revokeErr != nil {
		return false, r.revokeErr
	}
	record, ok := r.tokens[token]
	if !ok || record.Revoked {
		return false, nil
	}
	record.Revoked = true
	return true, nil
}

func (r *testTokenRepo) RevokeAllByUser(_ context.Context, username string) (int, error) {
	count := 0
	for _, record := range r.tokens {
		if record.Username == username && !record.Revoked {
			record.Revoked = true
			count++
		}
	}
	return count, nil
}

func (r *testTokenRepo) TouchLastUsed(_ context.Context, token string, at time.Time) error {
	record, ok := r.tokens[token]
	if !ok {
		return repository.ErrNotFound
	}
	record.LastUsedAt = &at
	return nil
}

func (r *testTokenRepo) RevokeExpired(_ context.Context, now time.Time) (int, error) {
	count := 0
	for _, record := range r.tokens {
		if !record.Revoked && record.IsExpired(now) {
			record.Revoked = true
			count++
		}
	}
	return count, nil
}

func (r *testTokenRepo) DeleteRevokedBefore(_ context.Context, threshold time.Time) (int, error) {
	count := 0
	for key, record := range r.tokens {
		if record.Revoked && record.ExpiryDate.Before(threshold) {
			delete(r.tokens, key)
			count++
		}
	}
	return count, nil
}

func (r *testTokenRepo) activeCount(username string, now time.Time) int {
	count, _ := r.CountActiveByUser(context.Background(), username, now)
	return count
}

type testAttemptRepo struct {
	attempts []domain.LoginAttempt
}

func (r *testAttemptRepo) Record(_ context.Context, attempt domain.LoginAttempt) error {
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *testAttemptRepo) ListByUser(_ context.Context, username string, limit int) ([]domain.LoginAttempt, error) {
	var matched []domain.LoginAttempt
	for i := len(r.attempts) - 1; i >= 0 && len(matched) < limit; i-- {
		if r.attempts[i].Username == username {
			matched = append(matched, r.attempts[i])
		}
	}
	return matched, nil
}

func (r *testAttemptRepo) CountFailedByIPSince(_ context.Context, ip string, since time.Time) (int, error) {
	count := 0
	for _, attempt := range r.attempts {
		if !attempt.Succeeded && attempt.IP == ip && attempt.AttemptedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *testAttemptRepo) DeleteBefore(_ context.Context, threshold time.Time) (int, error) {
	var kept []domain.LoginAttempt
	removed := 0
	for _, attempt := range r.attempts {
		if attempt.AttemptedAt.Before(threshold) {
			removed++
			continue
		}
		kept = append(kept, attempt)
	}
	r.attempts = kept
	return removed, nil
}

func (r *testAttemptRepo) failures(username string) int {
	count := 0
	for _, attempt := range r.attempts {
		if attempt.Username == username && !attempt.Succeeded {
			count++
		}
	}
	return count
}

type testEventPublisher struct {
	loginSucceeded  []domain.LoginSucceededEvent
	loginFailed     []domain.LoginFailedEvent
	lockedOut       []domain.ClientLockedOutEvent
	tokensRevoked   []domain.TokensRevokedEvent
	passwordChanged []domain.PasswordChangedEvent

	publishErr error
}

func (p *testEventPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.loginSucceeded = append(p.loginSucceeded, event)
	return nil
}

func (p *testEventPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.loginFailed = append(p.loginFailed, event)
	return nil
}

func (p *testEventPublisher) PublishClientLockedOut(_ context.Context, event domain.ClientLockedOutEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.lockedOut = append(p.lockedOut, event)
	return nil
}

func (p *testEventPublisher) PublishTokensRevoked(_ context.Context, event domain.TokensRevokedEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.tokensRevoked = append(p.tokensRevoked, event)
	return nil
}

func (p *testEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

// unexpectedCallUserRepo fails every call; embed it when a test must prove
// a path never touches the user store.
type unexpectedCallUserRepo struct{}

func (unexpectedCallUserRepo) Create(context.Context, domain.User) error {
	return errors.New("unexpected call: Create")
}

func (unexpectedCallUserRepo) GetByUsername(context.Context, string) (*domain.User, error) {
	return nil, errors.New("unexpected call: GetByUsername")
}

func (unexpectedCallUserRepo) GetByUsernameOrEmail(context.Context, string) (*domain.User, error) {
	return nil, errors.New("unexpected call: GetByUsernameOrEmail")
}

func (unexpectedCallUserRepo) ExistsByUsername(context.Context, string) (bool, error) {
	return false, errors.New("unexpected call: ExistsByUsername")
}

func (unexpectedCallUserRepo) ExistsByEmail(context.Context, string) (bool, error) {
	return false, errors.New("unexpected call: ExistsByEmail")
}

func (unexpectedCallUserRepo) UpdateLastLogin(context.Context, string, time.Time) error {
	return errors.New("unexpected call: UpdateLastLogin")
}

func (unexpectedCallUserRepo) UpdatePassword(context.Context, string, string, time.Time) error {
	return errors.New("unexpected call: UpdatePassword")
}

func (unexpectedCallUserRepo) SetEnabled(context.Context, string, bool) error {
	return errors.New("unexpected call: SetEnabled")
}

func (unexpectedCallUserRepo) SetLocked(context.Context, string, bool) error {
	return errors.New("unexpected call: SetLocked")
}
