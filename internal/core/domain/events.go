package domain

import "time"

// LoginSucceededEvent is emitted after a credential check passes and tokens
// are issued.
type LoginSucceededEvent struct {
	EventID   string
	Username  string
	IP        string
	UserAgent string
	At        time.Time
}

// LoginFailedEvent is emitted when a login attempt is rejected.
type LoginFailedEvent struct {
	EventID  string
	Username string
	Reason   string
	IP       string
	At       time.Time
}

// ClientLockedOutEvent is emitted when an IP crosses the failure threshold.
type ClientLockedOutEvent struct {
	EventID     string
	IP          string
	Failures    int
	LockedUntil time.Time
	At          time.Time
}

// TokensRevokedEvent is emitted when refresh tokens are revoked outside the
// normal rotation path (logout, logout-all, admin action, password change).
type TokensRevokedEvent struct {
	EventID  string
	Username string
	Count    int
	Reason   string
	At       time.Time
}

// PasswordChangedEvent is emitted after a successful password change.
type PasswordChangedEvent struct {
	EventID       string
	Username      string
	TokensRevoked int
	At            time.Time
}
