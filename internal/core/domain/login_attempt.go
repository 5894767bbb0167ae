package domain

import "time"

// LoginAttempt is a durable audit record of an authentication attempt,
// distinct from the ephemeral per-IP throttle state.
type LoginAttempt struct {
	ID            string
	Username      string
	Succeeded     bool
	FailureReason string
	IP            string
	UserAgent     string
	AttemptedAt   time.Time
}

// NewSuccessfulAttempt builds an audit record for a successful login.
func NewSuccessfulAttempt(id, username, ip, userAgent string, at time.Time) LoginAttempt {
	return LoginAttempt{
		ID:          id,
		Username:    username,
		Succeeded:   true,
		IP:          ip,
		UserAgent:   userAgent,
		AttemptedAt: at,
	}
}

// NewFailedAttempt builds an audit record for a failed login.
func NewFailedAttempt(id, username, ip, userAgent, reason string, at time.Time) LoginAttempt {
	return LoginAttempt{
		ID:            id,
		Username:      username,
		Succeeded:     false,
		FailureReason: reason,
		IP:            ip,
		UserAgent:     userAgent,
		AttemptedAt:   at,
	}
}
