package domain

import "time"

// RefreshToken represents a persisted refresh token record. The token string
// itself is the globally unique lookup key; the stored ExpiryDate is the
// authoritative revocation boundary regardless of the expiry embedded in the
// signed token.
type RefreshToken struct {
	ID         string
	Token      string
	Username   string
	ExpiryDate time.Time
	Revoked    bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
	UserAgent  string
	ClientIP   string
}

// IsExpired reports whether the record's expiry date has elapsed.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiryDate.After(at)
}

// IsActive reports whether the token can still be presented for rotation.
func (t RefreshToken) IsActive(at time.Time) bool {
	return !t.Revoked && !t.IsExpired(at)
}

// Revoke marks the token as revoked. Returns true if the token transitioned
// to the revoked state.
func (t *RefreshToken) Revoke() bool {
	if t.Revoked {
		return false
	}
	t.Revoked = true
	return true
}

// TouchUsed records the moment the refresh token was last exchanged.
func (t *RefreshToken) TouchUsed(at time.Time) {
	timeCopy := at
	t.LastUsedAt = &timeCopy
}

// TokenPair is the result of a successful login or rotation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Username     string
	Role         string
	ExpiresIn    int64
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// ClientMeta carries request-level metadata bound to issued refresh tokens.
type ClientMeta struct {
	IP        string
	UserAgent string
}
