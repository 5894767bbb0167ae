package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// TokenType distinguishes short-lived access tokens from store-backed
// refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "ACCESS"
	TokenTypeRefresh TokenType = "REFRESH"
)

var (
	// ErrTokenExpired indicates the token's embedded expiry has elapsed.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenMalformed indicates the token is structurally invalid.
	ErrTokenMalformed = errors.New("jwt: token malformed")
	// ErrTokenSignature indicates the signature check failed.
	ErrTokenSignature = errors.New("jwt: invalid signature")
)

// signingMethod is fixed at build time. Accepting whatever algorithm the
// token header announces would open the codec to algorithm-confusion
// attacks.
var signingMethod = jwt.SigningMethodHS512

// Claims is the signed payload carried by every issued token.
type Claims struct {
	TokenType string `json:"tokenType"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Type returns the token type claim.
func (c *Claims) Type() TokenType {
	return TokenType(c.TokenType)
}

// IsAccess reports whether the claims belong to an access token.
func (c *Claims) IsAccess() bool {
	return c.Type() == TokenTypeAccess
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *Claims) IsRefresh() bool {
	return c.Type() == TokenTypeRefresh
}

// RemainingTTL returns how long the token stays valid from the given instant.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := c.ExpiresAt.Time.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TokenCodec produces and verifies compact signed tokens against a single
// shared HMAC secret. It holds no mutable state and is safe for concurrent
// use.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenCodec constructs a codec for the supplied secret and issuer.
func NewTokenCodec(secret []byte, issuer string) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	return &TokenCodec{
		secret: secret,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// WithClock allows injection of a custom clock (primarily for testing).
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// Issuer returns the issuer claim stamped into every token.
func (c *TokenCodec) Issuer() string {
	return c.issuer
}

// Issue signs a token for the subject. The role claim is embedded only when
// non-empty; refresh tokens carry no role.
func (c *TokenCodec) Issue(subject, role string, tokenType TokenType, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("jwt: subject is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("jwt: ttl must be positive")
	}

	now := c.now().UTC()

	claims := Claims{
		TokenType: string(tokenType),
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies signature and expiry in one pass and returns the claims.
// It never consults any store; validity is purely cryptographic and
// time-based.
func (c *TokenCodec) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
