package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "jwt-codec-test-secret"
	testIssuer = "jwt-auth-service"
)

func newCodec(t *testing.T, now func() time.Time) *TokenCodec {
	t.Helper()

	codec, err := NewTokenCodec([]byte(testSecret), testIssuer)
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}
	if now != nil {
		codec.WithClock(now)
	}
	return codec
}

func TestNewTokenCodecValidation(t *testing.T) {
	if _, err := NewTokenCodec(nil, testIssuer); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewTokenCodec([]byte(testSecret), "  "); err == nil {
		t.Fatal("expected error for blank issuer")
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := newCodec(t, func() time.Time { return issuedAt })

	token, err := codec.Issue("alice", "ROLE_USER", TokenTypeAccess, 15*time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := codec.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if claims.Subject != "alice" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != "ROLE_USER" {
		t.Fatalf("unexpected role %q", claims.Role)
	}
	if !claims.IsAccess() {
		t.Fatalf("unexpected token type %q", claims.TokenType)
	}
	if claims.Issuer != testIssuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected a token ID")
	}
	if !claims.IssuedAt.Time.Equal(issuedAt) {
		t.Fatalf("unexpected iat %v", claims.IssuedAt.Time)
	}
	if want := issuedAt.Add(15 * time.Minute); !claims.ExpiresAt.Time.Equal(want) {
		t.Fatalf("expected exp %v, got %v", want, claims.ExpiresAt.Time)
	}
}

func TestIssueGeneratesUniqueIDs(t *testing.T) {
	codec := newCodec(t, nil)

	first, err := codec.Issue("alice", "", TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	second, err := codec.Issue("alice", "", TokenTypeRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if first == second {
		t.Fatal("two tokens for the same subject must differ")
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	codec := newCodec(t, nil)

	if _, err := codec.Issue("  ", "", TokenTypeAccess, time.Hour); err == nil {
		t.Fatal("expected error for blank subject")
	}
	if _, err := codec.Issue("alice", "", TokenTypeAccess, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestParseExpiredToken(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	codec := newCodec(t, func() time.Time { return current })

	token, err := codec.Issue("alice", "", TokenTypeAccess, time.Minute)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	current = current.Add(2 * time.Minute)

	if _, err := codec.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	codec := newCodec(t, nil)

	other, err := NewTokenCodec([]byte("a completely different secret"), testIssuer)
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}

	token, err := other.Issue("alice", "", TokenTypeAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := codec.Parse(token); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
}

func TestParseWrongIssuer(t *testing.T) {
	codec := newCodec(t, nil)

	other, err := NewTokenCodec([]byte(testSecret), "some-other-service")
	if err != nil {
		t.Fatalf("NewTokenCodec returned error: %v", err)
	}

	token, err := other.Issue("alice", "", TokenTypeAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := codec.Parse(token); err == nil {
		t.Fatal("expected error for foreign issuer")
	}
}

func TestParseGarbage(t *testing.T) {
	codec := newCodec(t, nil)

	for _, token := range []string{"", "   ", "garbage", "a.b.c"} {
		if _, err := codec.Parse(token); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("expected ErrTokenMalformed for %q, got %v", token, err)
		}
	}
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	codec := newCodec(t, nil)

	claims := Claims{
		TokenType: string(TokenTypeAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign with none: %v", err)
	}

	if _, err := codec.Parse(unsigned); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestParseRejectsEmptySubject(t *testing.T) {
	codec := newCodec(t, nil)

	claims := Claims{
		TokenType: string(TokenTypeAccess),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := codec.Parse(token); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestRemainingTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		},
	}

	if got := claims.RemainingTTL(now); got != 10*time.Minute {
		t.Fatalf("expected 10m remaining, got %v", got)
	}
	if got := claims.RemainingTTL(now.Add(time.Hour)); got != 0 {
		t.Fatalf("expected 0 remaining after expiry, got %v", got)
	}
}
