package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no
// brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, username string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.String("username", username),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginSucceeded logs auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"ip":         event.IP,
		"user_agent": event.UserAgent,
	}
	p.logEvent("auth.login.succeeded", event.Username, event.At, payload)
	return nil
}

// PublishLoginFailed logs auth.login.failed events.
func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	payload := map[string]any{
		"reason": event.Reason,
		"ip":     event.IP,
	}
	p.logEvent("auth.login.failed", event.Username, event.At, payload)
	return nil
}

// PublishClientLockedOut logs auth.client.locked_out events.
func (p *StubPublisher) PublishClientLockedOut(_ context.Context, event domain.ClientLockedOutEvent) error {
	payload := map[string]any{
		"ip":           event.IP,
		"failures":     event.Failures,
		"locked_until": event.LockedUntil,
	}
	p.logEvent("auth.client.locked_out", "", event.At, payload)
	return nil
}

// PublishTokensRevoked logs auth.tokens.revoked events.
func (p *StubPublisher) PublishTokensRevoked(_ context.Context, event domain.TokensRevokedEvent) error {
	payload := map[string]any{
		"count":  event.Count,
		"reason": event.Reason,
	}
	p.logEvent("auth.tokens.revoked", event.Username, event.At, payload)
	return nil
}

// PublishPasswordChanged logs auth.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"tokens_revoked": event.TokensRevoked,
	}
	p.logEvent("auth.password.changed", event.Username, event.At, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
