package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
	"github.com/jwtauth/jwt-auth-service/internal/core/port"
	"github.com/jwtauth/jwt-auth-service/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher on top of Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Username  string            `json:"username,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, username string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Username:  username,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		Username  string    `json:"username"`
		IP        string    `json:"ip"`
		UserAgent string    `json:"user_agent,omitempty"`
		At        time.Time `json:"at"`
	}{
		Username:  event.Username,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		At:        event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.succeeded", event.Username, event.At, payload)
}

// PublishLoginFailed publishes auth.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		Username string    `json:"username"`
		Reason   string    `json:"reason"`
		IP       string    `json:"ip"`
		At       time.Time `json:"at"`
	}{
		Username: event.Username,
		Reason:   event.Reason,
		IP:       event.IP,
		At:       event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.failed", event.Username, event.At, payload)
}

// PublishClientLockedOut publishes auth.client.locked_out events.
func (p *EventPublisher) PublishClientLockedOut(ctx context.Context, event domain.ClientLockedOutEvent) error {
	payload := struct {
		IP          string    `json:"ip"`
		Failures    int       `json:"failures"`
		LockedUntil time.Time `json:"locked_until"`
		At          time.Time `json:"at"`
	}{
		IP:          event.IP,
		Failures:    event.Failures,
		LockedUntil: event.LockedUntil.UTC(),
		At:          event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.client.locked_out", "", event.At, payload)
}

// PublishTokensRevoked publishes auth.tokens.revoked events.
func (p *EventPublisher) PublishTokensRevoked(ctx context.Context, event domain.TokensRevokedEvent) error {
	payload := struct {
		Username string    `json:"username"`
		Count    int       `json:"count"`
		Reason   string    `json:"reason"`
		At       time.Time `json:"at"`
	}{
		Username: event.Username,
		Count:    event.Count,
		Reason:   event.Reason,
		At:       event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.tokens.revoked", event.Username, event.At, payload)
}

// PublishPasswordChanged publishes auth.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		Username      string    `json:"username"`
		TokensRevoked int       `json:"tokens_revoked"`
		At            time.Time `json:"at"`
	}{
		Username:      event.Username,
		TokensRevoked: event.TokensRevoked,
		At:            event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.password.changed", event.Username, event.At, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
