package port

import (
	"context"

	"github.com/jwtauth/jwt-auth-service/internal/core/domain"
)

// EventPublisher publishes security events to the message bus.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishClientLockedOut(ctx context.Context, event domain.ClientLockedOutEvent) error
	PublishTokensRevoked(ctx context.Context, event domain.TokensRevokedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
