package port

import (
	"context"

	"github.com/arklim/user-directory/internal/core/domain"
)

// EventPublisher publishes user lifecycle events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserUpdated(ctx context.Context, event domain.UserUpdatedEvent) error
	PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error
}
