package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/core/port"
	"github.com/arklim/user-directory/internal/infra/logger"
)

// StubPublisher logs events instead of sending them. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now()
	}
	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.logEvent(EventUserRegistered, event.UserID, event.RegisteredAt,
		zap.String("email", logger.MaskEmail(event.Email)),
	)
	return nil
}

func (p *StubPublisher) PublishUserUpdated(_ context.Context, event domain.UserUpdatedEvent) error {
	p.logEvent(EventUserUpdated, event.UserID, event.UpdatedAt,
		zap.String("updated_by", event.UpdatedBy),
		zap.Strings("changed_fields", event.ChangedFields),
	)
	return nil
}

func (p *StubPublisher) PublishUserDeleted(_ context.Context, event domain.UserDeletedEvent) error {
	p.logEvent(EventUserDeleted, event.UserID, event.DeletedAt,
		zap.String("deleted_by", event.DeletedBy),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
