package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/core/port"
)

// publishEvent runs send and logs a failure. Events never fail the operation
// that produced them.
func publishEvent(ctx context.Context, log *zap.Logger, events port.EventPublisher, event, userID string, send func(context.Context) error) {
	if events == nil {
		return
	}
	if err := send(ctx); err != nil {
		log.Warn("Publish event failed",
			zap.String("event_type", event),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}
