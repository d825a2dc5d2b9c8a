package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/core/port"
	"github.com/arklim/user-directory/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types, prefixed with the configured topic prefix on the wire.
const (
	EventUserRegistered = "user.registered"
	EventUserUpdated    = "user.updated"
	EventUserDeleted    = "user.deleted"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	// Keyed by user so every event for one account lands on one partition in order.
	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}

	select {
	case p.producer.input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Email        string         `json:"email"`
		FirstName    string         `json:"first_name"`
		LastName     string         `json:"last_name"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventUserRegistered, event.UserID, event.RegisteredAt, payload)
}

func (p *EventPublisher) PublishUserUpdated(ctx context.Context, event domain.UserUpdatedEvent) error {
	payload := struct {
		UserID        string         `json:"user_id"`
		UpdatedBy     string         `json:"updated_by"`
		ChangedFields []string       `json:"changed_fields"`
		UpdatedAt     time.Time      `json:"updated_at"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		UserID:        event.UserID,
		UpdatedBy:     event.UpdatedBy,
		ChangedFields: event.ChangedFields,
		UpdatedAt:     event.UpdatedAt.UTC(),
		Metadata:      event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventUserUpdated, event.UserID, event.UpdatedAt, payload)
}

func (p *EventPublisher) PublishUserDeleted(ctx context.Context, event domain.UserDeletedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		DeletedBy string         `json:"deleted_by"`
		DeletedAt time.Time      `json:"deleted_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		DeletedBy: event.DeletedBy,
		DeletedAt: event.DeletedAt.UTC(),
		Metadata:  event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventUserDeleted, event.UserID, event.DeletedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
