package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

const unificationEventVersion = "1.0.0"

// amqpPublisher - то, что адаптеру нужно от rabbitmq_producer.Publisher
type amqpPublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// UnificationEventDTO - тело сообщения об изменении unified_houses
type UnificationEventDTO struct {
	EventID     uuid.UUID         `json:"event_id"`
	Type        string            `json:"type"`
	CanonicalID string            `json:"canonical_id"`
	SourceIDs   map[string]string `json:"source_ids"`
	Name        string            `json:"name"`
	IsFuture    bool              `json:"is_future"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// UnificationEventsPublisher публикует события в unification_exchange; ключ маршрутизации - тип события
type UnificationEventsPublisher struct {
	producer amqpPublisher
	newID    func() uuid.UUID
}

var _ port.UnificationEventsPort = (*UnificationEventsPublisher)(nil)

func NewUnificationEventsPublisher(producer amqpPublisher) (*UnificationEventsPublisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer cannot be nil")
	}
	return &UnificationEventsPublisher{producer: producer, newID: uuid.New}, nil
}

func (a *UnificationEventsPublisher) Publish(ctx context.Context, event domain.UnificationEvent) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":    "UnificationEventsPublisher",
		"routing_key":  string(event.Type),
		"canonical_id": event.CanonicalID,
	})

	dto := UnificationEventDTO{
		EventID:     a.newID(),
		Type:        string(event.Type),
		CanonicalID: event.CanonicalID,
		SourceIDs:   make(map[string]string),
		Name:        event.Name,
		IsFuture:    event.IsFuture,
		OccurredAt:  event.OccurredAt,
	}
	for _, kind := range event.SourceIDs.Kinds() {
		dto.SourceIDs[string(kind)] = event.SourceIDs.Get(kind)
	}

	body, err := json.Marshal(dto)
	if err != nil {
		logger.Error("Failed to marshal unification event", err, nil)
		return fmt.Errorf("failed to marshal %s event for %s: %w", event.Type, event.CanonicalID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    dto.EventID.String(),
		Timestamp:    event.OccurredAt,
		Headers: amqp.Table{
			constants.HeaderEventType:    "UnificationEvent",
			constants.HeaderEventVersion: unificationEventVersion,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers[constants.HeaderTraceID] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.producer.Publish(publishCtx, string(event.Type), msg); err != nil {
		logger.Error("Failed to publish unification event", err, nil)
		return err
	}
	logger.Debug("Unification event published", nil)
	return nil
}
