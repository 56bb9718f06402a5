package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/contracts"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
	"unification-service/internal/core/port/usecases_port"
	"unification-service/pkg/rabbitmq/rabbitmq_common"
	"unification-service/pkg/rabbitmq/rabbitmq_consumer"
)

// MatchRequestDTO соответствует схеме MatchRequestEvent/1.0.0
type MatchRequestDTO struct {
	ProbeKind string `json:"probe_kind"`
	ProbeID   string `json:"probe_id"`
}

// MatchRequestConsumerAdapter слушает match_requests и запускает автоматический матчинг одной пробы.
// Доменные исходы (пропуск, нет кандидатов, нет координат) подтверждаются; ретрай только для сбоев инфраструктуры.
type MatchRequestConsumerAdapter struct {
	consumer rabbitmq_consumer.Consumer
	useCase  usecases_port.MatchProbeUseCase
	decider  port.MatchDeciderPort
	logger   port.LoggerPort
}

var _ port.EventListenerPort = (*MatchRequestConsumerAdapter)(nil)

func NewMatchRequestConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	connManager *rabbitmq_common.ConnectionManager,
	useCase usecases_port.MatchProbeUseCase,
	decider port.MatchDeciderPort,
	logger port.LoggerPort,
) (*MatchRequestConsumerAdapter, error) {
	adapter := newMatchRequestHandler(useCase, decider, logger)

	consumer, err := rabbitmq_consumer.NewSequentialConsumer(consumerCfg, adapter.handle, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for match requests: %w", err)
	}
	adapter.consumer = consumer
	return adapter, nil
}

func newMatchRequestHandler(useCase usecases_port.MatchProbeUseCase, decider port.MatchDeciderPort, logger port.LoggerPort) *MatchRequestConsumerAdapter {
	return &MatchRequestConsumerAdapter{
		useCase: useCase,
		decider: decider,
		logger:  logger.WithFields(port.Fields{"component": "MatchRequestConsumerAdapter"}),
	}
}

func (a *MatchRequestConsumerAdapter) handle(ctx context.Context, d amqp.Delivery) error {
	traceHeader, _ := d.Headers[constants.HeaderTraceID].(string)
	ctx, traceID := contextkeys.EnsureTraceID(ctx, traceHeader)
	logger := a.logger.WithFields(port.Fields{"trace_id": traceID, "delivery_tag": d.DeliveryTag})
	ctx = contextkeys.ContextWithLogger(ctx, logger)

	eventType, _ := d.Headers[constants.HeaderEventType].(string)
	eventVersion, _ := d.Headers[constants.HeaderEventVersion].(string)
	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		// повтор не исправит сообщение
		logger.Error("Match request failed schema validation, dropping", err, nil)
		return nil
	}

	var dto MatchRequestDTO
	if err := json.Unmarshal(d.Body, &dto); err != nil {
		logger.Error("Failed to unmarshal match request", err, nil)
		return nil
	}
	kind, err := domain.ParseSourceKind(dto.ProbeKind)
	if err != nil {
		logger.Error("Unknown probe kind", err, port.Fields{"probe_kind": dto.ProbeKind})
		return nil
	}

	outcome, err := a.useCase.MatchByID(ctx, kind, dto.ProbeID, a.decider)
	if err != nil && domain.KindOf(err) == "" {
		return fmt.Errorf("match %s %s: %w", kind, dto.ProbeID, err)
	}
	if outcome.Status == domain.ProbeFailed && domain.KindOf(outcome.Err) == "" && outcome.Err != nil {
		return fmt.Errorf("match %s %s: %w", kind, dto.ProbeID, outcome.Err)
	}

	logger.Info("Match request handled", port.Fields{
		"probe_kind":   string(kind),
		"probe_id":     dto.ProbeID,
		"status":       string(outcome.Status),
		"reason":       outcome.Reason,
		"canonical_id": outcome.CanonicalID,
	})
	return nil
}

// Start реализует EventListenerPort
func (a *MatchRequestConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close реализует EventListenerPort
func (a *MatchRequestConsumerAdapter) Close() error {
	return a.consumer.Close()
}
