package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

type publishedMsg struct {
	routingKey string
	msg        amqp.Publishing
}

type fakeProducer struct {
	sent []publishedMsg
	err  error
}

func (p *fakeProducer) Publish(_ context.Context, routingKey string, msg amqp.Publishing) error {
	p.sent = append(p.sent, publishedMsg{routingKey: routingKey, msg: msg})
	return p.err
}

type noopLogger struct{}

func (noopLogger) Info(string, port.Fields)                 {}
func (noopLogger) Warn(string, port.Fields)                 {}
func (noopLogger) Error(string, error, port.Fields)         {}
func (noopLogger) Debug(string, port.Fields)                {}
func (l noopLogger) WithFields(port.Fields) port.LoggerPort { return l }

func TestUnificationEventsPublisher(t *testing.T) {
	producer := &fakeProducer{}
	pub, err := NewUnificationEventsPublisher(producer)
	require.NoError(t, err)
	eventID := uuid.MustParse("5b0e1c5e-8f55-4b51-9d0e-0a3c1f7b2a11")
	pub.newID = func() uuid.UUID { return eventID }

	var ids domain.SourceIDs
	ids.Set(domain.KindDomRF, "D1")
	ids.Set(domain.KindAvito, "A1")
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := &domain.CanonicalRecord{ID: "U1", SourceIDs: ids, Development: domain.Development{Name: "Greenwich"}}

	ctx := contextkeys.ContextWithTraceID(context.Background(), "trace-1")
	require.NoError(t, pub.Publish(ctx, domain.NewUnificationEvent(domain.EventUnifiedCreated, rec, at)))

	require.Len(t, producer.sent, 1)
	sent := producer.sent[0]
	assert.Equal(t, constants.RoutingKeyUnifiedCreated, sent.routingKey)
	assert.Equal(t, "trace-1", sent.msg.Headers[constants.HeaderTraceID])
	assert.Equal(t, eventID.String(), sent.msg.MessageId)

	var dto UnificationEventDTO
	require.NoError(t, json.Unmarshal(sent.msg.Body, &dto))
	assert.Equal(t, "U1", dto.CanonicalID)
	assert.Equal(t, map[string]string{"domrf": "D1", "avito": "A1"}, dto.SourceIDs)
	assert.Equal(t, "Greenwich", dto.Name)

	producer.err = errors.New("channel closed")
	assert.Error(t, pub.Publish(context.Background(), domain.NewUnificationEvent(domain.EventUnifiedUpdated, rec, at)))

	_, err = NewUnificationEventsPublisher(nil)
	assert.Error(t, err)
}

type fakeMatchUseCase struct {
	calls   []string
	outcome domain.ProbeOutcome
	err     error
	traceID string
}

func (f *fakeMatchUseCase) MatchProbe(context.Context, *domain.SourceRecord, port.MatchDeciderPort) domain.ProbeOutcome {
	return f.outcome
}

func (f *fakeMatchUseCase) MatchByID(ctx context.Context, kind domain.SourceKind, id string, _ port.MatchDeciderPort) (domain.ProbeOutcome, error) {
	f.calls = append(f.calls, string(kind)+"/"+id)
	f.traceID = contextkeys.TraceIDFromContext(ctx)
	return f.outcome, f.err
}

func (f *fakeMatchUseCase) Run(context.Context, domain.SourceKind, port.MatchDeciderPort, func(domain.ProbeOutcome)) (domain.Tally, error) {
	return domain.Tally{}, nil
}

func delivery(body string) amqp.Delivery {
	return amqp.Delivery{
		Body: []byte(body),
		Headers: amqp.Table{
			constants.HeaderEventType:    "MatchRequestEvent",
			constants.HeaderEventVersion: "1.0.0",
			constants.HeaderTraceID:      "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		},
	}
}

func TestMatchRequestHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("domain outcome is acked", func(t *testing.T) {
		uc := &fakeMatchUseCase{outcome: domain.ProbeOutcome{Status: domain.ProbeFailed, Err: domain.NewError(domain.ErrorKindMissingCoordinates, "merge", "no coordinates")}}
		h := newMatchRequestHandler(uc, nil, noopLogger{})

		require.NoError(t, h.handle(ctx, delivery(`{"probe_kind":"avito_2","probe_id":"A1"}`)))
		assert.Equal(t, []string{"avito/A1"}, uc.calls)
		assert.Equal(t, "7c9e6679-7425-40de-944b-e07fc1f90ae7", uc.traceID)
	})

	t.Run("invalid message is dropped without matching", func(t *testing.T) {
		uc := &fakeMatchUseCase{}
		h := newMatchRequestHandler(uc, nil, noopLogger{})

		assert.NoError(t, h.handle(ctx, delivery(`{"probe_kind":"cian","probe_id":"A1"}`)))
		assert.NoError(t, h.handle(ctx, amqp.Delivery{Body: []byte(`{"probe_kind":"avito","probe_id":"A1"}`)}))
		assert.Empty(t, uc.calls)
	})

	t.Run("missing source is acked", func(t *testing.T) {
		notFound := domain.NewError(domain.ErrorKindSourceNotFound, "get source", "gone")
		uc := &fakeMatchUseCase{err: notFound, outcome: domain.ProbeOutcome{Status: domain.ProbeFailed, Err: notFound}}
		h := newMatchRequestHandler(uc, nil, noopLogger{})
		assert.NoError(t, h.handle(ctx, delivery(`{"probe_kind":"domrf","probe_id":"D404"}`)))
	})

	t.Run("infrastructure failure is retried", func(t *testing.T) {
		uc := &fakeMatchUseCase{outcome: domain.ProbeOutcome{Status: domain.ProbeFailed, Err: errors.New("connection reset")}}
		h := newMatchRequestHandler(uc, nil, noopLogger{})
		assert.Error(t, h.handle(ctx, delivery(`{"probe_kind":"avito","probe_id":"A1"}`)))
	})
}

func TestPkgLoggerBridge_Fields(t *testing.T) {
	b := &PkgLoggerBridge{internalLogger: noopLogger{}}
	assert.Nil(t, b.toFields())
	assert.Equal(t, port.Fields{"queue": "match_requests", "!BADKEY": "dangling"},
		b.toFields("queue", "match_requests", "dangling"))
	assert.Equal(t, port.Fields{"!BADKEY": 42, "delivery_tag": uint64(7)},
		b.toFields(42, "ignored", "delivery_tag", uint64(7)))

	// fluent не умеет кодировать error - в поля попадает текст
	assert.Equal(t, port.Fields{"publish_error": "channel closed"},
		b.toFields("publish_error", errors.New("channel closed")))
}
