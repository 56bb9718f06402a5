package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"unification-service/internal/adapters/memory"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/merger"
	"unification-service/internal/core/normalizer"
)

type emptyGeocoder struct{}

func (emptyGeocoder) Reverse(context.Context, float64, float64) domain.GeoAddress {
	return domain.GeoAddress{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.UnificationEvent
}

func (r *eventRecorder) Publish(_ context.Context, e domain.UnificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) types() []domain.UnificationEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.UnificationEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// scriptedDecider - детерминированный решатель для тестов контроллера
type scriptedDecider struct {
	decide    func(p domain.Proposal) domain.Decision
	proposals []domain.Proposal
}

func (d *scriptedDecider) Decide(_ context.Context, p domain.Proposal) (domain.Decision, error) {
	d.proposals = append(d.proposals, p)
	return d.decide(p), nil
}

func acceptFirst() *scriptedDecider {
	return &scriptedDecider{decide: func(domain.Proposal) domain.Decision {
		return domain.Decision{Action: domain.DecisionAccept}
	}}
}

type env struct {
	sources   *memory.SourceStore
	canonical *memory.CanonicalStore
	events    *eventRecorder
	writer    *CanonicalWriter
	merger    *merger.Merger
	now       time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		sources:   memory.NewSourceStore(),
		canonical: memory.NewCanonicalStore(),
		events:    &eventRecorder{},
		merger:    merger.New(emptyGeocoder{}, merger.Options{}),
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	e.writer = NewCanonicalWriter(e.canonical, e.sources, e.events, nil)
	e.writer.now = func() time.Time { return e.now }
	return e
}

func (e *env) put(t *testing.T, kind domain.SourceKind, id, doc string) *domain.SourceRecord {
	t.Helper()
	rec, err := domain.DecodeSourceRecord(kind, id, []byte(doc), domain.SourceLifecycle{}, "")
	require.NoError(t, err)
	rec.NormalizedName = normalizer.Normalize(rec.DisplayName())
	require.NoError(t, e.sources.PutSource(rec))
	return rec
}

func (e *env) source(t *testing.T, kind domain.SourceKind, id string) *domain.SourceRecord {
	t.Helper()
	rec, err := e.sources.Get(context.Background(), kind, id)
	require.NoError(t, err)
	return rec
}

func (e *env) matchUseCase() *MatchProbeUseCase {
	uc := NewMatchProbeUseCase(NewFindCandidatesUseCase(e.sources), e.sources, e.canonical, e.merger, e.writer, nil, "auto_matcher")
	uc.now = func() time.Time { return e.now }
	return uc
}

const (
	domrfGreenwich = `{"objCommercNm":"ЖК «Greenwich»","latitude":54.73,"longitude":55.96}`
	avitoGreenwich = `{"development":{"name":"Greenwich","address":"ул. Ленина 1, Уфа",
		"parameters":{"Класс":"комфорт"},"photos":["p1"]}}`
)
