package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/core/domain"
)

func TestMatchProbe_ExactNameMerge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	probe := e.put(t, domain.KindAvito, "A1", avitoGreenwich)

	decider := acceptFirst()
	outcome := e.matchUseCase().MatchProbe(ctx, probe, decider)

	require.Equal(t, domain.ProbeCreated, outcome.Status, outcome.Reason)
	require.Len(t, decider.proposals, 1)
	assert.Equal(t, domain.KindDomRF, decider.proposals[0].Kind)
	assert.Equal(t, map[domain.SourceKind]string{domain.KindDomRF: "D1"}, outcome.Accepted)

	rec, err := e.canonical.Get(ctx, outcome.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Greenwich", rec.Development.Name)
	assert.Equal(t, domain.Coordinates{Lat: 54.73, Lon: 55.96}, *rec.Coordinates)
	assert.Equal(t, []string{"p1"}, rec.Development.Photos)
	assert.Equal(t, "D1", rec.SourceIDs.Get(domain.KindDomRF))
	assert.Equal(t, "A1", rec.SourceIDs.Get(domain.KindAvito))
	assert.Nil(t, rec.SourceIDs.DomClick)
	assert.Equal(t, "auto_matcher", rec.CreatedBy)
	assert.True(t, e.now.Equal(rec.CreatedAt))

	for _, ref := range []struct {
		kind domain.SourceKind
		id   string
	}{{domain.KindDomRF, "D1"}, {domain.KindAvito, "A1"}} {
		src := e.source(t, ref.kind, ref.id)
		assert.True(t, src.Lifecycle.IsMatched, ref.id)
		require.NotNil(t, src.Lifecycle.MatchedUnifiedID)
		assert.Equal(t, rec.ID, *src.Lifecycle.MatchedUnifiedID)
		assert.NotNil(t, src.Lifecycle.MatchedAt)
	}
	assert.True(t, e.source(t, domain.KindDomRF, "D1").Lifecycle.IsProcessed)
	assert.False(t, e.source(t, domain.KindAvito, "A1").Lifecycle.IsProcessed)

	assert.Equal(t, []domain.UnificationEventType{domain.EventUnifiedCreated}, e.events.types())
}

func TestMatchProbe_TerminalStatuses(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	lonely := e.put(t, domain.KindAvito, "A2", `{"development":{"name":"Одинокий Тополь"}}`)
	unnamed := e.put(t, domain.KindAvito, "A3", `{"development":{"name":"  "}}`)
	uc := e.matchUseCase()

	t.Run("no candidates", func(t *testing.T) {
		outcome := uc.MatchProbe(ctx, lonely, acceptFirst())
		assert.Equal(t, domain.ProbeNoCandidates, outcome.Status)
		assert.True(t, errors.Is(outcome.Err, domain.ErrNoCandidates))
	})

	t.Run("empty name", func(t *testing.T) {
		outcome := uc.MatchProbe(ctx, unnamed, acceptFirst())
		assert.Equal(t, domain.ProbeEmptyName, outcome.Status)
		assert.True(t, errors.Is(outcome.Err, domain.ErrEmptyName))
	})

	t.Run("rejected", func(t *testing.T) {
		probe := e.put(t, domain.KindAvito, "A4", avitoGreenwich)
		reject := &scriptedDecider{decide: func(domain.Proposal) domain.Decision {
			return domain.Decision{Action: domain.DecisionReject}
		}}
		outcome := uc.MatchProbe(ctx, probe, reject)
		assert.Equal(t, domain.ProbeSkipped, outcome.Status)
		assert.Equal(t, 0, e.canonical.Len())
		assert.False(t, e.source(t, domain.KindAvito, "A4").Lifecycle.IsMatched)
	})

	t.Run("index out of range", func(t *testing.T) {
		probe := e.put(t, domain.KindAvito, "A5", avitoGreenwich)
		bad := &scriptedDecider{decide: func(domain.Proposal) domain.Decision {
			return domain.Decision{Action: domain.DecisionAccept, Index: 7}
		}}
		outcome := uc.MatchProbe(ctx, probe, bad)
		assert.Equal(t, domain.ProbeFailed, outcome.Status)
		assert.Equal(t, domain.ErrorKindSchemaViolation, domain.KindOf(outcome.Err))
	})
}

func TestMatchProbe_MissingCoordinatesLeavesProbeUnmatched(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", `{"objCommercNm":"ЖК Сказка"}`)
	probe := e.put(t, domain.KindAvito, "A1", `{"development":{"name":"Сказка"}}`)

	outcome := e.matchUseCase().MatchProbe(ctx, probe, acceptFirst())

	assert.Equal(t, domain.ProbeFailed, outcome.Status)
	assert.True(t, errors.Is(outcome.Err, domain.ErrMissingCoordinates))
	assert.Equal(t, 0, e.canonical.Len())
	assert.True(t, e.source(t, domain.KindAvito, "A1").Lifecycle.Available())
	assert.True(t, e.source(t, domain.KindDomRF, "D1").Lifecycle.Available())
}

func TestMatchProbe_PartialBackRefKeepsCanonical(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	probe := e.put(t, domain.KindAvito, "A1", avitoGreenwich)
	e.sources.FailLifecycleUpdates(domain.KindDomRF, "D1", errors.New("connection reset"))

	outcome := e.matchUseCase().MatchProbe(ctx, probe, acceptFirst())

	require.Equal(t, domain.ProbeCreated, outcome.Status)
	assert.Equal(t, 1, e.canonical.Len())
	assert.True(t, e.source(t, domain.KindAvito, "A1").Lifecycle.IsMatched)
	assert.False(t, e.source(t, domain.KindDomRF, "D1").Lifecycle.IsMatched)

	// сверка восстанавливает флаг по _source_ids
	e.sources.FailLifecycleUpdates(domain.KindDomRF, "D1", nil)
	stats, err := NewReconcileBackRefsUseCase(e.sources, e.canonical, nil).Execute(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Repaired)

	d1 := e.source(t, domain.KindDomRF, "D1")
	assert.True(t, d1.Lifecycle.IsMatched)
	assert.Equal(t, outcome.CanonicalID, *d1.Lifecycle.MatchedUnifiedID)
}

func TestMatchProbe_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	probe := e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	e.put(t, domain.KindAvito, "A1", avitoGreenwich)

	processed := &scriptedDecider{decide: func(domain.Proposal) domain.Decision {
		return domain.Decision{Action: domain.DecisionMarkProcessed}
	}}
	outcome := e.matchUseCase().MatchProbe(ctx, probe, processed)

	assert.Equal(t, domain.ProbeProcessed, outcome.Status)
	d1 := e.source(t, domain.KindDomRF, "D1")
	assert.True(t, d1.Lifecycle.IsProcessed)
	assert.False(t, d1.Lifecycle.IsMatched)
	assert.Equal(t, 0, e.canonical.Len())
}

func TestRun_TalliesAndStop(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	e.put(t, domain.KindAvito, "A1", avitoGreenwich)
	e.put(t, domain.KindAvito, "A2", `{"development":{"name":"Одинокий Тополь"}}`)
	e.put(t, domain.KindAvito, "A3", `{"development":{"name":""}}`)

	var reported []domain.ProbeOutcome
	tally, err := e.matchUseCase().Run(ctx, domain.KindAvito, acceptFirst(), func(o domain.ProbeOutcome) {
		reported = append(reported, o)
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Tally{Created: 1, NoCandidates: 1, EmptyName: 1}, tally)
	require.Len(t, reported, 3)
	assert.Equal(t, "A1", reported[0].ID)

	// второй прогон не видит уже сопоставленных проб
	tally, err = e.matchUseCase().Run(ctx, domain.KindAvito, acceptFirst(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Created)
	assert.Equal(t, 2, tally.Total())

	t.Run("stop", func(t *testing.T) {
		e := newEnv(t)
		e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
		e.put(t, domain.KindAvito, "A1", avitoGreenwich)
		e.put(t, domain.KindAvito, "A2", avitoGreenwich)
		stop := &scriptedDecider{decide: func(domain.Proposal) domain.Decision {
			return domain.Decision{Action: domain.DecisionStop}
		}}

		tally, err := e.matchUseCase().Run(ctx, domain.KindAvito, stop, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.Tally{Skipped: 1}, tally)
		assert.Len(t, stop.proposals, 1)
	})

	t.Run("stop after accepting an earlier kind", func(t *testing.T) {
		e := newEnv(t)
		e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
		e.put(t, domain.KindAvito, "A1", avitoGreenwich)
		e.put(t, domain.KindAvito, "A2", avitoGreenwich)
		e.put(t, domain.KindDomClick, "C1", `{"development":{"complex_name":"Greenwich"}}`)
		decider := &scriptedDecider{decide: func(p domain.Proposal) domain.Decision {
			if p.Kind == domain.KindDomRF {
				return domain.Decision{Action: domain.DecisionAccept}
			}
			return domain.Decision{Action: domain.DecisionStop}
		}}

		var reported []domain.ProbeOutcome
		tally, err := e.matchUseCase().Run(ctx, domain.KindAvito, decider, func(o domain.ProbeOutcome) {
			reported = append(reported, o)
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Tally{Created: 1}, tally)
		require.Len(t, reported, 1)
		assert.True(t, reported[0].Stop)
		assert.Equal(t, map[domain.SourceKind]string{domain.KindDomRF: "D1"}, reported[0].Accepted)
		require.Len(t, decider.proposals, 2)
		assert.Equal(t, domain.KindDomClick, decider.proposals[1].Kind)

		rec, err := e.canonical.Get(ctx, reported[0].CanonicalID)
		require.NoError(t, err)
		assert.Equal(t, "D1", rec.SourceIDs.Get(domain.KindDomRF))
		assert.Equal(t, "A1", rec.SourceIDs.Get(domain.KindAvito))
		assert.Empty(t, rec.SourceIDs.Get(domain.KindDomClick))
		assert.True(t, e.source(t, domain.KindDomClick, "C1").Lifecycle.Available())
	})
}

func TestRun_SkipsProbesReferencedByCanonical(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	e.put(t, domain.KindAvito, "A1", avitoGreenwich)

	// флаги A1 потеряны, но каноника на него ссылается
	var ids domain.SourceIDs
	ids.Set(domain.KindAvito, "A1")
	require.NoError(t, e.canonical.Insert(ctx, &domain.CanonicalRecord{ID: "U1", SourceIDs: ids, Coordinates: &domain.Coordinates{Lat: 1, Lon: 1}}))

	decider := acceptFirst()
	tally, err := e.matchUseCase().Run(ctx, domain.KindAvito, decider, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Total())
	assert.Empty(t, decider.proposals)
}
