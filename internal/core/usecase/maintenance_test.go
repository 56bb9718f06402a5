package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/core/domain"
)

func ptr[T any](v T) *T { return &v }

func seedFloors(t *testing.T, e *env) {
	t.Helper()
	var ids domain.SourceIDs
	ids.Set(domain.KindAvito, "A1")
	require.NoError(t, e.canonical.Insert(context.Background(), &domain.CanonicalRecord{
		ID:          "U1",
		Coordinates: &domain.Coordinates{Lat: 54.7, Lon: 55.9},
		SourceIDs:   ids,
		ApartmentTypes: domain.ApartmentTypes{
			"1": {Apartments: []domain.ApartmentFacet{
				// одиночный этаж, прочитанный как диапазон
				{Title: "1-к. квартира, 38 м², 14 этаж", FloorMin: ptr(1), FloorMax: ptr(14)},
				// настоящий диапазон
				{Title: "1-к. квартира, 38 м², 1-14 этаж", FloorMin: ptr(1), FloorMax: ptr(14)},
				{Title: "1-к. квартира, 40 м², 7 этаж"},
			}},
			"2": {Apartments: []domain.ApartmentFacet{
				// этажность дома - не этаж квартиры
				{Title: "2-к. квартира в 14-этажном доме"},
				// неоднозначный заголовок: старую запись (1, 14) не угадываем
				{Title: "14-этажный дом, квартира на 14 этаже", FloorMin: ptr(1), FloorMax: ptr(14)},
			}},
		},
	}))
}

func TestFloorMaintenance_RepairLegacyFloors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	seedFloors(t, e)
	uc := NewFloorMaintenanceUseCase(e.canonical, e.writer)

	stats, err := uc.RepairLegacyFloors(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, domain.FloorMaintenanceStats{Complexes: 1, Apartments: 5, ApartmentsUpdated: 1, ComplexesUpdated: 1}, stats)
	unchanged, err := e.canonical.Get(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 1, *unchanged.ApartmentTypes["1"].Apartments[0].FloorMin, "сухой прогон ничего не пишет")

	_, err = uc.RepairLegacyFloors(ctx, false)
	require.NoError(t, err)
	rec, err := e.canonical.Get(ctx, "U1")
	require.NoError(t, err)
	apts := rec.ApartmentTypes["1"].Apartments
	assert.Equal(t, 14, *apts[0].FloorMin)
	assert.Equal(t, 14, *apts[0].FloorMax)
	assert.Equal(t, 1, *apts[1].FloorMin)
	ambiguous := rec.ApartmentTypes["2"].Apartments[1]
	assert.Equal(t, 1, *ambiguous.FloorMin)
	assert.Equal(t, 14, *ambiguous.FloorMax)
	assert.Equal(t, []domain.UnificationEventType{domain.EventUnifiedUpdated}, e.events.types())

	stats, err = uc.RepairLegacyFloors(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ApartmentsUpdated)
}

func TestFloorMaintenance_MigrateFloors(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	seedFloors(t, e)
	uc := NewFloorMaintenanceUseCase(e.canonical, e.writer)

	stats, err := uc.MigrateFloors(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ApartmentsUpdated)

	rec, err := e.canonical.Get(ctx, "U1")
	require.NoError(t, err)
	filled := rec.ApartmentTypes["1"].Apartments[2]
	require.NotNil(t, filled.FloorMin)
	assert.Equal(t, 7, *filled.FloorMin)
	assert.Equal(t, 7, *filled.FloorMax)

	ambiguous := rec.ApartmentTypes["2"].Apartments[0]
	assert.Nil(t, ambiguous.FloorMin)
	assert.Nil(t, ambiguous.FloorMax)
}

func TestReconcileBackRefs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	e.put(t, domain.KindAvito, "A1", avitoGreenwich)
	e.put(t, domain.KindDomRF, "D2", `{"objCommercNm":"ЖК Будущий"}`)
	e.put(t, domain.KindDomRF, "D3", `{"objCommercNm":"ЖК Отпущенный"}`)

	coords := &domain.Coordinates{Lat: 54.7, Lon: 55.9}
	var live, future, released domain.SourceIDs
	live.Set(domain.KindDomRF, "D1")
	live.Set(domain.KindAvito, "A1")
	live.Set(domain.KindDomClick, "C404")
	future.Set(domain.KindDomRF, "D2")
	released.Set(domain.KindDomRF, "D3")
	require.NoError(t, e.canonical.Insert(ctx, &domain.CanonicalRecord{ID: "U1", SourceIDs: live, Coordinates: coords}))
	require.NoError(t, e.canonical.Insert(ctx, &domain.CanonicalRecord{ID: "U2", SourceIDs: future, IsFuture: true}))
	require.NoError(t, e.canonical.Insert(ctx, &domain.CanonicalRecord{ID: "U3", SourceIDs: released, Coordinates: coords}))

	// A1 указывает на чужую запись, D3 отпущен удалением будущего проекта
	require.NoError(t, e.sources.UpdateLifecycle(ctx, domain.KindAvito, "A1", func(l *domain.SourceLifecycle) {
		l.IsMatched = true
		l.MatchedUnifiedID = ptr("U-old")
	}))
	require.NoError(t, e.sources.UpdateLifecycle(ctx, domain.KindDomRF, "D3", func(l *domain.SourceLifecycle) {
		l.IsProcessed = true
	}))

	uc := NewReconcileBackRefsUseCase(e.sources, e.canonical, nil)

	stats, err := uc.Execute(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileStats{Canonicals: 3, Checked: 4, Repaired: 2, Missing: 1}, stats)
	assert.False(t, e.source(t, domain.KindDomRF, "D1").Lifecycle.IsMatched)

	stats, err = uc.Execute(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Repaired)

	d1 := e.source(t, domain.KindDomRF, "D1")
	assert.True(t, d1.Lifecycle.IsMatched)
	assert.True(t, d1.Lifecycle.IsProcessed)
	assert.Equal(t, "U1", *e.source(t, domain.KindAvito, "A1").Lifecycle.MatchedUnifiedID)
	assert.False(t, e.source(t, domain.KindDomRF, "D2").Lifecycle.IsMatched)
	assert.False(t, e.source(t, domain.KindDomRF, "D3").Lifecycle.IsMatched)

	stats, err = uc.Execute(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Repaired)
}
