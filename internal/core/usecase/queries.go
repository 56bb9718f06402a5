package usecase

import (
	"context"
	"fmt"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type GetUnifiedUseCase struct {
	canonical port.CanonicalStorePort
}

func NewGetUnifiedUseCase(canonical port.CanonicalStorePort) *GetUnifiedUseCase {
	return &GetUnifiedUseCase{canonical: canonical}
}

func (uc *GetUnifiedUseCase) GetByID(ctx context.Context, id string) (*domain.CanonicalRecord, error) {
	rec, err := uc.canonical.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get unified: %w", err)
	}
	return rec, nil
}

// FindNear - записи в соседних ячейках геохеша, ближайшие первыми
func (uc *GetUnifiedUseCase) FindNear(ctx context.Context, lat, lon float64, limit int) ([]*domain.CanonicalRecord, error) {
	if !(domain.Coordinates{Lat: lat, Lon: lon}).InRange() {
		return nil, domain.NewError(domain.ErrorKindInvalidCoordinates, "find near", fmt.Sprintf("(%v, %v) out of range", lat, lon))
	}
	recs, err := uc.canonical.FindNear(ctx, lat, lon, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("find near: %w", err)
	}
	return recs, nil
}

// ListUnmatchedUseCase - очередь несопоставленных записей для админки
type ListUnmatchedUseCase struct {
	sources port.SourceStorePort
}

func NewListUnmatchedUseCase(sources port.SourceStorePort) *ListUnmatchedUseCase {
	return &ListUnmatchedUseCase{sources: sources}
}

func (uc *ListUnmatchedUseCase) Execute(ctx context.Context, kind domain.SourceKind, q domain.SourceQuery) ([]*domain.SourceRecord, error) {
	if !kind.Valid() {
		return nil, domain.Schemaf("list unmatched", "unknown source kind %q", kind)
	}
	q.Limit = clampLimit(q.Limit)
	recs, err := uc.sources.ListAvailable(ctx, kind, q)
	if err != nil {
		return nil, fmt.Errorf("list unmatched %s: %w", kind, err)
	}
	return recs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
