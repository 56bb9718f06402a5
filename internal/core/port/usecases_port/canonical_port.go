package usecases_port

import (
	"context"

	"unification-service/internal/core/domain"
)

// ManualMergeUseCase - ручное слияние и предпросмотр из админки
type ManualMergeUseCase interface {
	Merge(ctx context.Context, req domain.MergeRequest) (*domain.CanonicalRecord, error)
	Preview(ctx context.Context, req domain.MergeRequest) (*domain.CanonicalRecord, error)
}

type FutureProjectUseCase interface {
	Create(ctx context.Context, req domain.FutureProjectRequest) (*domain.CanonicalRecord, error)
	Delete(ctx context.Context, canonicalID string) (*domain.CanonicalRecord, error)
}

// UpdateUnifiedUseCase - правка каноники по белому списку путей
type UpdateUnifiedUseCase interface {
	Update(ctx context.Context, id string, patch map[string]any) (*domain.CanonicalRecord, error)
	SetFeatured(ctx context.Context, id string, featured bool) (*domain.CanonicalRecord, error)
}

type RebuildUseCase interface {
	Rebuild(ctx context.Context, id string) (*domain.CanonicalRecord, error)
	RebuildAll(ctx context.Context) (domain.RebuildStats, error)
}

type GetUnifiedUseCase interface {
	GetByID(ctx context.Context, id string) (*domain.CanonicalRecord, error)
	FindNear(ctx context.Context, lat, lon float64, limit int) ([]*domain.CanonicalRecord, error)
}

type ListUnmatchedUseCase interface {
	Execute(ctx context.Context, kind domain.SourceKind, q domain.SourceQuery) ([]*domain.SourceRecord, error)
}
