package usecase

import (
	"context"
	"fmt"

	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/merger"
	"unification-service/internal/core/port"
)

// ManualMergeUseCase - слияние выбранных оператором записей и предпросмотр
type ManualMergeUseCase struct {
	sources port.SourceStorePort
	merger  *merger.Merger
	writer  *CanonicalWriter
}

func NewManualMergeUseCase(sources port.SourceStorePort, m *merger.Merger, writer *CanonicalWriter) *ManualMergeUseCase {
	return &ManualMergeUseCase{sources: sources, merger: m, writer: writer}
}

func (uc *ManualMergeUseCase) Merge(ctx context.Context, req domain.MergeRequest) (*domain.CanonicalRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ManualMerge",
		"domrf":    req.DomRFID,
		"avito":    req.AvitoID,
		"domclick": req.DomClickID,
	})
	logger.Info("Use case started", nil)

	in, err := uc.prepare(ctx, req, false)
	if err != nil {
		return nil, err
	}
	in.Source, in.CreatedBy = constants.SourceTagManual, constants.CreatedByManual

	rec, err := uc.merger.Merge(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("manual merge: %w", err)
	}
	if err := uc.writer.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("manual merge: %w", err)
	}

	logger.Info("Use case finished", port.Fields{"canonical_id": rec.ID})
	return rec, nil
}

// Preview возвращает ту же запись, что и Merge, без записи и без изменения источников
func (uc *ManualMergeUseCase) Preview(ctx context.Context, req domain.MergeRequest) (*domain.CanonicalRecord, error) {
	in, err := uc.prepare(ctx, req, true)
	if err != nil {
		return nil, err
	}
	in.Source, in.CreatedBy = constants.SourceTagManualPreview, constants.CreatedByManual

	rec, err := uc.merger.Merge(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("merge preview: %w", err)
	}
	return rec, nil
}

// prepare проверяет запрос без ввода-вывода, затем читает источники.
// Уже сопоставленный источник в слияние не берется, кроме предпросмотра.
func (uc *ManualMergeUseCase) prepare(ctx context.Context, req domain.MergeRequest, preview bool) (merger.Input, error) {
	ids := req.SourceIDs()
	if ids.Empty() {
		return merger.Input{}, domain.Schemaf("manual merge", "at least one of domrf_id, avito_id, domclick_id is required")
	}
	coords, err := domain.ParseCoordinatePair(req.Latitude, req.Longitude)
	if err != nil {
		return merger.Input{}, err
	}

	in := merger.Input{Coordinates: coords, AgentID: req.AgentID, IsFeatured: req.IsFeatured}
	for _, kind := range ids.Kinds() {
		rec, err := uc.sources.Get(ctx, kind, ids.Get(kind))
		if err != nil {
			return merger.Input{}, fmt.Errorf("manual merge: %w", err)
		}
		if !preview && rec.Lifecycle.IsMatched {
			return merger.Input{}, domain.Schemaf("manual merge", "%s record %s is already matched to %s",
				kind, rec.ID, deref(rec.Lifecycle.MatchedUnifiedID))
		}
		setSlot(&in, rec)
	}
	return in, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
