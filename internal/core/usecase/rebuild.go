package usecase

import (
	"context"
	"errors"
	"fmt"

	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/merger"
	"unification-service/internal/core/port"
)

// RebuildUseCase - принудительная пересборка каноники из свежих записей источников
type RebuildUseCase struct {
	sources   port.SourceStorePort
	canonical port.CanonicalStorePort
	merger    *merger.Merger
	writer    *CanonicalWriter
}

func NewRebuildUseCase(sources port.SourceStorePort, canonical port.CanonicalStorePort, m *merger.Merger, writer *CanonicalWriter) *RebuildUseCase {
	return &RebuildUseCase{sources: sources, canonical: canonical, merger: m, writer: writer}
}

func (uc *RebuildUseCase) Rebuild(ctx context.Context, id string) (*domain.CanonicalRecord, error) {
	current, err := uc.canonical.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	return uc.rebuild(ctx, current)
}

func (uc *RebuildUseCase) rebuild(ctx context.Context, current *domain.CanonicalRecord) (*domain.CanonicalRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":     "Rebuild",
		"canonical_id": current.ID,
	})

	in := merger.Input{
		Source:                  constants.SourceTagUnified,
		CreatedBy:               constants.CreatedByScript,
		AgentID:                 current.AgentID,
		IsFeatured:              current.IsFeatured,
		IsFuture:                current.IsFuture,
		AllowMissingCoordinates: current.IsFuture,
	}
	var dropped []domain.SourceKind
	for _, kind := range current.SourceIDs.Kinds() {
		rec, err := uc.sources.Get(ctx, kind, current.SourceIDs.Get(kind))
		if err != nil {
			if errors.Is(err, domain.ErrSourceNotFound) {
				dropped = append(dropped, kind)
				continue
			}
			return nil, fmt.Errorf("rebuild %s: %w", current.ID, err)
		}
		setSlot(&in, rec)
	}
	if in.DomRF == nil && in.Avito == nil && in.DomClick == nil {
		return nil, domain.NewError(domain.ErrorKindSourceNotFound, "rebuild",
			fmt.Sprintf("none of the sources of %s exist", current.ID)).WithField("canonical_id", current.ID)
	}
	if len(dropped) > 0 {
		logger.Warn("Missing sources dropped from _source_ids", port.Fields{"dropped": dropped})
	}

	// ручные координаты сохраняются, если источники своих не дают
	if current.Coordinates != nil && !sourcesHaveCoordinates(in) {
		c := *current.Coordinates
		in.Coordinates = &c
	}
	// название будущего проекта задано оператором
	if current.IsFuture {
		in.Name = current.Development.Name
	}

	rec, err := uc.merger.Merge(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", current.ID, err)
	}
	rec.ID = current.ID
	rec.CreatedAt = current.CreatedAt
	rec.Rating = current.Rating
	rec.RatingDescription = current.RatingDescription
	rec.RatingCreatedAt = current.RatingCreatedAt
	rec.RatingUpdatedAt = current.RatingUpdatedAt

	if err := uc.writer.Replace(ctx, rec, domain.EventUnifiedRebuilt); err != nil {
		return nil, err
	}
	failed := uc.writer.ReassertBackRefs(ctx, rec)

	logger.Info("Unified record rebuilt", port.Fields{
		"apartment_types": rec.ApartmentTypes.Keys(),
		"backref_failed":  failed,
	})
	return rec, nil
}

// RebuildAll пересобирает все записи; ошибка одной записи не останавливает обход
func (uc *RebuildUseCase) RebuildAll(ctx context.Context) (domain.RebuildStats, error) {
	var stats domain.RebuildStats
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "RebuildAll"})

	err := uc.canonical.ForEach(ctx, func(current *domain.CanonicalRecord) error {
		stats.Total++
		if _, err := uc.rebuild(ctx, current); err != nil {
			stats.Failed++
			logger.Error("Rebuild failed", err, port.Fields{"canonical_id": current.ID})
			return nil
		}
		stats.Rebuilt++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("rebuild all: %w", err)
	}

	logger.Info("Rebuild finished", port.Fields{"total": stats.Total, "rebuilt": stats.Rebuilt, "failed": stats.Failed})
	return stats, nil
}

func sourcesHaveCoordinates(in merger.Input) bool {
	for _, rec := range []*domain.SourceRecord{in.DomRF, in.Avito, in.DomClick} {
		if rec != nil && rec.Coordinates() != nil {
			return true
		}
	}
	return false
}
