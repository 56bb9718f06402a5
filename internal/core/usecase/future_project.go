package usecase

import (
	"context"
	"fmt"
	"strings"

	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/merger"
	"unification-service/internal/core/port"
)

// FutureProjectUseCase - будущие проекты по записям DomRF.
// Источник не помечается is_matched и остается доступным для слияния.
type FutureProjectUseCase struct {
	sources   port.SourceStorePort
	canonical port.CanonicalStorePort
	merger    *merger.Merger
	writer    *CanonicalWriter
}

func NewFutureProjectUseCase(sources port.SourceStorePort, canonical port.CanonicalStorePort, m *merger.Merger, writer *CanonicalWriter) *FutureProjectUseCase {
	return &FutureProjectUseCase{sources: sources, canonical: canonical, merger: m, writer: writer}
}

func (uc *FutureProjectUseCase) Create(ctx context.Context, req domain.FutureProjectRequest) (*domain.CanonicalRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "CreateFutureProject",
		"domrf":    req.DomRFID,
	})

	if strings.TrimSpace(req.DomRFID) == "" {
		return nil, domain.Schemaf("create future project", "domrf_id is required")
	}
	coords, err := domain.ParseCoordinatePair(req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}

	domrf, err := uc.sources.Get(ctx, domain.KindDomRF, req.DomRFID)
	if err != nil {
		return nil, fmt.Errorf("create future project: %w", err)
	}
	if domrf.Lifecycle.FutureProjectID != nil {
		return nil, domain.Schemaf("create future project", "domrf record %s already has future project %s",
			domrf.ID, *domrf.Lifecycle.FutureProjectID)
	}
	if domrf.Lifecycle.IsMatched {
		return nil, domain.Schemaf("create future project", "domrf record %s is already matched", domrf.ID)
	}

	rec, err := uc.merger.Merge(ctx, merger.Input{
		DomRF:                   domrf,
		Coordinates:             coords,
		AllowMissingCoordinates: req.AllowMissingCoordinates,
		Name:                    req.Name,
		Source:                  constants.SourceTagManual,
		CreatedBy:               constants.CreatedByManual,
		AgentID:                 req.AgentID,
		IsFuture:                true,
	})
	if err != nil {
		return nil, fmt.Errorf("create future project: %w", err)
	}
	if err := uc.writer.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create future project: %w", err)
	}

	logger.Info("Future project created", port.Fields{"canonical_id": rec.ID, "name": rec.Development.Name})
	return rec, nil
}

// Delete - логическое удаление: is_future снимается, источники помечаются обработанными
func (uc *FutureProjectUseCase) Delete(ctx context.Context, canonicalID string) (*domain.CanonicalRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":     "DeleteFutureProject",
		"canonical_id": canonicalID,
	})

	current, err := uc.canonical.Get(ctx, canonicalID)
	if err != nil {
		return nil, fmt.Errorf("delete future project: %w", err)
	}
	if !current.IsFuture {
		return nil, domain.Schemaf("delete future project", "unified record %s is not a future project", canonicalID)
	}

	rec, err := uc.writer.UpdateFields(ctx, canonicalID, map[string]any{"is_future": false}, domain.EventFutureProjectDeleted)
	if err != nil {
		return nil, fmt.Errorf("delete future project: %w", err)
	}
	failed := uc.writer.ReleaseSources(ctx, rec)

	logger.Info("Future project deleted", port.Fields{"released": rec.SourceIDs.Kinds(), "failed": failed})
	return rec, nil
}
