package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

// ReconcileBackRefsUseCase пересчитывает флаги источников по _source_ids каноник.
// Каноника главнее флагов, поэтому обход не требует координации с матчингом.
type ReconcileBackRefsUseCase struct {
	sources   port.SourceStorePort
	canonical port.CanonicalStorePort
	metrics   port.MetricsPort
	now       func() time.Time
}

func NewReconcileBackRefsUseCase(sources port.SourceStorePort, canonical port.CanonicalStorePort, metrics port.MetricsPort) *ReconcileBackRefsUseCase {
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}
	return &ReconcileBackRefsUseCase{sources: sources, canonical: canonical, metrics: metrics, now: time.Now}
}

func (uc *ReconcileBackRefsUseCase) Execute(ctx context.Context, dryRun bool) (domain.ReconcileStats, error) {
	var stats domain.ReconcileStats
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ReconcileBackRefs",
		"dry_run":  dryRun,
	})

	err := uc.canonical.ForEach(ctx, func(rec *domain.CanonicalRecord) error {
		stats.Canonicals++
		// будущий проект не помечает источник сопоставленным
		if rec.IsFuture {
			return nil
		}
		for _, kind := range rec.SourceIDs.Kinds() {
			stats.Checked++
			id := rec.SourceIDs.Get(kind)
			fields := port.Fields{"canonical_id": rec.ID, "source_kind": string(kind), "source_id": id}

			src, err := uc.sources.Get(ctx, kind, id)
			if err != nil {
				if errors.Is(err, domain.ErrSourceNotFound) {
					stats.Missing++
					logger.Warn("Referenced source does not exist", fields)
					continue
				}
				return err
			}
			if !needsRepair(src.Lifecycle, rec.ID) {
				continue
			}
			if src.Lifecycle.IsMatched {
				fields["previous_unified_id"] = deref(src.Lifecycle.MatchedUnifiedID)
				logger.Warn("Source points to another unified record", fields)
			}

			stats.Repaired++
			if dryRun {
				logger.Info("Would repair back-reference", fields)
				continue
			}
			if err := uc.repair(ctx, kind, id, rec.ID); err != nil {
				stats.Repaired--
				stats.Failed++
				uc.metrics.BackRefFailed(kind)
				logger.Error("Back-reference repair failed", err, fields)
			}
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("reconcile back-references: %w", err)
	}

	logger.Info("Reconciliation finished", port.Fields{
		"canonicals": stats.Canonicals,
		"checked":    stats.Checked,
		"repaired":   stats.Repaired,
		"missing":    stats.Missing,
		"failed":     stats.Failed,
	})
	return stats, nil
}

// needsRepair: источник, отпущенный удалением будущего проекта (обработан, но не сопоставлен),
// остается как есть
func needsRepair(l domain.SourceLifecycle, canonicalID string) bool {
	if l.IsMatched {
		return deref(l.MatchedUnifiedID) != canonicalID || l.MatchedAt == nil
	}
	return !l.IsProcessed
}

func (uc *ReconcileBackRefsUseCase) repair(ctx context.Context, kind domain.SourceKind, id, canonicalID string) error {
	now := uc.now().UTC()
	return uc.sources.UpdateLifecycle(ctx, kind, id, func(l *domain.SourceLifecycle) {
		l.IsMatched = true
		l.MatchedUnifiedID = &canonicalID
		if l.MatchedAt == nil {
			l.MatchedAt = &now
		}
		if kind == domain.KindDomRF && !l.IsProcessed {
			l.IsProcessed = true
			l.ProcessedAt = &now
		}
	})
}
