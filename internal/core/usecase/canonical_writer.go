package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

// CanonicalWriter - запись каноники и обратных ссылок на источники.
// Каноника пишется раньше флагов источников; сбой флага не откатывает каноническую запись.
type CanonicalWriter struct {
	canonical port.CanonicalStorePort
	sources   port.SourceStorePort
	events    port.UnificationEventsPort
	metrics   port.MetricsPort

	now   func() time.Time
	newID func() string
}

func NewCanonicalWriter(canonical port.CanonicalStorePort, sources port.SourceStorePort, events port.UnificationEventsPort, metrics port.MetricsPort) *CanonicalWriter {
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}
	return &CanonicalWriter{
		canonical: canonical,
		sources:   sources,
		events:    events,
		metrics:   metrics,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create вставляет новую каноническую запись и помечает источники сопоставленными.
// Для будущего проекта вместо is_matched пишется только future_project_id у DomRF.
func (w *CanonicalWriter) Create(ctx context.Context, rec *domain.CanonicalRecord) error {
	if rec.SourceIDs.Empty() {
		return domain.Schemaf("create canonical", "_source_ids must reference at least one source")
	}
	if rec.ID == "" {
		rec.ID = w.newID()
	}
	now := w.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = nil

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":    "CanonicalWriter",
		"canonical_id": rec.ID,
	})

	if err := w.canonical.Insert(ctx, rec); err != nil {
		return fmt.Errorf("insert canonical %s: %w", rec.ID, err)
	}

	eventType := domain.EventUnifiedCreated
	if rec.IsFuture {
		w.markFutureProject(ctx, logger, rec, now)
		eventType = domain.EventFutureProjectCreated
		w.metrics.CanonicalWritten("future_created")
	} else {
		w.MarkMatched(ctx, rec)
		w.metrics.CanonicalWritten("created")
	}

	logger.Info("Canonical record created", port.Fields{
		"name":       rec.Development.Name,
		"source_ids": rec.SourceIDs.Kinds(),
		"is_future":  rec.IsFuture,
	})
	w.publish(ctx, domain.NewUnificationEvent(eventType, rec, now))
	return nil
}

// MarkMatched проставляет is_matched/matched_unified_id/matched_at всем источникам записи,
// DomRF дополнительно помечается обработанным. Возвращает виды, которые не удалось обновить.
func (w *CanonicalWriter) MarkMatched(ctx context.Context, rec *domain.CanonicalRecord) []domain.SourceKind {
	now := w.now().UTC()
	var failed []domain.SourceKind
	for _, kind := range rec.SourceIDs.Kinds() {
		canonicalID := rec.ID
		err := w.sources.UpdateLifecycle(ctx, kind, rec.SourceIDs.Get(kind), func(l *domain.SourceLifecycle) {
			l.IsMatched = true
			l.MatchedUnifiedID = &canonicalID
			l.MatchedAt = &now
			if kind == domain.KindDomRF {
				l.IsProcessed = true
				l.ProcessedAt = &now
			}
		})
		if err != nil {
			failed = append(failed, kind)
			w.backRefFailed(ctx, rec.ID, kind, rec.SourceIDs.Get(kind), err)
		}
	}
	return failed
}

func (w *CanonicalWriter) markFutureProject(ctx context.Context, logger port.LoggerPort, rec *domain.CanonicalRecord, now time.Time) {
	id := rec.SourceIDs.Get(domain.KindDomRF)
	if id == "" {
		logger.Warn("Future project has no DomRF source, nothing to mark", nil)
		return
	}
	canonicalID := rec.ID
	err := w.sources.UpdateLifecycle(ctx, domain.KindDomRF, id, func(l *domain.SourceLifecycle) {
		l.FutureProjectID = &canonicalID
	})
	if err != nil {
		w.backRefFailed(ctx, rec.ID, domain.KindDomRF, id, err)
	}
}

// ReassertBackRefs повторно проставляет обратные ссылки после замены записи
func (w *CanonicalWriter) ReassertBackRefs(ctx context.Context, rec *domain.CanonicalRecord) []domain.SourceKind {
	if !rec.IsFuture {
		return w.MarkMatched(ctx, rec)
	}
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":    "CanonicalWriter",
		"canonical_id": rec.ID,
	})
	w.markFutureProject(ctx, logger, rec, w.now().UTC())
	return nil
}

// ReleaseSources - логическое удаление: источники помечаются обработанными,
// ссылка на будущий проект снимается
func (w *CanonicalWriter) ReleaseSources(ctx context.Context, rec *domain.CanonicalRecord) []domain.SourceKind {
	now := w.now().UTC()
	var failed []domain.SourceKind
	for _, kind := range rec.SourceIDs.Kinds() {
		err := w.sources.UpdateLifecycle(ctx, kind, rec.SourceIDs.Get(kind), func(l *domain.SourceLifecycle) {
			l.IsProcessed = true
			l.ProcessedAt = &now
			l.FutureProjectID = nil
		})
		if err != nil {
			failed = append(failed, kind)
			w.backRefFailed(ctx, rec.ID, kind, rec.SourceIDs.Get(kind), err)
		}
	}
	return failed
}

// Replace заменяет запись целиком с сохранением created_at
func (w *CanonicalWriter) Replace(ctx context.Context, rec *domain.CanonicalRecord, eventType domain.UnificationEventType) error {
	now := w.now().UTC()
	rec.UpdatedAt = &now
	if err := w.canonical.Replace(ctx, rec); err != nil {
		return fmt.Errorf("replace canonical %s: %w", rec.ID, err)
	}
	w.metrics.CanonicalWritten("replaced")
	w.publish(ctx, domain.NewUnificationEvent(eventType, rec, now))
	return nil
}

// UpdateFields - точечное обновление с отметкой updated_at
func (w *CanonicalWriter) UpdateFields(ctx context.Context, id string, set map[string]any, eventType domain.UnificationEventType) (*domain.CanonicalRecord, error) {
	now := w.now().UTC()
	set["updated_at"] = now
	rec, err := w.canonical.UpdateFields(ctx, id, set)
	if err != nil {
		return nil, fmt.Errorf("update canonical %s: %w", id, err)
	}
	w.metrics.CanonicalWritten("updated")
	w.publish(ctx, domain.NewUnificationEvent(eventType, rec, now))
	return rec, nil
}

func (w *CanonicalWriter) backRefFailed(ctx context.Context, canonicalID string, kind domain.SourceKind, sourceID string, err error) {
	w.metrics.BackRefFailed(kind)
	contextkeys.LoggerFromContext(ctx).Warn("Canonical written but source flags were not updated", port.Fields{
		"canonical_id": canonicalID,
		"source_kind":  string(kind),
		"source_id":    sourceID,
		"error":        err.Error(),
		"error_type":   string(domain.ErrorKindPersistencePartialBackRef),
	})
}

// publish - события не влияют на результат операции
func (w *CanonicalWriter) publish(ctx context.Context, event domain.UnificationEvent) {
	if w.events == nil {
		return
	}
	if err := w.events.Publish(ctx, event); err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to publish unification event", err, port.Fields{
			"event_type":   string(event.Type),
			"canonical_id": event.CanonicalID,
		})
	}
}
