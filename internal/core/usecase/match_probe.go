package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/merger"
	"unification-service/internal/core/normalizer"
	"unification-service/internal/core/port"
)

// MatchProbeUseCase - контроллер матчинга: кандидаты, решение по каждому виду,
// слияние, запись и обратные ссылки. Пробы обрабатываются строго по одной.
type MatchProbeUseCase struct {
	candidates *FindCandidatesUseCase
	sources    port.SourceStorePort
	canonical  port.CanonicalStorePort
	merger     *merger.Merger
	writer     *CanonicalWriter
	metrics    port.MetricsPort

	// createdBy - кто создает каноники: оператор или автоматический драйвер
	createdBy string
	now       func() time.Time
}

func NewMatchProbeUseCase(
	candidates *FindCandidatesUseCase,
	sources port.SourceStorePort,
	canonical port.CanonicalStorePort,
	m *merger.Merger,
	writer *CanonicalWriter,
	metrics port.MetricsPort,
	createdBy string,
) *MatchProbeUseCase {
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}
	return &MatchProbeUseCase{
		candidates: candidates,
		sources:    sources,
		canonical:  canonical,
		merger:     m,
		writer:     writer,
		metrics:    metrics,
		createdBy:  createdBy,
		now:        time.Now,
	}
}

// MatchProbe доводит одну пробу до терминального состояния. Ошибки домена
// становятся статусом исхода, а не ошибкой вызова.
func (uc *MatchProbeUseCase) MatchProbe(ctx context.Context, probe *domain.SourceRecord, decider port.MatchDeciderPort) domain.ProbeOutcome {
	outcome := uc.matchProbe(ctx, probe, decider)
	uc.metrics.ProbeFinished(probe.Kind, outcome.Status)

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "MatchProbe",
		"probe_kind": string(probe.Kind),
		"probe_id":   probe.ID,
	})
	fields := port.Fields{"status": string(outcome.Status), "reason": outcome.Reason}
	switch outcome.Status {
	case domain.ProbeFailed:
		logger.Error("Probe failed", outcome.Err, fields)
	case domain.ProbeCreated:
		fields["canonical_id"] = outcome.CanonicalID
		logger.Info("Probe merged", fields)
	default:
		logger.Debug("Probe finished without merge", fields)
	}
	return outcome
}

func (uc *MatchProbeUseCase) matchProbe(ctx context.Context, probe *domain.SourceRecord, decider port.MatchDeciderPort) domain.ProbeOutcome {
	outcome := domain.ProbeOutcome{Kind: probe.Kind, ID: probe.ID, Name: probe.DisplayName()}

	if !probe.Lifecycle.Available() {
		return skipped(outcome, "probe is already matched or processed")
	}
	if _, err := normalizer.NormalizeProbe(outcome.Name); err != nil {
		outcome.Status, outcome.Reason, outcome.Err = domain.ProbeEmptyName, "probe has no usable name", err
		return outcome
	}

	candidates, err := uc.candidates.Execute(ctx, probe)
	if err != nil {
		return failed(outcome, err)
	}
	outcome.Candidates = candidates
	if len(candidates) == 0 {
		outcome.Status, outcome.Reason = domain.ProbeNoCandidates, "no candidates after all strategies"
		outcome.Err = domain.NewError(domain.ErrorKindNoCandidates, "match probe", outcome.Reason)
		return outcome
	}

	in := merger.Input{CreatedBy: uc.createdBy}
	setSlot(&in, probe)
	outcome.Accepted = make(map[domain.SourceKind]string)

decide:
	for _, kind := range domain.AllSourceKinds {
		list := candidates[kind]
		if len(list) == 0 {
			continue
		}
		decision, err := decider.Decide(ctx, domain.Proposal{Probe: probe, Kind: kind, Candidates: list})
		if err != nil {
			return failed(outcome, fmt.Errorf("decide %s candidates: %w", kind, err))
		}

		switch decision.Action {
		case domain.DecisionStop:
			// принятое по предыдущим видам этой пробы сливается, прогон заканчивается после нее
			outcome.Stop = true
			break decide
		case domain.DecisionMarkProcessed:
			if probe.Kind == domain.KindDomRF {
				return uc.markProcessed(ctx, outcome)
			}
			continue
		case domain.DecisionAccept:
			if decision.Index < 0 || decision.Index >= len(list) {
				return failed(outcome, domain.Schemaf("decide", "candidate index %d out of range", decision.Index))
			}
			chosen := list[decision.Index]
			rec, err := uc.sources.Get(ctx, chosen.Kind, chosen.SourceID)
			if err != nil {
				return failed(outcome, err)
			}
			if !rec.Lifecycle.Available() {
				// мог быть сопоставлен другим процессом после поиска
				continue
			}
			setSlot(&in, rec)
			outcome.Accepted[kind] = rec.ID
		}
	}

	if len(outcome.Accepted) == 0 {
		if outcome.Stop {
			return skipped(outcome, "stopped by operator")
		}
		return skipped(outcome, "no candidate accepted")
	}

	rec, err := uc.merger.Merge(ctx, in)
	if err != nil {
		return failed(outcome, err)
	}
	if err := uc.writer.Create(ctx, rec); err != nil {
		return failed(outcome, err)
	}
	outcome.Status, outcome.CanonicalID = domain.ProbeCreated, rec.ID
	return outcome
}

// markProcessed - проба DomRF разобрана оператором без слияния
func (uc *MatchProbeUseCase) markProcessed(ctx context.Context, outcome domain.ProbeOutcome) domain.ProbeOutcome {
	now := uc.now().UTC()
	err := uc.sources.UpdateLifecycle(ctx, outcome.Kind, outcome.ID, func(l *domain.SourceLifecycle) {
		l.IsProcessed = true
		l.ProcessedAt = &now
	})
	if err != nil {
		return failed(outcome, err)
	}
	outcome.Status, outcome.Reason = domain.ProbeProcessed, "marked processed by operator"
	return outcome
}

// MatchByID - то же для пробы по id (сообщение из очереди, REST)
func (uc *MatchProbeUseCase) MatchByID(ctx context.Context, kind domain.SourceKind, id string, decider port.MatchDeciderPort) (domain.ProbeOutcome, error) {
	probe, err := uc.sources.Get(ctx, kind, id)
	if err != nil {
		return domain.ProbeOutcome{Kind: kind, ID: id, Status: domain.ProbeFailed, Err: err}, err
	}
	return uc.MatchProbe(ctx, probe, decider), nil
}

// Run обрабатывает все доступные пробы вида по очереди. Пробы, на которые уже
// ссылается каноника, пропускаются, даже если флаги источника не выставлены.
func (uc *MatchProbeUseCase) Run(ctx context.Context, kind domain.SourceKind, decider port.MatchDeciderPort, report func(domain.ProbeOutcome)) (domain.Tally, error) {
	var tally domain.Tally
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "RunMatching",
		"probe_kind": string(kind),
	})

	probes, err := uc.sources.ListAvailable(ctx, kind, domain.SourceQuery{ExcludeFuture: kind == domain.KindDomRF})
	if err != nil {
		return tally, fmt.Errorf("load %s probes: %w", kind, err)
	}
	referenced, err := uc.canonical.ReferencedSourceIDs(ctx, kind)
	if err != nil {
		return tally, fmt.Errorf("load referenced %s ids: %w", kind, err)
	}
	logger.Info("Matching run started", port.Fields{"probes": len(probes), "already_referenced": len(referenced)})

	for _, listed := range probes {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		if _, ok := referenced[listed.ID]; ok {
			continue
		}
		probeCtx, traceID := contextkeys.EnsureTraceID(ctx, "")
		probeCtx = contextkeys.ContextWithLogger(probeCtx, contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"trace_id": traceID}))

		// состояние могло измениться после выборки
		probe, err := uc.sources.Get(probeCtx, kind, listed.ID)
		if err != nil {
			if errors.Is(err, domain.ErrSourceNotFound) {
				continue
			}
			return tally, fmt.Errorf("reload probe %s: %w", listed.ID, err)
		}
		if !probe.Lifecycle.Available() {
			continue
		}

		outcome := uc.MatchProbe(probeCtx, probe, decider)
		tally.Add(outcome.Status)
		if report != nil {
			report(outcome)
		}
		if outcome.Stop {
			logger.Info("Matching run stopped by operator", port.Fields{"tally": tally.String()})
			return tally, nil
		}
	}

	logger.Info("Matching run finished", port.Fields{"tally": tally.String()})
	return tally, nil
}

func setSlot(in *merger.Input, rec *domain.SourceRecord) {
	switch rec.Kind {
	case domain.KindDomRF:
		in.DomRF = rec
	case domain.KindAvito:
		in.Avito = rec
	case domain.KindDomClick:
		in.DomClick = rec
	}
}

func skipped(o domain.ProbeOutcome, reason string) domain.ProbeOutcome {
	o.Status, o.Reason = domain.ProbeSkipped, reason
	return o
}

func failed(o domain.ProbeOutcome, err error) domain.ProbeOutcome {
	o.Status, o.Err, o.Reason = domain.ProbeFailed, err, err.Error()
	return o
}
