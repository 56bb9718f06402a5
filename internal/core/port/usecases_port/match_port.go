package usecases_port

import (
	"context"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

// FindCandidatesUseCase - кандидаты из двух других источников, отсортированные по score
type FindCandidatesUseCase interface {
	Execute(ctx context.Context, probe *domain.SourceRecord) (map[domain.SourceKind][]domain.Candidate, error)
	ForSource(ctx context.Context, kind domain.SourceKind, id string) (*domain.SourceRecord, map[domain.SourceKind][]domain.Candidate, error)
}

// MatchProbeUseCase - контроллер матчинга одной пробы и прогона по всем пробам вида
type MatchProbeUseCase interface {
	MatchProbe(ctx context.Context, probe *domain.SourceRecord, decider port.MatchDeciderPort) domain.ProbeOutcome
	MatchByID(ctx context.Context, kind domain.SourceKind, id string, decider port.MatchDeciderPort) (domain.ProbeOutcome, error)
	Run(ctx context.Context, kind domain.SourceKind, decider port.MatchDeciderPort, report func(domain.ProbeOutcome)) (domain.Tally, error)
}
