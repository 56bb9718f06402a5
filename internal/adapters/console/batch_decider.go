package console

import (
	"context"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

// minLead - на сколько лучший кандидат должен опережать второго
const minLead = 0.05

// BatchDecider - правило автоматического драйвера и слушателя очереди
type BatchDecider struct {
	threshold float64
}

var _ port.MatchDeciderPort = (*BatchDecider)(nil)

func NewBatchDecider(threshold float64) *BatchDecider {
	return &BatchDecider{threshold: threshold}
}

// Decide принимает кандидата, если он единственный и набрал хотя бы половину порога,
// или если лучший набрал порог и опережает второго не меньше чем на minLead.
// Кандидаты приходят отсортированными по убыванию score.
func (d *BatchDecider) Decide(_ context.Context, p domain.Proposal) (domain.Decision, error) {
	switch len(p.Candidates) {
	case 0:
		return domain.Decision{Action: domain.DecisionReject, Reason: "no candidates"}, nil
	case 1:
		if p.Candidates[0].Score >= d.threshold/2 {
			return domain.Decision{Action: domain.DecisionAccept, Index: 0, Reason: "single candidate"}, nil
		}
		return domain.Decision{Action: domain.DecisionReject, Reason: "low score"}, nil
	}

	top, second := p.Candidates[0].Score, p.Candidates[1].Score
	if top >= d.threshold && top-second >= minLead {
		return domain.Decision{Action: domain.DecisionAccept, Index: 0, Reason: "clear leader"}, nil
	}
	return domain.Decision{Action: domain.DecisionReject, Reason: "ambiguous"}, nil
}
