package port

import (
	"context"

	"unification-service/internal/core/domain"
)

// MatchDeciderPort отвечает на вопрос "какого кандидата принять".
// Интерактивный драйвер спрашивает оператора, пакетный применяет правило.
type MatchDeciderPort interface {
	Decide(ctx context.Context, proposal domain.Proposal) (domain.Decision, error)
}
