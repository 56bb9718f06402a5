package port

import (
	"context"

	"unification-service/internal/core/domain"
)

// UnificationEventsPort публикует изменения unified_houses для потребителей каталога
type UnificationEventsPort interface {
	Publish(ctx context.Context, event domain.UnificationEvent) error
}

// EventListenerPort определяет контракт для компонента, который слушает
// внешние события (сообщения из очереди) и запускает
// соответствующую бизнес-логику
type EventListenerPort interface {
	// Start запускает слушателя
	Start(ctx context.Context) error

	// Close корректно останавливает слушателя
	Close() error
}
