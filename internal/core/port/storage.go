package port

import (
	"context"

	"unification-service/internal/core/domain"
)

// SourceStorePort - чтение трех коллекций источников. Ядро меняет только флаги жизненного цикла.
// Все методы поиска возвращают только доступные записи: is_matched != true и is_processed != true.
type SourceStorePort interface {
	// Get возвращает запись независимо от флагов; отсутствие - domain.ErrSourceNotFound
	Get(ctx context.Context, kind domain.SourceKind, id string) (*domain.SourceRecord, error)

	ListAvailable(ctx context.Context, kind domain.SourceKind, q domain.SourceQuery) ([]*domain.SourceRecord, error)

	// FindByNormalizedName - равенство по сохраненному normalized_name
	FindByNormalizedName(ctx context.Context, kind domain.SourceKind, normalized string) ([]*domain.SourceRecord, error)
	// FindByNormalizedPattern - регулярное выражение по normalized_name без учета регистра
	FindByNormalizedPattern(ctx context.Context, kind domain.SourceKind, pattern string) ([]*domain.SourceRecord, error)
	// FindByDisplayPattern - то же по исходному названию источника
	FindByDisplayPattern(ctx context.Context, kind domain.SourceKind, pattern string) ([]*domain.SourceRecord, error)

	// UpdateLifecycle атомарно применяет mutate к флагам записи
	UpdateLifecycle(ctx context.Context, kind domain.SourceKind, id string, mutate func(*domain.SourceLifecycle)) error
}

// CanonicalStorePort - коллекция unified_houses
type CanonicalStorePort interface {
	Insert(ctx context.Context, rec *domain.CanonicalRecord) error
	// Get: отсутствие - domain.ErrCanonicalNotFound
	Get(ctx context.Context, id string) (*domain.CanonicalRecord, error)
	Replace(ctx context.Context, rec *domain.CanonicalRecord) error
	// UpdateFields применяет точечные пути ("development.name") и возвращает новую запись
	UpdateFields(ctx context.Context, id string, set map[string]any) (*domain.CanonicalRecord, error)

	// ForEach обходит все записи в порядке создания; ошибка fn останавливает обход
	ForEach(ctx context.Context, fn func(*domain.CanonicalRecord) error) error
	// FindNear - записи рядом с точкой по геохешу, ближайшие первыми
	FindNear(ctx context.Context, lat, lon float64, limit int) ([]*domain.CanonicalRecord, error)

	// ReferencedSourceIDs - id источников вида kind, на которые ссылаются канонические записи
	ReferencedSourceIDs(ctx context.Context, kind domain.SourceKind) (map[string]string, error)
}

// NormalizedNameStorePort - пересчет индексируемого normalized_name после изменения правил нормализатора
type NormalizedNameStorePort interface {
	// ScanNames обходит все записи вида, включая сопоставленные
	ScanNames(ctx context.Context, kind domain.SourceKind, fn func(id, displayName, normalized string) error) error
	// SetNormalizedNames записывает пачку id -> normalized_name, возвращает число измененных строк
	SetNormalizedNames(ctx context.Context, kind domain.SourceKind, names map[string]string) (int, error)
}
