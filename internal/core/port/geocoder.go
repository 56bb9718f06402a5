package port

import (
	"context"

	"unification-service/internal/core/domain"
)

// GeocoderPort - обратное геокодирование. Никогда не возвращает ошибку:
// недоступность геокодера означает пустой результат.
type GeocoderPort interface {
	Reverse(ctx context.Context, lat, lon float64) domain.GeoAddress
}
