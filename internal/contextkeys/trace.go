package contextkeys

import (
	"context"

	"github.com/google/uuid"
)

type traceIDKeyType struct{}

var traceIDKey = traceIDKeyType{}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext возвращает trace id или пустую строку
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// EnsureTraceID кладет в контекст переданный trace id, а если он пустой или не uuid - новый.
// Используется там, где запрос приходит не по HTTP: сообщения из очереди, пробы CLI.
func EnsureTraceID(ctx context.Context, candidate string) (context.Context, string) {
	if _, err := uuid.Parse(candidate); err != nil {
		candidate = uuid.NewString()
	}
	return ContextWithTraceID(ctx, candidate), candidate
}
