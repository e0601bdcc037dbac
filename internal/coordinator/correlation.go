package coordinator

import (
	"context"

	"github.com/google/uuid"
)

type correlationIDKey struct{}

// withCorrelationID binds a fresh correlation_id into ctx if one isn't
// already present, so every Coordinator method's log records can be
// tied together (spec §4.8's observability note).
func withCorrelationID(ctx context.Context) (context.Context, string) {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return context.WithValue(ctx, correlationIDKey{}, id), id
}

// CorrelationID returns the correlation id bound to ctx, or "" if
// none was ever set.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
