package tenure

import "context"

type contextKey int

const ctxKeyRequestID contextKey = iota

// WithRequestID returns a context whose audit entries carry the given
// request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxKeyRequestID).(string)
	if !ok {
		return ""
	}
	return v
}
