package common

import (
	"context"
	"time"
)

type requestInfoKey struct{}

// RequestInfo is the per-request correlation data set once by the HTTP middleware
type RequestInfo struct {
	RequestID string
	TraceID   string
	StartedAt time.Time
}

// Elapsed is the time spent on the request as of now
func (i RequestInfo) Elapsed(now time.Time) time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(i.StartedAt)
}

// WithRequestInfo stores info in ctx
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the info stored by WithRequestInfo
func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
