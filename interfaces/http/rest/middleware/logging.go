package middleware

import (
	"errors"
	"net/http"
	"time"

	"collective-rides/pkg/common"
	"collective-rides/pkg/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

var errServer = errors.New("server error")

// RequestContext records the chi request ID, the X-Ray trace header and the start time.
// It must run after chi's RequestID middleware.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := common.RequestInfo{
			RequestID: middleware.GetReqID(r.Context()),
			TraceID:   r.Header.Get("X-Amzn-Trace-Id"),
			StartedAt: time.Now(),
		}
		if info.RequestID != "" {
			w.Header().Set("X-Request-ID", info.RequestID)
		}
		next.ServeHTTP(w, r.WithContext(common.WithRequestInfo(r.Context(), info)))
	})
}

// Logger creates a logging middleware that also feeds the request metrics
func Logger(logger *zap.Logger, collector *observability.Collector, metrics *observability.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := common.RequestInfoFrom(r.Context())
			if !ok {
				info.StartedAt = time.Now()
			}

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := info.Elapsed(time.Now())
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			collector.ObserveRequest(r.Method, route, status, duration)
			if status >= http.StatusInternalServerError {
				metrics.RecordOperation(r.Context(), r.Method+" "+route, duration, errServer)
			} else {
				metrics.RecordOperation(r.Context(), r.Method+" "+route, duration, nil)
			}

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", duration),
				zap.String("requestID", info.RequestID),
				zap.String("traceID", info.TraceID),
				zap.String("remoteAddr", r.RemoteAddr),
				zap.String("userAgent", r.UserAgent()),
			)
		})
	}
}

// routePattern returns the matched chi pattern so metric labels stay bounded
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
