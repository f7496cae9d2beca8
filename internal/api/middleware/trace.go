package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/atlas-api/internal/api/shared"
)

// TraceMiddleware adds a trace ID to the request context and echoes it in
// the X-Trace-Id response header. This middleware should be applied early
// in the middleware chain so that all subsequent handlers have access to
// the trace ID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		w.Header().Set("X-Trace-Id", traceID)

		slog.Debug("request started",
			slog.String("trace_id", traceID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
