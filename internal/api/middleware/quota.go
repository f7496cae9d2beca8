package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/metrics"
	"github.com/phrazzld/atlas-api/internal/ratelimit"
)

// QuotaMiddleware enforces per-identity request quotas. It must run after
// Authenticate, which places the identity in the context.
type QuotaMiddleware struct {
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
}

// NewQuotaMiddleware creates a new QuotaMiddleware. metrics may be nil,
// which disables rejection counting.
func NewQuotaMiddleware(limiter *ratelimit.Limiter, m *metrics.Metrics) *QuotaMiddleware {
	return &QuotaMiddleware{
		limiter: limiter,
		metrics: m,
	}
}

// Limit returns middleware enforcing q. The service identity bypasses the
// limiter; it multiplexes many end users over one key.
func (m *QuotaMiddleware) Limit(q ratelimit.Quota) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := shared.IdentityFrom(r.Context())
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}
			if identity.Service {
				next.ServeHTTP(w, r)
				return
			}

			decision := m.limiter.Admit(identity.String(), q)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				if m.metrics != nil {
					m.metrics.RateLimitRejections.WithLabelValues(q.Name).Inc()
				}

				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				shared.RespondWithErrorAndLog(w, r, http.StatusTooManyRequests, "Rate limit exceeded", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
