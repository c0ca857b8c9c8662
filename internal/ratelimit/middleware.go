package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/explorerhq/webhook-relay/internal/httputil"
	"github.com/explorerhq/webhook-relay/internal/telemetry"
)

const (
	headerRateLimitLimit     = "X-RateLimit-Limit"
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"
	headerRetryAfter         = "Retry-After"
)

// clientKey derives the rate limit key from the request's remote address.
// chi's RealIP middleware has already folded X-Forwarded-For into RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}

// Middleware returns chi middleware that enforces the per-client limit.
// Denied requests get a 429 with no further processing.
func Middleware(limiter *Limiter, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")
			key := clientKey(r)

			decision := limiter.Allow(r.Context(), key)

			w.Header().Set(headerRateLimitLimit, strconv.Itoa(limiter.Capacity()))
			w.Header().Set(headerRateLimitRemaining, strconv.Itoa(decision.Remaining))
			w.Header().Set(headerRateLimitReset, decision.ResetAt.Format(time.RFC3339))

			if !decision.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"client", key,
					"limit", limiter.Capacity(),
				)
				if metrics != nil {
					metrics.RecordRateLimitHit()
				}
				retryAfter := int(time.Until(decision.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(retryAfter))
				httputil.WriteRateLimitError(w, reqID, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
