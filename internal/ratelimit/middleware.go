package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/service-checkout/internal/common"
	"github.com/noah-isme/service-checkout/internal/obs"
)

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	// Scope labels rejections in metrics, e.g. "create_order".
	Scope  string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// ByClientIP keys requests on the caller address.
func ByClientIP(r *http.Request) string {
	return "ip:" + common.ClientIP(r)
}

// Handler enforces rate limits before delegating to the next handler.
// Limiter failures let the request through.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

func (h Handler) enabled() bool {
	return h.Limiter != nil && h.Config.Key != nil && h.Config.Max > 0 && h.Config.Window > 0
}

// Middleware implements the http.Handler middleware interface.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if !h.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(h.Config.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		headers.Set("Retry-After", strconv.Itoa(retryAfterSeconds(resetAt)))
		if obs.RateLimitRejectedTotal != nil {
			obs.RateLimitRejectedTotal.WithLabelValues(h.scope()).Inc()
		}
		common.JSONError(w, http.StatusTooManyRequests, common.CodeRateLimited, "Too many requests", "Please wait before trying again")
	})
}

func (h Handler) scope() string {
	if h.Config.Scope == "" {
		return "default"
	}
	return h.Config.Scope
}

// retryAfterSeconds rounds up so clients never retry before the reset.
func retryAfterSeconds(resetAt time.Time) int {
	wait := time.Until(resetAt).Seconds()
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait))
}
