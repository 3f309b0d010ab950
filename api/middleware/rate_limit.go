package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alo17/ilan-backend/api/responses"
	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/logger"
	"github.com/alo17/ilan-backend/pkg/ratelimit"
)

const (
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimitPolicy throttles one endpoint family per client IP.
type RateLimitPolicy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// RateLimit counts each request against the caller's IP. Limiter failures reject the
// request rather than letting it through unthrottled.
func RateLimit(policy RateLimitPolicy, limiter ratelimit.Checker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := ClientIP(r)

			result, err := limiter.Check(ctx, ratelimit.Key(policy.Name, ip), policy.Limit, policy.Window)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			WriteRateLimitHeaders(w, result, time.Now())
			if !result.Allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"policy":         policy.Name,
						"ip":             ip,
						"limit":          policy.Limit,
						"window_seconds": int(policy.Window.Seconds()),
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
					WithDetails(map[string]any{"remaining": result.Remaining, "resetAt": result.ResetAt.UTC()}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimitHeaders sets the remaining quota and, once exhausted, Retry-After in
// whole seconds (at least 1).
func WriteRateLimitHeaders(w http.ResponseWriter, result ratelimit.Result, now time.Time) {
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
	if result.Allowed {
		return
	}
	wait := result.ResetAt.Sub(now)
	seconds := int((wait + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set(HeaderRetryAfter, strconv.Itoa(seconds))
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
