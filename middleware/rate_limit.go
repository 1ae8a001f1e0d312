package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/greenloop/binpoints/config"
	"github.com/greenloop/binpoints/ratelimit"
	"github.com/greenloop/binpoints/utils"
)

// EndpointRateLimit applies the per-(user, endpoint) sliding window and
// emits the standard X-RateLimit-* headers. When the limiter backend
// itself errors, the endpoint rule's OnBackendError policy decides between
// admitting the request (other controls still bound abuse) and rejecting
// it.
func EndpointRateLimit(limiter ratelimit.Limiter, endpoint string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := ctx.GetUint(ContextUserIDKey)

		decision, err := limiter.Check(ctx.Request.Context(), userID, endpoint)
		if err != nil {
			rule := limiter.Rule(endpoint)
			if rule.OnBackendError == ratelimit.FailClosed {
				utils.Error(ctx, http.StatusTooManyRequests, 42902, "rate limiter unavailable")
				ctx.Abort()
				return
			}
			utils.Sugar.Warnw("rate limiter backend error, failing open",
				"endpoint", endpoint, "user_id", userID, "error", err)
			ctx.Next()
			return
		}

		ctx.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		ctx.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			ctx.Header("Retry-After", strconv.Itoa(int(decision.RetryAfter/time.Second)))
			ctx.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}

type ipLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

var (
	ipLimiters   = map[string]*ipLimiter{}
	ipLimitersMu sync.Mutex
)

// GlobalIPRateLimit is the outer, coarse defense: a token bucket per client
// IP in front of authentication, independent of the per-user windows.
func GlobalIPRateLimit() gin.HandlerFunc {
	cfg := config.Get()
	perMinute := cfg.GlobalRateLimitPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	r := rate.Every(time.Minute / time.Duration(perMinute))
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}

	return func(ctx *gin.Context) {
		ip := ctx.ClientIP()
		if !getIPLimiter(ip, r, burst).Allow() {
			utils.Error(ctx, http.StatusTooManyRequests, 42900, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func getIPLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	ipLimitersMu.Lock()
	defer ipLimitersMu.Unlock()

	now := time.Now()
	for k, l := range ipLimiters {
		if now.After(l.expires) {
			delete(ipLimiters, k)
		}
	}

	if l, ok := ipLimiters[key]; ok {
		l.expires = now.Add(5 * time.Minute)
		return l.limiter
	}

	l := &ipLimiter{
		limiter: rate.NewLimiter(limit, burst),
		expires: now.Add(5 * time.Minute),
	}
	ipLimiters[key] = l
	return l.limiter
}
