package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pantry/pkg/logger"
	"github.com/wyfcoding/pantry/pkg/ratelimit"
	"github.com/wyfcoding/pantry/pkg/response"
)

// RateLimitMiddleware 挂在 AuthMiddleware 之后，按用户限流，拿不到身份时按客户端 IP。
// limiter 为 nil 时不限流；Redis 故障时放行。
func RateLimitMiddleware(limiter ratelimit.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if id, ok := CurrentIdentity(c); ok {
			subject = "user:" + strconv.FormatUint(uint64(id.UserID), 10)
		}

		d, err := limiter.Allow(c.Request.Context(), subject)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable, request let through", "subject", subject, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if d.Allowed {
			c.Next()
			return
		}

		retry := int(math.Ceil(d.RetryAfter.Seconds()))
		c.Header("Retry-After", strconv.Itoa(retry))
		response.ErrorWithStatus(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{"retryAfterSeconds": retry})
	}
}
