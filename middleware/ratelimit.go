package middleware

import (
	"strconv"
	"time"

	"docchat-platform/internal/config"
	"docchat-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Counter increment and window expiry run as one script so a crash
// between them can never leave a counter without a TTL. The TTL check
// also heals any counter that lost its expiry.
var rateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("TTL", KEYS[1]) < 0 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RateLimitMiddleware implements fixed-window rate limiting using Redis.
// It limits requests per client IP; every request in the window counts,
// including ones that end up rejected by the handler.
func RateLimitMiddleware(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip rate limiting for health checks
		if c.FullPath() == "/health" || c.FullPath() == "/ready" {
			c.Next()
			return
		}

		key := "ratelimit:" + utils.GetClientIP(c.Request)

		ctx := c.Request.Context()
		count, err := rateLimitScript.Run(ctx, rdb, []string{key}, cfg.RateLimitWindow).Int64()
		if err != nil {
			// Fail open - don't block requests if Redis is down
			c.Next()
			return
		}

		// Reset is derived from the key's remaining TTL so every response
		// in the window reports the same window end.
		reset := time.Now().Add(time.Duration(cfg.RateLimitWindow) * time.Second).Unix()
		if ttl, err := rdb.TTL(ctx, key).Result(); err == nil && ttl > 0 {
			reset = time.Now().Add(ttl).Unix()
		}

		if count > int64(cfg.RateLimitReqs) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RateLimitReqs))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

			utils.RespondWithRateLimited(c, cfg.RateLimitReqs, 0, reset)
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RateLimitReqs))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(cfg.RateLimitReqs-int(count)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		c.Next()
	}
}
