package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/slotwise/scheduling-service/pkg/logger"
)

// RateLimit throttles requests per caller using a Redis sorted-set sliding
// window. Grounded on auth-service's RateLimiter.checkLimit.
func RateLimit(client *redis.Client, requests int, window time.Duration, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s", rateLimitKey(c))

		allowed, remaining, err := checkRateLimit(c.Request.Context(), client, key, requests, window)
		if err != nil {
			log.Error("rate limit check failed", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if userID, ok := c.Get("userID"); ok {
		if s, ok := userID.(string); ok && s != "" {
			return "user:" + s
		}
	}
	return "ip:" + c.ClientIP()
}

func checkRateLimit(ctx context.Context, client *redis.Client, key string, requests int, window time.Duration) (allowed bool, remaining int, err error) {
	now := time.Now()

	pipe := client.Pipeline()
	expiredBefore := now.Add(-window).UnixNano()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(expiredBefore, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: fmt.Sprintf("%d", now.UnixNano())})
	pipe.Expire(ctx, key, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	currentCount := countCmd.Val()
	remaining = requests - int(currentCount) - 1
	if remaining < 0 {
		remaining = 0
	}
	return currentCount < int64(requests), remaining, nil
}
