package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/infrastructure/persistence/redis"
	"novel-rag-engine/pkg/errors"
	"novel-rag-engine/pkg/logger"
)

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 按客户端 IP 与路由做 1 秒滑动窗口限流，窗口容量为 requests_per_second + burst。
// 限流器故障时放行。
func RateLimit(cfg config.RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 100
	}
	limit := rps + max(cfg.Burst, 0)

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := redis.BuildRateLimitKey(c.ClientIP(), route)

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, time.Second)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if !allowed {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     http.StatusTooManyRequests,
				"message":  errors.ErrTooManyRequests.Message,
				"error":    gin.H{"error_code": string(errors.CodeTooManyRequests)},
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
