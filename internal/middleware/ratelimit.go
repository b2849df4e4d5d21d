package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/storage"
)

// RateLimit 入站 webhook 的单 IP 限流。
//
// 配置了 Redis 时用共享计数器（多实例一致），否则退化为进程内
// 令牌桶。计数后端故障时放行，限流不能变成故障放大器。
func RateLimit(counter storage.RateLimitRepository, perMinute int, metrics *monitoring.Metrics, logger *zap.Logger) gin.HandlerFunc {
	if counter == nil {
		return localRateLimit(perMinute, metrics)
	}

	return func(c *gin.Context) {
		key := "ratelimit:inbound:" + c.ClientIP()

		count, err := counter.IncrementRateLimit(key, time.Minute)
		if err != nil {
			logger.Warn("rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if count > int64(perMinute) {
			metrics.RecordRateLimitBlock("inbound")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// localRateLimit 进程内单 IP 令牌桶。
func localRateLimit(perMinute int, metrics *monitoring.Metrics) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[ip]
		if !ok {
			l = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
			limiters[ip] = l
		}
		return l
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			metrics.RecordRateLimitBlock("inbound")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
