package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"mailbridge/backend/internal/storage"
)

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewChecker 创建健康检查器
func NewChecker(store storage.Store, logger *zap.Logger) *Checker {
	c := &Checker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	c.health.AddLivenessCheck("store", func() error {
		return c.store.Health()
	})
	c.health.AddReadinessCheck("store", func() error {
		return c.store.Health()
	})

	return c
}

// AddRateLimiterCheck 挂接限流后端的存活检查（配置了 Redis 时）。
func (c *Checker) AddRateLimiterCheck(limiter storage.RateLimitRepository) {
	c.health.AddReadinessCheck("rate_limiter", func() error {
		_, err := limiter.GetRateLimit("health_check")
		return err
	})
}

// LiveHandler 返回存活探针处理器。
func (c *Checker) LiveHandler() http.HandlerFunc {
	return c.health.LiveEndpoint
}

// ReadyHandler 返回就绪探针处理器。
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return c.health.ReadyEndpoint
}
