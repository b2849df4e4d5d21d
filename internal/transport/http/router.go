package httptransport

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/health"
	"mailbridge/backend/internal/middleware"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/service"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/websocket"
)

// Deps 汇总路由器需要的全部依赖。
type Deps struct {
	Config      *config.Config
	Messages    *service.MessageService
	Approvals   *service.ApprovalService
	Dispatch    *service.DispatchService
	Hub         *websocket.Hub
	Checker     *health.Checker
	Metrics     *monitoring.Metrics
	RateCounter storage.RateLimitRepository
	Logger      *zap.Logger
}

// NewRouter 构建 HTTP 路由。
//
// 入站 webhook 走限流与更大的请求体上限；管理接口走令牌认证；
// 健康检查与指标端点不做认证。
func NewRouter(deps Deps) *gin.Engine {
	if !deps.Config.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware(deps.Config.CORS.AllowedOrigins))

	inboundHandler := NewInboundHandler(deps.Messages, deps.Hub, deps.Logger)
	messageHandler := NewMessageHandler(deps.Messages, deps.Logger)
	manageHandler := NewManageHandler(
		deps.Messages,
		deps.Approvals,
		deps.Dispatch,
		deps.Hub,
		deps.Config.Maintenance.ReplyText,
		deps.Logger,
	)

	// 入站 webhook：限流保护，附件体积大所以上限放宽
	inbound := router.Group("/v1/inbound")
	inbound.Use(middleware.RateLimit(deps.RateCounter, deps.Config.RateLimit.InboundPerMinute, deps.Metrics, deps.Logger))
	inbound.Use(middleware.BodySizeLimit(middleware.InboundBodyLimit))
	inbound.Use(middleware.TokenAuth(deps.Config.Auth.APIToken))
	inbound.POST("", inboundHandler.HandleInbound)

	// 管理接口：操作员令牌认证
	manage := router.Group("/v1")
	manage.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	manage.Use(middleware.TokenAuth(deps.Config.Auth.APIToken))
	{
		manage.GET("/mail", messageHandler.ListMessages)
		manage.GET("/mail/stats", messageHandler.GetStats)
		manage.GET("/mail/:id", messageHandler.GetMessage)
		manage.GET("/mail/:id/attachments/:index", messageHandler.GetAttachment)
		manage.POST("/mail/:id/approve", manageHandler.ApproveMessage)
		manage.POST("/mail/:id/reject", manageHandler.RejectMessage)
		manage.POST("/mail/:id/reply", manageHandler.ReplyMessage)
		manage.DELETE("/mail/:id", manageHandler.DeleteMessage)
		manage.POST("/outbound", manageHandler.SendOutbound)
	}

	// websocket 事件订阅，令牌通过查询参数校验
	if deps.Hub != nil {
		router.GET("/ws/events", websocket.HandleWebSocket(deps.Hub))
	}

	if deps.Checker != nil {
		router.GET("/health/live", gin.WrapF(deps.Checker.LiveHandler()))
		router.GET("/health/ready", gin.WrapF(deps.Checker.ReadyHandler()))
	}
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	return router
}

// corsMiddleware 构建 CORS 配置，通配符来源时不允许携带凭据。
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-API-Token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			corsConfig.AllowAllOrigins = true
			corsConfig.AllowCredentials = false
		}
	}
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowOrigins = allowedOrigins
	}

	return cors.New(corsConfig)
}
