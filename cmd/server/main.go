package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailbridge/backend/internal/config"
	"mailbridge/backend/internal/health"
	"mailbridge/backend/internal/logger"
	"mailbridge/backend/internal/mailer"
	"mailbridge/backend/internal/monitoring"
	"mailbridge/backend/internal/notify"
	"mailbridge/backend/internal/scheduler"
	"mailbridge/backend/internal/service"
	"mailbridge/backend/internal/storage"
	"mailbridge/backend/internal/storage/filesystem"
	"mailbridge/backend/internal/storage/memory"
	"mailbridge/backend/internal/storage/postgres"
	"mailbridge/backend/internal/storage/redis"
	httptransport "mailbridge/backend/internal/transport/http"
	"mailbridge/backend/internal/websocket"
)

// main 启动邮件桥接服务：HTTP 入站/管理接口加后台维护调度。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting mailbridge server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 存储层
	store, err := initializeStore(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}

	files, err := filesystem.NewStore(cfg.Storage.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize attachment storage: %v", err))
	}
	log.Info("attachment storage initialized", zap.String("path", cfg.Storage.Path))

	metrics := monitoring.NewMetrics()
	checker := health.NewChecker(store, log)

	// 限流计数器：配置了 Redis 就用 Redis，否则退回进程内限流
	var rateCounter storage.RateLimitRepository
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient, err = redis.New(redis.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			panic(fmt.Sprintf("failed to connect to redis: %v", err))
		}
		rateCounter = redisClient
		checker.AddRateLimiterCheck(redisClient)
	} else {
		log.Info("redis not configured, using in-process rate limiting")
	}

	// 通知通道：配置了 Telegram 就推 Telegram，否则只写日志
	var notifier notify.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize telegram notifier: %v", err))
		}
		log.Info("telegram notifier initialized", zap.Int64("chat_id", cfg.Telegram.ChatID))
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Info("telegram not configured, notifications go to log only")
	}

	// 出站通道：无 API key 时所有发送操作报未配置错误，不做降级
	var outbound mailer.Mailer
	if cfg.Outbound.APIKey != "" {
		outbound, err = mailer.NewSendGridMailer(cfg.Outbound.Endpoint, cfg.Outbound.APIKey, cfg.Outbound.From, log)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize outbound mailer: %v", err))
		}
		log.Info("outbound mailer initialized", zap.String("from", cfg.Outbound.From))
	} else {
		outbound = mailer.Disabled{}
		log.Warn("outbound mailer not configured, replies and outbound mail are disabled")
	}

	// 业务服务
	classifier := service.NewClassifier(cfg.Classify)
	gate := service.NewApprovalGate(cfg.Approval)
	messages := service.NewMessageService(store, files, classifier, gate, notifier, metrics, log)
	dispatch := service.NewDispatchService(store, outbound, cfg.Outbound.From, metrics, log)
	approvals := service.NewApprovalService(store, files, dispatch, notifier, metrics, log, cfg.Approval.ConfirmReplyText)
	maintenance := service.NewMaintenanceService(store, files, dispatch, notifier, metrics, log, cfg.Maintenance)

	hub := websocket.NewHub(cfg.CORS.AllowedOrigins, cfg.Auth.APIToken, log)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.Deps{
		Config:      cfg,
		Messages:    messages,
		Approvals:   approvals,
		Dispatch:    dispatch,
		Hub:         hub,
		Checker:     checker,
		Metrics:     metrics,
		RateCounter: rateCounter,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		log.Info("starting websocket hub")
		hub.Run(groupCtx)
		return nil
	})

	// 后台维护：TTL 清理与自动回复，同一时刻只跑一轮
	sched, err := scheduler.New(log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize scheduler: %v", err))
	}
	if err := sched.AddIntervalJob("maintenance", cfg.Maintenance.Interval, func() {
		maintenance.RunCycle(groupCtx)
	}); err != nil {
		panic(fmt.Sprintf("failed to register maintenance job: %v", err))
	}
	log.Info("maintenance scheduler started", zap.Duration("interval", cfg.Maintenance.Interval))

	notifyLifecycleEvent(groupCtx, notifier, log, notify.Event{
		Kind:   notify.EventStartup,
		Detail: httpAddr,
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		notifyLifecycleEvent(shutdownCtx, notifier, log, notify.Event{Kind: notify.EventShutdown})

		if err := sched.Stop(); err != nil {
			log.Error("scheduler shutdown error", zap.Error(err))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
			return err
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Error("redis close error", zap.Error(err))
			}
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
}

// initializeStore 按配置选择数据库存储，未配置时退回内存存储。
func initializeStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	switch strings.ToLower(cfg.Database.Type) {
	case "postgres", "postgresql":
		store, err := postgres.NewStore(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		log.Info("using postgres storage")
		return store, nil
	case "mysql":
		store, err := postgres.NewMySQLStore(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open mysql store: %w", err)
		}
		log.Info("using mysql storage")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}

// notifyLifecycleEvent 推送启停事件，失败只记录。
func notifyLifecycleEvent(ctx context.Context, notifier notify.Notifier, log *zap.Logger, event notify.Event) {
	if err := notifier.Notify(ctx, event); err != nil {
		log.Warn("lifecycle notification failed",
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}
