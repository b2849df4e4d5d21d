package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮件生命周期指标
	MessagesIngested *prometheus.CounterVec // direction: inbound / outbound
	MessagesDeleted  *prometheus.CounterVec // reason: ttl / manual / rejected
	PendingApprovals prometheus.Gauge

	// 自动回复与通知指标
	RepliesSent          prometheus.Counter
	ReplyFailures        prometheus.Counter
	NotificationFailures prometheus.Counter

	// 维护任务指标
	MaintenanceCycleDuration prometheus.Histogram

	// 错误与限流指标
	PanicsTotal     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标并注册到默认注册表
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith 创建监控指标并注册到指定注册表，测试中用独立注册表避免重复注册。
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MessagesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_messages_ingested_total",
				Help: "Total number of messages stored, by direction",
			},
			[]string{"direction"},
		),

		MessagesDeleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_messages_deleted_total",
				Help: "Total number of messages marked deleted, by reason",
			},
			[]string{"reason"},
		),

		PendingApprovals: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailbridge_pending_approvals",
				Help: "Number of messages currently awaiting approval",
			},
		),

		RepliesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_replies_sent_total",
				Help: "Total number of auto replies delivered",
			},
		),

		ReplyFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_reply_failures_total",
				Help: "Total number of auto reply delivery failures",
			},
		),

		NotificationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_notification_failures_total",
				Help: "Total number of notification delivery failures",
			},
		),

		MaintenanceCycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailbridge_maintenance_cycle_duration_seconds",
				Help:    "Maintenance cycle duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailbridge_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailbridge_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
			[]string{"scope"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIngested 记录一封邮件入库
func (m *Metrics) RecordIngested(direction string) {
	m.MessagesIngested.WithLabelValues(direction).Inc()
}

// RecordDeleted 记录一封邮件被标记删除
func (m *Metrics) RecordDeleted(reason string) {
	m.MessagesDeleted.WithLabelValues(reason).Inc()
}

// UpdatePendingApprovals 更新待审批邮件数
func (m *Metrics) UpdatePendingApprovals(count int) {
	m.PendingApprovals.Set(float64(count))
}

// RecordReplySent 记录一次成功的自动回复
func (m *Metrics) RecordReplySent() {
	m.RepliesSent.Inc()
}

// RecordReplyFailure 记录一次自动回复失败
func (m *Metrics) RecordReplyFailure() {
	m.ReplyFailures.Inc()
}

// RecordNotificationFailure 记录一次通知投递失败
func (m *Metrics) RecordNotificationFailure() {
	m.NotificationFailures.Inc()
}

// RecordMaintenanceCycle 记录一次维护周期耗时
func (m *Metrics) RecordMaintenanceCycle(duration time.Duration) {
	m.MaintenanceCycleDuration.Observe(duration.Seconds())
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(scope string) {
	m.RateLimitBlocks.WithLabelValues(scope).Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
