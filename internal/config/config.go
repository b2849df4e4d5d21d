package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空仅输出到标准输出
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// AuthConfig 定义运维管理接口的访问令牌配置
type AuthConfig struct {
	APIToken string // 管理/入站接口令牌，必填且不得为默认值
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type string // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN  string // 数据库连接字符串
}

// RedisConfig 定义 Redis 限流计数配置，Address 留空时使用进程内限流
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// StorageConfig 定义附件内容的磁盘存储配置
type StorageConfig struct {
	Path string // 附件存储根目录，默认 "./data/attachments"
}

// ClassifyConfig 定义分类器策略参数。
// 重要度 = 发件人信誉 + 告警关键词命中 + 附件加成，各项权重可调。
type ClassifyConfig struct {
	TrustedSenders   []string // 信誉加成发件人（完整地址或 @域名 后缀）
	AlertKeywords    []string // 告警关键词，命中即打上同名告警类别标签
	SenderWeight     float64  // 发件人信誉权重，默认 0.3
	KeywordWeight    float64  // 单个关键词命中权重，默认 0.25
	AttachmentWeight float64  // 含附件加成，默认 0.15
	HighThreshold    float64  // importance >= 该值 => high，默认 0.7
	NormalThreshold  float64  // importance >= 该值 => normal，默认 0.35
}

// ApprovalConfig 定义审批门槛策略参数（任一条件满足即须审批）
type ApprovalConfig struct {
	ImportanceThreshold float64  // importance >= 该值须人工审批，默认 0.7
	ReviewSenders       []string // 强制审批的发件人列表（完整地址或 @域名 后缀）
	ConfirmReplyText    string   // 审批通过后发出的确认回复正文
}

// MaintenanceConfig 定义后台维护任务参数
type MaintenanceConfig struct {
	Interval      time.Duration // 清扫周期，默认 10m
	TTL           time.Duration // 低优先级邮件存活时长，默认 168h
	BulkThreshold int           // 单周期删除数达到该值时发送一条聚合通知，默认 50
	ReplyClasses  []string      // 触发自动回复的告警类别
	ReplySenders  []string      // 触发自动回复的发件人后缀
	ReplyText     string        // 自动回复正文
}

// TelegramConfig 定义 Telegram 通知通道配置，BotToken 留空时仅记录日志
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// OutboundConfig 定义出站邮件传输配置（SendGrid 风格 HTTPS API）
type OutboundConfig struct {
	APIKey   string // API 密钥
	From     string // 发件地址
	Endpoint string // API 端点，默认官方地址，测试时可指向本地
}

// RateLimitConfig 定义入站 Webhook 限流参数
type RateLimitConfig struct {
	InboundPerMinute int // 单 IP 每分钟入站请求上限，默认 120
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server      ServerConfig
	Log         LogConfig
	CORS        CORSConfig
	Auth        AuthConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Classify    ClassifyConfig
	Approval    ApprovalConfig
	Maintenance MaintenanceConfig
	Telegram    TelegramConfig
	Outbound    OutboundConfig
	RateLimit   RateLimitConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILBRIDGE_
// 例如: MAILBRIDGE_SERVER_PORT, MAILBRIDGE_AUTH_API_TOKEN
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("mailbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("auth.api_token", "change-me-in-production")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("storage.path", "./data/attachments")
	viper.SetDefault("classify.trusted_senders", "")
	viper.SetDefault("classify.alert_keywords", "urgent,security,invoice,outage")
	viper.SetDefault("classify.sender_weight", 0.3)
	viper.SetDefault("classify.keyword_weight", 0.25)
	viper.SetDefault("classify.attachment_weight", 0.15)
	viper.SetDefault("classify.high_threshold", 0.7)
	viper.SetDefault("classify.normal_threshold", 0.35)
	viper.SetDefault("approval.importance_threshold", 0.7)
	viper.SetDefault("approval.review_senders", "")
	viper.SetDefault("approval.confirm_reply_text", "Your message has been reviewed and accepted.")
	viper.SetDefault("maintenance.interval", "10m")
	viper.SetDefault("maintenance.ttl", "168h")
	viper.SetDefault("maintenance.bulk_threshold", 50)
	viper.SetDefault("maintenance.reply_classes", "")
	viper.SetDefault("maintenance.reply_senders", "")
	viper.SetDefault("maintenance.reply_text", "Your message has been received and is being processed.")
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)
	viper.SetDefault("outbound.api_key", "")
	viper.SetDefault("outbound.from", "")
	viper.SetDefault("outbound.endpoint", "https://api.sendgrid.com/v3/mail/send")
	viper.SetDefault("ratelimit.inbound_per_minute", 120)

	apiToken := viper.GetString("auth.api_token")
	if apiToken == "" || apiToken == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: auth.api_token must be set. Please set MAILBRIDGE_AUTH_API_TOKEN environment variable")
	}

	interval, err := time.ParseDuration(viper.GetString("maintenance.interval"))
	if err != nil || interval <= 0 {
		return nil, fmt.Errorf("invalid maintenance.interval: %q", viper.GetString("maintenance.interval"))
	}

	ttl, err := time.ParseDuration(viper.GetString("maintenance.ttl"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid maintenance.ttl: %q", viper.GetString("maintenance.ttl"))
	}

	bulkThreshold := viper.GetInt("maintenance.bulk_threshold")
	if bulkThreshold <= 0 {
		bulkThreshold = 50
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	inboundPerMinute := viper.GetInt("ratelimit.inbound_per_minute")
	if inboundPerMinute <= 0 {
		inboundPerMinute = 120
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Auth: AuthConfig{
			APIToken: apiToken,
		},
		Database: DatabaseConfig{
			Type: viper.GetString("database.type"),
			DSN:  viper.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Path: viper.GetString("storage.path"),
		},
		Classify: ClassifyConfig{
			TrustedSenders:   parseAddresses(viper.GetString("classify.trusted_senders")),
			AlertKeywords:    parseAddresses(viper.GetString("classify.alert_keywords")),
			SenderWeight:     viper.GetFloat64("classify.sender_weight"),
			KeywordWeight:    viper.GetFloat64("classify.keyword_weight"),
			AttachmentWeight: viper.GetFloat64("classify.attachment_weight"),
			HighThreshold:    viper.GetFloat64("classify.high_threshold"),
			NormalThreshold:  viper.GetFloat64("classify.normal_threshold"),
		},
		Approval: ApprovalConfig{
			ImportanceThreshold: viper.GetFloat64("approval.importance_threshold"),
			ReviewSenders:       parseAddresses(viper.GetString("approval.review_senders")),
			ConfirmReplyText:    viper.GetString("approval.confirm_reply_text"),
		},
		Maintenance: MaintenanceConfig{
			Interval:      interval,
			TTL:           ttl,
			BulkThreshold: bulkThreshold,
			ReplyClasses:  parseAddresses(viper.GetString("maintenance.reply_classes")),
			ReplySenders:  parseAddresses(viper.GetString("maintenance.reply_senders")),
			ReplyText:     viper.GetString("maintenance.reply_text"),
		},
		Telegram: TelegramConfig{
			BotToken: viper.GetString("telegram.bot_token"),
			ChatID:   viper.GetInt64("telegram.chat_id"),
		},
		Outbound: OutboundConfig{
			APIKey:   viper.GetString("outbound.api_key"),
			From:     viper.GetString("outbound.from"),
			Endpoint: viper.GetString("outbound.endpoint"),
		},
		RateLimit: RateLimitConfig{
			InboundPerMinute: inboundPerMinute,
		},
	}

	return cfg, nil
}

// parseAddresses 将逗号分隔的字符串解析为小写条目数组
func parseAddresses(value string) []string {
	out := parseList(value)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// parseList 将逗号分隔的字符串解析为字符串切片，去除空白项
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从子目录运行的情况）
//
// 文件不存在时静默跳过；已存在的环境变量优先级更高。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
