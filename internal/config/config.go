// Package config はアプリケーション全体の設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 全サービスが同じConfigを共有し、各サービスは自分に関係する項目のみを参照する。
type Config struct {
	// Database
	DatabaseURL string

	// Token Authority
	JWTSecret     string
	TokenExpiry   time.Duration
	AuthBaseURL   string // Verification Middlewareが/verifyを呼ぶ宛先
	VerifyTimeout time.Duration

	// Session Registry (Redis)
	RedisAddr         string
	RedisPassword     string
	ReconnectInterval time.Duration

	// Notification (RabbitMQ)
	AMQPURL string

	// Object Storage (S3互換)
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	// Gateway upstream
	TaskServiceURL      string
	FileServiceURL      string
	SearchServiceURL    string
	SchedulerServiceURL string

	// Scheduler
	HeartbeatInterval time.Duration

	// Rate Limit (req/min/user)
	RateLimitGeneral int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenExpiry = getEnvDuration("TOKEN_EXPIRY", 24*time.Hour)
	cfg.AuthBaseURL = getEnvString("AUTH_SERVICE_URL", "http://auth-service:3003")
	cfg.VerifyTimeout = getEnvDuration("VERIFY_TIMEOUT", 3*time.Second)

	cfg.RedisAddr = getEnvString("REDIS_ADDR", "redis:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.ReconnectInterval = getEnvDuration("REDIS_RECONNECT_INTERVAL", 5*time.Second)

	cfg.AMQPURL = getEnvString("AMQP_URL", "amqp://rabbitmq")

	cfg.S3Endpoint = getEnvString("S3_ENDPOINT", "http://minio:9000")
	cfg.S3AccessKey = getEnvString("S3_ACCESS_KEY", "minioadmin")
	cfg.S3SecretKey = getEnvString("S3_SECRET_KEY", "minioadmin")
	cfg.S3Bucket = getEnvString("S3_BUCKET", "taskflow-files")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3UseSSL = getEnvBool("S3_USE_SSL", false)

	cfg.TaskServiceURL = getEnvString("TASK_SERVICE_URL", "http://task-service:3001")
	cfg.FileServiceURL = getEnvString("FILE_SERVICE_URL", "http://file-service:3005")
	cfg.SearchServiceURL = getEnvString("SEARCH_SERVICE_URL", "http://search-service:3006")
	cfg.SchedulerServiceURL = getEnvString("SCHEDULER_SERVICE_URL", "http://scheduler-service:3004")

	cfg.HeartbeatInterval = getEnvDuration("HEARTBEAT_INTERVAL", time.Minute)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
