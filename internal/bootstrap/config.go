package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Kaleub/kaleub-back/internal/infra/mail"
	"github.com/Kaleub/kaleub-back/internal/infra/setup"
)

// Config 存储从环境变量或 .env 文件加载的配置
type Config struct {
	DB setup.DBConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string

	JWTSecret      string
	JWTExpiryHours int

	ServerPort string
	LogLevel   string
	AppEnv     string // development / production

	RateLimitMax    int
	RateLimitWindow time.Duration
	MailRateLimit   uint // 每个 IP 在 MailRateWindow 内最多请求的验证码次数
	MailRateWindow  time.Duration

	SMTP mail.SMTPConfig

	UploadDir    string
	ImageBaseURL string

	CORSAllowedOrigins []string

	VerificationCodeTTL time.Duration
	VerifiedTTL         time.Duration

	ReconcileSchedule string
}

// IsProduction 判断是否为生产环境
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// .env 文件可选
	_ = godotenv.Load()

	cfg := &Config{
		DB:            LoadDBConfig(),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:     getEnv("REDIS_KEY_PREFIX", "photory:"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AppEnv:        getEnv("APP_ENV", "development"),
		SMTP: mail.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		UploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
		RateLimitWindow:   time.Second,
		MailRateWindow:    time.Minute,
		ReconcileSchedule: "@every 10m",
	}
	cfg.ImageBaseURL = getEnv("IMAGE_BASE_URL", "http://localhost:"+cfg.ServerPort+"/images")
	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiryHours, err = getInt("JWT_EXPIRY_HOURS", 24); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = getInt("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	mailLimit, err := getInt("MAIL_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	if mailLimit <= 0 {
		return nil, fmt.Errorf("environment variable MAIL_RATE_LIMIT must be positive")
	}
	cfg.MailRateLimit = uint(mailLimit)
	if cfg.VerificationCodeTTL, err = getDuration("VERIFICATION_CODE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.VerifiedTTL, err = getDuration("VERIFIED_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if cfg.IsProduction() && cfg.SMTP.Host == "" {
		return nil, fmt.Errorf("environment variable SMTP_HOST must be set in production")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// LoadDBConfig 只读取数据库相关的环境变量，管理命令不需要 Redis 和 JWT 配置
func LoadDBConfig() setup.DBConfig {
	_ = godotenv.Load()
	return setup.DBConfig{
		Driver:   getEnv("DB_DRIVER", setup.DriverMySQL),
		DSN:      os.Getenv("DB_DSN"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Name:     getEnv("DB_NAME", "photory"),
		Debug:    os.Getenv("DB_DEBUG") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be a duration like 5m: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
