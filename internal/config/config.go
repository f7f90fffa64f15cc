// Package config loads runtime configuration from the environment, an optional
// .env file and an optional YAML defaults file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/EduShopX/edushop/pkg/logger"
)

// Config is the full runtime configuration.
type Config struct {
	Env      string `env:"APP_ENV,default=dev"`
	Debug    bool   `env:"DEBUG,default=false"`
	HTTPAddr string `env:"HTTP_ADDR,default=:8000"`

	Database Database
	Redis    Redis
	Auth     Auth
	Cache    Cache
	Tasks    Tasks
	Mail     Mail
	HTTP     HTTP
	Logging  Logging
	Media    Media

	FrontendBaseURL string `env:"FRONTEND_BASE_URL,default=http://localhost:3000"`
	PaymentGateway  string `env:"PAYMENT_GATEWAY_URL,default=https://fake-gateway/pay"`
	ExportDir       string `env:"EXPORT_DIR,default=/shared"`
	AuditLogPath    string `env:"AUDIT_LOG_PATH"`
}

// Database configures the relational store. An empty URL selects the
// in-memory store.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m"`
	MigrateOnStart  bool          `env:"DATABASE_MIGRATE_ON_START,default=true"`
}

// Redis holds the three logical connections: cache, task broker and channel
// layer. They may point at the same server with different DB numbers.
type Redis struct {
	CacheURL   string `env:"REDIS_URL"`
	BrokerURL  string `env:"BROKER_URL"`
	ChannelURL string `env:"CHANNEL_REDIS_URL"`
}

type Auth struct {
	PrivateKeyPEM   string        `env:"JWT_PRIVATE_KEY"`
	PublicKeyPEM    string        `env:"JWT_PUBLIC_KEY"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=24h"`
	Issuer          string        `env:"JWT_ISSUER,default=edushop"`
}

type Cache struct {
	KeyPrefix  string        `env:"CACHE_KEY_PREFIX,default=edushop"`
	DefaultTTL time.Duration `env:"CACHE_DEFAULT_TTL,default=5m"`
}

type Tasks struct {
	Concurrency   int    `env:"WORKER_CONCURRENCY,default=4"`
	Queue         string `env:"TASK_QUEUE,default=tasks"`
	RunInline     bool   `env:"RUN_WORKERS_INLINE,default=false"`
	ResultTTLHour int    `env:"TASK_RESULT_TTL_HOURS,default=24"`
	// ShutdownGrace bounds how long a stopping worker waits for running
	// tasks before requeueing them.
	ShutdownGrace time.Duration `env:"WORKER_SHUTDOWN_GRACE,default=10s"`
	// RunBeat enables the cron schedule; exactly one worker replica
	// should carry it.
	RunBeat bool `env:"RUN_BEAT,default=true"`
}

type Mail struct {
	Host     string `env:"EMAIL_HOST,default=smtp.gmail.com"`
	Port     int    `env:"EMAIL_PORT,default=587"`
	Username string `env:"EMAIL_HOST_USER"`
	Password string `env:"EMAIL_HOST_PASSWORD"`
	From     string `env:"DEFAULT_FROM_EMAIL"`
	UseTLS   bool   `env:"EMAIL_USE_TLS,default=true"`
}

type HTTP struct {
	AllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40"`
	PageSize       int     `env:"PAGE_SIZE,default=30"`
	// TrustedProxies lists CIDRs whose X-Forwarded-For is believed.
	TrustedProxies string `env:"TRUSTED_PROXIES"`
}

type Logging struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=logs/edushop"`
}

// Media bounds uploaded video sizes in megabytes.
type Media struct {
	VideoCourseMaxMB  int `env:"VIDEO_COURSE_MAX_MB,default=500"`
	VideoArticleMaxMB int `env:"VIDEO_ARTICLE_MAX_MB,default=100"`
}

// Load reads .env (if present), applies the YAML file named by EDUSHOP_CONFIG
// as defaults for unset variables, then decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path := strings.TrimSpace(os.Getenv("EDUSHOP_CONFIG")); path != "" {
		if err := applyYAMLDefaults(path); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// applyYAMLDefaults reads a flat KEY: value document and exports every key
// that is not already present in the environment.
func applyYAMLDefaults(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	for key, value := range values {
		key = strings.ToUpper(strings.TrimSpace(key))
		if _, set := os.LookupEnv(key); set || value == nil {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(value)); err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
	}
	return nil
}

// IsProduction reports whether APP_ENV selects production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// Validate reports every missing value required by the selected environment.
func (c *Config) Validate() error {
	var missing []string
	if c.IsProduction() {
		if c.Database.URL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.Redis.CacheURL == "" {
			missing = append(missing, "REDIS_URL")
		}
		if c.Redis.BrokerURL == "" {
			missing = append(missing, "BROKER_URL")
		}
		if c.Redis.ChannelURL == "" {
			missing = append(missing, "CHANNEL_REDIS_URL")
		}
		if c.Auth.PrivateKeyPEM == "" {
			missing = append(missing, "JWT_PRIVATE_KEY")
		}
		if c.Auth.PublicKeyPEM == "" {
			missing = append(missing, "JWT_PUBLIC_KEY")
		}
	}
	if (c.Auth.PrivateKeyPEM == "") != (c.Auth.PublicKeyPEM == "") {
		missing = append(missing, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if c.Tasks.Concurrency <= 0 {
		missing = append(missing, "WORKER_CONCURRENCY must be positive")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Origins splits the comma separated CORS origin list.
func (h HTTP) Origins() []string { return splitList(h.AllowedOrigins) }

// Proxies splits the comma separated trusted proxy list.
func (h HTTP) Proxies() []string { return splitList(h.TrustedProxies) }

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoggerConfig converts the logging section for pkg/logger.
func (l Logging) LoggerConfig() logger.LoggingConfig {
	return logger.LoggingConfig{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		FilePrefix: l.FilePrefix,
	}
}
