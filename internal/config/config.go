package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Query    QueryConfig    `yaml:"query" mapstructure:"query"`
	Progress ProgressConfig `yaml:"progress" mapstructure:"progress"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the pricing fact store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig configures the query cache.
type CacheConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	RedisURL   string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLSecs    int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries int    `yaml:"max_entries" mapstructure:"max_entries"`
}

// IngestConfig configures upload processing.
type IngestConfig struct {
	ProgressEvery int    `yaml:"progress_every" mapstructure:"progress_every"`
	DefaultMode   string `yaml:"default_mode" mapstructure:"default_mode"`
	SkipBadRows   bool   `yaml:"skip_bad_rows" mapstructure:"skip_bad_rows"`
}

// QueryConfig bounds pagination.
type QueryConfig struct {
	DefaultPageSize int `yaml:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size" mapstructure:"max_page_size"`
}

// ProgressConfig selects where progress events are delivered.
type ProgressConfig struct {
	Driver           string   `yaml:"driver" mapstructure:"driver"`
	KafkaBrokers     []string `yaml:"kafka_brokers" mapstructure:"kafka_brokers"`
	KafkaTopic       string   `yaml:"kafka_topic" mapstructure:"kafka_topic"`
	WebhookURL       string   `yaml:"webhook_url" mapstructure:"webhook_url"`
	BreakerFailures  int      `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SourceConfig configures remote upload sources (http, ftp).
type SourceConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retries     int     `yaml:"retries" mapstructure:"retries"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	UploadRate     float64  `yaml:"upload_rate" mapstructure:"upload_rate"`
	UploadBurst    int      `yaml:"upload_burst" mapstructure:"upload_burst"`
	MaxUploadMB    int64    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	Issuer    string `yaml:"issuer" mapstructure:"issuer"`
	Audience  string `yaml:"audience" mapstructure:"audience"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_secs", 60)
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("ingest.progress_every", 500)
	v.SetDefault("ingest.default_mode", "skip")
	v.SetDefault("ingest.skip_bad_rows", true)
	v.SetDefault("query.default_page_size", 50)
	v.SetDefault("query.max_page_size", 200)
	v.SetDefault("progress.driver", "websocket")
	v.SetDefault("progress.kafka_brokers", []string{})
	v.SetDefault("progress.kafka_topic", "pricing-upload-progress")
	v.SetDefault("progress.webhook_url", "")
	v.SetDefault("progress.breaker_failures", 5)
	v.SetDefault("progress.breaker_reset_secs", 30)
	v.SetDefault("source.user_agent", "pricing-cli/1.0")
	v.SetDefault("source.timeout_secs", 120)
	v.SetDefault("source.rate_limit", 2.0)
	v.SetDefault("source.retries", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.upload_rate", 1.0)
	v.SetDefault("server.upload_burst", 5)
	v.SetDefault("server.max_upload_mb", 50)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it opens any
// connection. command is one of "serve", "upload", "query" or "migrate".
func (c *Config) Validate(command string) error {
	var problems []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}

	if command == "migrate" {
		return joinProblems(problems)
	}

	switch c.Cache.Driver {
	case "", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			problems = append(problems, "cache.redis_url is required for the redis driver")
		}
	default:
		problems = append(problems, "cache.driver must be memory or redis")
	}

	if c.Query.DefaultPageSize < 1 || c.Query.MaxPageSize < c.Query.DefaultPageSize {
		problems = append(problems, "query.max_page_size must be >= query.default_page_size >= 1")
	}

	if command == "serve" {
		switch c.Progress.Driver {
		case "", "none", "websocket":
		case "kafka":
			if len(c.Progress.KafkaBrokers) == 0 || c.Progress.KafkaTopic == "" {
				problems = append(problems, "progress.kafka_brokers and progress.kafka_topic are required for the kafka driver")
			}
		case "webhook":
			if c.Progress.WebhookURL == "" {
				problems = append(problems, "progress.webhook_url is required for the webhook driver")
			}
		default:
			problems = append(problems, "progress.driver must be websocket, kafka, webhook or none")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be positive")
		}
		if c.Auth.JWTSecret == "" {
			zap.L().Warn("auth.jwt_secret is empty; protected routes will reject every request")
		}
	}

	return joinProblems(problems)
}

func joinProblems(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return eris.Errorf("config: %s", strings.Join(problems, "; "))
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
