package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"codequest/internal/common/cache"
	"codequest/internal/common/db"
	"codequest/internal/common/mq"
	"codequest/internal/common/storage"
	"codequest/internal/executor"
	"codequest/internal/executor/engine"
	"codequest/internal/progression"
	submission "codequest/internal/submission/service"
	"codequest/pkg/utils/logger"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwtSecret"`
	JWTIssuer      string        `yaml:"jwtIssuer"`
	AccessTokenTTL time.Duration `yaml:"accessTokenTTL"`
}

// RateLimitConfig holds the fixed-window submission limits.
type RateLimitConfig struct {
	IPMax   int           `yaml:"ipMax"`
	UserMax int           `yaml:"userMax"`
	Window  time.Duration `yaml:"window"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool          `yaml:"enabled"`
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
	AllowedMethods   []string      `yaml:"allowedMethods"`
	AllowedHeaders   []string      `yaml:"allowedHeaders"`
	ExposedHeaders   []string      `yaml:"exposedHeaders"`
	AllowCredentials bool          `yaml:"allowCredentials"`
	MaxAge           time.Duration `yaml:"maxAge"`
}

// KafkaAppConfig holds broker settings.
type KafkaAppConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientID"`
}

// LeaderboardConfig holds rebuild settings.
type LeaderboardConfig struct {
	RebuildInterval time.Duration `yaml:"rebuildInterval"`
}

// ChallengeConfig holds seeding settings.
type ChallengeConfig struct {
	// PackPath points at a tar.zst challenge pack. Empty falls back
	// to the built-in set.
	PackPath string `yaml:"packPath"`
}

// AppConfig is the engine service configuration.
type AppConfig struct {
	Server ServerConfig  `yaml:"server"`
	Logger logger.Config `yaml:"logger"`

	Database db.MySQLConfig      `yaml:"database"`
	Redis    cache.RedisConfig   `yaml:"redis"`
	Kafka    KafkaAppConfig      `yaml:"kafka"`
	MinIO    storage.MinIOConfig `yaml:"minio"`

	Auth        AuthConfig            `yaml:"auth"`
	CORS        CORSConfig            `yaml:"cors"`
	RateLimit   RateLimitConfig       `yaml:"rateLimit"`
	Challenge   ChallengeConfig       `yaml:"challenge"`
	Sandbox     engine.Config         `yaml:"sandbox"`
	Runner      executor.RunnerConfig `yaml:"runner"`
	Progression progression.Config    `yaml:"progression"`
	Submission  submission.Config     `yaml:"submission"`
	Leaderboard LeaderboardConfig     `yaml:"leaderboard"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth jwt secret is required")
	}
	applyRedisDefaults(&cfg.Redis)
	applyMySQLDefaults(&cfg.Database)

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.IPMax == 0 {
		cfg.RateLimit.IPMax = 60
	}
	if cfg.RateLimit.UserMax == 0 {
		cfg.RateLimit.UserMax = 20
	}
	if cfg.CORS.Enabled {
		if len(cfg.CORS.AllowedOrigins) == 0 {
			cfg.CORS.AllowedOrigins = []string{"*"}
		}
		if len(cfg.CORS.AllowedMethods) == 0 {
			cfg.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
		}
		if len(cfg.CORS.AllowedHeaders) == 0 {
			cfg.CORS.AllowedHeaders = []string{"Authorization", "Content-Type"}
		}
	}
	if cfg.Leaderboard.RebuildInterval == 0 {
		cfg.Leaderboard.RebuildInterval = 5 * time.Minute
	}

	cfg.Runner = mergeRunnerDefaults(cfg.Runner)
	return &cfg, nil
}

func mergeRunnerDefaults(cfg executor.RunnerConfig) executor.RunnerConfig {
	defaults := executor.DefaultRunnerConfig()
	if cfg.WorkRoot == "" {
		cfg.WorkRoot = defaults.WorkRoot
	}
	if cfg.InfraRetries == 0 {
		cfg.InfraRetries = defaults.InfraRetries
	}
	if cfg.DefaultLimits == (executor.Limits{}) {
		cfg.DefaultLimits = defaults.DefaultLimits
	}
	return cfg
}

func applyMySQLDefaults(cfg *db.MySQLConfig) {
	defaults := db.DefaultMySQLConfig()
	if cfg.MaxOpenConnections == 0 {
		cfg.MaxOpenConnections = defaults.MaxOpenConnections
	}
	if cfg.MaxIdleConnections == 0 {
		cfg.MaxIdleConnections = defaults.MaxIdleConnections
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}

func (k KafkaAppConfig) toKafkaConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:  k.Brokers,
		ClientID: k.ClientID,
	}
}
