package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	LogLevel        string
	LogFormat       string

	DatabaseURL string
	Redis       RedisConfig
	TaskCache   TaskCacheConfig
	AIService   AIServiceConfig
	Auth        AuthConfig

	CommitTimeout time.Duration

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TaskCacheConfig struct {
	// Backend is "redis" or "memory".
	Backend       string
	InProgressTTL time.Duration
	CompleteTTL   time.Duration
}

type AIServiceConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RetryCount    int
	RequestSchema string
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// Load reads configuration from an optional config.yaml and the environment.
// Environment keys are the upper-cased config keys with dots replaced by
// underscores, e.g. AI_SERVICE_BASE_URL.
func Load() (Config, error) {
	loadEnvFiles(".env", "cmd/.env")

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("port", "8080")
	v.SetDefault("cors_allow_origins", "http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	v.SetDefault("database_url", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("task_cache.backend", "redis")
	v.SetDefault("task_cache.in_progress_ttl", "30m")
	v.SetDefault("task_cache.complete_ttl", "10m")

	v.SetDefault("ai_service.base_url", "http://localhost:8000")
	v.SetDefault("ai_service.timeout", "30s")
	v.SetDefault("ai_service.retry_count", 3)
	v.SetDefault("ai_service.request_schema", "v2")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "")

	v.SetDefault("commit_timeout", "30s")

	v.SetDefault("object_store", "local")
	v.SetDefault("local_store_dir", "./data")
	v.SetDefault("aws_region", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("sse_kms_key_id", "")
}

func fromViper(v *viper.Viper) Config {
	env := normalizeEnv(v.GetString("env"))
	logFormat := v.GetString("log.format")
	if logFormat == "" {
		logFormat = "console"
		if env == "production" || env == "staging" {
			logFormat = "json"
		}
	}

	return Config{
		Env:             env,
		Port:            v.GetString("port"),
		CORSAllowOrigin: splitAndTrim(v.GetString("cors_allow_origins")),
		LogLevel:        strings.ToLower(v.GetString("log.level")),
		LogFormat:       logFormat,
		DatabaseURL:     v.GetString("database_url"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		TaskCache: TaskCacheConfig{
			Backend:       normalizeCacheBackend(v.GetString("task_cache.backend")),
			InProgressTTL: v.GetDuration("task_cache.in_progress_ttl"),
			CompleteTTL:   v.GetDuration("task_cache.complete_ttl"),
		},
		AIService: AIServiceConfig{
			BaseURL:       strings.TrimRight(v.GetString("ai_service.base_url"), "/"),
			Timeout:       v.GetDuration("ai_service.timeout"),
			RetryCount:    v.GetInt("ai_service.retry_count"),
			RequestSchema: strings.ToLower(strings.TrimSpace(v.GetString("ai_service.request_schema"))),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			JWTIssuer: v.GetString("auth.jwt_issuer"),
		},
		CommitTimeout:   v.GetDuration("commit_timeout"),
		ObjectStoreType: normalizeStoreType(v.GetString("object_store")),
		LocalStoreDir:   v.GetString("local_store_dir"),
		AWSRegion:       v.GetString("aws_region"),
		S3Bucket:        v.GetString("s3_bucket"),
		S3Prefix:        v.GetString("s3_prefix"),
		SSEKMSKeyID:     v.GetString("sse_kms_key_id"),
	}
}

func validate(cfg Config) error {
	var problems []string
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			problems = append(problems, "DATABASE_URL is required in production")
		}
		if cfg.Auth.JWTSecret == "" {
			problems = append(problems, "AUTH_JWT_SECRET is required in production")
		}
	}
	if cfg.TaskCache.InProgressTTL <= 0 || cfg.TaskCache.CompleteTTL <= 0 {
		problems = append(problems, "task cache TTLs must be positive")
	}
	if cfg.CommitTimeout <= 0 {
		problems = append(problems, "COMMIT_TIMEOUT must be positive")
	}
	switch cfg.AIService.RequestSchema {
	case "v2", "legacy":
	default:
		problems = append(problems, fmt.Sprintf("AI_SERVICE_REQUEST_SCHEMA %q is not v2 or legacy", cfg.AIService.RequestSchema))
	}
	if cfg.ObjectStoreType == "s3" && cfg.S3Bucket == "" {
		problems = append(problems, "S3_BUCKET is required when OBJECT_STORE=s3")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "memory":
		return "memory"
	default:
		return "redis"
	}
}
