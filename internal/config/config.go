package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers
const (
	StorageDriverR2    = "r2"
	StorageDriverLocal = "local"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	R2        R2Config
	Storage   StorageConfig
	Provider  ProviderConfig
	Upload    UploadConfig
	Watch     WatchConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port      string `validate:"required"`
	Env       string `validate:"required"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	PublicURL string `validate:"omitempty,url"`
	BodyLimit int    `validate:"gt=0"` // bytes
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type StorageConfig struct {
	Driver   string `validate:"oneof=r2 local"`
	LocalDir string
}

type ProviderConfig struct {
	APIKey       string
	Adapters     []string // priority order; empty means every built-in adapter
	AdaptersFile string
	BaseURL      string        `validate:"omitempty,url"`
	Timeout      time.Duration `validate:"gt=0"`
}

type UploadConfig struct {
	MaxBytes int64 `validate:"gt=0"`
}

type WatchConfig struct {
	Enabled     bool
	Interval    time.Duration `validate:"gt=0"`
	Timeout     time.Duration `validate:"gtfield=Interval"`
	Concurrency int           `validate:"gt=0"`
}

type CORSConfig struct {
	AllowOrigins string `validate:"required"`
}

// RateLimitConfig limits per client IP; 0 disables a limit
type RateLimitConfig struct {
	GeneratePerHour int `validate:"gte=0"`
}

// Load reads configuration from .env, config.yaml and the environment
func Load() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("PROVIDER_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("server.public_url", "PUBLIC_URL")
	_ = v.BindEnv("server.body_limit", "SERVER_BODY_LIMIT")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = v.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = v.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = v.BindEnv("storage.driver", "STORAGE_DRIVER")
	_ = v.BindEnv("storage.local_dir", "STORAGE_LOCAL_DIR")
	_ = v.BindEnv("provider.api_key", "PROVIDER_API_KEY", "RUNWAY_API_KEY")
	_ = v.BindEnv("provider.adapters", "PROVIDER_ADAPTERS")
	_ = v.BindEnv("provider.adapters_file", "PROVIDER_ADAPTERS_FILE")
	_ = v.BindEnv("provider.base_url", "PROVIDER_BASE_URL")
	_ = v.BindEnv("provider.timeout", "PROVIDER_TIMEOUT")
	_ = v.BindEnv("upload.max_bytes", "UPLOAD_MAX_BYTES")
	_ = v.BindEnv("watch.enabled", "WATCH_ENABLED")
	_ = v.BindEnv("watch.interval", "WATCH_INTERVAL")
	_ = v.BindEnv("watch.timeout", "WATCH_TIMEOUT")
	_ = v.BindEnv("watch.concurrency", "WATCH_CONCURRENCY")
	_ = v.BindEnv("cors.allow_origins", "CORS_ALLOW_ORIGINS")
	_ = v.BindEnv("rate_limit.generate_per_hour", "RATE_LIMIT_GENERATE_PER_HOUR")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.body_limit", 12<<20)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Storage defaults
	v.SetDefault("storage.driver", StorageDriverR2)
	v.SetDefault("storage.local_dir", "./data/assets")

	// Provider defaults
	v.SetDefault("provider.timeout", 60*time.Second)

	// Upload defaults
	v.SetDefault("upload.max_bytes", 10<<20)

	// Watcher defaults
	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.interval", 3*time.Second)
	v.SetDefault("watch.timeout", 5*time.Minute)
	v.SetDefault("watch.concurrency", 10)

	// CORS defaults
	v.SetDefault("cors.allow_origins", "*")

	// Rate limit defaults
	v.SetDefault("rate_limit.generate_per_hour", 0)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetString("server.port"),
			Env:       v.GetString("server.env"),
			LogLevel:  strings.ToLower(v.GetString("server.log_level")),
			PublicURL: strings.TrimRight(v.GetString("server.public_url"), "/"),
			BodyLimit: v.GetInt("server.body_limit"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Storage: StorageConfig{
			Driver:   strings.ToLower(v.GetString("storage.driver")),
			LocalDir: v.GetString("storage.local_dir"),
		},
		Provider: ProviderConfig{
			APIKey:       v.GetString("provider.api_key"),
			Adapters:     splitList(v.Get("provider.adapters")),
			AdaptersFile: v.GetString("provider.adapters_file"),
			BaseURL:      v.GetString("provider.base_url"),
			Timeout:      v.GetDuration("provider.timeout"),
		},
		Upload: UploadConfig{
			MaxBytes: v.GetInt64("upload.max_bytes"),
		},
		Watch: WatchConfig{
			Enabled:     v.GetBool("watch.enabled"),
			Interval:    v.GetDuration("watch.interval"),
			Timeout:     v.GetDuration("watch.timeout"),
			Concurrency: v.GetInt("watch.concurrency"),
		},
		CORS: CORSConfig{
			AllowOrigins: v.GetString("cors.allow_origins"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("rate_limit.generate_per_hour"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts a YAML list or a comma separated env value
func splitList(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case []any:
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
	case []string:
		parts = t
	case string:
		parts = strings.Split(t, ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// LocalAssetsURL is the public base URL of the local asset store
func (c *Config) LocalAssetsURL() string {
	return c.Server.PublicURL + "/assets"
}

// Validate checks field values and the combinations each storage driver needs
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Storage.Driver {
	case StorageDriverR2:
		var missing []string
		for name, val := range map[string]string{
			"r2.account_id":        c.R2.AccountID,
			"r2.access_key_id":     c.R2.AccessKeyID,
			"r2.secret_access_key": c.R2.SecretAccessKey,
			"r2.bucket_name":       c.R2.BucketName,
			"r2.public_url":        c.R2.PublicURL,
		} {
			if val == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("invalid configuration: r2 storage requires %s", strings.Join(missing, ", "))
		}
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return errors.New("invalid configuration: local storage requires storage.local_dir")
		}
		if c.Server.PublicURL == "" {
			return errors.New("invalid configuration: local storage requires server.public_url")
		}
	}

	return nil
}
