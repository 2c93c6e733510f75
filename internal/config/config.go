package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. RADIS_DATABASE_PASSWORD.
const EnvPrefix = "radis"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Import    ImportConfig    `mapstructure:"import"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" split_words:"true"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" split_words:"true"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" split_words:"true"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode" split_words:"true"`
	MaxOpenConns int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" split_words:"true"`
	AutoSchema   bool   `mapstructure:"auto_schema" split_words:"true"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours" split_words:"true"`
}

func (c JWTConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type AuthConfig struct {
	RequireForImport bool `mapstructure:"require_for_import" split_words:"true"`
	BcryptCost       int  `mapstructure:"bcrypt_cost" split_words:"true"`
}

type UploadConfig struct {
	TempDir        string `mapstructure:"temp_dir" split_words:"true"`
	MaxSizeMB      int64  `mapstructure:"max_size_mb" split_words:"true"`
	SmallMaxSizeMB int64  `mapstructure:"small_max_size_mb" split_words:"true"`
	LargeMaxSizeMB int64  `mapstructure:"large_max_size_mb" split_words:"true"`
}

func (c UploadConfig) MaxBytes() int64      { return c.MaxSizeMB << 20 }
func (c UploadConfig) SmallMaxBytes() int64 { return c.SmallMaxSizeMB << 20 }
func (c UploadConfig) LargeMaxBytes() int64 { return c.LargeMaxSizeMB << 20 }

// MaxBatchSize bounds import.batch_sizes. Larger batches still insert in
// several statements but hold one transaction open for longer.
const MaxBatchSize = 5000

type ImportConfig struct {
	BatchSizes     map[string]int `mapstructure:"batch_sizes" split_words:"true"`
	ParentCacheTTL time.Duration  `mapstructure:"parent_cache_ttl" split_words:"true"`
	DefaultCharset string         `mapstructure:"default_charset" split_words:"true"`
}

// BatchSize returns the configured batch size for entity, or fallback.
func (c ImportConfig) BatchSize(entity string, fallback int) int {
	if n, ok := c.BatchSizes[entity]; ok && n > 0 {
		return n
	}
	return fallback
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" split_words:"true"`
}

type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && len(c.To) > 0
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "5m")
	v.SetDefault("server.write_timeout", "10m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "radis")
	v.SetDefault("database.name", "radis")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_schema", true)

	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("auth.require_for_import", true)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("upload.temp_dir", "")
	v.SetDefault("upload.max_size_mb", 50)
	v.SetDefault("upload.small_max_size_mb", 10)
	v.SetDefault("upload.large_max_size_mb", 200)

	v.SetDefault("import.batch_sizes", map[string]int{
		"patients":       1000,
		"reports":        500,
		"schedules":      200,
		"doctors":        50,
		"teaching-files": 100,
		"dicom":          500,
	})
	v.SetDefault("import.parent_cache_ttl", "5m")
	v.SetDefault("import.default_charset", "utf-8")

	v.SetDefault("redis.channel", "radis.imports")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "radis@localhost")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 2)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("log.level", "info")
}

// Load reads configuration from .env, the YAML file and RADIS_* variables,
// in that order of increasing precedence. An empty path searches the default
// locations and tolerates a missing file; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/radis")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret must be set")
	}
	if c.Upload.MaxSizeMB <= 0 || c.Upload.SmallMaxSizeMB <= 0 || c.Upload.LargeMaxSizeMB <= 0 {
		problems = append(problems, "upload size limits must be positive")
	}
	for entity, n := range c.Import.BatchSizes {
		if n <= 0 || n > MaxBatchSize {
			problems = append(problems, fmt.Sprintf("import.batch_sizes.%s must be between 1 and %d", entity, MaxBatchSize))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
