// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/stripes-go/stripes/internal/errors"
)

// Flash store kinds
const (
	FlashMemory = "memory"
	FlashRedis  = "redis"
	FlashSQL    = "sql"
)

// Config is the full runtime configuration
type Config struct {
	Server   ServerConfig
	Dispatch DispatchConfig
	Flash    FlashConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Debug    bool
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Host            string
	Port            string
	ShutdownTimeout time.Duration
	EnableCORS      bool
}

// DispatchConfig holds dispatcher settings
type DispatchConfig struct {
	EncryptionKey        string
	AlwaysInvokeValidate bool
	// InterceptorsFile is a YAML file of interceptor stacks
	InterceptorsFile string
}

// FlashConfig selects and tunes the flash store
type FlashConfig struct {
	Store   string
	Timeout time.Duration
}

// RedisConfig holds settings for the Redis flash store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig holds settings for the SQL flash store
type DatabaseConfig struct {
	URL   string
	Table string
}

// UploadConfig holds multipart settings
type UploadConfig struct {
	MaxSize int64
	// Bucket receives uploads saved to S3
	Bucket string
}

// Load reads files into the environment (".env" when none are given; a
// missing file is not an error) and builds the configuration from it
func Load(logger *slog.Logger, files ...string) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return nil, errors.WrapConfigurationError("env file", "load "+file, err)
		}
	}

	config := FromEnv(os.LookupEnv, logger)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		"port", config.Server.Port,
		"flash_store", config.Flash.Store,
		"debug", config.Debug,
	)
	return config, nil
}

// FromEnv builds a configuration from lookup without validating it
func FromEnv(lookup func(string) (string, bool), logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}
	env := environment{lookup: lookup, logger: logger}

	config := &Config{}
	config.Debug = env.bool("STRIPES_DEBUG", false)

	config.Server.Host = env.string("STRIPES_HOST", "")
	config.Server.Port = env.string("STRIPES_PORT", "")
	if config.Server.Port == "" {
		config.Server.Port = env.string("PORT", "8080")
	}
	config.Server.ShutdownTimeout = env.duration("STRIPES_SHUTDOWN_TIMEOUT", 30*time.Second)
	config.Server.EnableCORS = env.bool("STRIPES_CORS", false)

	config.Dispatch.EncryptionKey = env.string("STRIPES_ENCRYPTION_KEY", "")
	if config.Dispatch.EncryptionKey == "" {
		logger.Warn("STRIPES_ENCRYPTION_KEY not set; tokens will not survive a restart")
	}
	config.Dispatch.AlwaysInvokeValidate = env.bool("STRIPES_ALWAYS_INVOKE_VALIDATE", false)
	config.Dispatch.InterceptorsFile = env.string("STRIPES_INTERCEPTORS", "")

	config.Flash.Store = strings.ToLower(env.string("STRIPES_FLASH_STORE", FlashMemory))
	config.Flash.Timeout = env.duration("STRIPES_FLASH_TIMEOUT", 120*time.Second)

	config.Redis.Addr = env.string("STRIPES_REDIS_ADDR", "")
	config.Redis.Password = env.string("STRIPES_REDIS_PASSWORD", "")
	config.Redis.DB = env.int("STRIPES_REDIS_DB", 0)

	config.Database.URL = env.string("STRIPES_DATABASE_URL", "")
	config.Database.Table = env.string("STRIPES_FLASH_TABLE", "")

	config.Upload.MaxSize = int64(env.int("STRIPES_MAX_UPLOAD_SIZE", 0))
	config.Upload.Bucket = env.string("STRIPES_UPLOAD_BUCKET", "")
	return config
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	switch c.Flash.Store {
	case FlashMemory:
	case FlashRedis:
		if c.Redis.Addr == "" {
			return errors.New(errors.ConfigurationErrorCode, "STRIPES_REDIS_ADDR is required for the redis flash store")
		}
	case FlashSQL:
		if c.Database.URL == "" {
			return errors.New(errors.ConfigurationErrorCode, "STRIPES_DATABASE_URL is required for the sql flash store")
		}
	default:
		return errors.Newf(errors.ConfigurationErrorCode, "unknown flash store %q", c.Flash.Store).
			WithSuggestion("use one of: memory, redis, sql")
	}
	if c.Flash.Timeout <= 0 {
		return errors.New(errors.ConfigurationErrorCode, "STRIPES_FLASH_TIMEOUT must be positive")
	}
	if c.Upload.MaxSize < 0 {
		return errors.New(errors.ConfigurationErrorCode, "STRIPES_MAX_UPLOAD_SIZE must not be negative")
	}
	return nil
}

// Address returns host:port
func (c *Config) Address() string {
	return c.Server.Host + ":" + c.Server.Port
}

type environment struct {
	lookup func(string) (string, bool)
	logger *slog.Logger
}

func (e environment) string(key, defaultVal string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return defaultVal
}

func (e environment) int(key string, defaultVal int) int {
	raw := e.string(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.logger.Warn("invalid integer, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}

func (e environment) bool(key string, defaultVal bool) bool {
	raw := e.string(key, "")
	if raw == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.logger.Warn("invalid boolean, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}

// duration accepts Go durations ("90s") or whole seconds ("90")
func (e environment) duration(key string, defaultVal time.Duration) time.Duration {
	raw := e.string(key, "")
	if raw == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.logger.Warn("invalid duration, using default", "key", key, "value", raw, "default", defaultVal)
		return defaultVal
	}
	return v
}
