package gosieve

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// Config holds engine settings that are usually supplied by deployment
// rather than code.
type Config struct {
	// DefaultLimit replaces a missing or non-positive limit in RawPaging.
	DefaultLimit int `mapstructure:"default_limit"`
	// MaxLimit caps the limit accepted from RawPaging.
	MaxLimit int `mapstructure:"max_limit"`
	// DisableCache turns accessor and predicate memoization off.
	DisableCache bool `mapstructure:"disable_cache"`
	// CacheSize caps the number of compiled predicates kept per engine. Zero
	// selects DefaultCacheSize.
	CacheSize int `mapstructure:"cache_size"`
	// LogLevel is one of DEBUG, INFO, WARN, ERROR. Empty keeps slog.Default().
	LogLevel string `mapstructure:"log_level"`
}

// DefaultCacheSize is the predicate cache capacity used when Config.CacheSize
// is zero.
const DefaultCacheSize = 1024

func (c Config) cacheSize() int {
	if c.CacheSize == 0 {
		return DefaultCacheSize
	}

	return c.CacheSize
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: DefaultLimit,
		MaxLimit:     MaxLimit,
	}
}

// LoadConfig reads an optional gosieve.yaml from paths and overrides it with
// environment variables named <PREFIX>_<KEY>, e.g. GOSIEVE_MAX_LIMIT.
func LoadConfig(prefix string, paths ...string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("gosieve")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetDefault("default_limit", cfg.DefaultLimit)
	v.SetDefault("max_limit", cfg.MaxLimit)
	v.SetDefault("disable_cache", cfg.DisableCache)
	v.SetDefault("cache_size", cfg.CacheSize)
	v.SetDefault("log_level", cfg.LogLevel)

	if prefix != "" {
		v.SetEnvPrefix(prefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cfg, fmt.Errorf("cannot read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.MaxLimit <= 0 {
		return fmt.Errorf("invalid config: max_limit must be positive, got %d", c.MaxLimit)
	}
	if c.DefaultLimit <= 0 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("invalid config: default_limit must be in (0, %d], got %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("invalid config: cache_size must not be negative, got %d", c.CacheSize)
	}
	if _, ok := parseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("invalid config: unknown log_level '%s'", c.LogLevel)
	}

	return nil
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
