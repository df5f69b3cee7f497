package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig points at the rates REST endpoint.
type SourceConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RatesPath   string `yaml:"rates_path" mapstructure:"rates_path"`
	Token       string `yaml:"token" mapstructure:"token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig selects and tunes the geocoding provider.
type GeocodeConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig selects the lookup cache backend.
type CacheConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr   string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
}

// PipelineConfig configures resolution passes.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("RATEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.base_url", "http://localhost:8000/api")
	v.SetDefault("source.rates_path", "/rates")
	v.SetDefault("source.token", "")
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("geocode.provider", "nominatim")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "rate-map/1.0")
	v.SetDefault("geocode.google_api_key", "")
	v.SetDefault("geocode.rate_limit", 1.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.path", "geocode_cache.json")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_prefix", "geocode:")
	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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

// Validate checks the settings a command mode depends on. Modes: "resolve",
// "serve", "cache".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "resolve", "serve":
		problems = append(problems, c.validateGeocode()...)
		problems = append(problems, c.validateCache()...)
		if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 50 {
			problems = append(problems, "pipeline.concurrency must be between 1 and 50")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "cache":
		problems = append(problems, c.validateCache()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateGeocode() []string {
	var problems []string
	switch c.Geocode.Provider {
	case "nominatim":
		if strings.TrimSpace(c.Geocode.UserAgent) == "" {
			problems = append(problems, "geocode.user_agent is required for nominatim")
		}
	case "google":
		if c.Geocode.GoogleAPIKey == "" {
			problems = append(problems, "geocode.google_api_key is required for google")
		}
	default:
		problems = append(problems, fmt.Sprintf("geocode.provider %q is not supported", c.Geocode.Provider))
	}
	if c.Geocode.RateLimit < 0 {
		problems = append(problems, "geocode.rate_limit must be >= 0")
	}
	return problems
}

func (c *Config) validateCache() []string {
	switch c.Cache.Driver {
	case "memory":
	case "file", "sqlite":
		if c.Cache.Path == "" {
			return []string{"cache.path is required for " + c.Cache.Driver}
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return []string{"cache.database_url is required for postgres"}
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			return []string{"cache.redis_addr is required for redis"}
		}
	default:
		return []string{fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver)}
	}
	return nil
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
