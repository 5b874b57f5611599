// Package config loads harvester configuration from config.yaml and the
// environment, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig    `yaml:"store" mapstructure:"store"`
	Scraper ScraperConfig  `yaml:"scraper" mapstructure:"scraper"`
	Sources []SourceConfig `yaml:"sources" mapstructure:"sources"`
	Server  ServerConfig   `yaml:"server" mapstructure:"server"`
	Monitor MonitorConfig  `yaml:"monitor" mapstructure:"monitor"`
	Log     LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScraperConfig configures the scraping orchestrator.
type ScraperConfig struct {
	BaseDelaySecs float64 `yaml:"base_delay_secs" mapstructure:"base_delay_secs"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	MetricsPath   string  `yaml:"metrics_path" mapstructure:"metrics_path"`
}

// BaseDelay returns the configured base inter-request delay.
func (c ScraperConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelaySecs * float64(time.Second))
}

// Timeout returns the per-request timeout.
func (c ScraperConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SourceConfig declares one external catalog. Declaration order is
// significant: it breaks priority ties during scheduling.
type SourceConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Website string `yaml:"website" mapstructure:"website"`
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Adapter string `yaml:"adapter" mapstructure:"adapter"`
	URL     string `yaml:"url" mapstructure:"url"`
}

// ServerConfig configures the read-only query API.
type ServerConfig struct {
	Port       int `yaml:"port" mapstructure:"port"`
	RatePerMin int `yaml:"rate_per_min" mapstructure:"rate_per_min"`
}

// MonitorConfig configures the periodic metrics reporter.
type MonitorConfig struct {
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
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
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "harvester.db")
	v.SetDefault("scraper.base_delay_secs", 1.0)
	v.SetDefault("scraper.timeout_secs", 10)
	v.SetDefault("scraper.max_retries", 2)
	v.SetDefault("scraper.user_agent", "sparehub-harvester/1.0 (+https://github.com/sparehub/harvester)")
	v.SetDefault("scraper.metrics_path", "harvester_metrics.json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_min", 60)
	v.SetDefault("monitor.interval_secs", 300)
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
