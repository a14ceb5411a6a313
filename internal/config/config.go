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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	G2B    G2BConfig    `yaml:"g2b" mapstructure:"g2b"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// G2BConfig configures the bid-notice open API client and ingestion defaults.
type G2BConfig struct {
	ServiceKey     string `yaml:"service_key" mapstructure:"service_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	PageSize       int    `yaml:"page_size" mapstructure:"page_size"`
	MaxPages       int    `yaml:"max_pages" mapstructure:"max_pages"`
	ChunkDays      int    `yaml:"chunk_days" mapstructure:"chunk_days"`
	RequestDelayMs int    `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	RatePerSec     int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	ScopeRulesPath string `yaml:"scope_rules_path" mapstructure:"scope_rules_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port       int    `yaml:"port" mapstructure:"port"`
	AdminToken string `yaml:"admin_token" mapstructure:"admin_token"`
	ActorSalt  string `yaml:"actor_salt" mapstructure:"actor_salt"`
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
	v.SetEnvPrefix("WATCHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secret-bearing keys default empty so env-only values are
	// still picked up by Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("g2b.service_key", "")
	v.SetDefault("g2b.scope_rules_path", "")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.actor_salt", "")
	v.SetDefault("g2b.base_url", "https://apis.data.go.kr/1230000/ad/BidPublicInfoService")
	v.SetDefault("g2b.page_size", 100)
	v.SetDefault("g2b.max_pages", 50)
	v.SetDefault("g2b.chunk_days", 7)
	v.SetDefault("g2b.request_delay_ms", 120)
	v.SetDefault("g2b.rate_per_sec", 5)
	v.SetDefault("server.port", 8080)
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
