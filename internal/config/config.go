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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Dedup     DedupConfig     `yaml:"dedup" mapstructure:"dedup"`
	Predict   PredictConfig   `yaml:"predict" mapstructure:"predict"`
	Outcome   OutcomeConfig   `yaml:"outcome" mapstructure:"outcome"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the semantic clusterer.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMin float64 `yaml:"requests_per_min" mapstructure:"requests_per_min"`
}

// DedupConfig configures duplicate detection thresholds.
type DedupConfig struct {
	SimilarityThreshold    float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	SharedCompanyThreshold float64 `yaml:"shared_company_threshold" mapstructure:"shared_company_threshold"`
	RetroactiveDays        int     `yaml:"retroactive_days" mapstructure:"retroactive_days"`
}

// PredictConfig configures prediction derivation and locking.
type PredictConfig struct {
	NetThreshold           float64 `yaml:"net_threshold" mapstructure:"net_threshold"`
	HighConfidenceEvents   int     `yaml:"high_confidence_events" mapstructure:"high_confidence_events"`
	MediumConfidenceEvents int     `yaml:"medium_confidence_events" mapstructure:"medium_confidence_events"`
	MarketOpenUTC          string  `yaml:"market_open_utc" mapstructure:"market_open_utc"`
	MarketCloseUTC         string  `yaml:"market_close_utc" mapstructure:"market_close_utc"`
	ExpectedDailyRuns      int     `yaml:"expected_daily_runs" mapstructure:"expected_daily_runs"`
}

// OutcomeConfig configures outcome classification thresholds.
type OutcomeConfig struct {
	FlatThreshold     float64 `yaml:"flat_threshold" mapstructure:"flat_threshold"`
	StrongThreshold   float64 `yaml:"strong_threshold" mapstructure:"strong_threshold"`
	ModerateThreshold float64 `yaml:"moderate_threshold" mapstructure:"moderate_threshold"`
	CorrelationDays   int     `yaml:"correlation_days" mapstructure:"correlation_days"`
	PrimarySymbol     string  `yaml:"primary_symbol" mapstructure:"primary_symbol"`
}

// ServerConfig configures the reporting server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "pulse.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.requests_per_min", 30)
	v.SetDefault("dedup.similarity_threshold", 0.75)
	v.SetDefault("dedup.shared_company_threshold", 0.6)
	v.SetDefault("dedup.retroactive_days", 7)
	v.SetDefault("predict.net_threshold", 10.0)
	v.SetDefault("predict.high_confidence_events", 40)
	v.SetDefault("predict.medium_confidence_events", 20)
	v.SetDefault("predict.market_open_utc", "14:30")
	v.SetDefault("predict.market_close_utc", "21:00")
	v.SetDefault("predict.expected_daily_runs", 1)
	v.SetDefault("outcome.flat_threshold", 0.5)
	v.SetDefault("outcome.strong_threshold", 2.0)
	v.SetDefault("outcome.moderate_threshold", 0.5)
	v.SetDefault("outcome.correlation_days", 30)
	v.SetDefault("outcome.primary_symbol", "^IXIC")

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
