package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/balance-review/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	QBO    QBOConfig    `yaml:"qbo" mapstructure:"qbo"`
	Review ReviewConfig `yaml:"review" mapstructure:"review"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string            `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// QBOConfig holds QuickBooks Online API settings.
type QBOConfig struct {
	RealmID      string  `yaml:"realm_id" mapstructure:"realm_id"`
	AccessToken  string  `yaml:"access_token" mapstructure:"access_token"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	MinorVersion string  `yaml:"minor_version" mapstructure:"minor_version"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateBurst    int     `yaml:"rate_burst" mapstructure:"rate_burst"`

	RetryMaxAttempts      int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier       float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction   float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`

	CircuitFailureThreshold int `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetTimeoutSecs int `yaml:"circuit_reset_timeout_secs" mapstructure:"circuit_reset_timeout_secs"`
}

// ReviewConfig configures rule evaluation.
type ReviewConfig struct {
	// RulesConfigPath points at a client-specific YAML file of per-rule
	// overrides keyed by rule ID.
	RulesConfigPath string `yaml:"rules_config_path" mapstructure:"rules_config_path"`
	// PriorPeriods is how many prior-month balance sheets to load when
	// fixture directories for them exist.
	PriorPeriods int `yaml:"prior_periods" mapstructure:"prior_periods"`
}

// ServerConfig configures the report server.
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
	v.SetEnvPrefix("BALREV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "balance-review.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("qbo.base_url", "https://quickbooks.api.intuit.com")
	v.SetDefault("qbo.minor_version", "75")
	v.SetDefault("qbo.rate_limit_rps", 5)
	v.SetDefault("qbo.rate_burst", 5)
	v.SetDefault("qbo.retry_max_attempts", 4)
	v.SetDefault("qbo.retry_initial_backoff_ms", 1000)
	v.SetDefault("qbo.retry_max_backoff_ms", 60000)
	v.SetDefault("qbo.retry_multiplier", 2.0)
	v.SetDefault("qbo.retry_jitter_fraction", 0.2)
	v.SetDefault("qbo.circuit_failure_threshold", 5)
	v.SetDefault("qbo.circuit_reset_timeout_secs", 60)
	v.SetDefault("review.prior_periods", 3)

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

// Validate checks that the configuration is usable for the given mode.
// Modes: "run" (evaluate a period), "fetch" (pull QBO data), "serve"
// (report server).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	switch mode {
	case "run":
		// Store checks above are sufficient; input comes from fixtures.
	case "fetch":
		if c.QBO.RealmID == "" {
			problems = append(problems, "qbo.realm_id is required")
		}
		if c.QBO.AccessToken == "" {
			problems = append(problems, "qbo.access_token is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
