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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Run        RunConfig        `yaml:"run" mapstructure:"run"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SchemaConfig locates the expectation definitions.
type SchemaConfig struct {
	// Source is "yaml" or "notion".
	Source string `yaml:"source" mapstructure:"source"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// NotionConfig holds Notion API credentials for the expectation database.
type NotionConfig struct {
	Token         string  `yaml:"token" mapstructure:"token"`
	ExpectationDB string  `yaml:"expectation_db" mapstructure:"expectation_db"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RunConfig tunes classification runs.
type RunConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// IngestConfig configures delivery ingestion.
type IngestConfig struct {
	FTPTimeoutSecs int    `yaml:"ftp_timeout_secs" mapstructure:"ftp_timeout_secs"`
	FTPUser        string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword    string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// ServerConfig configures the report API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures completeness alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MissingRateThreshold float64 `yaml:"missing_rate_threshold" mapstructure:"missing_rate_threshold"`
	NoAttemptThreshold   float64 `yaml:"no_attempt_threshold" mapstructure:"no_attempt_threshold"`
	MinApplicable        int     `yaml:"min_applicable" mapstructure:"min_applicable"`
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
	v.SetEnvPrefix("COMPLETENESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "completeness.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("schema.source", "yaml")
	v.SetDefault("schema.path", "expectations.yaml")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.expectation_db", "")
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("run.concurrency", 4)
	v.SetDefault("ingest.ftp_timeout_secs", 30)
	v.SetDefault("ingest.ftp_user", "")
	v.SetDefault("ingest.ftp_password", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.missing_rate_threshold", 0.25)
	v.SetDefault("monitoring.no_attempt_threshold", 0.10)
	v.SetDefault("monitoring.min_applicable", 20)
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
