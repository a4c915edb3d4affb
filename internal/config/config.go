// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Mailer    MailerConfig    `yaml:"mailer" mapstructure:"mailer"`
	Webhook   WebhookConfig   `yaml:"webhook" mapstructure:"webhook"`
	Alert     AlertConfig     `yaml:"alert" mapstructure:"alert"`
	Reprocess ReprocessConfig `yaml:"reprocess" mapstructure:"reprocess"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MailerConfig configures the outbound marketing-service sync.
//
// TriggerGroups are marketing-list identifiers every synced lead is added
// to. They are opaque numeric strings from the service; they must never be
// parsed as integers (ids exceed float64 precision when round-tripped
// through JSON tooling).
type MailerConfig struct {
	APIKey        string   `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	TriggerGroups []string `yaml:"trigger_groups" mapstructure:"-"`
	DefaultNotes  string   `yaml:"default_notes" mapstructure:"default_notes"`
	RateLimit     float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// WebhookConfig configures inbound webhook authentication.
type WebhookConfig struct {
	Secret     string `yaml:"secret" mapstructure:"secret"`
	DebugToken string `yaml:"debug_token" mapstructure:"debug_token"`
	Provider   string `yaml:"provider" mapstructure:"provider"`
}

// AlertConfig configures the outbound alert webhook.
type AlertConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Channel    string `yaml:"channel" mapstructure:"channel"`
}

// ReprocessConfig configures the failed-event retry batch job.
type ReprocessConfig struct {
	Secret       string `yaml:"secret" mapstructure:"secret"`
	MaxAttempts  int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	DefaultBatch int    `yaml:"default_batch" mapstructure:"default_batch"`
	MaxBatch     int    `yaml:"max_batch" mapstructure:"max_batch"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyMailerKeyEnvs are older deployment variable names for the marketing
// API key, checked in order when the canonical key is unset.
var legacyMailerKeyEnvs = []string{
	"MAILERLITE_API_KEY",
	"ML_API_KEY",
	"MAILERLITE_TOKEN",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("mailer.base_url", "https://connect.mailerlite.com/api")
	v.SetDefault("mailer.default_notes", "Lead via Instagram DM")
	v.SetDefault("mailer.rate_limit", 2.0)
	v.SetDefault("webhook.provider", "manychat")
	v.SetDefault("reprocess.max_attempts", 5)
	v.SetDefault("reprocess.default_batch", 100)
	v.SetDefault("reprocess.max_batch", 200)
	v.SetDefault("reprocess.concurrency", 4)
	v.SetDefault("server.port", 8787)
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

	if cfg.Mailer.APIKey == "" {
		cfg.Mailer.APIKey = resolveLegacyMailerKey()
	}
	cfg.Mailer.TriggerGroups = SplitGroups(v.GetString("mailer.trigger_groups"))

	return &cfg, nil
}

// resolveLegacyMailerKey checks older env variable names for the marketing
// API key so existing deployments keep working.
func resolveLegacyMailerKey() string {
	for _, name := range legacyMailerKeyEnvs {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return ""
}

// SplitGroups parses a comma-separated trigger-group list into opaque
// string ids, dropping empties.
func SplitGroups(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var groups []string
	for _, p := range strings.Split(raw, ",") {
		if g := strings.TrimSpace(p); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
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
