package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is loaded once at
// startup and injected into each component at construction; nothing reads
// configuration from global state.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Dispatch   DispatchConfig   `yaml:"dispatch" mapstructure:"dispatch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`

	// Brands is an ordered list: the merge stage walks brands in exactly
	// this order, which decides first-seen-wins outcomes.
	Brands []BrandConfig `yaml:"brands" mapstructure:"brands"`
}

// BrandConfig is the per-brand policy input: display label, permitted size
// codes, and where the raw record feed lives.
type BrandConfig struct {
	Name          string   `yaml:"name" mapstructure:"name"`
	Label         string   `yaml:"label" mapstructure:"label"`
	SizeAllowlist []string `yaml:"size_allowlist" mapstructure:"size_allowlist"`
	Feed          string   `yaml:"feed" mapstructure:"feed"`
	InferType     bool     `yaml:"infer_type" mapstructure:"infer_type"`
}

// StoreConfig configures the run-ledger database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StorageConfig configures the durable medallion storage root.
type StorageConfig struct {
	Root       string `yaml:"root" mapstructure:"root"`
	ReportsDir string `yaml:"reports_dir" mapstructure:"reports_dir"`
}

// SourceConfig configures how raw record feeds are fetched.
type SourceConfig struct {
	Kind        string  `yaml:"kind" mapstructure:"kind"` // "dir" or "http"
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// DispatchConfig configures delivery of the gold payload. An empty endpoint
// forces dry-run mode, which is the default safe mode.
type DispatchConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	Token       string `yaml:"token" mapstructure:"token"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MonitoringConfig configures the metrics checker and webhook alerter.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	PartialRateThreshold float64 `yaml:"partial_rate_threshold" mapstructure:"partial_rate_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// ServerConfig configures the HTTP serving surface.
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
	v.SetEnvPrefix("NUTRITION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "nutrition-pipeline.db")
	v.SetDefault("storage.root", "data")
	v.SetDefault("storage.reports_dir", "reports")
	v.SetDefault("source.kind", "dir")
	v.SetDefault("source.user_agent", "nutrition-pipeline/1.0")
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.rate_per_sec", 5)
	v.SetDefault("dispatch.max_attempts", 3)
	v.SetDefault("dispatch.timeout_secs", 10)
	v.SetDefault("monitoring.partial_rate_threshold", 0.3)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
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

	if len(cfg.Brands) == 0 {
		cfg.Brands = DefaultBrands()
	}

	return &cfg, nil
}

// DefaultBrands returns the built-in brand policies. The slice order is the
// default merge order.
func DefaultBrands() []BrandConfig {
	return []BrandConfig{
		{
			Name:          "Starbucks",
			Label:         "스타벅스",
			SizeAllowlist: []string{"TALL", "GRANDE", "VENTI"},
			Feed:          "feeds/starbucks.json",
		},
		{
			Name:          "MegaCoffee",
			Label:         "메가커피",
			SizeAllowlist: []string{"MEGA"},
			Feed:          "feeds/megacoffee.json",
			InferType:     true,
		},
	}
}

// Brand returns the policy for the named brand, or false when unknown.
func (c *Config) Brand(name string) (BrandConfig, bool) {
	for _, b := range c.Brands {
		if b.Name == name {
			return b, true
		}
	}
	return BrandConfig{}, false
}

// SizeAllowlists returns the per-brand permitted size codes keyed by brand
// name, the shape the integrity filter consumes.
func (c *Config) SizeAllowlists() map[string][]string {
	m := make(map[string][]string, len(c.Brands))
	for _, b := range c.Brands {
		m[b.Name] = b.SizeAllowlist
	}
	return m
}

// BrandLabels returns the localized display label per brand name.
func (c *Config) BrandLabels() map[string]string {
	m := make(map[string]string, len(c.Brands))
	for _, b := range c.Brands {
		m[b.Name] = b.Label
	}
	return m
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
