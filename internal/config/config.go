// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Session   SessionConfig   `mapstructure:"session"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Store     StoreConfig     `mapstructure:"store"`
	Export    ExportConfig    `mapstructure:"export"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SessionConfig controls the browser session. Credentials normally arrive
// via LINKHARVEST_SESSION_EMAIL / LINKHARVEST_SESSION_PASSWORD rather than
// the config file.
type SessionConfig struct {
	Headless          bool    `mapstructure:"headless"`
	UserAgent         string  `mapstructure:"user_agent"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	LoginURL          string  `mapstructure:"login_url"`
	SearchURL         string  `mapstructure:"search_url"`
	HostQPS           float64 `mapstructure:"host_qps"`
	Email             string  `mapstructure:"email"`
	Password          string  `mapstructure:"password"`
}

// DiscoveryConfig selects and bounds the frontier strategies.
type DiscoveryConfig struct {
	Seeds      []string `mapstructure:"seeds"`
	Groups     []string `mapstructure:"groups"`
	Keywords   []string `mapstructure:"keywords"`
	MaxTargets int      `mapstructure:"max_targets"`
	PerSeedCap int      `mapstructure:"per_seed_cap"`
	PerTermCap int      `mapstructure:"per_term_cap"`
}

// HarvestConfig governs retry, pacing, and checkpoint cadence.
type HarvestConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`
	DelayMinSeconds    int `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds    int `mapstructure:"delay_max_seconds"`
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
	BackoffMaxSeconds  int `mapstructure:"backoff_max_seconds"`
	CheckpointEvery    int `mapstructure:"checkpoint_every"`
}

// StoreConfig locates the identity store document.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ExportConfig locates the export artifacts.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// ArchiveConfig controls the embedded archive database.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig enables the debug HTTP listener when non-empty.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.headless", true)
	v.SetDefault("session.nav_timeout_seconds", 25)
	v.SetDefault("session.login_url", "https://www.linkedin.com/login")
	v.SetDefault("session.search_url", "https://www.linkedin.com/search/results/people/?keywords=")
	v.SetDefault("session.host_qps", 0.5)
	// Registered so AutomaticEnv picks the credentials up during Unmarshal.
	v.SetDefault("session.email", "")
	v.SetDefault("session.password", "")
	v.SetDefault("discovery.max_targets", 50)
	v.SetDefault("discovery.per_seed_cap", 5)
	v.SetDefault("discovery.per_term_cap", 10)
	v.SetDefault("harvest.max_attempts", 3)
	v.SetDefault("harvest.delay_min_seconds", 2)
	v.SetDefault("harvest.delay_max_seconds", 8)
	v.SetDefault("harvest.backoff_base_seconds", 5)
	v.SetDefault("harvest.backoff_max_seconds", 60)
	v.SetDefault("harvest.checkpoint_every", 5)
	v.SetDefault("store.path", "scraped_profiles.json")
	v.SetDefault("export.dir", "exports")
	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", "harvest.db")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Session.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("session.nav_timeout_seconds must be > 0")
	}
	if c.Session.LoginURL == "" {
		return fmt.Errorf("session.login_url must be set")
	}
	if c.Session.HostQPS < 0 {
		return fmt.Errorf("session.host_qps must be >= 0")
	}
	if c.Discovery.MaxTargets <= 0 {
		return fmt.Errorf("discovery.max_targets must be > 0")
	}
	if c.Harvest.MaxAttempts <= 0 {
		return fmt.Errorf("harvest.max_attempts must be > 0")
	}
	if c.Harvest.DelayMinSeconds <= 0 {
		return fmt.Errorf("harvest.delay_min_seconds must be > 0")
	}
	if c.Harvest.DelayMaxSeconds <= c.Harvest.DelayMinSeconds {
		return fmt.Errorf("harvest.delay_max_seconds must be > harvest.delay_min_seconds")
	}
	if c.Harvest.CheckpointEvery <= 0 {
		return fmt.Errorf("harvest.checkpoint_every must be > 0")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir must be set")
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path must be set when archive is enabled")
	}
	return nil
}

// NavTimeout converts the session timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Session.NavTimeoutSeconds) * time.Second
}

// DelayRange returns the pacing bounds as durations.
func (c Config) DelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.Harvest.DelayMinSeconds) * time.Second,
		time.Duration(c.Harvest.DelayMaxSeconds) * time.Second
}

// BackoffRange returns the retry backoff bounds as durations.
func (c Config) BackoffRange() (time.Duration, time.Duration) {
	return time.Duration(c.Harvest.BackoffBaseSeconds) * time.Second,
		time.Duration(c.Harvest.BackoffMaxSeconds) * time.Second
}
