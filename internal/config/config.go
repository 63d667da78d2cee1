package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. WATCHGUARD_SYNC_INTERVAL.
const EnvPrefix = "WATCHGUARD"

// Trigger modes for the reconciler.
const (
	WatchPoll   = "poll"
	WatchNotify = "notify"
)

// Log formats.
const (
	LogJSON    = "json"
	LogConsole = "console"
)

// Config is the process configuration loaded from config.yaml.
type Config struct {
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
}

// SyncConfig controls the reconciler.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Watch    string        `mapstructure:"watch" yaml:"watch"` // "poll" (default) or "notify"
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "json" (default) or "console"
}

type NotifyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Origin  string `mapstructure:"origin" yaml:"origin"`
}

type DashboardConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Defaults returns the configuration used when no file or override is set.
// DataDir is left empty and resolved against Paths by Load.
func Defaults() Config {
	return Config{
		Sync: SyncConfig{
			Interval: 30 * time.Second,
			Watch:    WatchPoll,
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogJSON,
		},
		Notify: NotifyConfig{
			Enabled: true,
			Origin:  "watchguard",
		},
		Dashboard: DashboardConfig{
			TTL: 5 * time.Minute,
		},
	}
}

// Load reads the config file at path, if it exists, layered over Defaults
// and under WATCHGUARD_* environment overrides. An empty data_dir resolves
// to paths.Data.
func Load(path string, paths *Paths) (Config, error) {
	defaults := Defaults()

	v := viper.New()
	v.SetDefault("data_dir", "")
	v.SetDefault("sync.interval", defaults.Sync.Interval)
	v.SetDefault("sync.watch", defaults.Sync.Watch)
	v.SetDefault("sync.debounce", defaults.Sync.Debounce)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("notify.enabled", defaults.Notify.Enabled)
	v.SetDefault("notify.origin", defaults.Notify.Origin)
	v.SetDefault("dashboard.ttl", defaults.Dashboard.TTL)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.DataDir == "" && paths != nil {
		cfg.DataDir = paths.Data
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.Sync.Debounce < 0 {
		return fmt.Errorf("sync.debounce must not be negative, got %s", c.Sync.Debounce)
	}
	switch c.Sync.Watch {
	case WatchPoll, WatchNotify:
	default:
		return fmt.Errorf("sync.watch must be %q or %q, got %q", WatchPoll, WatchNotify, c.Sync.Watch)
	}
	switch c.Log.Format {
	case LogJSON, LogConsole:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", LogJSON, LogConsole, c.Log.Format)
	}
	if c.Dashboard.TTL <= 0 {
		return fmt.Errorf("dashboard.ttl must be positive, got %s", c.Dashboard.TTL)
	}
	return nil
}
