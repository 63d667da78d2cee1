package cli

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/danieljhkim/watchguard/internal/config"
	"github.com/danieljhkim/watchguard/internal/engine"
	"github.com/danieljhkim/watchguard/internal/logging"
	"github.com/danieljhkim/watchguard/internal/notify"
)

// loadConfig resolves the paths and reads the config file named by --config,
// falling back to config.yaml under the data root.
func loadConfig() (*config.Paths, config.Config, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to get config paths: %w", err)
	}

	path := cfgFile
	if path == "" {
		path = paths.Config
	}
	cfg, err := config.Load(path, paths)
	if err != nil {
		return nil, config.Config{}, err
	}
	return paths, cfg, nil
}

// newLogger builds the process logger. One-shot commands log warnings only
// unless --verbose is set.
func newLogger(cfg config.Config, oneShot bool) (*zap.Logger, error) {
	level := cfg.Log.Level
	switch {
	case verbose:
		level = "debug"
	case oneShot:
		level = "warn"
	}
	return logging.New(level, cfg.Log.Format)
}

// newEngine opens an engine for a one-shot command. The returned func closes
// the engine and flushes the logger.
func newEngine() (*engine.Engine, func(), error) {
	_, cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg, true)
	if err != nil {
		return nil, nil, err
	}
	eng, err := openEngine(cfg, logger, nil)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return eng, closer(eng, logger), nil
}

// closer returns a func that closes eng and then syncs logger.
func closer(eng *engine.Engine, logger *zap.Logger) func() {
	return func() {
		_ = eng.Close()
		_ = logger.Sync()
	}
}

// openEngine opens the engine over cfg.DataDir. A nil sender disables
// notifications.
func openEngine(cfg config.Config, logger *zap.Logger, sender notify.Sender) (*engine.Engine, error) {
	eng, err := engine.Open(engine.Options{
		DataDir:      cfg.DataDir,
		Interval:     cfg.Sync.Interval,
		DashboardTTL: cfg.Dashboard.TTL,
		Sender:       sender,
		Origin:       cfg.Notify.Origin,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory %s: %w", cfg.DataDir, err)
	}
	return eng, nil
}

// FormatError formats an error for display.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
