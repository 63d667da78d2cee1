package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/watchguard/internal/config"
	"github.com/danieljhkim/watchguard/internal/notify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciler until interrupted",
	Long: `Run the label reconciler in the foreground until SIGINT or SIGTERM.

With sync.watch set to "notify", filesystem events on the data files trigger
a pass in addition to the interval. Change notifications are printed to
stdout when notify.enabled is true.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	paths, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	var sender notify.Sender
	if cfg.Notify.Enabled {
		sender = notify.NewWriterSender(stdout)
	}
	eng, err := openEngine(cfg, logger, sender)
	if err != nil {
		return err
	}
	defer eng.Close()

	logger.Info("serving",
		zap.String("data_dir", cfg.DataDir),
		zap.Duration("interval", cfg.Sync.Interval),
		zap.String("watch", cfg.Sync.Watch))

	g, ctx := errgroup.WithContext(ctx)
	eng.StartReconciler(ctx)
	if cfg.Sync.Watch == config.WatchNotify {
		g.Go(func() error {
			return eng.Watch(ctx, cfg.Sync.Debounce)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		eng.StopReconciler()
		return nil
	})

	err = g.Wait()
	logger.Info("stopped")
	return err
}
