package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stackrelay/stackrelay/pkg/config"
	"github.com/stackrelay/stackrelay/pkg/server"
)

func newServeCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lifecycle orchestration service",
		Long: `Start the HTTP service that accepts Create/Update/Delete lifecycle
requests, runs deployment builds, and reports completion callbacks.

Endpoints:
  POST /v1/lifecycle  accept a lifecycle request
  GET  /healthz       liveness and journal health
  GET  /metrics       Prometheus metrics`,
		Example: `  # Serve with the default config file
  stackrelay serve

  # Serve with an explicit config and hot reload of projection keys
  stackrelay serve --config /etc/stackrelay/config.yaml --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}

			srv := server.New(rt.cfg.Server, rt.dispatcher, rt.store, rt.metrics, rt.log)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()

			if watch {
				go watchConfig(ctx, rt)
			}

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				rt.log.WithError(err).Warn("HTTP server shutdown did not complete cleanly")
			}
			rt.shutdown(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "reload configuration on file change")

	return cmd
}

// watchConfig reloads the configuration file on change. Only logging level
// changes take effect at runtime; structural changes require a restart.
func watchConfig(ctx context.Context, rt *runtime) {
	watcher, err := config.NewWatcher(configPath, rt.log)
	if err != nil {
		rt.log.WithError(err).Warn("Configuration watch disabled")
		return
	}
	defer watcher.Close()

	_ = watcher.Watch(ctx, func(cfg *config.Config) {
		rt.log.WithField("level", cfg.Telemetry.Logging.Level).Info("Applying reloaded configuration")
		rt.cfg.Telemetry.Logging.Level = cfg.Telemetry.Logging.Level
	})
}
