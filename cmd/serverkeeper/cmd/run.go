package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okarpov/serverkeeper/internal/config"
	"github.com/okarpov/serverkeeper/internal/logger"
	"github.com/okarpov/serverkeeper/internal/service/installer"
	"github.com/okarpov/serverkeeper/internal/service/supervisor"
)

// shutdownTimeout bounds the final graceful stop on exit.
const shutdownTimeout = 30 * time.Second

// runCmd resolves the server executable and supervises it until terminated.
// SIGHUP restarts the server with the currently resolved path.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resolve the server executable and keep it running",
	Long: `Resolves the server executable (downloading the latest release if needed),
launches it, and supervises it until serverkeeper is terminated.

A failed resolution does not abort: the process stays alive and a SIGHUP
retries resolution, so the operator can recover without restarting the host.
When the server is already running, SIGHUP restarts it with the same path.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		ctx = logger.WithName(ctx, "serverkeeper")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		return runSupervised(ctx, newPlanner(cfg), supervisor.New())
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(runCmd)
}

// runSupervised owns the resolve-start-supervise loop. The supervisor is
// constructed regardless of resolution outcome so lifecycle commands keep
// working after a failed startup resolution.
func runSupervised(ctx context.Context, planner *installer.Planner, sup *supervisor.Supervisor) error {
	resolveAndStart(ctx, planner, sup)

	restartSignal := make(chan os.Signal, 1)
	signal.Notify(restartSignal, syscall.SIGHUP)

	defer signal.Stop(restartSignal)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			return sup.Stop(shutdownCtx)
		case <-restartSignal:
			if sup.Path() == "" {
				// Startup resolution failed earlier; retry it now.
				resolveAndStart(ctx, planner, sup)

				continue
			}

			if err := sup.Restart(ctx); err != nil {
				logger.ErrorKV(ctx, "Server restart failed", "error", err)
			}
		}
	}
}

// resolveAndStart performs one resolution and launch attempt. Failures are
// surfaced as notifications, never as a crash of the host loop.
func resolveAndStart(ctx context.Context, planner *installer.Planner, sup *supervisor.Supervisor) {
	path, err := planner.ResolvePath(ctx)
	if err != nil {
		logger.ErrorKV(ctx, "Server resolution failed, send SIGHUP to retry", "error", err)

		return
	}

	if err = sup.Start(ctx, path); err != nil {
		logger.ErrorKV(ctx, "Server launch failed", "error", err)
	}
}
