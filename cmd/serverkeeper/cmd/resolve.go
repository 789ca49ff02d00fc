package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okarpov/serverkeeper/internal/config"
	"github.com/okarpov/serverkeeper/internal/logger"
)

// resolveCmd prints the server executable path without launching it.
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the server executable path without starting it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		ctx = logger.WithName(ctx, "serverkeeper-resolve")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		path, err := newPlanner(cfg).ResolvePath(ctx)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(resolveCmd)
}
