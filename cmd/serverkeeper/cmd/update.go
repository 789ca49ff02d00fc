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

// updateCmd force-refreshes the installed server to the latest release.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download and install the latest server release",
	Long: `Downloads and installs the latest published release unconditionally,
skipping the installed-version check. The prior version stays on disk until
the new one is confirmed installed.

A running "serverkeeper run" instance picks the new install up on its next
restart (send it SIGHUP).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		ctx = logger.WithName(ctx, "serverkeeper-update")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		path, err := newPlanner(cfg).ForceRefresh(ctx)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)

		return nil
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(updateCmd)
}
