package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okarpov/serverkeeper/internal/config"
	domain "github.com/okarpov/serverkeeper/internal/domain/release"
	"github.com/okarpov/serverkeeper/internal/fetcher"
	"github.com/okarpov/serverkeeper/internal/logger"
	"github.com/okarpov/serverkeeper/internal/release"
	repo "github.com/okarpov/serverkeeper/internal/repository/install"
	"github.com/okarpov/serverkeeper/internal/service/installer"
	"github.com/okarpov/serverkeeper/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// logLevel overrides the default logging level.
	logLevel string
	// assumeYes approves downloads without prompting.
	assumeYes bool

	// rootCmd is the base command for managing the server executable.
	rootCmd = &cobra.Command{
		Use:   "serverkeeper",
		Short: "Install and supervise the language server executable",
		Long: `serverkeeper keeps the right server binary for this platform installed
and up to date, and runs exactly one instance of it at a time.

Releases are resolved from the configured GitHub repository; a configured
server path override skips resolution entirely.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Optional .env so GITHUB_TOKEN can live next to the config.
			_ = godotenv.Load()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
	}
)

// Execute runs the serverkeeper CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logging level")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false,
		"approve downloads without prompting")
}

// newPlanner wires the resolver, record store, and fetcher into a planner.
func newPlanner(cfg *config.Config) *installer.Planner {
	return installer.NewPlanner(
		cfg,
		release.NewResolver(cfg.GitHubToken, cfg.ServerOwner, cfg.ServerRepo, cfg.Timeout),
		repo.NewFileRepository(cfg.RecordPath()),
		fetchAdapter{fetcher: fetcher.NewFetcher()},
		consentPrompt,
	)
}

// fetchAdapter narrows the concrete fetcher to the planner's interface.
type fetchAdapter struct {
	fetcher *fetcher.Fetcher
}

// Fetch implements installer.ArtifactFetcher.
func (a fetchAdapter) Fetch(ctx context.Context, url, destDir string) (installer.Download, error) {
	download, err := a.fetcher.Fetch(ctx, url, destDir)
	if err != nil {
		return nil, err
	}

	return download, nil
}

// consentPrompt asks the operator on the terminal before a download, unless
// --yes was passed.
func consentPrompt(ctx context.Context, desc *domain.Descriptor) (bool, error) {
	if assumeYes {
		logger.InfoKV(ctx, "Download approved by flag", "release", desc.Name)

		return true, nil
	}

	fmt.Printf("Download server release %s published %s? [y/N]: ",
		desc.Name, desc.PublishedAt.Format("2006-01-02"))

	reader := bufio.NewReader(os.Stdin)

	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read consent answer: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))

	return answer == "y" || answer == "yes", nil
}
