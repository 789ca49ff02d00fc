package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by all serverkeeper commands.
type Config struct {
	// ServerOwner is the GitHub account that publishes server releases.
	ServerOwner string `yaml:"server_owner"`
	// ServerRepo is the GitHub repository that publishes server releases.
	ServerRepo string `yaml:"server_repo"`
	// ServerName is the base name of the managed executable inside release archives.
	ServerName string `yaml:"server_name"`
	// ServerPath overrides automatic resolution with a fixed executable path.
	// Empty means "auto-resolve".
	ServerPath string `yaml:"server_path"`
	// DataDir is the root directory for installed releases and the install record.
	DataDir string `yaml:"data_dir"`
	// GitHubToken authenticates release API calls. Optional; unauthenticated
	// requests are subject to rate limits. Usually supplied via GITHUB_TOKEN.
	GitHubToken string `yaml:"-"`
	// Timeout is the duration for release metadata calls.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for serverkeeper settings.
	DefaultConfigFilename = "serverkeeper.yaml"

	// DefaultRecordFilename is the filename of the persisted install record
	// inside the data directory.
	DefaultRecordFilename = "installed.yaml"

	// DefaultTimeout is the default duration for release metadata calls.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config and record files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is the default permission for created data directories.
	DefaultDirPermissions = 0o755
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRepositoryRequired is returned when GitHub coordinates are missing
	// and no server path override compensates for them.
	errRepositoryRequired = errors.New("server owner and repository must be provided")
	// errServerNameRequired is returned when the managed executable name is missing.
	errServerNameRequired = errors.New("server name must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
// The GitHub token is taken from the GITHUB_TOKEN environment variable.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServerName == "" {
		return errServerNameRequired
	}

	// With a fixed server path there is nothing to resolve remotely,
	// so GitHub coordinates become optional.
	if cfg.ServerPath == "" && (cfg.ServerOwner == "" || cfg.ServerRepo == "") {
		return errRepositoryRequired
	}

	// Set default timeout if not specified.
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Default the data directory to the user cache location.
	if cfg.DataDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("resolve user cache dir: %w", err)
		}

		cfg.DataDir = filepath.Join(cacheDir, "serverkeeper")
	}

	return nil
}

// RecordPath returns the location of the persisted install record.
func (c *Config) RecordPath() string {
	return filepath.Join(c.DataDir, DefaultRecordFilename)
}

// ReleasesDir returns the directory holding extracted release payloads.
func (c *Config) ReleasesDir() string {
	return filepath.Join(c.DataDir, "releases")
}

// BinDir returns the directory holding the stable executable alias.
func (c *Config) BinDir() string {
	return filepath.Join(c.DataDir, "bin")
}
