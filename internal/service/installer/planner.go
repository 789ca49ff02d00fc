package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/mod/semver"

	"github.com/okarpov/serverkeeper/internal/config"
	domain "github.com/okarpov/serverkeeper/internal/domain/release"
	"github.com/okarpov/serverkeeper/internal/logger"
	"github.com/okarpov/serverkeeper/internal/platform"
	repo "github.com/okarpov/serverkeeper/internal/repository/install"
)

var (
	// ErrUserDeclined is returned when the operator refuses the download.
	// Terminal for the invocation; the caller decides whether to abort or degrade.
	ErrUserDeclined = errors.New("download declined by user")

	// errExecutableMissing is returned when the extracted release does not
	// contain the expected server executable.
	errExecutableMissing = errors.New("server executable not found in release payload")

	// errReleaseRegression is returned when the metadata endpoint reports a
	// release older than the installed one and no usable install remains.
	errReleaseRegression = errors.New("latest release is older than the installed one")
)

// ReleaseResolver fetches the latest published release descriptor.
type ReleaseResolver interface {
	FetchLatest(ctx context.Context) (*domain.Descriptor, error)
}

// Download is a running asset fetch with a progress sequence and a result.
type Download interface {
	Progress() <-chan domain.DownloadProgress
	Result() (string, error)
}

// ArtifactFetcher streams an asset into a destination directory.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, url, destDir string) (Download, error)
}

// ConsentFunc asks the operator whether the described release may be
// downloaded. Returning false without error means a decline.
type ConsentFunc func(ctx context.Context, desc *domain.Descriptor) (bool, error)

// Planner orchestrates platform matching, release resolution, the install
// record, and asset fetching to produce a validated local executable path.
type Planner struct {
	// cfg supplies the path override, storage locations, and server name.
	cfg *config.Config
	// resolver queries the release metadata endpoint.
	resolver ReleaseResolver
	// store persists the single install record.
	store repo.Repository
	// fetcher downloads and extracts release assets.
	fetcher ArtifactFetcher
	// consent asks the operator before any download. Nil declines.
	consent ConsentFunc
	// goarch and goos identify the platform; fixed in tests.
	goarch string
	goos   string
}

// NewPlanner wires the planner's collaborators together.
func NewPlanner(
	cfg *config.Config,
	resolver ReleaseResolver,
	store repo.Repository,
	fetcher ArtifactFetcher,
	consent ConsentFunc,
) *Planner {
	return &Planner{
		cfg:      cfg,
		resolver: resolver,
		store:    store,
		fetcher:  fetcher,
		consent:  consent,
		goarch:   runtime.GOARCH,
		goos:     runtime.GOOS,
	}
}

// ResolvePath produces the path of the server executable to launch.
//
// Policy, in order: a configured override is returned unconditionally with
// no network access; a stored record matching the latest release's publish
// timestamp is returned when its path still exists; otherwise the operator
// is asked for consent and the release is downloaded and installed.
func (p *Planner) ResolvePath(ctx context.Context) (string, error) {
	if p.cfg.ServerPath != "" {
		logger.InfoKV(ctx, "Using configured server path", "path", p.cfg.ServerPath)

		return p.cfg.ServerPath, nil
	}

	return p.resolve(ctx, false)
}

// ForceRefresh downloads and installs the latest release unconditionally,
// skipping the cache-hit check. The prior version stays on disk until the
// new one is confirmed installed.
func (p *Planner) ForceRefresh(ctx context.Context) (string, error) {
	return p.resolve(ctx, true)
}

// resolve runs the shared resolution sequence. Steps execute in strict
// order; no two fetches from the same invocation interleave.
func (p *Planner) resolve(ctx context.Context, force bool) (string, error) {
	desc, err := p.resolver.FetchLatest(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve latest release: %w", err)
	}

	record, err := p.store.Get(ctx)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("read install record: %w", err)
	}

	publishedAt := desc.PublishedAt.UTC().Format(time.RFC3339)

	if !force {
		if record != nil && record.Timestamp == publishedAt && pathExists(record.Path) {
			logger.InfoKV(ctx, "Installed server is current", "path", record.Path, "release", desc.Name)

			return record.Path, nil
		}

		if path, keep, guardErr := p.guardRegression(ctx, record, desc); guardErr != nil {
			return "", guardErr
		} else if keep {
			return path, nil
		}
	}

	allowed, err := p.requestConsent(ctx, desc)
	if err != nil {
		return "", err
	}

	if !allowed {
		return "", fmt.Errorf("release %s: %w", desc.Name, ErrUserDeclined)
	}

	installedPath, err := p.install(ctx, desc)
	if err != nil {
		return "", err
	}

	return installedPath, nil
}

// guardRegression refuses to replace the installed release with a strictly
// older one. Returns the recorded path and true when the install is kept, or
// errReleaseRegression when the recorded binary is gone and only an older
// release is offered.
func (p *Planner) guardRegression(
	ctx context.Context,
	record *domain.InstalledRecord,
	desc *domain.Descriptor,
) (string, bool, error) {
	if record == nil || record.Version == "" {
		return "", false, nil
	}

	if !semver.IsValid(record.Version) || !semver.IsValid(desc.Name) {
		return "", false, nil
	}

	if semver.Compare(desc.Name, record.Version) >= 0 {
		return "", false, nil
	}

	logger.WarnKV(ctx, "Latest release is older than the installed one, keeping current install",
		"installed", record.Version, "latest", desc.Name)

	if pathExists(record.Path) {
		return record.Path, true, nil
	}

	return "", false, fmt.Errorf("installed %s, latest %s: %w", record.Version, desc.Name, errReleaseRegression)
}

// requestConsent asks the operator before any download attempt.
func (p *Planner) requestConsent(ctx context.Context, desc *domain.Descriptor) (bool, error) {
	if p.consent == nil {
		return false, nil
	}

	allowed, err := p.consent(ctx, desc)
	if err != nil {
		return false, fmt.Errorf("request download consent: %w", err)
	}

	return allowed, nil
}

// install selects the platform asset, streams it to disk, promotes the
// executable, and records the install. The record is written only after the
// extraction completed and the executable was verified present.
func (p *Planner) install(ctx context.Context, desc *domain.Descriptor) (string, error) {
	tag, err := platform.Match(p.goarch, p.goos)
	if err != nil {
		return "", err
	}

	asset, err := platform.SelectReleaseAsset(desc, tag)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloading server release",
		"release", desc.Name, "asset", asset.Name)

	destDir := filepath.Join(p.cfg.ReleasesDir(), strconv.FormatInt(desc.ID, 10))

	download, err := p.fetcher.Fetch(ctx, asset.DownloadURL, destDir)
	if err != nil {
		return "", fmt.Errorf("download asset %s: %w", asset.Name, err)
	}

	p.reportProgress(ctx, download)

	installedDir, err := download.Result()
	if err != nil {
		return "", fmt.Errorf("download asset %s: %w", asset.Name, err)
	}

	executablePath, err := findExecutable(installedDir, p.serverExecutable())
	if err != nil {
		return "", err
	}

	checksum, err := p.promote(ctx, executablePath)
	if err != nil {
		return "", err
	}

	record := &domain.InstalledRecord{
		Timestamp: desc.PublishedAt.UTC().Format(time.RFC3339),
		Path:      executablePath,
		Version:   desc.Name,
		Checksum:  checksum,
	}

	if err = p.store.Set(ctx, record); err != nil {
		return "", fmt.Errorf("record install: %w", err)
	}

	logger.InfoKV(ctx, "Server installed", "release", desc.Name, "path", executablePath)

	return executablePath, nil
}

// reportProgress drains the download's event sequence into the log.
// Percentages are only computed when the payload size is known.
func (p *Planner) reportProgress(ctx context.Context, download Download) {
	for event := range download.Progress() {
		if percent, known := event.Percent(); known {
			logger.DebugKV(ctx, "Downloading",
				"bytes", event.BytesRead, "total", event.TotalBytes,
				"percent", fmt.Sprintf("%.1f", percent))

			continue
		}

		logger.DebugKV(ctx, "Downloading", "bytes", event.BytesRead)
	}
}

// serverExecutable returns the platform-specific executable filename.
func (p *Planner) serverExecutable() string {
	if p.goos == "windows" {
		return p.cfg.ServerName + ".exe"
	}

	return p.cfg.ServerName
}

// findExecutable locates the named executable within the extracted payload.
func findExecutable(root, name string) (string, error) {
	var found string

	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.Type().IsRegular() && entry.Name() == name {
			found = path

			return filepath.SkipAll
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan release payload: %w", err)
	}

	if found == "" {
		return "", fmt.Errorf("%s in %s: %w", name, root, errExecutableMissing)
	}

	return found, nil
}

// pathExists reports whether the path exists on disk.
func pathExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
