package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okarpov/serverkeeper/internal/config"
	domain "github.com/okarpov/serverkeeper/internal/domain/release"
	repo "github.com/okarpov/serverkeeper/internal/repository/install"
)

var errResolverDown = errors.New("resolver down")

// fakeResolver returns a canned descriptor and counts invocations.
type fakeResolver struct {
	desc  *domain.Descriptor
	err   error
	calls int
}

func (f *fakeResolver) FetchLatest(context.Context) (*domain.Descriptor, error) {
	f.calls++

	return f.desc, f.err
}

// fakeStore is an in-memory Repository implementation.
type fakeStore struct {
	record   *domain.InstalledRecord
	getErr   error
	saved    *domain.InstalledRecord
	setCalls int
}

func (f *fakeStore) Get(context.Context) (*domain.InstalledRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}

	if f.record == nil {
		return nil, repo.ErrNotFound
	}

	return f.record.Clone(), nil
}

func (f *fakeStore) Set(_ context.Context, record *domain.InstalledRecord) error {
	f.setCalls++
	f.saved = record.Clone()

	return nil
}

// fakeDownload replays canned progress events and a fixed result.
type fakeDownload struct {
	events []domain.DownloadProgress
	path   string
	err    error
}

func (f *fakeDownload) Progress() <-chan domain.DownloadProgress {
	ch := make(chan domain.DownloadProgress, len(f.events))
	for _, event := range f.events {
		ch <- event
	}

	close(ch)

	return ch
}

func (f *fakeDownload) Result() (string, error) {
	return f.path, f.err
}

// fakeFetcher materializes a fake extraction on disk.
type fakeFetcher struct {
	serverName string
	err        error
	calls      int
	gotURL     string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, destDir string) (Download, error) {
	f.calls++
	f.gotURL = url

	if f.err != nil {
		return nil, f.err
	}

	installedDir := filepath.Join(destDir, "payload")
	if err := os.MkdirAll(installedDir, 0o755); err != nil {
		return nil, err
	}

	executable := filepath.Join(installedDir, f.serverName)
	if err := os.WriteFile(executable, []byte("#!/bin/sh\necho server\n"), 0o755); err != nil {
		return nil, err
	}

	return &fakeDownload{
		events: []domain.DownloadProgress{
			{BytesRead: 10, TotalBytes: 20},
			{BytesRead: 20, TotalBytes: 20},
		},
		path: installedDir,
	}, nil
}

// consentRecorder answers consent prompts and counts how often it is asked.
type consentRecorder struct {
	allow bool
	calls int
}

func (c *consentRecorder) fn(context.Context, *domain.Descriptor) (bool, error) {
	c.calls++

	return c.allow, nil
}

func testDescriptor() *domain.Descriptor {
	return &domain.Descriptor{
		Name:        "v1.2.3",
		ID:          42,
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Assets: []domain.Asset{
			{Name: "polyglot-ls-Windows-64bit.tar.gz", DownloadURL: "https://dl/windows"},
			{Name: "polyglot-ls-Linux-64bit.tar.gz", DownloadURL: "https://dl/linux"},
		},
	}
}

func newTestPlanner(
	t *testing.T,
	resolver *fakeResolver,
	store *fakeStore,
	fetch *fakeFetcher,
	consent ConsentFunc,
) *Planner {
	t.Helper()

	cfg := &config.Config{
		ServerOwner: "polyglot",
		ServerRepo:  "polyglot-ls",
		ServerName:  "polyglot-ls",
		DataDir:     t.TempDir(),
	}

	if fetch != nil {
		fetch.serverName = cfg.ServerName
	}

	p := NewPlanner(cfg, resolver, store, fetch, consent)
	p.goarch = "amd64"
	p.goos = "linux"

	return p
}

// TestResolvePath_Override returns the configured path with zero network calls.
func TestResolvePath_Override(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{err: errResolverDown}
	planner := newTestPlanner(t, resolver, &fakeStore{}, &fakeFetcher{}, nil)
	planner.cfg.ServerPath = "/usr/local/bin/server"

	path, err := planner.ResolvePath(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/usr/local/bin/server", path)
	require.Zero(t, resolver.calls)
}

// TestResolvePath_CacheHit returns the recorded path without fetching when the
// stored timestamp matches the latest release and the path still exists.
func TestResolvePath_CacheHit(t *testing.T) {
	t.Parallel()

	installed := filepath.Join(t.TempDir(), "polyglot-ls")
	require.NoError(t, os.WriteFile(installed, []byte("bin"), 0o755))

	store := &fakeStore{record: &domain.InstalledRecord{
		Timestamp: "2024-01-01T00:00:00Z",
		Path:      installed,
	}}
	fetch := &fakeFetcher{}
	consent := &consentRecorder{allow: true}

	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, fetch, consent.fn)

	path, err := planner.ResolvePath(context.Background())
	require.NoError(t, err)
	require.Equal(t, installed, path)
	require.Zero(t, fetch.calls)
	require.Zero(t, consent.calls)
	require.Zero(t, store.setCalls)
}

// TestResolvePath_StalePathTriggersDownload ignores a matching record whose
// path vanished from disk.
func TestResolvePath_StalePathTriggersDownload(t *testing.T) {
	t.Parallel()

	store := &fakeStore{record: &domain.InstalledRecord{
		Timestamp: "2024-01-01T00:00:00Z",
		Path:      filepath.Join(t.TempDir(), "gone"),
	}}
	fetch := &fakeFetcher{}
	consent := &consentRecorder{allow: true}

	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, fetch, consent.fn)

	path, err := planner.ResolvePath(context.Background())
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, 1, fetch.calls)
}

// TestResolvePath_Declined asks for consent exactly once and mutates nothing.
func TestResolvePath_Declined(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	fetch := &fakeFetcher{}
	consent := &consentRecorder{allow: false}

	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, fetch, consent.fn)

	_, err := planner.ResolvePath(context.Background())
	require.ErrorIs(t, err, ErrUserDeclined)
	require.Equal(t, 1, consent.calls)
	require.Zero(t, fetch.calls)
	require.Zero(t, store.setCalls)
}

// TestResolvePath_Installs runs the full download path: platform asset
// selection, extraction, promotion, and record update.
func TestResolvePath_Installs(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	fetch := &fakeFetcher{}
	consent := &consentRecorder{allow: true}

	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, fetch, consent.fn)

	path, err := planner.ResolvePath(context.Background())
	require.NoError(t, err)
	require.FileExists(t, path)

	// The Linux asset was selected, not the first-listed Windows one.
	require.Equal(t, "https://dl/linux", fetch.gotURL)

	// Record written only after a verified install.
	require.Equal(t, 1, store.setCalls)
	require.Equal(t, "2024-01-01T00:00:00Z", store.saved.Timestamp)
	require.Equal(t, "v1.2.3", store.saved.Version)
	require.Equal(t, path, store.saved.Path)
	require.NotEmpty(t, store.saved.Checksum)

	// The stable alias carries the same payload.
	alias := filepath.Join(planner.cfg.BinDir(), "polyglot-ls")
	require.FileExists(t, alias)

	want, err := os.ReadFile(path)
	require.NoError(t, err)

	got, err := os.ReadFile(alias)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestForceRefresh_SkipsCacheHit downloads even when the record is current.
func TestForceRefresh_SkipsCacheHit(t *testing.T) {
	t.Parallel()

	installed := filepath.Join(t.TempDir(), "polyglot-ls")
	require.NoError(t, os.WriteFile(installed, []byte("bin"), 0o755))

	store := &fakeStore{record: &domain.InstalledRecord{
		Timestamp: "2024-01-01T00:00:00Z",
		Path:      installed,
	}}
	fetch := &fakeFetcher{}
	consent := &consentRecorder{allow: true}

	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, fetch, consent.fn)

	path, err := planner.ForceRefresh(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, installed, path)
	require.Equal(t, 1, fetch.calls)
	require.Equal(t, 1, store.setCalls)
}

// TestResolvePath_RegressionGuard keeps the newer installed release when the
// endpoint reports an older one.
func TestResolvePath_RegressionGuard(t *testing.T) {
	t.Parallel()

	installed := filepath.Join(t.TempDir(), "polyglot-ls")
	require.NoError(t, os.WriteFile(installed, []byte("bin"), 0o755))

	store := &fakeStore{record: &domain.InstalledRecord{
		Timestamp: "2024-06-01T00:00:00Z",
		Path:      installed,
		Version:   "v2.0.0",
	}}
	fetch := &fakeFetcher{}
	consent := &consentRecorder{allow: true}

	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, fetch, consent.fn)

	path, err := planner.ResolvePath(context.Background())
	require.NoError(t, err)
	require.Equal(t, installed, path)
	require.Zero(t, fetch.calls)
	require.Zero(t, consent.calls)
}

// TestResolvePath_RegressionWithoutBinary fails when only an older release is
// offered and the recorded binary is gone.
func TestResolvePath_RegressionWithoutBinary(t *testing.T) {
	t.Parallel()

	store := &fakeStore{record: &domain.InstalledRecord{
		Timestamp: "2024-06-01T00:00:00Z",
		Path:      filepath.Join(t.TempDir(), "gone"),
		Version:   "v2.0.0",
	}}
	fetch := &fakeFetcher{}
	consent := &consentRecorder{allow: true}

	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, fetch, consent.fn)

	_, err := planner.ResolvePath(context.Background())
	require.ErrorIs(t, err, errReleaseRegression)
	require.Zero(t, fetch.calls)
}

// TestResolvePath_StoreFailure propagates record read errors.
func TestResolvePath_StoreFailure(t *testing.T) {
	t.Parallel()

	store := &fakeStore{getErr: errors.New("record unreadable")}
	planner := newTestPlanner(t, &fakeResolver{desc: testDescriptor()}, store, &fakeFetcher{}, nil)

	_, err := planner.ResolvePath(context.Background())
	require.ErrorContains(t, err, "record unreadable")
}

// TestResolvePath_ResolverFailure propagates resolution errors.
func TestResolvePath_ResolverFailure(t *testing.T) {
	t.Parallel()

	planner := newTestPlanner(t, &fakeResolver{err: errResolverDown}, &fakeStore{}, &fakeFetcher{}, nil)

	_, err := planner.ResolvePath(context.Background())
	require.ErrorIs(t, err, errResolverDown)
}
