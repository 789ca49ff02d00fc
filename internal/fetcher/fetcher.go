package fetcher

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/okarpov/serverkeeper/internal/config"
	domain "github.com/okarpov/serverkeeper/internal/domain/release"
	"github.com/okarpov/serverkeeper/internal/logger"
)

// progressBuffer is the capacity of the progress channel. The publisher keeps
// only the latest snapshot, so a slow consumer never stalls the download.
const progressBuffer = 1

// Fetcher streams compressed release assets to disk.
type Fetcher struct {
	// client performs asset downloads. No client timeout is set because
	// asset sizes are unbounded; cancellation rides the request context.
	client *http.Client
}

// NewFetcher creates a fetcher with a default HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{},
	}
}

// Download is a running fetch. Its progress sequence is lazy, finite, and
// non-restartable: the channel closes once the stream ends, and the final
// snapshot carries the total number of payload bytes received.
type Download struct {
	// progress carries monotonically increasing progress snapshots.
	progress chan domain.DownloadProgress
	// done is closed once the stream has fully finished.
	done chan struct{}
	// path is the extracted directory, valid only after done is closed.
	path string
	// err is the terminal error, valid only after done is closed.
	err error
}

// Progress returns the progress event sequence for this download.
func (d *Download) Progress() <-chan domain.DownloadProgress {
	return d.progress
}

// Result blocks until the download finishes and returns the extracted
// directory path. The directory must not be treated as a valid install
// before Result returns without error.
func (d *Download) Result() (string, error) {
	<-d.done

	return d.path, d.err
}

// publish replaces any unconsumed snapshot with the latest one.
func (d *Download) publish(p domain.DownloadProgress) {
	for {
		select {
		case d.progress <- p:
			return
		default:
			// Drop the stale snapshot, then retry.
			select {
			case <-d.progress:
			default:
			}
		}
	}
}

// finish records the outcome and closes the event sequence.
func (d *Download) finish(path string, err error) {
	d.path = path
	d.err = err

	close(d.progress)
	close(d.done)
}

// Fetch streams the gzip-compressed archive at url through decompression and
// extraction into a fresh directory under destDir, named after the asset.
// The payload is never buffered in memory.
//
// The returned error covers failures before streaming begins: transport
// errors as *domain.NetworkError and bad responses as *domain.HTTPStatusError.
// Mid-stream failures surface from Result as *DecompressionError or
// *FileSystemError; a failed fetch leaves no directory behind.
func (f *Fetcher) Fetch(ctx context.Context, assetURL, destDir string) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	response, err := f.client.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()

		return nil, &domain.HTTPStatusError{Code: response.StatusCode, URL: assetURL}
	}

	total := response.ContentLength
	if total < 0 {
		total = domain.TotalUnknown
	}

	download := &Download{
		progress: make(chan domain.DownloadProgress, progressBuffer),
		done:     make(chan struct{}),
	}

	finalDir := filepath.Join(destDir, assetBaseName(assetURL))

	go func() {
		defer func() {
			_ = response.Body.Close()
		}()

		installedPath, streamErr := f.stream(ctx, response.Body, total, destDir, finalDir, download)
		if streamErr != nil {
			logger.ErrorKV(ctx, "Download failed", "url", assetURL, "error", streamErr)
		}

		download.finish(installedPath, streamErr)
	}()

	return download, nil
}

// stream runs the body through counting, decompression, and extraction.
func (f *Fetcher) stream(
	ctx context.Context,
	body io.Reader,
	total int64,
	destDir, finalDir string,
	download *Download,
) (string, error) {
	if err := os.MkdirAll(destDir, config.DefaultDirPermissions); err != nil {
		return "", &FileSystemError{Op: "prepare destination", Err: err}
	}

	// Extraction targets a staging directory first so a half-written attempt
	// is never mistaken for a valid install on a later run.
	stagingDir, err := os.MkdirTemp(destDir, ".staging-")
	if err != nil {
		return "", &FileSystemError{Op: "create staging directory", Err: err}
	}

	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	counting := &countingReader{
		reader: body,
		total:  total,
		emit:   download.publish,
	}

	decompressed, err := gzip.NewReader(counting)
	if err != nil {
		return "", &DecompressionError{Err: err}
	}

	if err = extractTar(decompressed, stagingDir); err != nil {
		return "", err
	}

	if err = decompressed.Close(); err != nil {
		return "", &DecompressionError{Err: err}
	}

	// Drain any trailing bytes so the final progress snapshot reflects the
	// full payload size.
	if _, err = io.Copy(io.Discard, counting); err != nil {
		return "", &domain.NetworkError{Err: err}
	}

	if err = os.RemoveAll(finalDir); err != nil {
		return "", &FileSystemError{Op: "clear previous extraction", Err: err}
	}

	if err = os.Rename(stagingDir, finalDir); err != nil {
		return "", &FileSystemError{Op: "move extraction into place", Err: err}
	}

	logger.InfoKV(ctx, "Asset extracted", "path", finalDir, "bytes", counting.read)

	return finalDir, nil
}

// countingReader counts payload bytes and emits a progress snapshot per chunk.
type countingReader struct {
	// reader is the wrapped response body.
	reader io.Reader
	// read is the number of bytes received so far.
	read int64
	// total is the advertised payload size or domain.TotalUnknown.
	total int64
	// emit publishes a progress snapshot.
	emit func(domain.DownloadProgress)
}

// Read implements io.Reader.
func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	if n > 0 {
		c.read += int64(n)
		c.emit(domain.DownloadProgress{
			BytesRead:  c.read,
			TotalBytes: c.total,
		})
	}

	return n, err
}

// assetBaseName derives the extraction directory name from the asset URL,
// stripping the archive extension.
func assetBaseName(assetURL string) string {
	base := assetURL
	if parsed, err := url.Parse(assetURL); err == nil && parsed.Path != "" {
		base = parsed.Path
	}

	base = path.Base(base)

	for _, suffix := range []string{".tar.gz", ".tgz", ".gz"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}

	return base
}
