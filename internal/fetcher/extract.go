package fetcher

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/okarpov/serverkeeper/internal/config"
)

// errTarPathEscape is returned when an archive entry tries to escape the
// extraction root.
var errTarPathEscape = errors.New("archive entry escapes extraction root")

// extractTar unpacks a tar stream into dest. Read errors on the stream are
// decompression failures; write errors are filesystem failures.
func extractTar(r io.Reader, dest string) error {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return &DecompressionError{Err: err}
		}

		relPath, skip := normalizeEntryPath(header.Name)
		if skip {
			continue
		}

		target := filepath.Join(dest, relPath)
		if err = ensureWithinRoot(dest, target); err != nil {
			return &DecompressionError{Err: err}
		}

		if err = writeEntry(tr, header, target); err != nil {
			return err
		}
	}
}

// writeEntry materializes a single archive entry on disk.
func writeEntry(tr *tar.Reader, header *tar.Header, target string) error {
	switch header.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
			return &FileSystemError{Op: "create directory", Err: err}
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), config.DefaultDirPermissions); err != nil {
			return &FileSystemError{Op: "create parent directory", Err: err}
		}

		file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
		if err != nil {
			return &FileSystemError{Op: "create file", Err: err}
		}

		if _, err = io.Copy(file, tr); err != nil {
			_ = file.Close()

			return &DecompressionError{Err: err}
		}

		if err = file.Close(); err != nil {
			return &FileSystemError{Op: "close file", Err: err}
		}
	case tar.TypeSymlink:
		if err := os.Symlink(header.Linkname, target); err != nil {
			return &FileSystemError{Op: "create symlink", Err: err}
		}
	default:
		return &DecompressionError{Err: fmt.Errorf("unsupported archive entry %q", header.Name)}
	}

	return nil
}

// normalizeEntryPath cleans an archive entry name and reports whether the
// entry should be skipped entirely.
func normalizeEntryPath(name string) (string, bool) {
	clean := path.Clean(name)
	clean = strings.TrimPrefix(clean, "./")

	if clean == "." || clean == "" {
		return "", true
	}

	return clean, false
}

// ensureWithinRoot rejects targets outside the extraction root.
func ensureWithinRoot(root, target string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return err
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", errTarPathEscape, target)
	}

	return nil
}
