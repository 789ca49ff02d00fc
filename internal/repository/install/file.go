package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/okarpov/serverkeeper/internal/config"
	domain "github.com/okarpov/serverkeeper/internal/domain/release"
)

// Repository defines persistence operations for the install record.
type Repository interface {
	Get(ctx context.Context) (*domain.InstalledRecord, error)
	Set(ctx context.Context, record *domain.InstalledRecord) error
}

// ErrNotFound is returned when no release has been installed yet.
var ErrNotFound = errors.New("install record not found")

// errRecordIsNotSet is returned when a nil record is passed to Set.
var errRecordIsNotSet = errors.New("install record is not set")

// FileRepository persists the install record to a YAML file on disk,
// scoped per installation so it survives restarts of the host process.
type FileRepository struct {
	// path is the filesystem location of the YAML record file.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Get reads the record from disk.
func (r *FileRepository) Get(_ context.Context) (*domain.InstalledRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read install record: %w", err)
	}

	var record domain.InstalledRecord
	if err = yaml.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode install record: %w", err)
	}

	return &record, nil
}

// Set overwrites the record on disk. Callers must invoke it only after a
// complete, verified extraction — never before — so a broken install is
// never claimed as current.
func (r *FileRepository) Set(_ context.Context, record *domain.InstalledRecord) error {
	if record == nil {
		return errRecordIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode install record: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("prepare record directory: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write install record: %w", err)
	}

	return nil
}
