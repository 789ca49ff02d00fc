package installer

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/okarpov/serverkeeper/internal/config"
	"github.com/okarpov/serverkeeper/internal/logger"

	// Ensure SHA512 is available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

const (
	// checksumFunction is used to verify the promoted executable.
	checksumFunction crypto.Hash = crypto.SHA512

	// executableFileMode is applied to the stable executable alias.
	executableFileMode os.FileMode = 0o755
)

// promote copies the freshly extracted executable to the stable alias under
// the bin directory, verifying it against a checksum computed from the
// extraction. The alias gives shells and debug configurations a fixed path
// while the versioned directory remains the source of truth.
// Returns the base64-encoded checksum for the install record.
func (p *Planner) promote(ctx context.Context, executablePath string) (string, error) {
	checksum, err := fileChecksum(executablePath)
	if err != nil {
		return "", err
	}

	if err = os.MkdirAll(p.cfg.BinDir(), config.DefaultDirPermissions); err != nil {
		return "", fmt.Errorf("prepare bin directory: %w", err)
	}

	aliasPath := filepath.Join(p.cfg.BinDir(), p.serverExecutable())

	if _, err = os.Stat(aliasPath); err != nil && os.IsNotExist(err) {
		aliasFile, createErr := os.Create(aliasPath)
		if createErr != nil {
			return "", fmt.Errorf("create executable alias: %w", createErr)
		}

		_ = aliasFile.Close()
	}

	source, err := os.Open(filepath.Clean(executablePath))
	if err != nil {
		return "", fmt.Errorf("open installed executable: %w", err)
	}

	defer func() {
		_ = source.Close()
	}()

	options := goupdate.Options{
		TargetPath: aliasPath,
		TargetMode: executableFileMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	}

	if err = goupdate.Apply(source, options); err != nil {
		return "", fmt.Errorf("promote executable: %w", err)
	}

	oldAlias := aliasPath + ".old"
	if _, err = os.Stat(oldAlias); err == nil {
		_ = os.Remove(oldAlias)
	}

	logger.InfoKV(ctx, "Executable promoted", "alias", aliasPath)

	return base64.StdEncoding.EncodeToString(checksum), nil
}

// fileChecksum returns checksum bytes for a file using checksumFunction.
func fileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read executable: %w", err)
	}

	if !checksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := checksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
