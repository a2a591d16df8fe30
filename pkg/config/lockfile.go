package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const lockFileVersion = 1

// LockFile records the artifacts a download run left in the destination
// directory so the offline side can verify what it received.
type LockFile struct {
	Version     int                 `toml:"version"`
	RunID       string              `toml:"run_id"`
	GeneratedAt time.Time           `toml:"generated_at"`
	TagsFile    string              `toml:"tags_file,omitempty"`
	Tags        []string            `toml:"tags,omitempty"`
	Artifacts   []ArtifactLockEntry `toml:"artifacts"`
}

type ArtifactLockEntry struct {
	File      string `toml:"file"`
	Kind      string `toml:"kind"`      // "wheel" or "sdist"
	Integrity string `toml:"integrity"` // sha256:<hex>
}

// NewLockFile returns an empty lock file for runID.
func NewLockFile(runID string, at time.Time) *LockFile {
	return &LockFile{Version: lockFileVersion, RunID: runID, GeneratedAt: at.UTC()}
}

// LoadLockFile reads path. A missing file yields an empty lock file.
func LoadLockFile(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &LockFile{Version: lockFileVersion}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lf := &LockFile{}
	if err := toml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return lf, nil
}

// SaveLockFile writes lf to path.
func SaveLockFile(path string, lf *LockFile) error {
	data, err := toml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lockfile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
