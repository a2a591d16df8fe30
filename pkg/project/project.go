package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pipfetch/pipfetch/pkg/config"
)

const ConfigFile = config.LocalConfigFile

// DefaultDownloadDir is the directory suggested by init and the example
// command.
const DefaultDownloadDir = "packages/"

// GeneratedFiles are the per-run outputs that should typically be
// gitignored.
func GeneratedFiles(cfg *config.Config) []string {
	return []string{
		DefaultDownloadDir,
		cfg.ErrorsLog,
		cfg.LocalRequirements,
	}
}

// Init creates a pipfetch.toml in dir holding cfg.
// Returns an error if the file already exists.
func Init(dir string, cfg *config.Config) error {
	path := filepath.Join(dir, ConfigFile)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", ConfigFile)
	}

	return config.WriteLocalConfig(dir, cfg)
}

// InitGlobal creates ~/.pipfetch/config.toml with the built-in defaults if
// it does not already exist. It reports whether a file was written.
func InitGlobal() (bool, error) {
	dir, err := config.GlobalConfigDir()
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filepath.Join(dir, config.GlobalConfigFile)); err == nil {
		return false, nil
	}

	if err := config.WriteGlobalConfig(config.Default()); err != nil {
		return false, err
	}
	return true, nil
}

// EnsureGitignore ensures that each entry appears somewhere in the .gitignore
// file within dir. Only entries not already present are appended. Returns the
// list of entries that were actually added.
func EnsureGitignore(dir string, entries []string) ([]string, error) {
	path := filepath.Join(dir, ".gitignore")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(existing), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var toAdd []string
	for _, entry := range entries {
		if entry == "" || present[entry] {
			continue
		}
		present[entry] = true
		toAdd = append(toAdd, entry)
	}

	if len(toAdd) == 0 {
		return nil, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	// Ensure we start on a new line if file doesn't end with one.
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return nil, err
		}
	}

	for _, entry := range toAdd {
		if _, err := f.WriteString(entry + "\n"); err != nil {
			return nil, err
		}
	}

	return toAdd, nil
}
