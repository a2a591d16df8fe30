package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// LocalConfigFile is the project-local config filename.
	LocalConfigFile = "pipfetch.toml"
	// GlobalConfigFile lives under GlobalConfigDir.
	GlobalConfigFile = "config.toml"
	globalDirName    = ".pipfetch"
	envPrefix        = "PIPFETCH"
)

// Defaults mirrored by Default and registered with viper.
const (
	DefaultTagsFile          = "system.tags"
	DefaultErrorsLog         = "download_errors.log"
	DefaultLocalRequirements = "local_requirements.txt"
	DefaultLockFile          = "pipfetch.lock"
)

// DefaultPackages are downloaded alongside every requirements file so the
// offline target can build source distributions.
var DefaultPackages = []string{"Cython", "wheel", "setuptools"}

// DefaultManagers is the package manager detection order.
var DefaultManagers = []string{"pip", "pip3"}

// Config is resolved with Viper precedence:
// CLI flags > PIPFETCH_* env > pipfetch.toml (project-local) > ~/.pipfetch/config.toml (global) > defaults.
type Config struct {
	Managers          []string `toml:"managers,omitempty" mapstructure:"managers"`
	DefaultPackages   []string `toml:"default_packages" mapstructure:"default_packages"`
	TagsFile          string   `toml:"tags_file,omitempty" mapstructure:"tags_file"`
	ErrorsLog         string   `toml:"errors_log,omitempty" mapstructure:"errors_log"`
	LocalRequirements string   `toml:"local_requirements,omitempty" mapstructure:"local_requirements"`
	LockFile          string   `toml:"lock_file,omitempty" mapstructure:"lock_file"`
	// NoBinaryFallback adds --no-binary=:all: to the source retry.
	NoBinaryFallback bool `toml:"no_binary_fallback,omitempty" mapstructure:"no_binary_fallback"`
}

// Overrides are values supplied on the command line.
type Overrides struct {
	Managers   []string
	ConfigFile string // replaces the project-local layer when set
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Managers:          append([]string(nil), DefaultManagers...),
		DefaultPackages:   append([]string(nil), DefaultPackages...),
		TagsFile:          DefaultTagsFile,
		ErrorsLog:         DefaultErrorsLog,
		LocalRequirements: DefaultLocalRequirements,
		LockFile:          DefaultLockFile,
	}
}

// Load resolves configuration from the global file, the project-local
// file in the working directory, the environment, and overrides.
func Load(o Overrides) (*Config, error) {
	globalPath := ""
	if dir, err := globalConfigDir(); err == nil {
		globalPath = filepath.Join(dir, GlobalConfigFile)
	}

	localPath := LocalConfigFile
	requireLocal := false
	if o.ConfigFile != "" {
		localPath = o.ConfigFile
		requireLocal = true
	}

	return load(o, globalPath, localPath, requireLocal)
}

// load is the internal implementation that accepts explicit paths,
// making it testable without touching the real home directory.
func load(o Overrides, globalPath, localPath string, requireLocal bool) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	def := Default()
	v.SetDefault("managers", def.Managers)
	v.SetDefault("default_packages", def.DefaultPackages)
	v.SetDefault("tags_file", def.TagsFile)
	v.SetDefault("errors_log", def.ErrorsLog)
	v.SetDefault("local_requirements", def.LocalRequirements)
	v.SetDefault("lock_file", def.LockFile)
	v.SetDefault("no_binary_fallback", def.NoBinaryFallback)

	// Lowest priority: global config; ignore if missing.
	if globalPath != "" {
		v.SetConfigFile(globalPath)
		_ = v.ReadInConfig()
	}

	// Higher priority: project-local config
	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	} else if requireLocal {
		return nil, fmt.Errorf("reading %s: %w", localPath, err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Highest priority: CLI flags
	if len(o.Managers) > 0 {
		v.Set("managers", o.Managers)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// globalConfigDir returns the path to ~/.pipfetch without creating it.
func globalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, globalDirName), nil
}

// GlobalConfigDir returns the path to ~/.pipfetch, creating it if necessary.
func GlobalConfigDir() (string, error) {
	dir, err := globalConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// WriteLocalConfig persists cfg to pipfetch.toml in dir.
func WriteLocalConfig(dir string, cfg *Config) error {
	return writeConfig(filepath.Join(dir, LocalConfigFile), cfg)
}

// WriteGlobalConfig persists cfg to ~/.pipfetch/config.toml.
func WriteGlobalConfig(cfg *Config) error {
	dir, err := GlobalConfigDir()
	if err != nil {
		return err
	}
	return writeConfig(filepath.Join(dir, GlobalConfigFile), cfg)
}

func writeConfig(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
