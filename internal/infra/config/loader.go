// Package config provides configuration loading functionality.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/runoshun/issue-crew/internal/domain"
)

// Environment variables that override file settings.
const (
	EnvAddr        = "ISSUE_CREW_ADDR"
	EnvStoreDriver = "ISSUE_CREW_STORE_DRIVER"
	EnvStorePath   = "ISSUE_CREW_STORE_PATH"
	EnvStoreDSN    = "ISSUE_CREW_STORE_DSN"
	EnvLogLevel    = "ISSUE_CREW_LOG_LEVEL"
)

var envOverrides = []struct {
	set  func(*domain.Config, string)
	name string
}{
	{name: EnvAddr, set: func(c *domain.Config, v string) { c.Server.Addr = v }},
	{name: EnvStoreDriver, set: func(c *domain.Config, v string) { c.Store.Driver = v }},
	{name: EnvStorePath, set: func(c *domain.Config, v string) { c.Store.Path = v }},
	{name: EnvStoreDSN, set: func(c *domain.Config, v string) { c.Store.DSN = v }},
	{name: EnvLogLevel, set: func(c *domain.Config, v string) { c.Log.Level = v }},
}

// Loader loads configuration from TOML files and the environment.
type Loader struct {
	localPath     string // Path to the local config file
	globalConfDir string // Path to global config directory (e.g., ~/.config/issue-crew)
	requireLocal  bool   // Set when the local path was given explicitly
}

// NewLoader creates a new Loader. An empty localPath means ./issue-crew.toml,
// which may be absent; an explicit path must exist.
func NewLoader(localPath string) *Loader {
	return NewLoaderWithGlobalDir(localPath, DefaultGlobalConfigDir())
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(localPath, globalConfDir string) *Loader {
	l := &Loader{
		localPath:     localPath,
		globalConfDir: globalConfDir,
		requireLocal:  localPath != "",
	}
	if l.localPath == "" {
		l.localPath = domain.LocalConfigFileName
	}
	return l
}

// DefaultGlobalConfigDir returns the default global config directory.
func DefaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Dir(domain.GlobalConfigPath(configHome))
}

// Load returns the effective configuration.
// Later sources take precedence: defaults, global file, local file, environment.
func (l *Loader) Load() (*domain.Config, error) {
	cfg := domain.NewDefaultConfig()

	if l.globalConfDir != "" {
		if err := applyFile(cfg, filepath.Join(l.globalConfDir, domain.ConfigFileName), false); err != nil {
			return nil, err
		}
	}
	if err := applyFile(cfg, l.localPath, l.requireLocal); err != nil {
		return nil, err
	}
	applyEnv(cfg, os.Getenv)

	return cfg, nil
}

// applyFile decodes the file at path over cfg. Only keys present in the file
// change cfg. Unknown keys are recorded as warnings.
func applyFile(cfg *domain.Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	warnings, err := decodeInto(cfg, data)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidConfig, path, err)
	}
	for _, w := range warnings {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("%s: %s", path, w))
	}
	return nil
}

func decodeInto(cfg *domain.Config, data []byte) ([]string, error) {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	err := dec.Decode(cfg)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		warnings := make([]string, 0, len(strict.Errors))
		for _, e := range strict.Errors {
			warnings = append(warnings, "unknown key: "+strings.Join(e.Key(), "."))
		}
		sort.Strings(warnings)
		return warnings, nil
	}
	return nil, err
}

func applyEnv(cfg *domain.Config, getenv func(string) string) {
	for _, o := range envOverrides {
		if v := getenv(o.name); v != "" {
			o.set(cfg, v)
		}
	}
}
