package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/runoshun/issue-crew/internal/domain"
)

// ConfigInfo describes one config file on disk.
type ConfigInfo struct {
	Path    string
	Content string
	Exists  bool
}

// Manager manages configuration files.
type Manager struct {
	localPath     string // Path to the local config file
	globalConfDir string // Path to global config directory (e.g., ~/.config/issue-crew)
}

// NewManager creates a new Manager. An empty localPath means ./issue-crew.toml.
func NewManager(localPath string) *Manager {
	return NewManagerWithGlobalDir(localPath, DefaultGlobalConfigDir())
}

// NewManagerWithGlobalDir creates a new Manager with a custom global config directory.
// This is useful for testing.
func NewManagerWithGlobalDir(localPath, globalConfDir string) *Manager {
	if localPath == "" {
		localPath = domain.LocalConfigFileName
	}
	return &Manager{
		localPath:     localPath,
		globalConfDir: globalConfDir,
	}
}

// LocalConfigInfo returns information about the local config file.
func (m *Manager) LocalConfigInfo() ConfigInfo {
	return getConfigInfo(m.localPath)
}

// GlobalConfigInfo returns information about the global config file.
func (m *Manager) GlobalConfigInfo() ConfigInfo {
	if m.globalConfDir == "" {
		return ConfigInfo{}
	}
	return getConfigInfo(filepath.Join(m.globalConfDir, domain.ConfigFileName))
}

func getConfigInfo(path string) ConfigInfo {
	content, err := os.ReadFile(path)
	if err != nil {
		return ConfigInfo{Path: path}
	}
	return ConfigInfo{
		Path:    path,
		Content: string(content),
		Exists:  true,
	}
}

// InitLocalConfig writes the default template to the local config path and returns it.
func (m *Manager) InitLocalConfig() (string, error) {
	if dir := filepath.Dir(m.localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
	}
	return m.localPath, initConfig(m.localPath)
}

// InitGlobalConfig writes the default template to the global config path and returns it.
func (m *Manager) InitGlobalConfig() (string, error) {
	if m.globalConfDir == "" {
		return "", errors.New("global config directory not available")
	}
	if err := os.MkdirAll(m.globalConfDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(m.globalConfDir, domain.ConfigFileName)
	return path, initConfig(path)
}

// initConfig creates path with the default template. Existing files are left alone.
func initConfig(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", domain.ErrConfigExists, path)
		}
		return fmt.Errorf("create config: %w", err)
	}
	if _, err := f.WriteString(domain.ConfigTemplate()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}

// redacted replaces secret values in rendered output.
const redacted = "<redacted>"

// Render encodes cfg as TOML. Secrets are replaced by a placeholder.
func Render(cfg *domain.Config) (string, error) {
	shown := *cfg
	for _, secret := range []*string{
		&shown.Store.EncryptionKey,
		&shown.Store.S3.SecretAccessKey,
		&shown.Store.S3.SessionToken,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}

	data, err := toml.Marshal(&shown)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}
