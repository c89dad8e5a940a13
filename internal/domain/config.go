package domain

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

//go:embed config_template.toml
var configTemplateContent string

// ConfigTemplate returns the commented default configuration written by `config init`.
func ConfigTemplate() string {
	return configTemplateContent
}

// Config represents the application configuration.
// Fields are ordered to minimize memory padding.
type Config struct {
	Warnings []string      `toml:"-"`
	Server   ServerConfig  `toml:"server"`
	Store    StoreConfig   `toml:"store"`
	Log      LogConfig     `toml:"log"`
	Metrics  MetricsConfig `toml:"metrics"`
}

// ServerConfig holds HTTP server settings from [server] section.
type ServerConfig struct {
	Addr            string   `toml:"addr,omitempty"`             // Listen address (default ":8000")
	APIPrefix       string   `toml:"api_prefix,omitempty"`       // Path prefix for API routes (default "/api/v1")
	StaticDir       string   `toml:"static_dir,omitempty"`       // Directory served at / and /static (optional)
	CORSOrigins     []string `toml:"cors_origins,omitempty"`     // Allowed CORS origins (default ["*"])
	ShutdownTimeout Duration `toml:"shutdown_timeout,omitempty"` // Graceful shutdown timeout (default 10s)
}

// StoreConfig holds persistence settings from [store] section.
type StoreConfig struct {
	Driver        string   `toml:"driver,omitempty"`         // json (default), yaml, git, sqlite, postgres, s3, memory
	Path          string   `toml:"path,omitempty"`           // Document path for json/yaml, database file for sqlite
	Format        string   `toml:"format,omitempty"`         // Document format for git and s3: json (default) or yaml
	Repo          string   `toml:"repo,omitempty"`           // Repository path for git driver (default ".")
	Namespace     string   `toml:"namespace,omitempty"`      // Ref namespace for git driver, row key for sql drivers
	DSN           string   `toml:"dsn,omitempty"`            // Connection string for postgres driver
	EncryptionKey string   `toml:"encryption_key,omitempty"` // Optional AES-256 key (64 hex characters)
	S3            S3Config `toml:"s3"`
}

// S3Config holds settings for the s3 driver from [store.s3] section.
type S3Config struct {
	Bucket    string `toml:"bucket,omitempty"`
	Key       string `toml:"key,omitempty"`      // Object key (default "issues.json")
	Region    string `toml:"region,omitempty"`   // Default us-east-1
	Endpoint  string `toml:"endpoint,omitempty"` // Custom endpoint, e.g. MinIO
	PathStyle bool   `toml:"path_style,omitempty"`

	// Static credentials. When unset the default AWS credential chain is used.
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	SessionToken    string `toml:"session_token,omitempty"`
}

// LogConfig holds logging settings from [log] section.
type LogConfig struct {
	Level  string `toml:"level,omitempty"`  // debug, info, warn, error
	Format string `toml:"format,omitempty"` // text or json
	File   string `toml:"file,omitempty"`   // Log file path (empty = stderr)
}

// MetricsConfig holds Prometheus settings from [metrics] section.
type MetricsConfig struct {
	Path    string `toml:"path,omitempty"` // Exposition path (default "/metrics")
	Enabled bool   `toml:"enabled"`
}

// Duration is a time.Duration that encodes as a TOML string such as "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Store drivers.
const (
	DriverJSON     = "json"
	DriverYAML     = "yaml"
	DriverGit      = "git"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
	DriverMemory   = "memory"
)

// Document formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Default configuration values.
const (
	DefaultAddr            = ":8000"
	DefaultAPIPrefix       = "/api/v1"
	DefaultStorePath       = "data/issues.json"
	DefaultNamespace       = "issues"
	DefaultS3Key           = "issues.json"
	DefaultS3Region        = "us-east-1"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultMetricsPath     = "/metrics"
	DefaultShutdownTimeout = 10 * time.Second
)

// Directory and file names for issue-crew.
const (
	AppDirName          = "issue-crew"      // Directory name under the user config dir
	ConfigFileName      = "config.toml"     // Global config file name
	LocalConfigFileName = "issue-crew.toml" // Config file name in the working directory
)

// GlobalConfigPath returns the global config path.
// configHome is typically XDG_CONFIG_HOME or ~/.config (resolved by caller).
func GlobalConfigPath(configHome string) string {
	return filepath.Join(configHome, AppDirName, ConfigFileName)
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			APIPrefix:       DefaultAPIPrefix,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
		},
		Store: StoreConfig{
			Driver:    DriverJSON,
			Path:      DefaultStorePath,
			Format:    FormatJSON,
			Repo:      ".",
			Namespace: DefaultNamespace,
			S3: S3Config{
				Key:    DefaultS3Key,
				Region: DefaultS3Region,
			},
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverJSON, DriverYAML, DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for driver %q", ErrInvalidConfig, c.Store.Driver)
		}
	case DriverGit:
		if c.Store.Namespace == "" {
			return fmt.Errorf("%w: store.namespace is required for driver %q", ErrInvalidConfig, c.Store.Driver)
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for driver %q", ErrInvalidConfig, c.Store.Driver)
		}
	case DriverS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("%w: store.s3.bucket is required for driver %q", ErrInvalidConfig, c.Store.Driver)
		}
		if (c.Store.S3.AccessKeyID == "") != (c.Store.S3.SecretAccessKey == "") {
			return fmt.Errorf("%w: store.s3.access_key_id and store.s3.secret_access_key must be set together", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Store.Driver)
	}

	switch c.Store.Format {
	case FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("%w: store.format must be %q or %q", ErrInvalidConfig, FormatJSON, FormatYAML)
	}

	if c.Store.EncryptionKey != "" {
		if key, err := hex.DecodeString(c.Store.EncryptionKey); err != nil || len(key) != 32 {
			return ErrInvalidEncryptionKey
		}
	}

	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("%w: server.api_prefix must start with /", ErrInvalidConfig)
	}

	return nil
}

// DocumentFormat returns the document encoding implied by the driver and format settings.
// The yaml driver always stores YAML; other drivers follow store.format.
func (s StoreConfig) DocumentFormat() string {
	if s.Driver == DriverYAML {
		return FormatYAML
	}
	if s.Format == "" {
		return FormatJSON
	}
	return s.Format
}
