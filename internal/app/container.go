// Package app provides the dependency injection container for the application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/httpapi"
	"github.com/runoshun/issue-crew/internal/infra/config"
	"github.com/runoshun/issue-crew/internal/infra/document"
	"github.com/runoshun/issue-crew/internal/infra/filestore"
	"github.com/runoshun/issue-crew/internal/infra/gitstore"
	"github.com/runoshun/issue-crew/internal/infra/logging"
	"github.com/runoshun/issue-crew/internal/infra/memstore"
	"github.com/runoshun/issue-crew/internal/infra/s3store"
	"github.com/runoshun/issue-crew/internal/infra/sqlstore"
	"github.com/runoshun/issue-crew/internal/issuestore"
)

// Container provides dependency injection for the application.
// Config paths are set first; Open then builds everything else from the loaded config.
type Container struct {
	// Config sources
	ConfigPath      string // Local config file; empty means ./issue-crew.toml
	GlobalConfigDir string // Empty means config.DefaultGlobalConfigDir()

	// Populated by Open (or NewWithDeps)
	Config  *domain.Config
	Logger  *slog.Logger
	Backend domain.Backend
	Store   *issuestore.Store
	Metrics *httpapi.Metrics

	closers []func() error
}

// New creates an unopened Container.
func New() *Container {
	return &Container{}
}

// NewWithDeps creates an opened Container with custom dependencies for testing.
// A nil ids uses random UUIDs; a nil logger discards records.
func NewWithDeps(cfg *domain.Config, backend domain.Backend, ids domain.IDGenerator, logger *slog.Logger) *Container {
	if cfg == nil {
		cfg = domain.NewDefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Backend: backend,
		Store:   issuestore.New(backend, ids),
	}
	if cfg.Metrics.Enabled {
		c.Metrics = httpapi.NewMetrics()
	}
	return c
}

// ConfigLoader returns a loader for the container's config sources.
func (c *Container) ConfigLoader() *config.Loader {
	if c.GlobalConfigDir != "" {
		return config.NewLoaderWithGlobalDir(c.ConfigPath, c.GlobalConfigDir)
	}
	return config.NewLoader(c.ConfigPath)
}

// ConfigManager returns a manager for the container's config files.
func (c *Container) ConfigManager() *config.Manager {
	if c.GlobalConfigDir != "" {
		return config.NewManagerWithGlobalDir(c.ConfigPath, c.GlobalConfigDir)
	}
	return config.NewManager(c.ConfigPath)
}

// Opened reports whether the store is ready.
func (c *Container) Opened() bool {
	return c.Store != nil
}

// Open loads and validates the configuration, then builds the logger, backend and store.
// It is a no-op on an opened container.
func (c *Container) Open(ctx context.Context, stderr io.Writer) error {
	if c.Opened() {
		return nil
	}

	cfg, err := c.ConfigLoader().Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, stderr)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, logger.Close)

	backend, closeBackend, err := OpenBackend(ctx, cfg.Store)
	if err != nil {
		_ = c.Close()
		return err
	}
	if closeBackend != nil {
		c.closers = append(c.closers, closeBackend)
	}

	c.Config = cfg
	c.Logger = logger.Logger
	c.Backend = backend
	c.Store = issuestore.New(backend, nil)
	if cfg.Metrics.Enabled {
		c.Metrics = httpapi.NewMetrics()
	}

	c.Logger.DebugContext(ctx, "store opened", "driver", cfg.Store.Driver)
	return nil
}

// HTTPHandler returns the API handler configured from the container.
func (c *Container) HTTPHandler() http.Handler {
	return httpapi.NewHandler(c.Store, httpapi.Options{
		Logger:      c.Logger,
		Metrics:     c.Metrics,
		APIPrefix:   c.Config.Server.APIPrefix,
		StaticDir:   c.Config.Server.StaticDir,
		MetricsPath: c.Config.Metrics.Path,
		CORSOrigins: c.Config.Server.CORSOrigins,
	})
}

// Close releases the backend and the log file, most recent first.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// OpenBackend builds the backend selected by cfg.Driver.
// The returned close func is nil when the backend holds no resources.
func OpenBackend(ctx context.Context, cfg domain.StoreConfig) (domain.Backend, func() error, error) {
	codec, err := document.NewCodec(cfg.DocumentFormat(), cfg.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Driver {
	case domain.DriverJSON, domain.DriverYAML:
		return filestore.New(cfg.Path, codec), nil, nil

	case domain.DriverGit:
		store, err := gitstore.Open(cfg.Repo, cfg.Namespace, codec)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case domain.DriverSQLite:
		store, err := sqlstore.OpenSQLite(ctx, cfg.Path, cfg.Namespace, codec)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case domain.DriverPostgres:
		store, err := sqlstore.OpenPostgres(ctx, cfg.DSN, cfg.Namespace, codec)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case domain.DriverS3:
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Key:       cfg.S3.Key,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,

			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
		}, codec)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case domain.DriverMemory:
		return memstore.New(), nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrUnknownDriver, cfg.Driver)
	}
}
