package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/conduit-lang/catalog/internal/cli/config"
	"github.com/conduit-lang/catalog/internal/cli/ui"
	"github.com/conduit-lang/catalog/internal/discovery"
	"github.com/conduit-lang/catalog/internal/logging"
	"github.com/conduit-lang/catalog/internal/storage"
	"github.com/conduit-lang/catalog/internal/tooling/extract"
	"github.com/conduit-lang/catalog/internal/web/cache"
	"github.com/conduit-lang/catalog/runtime/catalog"
	"github.com/conduit-lang/catalog/runtime/metadata"
	"go.uber.org/zap"
)

// workspace is everything a command needs to read or refresh the registry
// of one project.
type workspace struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     storage.Store
	registry  *metadata.Registry
	locator   *discovery.Locator
	extractor *extract.Extractor
	backend   *cache.RedisCache
	api       *catalog.API
	noColor   bool
}

// loadConfig reads the project configuration. Validation failures are
// rendered to errOut.
func loadConfig(opts *globalOptions, errOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(opts.dir)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			ui.ConfigError(err, opts.noColor).Write(errOut)
			return nil, &reportedError{err: err}
		}
		return nil, err
	}
	return cfg, nil
}

// openWorkspace loads the configuration, opens the store and restores the
// registry from it. The unified API is created by newAPI.
func openWorkspace(ctx context.Context, opts *globalOptions, errOut io.Writer) (*workspace, error) {
	cfg, err := loadConfig(opts, errOut)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	logger, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	ws := &workspace{cfg: cfg, logger: logger, noColor: opts.noColor}

	ws.locator, err = discovery.New(cfg.DiscoveryConfig(), discovery.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	ws.extractor, err = extract.New(cfg.ExtractConfig(), extract.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ws.store, err = storage.Open(ctx, cfg.Storage.Driver, cfg.StorageDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}
	ws.registry = metadata.NewRegistry(
		metadata.WithStore(ws.store),
		metadata.WithLogger(logger),
	)
	if err := ws.registry.Load(ctx); err != nil {
		ws.store.Close()
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	if cfg.Cache.Driver == config.CacheRedis {
		ws.backend, err = cache.NewRedisCacheFromURL(ctx, cfg.Cache.RedisURL, cache.Config{
			DefaultTTL: cfg.Cache.StaticTTL,
			Prefix:     "catalog:",
		})
		if err != nil {
			ws.store.Close()
			return nil, fmt.Errorf("failed to connect to cache: %w", err)
		}
	}
	return ws, nil
}

// newAPI creates the unified API over the workspace registry. extra options
// are applied last and override the defaults.
func (ws *workspace) newAPI(extra ...catalog.Option) *catalog.API {
	opts := []catalog.Option{
		catalog.WithRegistry(ws.registry),
		catalog.WithRuntime(ws.locator, ws.extractor),
		catalog.WithLogger(ws.logger),
	}
	if ws.backend != nil {
		opts = append(opts, catalog.WithCache(ws.backend))
	}
	if strings.HasPrefix(ws.cfg.Snapshot.Location, "s3://") {
		opts = append(opts, catalog.WithS3Client(catalog.NewS3Client(ws.cfg.Snapshot.Region)))
	}
	ws.api = catalog.New(ws.cfg.CatalogConfig(), append(opts, extra...)...)
	return ws.api
}

// ensureRegistry fills an empty registry with a scan of the source tree.
func (ws *workspace) ensureRegistry(ctx context.Context) error {
	if ws.registry.Len() > 0 {
		return nil
	}
	if ws.api == nil {
		ws.newAPI()
	}
	_, err := ws.api.RescanComponents(ctx)
	return err
}

func (ws *workspace) Close() error {
	var errs []error
	if ws.api != nil {
		errs = append(errs, ws.api.Close())
	}
	if ws.backend != nil {
		errs = append(errs, ws.backend.Close())
	}
	errs = append(errs, ws.store.Close())
	ws.logger.Sync()
	return errors.Join(errs...)
}
