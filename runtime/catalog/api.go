// Package catalog is the unified read API over the component registry. It
// asks an ordered list of providers (static snapshot, live development
// registry, runtime scan) for components, takes the first non-empty answer,
// and applies filtering, sorting and pagination uniformly.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/conduit-lang/catalog/internal/fsys"
	"github.com/conduit-lang/catalog/internal/metrics"
	"github.com/conduit-lang/catalog/internal/tooling/scan"
	"github.com/conduit-lang/catalog/internal/web/cache"
	"github.com/conduit-lang/catalog/runtime/metadata"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/conduit-lang/catalog/runtime/catalog"

// FileSystemCapability decides whether the API may scan and watch files.
type FileSystemCapability = fsys.Capability

// Capabilities of the host environment
var (
	OSFileSystem   FileSystemCapability = fsys.OS{}
	NoopFileSystem FileSystemCapability = fsys.Noop{}
)

// ErrRescanUnavailable is returned by RescanComponents when the API has no
// runtime tier or no file system.
var ErrRescanUnavailable = errors.New("catalog: rescan requires a file system and a source locator")

// Config holds the tier settings of an API.
type Config struct {
	SnapshotLocation string
	SnapshotTimeout  time.Duration
	StaticTTL        time.Duration
	DevTTL           time.Duration
	Concurrency      int
}

// API is the unified registry API.
type API struct {
	providers []Provider
	registry  *metadata.Registry
	runtime   *RuntimeProvider
	fs        fsys.Capability
	backend   cache.Cache
	ownsCache bool
	logger    *zap.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	listener  metadata.ListenerID
}

type options struct {
	backend   cache.Cache
	fs        fsys.Capability
	live      LiveSource
	registry  *metadata.Registry
	locator   scan.Locator
	extractor scan.FileExtractor
	s3        ObjectGetter
	static    *StaticConfig
	providers []Provider
	logger    *zap.Logger
	tracer    trace.TracerProvider
	metrics   *metrics.Metrics
}

// Option configures an API.
type Option func(*options)

// WithCache backs the tier caches with c instead of a private memory cache.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.backend = c }
}

// WithFileSystem sets the file system capability. OSFileSystem is the
// default.
func WithFileSystem(c FileSystemCapability) Option {
	return func(o *options) { o.fs = c }
}

// WithLiveSource enables the development tier. Its registry becomes the
// registry of the API.
func WithLiveSource(s LiveSource) Option {
	return func(o *options) { o.live = s }
}

// WithRegistry sets the registry that receives rescans and listeners when no
// live source is configured.
func WithRegistry(r *metadata.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithRuntime enables the runtime tier and RescanComponents.
func WithRuntime(locator scan.Locator, extractor scan.FileExtractor) Option {
	return func(o *options) {
		o.locator = locator
		o.extractor = extractor
	}
}

// WithS3Client sets the client used for s3:// snapshot locations.
func WithS3Client(c ObjectGetter) Option {
	return func(o *options) { o.s3 = c }
}

// WithStaticConfig overrides the static tier settings derived from Config.
func WithStaticConfig(cfg StaticConfig) Option {
	return func(o *options) { o.static = &cfg }
}

// WithProviders replaces the default provider chain.
func WithProviders(p ...Provider) Option {
	return func(o *options) { o.providers = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithMetrics records tier fetches and scans.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New creates an API. Unless WithProviders is given, the chain is static,
// dev and runtime, each included when configured.
func New(cfg Config, opts ...Option) *API {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fs == nil {
		o.fs = OSFileSystem
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}

	a := &API{
		fs:      o.fs,
		backend: o.backend,
		logger:  o.logger,
		tracer:  o.tracer.Tracer(tracerName),
		metrics: o.metrics,
	}
	if a.backend == nil {
		a.backend = cache.NewMemoryCacheWithConfig(cache.Config{Prefix: "catalog:"})
		a.ownsCache = true
	}

	switch {
	case o.live != nil:
		a.registry = o.live.Registry()
	case o.registry != nil:
		a.registry = o.registry
	default:
		a.registry = metadata.NewRegistry(metadata.WithLogger(o.logger))
	}

	if o.locator != nil && o.extractor != nil {
		a.runtime = NewRuntimeProvider(o.locator, o.extractor, o.fs, cfg.Concurrency, o.logger)
	}

	if o.providers != nil {
		a.providers = o.providers
	} else {
		static := StaticConfig{
			Location: cfg.SnapshotLocation,
			Timeout:  cfg.SnapshotTimeout,
			TTL:      cfg.StaticTTL,
		}
		if o.static != nil {
			static = *o.static
		}
		static.FileSystem = o.fs
		static.Logger = o.logger
		if static.S3 == nil {
			static.S3 = o.s3
		}
		if static.Location != "" {
			a.providers = append(a.providers, NewStaticProvider(static, a.backend))
		}
		if o.live != nil {
			dev := NewDevProvider(o.live, a.backend, cfg.DevTTL)
			a.providers = append(a.providers, dev)
		}
		if a.runtime != nil {
			a.providers = append(a.providers, a.runtime)
		}
	}

	// Registry mutations make the cached development tier stale
	a.listener = a.registry.AddChangeListener(func(metadata.ChangeEvent) {
		for _, p := range a.providers {
			if dev, ok := p.(*DevProvider); ok {
				if err := dev.Invalidate(context.Background()); err != nil {
					a.logger.Debug("failed to invalidate dev tier", zap.Error(err))
				}
			}
		}
	})
	return a
}

// Registry returns the registry backing listeners and rescans.
func (a *API) Registry() *metadata.Registry {
	return a.registry
}

// Providers returns the provider chain in evaluation order.
func (a *API) Providers() []Provider {
	return append([]Provider(nil), a.providers...)
}

// GetComponents returns one page of components from the first provider with
// a non-empty answer. It never fails: when every provider fails or is empty
// the page is empty.
func (a *API) GetComponents(ctx context.Context, opts Options) Page {
	ctx, span := a.tracer.Start(ctx, "catalog.GetComponents")
	defer span.End()

	components, tier := a.fetch(ctx)
	page := apply(components, opts)

	span.SetAttributes(
		attribute.String("catalog.tier", tier),
		attribute.Int("catalog.total", page.Total),
	)
	return page
}

// GetComponent returns the component at path.
func (a *API) GetComponent(ctx context.Context, path string) (metadata.ComponentMetadata, bool) {
	ctx, span := a.tracer.Start(ctx, "catalog.GetComponent", trace.WithAttributes(attribute.String("catalog.path", path)))
	defer span.End()

	components, _ := a.fetch(ctx)
	for _, c := range components {
		if c.Path == path {
			return c, true
		}
	}
	return metadata.ComponentMetadata{}, false
}

// fetch walks the provider chain and returns the first non-empty answer
// with the name of the tier that produced it.
func (a *API) fetch(ctx context.Context) ([]metadata.ComponentMetadata, string) {
	for _, p := range a.providers {
		if ctx.Err() != nil {
			return nil, ""
		}
		pctx, span := a.tracer.Start(ctx, "catalog.provider."+p.Name())
		start := time.Now()
		components, ok, err := p.Fetch(pctx)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			a.metrics.ObserveTier(p.Name(), metrics.OutcomeError, elapsed)
			a.logger.Warn("registry tier failed", zap.String("tier", p.Name()), zap.Error(err))
		case ok && len(components) > 0:
			span.SetAttributes(attribute.Int("catalog.components", len(components)))
			span.End()
			a.metrics.ObserveTier(p.Name(), metrics.OutcomeHit, elapsed)
			return components, p.Name()
		default:
			span.End()
			a.metrics.ObserveTier(p.Name(), metrics.OutcomeEmpty, elapsed)
		}
	}
	return nil, ""
}

// RescanComponents invalidates every tier cache, scans the source tree and
// makes the registry mirror the result: scanned components are upserted and
// records whose source file produced nothing are removed.
func (a *API) RescanComponents(ctx context.Context) (*scan.Result, error) {
	ctx, span := a.tracer.Start(ctx, "catalog.RescanComponents")
	defer span.End()

	a.invalidate(ctx)

	if a.runtime == nil || !a.runtime.Available() {
		span.SetStatus(codes.Error, ErrRescanUnavailable.Error())
		return nil, ErrRescanUnavailable
	}

	res := a.runtime.Scan(ctx)
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return res, err
	}
	a.metrics.ObserveScan(res.Files, len(res.Failures), res.Duration)

	current := make(map[string]bool, len(res.Components))
	for _, c := range res.Components {
		current[c.Path] = true
		if _, err := a.registry.Upsert(ctx, c); err != nil {
			a.logger.Warn("failed to register component", zap.String("path", c.Path), zap.Error(err))
		}
	}
	// Records of files that failed extraction are kept until they parse again
	failed := make(map[string]bool, len(res.Failures))
	for _, f := range res.Failures {
		failed[f.File] = true
	}
	for _, existing := range a.registry.GetAll() {
		if current[existing.Path] || failed[existing.SourceFile] {
			continue
		}
		if _, err := a.registry.Remove(ctx, existing.Path); err != nil {
			a.logger.Warn("failed to remove component", zap.String("path", existing.Path), zap.Error(err))
		}
	}

	// The registry changed under the tiers again
	a.invalidate(ctx)

	span.SetAttributes(
		attribute.Int("catalog.files", res.Files),
		attribute.Int("catalog.components", len(res.Components)),
		attribute.Int("catalog.failures", len(res.Failures)),
	)
	return res, nil
}

func (a *API) invalidate(ctx context.Context) {
	for _, p := range a.providers {
		if inv, ok := p.(Invalidator); ok {
			if err := inv.Invalidate(ctx); err != nil {
				a.logger.Debug("failed to invalidate tier", zap.String("tier", p.Name()), zap.Error(err))
			}
		}
	}
}

// AddChangeListener registers fn for registry mutations.
func (a *API) AddChangeListener(fn metadata.ChangeListener) metadata.ListenerID {
	return a.registry.AddChangeListener(fn)
}

// RemoveChangeListener unregisters a listener added with AddChangeListener.
func (a *API) RemoveChangeListener(id metadata.ListenerID) bool {
	return a.registry.RemoveChangeListener(id)
}

// Close releases the private cache and the internal registry listener.
func (a *API) Close() error {
	a.registry.RemoveChangeListener(a.listener)
	if a.ownsCache {
		if c, ok := a.backend.(*cache.MemoryCache); ok {
			return c.Close()
		}
	}
	return nil
}
