package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/conduit-lang/catalog/internal/fsys"
	"github.com/conduit-lang/catalog/internal/tooling/scan"
	"github.com/conduit-lang/catalog/internal/web/cache"
	"github.com/conduit-lang/catalog/runtime/metadata"
	"go.uber.org/zap"
)

// Default tier settings
const (
	DefaultSnapshotTimeout = 10 * time.Second
	DefaultStaticTTL       = 5 * time.Minute
	DefaultDevTTL          = time.Minute
)

// Provider is one tier of the registry fallback chain. Fetch reports ok=false
// when the tier has nothing to offer; errors are treated the same way by the
// API after being logged.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) ([]metadata.ComponentMetadata, bool, error)
}

// Invalidator is implemented by providers that cache their results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// StaticConfig configures a StaticProvider.
type StaticConfig struct {
	// Location is an http(s):// URL, an s3://bucket/key location or a file
	// path. An empty location disables the tier.
	Location string
	Timeout  time.Duration
	TTL      time.Duration

	HTTPClient *http.Client
	S3         ObjectGetter
	FileSystem fsys.Capability
	Logger     *zap.Logger
}

// StaticProvider serves a prebuilt snapshot.
type StaticProvider struct {
	cfg  StaticConfig
	slot *cache.Slot[Snapshot]
}

// NewStaticProvider creates the static tier. Results are cached in backend.
func NewStaticProvider(cfg StaticConfig, backend cache.Cache) *StaticProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSnapshotTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultStaticTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.FileSystem == nil {
		cfg.FileSystem = fsys.OS{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &StaticProvider{
		cfg:  cfg,
		slot: cache.NewSlot[Snapshot](backend, cache.Key("tier", "static"), cfg.TTL),
	}
}

// Name returns "static".
func (p *StaticProvider) Name() string { return "static" }

// Fetch returns the cached snapshot or loads it from its location.
func (p *StaticProvider) Fetch(ctx context.Context) ([]metadata.ComponentMetadata, bool, error) {
	if p.cfg.Location == "" {
		return nil, false, nil
	}
	snap, ok, err := p.slot.Load(ctx)
	if err != nil {
		p.cfg.Logger.Warn("dropping cached snapshot", zap.Error(err))
	}
	if ok {
		return snap.Components, len(snap.Components) > 0, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body, err := p.open(fetchCtx)
	if err != nil {
		return nil, false, err
	}
	if body == nil {
		return nil, false, nil
	}
	defer body.Close()

	snap, err = ReadSnapshot(body)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", p.cfg.Location, err)
	}
	if err := p.slot.Store(ctx, snap); err != nil {
		p.cfg.Logger.Warn("failed to cache snapshot", zap.Error(err))
	}
	return snap.Components, len(snap.Components) > 0, nil
}

// open returns nil without error when the location is a file and the file
// system is unavailable.
func (p *StaticProvider) open(ctx context.Context) (io.ReadCloser, error) {
	location := p.cfg.Location

	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid snapshot url: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := p.cfg.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch snapshot: %s returned %d", location, resp.StatusCode)
		}
		return resp.Body, nil

	case strings.HasPrefix(location, "s3://"):
		bucket, key, ok := ParseS3Location(location)
		if !ok {
			return nil, fmt.Errorf("invalid s3 location: %q", location)
		}
		if p.cfg.S3 == nil {
			return nil, fmt.Errorf("no s3 client configured for %s", location)
		}
		out, err := p.cfg.S3.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch snapshot from %s: %w", location, err)
		}
		return out.Body, nil

	default:
		if !p.cfg.FileSystem.Enabled() {
			return nil, nil
		}
		f, err := os.Open(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot: %w", err)
		}
		return f, nil
	}
}

// Invalidate drops the cached snapshot.
func (p *StaticProvider) Invalidate(ctx context.Context) error {
	return p.slot.Invalidate(ctx)
}

// LiveSource is a registry kept current by a running watcher.
type LiveSource interface {
	Watching() bool
	Registry() *metadata.Registry
}

// DevProvider serves the live registry while its watcher is running.
type DevProvider struct {
	source LiveSource
	slot   *cache.Slot[[]metadata.ComponentMetadata]
}

// NewDevProvider creates the development tier.
func NewDevProvider(source LiveSource, backend cache.Cache, ttl time.Duration) *DevProvider {
	if ttl <= 0 {
		ttl = DefaultDevTTL
	}
	return &DevProvider{
		source: source,
		slot:   cache.NewSlot[[]metadata.ComponentMetadata](backend, cache.Key("tier", "dev"), ttl),
	}
}

// Name returns "dev".
func (p *DevProvider) Name() string { return "dev" }

// Fetch returns the registry contents when the watcher is watching.
func (p *DevProvider) Fetch(ctx context.Context) ([]metadata.ComponentMetadata, bool, error) {
	if p.source == nil || !p.source.Watching() {
		return nil, false, nil
	}
	if cached, ok, err := p.slot.Load(ctx); err == nil && ok {
		return cached, len(cached) > 0, nil
	}

	records := p.source.Registry().GetAll()
	out := make([]metadata.ComponentMetadata, 0, len(records))
	for _, r := range records {
		out = append(out, *r)
	}
	// A failed store only costs a registry copy on the next fetch
	_ = p.slot.Store(ctx, out)
	return out, len(out) > 0, nil
}

// Invalidate drops the cached registry copy.
func (p *DevProvider) Invalidate(ctx context.Context) error {
	return p.slot.Invalidate(ctx)
}

// RuntimeProvider scans the source tree on every fetch.
type RuntimeProvider struct {
	locator     scan.Locator
	extractor   scan.FileExtractor
	fs          fsys.Capability
	concurrency int
	logger      *zap.Logger
}

// NewRuntimeProvider creates the runtime tier.
func NewRuntimeProvider(locator scan.Locator, extractor scan.FileExtractor, fs fsys.Capability, concurrency int, logger *zap.Logger) *RuntimeProvider {
	if fs == nil {
		fs = fsys.OS{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuntimeProvider{
		locator:     locator,
		extractor:   extractor,
		fs:          fs,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Name returns "runtime".
func (p *RuntimeProvider) Name() string { return "runtime" }

// Available reports whether the tier can scan.
func (p *RuntimeProvider) Available() bool {
	return p.fs.Enabled() && p.locator != nil && p.extractor != nil
}

// Fetch scans and extracts every located file.
func (p *RuntimeProvider) Fetch(ctx context.Context) ([]metadata.ComponentMetadata, bool, error) {
	if !p.Available() {
		return nil, false, nil
	}
	res := p.Scan(ctx)
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return res.Components, len(res.Components) > 0, nil
}

// Scan runs a full discovery pass.
func (p *RuntimeProvider) Scan(ctx context.Context) *scan.Result {
	scanner := scan.New(p.locator, p.extractor,
		scan.WithConcurrency(p.concurrency),
		scan.WithLogger(p.logger),
	)
	return scanner.Scan(ctx)
}
