// Package scan runs a full discovery pass: locate every component file and
// extract it in a bounded worker pool.
package scan

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/catalog/internal/tooling/extract"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

// Locator lists the files to scan
type Locator interface {
	Locate(ctx context.Context) []string
}

// FileExtractor extracts the components of one file
type FileExtractor interface {
	ExtractFile(ctx context.Context, path string) ([]metadata.ComponentMetadata, error)
}

// Result is the outcome of a scan.
type Result struct {
	Components []metadata.ComponentMetadata `json:"components"`
	Failures   []extract.ExtractError       `json:"failures"`
	Files      int                          `json:"files"`
	Duration   time.Duration                `json:"duration"`
}

// Observer is notified once per scanned file
type Observer func(path string, components int, err error)

// Scanner performs discovery passes.
type Scanner struct {
	locator     Locator
	extractor   FileExtractor
	concurrency int
	logger      *zap.Logger
	observer    Observer

	scanMu sync.Mutex // serializes Scan
	mu     sync.Mutex
	ready  chan struct{}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithConcurrency bounds the number of files extracted at once.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the scanner logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver registers a per-file callback, used for metrics.
func WithObserver(fn Observer) Option {
	return func(s *Scanner) { s.observer = fn }
}

// New creates a Scanner.
func New(locator Locator, extractor FileExtractor, opts ...Option) *Scanner {
	s := &Scanner{
		locator:     locator,
		extractor:   extractor,
		concurrency: runtime.NumCPU(),
		logger:      zap.NewNop(),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ready returns a channel closed once the most recent Scan has attempted
// every discovered file. A new Scan replaces the channel.
func (s *Scanner) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Scan locates and extracts every component file. Extraction failures are
// collected in Result.Failures; Scan itself never fails. Components are
// ordered by path regardless of completion order. Concurrent calls run one
// after the other.
func (s *Scanner) Scan(ctx context.Context) *Result {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	start := time.Now()

	s.mu.Lock()
	select {
	case <-s.ready:
		s.ready = make(chan struct{})
	default:
	}
	ready := s.ready
	s.mu.Unlock()
	defer close(ready)

	files := s.locator.Locate(ctx)
	res := &Result{
		Components: []metadata.ComponentMetadata{},
		Failures:   []extract.ExtractError{},
		Files:      len(files),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, file := range files {
		file := file
		g.Go(func() error {
			components, err := s.extractor.ExtractFile(gctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures = append(res.Failures, toExtractError(file, err))
				s.logger.Warn("extraction failed", zap.String("path", file), zap.Error(err))
			} else {
				res.Components = append(res.Components, components...)
			}
			if s.observer != nil {
				s.observer(file, len(components), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Components, func(i, j int) bool { return res.Components[i].Path < res.Components[j].Path })
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].File < res.Failures[j].File })
	res.Duration = time.Since(start)

	s.logger.Info("scan complete",
		zap.Int("files", res.Files),
		zap.Int("components", len(res.Components)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func toExtractError(file string, err error) extract.ExtractError {
	if e, ok := extract.AsExtractError(err); ok {
		return *e
	}
	return extract.ExtractError{File: file, Phase: extract.PhaseExtract, Message: err.Error()}
}
