// Package discovery locates component source files under a set of root
// directories using doublestar include and exclude globs.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// DefaultInclude selects component source files.
var DefaultInclude = []string{"**/*.tsx", "**/*.jsx"}

// TestFileExclude drops tests, specs and stories. It applies on top of any
// configured exclude patterns.
var TestFileExclude = []string{
	"**/*.test.*",
	"**/*.spec.*",
	"**/*.stories.*",
	"**/__tests__/**",
}

// Directories never descended into
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".git":         true,
	"dist":         true,
	"build":        true,
	".next":        true,
}

// Config holds the parameters of a Locator.
type Config struct {
	// Roots are the directories searched recursively. Relative roots are
	// resolved against BaseDir first, then the working directory.
	Roots []string

	// Include and Exclude are doublestar patterns matched against paths
	// relative to their root. An empty Include falls back to DefaultInclude.
	// Exclude adds to TestFileExclude.
	Include []string
	Exclude []string

	BaseDir string
}

// SkippedRoot is a root that could not be searched.
type SkippedRoot struct {
	Root   string `json:"root"`
	Reason string `json:"reason"`
}

// Result is the outcome of LocateDetailed.
type Result struct {
	Files   []string      `json:"files"`
	Skipped []SkippedRoot `json:"skipped,omitempty"`
}

// Locator finds component source files.
type Locator struct {
	cfg    Config
	logger *zap.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger sets the locator logger.
func WithLogger(l *zap.Logger) Option {
	return func(loc *Locator) {
		if l != nil {
			loc.logger = l
		}
	}
}

// New creates a Locator. Invalid glob patterns are reported here so that
// Locate itself never fails.
func New(cfg Config, opts ...Option) (*Locator, error) {
	if len(cfg.Include) == 0 {
		cfg.Include = DefaultInclude
	}
	cfg.Exclude = append(append([]string(nil), TestFileExclude...), cfg.Exclude...)
	for _, pat := range append(append([]string(nil), cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("discovery: invalid pattern %q", pat)
		}
	}

	loc := &Locator{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(loc)
	}
	return loc, nil
}

// Locate returns the sorted, deduplicated absolute paths of every matching
// file. Missing roots are skipped; an empty slice is returned when nothing
// matches.
func (l *Locator) Locate(ctx context.Context) []string {
	return l.LocateDetailed(ctx).Files
}

// LocateDetailed is Locate plus the roots that could not be searched.
func (l *Locator) LocateDetailed(ctx context.Context) Result {
	seen := make(map[string]bool)
	res := Result{Files: []string{}}

	for _, root := range l.cfg.Roots {
		if ctx.Err() != nil {
			res.Skipped = append(res.Skipped, SkippedRoot{Root: root, Reason: ctx.Err().Error()})
			continue
		}
		dir, ok := l.resolveRoot(root)
		if !ok {
			l.logger.Warn("component root not found", zap.String("root", root))
			res.Skipped = append(res.Skipped, SkippedRoot{Root: root, Reason: "directory not found"})
			continue
		}

		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				l.logger.Debug("walk error", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() && path != dir {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				if path != dir && skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}

			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return nil
			}
			if !l.Matches(rel) || seen[path] {
				return nil
			}
			seen[path] = true
			res.Files = append(res.Files, path)
			return nil
		})
		if err != nil {
			reason := err.Error()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reason = "canceled: " + reason
			}
			l.logger.Warn("component root walk aborted", zap.String("root", dir), zap.Error(err))
			res.Skipped = append(res.Skipped, SkippedRoot{Root: root, Reason: reason})
		}
	}

	sort.Strings(res.Files)
	return res
}

// Matches reports whether a path relative to a root is selected by the
// include and exclude patterns.
func (l *Locator) Matches(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range l.cfg.Exclude {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return false
		}
	}
	for _, pat := range l.cfg.Include {
		if matched, err := doublestar.Match(pat, normalized); err == nil && matched {
			return true
		}
	}
	return false
}

// Roots returns the absolute paths of the roots that currently exist.
func (l *Locator) Roots() []string {
	var out []string
	for _, root := range l.cfg.Roots {
		if dir, ok := l.resolveRoot(root); ok {
			out = append(out, dir)
		}
	}
	return out
}

// MatchesAbs reports whether an absolute path lies under one of the roots and
// is selected by the patterns.
func (l *Locator) MatchesAbs(path string) bool {
	for _, dir := range l.Roots() {
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if l.Matches(rel) && !underSkippedDir(rel) {
			return true
		}
	}
	return false
}

// resolveRoot resolves a root against BaseDir, then the working directory.
func (l *Locator) resolveRoot(root string) (string, bool) {
	var candidates []string
	if filepath.IsAbs(root) {
		candidates = append(candidates, root)
	} else {
		if l.cfg.BaseDir != "" {
			candidates = append(candidates, filepath.Join(l.cfg.BaseDir, root))
		}
		if abs, err := filepath.Abs(root); err == nil {
			candidates = append(candidates, abs)
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			abs, err := filepath.Abs(c)
			if err != nil {
				return filepath.Clean(c), true
			}
			return abs, true
		}
	}
	return "", false
}

// SkipDir reports whether a directory with the given base name is never
// searched.
func SkipDir(name string) bool {
	return skipDirs[name]
}

func underSkippedDir(rel string) bool {
	dir := filepath.Dir(rel)
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		if skipDirs[filepath.Base(dir)] {
			return true
		}
		dir = filepath.Dir(dir)
	}
	return false
}
