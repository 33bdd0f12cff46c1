// Package extract turns TypeScript/TSX component source files into registry
// records. Each file is parsed once into a parser.Program and matched against
// a fixed set of component shapes: exported functions, classes and variables
// initialized to a (possibly forwardRef/memo wrapped) function.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/conduit-lang/catalog/compiler/parser"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

const defaultCacheSize = 512

// DefaultAliases are the import prefixes treated as component roots.
var DefaultAliases = []string{"@/components", "~/components", "@components"}

// Config controls how records are derived from source files.
type Config struct {
	// BaseDir anchors alias targets given as relative paths
	BaseDir string

	// Categories maps a directory name to a category
	Categories map[string]metadata.Category

	// Aliases maps a component-root import prefix to its directory. An empty
	// directory is probed under BaseDir/components and BaseDir/src/components.
	Aliases map[string]string

	// CacheSize bounds the parse cache
	CacheSize int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	aliases := make(map[string]string, len(DefaultAliases))
	for _, a := range DefaultAliases {
		aliases[a] = ""
	}
	return Config{
		Categories: map[string]metadata.Category{
			"atoms":     metadata.CategoryAtom,
			"molecules": metadata.CategoryMolecule,
			"organisms": metadata.CategoryOrganism,
		},
		Aliases:   aliases,
		CacheSize: defaultCacheSize,
	}
}

// Extractor derives ComponentMetadata from source files. It is safe for
// concurrent use.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
	cache  *lru.Cache[string, *parser.Program]
	exists func(path string) bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the extractor logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Extractor) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithFileExists overrides the probe used to resolve import specifiers.
func WithFileExists(fn func(path string) bool) Option {
	return func(x *Extractor) { x.exists = fn }
}

// New creates an Extractor. Category values from cfg are registered as known
// categories.
func New(cfg Config, opts ...Option) (*Extractor, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.Categories == nil {
		cfg.Categories = DefaultConfig().Categories
	}
	if cfg.Aliases == nil {
		cfg.Aliases = DefaultConfig().Aliases
	}

	categories := make(map[string]metadata.Category, len(cfg.Categories))
	for segment, c := range cfg.Categories {
		metadata.RegisterCategory(c)
		categories[strings.ToLower(segment)] = metadata.ParseCategory(string(c))
	}
	cfg.Categories = categories

	cache, err := lru.New[string, *parser.Program](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}

	x := &Extractor{
		cfg:    cfg,
		logger: zap.NewNop(),
		cache:  cache,
		exists: fileExists,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// ExtractFile reads path from disk and extracts it.
func (x *Extractor) ExtractFile(ctx context.Context, path string) ([]metadata.ComponentMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &ExtractError{File: path, Phase: PhaseRead, Message: err.Error()}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ExtractError{File: path, Phase: PhaseRead, Message: err.Error()}
	}
	return x.Extract(ctx, path, content, info.ModTime())
}

// Extract returns the components declared in content. A file without
// component exports yields an empty slice and no error. Parse failures and
// panics are reported as *ExtractError.
func (x *Extractor) Extract(ctx context.Context, path string, content []byte, modTime time.Time) (components []metadata.ComponentMetadata, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phase := PhaseParse
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("extraction panicked",
				zap.String("path", path),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			components = nil
			err = &ExtractError{File: path, Phase: phase, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	prog, err := x.parse(ctx, path, content)
	if err != nil {
		var list parser.ParseErrorList
		if errors.As(err, &list) && list.HasErrors() {
			first := list.First()
			return nil, &ExtractError{File: path, Phase: PhaseParse, Line: first.Location.Line, Message: list.Error()}
		}
		return nil, &ExtractError{File: path, Phase: PhaseParse, Message: err.Error()}
	}

	phase = PhaseExtract
	return x.extractProgram(path, prog, modTime), nil
}

func (x *Extractor) parse(ctx context.Context, path string, content []byte) (*parser.Program, error) {
	sum := sha256.Sum256(content)
	key := path + "\x00" + hex.EncodeToString(sum[:])
	if prog, ok := x.cache.Get(key); ok {
		x.logger.Debug("parse cache hit", zap.String("path", path))
		return prog, nil
	}
	prog, err := parser.Parse(ctx, path, content)
	if err != nil {
		return nil, err
	}
	x.cache.Add(key, prog)
	return prog, nil
}

func (x *Extractor) extractProgram(path string, prog *parser.Program, modTime time.Time) []metadata.ComponentMetadata {
	f := newFileScope(prog)
	candidates := f.candidates()
	if len(candidates) == 0 {
		return []metadata.ComponentMetadata{}
	}

	seen := make(map[string]bool, len(candidates))
	kept := candidates[:0]
	for _, c := range candidates {
		if c.name == "" {
			c.name = anonymousName(path)
		}
		if seen[c.name] {
			x.logger.Warn("duplicate component name dropped",
				zap.String("path", path),
				zap.String("name", c.name),
				zap.Int("line", c.decl.Loc().Line),
			)
			continue
		}
		seen[c.name] = true
		kept = append(kept, c)
	}

	primary := 0
	for i, c := range kept {
		if c.isDefault {
			primary = i
			break
		}
	}

	deps, resolved, external := x.classifyImports(path, prog.Imports)
	category := x.categoryFor(path)

	out := make([]metadata.ComponentMetadata, 0, len(kept))
	build := func(c *candidate, key string) metadata.ComponentMetadata {
		doc := parseDoc(c.doc)
		m := metadata.ComponentMetadata{
			Path:                 key,
			SourceFile:           path,
			Name:                 c.name,
			Category:             category,
			Description:          doc.Description,
			Exports:              c.exports,
			Props:                f.props(c),
			Examples:             doc.Examples(),
			Dependencies:         append([]string(nil), deps...),
			ResolvedDependencies: append([]string(nil), resolved...),
			ExternalDependencies: append([]string(nil), external...),
			LastUpdated:          modTime,
		}
		m.Normalize()
		return m
	}

	out = append(out, build(kept[primary], path))
	for i, c := range kept {
		if i == primary {
			continue
		}
		out = append(out, build(c, metadata.SecondaryPath(path, c.name)))
	}
	return out
}

// categoryFor returns the category of the first directory segment of path
// that appears in the category map.
func (x *Extractor) categoryFor(path string) metadata.Category {
	dir := filepath.ToSlash(filepath.Dir(path))
	for _, segment := range strings.Split(dir, "/") {
		if c, ok := x.cfg.Categories[strings.ToLower(segment)]; ok {
			return c
		}
	}
	return metadata.CategoryAtom
}

// anonymousName names an anonymous default export after its file, or after
// its directory for index files.
func anonymousName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "index" {
		return filepath.Base(filepath.Dir(path))
	}
	return name
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
