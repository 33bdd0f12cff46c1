package extract

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/conduit-lang/catalog/compiler/parser"
)

// Extensions probed when resolving an import specifier, in order
var resolveExtensions = []string{".tsx", ".ts", ".jsx", ".js"}

// Imports of these files are assets, never components
var assetExtensions = map[string]bool{
	".css": true, ".scss": true, ".sass": true, ".less": true,
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".json": true, ".md": true, ".mdx": true,
}

// classifyImports splits the imports of file into component dependencies
// (relative or under a component-root alias) and external dependencies.
// resolved holds the absolute paths of the dependencies that exist on disk.
func (x *Extractor) classifyImports(file string, imports []*parser.ImportDecl) (deps, resolved, external []string) {
	seenDep := make(map[string]bool)
	seenExt := make(map[string]bool)
	seenRes := make(map[string]bool)

	for _, imp := range imports {
		src := imp.Source
		if src == "" {
			continue
		}
		alias, isAlias := x.aliasFor(src)
		relative := isRelative(src)
		if (!relative && !isAlias) || assetExtensions[strings.ToLower(filepath.Ext(src))] {
			if !seenExt[src] {
				seenExt[src] = true
				external = append(external, src)
			}
			continue
		}

		if !seenDep[src] {
			seenDep[src] = true
			deps = append(deps, src)
		}

		var target string
		if relative {
			target = x.probe(filepath.Join(filepath.Dir(file), filepath.FromSlash(src)))
		} else {
			target = x.resolveAlias(alias, src)
		}
		if target != "" && !seenRes[target] {
			seenRes[target] = true
			resolved = append(resolved, target)
		}
	}
	sort.Strings(resolved)
	return deps, resolved, external
}

// aliasFor returns the longest configured alias that prefixes src.
func (x *Extractor) aliasFor(src string) (string, bool) {
	best := ""
	for alias := range x.cfg.Aliases {
		if (src == alias || strings.HasPrefix(src, alias+"/")) && len(alias) > len(best) {
			best = alias
		}
	}
	return best, best != ""
}

func (x *Extractor) resolveAlias(alias, src string) string {
	rest := filepath.FromSlash(strings.TrimPrefix(strings.TrimPrefix(src, alias), "/"))

	var roots []string
	if dir := x.cfg.Aliases[alias]; dir != "" {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(x.cfg.BaseDir, dir)
		}
		roots = append(roots, dir)
	} else if x.cfg.BaseDir != "" {
		roots = append(roots,
			filepath.Join(x.cfg.BaseDir, "components"),
			filepath.Join(x.cfg.BaseDir, "src", "components"),
		)
	}

	for _, root := range roots {
		if target := x.probe(filepath.Join(root, rest)); target != "" {
			return target
		}
	}
	return ""
}

// probe resolves base to an existing file by trying it verbatim, with each
// known extension, then as a directory index.
func (x *Extractor) probe(base string) string {
	if filepath.Ext(base) != "" && x.exists(base) {
		return absolute(base)
	}
	for _, ext := range resolveExtensions {
		if x.exists(base + ext) {
			return absolute(base + ext)
		}
	}
	for _, ext := range resolveExtensions {
		index := filepath.Join(base, "index"+ext)
		if x.exists(index) {
			return absolute(index)
		}
	}
	return ""
}

func isRelative(src string) bool {
	return src == "." || src == ".." || strings.HasPrefix(src, "./") || strings.HasPrefix(src, "../")
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
