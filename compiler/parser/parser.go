package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const maxReportedErrors = 10

// Parser lowers a tree-sitter syntax tree into a Program
type Parser struct {
	file   string
	source []byte
}

// Parse parses a TypeScript, TSX or JavaScript file. Files containing syntax
// errors yield a ParseErrorList and no Program.
func Parse(ctx context.Context, file string, source []byte) (*Program, error) {
	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(languageFor(file))

	tree, err := sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, collectSyntaxErrors(root, file, source)
	}

	p := &Parser{file: file, source: source}
	return p.lowerProgram(root), nil
}

// languageFor picks the grammar by extension. Plain .ts files use the
// TypeScript grammar because `<T>expr` casts are ambiguous with JSX.
func languageFor(file string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	default:
		return tsx.GetLanguage()
	}
}

func collectSyntaxErrors(root *sitter.Node, file string, source []byte) ParseErrorList {
	var errs ParseErrorList
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || len(errs) >= maxReportedErrors {
			return
		}
		switch {
		case n.IsMissing():
			errs = append(errs, ParseError{
				Message:  fmt.Sprintf("missing %s", n.Type()),
				Location: locationOf(n, file),
			})
			return
		case n.Type() == "ERROR":
			snippet := collapseSpace(n.Content(source))
			if len(snippet) > 40 {
				snippet = snippet[:40] + "..."
			}
			errs = append(errs, ParseError{
				Message:  fmt.Sprintf("unexpected syntax near %q", snippet),
				Location: locationOf(n, file),
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if len(errs) == 0 {
		errs = append(errs, ParseError{Message: "syntax error", Location: SourceLocation{File: file, Line: 1, Column: 1}})
	}
	return errs
}

func locationOf(n *sitter.Node, file string) SourceLocation {
	pt := n.StartPoint()
	return SourceLocation{File: file, Line: int(pt.Row) + 1, Column: int(pt.Column) + 1}
}
