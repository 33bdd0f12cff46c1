package extract

import (
	"sort"
	"unicode"

	"github.com/conduit-lang/catalog/compiler/jsdoc"
	"github.com/conduit-lang/catalog/compiler/parser"
)

// candidate is an exported declaration shaped like a component
type candidate struct {
	name      string
	decl      parser.Decl
	doc       string
	params    []*parser.Param
	exports   []string
	isDefault bool
}

func (c *candidate) addExport(name string) {
	for _, e := range c.exports {
		if e == name {
			return
		}
	}
	c.exports = append(c.exports, name)
	if name == "default" {
		c.isDefault = true
	}
}

// fileScope indexes the declarations of one program
type fileScope struct {
	prog         *parser.Program
	locals       map[string]parser.Decl
	defaultProps map[string][]parser.PropValue
}

func newFileScope(prog *parser.Program) *fileScope {
	f := &fileScope{
		prog:         prog,
		locals:       make(map[string]parser.Decl),
		defaultProps: make(map[string][]parser.PropValue),
	}
	for _, d := range prog.Decls {
		if dp, ok := d.(*parser.DefaultPropsDecl); ok {
			f.defaultProps[dp.Target] = append(f.defaultProps[dp.Target], dp.Values...)
			continue
		}
		name, ok := componentShape(d)
		if !ok || name == "" {
			continue
		}
		if _, exists := f.locals[name]; !exists {
			f.locals[name] = d
		}
	}
	return f
}

// componentShape reports whether d can declare a component and returns its
// declared name.
func componentShape(d parser.Decl) (string, bool) {
	switch t := d.(type) {
	case *parser.FunctionDecl:
		return t.Name, true
	case *parser.ClassDecl:
		return t.Name, true
	case *parser.VariableDecl:
		return t.Name, t.Init != parser.InitOther
	}
	return "", false
}

// candidates returns the component candidates of the file ordered by
// declaration position.
func (f *fileScope) candidates() []*candidate {
	byDecl := make(map[parser.Decl]*candidate)
	var out []*candidate

	get := func(d parser.Decl) *candidate {
		if c, ok := byDecl[d]; ok {
			return c
		}
		name, _ := componentShape(d)
		c := &candidate{name: name, decl: d}
		switch t := d.(type) {
		case *parser.FunctionDecl:
			c.doc, c.params = t.Doc, t.Params
		case *parser.ClassDecl:
			c.doc = t.Doc
		case *parser.VariableDecl:
			c.doc, c.params = t.Doc, t.Params
		}
		byDecl[d] = c
		out = append(out, c)
		return c
	}

	for _, d := range f.prog.Decls {
		if list, ok := d.(*parser.ExportListDecl); ok {
			if list.Source != "" || list.TypeOnly {
				continue
			}
			for _, spec := range list.Specifiers {
				local, ok := f.locals[spec.Local]
				if !ok {
					continue
				}
				if spec.Exported != "default" && !isComponentName(spec.Exported) && !isComponentName(spec.Local) {
					continue
				}
				get(local).addExport(spec.Exported)
			}
			continue
		}

		name, ok := componentShape(d)
		if !ok {
			continue
		}
		switch exportMode(d) {
		case parser.ExportDefault:
			get(d).addExport("default")
		case parser.ExportNamed:
			if isComponentName(name) {
				get(d).addExport(name)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].decl.Loc(), out[j].decl.Loc()
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}

func exportMode(d parser.Decl) parser.ExportMode {
	switch t := d.(type) {
	case *parser.FunctionDecl:
		return t.Export
	case *parser.ClassDecl:
		return t.Export
	case *parser.VariableDecl:
		return t.Export
	}
	return parser.NotExported
}

// isComponentName filters named exports to PascalCase identifiers so hooks
// and helpers exported next to a component are not registered.
func isComponentName(name string) bool {
	for _, r := range name {
		return unicode.IsUpper(r)
	}
	return false
}

func parseDoc(raw string) *jsdoc.Comment {
	if raw == "" {
		return &jsdoc.Comment{}
	}
	return jsdoc.Parse(raw)
}
