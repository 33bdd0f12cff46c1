package extract

import (
	"github.com/conduit-lang/catalog/compiler/parser"
	"github.com/conduit-lang/catalog/runtime/metadata"
)

const maxTypeDepth = 8

// Annotations whose first type argument is the props type
var propsCarriers = map[string]bool{
	"FC":                      true,
	"React.FC":                true,
	"VFC":                     true,
	"React.VFC":               true,
	"FunctionComponent":       true,
	"React.FunctionComponent": true,
	"ComponentType":           true,
	"React.ComponentType":     true,
	"PropsWithChildren":       true,
	"React.PropsWithChildren": true,
}

// props resolves the prop definitions of c. The props type is looked up in
// order: a local declaration named by the first parameter's annotation, the
// declaration named <Name>Props, an inline annotation, then the type
// arguments of an FC annotation, a wrapper call or a component superclass.
func (f *fileScope) props(c *candidate) []metadata.PropDefinition {
	var first *parser.Param
	if len(c.params) > 0 {
		first = c.params[0]
	}

	members, ok := f.localPropsType(first)
	if !ok {
		members, ok = f.namedProps(c.name)
	}
	if !ok && first != nil && first.Type != nil {
		members, ok = f.members(first.Type, 0)
	}
	if !ok {
		members, ok = f.carriedProps(c.decl)
	}

	defaults := patternDefaults(first)
	if !ok {
		return fromPattern(first)
	}

	declared := f.defaultProps[c.name]
	props := make([]metadata.PropDefinition, 0, len(members))
	for _, m := range members {
		doc := parseDoc(m.Doc)
		p := metadata.PropDefinition{
			Name:        m.Name,
			Type:        parser.RenderType(m.Type),
			Required:    !m.Optional,
			Description: doc.Description,
		}
		if v, ok := defaults[m.Name]; ok {
			p.DefaultValue = v
		} else if v, ok := doc.Default(); ok {
			p.DefaultValue = v
		} else {
			for _, dp := range declared {
				if dp.Name == m.Name {
					p.DefaultValue = dp.Value
					break
				}
			}
		}
		if p.DefaultValue != "" {
			p.Required = false
		}
		props = append(props, p)
	}
	return props
}

func (f *fileScope) localPropsType(first *parser.Param) ([]*parser.PropertySignature, bool) {
	if first == nil || first.Type == nil || first.Type.Kind != parser.TypeRef {
		return nil, false
	}
	if f.prog.TypeDecl(first.Type.Name) == nil {
		return nil, false
	}
	return f.members(first.Type, 0)
}

func (f *fileScope) namedProps(name string) ([]*parser.PropertySignature, bool) {
	if name == "" || f.prog.TypeDecl(name+"Props") == nil {
		return nil, false
	}
	return f.members(&parser.TypeExpr{Kind: parser.TypeRef, Name: name + "Props"}, 0)
}

func (f *fileScope) carriedProps(d parser.Decl) ([]*parser.PropertySignature, bool) {
	switch t := d.(type) {
	case *parser.VariableDecl:
		if ann := t.Annotation; ann != nil && ann.Kind == parser.TypeGeneric && propsCarriers[ann.Name] && len(ann.Args) > 0 {
			if members, ok := f.members(ann.Args[0], 0); ok {
				return members, true
			}
		}
		if len(t.WrapperArgs) > 0 && len(t.Wrappers) > 0 {
			arg := t.WrapperArgs[0]
			if t.Wrappers[len(t.Wrappers)-1] == "forwardRef" {
				if len(t.WrapperArgs) < 2 {
					return nil, false
				}
				arg = t.WrapperArgs[1]
			}
			return f.members(arg, 0)
		}
	case *parser.ClassDecl:
		if len(t.SuperTypeArgs) > 0 {
			return f.members(t.SuperTypeArgs[0], 0)
		}
	}
	return nil, false
}

// members flattens a props type into its property signatures. Later members
// replace earlier ones of the same name in place.
func (f *fileScope) members(t *parser.TypeExpr, depth int) ([]*parser.PropertySignature, bool) {
	if t == nil || depth > maxTypeDepth {
		return nil, false
	}
	switch t.Kind {
	case parser.TypeObject:
		return t.Members, true

	case parser.TypeRef:
		switch d := f.prog.TypeDecl(t.Name).(type) {
		case *parser.InterfaceDecl:
			var out []*parser.PropertySignature
			for _, ext := range d.Extends {
				if inherited, ok := f.members(ext, depth+1); ok {
					out = merge(out, inherited)
				}
			}
			return merge(out, d.Members), true
		case *parser.TypeAliasDecl:
			return f.members(d.Value, depth+1)
		}

	case parser.TypeIntersection:
		var out []*parser.PropertySignature
		found := false
		for _, e := range t.Elements {
			if m, ok := f.members(e, depth+1); ok {
				out = merge(out, m)
				found = true
			}
		}
		return out, found

	case parser.TypeGeneric:
		if propsCarriers[t.Name] && len(t.Args) > 0 {
			return f.members(t.Args[0], depth+1)
		}
	}
	return nil, false
}

func merge(base, more []*parser.PropertySignature) []*parser.PropertySignature {
	for _, m := range more {
		replaced := false
		for i, b := range base {
			if b.Name == m.Name {
				base[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			base = append(base, m)
		}
	}
	return base
}

func patternDefaults(first *parser.Param) map[string]string {
	defaults := make(map[string]string)
	if first == nil || first.Pattern != parser.PatternObject {
		return defaults
	}
	for _, field := range first.Fields {
		if field.HasDefault && !field.Rest {
			defaults[field.Name] = field.Default
		}
	}
	return defaults
}

// fromPattern derives untyped props from a destructuring pattern when no
// props type can be resolved.
func fromPattern(first *parser.Param) []metadata.PropDefinition {
	if first == nil || first.Pattern != parser.PatternObject {
		return nil
	}
	var props []metadata.PropDefinition
	for _, field := range first.Fields {
		if field.Rest || field.Name == "" {
			continue
		}
		props = append(props, metadata.PropDefinition{
			Name:         field.Name,
			Type:         "any",
			DefaultValue: field.Default,
		})
	}
	return props
}
