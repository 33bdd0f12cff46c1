package parser

import (
	"strings"
)

// RenderType renders a type expression as a canonical string. The same type
// tree always renders to the same string: members are joined with fixed
// separators and source whitespace never leaks into the output.
func RenderType(t *TypeExpr) string {
	if t == nil {
		return "any"
	}
	var b strings.Builder
	renderType(&b, t)
	return b.String()
}

func renderType(b *strings.Builder, t *TypeExpr) {
	switch t.Kind {
	case TypeKeyword, TypeRef:
		b.WriteString(t.Name)

	case TypeGeneric:
		b.WriteString(t.Name)
		b.WriteByte('<')
		for i, arg := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			renderType(b, arg)
		}
		b.WriteByte('>')

	case TypeUnion:
		renderJoined(b, t.Elements, " | ", func(e *TypeExpr) bool {
			return e.Kind == TypeFunction
		})

	case TypeIntersection:
		renderJoined(b, t.Elements, " & ", func(e *TypeExpr) bool {
			return e.Kind == TypeFunction || e.Kind == TypeUnion
		})

	case TypeArray:
		wrap := t.Elem != nil && (t.Elem.Kind == TypeUnion || t.Elem.Kind == TypeIntersection || t.Elem.Kind == TypeFunction)
		if wrap {
			b.WriteByte('(')
		}
		if t.Elem == nil {
			b.WriteString("any")
		} else {
			renderType(b, t.Elem)
		}
		if wrap {
			b.WriteByte(')')
		}
		b.WriteString("[]")

	case TypeTuple:
		b.WriteByte('[')
		for i, e := range t.Elements {
			if i > 0 {
				b.WriteString(", ")
			}
			renderType(b, e)
		}
		b.WriteByte(']')

	case TypeLiteral:
		b.WriteString(t.Text)

	case TypeObject:
		if len(t.Members) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{ ")
		for i, m := range t.Members {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(m.Name)
			if m.Optional {
				b.WriteByte('?')
			}
			b.WriteString(": ")
			b.WriteString(RenderType(m.Type))
		}
		b.WriteString(" }")

	case TypeFunction:
		b.WriteByte('(')
		for i, p := range t.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			if p.Rest {
				b.WriteString("...")
			}
			b.WriteString(p.Name)
			if p.Optional {
				b.WriteByte('?')
			}
			if p.Type != nil {
				b.WriteString(": ")
				renderType(b, p.Type)
			}
		}
		b.WriteString(") => ")
		if t.Return == nil {
			b.WriteString("void")
		} else {
			renderType(b, t.Return)
		}

	case TypeRaw:
		b.WriteString(collapseSpace(t.Text))

	default:
		b.WriteString(collapseSpace(t.Text))
	}
}

func renderJoined(b *strings.Builder, elems []*TypeExpr, sep string, needsParens func(*TypeExpr) bool) {
	for i, e := range elems {
		if i > 0 {
			b.WriteString(sep)
		}
		if needsParens(e) {
			b.WriteByte('(')
			renderType(b, e)
			b.WriteByte(')')
			continue
		}
		renderType(b, e)
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
