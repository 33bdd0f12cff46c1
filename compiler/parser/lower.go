package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// lowerProgram walks the top-level statements of a syntax tree. A `/** */`
// comment stays pending across plain comments and attaches to the next
// statement.
func (p *Parser) lowerProgram(root *sitter.Node) *Program {
	prog := &Program{
		File:     p.file,
		Location: SourceLocation{File: p.file, Line: 1, Column: 1},
	}

	doc := ""
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "comment" {
			if text := p.text(n); strings.HasPrefix(text, "/**") {
				doc = text
			}
			continue
		}

		switch n.Type() {
		case "import_statement":
			if imp := p.lowerImport(n); imp != nil {
				prog.Imports = append(prog.Imports, imp)
			}
		case "export_statement":
			prog.Decls = append(prog.Decls, p.lowerExport(n, doc)...)
		case "expression_statement":
			if d := p.lowerDefaultProps(n); d != nil {
				prog.Decls = append(prog.Decls, d)
			}
		default:
			prog.Decls = append(prog.Decls, p.lowerDeclaration(n, NotExported, doc)...)
		}
		doc = ""
	}
	return prog
}

func (p *Parser) lowerExport(n *sitter.Node, doc string) []Decl {
	mode := ExportNamed
	typeOnly := false
	for i := 0; i < int(n.ChildCount()); i++ {
		switch n.Child(i).Type() {
		case "default":
			mode = ExportDefault
		case "type":
			typeOnly = true
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		return p.lowerDeclaration(decl, mode, doc)
	}
	if value := n.ChildByFieldName("value"); value != nil {
		return p.lowerDefaultValue(value, n, doc)
	}

	list := &ExportListDecl{TypeOnly: typeOnly, Location: p.loc(n)}
	if src := n.ChildByFieldName("source"); src != nil {
		list.Source = unquote(p.text(src))
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "export_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			spec := clause.NamedChild(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			local := p.fieldText(spec, "name")
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = p.text(alias)
			}
			list.Specifiers = append(list.Specifiers, ExportSpecifier{Local: local, Exported: exported})
		}
	}
	if len(list.Specifiers) == 0 && list.Source == "" {
		return nil
	}
	return []Decl{list}
}

// lowerDefaultValue handles `export default <expression>`.
func (p *Parser) lowerDefaultValue(value, stmt *sitter.Node, doc string) []Decl {
	switch value.Type() {
	case "identifier":
		return []Decl{&ExportListDecl{
			Specifiers: []ExportSpecifier{{Local: p.text(value), Exported: "default"}},
			Location:   p.loc(stmt),
		}}
	case "arrow_function", "function_expression", "function", "generator_function":
		return []Decl{&FunctionDecl{
			Name:     p.fieldText(value, "name"),
			Export:   ExportDefault,
			Doc:      doc,
			Params:   p.functionParams(value),
			Location: p.loc(stmt),
		}}
	case "class":
		return []Decl{p.lowerClass(value, ExportDefault, doc)}
	case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
		if inner := value.NamedChild(0); inner != nil {
			return p.lowerDefaultValue(inner, stmt, doc)
		}
	case "call_expression":
		wrappers, _, fn := p.unwrapCall(value)
		if fn == nil {
			return nil
		}
		if fn.Type() == "identifier" {
			return []Decl{&ExportListDecl{
				Specifiers: []ExportSpecifier{{Local: p.text(fn), Exported: "default"}},
				Location:   p.loc(stmt),
			}}
		}
		if len(wrappers) > 0 && isFunctionNode(fn) {
			return []Decl{&FunctionDecl{
				Name:     p.fieldText(fn, "name"),
				Export:   ExportDefault,
				Doc:      doc,
				Params:   p.functionParams(fn),
				Location: p.loc(stmt),
			}}
		}
	}
	return nil
}

func (p *Parser) lowerDeclaration(n *sitter.Node, mode ExportMode, doc string) []Decl {
	switch n.Type() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		return []Decl{&FunctionDecl{
			Name:     p.fieldText(n, "name"),
			Export:   mode,
			Doc:      doc,
			Params:   p.functionParams(n),
			Location: p.loc(n),
		}}

	case "class_declaration", "abstract_class_declaration", "class":
		return []Decl{p.lowerClass(n, mode, doc)}

	case "lexical_declaration", "variable_declaration":
		var decls []Decl
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "variable_declarator" {
				continue
			}
			if v := p.lowerVariable(c, mode, doc); v != nil {
				decls = append(decls, v)
			}
		}
		return decls

	case "interface_declaration":
		decl := &InterfaceDecl{
			Name:     p.fieldText(n, "name"),
			Export:   mode,
			Doc:      doc,
			Location: p.loc(n),
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "extends_type_clause" {
				for j := 0; j < int(c.NamedChildCount()); j++ {
					decl.Extends = append(decl.Extends, p.lowerType(c.NamedChild(j)))
				}
			}
		}
		if body := n.ChildByFieldName("body"); body != nil {
			decl.Members = p.lowerMembers(body)
		}
		return []Decl{decl}

	case "type_alias_declaration":
		return []Decl{&TypeAliasDecl{
			Name:     p.fieldText(n, "name"),
			Export:   mode,
			Doc:      doc,
			Value:    p.lowerType(n.ChildByFieldName("value")),
			Location: p.loc(n),
		}}
	}
	return nil
}

func (p *Parser) lowerClass(n *sitter.Node, mode ExportMode, doc string) *ClassDecl {
	decl := &ClassDecl{
		Name:     p.fieldText(n, "name"),
		Export:   mode,
		Doc:      doc,
		Location: p.loc(n),
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		heritage := n.NamedChild(i)
		if heritage.Type() != "class_heritage" {
			continue
		}
		for j := 0; j < int(heritage.NamedChildCount()); j++ {
			ext := heritage.NamedChild(j)
			if ext.Type() != "extends_clause" {
				continue
			}
			value := ext.ChildByFieldName("value")
			if value == nil {
				value = ext.NamedChild(0)
			}
			if value != nil {
				decl.SuperClass = p.text(value)
			}
			typeArgs := ext.ChildByFieldName("type_arguments")
			if typeArgs == nil {
				typeArgs = childOfType(ext, "type_arguments")
			}
			decl.SuperTypeArgs = p.typeArguments(typeArgs)
		}
	}
	return decl
}

func (p *Parser) lowerVariable(n *sitter.Node, mode ExportMode, doc string) *VariableDecl {
	name := n.ChildByFieldName("name")
	if name == nil || name.Type() != "identifier" {
		return nil
	}
	decl := &VariableDecl{
		Name:     p.text(name),
		Export:   mode,
		Doc:      doc,
		Location: p.loc(n),
	}
	if ann := n.ChildByFieldName("type"); ann != nil {
		decl.Annotation = p.lowerTypeAnnotation(ann)
	}

	value := unwrapExpression(n.ChildByFieldName("value"))
	switch {
	case value == nil:
	case isFunctionNode(value):
		decl.Init = InitFunction
		decl.Params = p.functionParams(value)
	case value.Type() == "call_expression":
		wrappers, args, fn := p.unwrapCall(value)
		if len(wrappers) > 0 && fn != nil && isFunctionNode(fn) {
			decl.Init = InitWrapped
			decl.Wrappers = wrappers
			decl.WrapperArgs = args
			decl.Params = p.functionParams(fn)
		}
	}
	return decl
}

// unwrapCall follows a chain of single-function wrapper calls such as
// memo(forwardRef<Ref, Props>((props, ref) => ...)). It returns the wrapper
// names outermost first, the type arguments of the innermost call and the
// wrapped expression.
func (p *Parser) unwrapCall(call *sitter.Node) ([]string, []*TypeExpr, *sitter.Node) {
	var wrappers []string
	var typeArgs []*TypeExpr
	cur := call
	for cur != nil && cur.Type() == "call_expression" {
		callee := cur.ChildByFieldName("function")
		if callee == nil {
			return wrappers, typeArgs, nil
		}
		wrappers = append(wrappers, lastSegment(p.text(callee)))
		typeArgs = p.typeArguments(cur.ChildByFieldName("type_arguments"))

		args := cur.ChildByFieldName("arguments")
		if args == nil || args.NamedChildCount() == 0 {
			return wrappers, typeArgs, nil
		}
		cur = unwrapExpression(args.NamedChild(0))
	}
	return wrappers, typeArgs, cur
}

func (p *Parser) functionParams(fn *sitter.Node) []*Param {
	if single := fn.ChildByFieldName("parameter"); single != nil {
		return []*Param{{Pattern: PatternIdentifier, Name: p.text(single)}}
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var out []*Param
	for i := 0; i < int(params.NamedChildCount()); i++ {
		c := params.NamedChild(i)
		if c.Type() != "required_parameter" && c.Type() != "optional_parameter" {
			continue
		}
		param := &Param{Pattern: PatternOther}
		if pattern := c.ChildByFieldName("pattern"); pattern != nil {
			switch pattern.Type() {
			case "identifier":
				param.Pattern = PatternIdentifier
				param.Name = p.text(pattern)
			case "object_pattern":
				param.Pattern = PatternObject
				param.Fields = p.lowerObjectPattern(pattern)
			}
		}
		if ann := c.ChildByFieldName("type"); ann != nil {
			param.Type = p.lowerTypeAnnotation(ann)
		}
		out = append(out, param)
	}
	return out
}

func (p *Parser) lowerObjectPattern(n *sitter.Node) []PatternField {
	var fields []PatternField
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "shorthand_property_identifier_pattern":
			fields = append(fields, PatternField{Name: p.text(c)})

		case "object_assignment_pattern":
			field := PatternField{Name: p.fieldText(c, "left")}
			if right := c.ChildByFieldName("right"); right != nil {
				field.Default = p.text(right)
				field.HasDefault = true
			}
			fields = append(fields, field)

		case "pair_pattern":
			field := PatternField{Name: unquote(p.fieldText(c, "key"))}
			if value := c.ChildByFieldName("value"); value != nil && value.Type() == "assignment_pattern" {
				if right := value.ChildByFieldName("right"); right != nil {
					field.Default = p.text(right)
					field.HasDefault = true
				}
			}
			fields = append(fields, field)

		case "rest_pattern":
			name := ""
			if id := c.NamedChild(0); id != nil {
				name = p.text(id)
			}
			fields = append(fields, PatternField{Name: name, Rest: true})
		}
	}
	return fields
}

func (p *Parser) lowerTypeAnnotation(n *sitter.Node) *TypeExpr {
	if n == nil {
		return nil
	}
	if n.Type() == "type_annotation" {
		return p.lowerType(n.NamedChild(0))
	}
	return p.lowerType(n)
}

func (p *Parser) lowerType(n *sitter.Node) *TypeExpr {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "predefined_type", "undefined", "this_type":
		return &TypeExpr{Kind: TypeKeyword, Name: p.text(n)}

	case "type_identifier", "nested_type_identifier", "identifier":
		return &TypeExpr{Kind: TypeRef, Name: collapseSpace(p.text(n))}

	case "generic_type":
		return &TypeExpr{
			Kind: TypeGeneric,
			Name: collapseSpace(p.fieldText(n, "name")),
			Args: p.typeArguments(n.ChildByFieldName("type_arguments")),
		}

	case "union_type":
		return &TypeExpr{Kind: TypeUnion, Elements: p.flatten(n, "union_type")}

	case "intersection_type":
		return &TypeExpr{Kind: TypeIntersection, Elements: p.flatten(n, "intersection_type")}

	case "array_type":
		return &TypeExpr{Kind: TypeArray, Elem: p.lowerType(n.NamedChild(0))}

	case "tuple_type":
		t := &TypeExpr{Kind: TypeTuple}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			t.Elements = append(t.Elements, p.lowerType(n.NamedChild(i)))
		}
		return t

	case "literal_type":
		return &TypeExpr{Kind: TypeLiteral, Text: p.text(n)}

	case "object_type":
		return &TypeExpr{Kind: TypeObject, Members: p.lowerMembers(n)}

	case "function_type":
		return &TypeExpr{
			Kind:   TypeFunction,
			Params: p.funcTypeParams(n.ChildByFieldName("parameters")),
			Return: p.lowerTypeAnnotation(n.ChildByFieldName("return_type")),
		}

	case "parenthesized_type":
		return p.lowerType(n.NamedChild(0))

	case "type_annotation":
		return p.lowerTypeAnnotation(n)
	}
	return &TypeExpr{Kind: TypeRaw, Text: p.text(n)}
}

// flatten collects the operands of a left-nested binary type operator so
// that A | B | C lowers to a single three-element union.
func (p *Parser) flatten(n *sitter.Node, kind string) []*TypeExpr {
	var out []*TypeExpr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == kind {
			out = append(out, p.flatten(c, kind)...)
			continue
		}
		out = append(out, p.lowerType(c))
	}
	return out
}

func (p *Parser) typeArguments(n *sitter.Node) []*TypeExpr {
	if n == nil {
		return nil
	}
	var args []*TypeExpr
	for i := 0; i < int(n.NamedChildCount()); i++ {
		args = append(args, p.lowerType(n.NamedChild(i)))
	}
	return args
}

func (p *Parser) funcTypeParams(n *sitter.Node) []*FuncParam {
	if n == nil {
		return nil
	}
	var out []*FuncParam
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "required_parameter" && c.Type() != "optional_parameter" {
			continue
		}
		fp := &FuncParam{Optional: c.Type() == "optional_parameter"}
		if pattern := c.ChildByFieldName("pattern"); pattern != nil {
			if pattern.Type() == "rest_pattern" {
				fp.Rest = true
				if id := pattern.NamedChild(0); id != nil {
					fp.Name = p.text(id)
				}
			} else {
				fp.Name = p.text(pattern)
			}
		}
		if ann := c.ChildByFieldName("type"); ann != nil {
			fp.Type = p.lowerTypeAnnotation(ann)
		}
		out = append(out, fp)
	}
	return out
}

// lowerMembers lowers the property and method signatures of an object type
// or interface body. Doc comments attach to the following member.
func (p *Parser) lowerMembers(body *sitter.Node) []*PropertySignature {
	var members []*PropertySignature
	doc := ""
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		switch c.Type() {
		case "comment":
			if text := p.text(c); strings.HasPrefix(text, "/**") {
				doc = text
			}
			continue

		case "property_signature":
			members = append(members, &PropertySignature{
				Name:     unquote(p.fieldText(c, "name")),
				Optional: childOfType(c, "?") != nil,
				Type:     p.lowerTypeAnnotation(c.ChildByFieldName("type")),
				Doc:      doc,
				Location: p.loc(c),
			})

		case "method_signature":
			members = append(members, &PropertySignature{
				Name:     unquote(p.fieldText(c, "name")),
				Optional: childOfType(c, "?") != nil,
				Type: &TypeExpr{
					Kind:   TypeFunction,
					Params: p.funcTypeParams(c.ChildByFieldName("parameters")),
					Return: p.lowerTypeAnnotation(c.ChildByFieldName("return_type")),
				},
				Doc:      doc,
				Location: p.loc(c),
			})
		}
		doc = ""
	}
	return members
}

func (p *Parser) lowerImport(n *sitter.Node) *ImportDecl {
	src := n.ChildByFieldName("source")
	if src == nil {
		return nil
	}
	imp := &ImportDecl{
		Source:   unquote(p.text(src)),
		TypeOnly: childOfType(n, "type") != nil,
		Location: p.loc(n),
	}
	clause := childOfType(n, "import_clause")
	if clause == nil {
		return imp
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			imp.Default = p.text(c)
		case "namespace_import":
			if id := c.NamedChild(0); id != nil {
				imp.Namespace = p.text(id)
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				imported := p.fieldText(spec, "name")
				local := imported
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = p.text(alias)
				}
				imp.Named = append(imp.Named, ImportSpecifier{Imported: imported, Local: local})
			}
		}
	}
	return imp
}

// lowerDefaultProps recognizes `Name.defaultProps = { ... }`.
func (p *Parser) lowerDefaultProps(n *sitter.Node) Decl {
	assign := n.NamedChild(0)
	if assign == nil || assign.Type() != "assignment_expression" {
		return nil
	}
	left := assign.ChildByFieldName("left")
	if left == nil || left.Type() != "member_expression" || p.fieldText(left, "property") != "defaultProps" {
		return nil
	}
	right := unwrapExpression(assign.ChildByFieldName("right"))
	if right == nil || right.Type() != "object" {
		return nil
	}

	decl := &DefaultPropsDecl{Target: p.fieldText(left, "object"), Location: p.loc(n)}
	for i := 0; i < int(right.NamedChildCount()); i++ {
		c := right.NamedChild(i)
		switch c.Type() {
		case "pair":
			decl.Values = append(decl.Values, PropValue{
				Name:  unquote(p.fieldText(c, "key")),
				Value: p.fieldText(c, "value"),
			})
		case "shorthand_property_identifier":
			decl.Values = append(decl.Values, PropValue{Name: p.text(c), Value: p.text(c)})
		}
	}
	return decl
}

func (p *Parser) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(p.source)
}

func (p *Parser) fieldText(n *sitter.Node, field string) string {
	return p.text(n.ChildByFieldName(field))
}

func (p *Parser) loc(n *sitter.Node) SourceLocation {
	return locationOf(n, p.file)
}

func isFunctionNode(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// unwrapExpression strips parentheses and type assertions around a value.
func unwrapExpression(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
			n = n.NamedChild(0)
		default:
			return n
		}
	}
	return nil
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'' || first == '`') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}
