package parser

// SourceLocation represents a location in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// Program is the root node of a lowered source file. Decls keeps top-level
// declarations in source order.
type Program struct {
	File     string
	Imports  []*ImportDecl
	Decls    []Decl
	Location SourceLocation
}

// DeclKind tags the payload of a Decl
type DeclKind int

const (
	DeclFunction DeclKind = iota
	DeclClass
	DeclVariable
	DeclInterface
	DeclTypeAlias
	DeclExportList
	DeclDefaultProps
)

// String returns the string representation of the kind
func (k DeclKind) String() string {
	switch k {
	case DeclFunction:
		return "function"
	case DeclClass:
		return "class"
	case DeclVariable:
		return "variable"
	case DeclInterface:
		return "interface"
	case DeclTypeAlias:
		return "type_alias"
	case DeclExportList:
		return "export_list"
	case DeclDefaultProps:
		return "default_props"
	default:
		return "unknown"
	}
}

// Decl is a top-level declaration. The concrete type is determined by Kind.
type Decl interface {
	Kind() DeclKind
	Loc() SourceLocation
}

// ExportMode records how a declaration is exported
type ExportMode int

const (
	NotExported ExportMode = iota
	ExportNamed
	ExportDefault
)

// FunctionDecl is a function declaration or an anonymous default-exported
// function expression (Name is empty then).
type FunctionDecl struct {
	Name     string
	Export   ExportMode
	Doc      string // Raw /** */ comment immediately preceding the declaration
	Params   []*Param
	Location SourceLocation
}

// ClassDecl is a class declaration
type ClassDecl struct {
	Name          string
	Export        ExportMode
	Doc           string
	SuperClass    string      // Source text of the extends expression
	SuperTypeArgs []*TypeExpr // extends Component<Props, State>
	Location      SourceLocation
}

// InitKind classifies a variable initializer
type InitKind int

const (
	InitOther    InitKind = iota
	InitFunction          // arrow function or function expression
	InitWrapped           // forwardRef(...) / memo(...) around a function
)

// VariableDecl is one declarator of a const/let/var statement
type VariableDecl struct {
	Name        string
	Export      ExportMode
	Doc         string
	Annotation  *TypeExpr   // const Button: FC<ButtonProps>
	Init        InitKind
	Wrappers    []string    // Outermost first: ["memo", "forwardRef"]
	WrapperArgs []*TypeExpr // Type arguments of the innermost wrapper call
	Params      []*Param    // Parameters of the (possibly wrapped) function
	Location    SourceLocation
}

// InterfaceDecl is an interface declaration
type InterfaceDecl struct {
	Name     string
	Export   ExportMode
	Doc      string
	Extends  []*TypeExpr
	Members  []*PropertySignature
	Location SourceLocation
}

// TypeAliasDecl is a type alias declaration
type TypeAliasDecl struct {
	Name     string
	Export   ExportMode
	Doc      string
	Value    *TypeExpr
	Location SourceLocation
}

// ExportListDecl is `export { A, B as C }`, `export default X` or a
// re-export with a Source module.
type ExportListDecl struct {
	Specifiers []ExportSpecifier
	Source     string
	TypeOnly   bool
	Location   SourceLocation
}

// ExportSpecifier maps a local name to its exported name
type ExportSpecifier struct {
	Local    string
	Exported string // "default" for `export default X`
}

// DefaultPropsDecl is `X.defaultProps = { ... }`
type DefaultPropsDecl struct {
	Target   string
	Values   []PropValue
	Location SourceLocation
}

// PropValue is one key of a defaultProps object; Value is source text.
type PropValue struct {
	Name  string
	Value string
}

// ImportDecl is an import statement
type ImportDecl struct {
	Source    string
	Default   string
	Namespace string
	Named     []ImportSpecifier
	TypeOnly  bool
	Location  SourceLocation
}

// ImportSpecifier is one entry of a named import list
type ImportSpecifier struct {
	Imported string
	Local    string
}

// PatternKind classifies a parameter binding
type PatternKind int

const (
	PatternIdentifier PatternKind = iota
	PatternObject
	PatternOther
)

// Param is a function parameter
type Param struct {
	Pattern PatternKind
	Name    string         // For PatternIdentifier
	Fields  []PatternField // For PatternObject
	Type    *TypeExpr      // Annotation, nil when absent
}

// PatternField is one binding of an object destructuring pattern
type PatternField struct {
	Name       string // Property name
	Default    string // Source text of the default expression
	HasDefault bool
	Rest       bool
}

// PropertySignature is a member of an interface or object type
type PropertySignature struct {
	Name     string
	Optional bool
	Type     *TypeExpr
	Doc      string
	Location SourceLocation
}

// TypeKind tags the payload of a TypeExpr
type TypeKind int

const (
	TypeKeyword TypeKind = iota
	TypeRef
	TypeGeneric
	TypeUnion
	TypeIntersection
	TypeArray
	TypeTuple
	TypeLiteral
	TypeObject
	TypeFunction
	TypeRaw
)

// TypeExpr is a static type annotation
type TypeExpr struct {
	Kind     TypeKind
	Name     string               // Keyword, Ref, Generic
	Text     string               // Literal, Raw
	Args     []*TypeExpr          // Generic
	Elements []*TypeExpr          // Union, Intersection, Tuple
	Elem     *TypeExpr            // Array
	Members  []*PropertySignature // Object
	Params   []*FuncParam         // Function
	Return   *TypeExpr            // Function
}

// FuncParam is a parameter of a function type
type FuncParam struct {
	Name     string
	Optional bool
	Rest     bool
	Type     *TypeExpr
}

func (d *FunctionDecl) Kind() DeclKind { return DeclFunction }
func (d *ClassDecl) Kind() DeclKind { return DeclClass }
func (d *VariableDecl) Kind() DeclKind { return DeclVariable }
func (d *InterfaceDecl) Kind() DeclKind { return DeclInterface }
func (d *TypeAliasDecl) Kind() DeclKind { return DeclTypeAlias }
func (d *ExportListDecl) Kind() DeclKind { return DeclExportList }
func (d *DefaultPropsDecl) Kind() DeclKind { return DeclDefaultProps }

func (d *FunctionDecl) Loc() SourceLocation { return d.Location }
func (d *ClassDecl) Loc() SourceLocation { return d.Location }
func (d *VariableDecl) Loc() SourceLocation { return d.Location }
func (d *InterfaceDecl) Loc() SourceLocation { return d.Location }
func (d *TypeAliasDecl) Loc() SourceLocation { return d.Location }
func (d *ExportListDecl) Loc() SourceLocation { return d.Location }
func (d *DefaultPropsDecl) Loc() SourceLocation { return d.Location }

// TypeDecl returns the interface or type alias declared under name.
func (p *Program) TypeDecl(name string) Decl {
	for _, d := range p.Decls {
		switch t := d.(type) {
		case *InterfaceDecl:
			if t.Name == name {
				return t
			}
		case *TypeAliasDecl:
			if t.Name == name {
				return t
			}
		}
	}
	return nil
}
