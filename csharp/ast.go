package csharp

// C# output AST types represent the structure of generated binding sources.
// The generator builds a File tree; the printer serializes it to C# text.

// --- Interfaces ---

// Decl is a namespace-level declaration (class, delegate, raw code).
type Decl interface{ csDecl() }

// Member is a declaration inside a class body.
type Member interface{ csMember() }

// Stmt is a statement inside a method or accessor body.
type Stmt interface{ csStmt() }

// Expr is an expression.
type Expr interface{ csExpr() }

// --- File level ---

// File represents a complete C# source file.
type File struct {
	Header     []string // leading // comment lines
	Usings     []string
	Namespaces []*Namespace
}

// Namespace represents: namespace Name { decls }
type Namespace struct {
	Name  string
	Decls []Decl
}

// Attribute represents: [Name (args)]. Args are rendered verbatim.
type Attribute struct {
	Name string
	Args []string
}

// Param represents a method or delegate parameter.
type Param struct {
	Modifier string // "out", "ref", "params" or empty
	Type     string
	Name     string
}

// --- Declaration level ---

// Class represents: [attrs] modifiers class Name : bases { members }
type Class struct {
	Attributes []Attribute
	Modifiers  []string
	Name       string
	Bases      []string
	Members    []Member
}

func (*Class) csDecl()   {}
func (*Class) csMember() {}

// Delegate represents: modifiers delegate Return Name (params);
type Delegate struct {
	Attributes []Attribute
	Modifiers  []string
	Return     string
	Name       string
	Params     []Param
}

func (*Delegate) csDecl()   {}
func (*Delegate) csMember() {}

// RawDecl is an escape hatch for raw code at declaration or member level.
type RawDecl struct {
	Code string
}

func (RawDecl) csDecl()   {}
func (RawDecl) csMember() {}

// --- Member level ---

// Field represents: [attrs] modifiers Type Name [= Init];
type Field struct {
	Attributes []Attribute
	Modifiers  []string
	Type       string
	Name       string
	Init       Expr // nil for uninitialized
}

func (*Field) csMember() {}

// Method represents a method or constructor. A constructor has an empty
// Return. Body nil renders a declaration terminated by ';' (abstract or
// extern members).
type Method struct {
	Attributes  []Attribute
	Modifiers   []string
	Return      string
	Name        string
	Params      []Param
	Initializer string // ": base (handle)" without the colon
	Body        []Stmt
}

func (*Method) csMember() {}

// Accessor is a get/set/add/remove block. Body nil renders "get;".
type Accessor struct {
	Attributes []Attribute
	Body       []Stmt
}

// Property represents: [attrs] modifiers Type Name { get {..} set {..} }
type Property struct {
	Attributes []Attribute
	Modifiers  []string
	Type       string
	Name       string
	Get        *Accessor
	Set        *Accessor
}

func (*Property) csMember() {}

// Event represents: modifiers event Type Name { add {..} remove {..} }
type Event struct {
	Attributes []Attribute
	Modifiers  []string
	Type       string
	Name       string
	Add        []Stmt
	Remove     []Stmt
}

func (*Event) csMember() {}

// Pragma represents: #pragma text. Valid at every level.
type Pragma struct {
	Text string
}

func (Pragma) csDecl()   {}
func (Pragma) csMember() {}
func (Pragma) csStmt()   {}

// Comment represents: // text
type Comment struct {
	Text string
}

func (Comment) csDecl()   {}
func (Comment) csMember() {}
func (Comment) csStmt()   {}

// BlankLine emits a blank line.
type BlankLine struct{}

func (BlankLine) csDecl()   {}
func (BlankLine) csMember() {}
func (BlankLine) csStmt()   {}

// --- Statement level ---

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	Expr Expr
}

func (ExprStmt) csStmt() {}

// VarStmt represents: Type Name [= Value]; Type "var" is allowed.
type VarStmt struct {
	Type  string
	Name  string
	Value Expr // nil for a bare declaration
}

func (VarStmt) csStmt() {}

// AssignStmt represents: Target Op Value;
type AssignStmt struct {
	Target string
	Op     string // "=", "+=", "-="
	Value  Expr
}

func (AssignStmt) csStmt() {}

// ReturnStmt represents: return [Value];
type ReturnStmt struct {
	Value Expr // nil for bare return
}

func (ReturnStmt) csStmt() {}

// ThrowStmt represents: throw Value;
type ThrowStmt struct {
	Value Expr
}

func (ThrowStmt) csStmt() {}

// IfStmt represents: if (Cond) { Body } [else { Else }]
// A single-statement body without an else renders without braces.
type IfStmt struct {
	Cond Expr
	Body []Stmt
	Else []Stmt
}

func (IfStmt) csStmt() {}

// ArchBranch selects between the device (ARM) and simulator (x86) ABI at
// run time: if (Runtime.Arch == Arch.DEVICE) { Device } else { Simulator }.
type ArchBranch struct {
	Device    []Stmt
	Simulator []Stmt
}

func (ArchBranch) csStmt() {}

// RawStmt is an escape hatch for raw code at statement level (contract
// snippets). Lines are re-indented to the surrounding block.
type RawStmt struct {
	Code string
}

func (RawStmt) csStmt() {}

// --- Expression level ---

// RawExpr wraps a raw C# expression.
type RawExpr struct {
	Code string
}

func (RawExpr) csExpr() {}

// Ident represents an identifier reference.
type Ident struct {
	Name string
}

func (Ident) csExpr() {}

// StringLit represents a string literal; Value is unescaped.
type StringLit struct {
	Value string
}

func (StringLit) csExpr() {}

// Null represents the null literal.
type Null struct{}

func (Null) csExpr() {}

// Call represents: Func (args). Func may be a dotted path.
type Call struct {
	Func string
	Args []Expr
}

func (Call) csExpr() {}

// New represents: new Type (args)
type New struct {
	Type string
	Args []Expr
}

func (New) csExpr() {}

// Cast represents: (Type) Value
type Cast struct {
	Type  string
	Value Expr
}

func (Cast) csExpr() {}

// Binary represents: Left Op Right
type Binary struct {
	Left  Expr
	Op    string
	Right Expr
}

func (Binary) csExpr() {}

// Cond represents: Cond ? Then : Else
type Cond struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (Cond) csExpr() {}

// MemberAccess represents field or property access: Object.Name
type MemberAccess struct {
	Object Expr
	Name   string
}

func (MemberAccess) csExpr() {}
