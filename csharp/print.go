package csharp

import (
	"fmt"
	"strings"

	"github.com/mono/maccore/scanner"
)

// Print serializes a File tree to C# source code.
func Print(f *File) string {
	p := &printer{}
	p.printFile(f)
	return p.sb.String()
}

// PrintStmts renders statements at indentation zero. Used by tests and by
// callers that splice bodies into raw declarations.
func PrintStmts(stmts []Stmt) string {
	p := &printer{}
	p.printBody(stmts)
	return p.sb.String()
}

type printer struct {
	sb     strings.Builder
	indent int
}

func (p *printer) line(format string, args ...any) {
	p.writeIndent()
	fmt.Fprintf(&p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) blank() {
	p.sb.WriteByte('\n')
}

func (p *printer) writeIndent() {
	for range p.indent {
		p.sb.WriteByte('\t')
	}
}

func (p *printer) printFile(f *File) {
	for _, h := range f.Header {
		p.line("//%s", prefixSpace(h))
	}
	if len(f.Header) > 0 {
		p.blank()
	}
	for _, u := range f.Usings {
		p.line("using %s;", u)
	}
	if len(f.Usings) > 0 {
		p.blank()
	}
	for i, ns := range f.Namespaces {
		if i > 0 {
			p.blank()
		}
		p.line("namespace %s {", ns.Name)
		p.indent++
		for _, d := range ns.Decls {
			p.printDecl(d)
		}
		p.indent--
		p.line("}")
	}
}

func prefixSpace(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}

func (p *printer) printDecl(d Decl) {
	switch dt := d.(type) {
	case *Class:
		p.printClass(dt)
	case *Delegate:
		p.printDelegate(dt)
	case RawDecl:
		p.printRaw(dt.Code)
	case Pragma:
		p.printPragma(dt)
	case Comment:
		p.line("// %s", dt.Text)
	case BlankLine:
		p.blank()
	}
}

func (p *printer) printMember(m Member) {
	switch mt := m.(type) {
	case *Field:
		p.printAttributes(mt.Attributes)
		decl := joinMods(mt.Modifiers) + mt.Type + " " + mt.Name
		if mt.Init != nil {
			decl += " = " + p.exprStr(mt.Init)
		}
		p.line("%s;", decl)
	case *Method:
		p.printMethod(mt)
	case *Property:
		p.printProperty(mt)
	case *Event:
		p.printEvent(mt)
	case *Class:
		p.printClass(mt)
	case *Delegate:
		p.printDelegate(mt)
	case RawDecl:
		p.printRaw(mt.Code)
	case Pragma:
		p.printPragma(mt)
	case Comment:
		p.line("// %s", mt.Text)
	case BlankLine:
		p.blank()
	}
}

func joinMods(mods []string) string {
	if len(mods) == 0 {
		return ""
	}
	return strings.Join(mods, " ") + " "
}

func (p *printer) printAttributes(attrs []Attribute) {
	for _, a := range attrs {
		p.line("%s", AttributeString(a))
	}
}

// AttributeString renders a single attribute: [Name (args)].
func AttributeString(a Attribute) string {
	if len(a.Args) == 0 {
		return "[" + a.Name + "]"
	}
	return fmt.Sprintf("[%s (%s)]", a.Name, strings.Join(a.Args, ", "))
}

func (p *printer) printClass(c *Class) {
	p.printAttributes(c.Attributes)
	sig := joinMods(c.Modifiers) + "class " + c.Name
	if len(c.Bases) > 0 {
		sig += " : " + strings.Join(c.Bases, ", ")
	}
	p.line("%s {", sig)
	p.indent++
	for _, m := range c.Members {
		p.printMember(m)
	}
	p.indent--
	p.line("}")
	p.blank()
}

func (p *printer) printDelegate(d *Delegate) {
	p.printAttributes(d.Attributes)
	p.line("%sdelegate %s %s (%s);", joinMods(d.Modifiers), d.Return, d.Name, paramList(d.Params))
}

func paramList(params []Param) string {
	parts := make([]string, len(params))
	for i, prm := range params {
		if prm.Modifier != "" {
			parts[i] = fmt.Sprintf("%s %s %s", prm.Modifier, prm.Type, prm.Name)
		} else {
			parts[i] = fmt.Sprintf("%s %s", prm.Type, prm.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func (p *printer) printMethod(m *Method) {
	p.printAttributes(m.Attributes)
	sig := joinMods(m.Modifiers)
	if m.Return != "" {
		sig += m.Return + " "
	}
	sig += fmt.Sprintf("%s (%s)", m.Name, paramList(m.Params))
	if m.Initializer != "" {
		sig += " : " + m.Initializer
	}
	if m.Body == nil {
		p.line("%s;", sig)
		p.blank()
		return
	}
	if len(m.Body) == 0 {
		p.line("%s {}", sig)
		p.blank()
		return
	}
	p.line("%s", sig)
	p.line("{")
	p.indent++
	p.printBody(m.Body)
	p.indent--
	p.line("}")
	p.blank()
}

func (p *printer) printProperty(pr *Property) {
	p.printAttributes(pr.Attributes)
	sig := joinMods(pr.Modifiers) + pr.Type + " " + pr.Name
	abstract := (pr.Get == nil || pr.Get.Body == nil) && (pr.Set == nil || pr.Set.Body == nil)
	if abstract {
		var parts []string
		if pr.Get != nil {
			parts = append(parts, "get;")
		}
		if pr.Set != nil {
			parts = append(parts, "set;")
		}
		p.line("%s { %s }", sig, strings.Join(parts, " "))
		p.blank()
		return
	}
	p.line("%s {", sig)
	p.indent++
	p.printAccessor("get", pr.Get)
	p.printAccessor("set", pr.Set)
	p.indent--
	p.line("}")
	p.blank()
}

func (p *printer) printAccessor(kw string, a *Accessor) {
	if a == nil {
		return
	}
	p.printAttributes(a.Attributes)
	if a.Body == nil {
		p.line("%s;", kw)
		return
	}
	p.line("%s {", kw)
	p.indent++
	p.printBody(a.Body)
	p.indent--
	p.line("}")
}

func (p *printer) printEvent(e *Event) {
	p.printAttributes(e.Attributes)
	p.line("%sevent %s %s {", joinMods(e.Modifiers), e.Type, e.Name)
	p.indent++
	p.printInlineBlock("add", e.Add)
	p.printInlineBlock("remove", e.Remove)
	p.indent--
	p.line("}")
	p.blank()
}

// printInlineBlock renders a one-statement block on a single line.
func (p *printer) printInlineBlock(kw string, body []Stmt) {
	if len(body) == 1 {
		inner := &printer{}
		inner.printStmt(body[0])
		if s := strings.TrimRight(inner.sb.String(), "\n"); !strings.Contains(s, "\n") {
			p.line("%s { %s }", kw, s)
			return
		}
	}
	p.line("%s {", kw)
	p.indent++
	p.printBody(body)
	p.indent--
	p.line("}")
}

func (p *printer) printPragma(pr Pragma) {
	// Preprocessor directives start at column 1.
	fmt.Fprintf(&p.sb, "#pragma %s\n", pr.Text)
}

func (p *printer) printRaw(code string) {
	cont := scanner.ContinuationLines(code)
	for i, ln := range scanner.Reindent(code) {
		if ln == "" {
			p.blank()
			continue
		}
		if i >= len(cont) || !cont[i] {
			p.writeIndent()
		}
		p.sb.WriteString(ln)
		p.sb.WriteByte('\n')
	}
}

func (p *printer) printBody(stmts []Stmt) {
	for _, s := range stmts {
		p.printStmt(s)
	}
}

func (p *printer) printStmt(s Stmt) {
	switch st := s.(type) {
	case ExprStmt:
		p.line("%s;", p.exprStr(st.Expr))
	case VarStmt:
		if st.Value != nil {
			p.line("%s %s = %s;", st.Type, st.Name, p.exprStr(st.Value))
		} else {
			p.line("%s %s;", st.Type, st.Name)
		}
	case AssignStmt:
		op := st.Op
		if op == "" {
			op = "="
		}
		p.line("%s %s %s;", st.Target, op, p.exprStr(st.Value))
	case ReturnStmt:
		if st.Value != nil {
			p.line("return %s;", p.exprStr(st.Value))
		} else {
			p.line("return;")
		}
	case ThrowStmt:
		p.line("throw %s;", p.exprStr(st.Value))
	case IfStmt:
		p.printIf(st)
	case ArchBranch:
		p.printIf(IfStmt{
			Cond: Binary{Left: Ident{Name: "Runtime.Arch"}, Op: "==", Right: Ident{Name: "Arch.DEVICE"}},
			Body: st.Device,
			Else: st.Simulator,
		})
	case RawStmt:
		p.printRaw(st.Code)
	case Pragma:
		p.printPragma(st)
	case Comment:
		p.line("// %s", st.Text)
	case BlankLine:
		p.blank()
	}
}

func (p *printer) printIf(st IfStmt) {
	cond := p.exprStr(st.Cond)
	if len(st.Else) == 0 && len(st.Body) == 1 && isSimple(st.Body[0]) {
		p.line("if (%s)", cond)
		p.indent++
		p.printStmt(st.Body[0])
		p.indent--
		return
	}
	p.line("if (%s) {", cond)
	p.indent++
	p.printBody(st.Body)
	p.indent--
	if len(st.Else) > 0 {
		p.line("} else {")
		p.indent++
		p.printBody(st.Else)
		p.indent--
	}
	p.line("}")
}

// isSimple reports whether s renders as a single line.
func isSimple(s Stmt) bool {
	switch s.(type) {
	case ExprStmt, VarStmt, AssignStmt, ReturnStmt, ThrowStmt:
		return true
	}
	return false
}

func (p *printer) exprStr(e Expr) string {
	switch ex := e.(type) {
	case RawExpr:
		return ex.Code
	case Ident:
		return ex.Name
	case StringLit:
		return Quote(ex.Value)
	case Null:
		return "null"
	case Call:
		return fmt.Sprintf("%s (%s)", ex.Func, p.exprList(ex.Args))
	case New:
		return fmt.Sprintf("new %s (%s)", ex.Type, p.exprList(ex.Args))
	case Cast:
		return fmt.Sprintf("(%s) %s", ex.Type, p.exprStr(ex.Value))
	case Binary:
		return fmt.Sprintf("%s %s %s", p.exprStr(ex.Left), ex.Op, p.exprStr(ex.Right))
	case Cond:
		return fmt.Sprintf("%s ? %s : %s", p.exprStr(ex.Cond), p.exprStr(ex.Then), p.exprStr(ex.Else))
	case MemberAccess:
		return fmt.Sprintf("%s.%s", p.exprStr(ex.Object), ex.Name)
	default:
		return "<unknown expr>"
	}
}

func (p *printer) exprList(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = p.exprStr(a)
	}
	return strings.Join(parts, ", ")
}

// ExprString renders a single expression.
func ExprString(e Expr) string {
	return (&printer{}).exprStr(e)
}

// Quote renders s as a C# regular string literal.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		case 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
