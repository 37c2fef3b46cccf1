package generator

import (
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// typeEmitter accumulates the class body of one bound type.
type typeEmitter struct {
	g  *Generator
	t  *contract.Type
	ns string

	selectors    *linkedhashset.Set // selectors used by this type
	fields       []csharp.Member    // cached values and library handles
	fieldTypes   map[string]string  // declared field -> C# type
	disposable   []string           // instance fields cleared by Dispose
	members      []csharp.Member
	nested       []csharp.Member
	libraries    map[string]string // library -> handle field
	abstract     bool
	usesClassPtr bool
}

func newTypeEmitter(g *Generator, t *contract.Type) *typeEmitter {
	return &typeEmitter{
		g:          g,
		t:          t,
		ns:         t.Namespace,
		selectors:  linkedhashset.New(),
		fieldTypes: make(map[string]string),
		libraries:  make(map[string]string),
	}
}

// selector records sel as used by the type and returns its field.
func (te *typeEmitter) selector(sel string) string {
	te.selectors.Add(sel)
	return te.g.ctx.SelectorField(sel)
}

// cacheField declares the backing field __mt_<name>_var once and returns
// its name. Instance fields are cleared by Dispose. Reusing a name with
// another type is an error.
func (te *typeEmitter) cacheField(name, typ string, static bool) (string, error) {
	field := "__mt_" + name + "_var"
	mods := []string{}
	if static {
		field += "_static"
		mods = append(mods, "static")
	}
	if prev, ok := te.fieldTypes[field]; ok {
		if prev != typ {
			return "", contract.Errorf(contract.ErrFieldClash, "%s: field %s is declared as both %s and %s", te.t.Name, field, prev, typ)
		}
		return field, nil
	}
	te.fieldTypes[field] = typ
	te.fields = append(te.fields, &csharp.Field{Modifiers: mods, Type: typ, Name: field})
	if !static {
		te.disposable = append(te.disposable, field)
	}
	return field, nil
}

// boundType is the harvested class of one contract type.
type boundType struct {
	t     *contract.Type
	class *csharp.Class
}

// bindType lowers t to its class. Mixins (no BaseType, not Static) yield
// nil: their members are emitted by the types that inherit them.
func (g *Generator) bindType(t *contract.Type) (*boundType, error) {
	bt, hasBase := t.BaseType()
	if !hasBase && !t.IsStatic() {
		return nil, nil
	}
	methods, props, err := g.membersOf(t)
	if err != nil {
		return nil, err
	}

	te := newTypeEmitter(g, t)
	if !t.IsStatic() && t.Name != "NSObject" {
		te.constructors()
	}
	for _, m := range methods {
		if err := te.method(m); err != nil {
			return nil, err
		}
	}
	for _, p := range props {
		if err := te.property(p); err != nil {
			return nil, err
		}
	}
	if hasBase {
		if err := te.events(bt); err != nil {
			return nil, err
		}
	}
	te.dispose()

	return &boundType{t: t, class: te.class(bt)}, nil
}

// membersOf returns the methods and properties of t followed by those of
// the types it inherits. The type's own members are always kept. An
// inherited method is skipped when its selector is already bound, and an
// inherited property when its name is.
func (g *Generator) membersOf(t *contract.Type) ([]*contract.Method, []*contract.Property, error) {
	var (
		methods []*contract.Method
		props   []*contract.Property
		seen    = map[string]bool{}
		visited = map[*contract.Type]bool{}
	)
	var visit func(cur *contract.Type) error
	visit = func(cur *contract.Type) error {
		if visited[cur] {
			return nil
		}
		visited[cur] = true
		own := cur == t
		for _, m := range cur.Methods {
			key := "m:" + methodKey(m)
			if !own && seen[key] {
				continue
			}
			seen[key] = true
			methods = append(methods, m)
		}
		for _, p := range cur.Properties {
			key := "p:" + p.Name
			if !own && seen[key] {
				continue
			}
			seen[key] = true
			props = append(props, p)
		}
		for _, name := range cur.Inherits {
			parent, ok := g.contract.Lookup(name)
			if !ok {
				return contract.Errorf(contract.ErrUnknownContract, "type %s inherits unknown contract type %s", cur.Name, name)
			}
			if err := visit(parent); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(t); err != nil {
		return nil, nil, err
	}
	return methods, props, nil
}

// methodKey identifies a method by its selector, or by its managed
// signature when it has none.
func methodKey(m *contract.Method) string {
	if sel, ok := m.Selector(); ok {
		return sel
	}
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// dispose emits the Dispose override when cached fields or custom dispose
// code exist.
func (te *typeEmitter) dispose() {
	d, hasCode := contract.Get[*contract.Dispose](te.t.Attrs)
	if len(te.disposable) == 0 && !hasCode {
		return
	}
	var body []csharp.Stmt
	if hasCode {
		body = append(body, csharp.RawStmt{Code: d.Code})
	}
	body = append(body, csharp.ExprStmt{Expr: csharp.Call{Func: "base.Dispose", Args: []csharp.Expr{csharp.Ident{Name: "disposing"}}}})
	if len(te.disposable) > 0 {
		clear := make([]csharp.Stmt, 0, len(te.disposable))
		for _, f := range te.disposable {
			clear = append(clear, csharp.AssignStmt{Target: f, Op: "=", Value: csharp.Null{}})
		}
		body = append(body, csharp.IfStmt{Cond: csharp.RawExpr{Code: "Handle == IntPtr.Zero"}, Body: clear})
	}
	te.members = append(te.members, &csharp.Method{
		Modifiers: []string{"protected", "override"},
		Return:    "void",
		Name:      "Dispose",
		Params:    []csharp.Param{{Type: "bool", Name: "disposing"}},
		Body:      body,
	})
}

// class assembles the header and body of the bound type.
func (te *typeEmitter) class(bt *contract.BaseType) *csharp.Class {
	t := te.t
	cls := &csharp.Class{Name: csharp.Identifier(t.Name)}

	register := t.Name
	if bt != nil && bt.Name != "" {
		register = bt.Name
	}
	cls.Attributes = append(cls.Attributes, csharp.Attribute{Name: "Register", Args: []string{csharp.Quote(register)}})
	if t.IsModel() {
		cls.Attributes = append(cls.Attributes, csharp.Attribute{Name: "Model"})
	}
	cls.Attributes = append(cls.Attributes, mirrors(t.Attrs)...)

	cls.Modifiers = []string{"public"}
	switch {
	case t.IsStatic():
		cls.Modifiers = append(cls.Modifiers, "static")
	case te.abstract:
		cls.Modifiers = append(cls.Modifiers, "abstract")
	}
	cls.Modifiers = append(cls.Modifiers, "partial")

	if bt != nil && !t.IsStatic() {
		base := "NSObject"
		if bt.Type != "" {
			base = te.g.typeName(te.g.contract.Resolve(bt.Type), te.ns)
		}
		cls.Bases = []string{base}
	}

	var header []csharp.Member
	for _, v := range te.selectors.Values() {
		sel := v.(string)
		header = append(header, &csharp.Field{
			Modifiers: []string{"static", "readonly"},
			Type:      "IntPtr",
			Name:      te.g.ctx.SelectorField(sel),
			Init:      csharp.Call{Func: "Selector.GetHandle", Args: []csharp.Expr{csharp.StringLit{Value: sel}}},
		})
	}
	bound := bt != nil && !t.IsModel() && !t.IsStatic()
	if bound || (te.usesClassPtr && !t.IsModel()) {
		if len(header) > 0 {
			header = append(header, csharp.BlankLine{})
		}
		header = append(header, &csharp.Field{
			Modifiers: []string{"static", "readonly"},
			Type:      "IntPtr",
			Name:      "class_ptr",
			Init:      csharp.Call{Func: "Class.GetHandle", Args: []csharp.Expr{csharp.StringLit{Value: register}}},
		})
	}
	if len(header) > 0 {
		header = append(header, csharp.BlankLine{})
	}
	if bound {
		header = append(header, &csharp.Property{
			Modifiers: []string{"public", "override"},
			Type:      "IntPtr",
			Name:      "ClassHandle",
			Get:       &csharp.Accessor{Body: []csharp.Stmt{csharp.ReturnStmt{Value: csharp.Ident{Name: "class_ptr"}}}},
		})
	}

	cls.Members = append(cls.Members, header...)
	cls.Members = append(cls.Members, te.members...)
	if len(te.fields) > 0 {
		cls.Members = append(cls.Members, te.fields...)
		cls.Members = append(cls.Members, csharp.BlankLine{})
	}
	cls.Members = append(cls.Members, te.nested...)
	return cls
}
