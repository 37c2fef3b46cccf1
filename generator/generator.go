// Package generator turns a loaded API contract into C# binding sources:
// bound classes, the shared Messaging P/Invoke table, block trampolines and
// the delegate and EventArgs types derived from event protocols.
package generator

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/golang-cz/textcase"

	"github.com/mono/maccore/clog"
	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// Options configures a generator run.
type Options struct {
	// RuntimeNamespace holds Messaging and Trampolines. Defaults to
	// <CoreNamespace>.ObjCRuntime.
	RuntimeNamespace string
	// CoreNamespace is the root of the framework bindings (MonoTouch or
	// MonoMac).
	CoreNamespace string
	// External generates a third-party binding: constructors decide
	// IsDirectBinding from the calling assembly.
	External bool
	// Desktop targets x86 only (bmac): no device/simulator branch.
	Desktop bool
	// Usings are extra namespaces imported by every type file.
	Usings []string
}

// File is one generated source, relative to the output directory.
type File struct {
	Path    string
	Content []byte
}

const header = "Generated by btouch. DO NOT EDIT."

// Generator runs the harvest and emit passes over one contract.
type Generator struct {
	opts     Options
	contract *contract.Contract
	ctx      *Context
	imported map[string]bool
	log      *slog.Logger
}

// New returns a generator for c.
func New(c *contract.Contract, opts Options) *Generator {
	if opts.CoreNamespace == "" {
		opts.CoreNamespace = contract.DefaultCoreNamespace
	}
	if opts.RuntimeNamespace == "" {
		opts.RuntimeNamespace = opts.CoreNamespace + ".ObjCRuntime"
	}
	g := &Generator{
		opts:     opts,
		contract: c,
		ctx:      newContext(),
		log:      slog.Default(),
	}
	g.imported = make(map[string]bool)
	for _, u := range g.usings() {
		g.imported[u] = true
	}
	return g
}

// Context exposes the registries filled by the last Generate call.
func (g *Generator) Context() *Context { return g.ctx }

// usings is the import list of every type and delegate file.
func (g *Generator) usings() []string {
	core := g.opts.CoreNamespace
	all := []string{
		"System",
		"System.Drawing",
		"System.Runtime.InteropServices",
		"System.Diagnostics",
		"System.ComponentModel",
		core,
		core + ".CoreFoundation",
		core + ".Foundation",
		core + ".ObjCRuntime",
		core + ".CoreGraphics",
		g.opts.RuntimeNamespace,
	}
	all = append(all, g.opts.Usings...)
	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, u := range all {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

// Generate lowers every bound type, then renders the type files and the
// shared files. On error no files are returned.
func (g *Generator) Generate(ctx context.Context) ([]File, error) {
	g.log = clog.Ctx(ctx)
	g.ctx = newContext()

	var bound []*boundType
	for _, t := range g.contract.Types {
		b, err := g.bindType(t)
		if err != nil {
			return nil, err
		}
		if b == nil {
			g.log.Debug("skipping mixin", "type", t.FullName())
			continue
		}
		g.log.Debug("bound type", "type", t.FullName(), "members", len(b.class.Members))
		bound = append(bound, b)
	}

	files := make([]File, 0, len(bound)+3)
	for _, b := range bound {
		files = append(files, g.render(
			csharp.NamespacePath(b.t.Namespace)+"/"+b.t.Name+".g.cs",
			g.usings(),
			b.t.Namespace,
			b.class,
		))
	}
	files = append(files, g.messaging())
	if g.ctx.trampolines.Size() > 0 {
		files = append(files, g.trampolinesFile())
	}
	files = append(files, g.delegateFiles()...)

	g.log.Info("generated bindings",
		"types", len(bound),
		"selectors", g.ctx.selectors.Size(),
		"sends", g.ctx.sends.Size(),
		"trampolines", g.ctx.trampolines.Size(),
		"files", len(files))
	return files, nil
}

func (g *Generator) render(path string, usings []string, ns string, decls ...csharp.Decl) File {
	f := &csharp.File{
		Header:     []string{header},
		Usings:     usings,
		Namespaces: []*csharp.Namespace{{Name: ns, Decls: decls}},
	}
	return File{Path: path, Content: []byte(csharp.Print(f))}
}

// runtimePath is the output path of a shared file of the runtime namespace.
func (g *Generator) runtimePath(name string) string {
	return csharp.NamespacePath(g.opts.RuntimeNamespace) + "/" + name
}

// extraUsings lists the struct namespaces referenced by native signatures.
func (g *Generator) extraUsings(base []string) []string {
	var extra []string
	for ns := range g.ctx.usings {
		extra = append(extra, ns)
	}
	sort.Strings(extra)
	seen := make(map[string]bool)
	var out []string
	for _, u := range append(base, extra...) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

func (g *Generator) messaging() File {
	members := []csharp.Member{
		&csharp.Field{
			Modifiers: []string{"internal", "static"},
			Type:      "System.Reflection.Assembly",
			Name:      "this_assembly",
			Init:      csharp.RawExpr{Code: "typeof (Messaging).Assembly"},
		},
		&csharp.Field{
			Modifiers: []string{"const"},
			Type:      "string",
			Name:      "LIBOBJC_DYLIB",
			Init:      csharp.StringLit{Value: "/usr/lib/libobjc.dylib"},
		},
		csharp.BlankLine{},
	}
	for _, v := range g.ctx.sends.Values() {
		members = append(members, v.(*sendMethod).decl)
	}
	cls := &csharp.Class{
		Modifiers: []string{"static", "partial"},
		Name:      "Messaging",
		Members:   members,
	}
	usings := g.extraUsings([]string{"System", "System.Runtime.InteropServices"})
	return g.render(g.runtimePath("Messaging.g.cs"), usings, g.opts.RuntimeNamespace, cls)
}

func (g *Generator) trampolinesFile() File {
	var members []csharp.Member
	for _, v := range g.ctx.trampolines.Values() {
		members = append(members, v.(*trampolineInfo).members()...)
	}
	cls := &csharp.Class{
		Modifiers: []string{"static", "partial"},
		Name:      "Trampolines",
		Members:   members,
	}
	return g.render(g.runtimePath("Trampolines.g.cs"), g.extraUsings(g.usings()), g.opts.RuntimeNamespace, cls)
}

// delegateFiles renders one Delegates.g.cs per namespace holding the
// derived delegate types and EventArgs classes.
func (g *Generator) delegateFiles() []File {
	declared := make(map[string]bool)
	for _, d := range g.contract.Delegates {
		declared[d.FullName()] = true
	}
	byNS := treemap.NewWithStringComparator()
	add := func(ns string, decls ...csharp.Decl) {
		var cur []csharp.Decl
		if v, ok := byNS.Get(ns); ok {
			cur = v.([]csharp.Decl)
		}
		byNS.Put(ns, append(cur, decls...))
	}

	it := g.ctx.delegateTypes.Iterator()
	for it.Next() {
		key, d := it.Key().(string), it.Value().(*delegateDecl)
		if declared[key] || g.ctx.skipGeneration[key] {
			continue
		}
		ret := "void"
		if d.ret.Kind != contract.KindVoid {
			ret = g.typeName(d.ret, d.ns)
		}
		add(d.ns, &csharp.Delegate{
			Modifiers: []string{"public"},
			Return:    ret,
			Name:      d.name,
			Params:    g.declParams(d.params, d.ns),
		})
	}
	it = g.ctx.eventArgTypes.Iterator()
	for it.Next() {
		key, ea := it.Key().(string), it.Value().(*eventArgsType)
		if g.ctx.skipGeneration[key] {
			continue
		}
		add(ea.ns, g.eventArgsClass(ea))
	}

	var files []File
	nit := byNS.Iterator()
	for nit.Next() {
		ns := nit.Key().(string)
		files = append(files, g.render(csharp.NamespacePath(ns)+"/Delegates.g.cs", g.usings(), ns, nit.Value().([]csharp.Decl)...))
	}
	return files
}

func (g *Generator) declParams(params []*contract.Param, ns string) []csharp.Param {
	out := make([]csharp.Param, 0, len(params))
	for _, p := range params {
		cp := csharp.Param{Type: g.typeName(p.Type, ns), Name: csharp.Identifier(p.Name)}
		if p.Type.Kind == contract.KindByRef {
			cp.Modifier = p.Type.Modifier
		}
		out = append(out, cp)
	}
	return out
}

// eventArgsClass renders the EventArgs subclass: a constructor taking the
// callback parameters and one auto-property per parameter.
func (g *Generator) eventArgsClass(ea *eventArgsType) *csharp.Class {
	params := g.declParams(ea.params, ea.ns)
	ctor := &csharp.Method{Modifiers: []string{"public"}, Name: ea.name, Params: params, Body: []csharp.Stmt{}}
	var props []csharp.Member
	for i, p := range params {
		prop := eventArgsProperty(ea.params[i].Name)
		ctor.Body = append(ctor.Body, csharp.AssignStmt{Target: "this." + prop, Op: "=", Value: csharp.Ident{Name: p.Name}})
		props = append(props, &csharp.Property{
			Modifiers: []string{"public"},
			Type:      p.Type,
			Name:      prop,
			Get:       &csharp.Accessor{},
			Set:       &csharp.Accessor{},
		})
	}
	return &csharp.Class{
		Modifiers: []string{"public", "partial"},
		Name:      ea.name,
		Bases:     []string{"EventArgs"},
		Members:   append([]csharp.Member{ctor}, props...),
	}
}

// eventArgsProperty names the EventArgs property exposing parameter name.
func eventArgsProperty(name string) string {
	return csharp.Identifier(textcase.PascalCase(strings.TrimPrefix(name, "@")))
}
