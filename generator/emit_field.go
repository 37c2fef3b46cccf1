package generator

import (
	"path"
	"strings"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// dlfcnReaders maps value types read on every access to their Dlfcn getter.
var dlfcnReaders = map[string]string{
	"int":    "Dlfcn.GetInt32",
	"long":   "Dlfcn.GetInt64",
	"float":  "Dlfcn.GetFloat",
	"double": "Dlfcn.GetDouble",
	"IntPtr": "Dlfcn.GetIntPtr",
	"SizeF":  "Dlfcn.GetSizeF",
}

// field emits a static property reading the native global f.Symbol.
func (te *typeEmitter) field(p *contract.Property, f *contract.Field) error {
	where := te.t.Name + "." + p.Name
	lib := f.Library
	if lib == "" {
		lib = te.ns[strings.LastIndexByte(te.ns, '.')+1:]
	}
	handle := te.libraryHandle(lib)
	sym := csharp.StringLit{Value: f.Symbol}
	typ := te.g.typeName(p.Type, te.ns)

	attr := csharp.Attribute{Name: "Field", Args: []string{csharp.Quote(f.Symbol)}}
	if f.Library != "" {
		attr.Args = append(attr.Args, csharp.Quote(f.Library))
	}
	mods := []string{"public", "static"}
	if p.Attrs.Has(contract.Internal) {
		mods[0] = "internal"
	}
	cp := &csharp.Property{
		Attributes: append([]csharp.Attribute{attr}, mirrors(p.Attrs)...),
		Modifiers:  mods,
		Type:       typ,
		Name:       csharp.Identifier(p.Name),
	}
	if p.Set != nil {
		te.g.log.Warn("ignoring setter of field constant", "member", where, "symbol", f.Symbol)
	}

	body := []csharp.Stmt{te.openLibrary(lib, handle)}
	cached := func(fieldType string, read csharp.Expr) {
		backing := "_" + csharp.Identifier(p.Name)
		te.addField(&csharp.Field{Modifiers: []string{"static"}, Type: fieldType, Name: backing})
		body = append(body,
			csharp.IfStmt{
				Cond: csharp.RawExpr{Code: backing + " == null"},
				Body: []csharp.Stmt{csharp.AssignStmt{Target: backing, Op: "=", Value: read}},
			},
			csharp.ReturnStmt{Value: csharp.Ident{Name: backing}})
	}
	indirect := csharp.Call{Func: "Dlfcn.GetIndirect", Args: []csharp.Expr{csharp.Ident{Name: handle}, sym}}

	t := p.Type
	switch {
	case t.Kind == contract.KindString || (t.Kind == contract.KindObject && t.Name == "NSString"):
		cached("NSString", csharp.Call{Func: "Dlfcn.GetStringConstant", Args: []csharp.Expr{csharp.Ident{Name: handle}, sym}})
	case t.Kind == contract.KindObject:
		cached(typ, csharp.Cast{Type: typ, Value: csharp.Call{Func: "Runtime.GetNSObject", Args: []csharp.Expr{indirect}}})
	case t.Kind == contract.KindArray && t.Elem.Kind == contract.KindString:
		cached(typ, csharp.Call{Func: "NSArray.StringArrayFromHandle", Args: []csharp.Expr{indirect}})
	case t.Kind == contract.KindArray && t.Elem.Kind == contract.KindObject:
		cached(typ, csharp.Call{Func: "NSArray.ArrayFromHandle<" + te.g.typeName(t.Elem, te.ns) + ">", Args: []csharp.Expr{indirect}})
	case (t.Kind == contract.KindPrimitive || t.Kind == contract.KindStruct) && dlfcnReaders[t.Name] != "":
		body = append(body, csharp.ReturnStmt{Value: csharp.Call{Func: dlfcnReaders[t.Name], Args: []csharp.Expr{csharp.Ident{Name: handle}, sym}}})
	default:
		return contract.Errorf(contract.ErrUnsupportedField, "unsupported type for Field %s: %s", where, t)
	}
	cp.Get = &csharp.Accessor{Body: body}
	te.members = append(te.members, cp)
	return nil
}

// libraryHandle returns the static field caching the dlopen handle of lib,
// declaring it on first use.
func (te *typeEmitter) libraryHandle(lib string) string {
	if h, ok := te.libraries[lib]; ok {
		return h
	}
	name := lib
	if strings.Contains(lib, "/") {
		name = strings.TrimSuffix(path.Base(lib), path.Ext(lib))
	}
	h := csharp.Identifier(name) + "_libraryHandle"
	te.libraries[lib] = h
	te.addField(&csharp.Field{Modifiers: []string{"static"}, Type: "IntPtr", Name: h})
	return h
}

// openLibrary opens lib into handle the first time any constant of the
// library is read.
func (te *typeEmitter) openLibrary(lib, handle string) csharp.Stmt {
	var arg csharp.Expr
	switch {
	case lib == "__Internal":
		arg = csharp.Null{}
	case strings.Contains(lib, "/"):
		arg = csharp.StringLit{Value: lib}
	default:
		arg = csharp.RawExpr{Code: "Constants." + lib + "Library"}
	}
	return csharp.IfStmt{
		Cond: csharp.RawExpr{Code: handle + " == IntPtr.Zero"},
		Body: []csharp.Stmt{csharp.AssignStmt{Target: handle, Op: "=", Value: csharp.Call{
			Func: "Dlfcn.dlopen",
			Args: []csharp.Expr{arg, csharp.RawExpr{Code: "0"}},
		}}},
	}
}

// addField declares a static field once.
func (te *typeEmitter) addField(f *csharp.Field) {
	if _, ok := te.fieldTypes[f.Name]; ok {
		return
	}
	te.fieldTypes[f.Name] = f.Type
	te.fields = append(te.fields, f)
}
