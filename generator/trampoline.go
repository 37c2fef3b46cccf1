package generator

import (
	"fmt"
	"strings"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// trampolineInfo is the native-callable shim for one delegate type.
type trampolineInfo struct {
	delegate     *contract.DelegateType
	delegateName string // D<Name>: native signature delegate
	staticName   string // S<Name>: holder class with the static Handler
	wrapperName  string // T<Name>: the callback itself
	params       []csharp.Param
	invoke       string
	ret          string // native return type
	retConvert   func(string) string
}

// trampoline returns the shim for d, synthesizing it on first use.
func (g *Generator) trampoline(d *contract.DelegateType, where string) (*trampolineInfo, error) {
	if v, ok := g.ctx.trampolines.Get(d.FullName()); ok {
		return v.(*trampolineInfo), nil
	}

	base := csharp.Identifier(d.Name)
	name := base
	for i := 2; g.ctx.trampolineNames[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}

	ti := &trampolineInfo{
		delegate:     d,
		delegateName: "D" + name,
		staticName:   "S" + name,
		wrapperName:  "T" + name,
		params:       []csharp.Param{{Type: "IntPtr", Name: "block"}},
	}
	var args []string
	for _, p := range d.Params {
		pname := csharp.Identifier(p.Name)
		native, arg, err := g.trampolineParam(p, pname, where)
		if err != nil {
			return nil, err
		}
		ti.params = append(ti.params, native)
		args = append(args, arg)
	}
	ti.invoke = fmt.Sprintf("del (%s)", strings.Join(args, ", "))

	ret, convert, err := g.trampolineReturn(d.Return, where)
	if err != nil {
		return nil, err
	}
	ti.ret, ti.retConvert = ret, convert

	g.ctx.trampolines.Put(d.FullName(), ti)
	g.ctx.trampolineNames[name] = true
	return ti, nil
}

// trampolineParam maps one delegate parameter to its native declaration and
// the managed argument built from it.
func (g *Generator) trampolineParam(p *contract.Param, name, where string) (csharp.Param, string, error) {
	where = where + " (delegate parameter " + p.Name + ")"
	if p.Type.Kind == contract.KindDelegate {
		return csharp.Param{}, "", contract.Errorf(contract.ErrNoSignature, "nested delegate %s is not supported in %s", p.Type.Name, where)
	}
	mi, err := g.marshal(p.Type, p.Attrs.Has(contract.PlainString), where)
	if err != nil {
		return csharp.Param{}, "", err
	}
	t := p.Type
	switch mi.Strategy {
	case marshalPrimitive, marshalStruct, marshalPlainString:
		return csharp.Param{Type: mi.token(), Name: name}, name, nil
	case marshalEnum:
		return csharp.Param{Type: t.Underlying, Name: name}, fmt.Sprintf("(%s) %s", globalName(t), name), nil
	case marshalByRefStruct:
		return csharp.Param{Modifier: t.Modifier, Type: nativeName(t.Elem), Name: name}, t.Modifier + " " + name, nil
	case marshalNSString:
		return csharp.Param{Type: "IntPtr", Name: name}, fmt.Sprintf("NSString.FromHandle (%s)", name), nil
	case marshalObject:
		return csharp.Param{Type: "IntPtr", Name: name}, fmt.Sprintf("(%s) Runtime.GetNSObject (%s)", globalName(t), name), nil
	case marshalCustom:
		return csharp.Param{Type: mi.Custom.Encoding, Name: name}, mi.Custom.CreateFromRet + name + ")", nil
	case marshalArray:
		if t.Elem.Kind == contract.KindString {
			return csharp.Param{Type: "IntPtr", Name: name}, fmt.Sprintf("NSArray.StringArrayFromHandle (%s)", name), nil
		}
		return csharp.Param{Type: "IntPtr", Name: name}, fmt.Sprintf("NSArray.ArrayFromHandle<%s> (%s)", globalName(t.Elem), name), nil
	}
	return csharp.Param{}, "", contract.Errorf(contract.ErrNoSignature, "do not know how to make a trampoline for %s in %s", t, where)
}

// trampolineReturn maps the delegate's return type to the native one.
func (g *Generator) trampolineReturn(t *contract.TypeRef, where string) (string, func(string) string, error) {
	identity := func(s string) string { return s }
	switch t.Kind {
	case contract.KindVoid:
		return "void", nil, nil
	case contract.KindPrimitive, contract.KindStruct:
		return t.Name, identity, nil
	case contract.KindEnum:
		return t.Underlying, func(s string) string { return fmt.Sprintf("(%s) %s", t.Underlying, s) }, nil
	case contract.KindObject, contract.KindHandle:
		return "IntPtr", func(s string) string { return s + " == null ? IntPtr.Zero : " + s + ".Handle" }, nil
	case contract.KindUnknown:
		return "", nil, contract.Errorf(contract.ErrUnknownKind, "unknown kind of type %s in %s", t.FullName(), where)
	}
	return "", nil, contract.Errorf(contract.ErrNoSignature, "do not know how to return %s from a trampoline in %s", t, where)
}

// members renders the shim: the native delegate type and the holder class
// with the static handler and the callback.
func (ti *trampolineInfo) members() []csharp.Member {
	body := []csharp.Stmt{
		csharp.VarStmt{Type: "var", Name: "descriptor", Value: csharp.RawExpr{Code: "(BlockLiteral *) block"}},
		csharp.VarStmt{Type: "var", Name: "del", Value: csharp.RawExpr{Code: fmt.Sprintf(
			"(%s) (descriptor->global_handle != IntPtr.Zero ? GCHandle.FromIntPtr (descriptor->global_handle).Target : GCHandle.FromIntPtr (descriptor->local_handle).Target)",
			globalDelegateName(ti.delegate))}},
	}
	if ti.ret == "void" {
		body = append(body, csharp.IfStmt{
			Cond: csharp.RawExpr{Code: "del != null"},
			Body: []csharp.Stmt{csharp.ExprStmt{Expr: csharp.RawExpr{Code: ti.invoke}}},
		})
	} else {
		body = append(body,
			csharp.IfStmt{
				Cond: csharp.RawExpr{Code: "del == null"},
				Body: []csharp.Stmt{csharp.ReturnStmt{Value: csharp.RawExpr{Code: "default (" + ti.ret + ")"}}},
			},
			csharp.VarStmt{Type: "var", Name: "ret", Value: csharp.RawExpr{Code: ti.invoke}},
			csharp.ReturnStmt{Value: csharp.RawExpr{Code: ti.retConvert("ret")}},
		)
	}

	return []csharp.Member{
		&csharp.Delegate{Modifiers: []string{"internal"}, Return: ti.ret, Name: ti.delegateName, Params: ti.params},
		csharp.BlankLine{},
		&csharp.Class{
			Modifiers: []string{"static", "internal"},
			Name:      ti.staticName,
			Members: []csharp.Member{
				&csharp.Field{
					Modifiers: []string{"static", "internal", "readonly"},
					Type:      ti.delegateName,
					Name:      "Handler",
					Init:      csharp.Ident{Name: ti.wrapperName},
				},
				csharp.BlankLine{},
				&csharp.Method{
					Attributes: []csharp.Attribute{{Name: "MonoPInvokeCallback", Args: []string{"typeof (" + ti.delegateName + ")"}}},
					Modifiers:  []string{"static", "unsafe"},
					Return:     ti.ret,
					Name:       ti.wrapperName,
					Params:     ti.params,
					Body:       body,
				},
			},
		},
	}
}

func globalDelegateName(d *contract.DelegateType) string {
	if d.Namespace == "" {
		return d.Name
	}
	return "global::" + d.FullName()
}
