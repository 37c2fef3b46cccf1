package generator

import (
	"fmt"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// strategy is how a value crosses the managed/native boundary.
type strategy int

const (
	marshalPrimitive   strategy = iota // passed as itself
	marshalEnum                        // cast to the underlying primitive
	marshalPlainString                 // System.String marshaled by the runtime
	marshalNSString                    // wrapped in a temporary NSString
	marshalObject                      // native handle of a wrapped NSObject
	marshalCustom                      // registered marshal type (CGColor, ...)
	marshalArray                       // wrapped in a temporary NSArray
	marshalStruct                      // value type passed by value
	marshalByRefStruct                 // out/ref value type
	marshalOutObject                   // out NSObject through an IntPtr slot
	marshalBlock                       // delegate wrapped in a block literal
)

// marshalInfo is the resolved marshal strategy of a parameter or return
// value.
type marshalInfo struct {
	Type     *contract.TypeRef
	Plain    bool
	Strategy strategy
	Custom   *marshalType
}

// marshalType maps a native handle type to its native encoding, the
// expression that extracts the handle and the expression prefix that
// rebuilds the managed value.
type marshalType struct {
	Name             string
	Encoding         string
	ParameterMarshal string // %s is the managed expression
	CreateFromRet    string
}

var defaultCreate = map[string]string{
	"Selector": "Selector.FromHandle (",
}

func (c *Context) marshalTypeFor(t *contract.TypeRef) *marshalType {
	if mt, ok := c.marshalTypes[t.FullName()]; ok {
		return mt
	}
	create := t.Create
	if create == "" {
		create = defaultCreate[t.Name]
	}
	if create == "" {
		create = "new " + t.Name + " ("
	}
	mt := &marshalType{Name: t.Name, Encoding: "IntPtr", ParameterMarshal: "%s.Handle", CreateFromRet: create}
	c.marshalTypes[t.FullName()] = mt
	return mt
}

// marshal resolves the strategy for t. where names the member for
// diagnostics.
func (g *Generator) marshal(t *contract.TypeRef, plain bool, where string) (marshalInfo, error) {
	mi := marshalInfo{Type: t, Plain: plain}
	switch t.Kind {
	case contract.KindPrimitive:
		mi.Strategy = marshalPrimitive
	case contract.KindEnum:
		mi.Strategy = marshalEnum
	case contract.KindString:
		if plain {
			mi.Strategy = marshalPlainString
		} else {
			mi.Strategy = marshalNSString
		}
	case contract.KindObject:
		mi.Strategy = marshalObject
	case contract.KindHandle:
		mi.Strategy = marshalCustom
		mi.Custom = g.ctx.marshalTypeFor(t)
	case contract.KindArray:
		switch t.Elem.Kind {
		case contract.KindString, contract.KindObject:
			mi.Strategy = marshalArray
		default:
			return mi, contract.Errorf(contract.ErrNoSignature, "do not know how to make a signature for %s in %s", t, where)
		}
	case contract.KindStruct:
		mi.Strategy = marshalStruct
	case contract.KindByRef:
		switch t.Elem.Kind {
		case contract.KindStruct, contract.KindPrimitive, contract.KindEnum:
			mi.Strategy = marshalByRefStruct
		case contract.KindObject:
			if t.Modifier != "out" {
				return mi, contract.Errorf(contract.ErrNoSignature, "do not know how to make a signature for %s in %s", t, where)
			}
			mi.Strategy = marshalOutObject
		default:
			return mi, contract.Errorf(contract.ErrNoSignature, "do not know how to make a signature for %s in %s", t, where)
		}
	case contract.KindDelegate:
		mi.Strategy = marshalBlock
	case contract.KindUnknown:
		return mi, contract.Errorf(contract.ErrUnknownKind, "unknown kind of type %s in %s", t.FullName(), where)
	default:
		return mi, contract.Errorf(contract.ErrNoSignature, "do not know how to make a signature for %s in %s", t, where)
	}
	if mi.Strategy == marshalStruct || mi.Strategy == marshalByRefStruct {
		if ns := structOf(t).Namespace; ns != "" {
			g.ctx.usings[ns] = true
		}
	}
	return mi, nil
}

func structOf(t *contract.TypeRef) *contract.TypeRef {
	if t.Kind == contract.KindByRef {
		return t.Elem
	}
	return t
}

// nativeName is the native type of a value of kind primitive, enum or
// struct.
func nativeName(t *contract.TypeRef) string {
	if t.Kind == contract.KindEnum {
		return t.Underlying
	}
	return t.Name
}

// token is the marshal type as it appears in entry-point names and
// P/Invoke declarations ("out RectangleF" keeps its modifier).
func (mi marshalInfo) token() string {
	switch mi.Strategy {
	case marshalPrimitive, marshalStruct:
		return mi.Type.Name
	case marshalEnum:
		return mi.Type.Underlying
	case marshalPlainString:
		return "string"
	case marshalByRefStruct:
		return mi.Type.Modifier + " " + nativeName(mi.Type.Elem)
	case marshalOutObject:
		return "out IntPtr"
	case marshalCustom:
		return mi.Custom.Encoding
	}
	return "IntPtr"
}

// nullable reports whether the strategy takes a reference that may be null.
func (mi marshalInfo) nullable() bool {
	switch mi.Strategy {
	case marshalNSString, marshalObject, marshalCustom, marshalArray, marshalBlock:
		return true
	}
	return false
}

// managedFromNative converts a native return value expression to the
// managed type. ns is the namespace of the file being emitted.
func (g *Generator) managedFromNative(mi marshalInfo, native csharp.Expr, ns string) (csharp.Expr, error) {
	t := mi.Type
	switch mi.Strategy {
	case marshalPrimitive, marshalStruct, marshalPlainString:
		return native, nil
	case marshalEnum:
		return csharp.Cast{Type: g.typeName(t, ns), Value: native}, nil
	case marshalNSString:
		return csharp.Call{Func: "NSString.FromHandle", Args: []csharp.Expr{native}}, nil
	case marshalObject:
		return csharp.Cast{Type: g.typeName(t, ns), Value: csharp.Call{Func: "Runtime.GetNSObject", Args: []csharp.Expr{native}}}, nil
	case marshalCustom:
		return csharp.RawExpr{Code: mi.Custom.CreateFromRet + csharp.ExprString(native) + ")"}, nil
	case marshalArray:
		if t.Elem.Kind == contract.KindString {
			return csharp.Call{Func: "NSArray.StringArrayFromHandle", Args: []csharp.Expr{native}}, nil
		}
		return csharp.Call{Func: fmt.Sprintf("NSArray.ArrayFromHandle<%s>", g.typeName(t.Elem, ns)), Args: []csharp.Expr{native}}, nil
	}
	return nil, contract.Errorf(contract.ErrNoSignature, "do not know how to return a %s", t)
}

// typeName formats t for use in a file of namespace ns: the short name
// when its namespace is imported, the qualified name otherwise.
func (g *Generator) typeName(t *contract.TypeRef, ns string) string {
	switch t.Kind {
	case contract.KindArray:
		return g.typeName(t.Elem, ns) + "[]"
	case contract.KindByRef:
		return g.typeName(t.Elem, ns)
	}
	if t.Namespace == "" || t.Namespace == ns || g.imported[t.Namespace] {
		return t.Name
	}
	return t.FullName()
}

// globalName is the fully qualified name used in files without usings.
func globalName(t *contract.TypeRef) string {
	switch t.Kind {
	case contract.KindArray:
		return globalName(t.Elem) + "[]"
	case contract.KindByRef:
		return globalName(t.Elem)
	}
	if t.Namespace == "" {
		return t.Name
	}
	return "global::" + t.FullName()
}
