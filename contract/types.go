package contract

import (
	"strings"
)

// Kind classifies a resolved type reference.
type Kind int

const (
	KindUnknown Kind = iota
	KindVoid
	KindPrimitive
	KindString
	KindEnum
	KindStruct
	KindObject
	KindHandle
	KindArray
	KindByRef
	KindDelegate
)

var kindNames = [...]string{
	KindUnknown:   "unknown",
	KindVoid:      "void",
	KindPrimitive: "primitive",
	KindString:    "string",
	KindEnum:      "enum",
	KindStruct:    "struct",
	KindObject:    "object",
	KindHandle:    "handle",
	KindArray:     "array",
	KindByRef:     "byref",
	KindDelegate:  "delegate",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind?"
}

// TypeRef is a resolved reference to a type as used by a member.
type TypeRef struct {
	Kind      Kind
	Name      string // short C# name; "string[]" for arrays
	Namespace string

	Elem     *TypeRef // array element or by-ref target
	Modifier string   // "out" or "ref" for KindByRef

	Size       int    // marshaled size of a struct
	Core       bool   // struct defined by the core runtime library
	Underlying string // primitive underlying an enum
	Create     string // handle types: expression prefix building the managed value

	Delegate *DelegateType // KindDelegate
	Contract *Type         // KindObject declared in this contract
}

// FullName returns the namespace-qualified name.
func (t *TypeRef) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// IsValueType reports whether values of t are copied rather than referenced.
func (t *TypeRef) IsValueType() bool {
	switch t.Kind {
	case KindPrimitive, KindEnum, KindStruct:
		return true
	}
	return false
}

func (t *TypeRef) String() string {
	if t.Kind == KindByRef {
		return t.Modifier + " " + t.Elem.String()
	}
	return t.Name
}

// DelegateType is a managed delegate type used as a block parameter.
type DelegateType struct {
	Name      string
	Namespace string
	Return    *TypeRef
	Params    []*Param
}

func (d *DelegateType) FullName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

// primitives maps C# keywords and IntPtr to themselves.
var primitives = map[string]bool{
	"bool": true, "byte": true, "sbyte": true, "char": true,
	"short": true, "ushort": true, "int": true, "uint": true,
	"long": true, "ulong": true, "float": true, "double": true,
	"IntPtr": true, "UIntPtr": true,
}

// IsPrimitive reports whether name is a primitive marshaled as itself.
func IsPrimitive(name string) bool { return primitives[name] }

type builtinStruct struct {
	name, ns string
	size     int
	core     bool
}

// Structs known without a declaration. Namespaces starting with "." are
// relative to the core namespace.
var builtinStructs = []builtinStruct{
	{"DateTime", "System", 8, true},
	{"decimal", "", 16, true},
	{"Guid", "System", 16, true},
	{"TimeSpan", "System", 8, true},
	{"RectangleF", "System.Drawing", 16, false},
	{"PointF", "System.Drawing", 8, false},
	{"SizeF", "System.Drawing", 8, false},
	{"CGAffineTransform", ".CoreGraphics", 24, false},
	{"CATransform3D", ".CoreAnimation", 128, false},
	{"CMTime", ".CoreMedia", 24, false},
	{"CLLocationCoordinate2D", ".CoreLocation", 16, false},
	{"NSRange", ".Foundation", 8, false},
}

type builtinHandle struct {
	name, ns string
}

var builtinHandles = []builtinHandle{
	{"CGColor", ".CoreGraphics"},
	{"CGPath", ".CoreGraphics"},
	{"CGImage", ".CoreGraphics"},
	{"CGContext", ".CoreGraphics"},
	{"CGColorSpace", ".CoreGraphics"},
	{"CVImageBuffer", ".CoreVideo"},
	{"CMSampleBuffer", ".CoreMedia"},
	{"Class", ".ObjCRuntime"},
	{"Selector", ".ObjCRuntime"},
}

var builtinObjects = []string{
	"NSObject", "NSString", "NSArray", "NSDictionary", "NSNumber",
	"NSData", "NSError", "NSCoder", "NSSet", "NSDate", "NSUrl",
}

func qualify(ns, core string) string {
	if strings.HasPrefix(ns, ".") {
		return core + ns
	}
	return ns
}

// typeTable resolves type names for one contract.
type typeTable struct {
	named map[string]*TypeRef
}

func newTypeTable(core string) *typeTable {
	tt := &typeTable{named: make(map[string]*TypeRef)}
	for _, s := range builtinStructs {
		tt.add(&TypeRef{Kind: KindStruct, Name: s.name, Namespace: qualify(s.ns, core), Size: s.size, Core: s.core})
	}
	for _, h := range builtinHandles {
		tt.add(&TypeRef{Kind: KindHandle, Name: h.name, Namespace: qualify(h.ns, core)})
	}
	for _, o := range builtinObjects {
		tt.add(&TypeRef{Kind: KindObject, Name: o, Namespace: core + ".Foundation"})
	}
	return tt
}

// add registers t under its short and full names. Later registrations win,
// so contract declarations override built-ins.
func (tt *typeTable) add(t *TypeRef) {
	tt.named[t.Name] = t
	if t.Namespace != "" {
		tt.named[t.FullName()] = t
	}
}

// resolve parses a type expression: void, primitives, string, names, T[],
// "out T" and "ref T". Unknown names yield KindUnknown.
func (tt *typeTable) resolve(expr string) *TypeRef {
	expr = strings.TrimSpace(expr)
	for _, mod := range []string{"out ", "ref "} {
		if rest, ok := strings.CutPrefix(expr, mod); ok {
			elem := tt.resolve(rest)
			return &TypeRef{Kind: KindByRef, Name: elem.Name, Namespace: elem.Namespace, Elem: elem, Modifier: strings.TrimSpace(mod)}
		}
	}
	if elemExpr, ok := strings.CutSuffix(expr, "[]"); ok {
		elem := tt.resolve(elemExpr)
		return &TypeRef{Kind: KindArray, Name: elem.Name + "[]", Namespace: elem.Namespace, Elem: elem}
	}
	switch {
	case expr == "void" || expr == "":
		return &TypeRef{Kind: KindVoid, Name: "void"}
	case expr == "string":
		return &TypeRef{Kind: KindString, Name: "string"}
	case primitives[expr]:
		return &TypeRef{Kind: KindPrimitive, Name: expr}
	}
	if t, ok := tt.named[expr]; ok {
		return t
	}
	name, ns := expr, ""
	if i := strings.LastIndexByte(expr, '.'); i >= 0 {
		ns, name = expr[:i], expr[i+1:]
	}
	return &TypeRef{Kind: KindUnknown, Name: name, Namespace: ns}
}
