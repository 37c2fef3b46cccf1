// Package contract loads API contract documents: the attributed description
// of an Objective-C API surface that the binding generator consumes.
package contract

import (
	"bytes"
	"io"
	"os"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/mono/maccore/csharp"
	"github.com/mono/maccore/scanner"
)

// Contract is a loaded, validated contract document.
type Contract struct {
	Namespace string
	Types     []*Type
	Delegates []*DelegateType

	table  *typeTable
	byName map[string]*Type
}

// Lookup finds a contract type by short or namespace-qualified name.
func (c *Contract) Lookup(name string) (*Type, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Resolve resolves a type expression against the contract's type table.
func (c *Contract) Resolve(expr string) *TypeRef {
	return c.table.resolve(expr)
}

// Type is one contract type: a class, protocol model or static holder.
type Type struct {
	Name       string
	Namespace  string
	Attrs      Attrs
	Inherits   []string
	Methods    []*Method
	Properties []*Property
}

func (t *Type) FullName() string { return t.Namespace + "." + t.Name }

// BaseType returns the type's BaseType attribute, if any.
func (t *Type) BaseType() (*BaseType, bool) { return Get[*BaseType](t.Attrs) }

func (t *Type) IsModel() bool  { return t.Attrs.Has(Model) }
func (t *Type) IsStatic() bool { return t.Attrs.Has(Static) }

// Method is a contract method.
type Method struct {
	Name        string
	Owner       *Type
	Return      *TypeRef
	ReturnAttrs Attrs
	Params      []*Param
	Attrs       Attrs
}

// Selector returns the Bind or Export selector of m.
func (m *Method) Selector() (string, bool) {
	return selectorOf(m.Attrs)
}

func selectorOf(attrs Attrs) (string, bool) {
	if b, ok := Get[*Bind](attrs); ok {
		return b.Selector, true
	}
	if e, ok := Get[*Export](attrs); ok {
		return e.Selector, true
	}
	return "", false
}

// Property is a contract property. Set is nil for read-only properties.
type Property struct {
	Name  string
	Owner *Type
	Type  *TypeRef
	Attrs Attrs
	Get   *Accessor
	Set   *Accessor
}

// Accessor carries attributes that apply to one side of a property.
type Accessor struct {
	Attrs Attrs
}

// Param is a method or delegate parameter.
type Param struct {
	Name  string
	Type  *TypeRef
	Attrs Attrs
}

// Options controls how a contract is loaded.
type Options struct {
	// CoreNamespace prefixes built-in framework namespaces (MonoTouch, MonoMac).
	CoreNamespace string
}

const DefaultCoreNamespace = "MonoTouch"

// Load reads and validates the contract document at path.
func Load(path string, opts Options) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading contract: %w", err)
	}
	c, err := Parse(data, opts)
	if err != nil {
		var be *BindingError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, errors.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a contract document.
func Parse(data []byte, opts Options) (*Contract, error) {
	if opts.CoreNamespace == "" {
		opts.CoreNamespace = DefaultCoreNamespace
	}
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Errorf("decoding contract: %w", err)
	}
	b := &builder{
		doc: &doc,
		c: &Contract{
			Namespace: doc.Namespace,
			table:     newTypeTable(opts.CoreNamespace),
			byName:    make(map[string]*Type),
		},
	}
	if err := b.declare(); err != nil {
		return nil, err
	}
	if err := b.build(); err != nil {
		return nil, err
	}
	return b.c, nil
}

type document struct {
	Namespace string         `yaml:"namespace"`
	Objects   []string       `yaml:"objects"`
	Handles   []declNode     `yaml:"handles"`
	Structs   []declNode     `yaml:"structs"`
	Enums     []declNode     `yaml:"enums"`
	Delegates []delegateNode `yaml:"delegates"`
	Types     []typeNode     `yaml:"types"`
}

type declNode struct {
	Name       string `yaml:"name"`
	Namespace  string `yaml:"namespace"`
	Size       int    `yaml:"size"`
	Core       bool   `yaml:"core"`
	Underlying string `yaml:"underlying"`
	Create     string `yaml:"create"`
}

type delegateNode struct {
	Name      string      `yaml:"name"`
	Namespace string      `yaml:"namespace"`
	Return    string      `yaml:"return"`
	Params    []paramNode `yaml:"params"`
}

type typeNode struct {
	Name       string       `yaml:"name"`
	Namespace  string       `yaml:"namespace"`
	Inherits   []string     `yaml:"inherits"`
	Attributes attrList     `yaml:"attributes"`
	Members    []memberNode `yaml:"members"`
}

type memberNode struct {
	Method           string      `yaml:"method"`
	Property         string      `yaml:"property"`
	Type             string      `yaml:"type"`
	Return           string      `yaml:"return"`
	ReadOnly         bool        `yaml:"readonly"`
	Params           []paramNode `yaml:"params"`
	Attributes       attrList    `yaml:"attributes"`
	ReturnAttributes attrList    `yaml:"returnAttributes"`
	Get              attrList    `yaml:"get"`
	Set              attrList    `yaml:"set"`
}

type paramNode struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	Attributes attrList `yaml:"attributes"`
}

// attrList decodes attribute entries: a bare name, or a single-key map
// whose value holds the arguments.
type attrList []RawAttr

func (l *attrList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return errors.Errorf("line %d: attributes must be a list", node.Line)
	}
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			*l = append(*l, RawAttr{Name: item.Value, Line: item.Line})
		case yaml.MappingNode:
			if len(item.Content) != 2 {
				return errors.Errorf("line %d: attribute entry must have exactly one key", item.Line)
			}
			var args any
			if err := item.Content[1].Decode(&args); err != nil {
				return err
			}
			*l = append(*l, RawAttr{Name: item.Content[0].Value, Args: args, Line: item.Line})
		default:
			return errors.Errorf("line %d: malformed attribute entry", item.Line)
		}
	}
	return nil
}

type builder struct {
	doc *document
	c   *Contract
}

func (b *builder) namespace(ns string) string {
	if ns != "" {
		return ns
	}
	return b.doc.Namespace
}

// declare registers every declared type name before any member is resolved.
func (b *builder) declare() error {
	tt := b.c.table
	for _, o := range b.doc.Objects {
		name, ns := o, b.doc.Namespace
		if i := strings.LastIndexByte(o, '.'); i >= 0 {
			ns, name = o[:i], o[i+1:]
		}
		if err := checkDecl("object", name, ns); err != nil {
			return err
		}
		tt.add(&TypeRef{Kind: KindObject, Name: name, Namespace: ns})
	}
	for _, h := range b.doc.Handles {
		if err := checkDecl("handle", h.Name, b.namespace(h.Namespace)); err != nil {
			return err
		}
		tt.add(&TypeRef{Kind: KindHandle, Name: h.Name, Namespace: b.namespace(h.Namespace), Create: h.Create})
	}
	for _, s := range b.doc.Structs {
		if err := checkDecl("struct", s.Name, b.namespace(s.Namespace)); err != nil {
			return err
		}
		if s.Size <= 0 {
			return errors.Errorf("struct %s: size must be positive", s.Name)
		}
		tt.add(&TypeRef{Kind: KindStruct, Name: s.Name, Namespace: b.namespace(s.Namespace), Size: s.Size, Core: s.Core})
	}
	for _, e := range b.doc.Enums {
		if err := checkDecl("enum", e.Name, b.namespace(e.Namespace)); err != nil {
			return err
		}
		underlying := e.Underlying
		if underlying == "" {
			underlying = "int"
		}
		if !primitives[underlying] {
			return errors.Errorf("enum %s: underlying type %q is not a primitive", e.Name, underlying)
		}
		tt.add(&TypeRef{Kind: KindEnum, Name: e.Name, Namespace: b.namespace(e.Namespace), Underlying: underlying})
	}
	for _, d := range b.doc.Delegates {
		if err := checkDecl("delegate", d.Name, b.namespace(d.Namespace)); err != nil {
			return err
		}
		dt := &DelegateType{Name: d.Name, Namespace: b.namespace(d.Namespace)}
		b.c.Delegates = append(b.c.Delegates, dt)
		tt.add(&TypeRef{Kind: KindDelegate, Name: dt.Name, Namespace: dt.Namespace, Delegate: dt})
	}
	for _, tn := range b.doc.Types {
		ns := b.namespace(tn.Namespace)
		if tn.Name == "" {
			return errors.New("contract type without a name")
		}
		if ns == "" {
			return errors.Errorf("type %s: no namespace", tn.Name)
		}
		if err := checkDecl("type", tn.Name, ns); err != nil {
			return err
		}
		t := &Type{Name: tn.Name, Namespace: ns, Inherits: tn.Inherits}
		if _, dup := b.c.byName[t.FullName()]; dup {
			return errors.Errorf("type %s declared twice", t.FullName())
		}
		b.c.Types = append(b.c.Types, t)
		b.c.byName[t.Name] = t
		b.c.byName[t.FullName()] = t
		tt.add(&TypeRef{Kind: KindObject, Name: t.Name, Namespace: ns, Contract: t})
	}
	return nil
}

func (b *builder) build() error {
	for i, d := range b.doc.Delegates {
		dt := b.c.Delegates[i]
		dt.Return = b.c.table.resolve(d.Return)
		params, err := b.params(d.Params)
		if err != nil {
			return err
		}
		dt.Params = params
	}
	for i, tn := range b.doc.Types {
		t := b.c.Types[i]
		attrs, err := decodeAll(tn.Attributes, OnType)
		if err != nil {
			return err
		}
		t.Attrs = attrs
		if d, ok := Get[*Dispose](attrs); ok {
			if err := checkSnippet(t.Name, "Dispose", d.Code); err != nil {
				return err
			}
		}
		for _, mn := range tn.Members {
			if err := b.member(t, mn); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) member(t *Type, mn memberNode) error {
	switch {
	case mn.Method != "" && mn.Property != "":
		return errors.Errorf("%s: member declares both method %q and property %q", t.Name, mn.Method, mn.Property)
	case mn.Method != "":
		if err := checkName(t.Name+": method", mn.Method); err != nil {
			return err
		}
		if mn.Type != "" || mn.ReadOnly || mn.Get != nil || mn.Set != nil {
			return errors.Errorf("%s.%s: type, readonly, get and set apply to properties", t.Name, mn.Method)
		}
		attrs, err := decodeAll(mn.Attributes, OnMethod)
		if err != nil {
			return err
		}
		retAttrs, err := decodeAll(mn.ReturnAttributes, OnReturn)
		if err != nil {
			return err
		}
		params, err := b.params(mn.Params)
		if err != nil {
			return err
		}
		m := &Method{
			Name:        mn.Method,
			Owner:       t,
			Return:      b.c.table.resolve(mn.Return),
			ReturnAttrs: retAttrs,
			Params:      params,
			Attrs:       attrs,
		}
		if err := checkSnippets(t.Name+"."+m.Name, attrs); err != nil {
			return err
		}
		t.Methods = append(t.Methods, m)
	case mn.Property != "":
		if err := checkName(t.Name+": property", mn.Property); err != nil {
			return err
		}
		if mn.Return != "" || mn.Params != nil || mn.ReturnAttributes != nil {
			return errors.Errorf("%s.%s: return and params apply to methods", t.Name, mn.Property)
		}
		if mn.Type == "" {
			return errors.Errorf("%s.%s: property without a type", t.Name, mn.Property)
		}
		attrs, err := decodeAll(mn.Attributes, OnProperty)
		if err != nil {
			return err
		}
		p := &Property{Name: mn.Property, Owner: t, Type: b.c.table.resolve(mn.Type), Attrs: attrs}
		getAttrs, err := decodeAll(mn.Get, OnAccessor)
		if err != nil {
			return err
		}
		p.Get = &Accessor{Attrs: getAttrs}
		if !mn.ReadOnly {
			setAttrs, err := decodeAll(mn.Set, OnAccessor)
			if err != nil {
				return err
			}
			p.Set = &Accessor{Attrs: setAttrs}
		} else if mn.Set != nil {
			return errors.Errorf("%s.%s: read-only property with setter attributes", t.Name, mn.Property)
		}
		where := t.Name + "." + p.Name
		for _, attrs := range []Attrs{p.Attrs, p.Get.Attrs, setAttrsOf(p)} {
			if err := checkSnippets(where, attrs); err != nil {
				return err
			}
		}
		t.Properties = append(t.Properties, p)
	default:
		return errors.Errorf("%s: member must declare a method or a property", t.Name)
	}
	return nil
}

func setAttrsOf(p *Property) Attrs {
	if p.Set == nil {
		return nil
	}
	return p.Set.Attrs
}

func (b *builder) params(nodes []paramNode) ([]*Param, error) {
	params := make([]*Param, 0, len(nodes))
	for _, pn := range nodes {
		if pn.Name == "" {
			return nil, errors.New("parameter without a name")
		}
		if !csharp.IsIdentifier(pn.Name) {
			return nil, Errorf(ErrInvalidName, "parameter %q is not a valid C# identifier", pn.Name)
		}
		attrs, err := decodeAll(pn.Attributes, OnParam)
		if err != nil {
			return nil, err
		}
		params = append(params, &Param{Name: pn.Name, Type: b.c.table.resolve(pn.Type), Attrs: attrs})
	}
	return params, nil
}

// checkName rejects names that cannot be emitted as C# identifiers or that
// would need escaping.
func checkName(what, name string) error {
	if !csharp.IsIdentifier(name) || csharp.IsKeyword(name) {
		return Errorf(ErrInvalidName, "%s %q is not a valid C# identifier", what, name)
	}
	return nil
}

// checkDecl validates a declared name and each segment of its namespace.
func checkDecl(what, name, ns string) error {
	if err := checkName(what, name); err != nil {
		return err
	}
	if ns == "" {
		return nil
	}
	for _, seg := range strings.Split(ns, ".") {
		if !csharp.IsIdentifier(seg) || csharp.IsKeyword(seg) {
			return Errorf(ErrInvalidName, "%s %s: namespace %q is not a valid C# namespace", what, name, ns)
		}
	}
	return nil
}

func decodeAll(raws attrList, target Target) (Attrs, error) {
	var out Attrs
	for _, raw := range raws {
		a, err := Decode(raw, target)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// checkSnippets verifies that raw C# carried by attrs is well formed.
func checkSnippets(where string, attrs Attrs) error {
	for _, a := range attrs {
		switch v := a.(type) {
		case *Snippet:
			if err := checkSnippet(where, v.AttrName(), v.Code); err != nil {
				return err
			}
		case *Wrap:
			if strings.TrimSpace(v.Expression) == "" {
				return Errorf(ErrMalformedSnippet, "%s: empty Wrap expression", where)
			}
			if err := checkSnippet(where, "Wrap", v.Expression); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkSnippet(where, kind, code string) error {
	if err := scanner.CheckBalanced(code); err != nil {
		return Errorf(ErrMalformedSnippet, "%s: malformed %s: %v", where, kind, err)
	}
	return nil
}
