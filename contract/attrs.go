package contract

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Target is the set of places an attribute may appear.
type Target uint8

const (
	OnType Target = 1 << iota
	OnMethod
	OnProperty
	OnAccessor
	OnParam
	OnReturn

	OnMember = OnMethod | OnProperty
)

func (t Target) String() string {
	switch t {
	case OnType:
		return "type"
	case OnMethod:
		return "method"
	case OnProperty:
		return "property"
	case OnAccessor:
		return "accessor"
	case OnParam:
		return "parameter"
	case OnReturn:
		return "return value"
	}
	return fmt.Sprintf("target(%d)", uint8(t))
}

// Attr is one recognized attribute. The set of implementations is closed:
// Flag plus the argument-carrying structs below.
type Attr interface {
	AttrName() string
}

// Flag is a marker attribute without arguments.
type Flag string

const (
	Static             Flag = "Static"
	Model              Flag = "Model"
	Abstract           Flag = "Abstract"
	Override           Flag = "Override"
	New                Flag = "New"
	Sealed             Flag = "Sealed"
	Internal           Flag = "Internal"
	NullAllowed        Flag = "NullAllowed"
	DisableDefaultCtor Flag = "DisableDefaultCtor"
	PlainString        Flag = "PlainString"
	TargetParam        Flag = "Target"
	CheckDisposed      Flag = "CheckDisposed"
	NoDefaultValue     Flag = "NoDefaultValue"
)

func (f Flag) AttrName() string { return string(f) }

// BaseType declares the native class a contract type binds.
type BaseType struct {
	Type         string   `mapstructure:"type"`
	Name         string   `mapstructure:"name"`
	Delegates    []string `mapstructure:"delegates"`
	Events       []string `mapstructure:"events"`
	Singleton    bool     `mapstructure:"singleton"`
	KeepRefUntil string   `mapstructure:"keepRefUntil"`
}

func (*BaseType) AttrName() string { return "BaseType" }

// Export binds a member to a selector.
type Export struct {
	Selector string `mapstructure:"selector"`
	Semantic string `mapstructure:"semantic"`
}

func (*Export) AttrName() string { return "Export" }

// Bind overrides the selector of a method or accessor. Bound methods are
// non-virtual unless Virtual is set.
type Bind struct {
	Selector string `mapstructure:"selector"`
	Virtual  bool   `mapstructure:"virtual"`
}

func (*Bind) AttrName() string { return "Bind" }

// Wrap implements a member with a C# expression instead of a message send.
type Wrap struct {
	Expression string `mapstructure:"expression"`
}

func (*Wrap) AttrName() string { return "Wrap" }

// Field binds a static property to a global symbol of a native library.
type Field struct {
	Symbol  string `mapstructure:"symbol"`
	Library string `mapstructure:"library"`
}

func (*Field) AttrName() string { return "Field" }

type Since struct {
	Major int `mapstructure:"major"`
	Minor int `mapstructure:"minor"`
}

func (*Since) AttrName() string { return "Since" }

type Obsolete struct {
	Message string `mapstructure:"message"`
}

func (*Obsolete) AttrName() string { return "Obsolete" }

// PostGet names a cached property that is re-read after the call.
type PostGet struct {
	Name string `mapstructure:"name"`
}

func (*PostGet) AttrName() string { return "PostGet" }

// EventArgs names the EventArgs class derived for a callback. The
// "EventArgs" suffix is appended unless FullName is set.
type EventArgs struct {
	Name           string `mapstructure:"name"`
	FullName       bool   `mapstructure:"fullName"`
	SkipGeneration bool   `mapstructure:"skipGeneration"`
}

func (*EventArgs) AttrName() string { return "EventArgs" }

type DelegateName struct {
	Name string `mapstructure:"name"`
}

func (*DelegateName) AttrName() string { return "DelegateName" }

type EventName struct {
	Name string `mapstructure:"name"`
}

func (*EventName) AttrName() string { return "EventName" }

// DefaultValue is returned by a value-returning callback with no handler.
type DefaultValue struct {
	Value any `mapstructure:"value"`
}

func (*DefaultValue) AttrName() string { return "DefaultValue" }

// Literal renders the default value as a C# expression. Strings are taken
// as expressions.
func (d *DefaultValue) Literal() string {
	switch v := d.Value.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

type DefaultValueFromArgument struct {
	Argument string `mapstructure:"argument"`
}

func (*DefaultValueFromArgument) AttrName() string { return "DefaultValueFromArgument" }

// Dispose is C# code run by the generated Dispose override.
type Dispose struct {
	Code string `mapstructure:"code"`
}

func (*Dispose) AttrName() string { return "Dispose" }

type SnippetKind int

const (
	PrologueSnippet SnippetKind = iota
	PreSnippet
	PostSnippet
)

// Snippet is raw C# code injected into a member body.
type Snippet struct {
	Kind SnippetKind `mapstructure:"-"`
	Code string      `mapstructure:"code"`
}

func (s *Snippet) AttrName() string {
	switch s.Kind {
	case PreSnippet:
		return "PreSnippet"
	case PostSnippet:
		return "PostSnippet"
	}
	return "PrologueSnippet"
}

// Retain keeps a reference to the argument in a field named after Name.
type Retain struct {
	Name string `mapstructure:"name"`
}

func (*Retain) AttrName() string { return "Retain" }

// RetainList adds the argument to (or removes it from) a list field.
type RetainList struct {
	Add  bool   `mapstructure:"add"`
	Name string `mapstructure:"name"`
}

func (*RetainList) AttrName() string { return "RetainList" }

// Attrs is an ordered attribute list.
type Attrs []Attr

// Has reports whether the marker f is present.
func (a Attrs) Has(f Flag) bool {
	for _, attr := range a {
		if v, ok := attr.(Flag); ok && v == f {
			return true
		}
	}
	return false
}

// Get returns the first attribute of type T.
func Get[T Attr](attrs Attrs) (T, bool) {
	for _, a := range attrs {
		if v, ok := a.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Snippets returns the code of every snippet of the given kind.
func (a Attrs) Snippets(kind SnippetKind) []string {
	var out []string
	for _, attr := range a {
		if s, ok := attr.(*Snippet); ok && s.Kind == kind {
			out = append(out, s.Code)
		}
	}
	return out
}

// AttrDef describes a recognized attribute.
type AttrDef struct {
	Name    string
	Targets Target
	// Positional maps list or scalar arguments to named ones.
	Positional []string
	// New returns the variant to decode into; nil for markers.
	New func() Attr
}

var registry = make(map[string]*AttrDef)

// Register adds an attribute definition to the vocabulary.
func Register(d *AttrDef) {
	registry[d.Name] = d
}

// Lookup returns a registered attribute definition by name.
func Lookup(name string) (*AttrDef, bool) {
	d, ok := registry[name]
	return d, ok
}

func marker(name Flag, targets Target) {
	Register(&AttrDef{Name: string(name), Targets: targets})
}

func init() {
	marker(Static, OnType|OnMember)
	marker(Model, OnType)
	marker(Abstract, OnMember)
	marker(Override, OnMember)
	marker(New, OnMember)
	marker(Sealed, OnMember)
	marker(Internal, OnMember)
	marker(NullAllowed, OnProperty|OnAccessor|OnParam)
	marker(DisableDefaultCtor, OnType)
	marker(PlainString, OnParam|OnReturn)
	marker(TargetParam, OnParam)
	marker(CheckDisposed, OnParam)
	marker(NoDefaultValue, OnMethod)

	Register(&AttrDef{Name: "BaseType", Targets: OnType, Positional: []string{"type"},
		New: func() Attr { return &BaseType{} }})
	Register(&AttrDef{Name: "Export", Targets: OnMember, Positional: []string{"selector", "semantic"},
		New: func() Attr { return &Export{} }})
	Register(&AttrDef{Name: "Bind", Targets: OnMethod | OnAccessor, Positional: []string{"selector", "virtual"},
		New: func() Attr { return &Bind{} }})
	Register(&AttrDef{Name: "Wrap", Targets: OnMember, Positional: []string{"expression"},
		New: func() Attr { return &Wrap{} }})
	Register(&AttrDef{Name: "Field", Targets: OnProperty, Positional: []string{"symbol", "library"},
		New: func() Attr { return &Field{} }})
	Register(&AttrDef{Name: "Since", Targets: OnType | OnMember, Positional: []string{"major", "minor"},
		New: func() Attr { return &Since{} }})
	Register(&AttrDef{Name: "Obsolete", Targets: OnType | OnMember, Positional: []string{"message"},
		New: func() Attr { return &Obsolete{} }})
	Register(&AttrDef{Name: "PostGet", Targets: OnMethod | OnAccessor, Positional: []string{"name"},
		New: func() Attr { return &PostGet{} }})
	Register(&AttrDef{Name: "EventArgs", Targets: OnMethod, Positional: []string{"name", "fullName", "skipGeneration"},
		New: func() Attr { return &EventArgs{} }})
	Register(&AttrDef{Name: "DelegateName", Targets: OnMethod, Positional: []string{"name"},
		New: func() Attr { return &DelegateName{} }})
	Register(&AttrDef{Name: "EventName", Targets: OnMethod, Positional: []string{"name"},
		New: func() Attr { return &EventName{} }})
	Register(&AttrDef{Name: "DefaultValue", Targets: OnMethod, Positional: []string{"value"},
		New: func() Attr { return &DefaultValue{} }})
	Register(&AttrDef{Name: "DefaultValueFromArgument", Targets: OnMethod, Positional: []string{"argument"},
		New: func() Attr { return &DefaultValueFromArgument{} }})
	Register(&AttrDef{Name: "Dispose", Targets: OnType, Positional: []string{"code"},
		New: func() Attr { return &Dispose{} }})
	Register(&AttrDef{Name: "PrologueSnippet", Targets: OnMember | OnAccessor, Positional: []string{"code"},
		New: func() Attr { return &Snippet{Kind: PrologueSnippet} }})
	Register(&AttrDef{Name: "PreSnippet", Targets: OnMember | OnAccessor, Positional: []string{"code"},
		New: func() Attr { return &Snippet{Kind: PreSnippet} }})
	Register(&AttrDef{Name: "PostSnippet", Targets: OnMember | OnAccessor, Positional: []string{"code"},
		New: func() Attr { return &Snippet{Kind: PostSnippet} }})
	Register(&AttrDef{Name: "Retain", Targets: OnParam | OnAccessor, Positional: []string{"name"},
		New: func() Attr { return &Retain{} }})
	Register(&AttrDef{Name: "RetainList", Targets: OnParam, Positional: []string{"add", "name"},
		New: func() Attr { return &RetainList{} }})
}

// RawAttr is an attribute as written in the contract document, before
// validation.
type RawAttr struct {
	Name string
	Args any // nil, a scalar, []any or map[string]any
	Line int
}

// Decode validates raw against the vocabulary and the target it appears on.
func Decode(raw RawAttr, target Target) (Attr, error) {
	def, ok := Lookup(raw.Name)
	if !ok {
		return nil, Errorf(ErrUnknownAttribute, "line %d: unknown attribute %q", raw.Line, raw.Name)
	}
	if def.Targets&target == 0 {
		return nil, Errorf(ErrUnknownAttribute, "line %d: attribute %q is not valid on a %s", raw.Line, raw.Name, target)
	}
	if def.New == nil {
		if raw.Args != nil {
			return nil, Errorf(ErrUnknownAttribute, "line %d: attribute %q takes no arguments", raw.Line, raw.Name)
		}
		return Flag(raw.Name), nil
	}

	args, err := def.named(raw.Args)
	if err != nil {
		return nil, Errorf(ErrUnknownAttribute, "line %d: attribute %q: %v", raw.Line, raw.Name, err)
	}
	attr := def.New()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           attr,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(args); err != nil {
		return nil, Errorf(ErrUnknownAttribute, "line %d: attribute %q: %s", raw.Line, raw.Name, flattenDecodeError(err))
	}
	if sel, ok := selectorOf(Attrs{attr}); ok && strings.TrimSpace(sel) == "" {
		return nil, Errorf(ErrMissingSelector, "line %d: attribute %q has an empty selector", raw.Line, raw.Name)
	}
	return attr, nil
}

// named converts scalar and list arguments to named ones.
func (d *AttrDef) named(args any) (map[string]any, error) {
	switch v := args.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case []any:
		if len(v) > len(d.Positional) {
			return nil, fmt.Errorf("expected at most %d arguments, got %d", len(d.Positional), len(v))
		}
		out := make(map[string]any, len(v))
		for i, a := range v {
			out[d.Positional[i]] = a
		}
		return out, nil
	default:
		return map[string]any{d.Positional[0]: v}, nil
	}
}

// flattenDecodeError joins mapstructure's multi-line error into one line.
func flattenDecodeError(err error) string {
	if me, ok := err.(*mapstructure.Error); ok {
		return strings.Join(me.Errors, "; ")
	}
	return err.Error()
}
