package generator

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/mono/maccore/contract"
)

// generate runs the generator over a contract document and returns the
// files by path with indentation stripped from every line.
func generate(t *testing.T, doc string, opts Options) (map[string]string, *Generator) {
	t.Helper()
	c, err := contract.Parse([]byte(doc), contract.Options{})
	require.NoError(t, err)
	g := New(c, opts)
	files, err := g.Generate(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Path] = normalize(string(f.Content))
	}
	return out, g
}

func generateErr(t *testing.T, doc string) error {
	t.Helper()
	c, err := contract.Parse([]byte(doc), contract.Options{})
	require.NoError(t, err)
	files, err := New(c, Options{}).Generate(context.Background())
	assert.Nil(t, files)
	return err
}

func scenarios(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/scenarios.yaml")
	require.NoError(t, err)
	return string(data)
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}

func block(lines ...string) string {
	return strings.Join(lines, "\n")
}

func TestGenerate_Files(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	var paths []string
	for p := range files {
		paths = append(paths, p)
	}
	assert.ElementsMatch(t, []string{
		"MonoTouch/Foo/Person.g.cs",
		"MonoTouch/Foo/FooConstants.g.cs",
		"MonoTouch/Foo/Player.g.cs",
		"MonoTouch/Foo/PlayerDelegate.g.cs",
		"MonoTouch/Foo/Delegates.g.cs",
		"MonoTouch/ObjCRuntime/Messaging.g.cs",
		"MonoTouch/ObjCRuntime/Trampolines.g.cs",
	}, paths)

	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.True(t, strings.HasPrefix(person, "// Generated by btouch. DO NOT EDIT.\n"))
	assert.Contains(t, person, "using MonoTouch.ObjCRuntime;")
	assert.Contains(t, person, block(
		`[Register ("FOOPerson")]`,
		"public partial class Person : NSObject {",
	))
	assert.Contains(t, person, `static readonly IntPtr class_ptr = Class.GetHandle ("FOOPerson");`)
	assert.Contains(t, person, block(
		"public override IntPtr ClassHandle {",
		"get {",
		"return class_ptr;",
		"}",
		"}",
	))
}

func TestGenerate_SelectorDeterminism(t *testing.T) {
	ctx := newContext()
	assert.Equal(t, "selInitWithCoder_", ctx.SelectorField("initWithCoder:"))
	assert.Equal(t, "selInitWithCoder_", ctx.SelectorField("initWithCoder:"))

	// "foo:" and "foo_" map to the same base name.
	assert.Equal(t, "selFoo_", ctx.SelectorField("foo:"))
	assert.Equal(t, "selFoo_2", ctx.SelectorField("foo_"))
	assert.Equal(t, "selFoo_", ctx.SelectorField("foo:"))

	if diff := cmp.Diff([]SelectorEntry{
		{Selector: "initWithCoder:", Field: "selInitWithCoder_"},
		{Selector: "foo:", Field: "selFoo_"},
		{Selector: "foo_", Field: "selFoo_2"},
	}, ctx.Selectors()); diff != "" {
		t.Errorf("Selectors() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_SelectorFieldsOncePerType(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: Thing
    attributes: [{BaseType: NSObject}]
    members:
      - method: Open
        attributes: [{Export: open}]
      - method: OpenAgain
        attributes: [{Export: open}]
`
	files, _ := generate(t, doc, Options{})
	thing := files["MonoTouch/Foo/Thing.g.cs"]
	assert.Equal(t, 1, strings.Count(thing, `static readonly IntPtr selOpen = Selector.GetHandle ("open");`))
	assert.Equal(t, 2, strings.Count(thing, "Messaging.void_objc_msgSend (this.Handle, selOpen);"))
}

func TestGenerate_Overloads(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: Collection
    inherits: [Adding]
    attributes: [{BaseType: NSObject}]
    members:
      - method: Add
        params: [{name: value, type: int}]
        attributes: [{Export: "addInt:"}]
      - method: Add
        params: [{name: value, type: string}]
        attributes: [{Export: "addString:"}]
  - name: Adding
    members:
      - method: Add
        params: [{name: value, type: int}]
        attributes: [{Export: "addInt:"}]
      - method: Add
        params: [{name: value, type: double}]
        attributes: [{Export: "addDouble:"}]
      - method: Clear
        attributes: [{Export: clear}]
`
	files, _ := generate(t, doc, Options{})
	src := files["MonoTouch/Foo/Collection.g.cs"]
	assert.Equal(t, 1, strings.Count(src, `[Export ("addInt:")]`))
	assert.Contains(t, src, block(`[Export ("addString:")]`, "public virtual void Add (string value)"))
	assert.Contains(t, src, block(`[Export ("addDouble:")]`, "public virtual void Add (double value)"))
	assert.Contains(t, src, `[Export ("clear")]`)
	assert.Equal(t, 4, strings.Count(src, "public virtual void "))
}

func TestGenerate_SignatureDedup(t *testing.T) {
	files, g := generate(t, scenarios(t), Options{})
	messaging := files["MonoTouch/ObjCRuntime/Messaging.g.cs"]

	// Frame and Bounds share one shape.
	assert.Equal(t, 1, strings.Count(messaging, "RectangleF_objc_msgSend_stret ("))
	assert.Contains(t, messaging, block(
		`[DllImport (LIBOBJC_DYLIB, EntryPoint="objc_msgSend_stret")]`,
		"public extern static void RectangleF_objc_msgSend_stret (out RectangleF retval, IntPtr receiver, IntPtr selector);",
	))
	assert.Contains(t, messaging, "using System.Drawing;")

	seen := map[string]bool{}
	for _, s := range g.Context().Sends() {
		assert.False(t, seen[s.Name], "duplicate send %s", s.Name)
		seen[s.Name] = true
	}
	assert.True(t, seen["void_objc_msgSend_int_float"])
	assert.True(t, seen["IntPtr_objc_msgSendSuper"])
}

func TestSignature_Name(t *testing.T) {
	rect := &contract.TypeRef{Kind: contract.KindStruct, Name: "RectangleF", Size: 16}
	str := &contract.TypeRef{Kind: contract.KindString, Name: "string"}
	tests := []struct {
		name  string
		sig   signature
		super bool
		stret bool
		want  string
	}{
		{"void", signature{}, false, false, "void_objc_msgSend"},
		{"super", signature{}, true, false, "void_objc_msgSendSuper"},
		{"stret", signature{ret: &marshalInfo{Type: rect, Strategy: marshalStruct}}, false, true, "RectangleF_objc_msgSend_stret"},
		{"params", signature{params: []marshalInfo{
			{Type: str, Strategy: marshalNSString},
			{Type: &contract.TypeRef{Kind: contract.KindEnum, Name: "E", Underlying: "uint"}, Strategy: marshalEnum},
			{Type: str, Plain: true, Strategy: marshalPlainString},
		}}, false, false, "void_objc_msgSend_IntPtr_uint_string"},
		{"out struct", signature{params: []marshalInfo{
			{Type: &contract.TypeRef{Kind: contract.KindByRef, Modifier: "out", Elem: rect}, Strategy: marshalByRefStruct},
		}}, false, false, "void_objc_msgSend_out_RectangleF"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sig.name(tt.super, tt.stret))
		})
	}
}

func TestStretClassification(t *testing.T) {
	tests := []struct {
		name     string
		typ      *contract.TypeRef
		arm, x86 bool
	}{
		{"int", &contract.TypeRef{Kind: contract.KindPrimitive, Name: "int"}, false, false},
		{"double", &contract.TypeRef{Kind: contract.KindPrimitive, Name: "double"}, false, false},
		{"enum", &contract.TypeRef{Kind: contract.KindEnum, Name: "E", Underlying: "long"}, false, false},
		{"object", &contract.TypeRef{Kind: contract.KindObject, Name: "NSObject"}, false, false},
		{"string", &contract.TypeRef{Kind: contract.KindString, Name: "string"}, false, false},
		{"core struct", &contract.TypeRef{Kind: contract.KindStruct, Name: "DateTime", Size: 8, Core: true}, false, false},
		{"8 byte struct", &contract.TypeRef{Kind: contract.KindStruct, Name: "PointF", Size: 8}, true, false},
		{"16 byte struct", &contract.TypeRef{Kind: contract.KindStruct, Name: "RectangleF", Size: 16}, true, true},
		{"nil", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.arm, ArmNeedStret(tt.typ))
			assert.Equal(t, tt.x86, X86NeedStret(tt.typ))
		})
	}
}

func TestPlanFor(t *testing.T) {
	point := &contract.TypeRef{Kind: contract.KindStruct, Name: "PointF", Size: 8}
	rect := &contract.TypeRef{Kind: contract.KindStruct, Name: "RectangleF", Size: 16}

	g := New(&contract.Contract{}, Options{})
	assert.Equal(t, abiPlan{branch: true, device: true, simulator: false}, g.planFor(point))
	assert.Equal(t, abiPlan{device: true}, g.planFor(rect))

	desktop := New(&contract.Contract{}, Options{Desktop: true})
	assert.Equal(t, abiPlan{}, desktop.planFor(point))
	assert.Equal(t, abiPlan{device: true}, desktop.planFor(rect))
}

func TestGenerate_ArchBranch(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, block(
		`[Export ("origin")]`,
		"public virtual PointF Origin ()",
		"{",
		"PointF ret;",
		"if (IsDirectBinding) {",
		"if (Runtime.Arch == Arch.DEVICE) {",
		"Messaging.PointF_objc_msgSend_stret (out ret, this.Handle, selOrigin);",
		"} else {",
		"ret = Messaging.PointF_objc_msgSend (this.Handle, selOrigin);",
		"}",
		"} else {",
		"if (Runtime.Arch == Arch.DEVICE) {",
		"Messaging.PointF_objc_msgSendSuper_stret (out ret, this.SuperHandle, selOrigin);",
		"} else {",
		"ret = Messaging.PointF_objc_msgSendSuper (this.SuperHandle, selOrigin);",
		"}",
		"}",
		"return ret;",
		"}",
	))

	desktop, _ := generate(t, scenarios(t), Options{Desktop: true})
	person = desktop["MonoTouch/Foo/Person.g.cs"]
	assert.NotContains(t, person, "Runtime.Arch")
	assert.Contains(t, person, "return Messaging.PointF_objc_msgSend (this.Handle, selOrigin);")
}

func TestGenerate_CallSites(t *testing.T) {
	_, g := generate(t, scenarios(t), Options{})
	byMember := make(map[string]CallSite)
	for _, cs := range g.Context().CallSites() {
		byMember[cs.Member] = cs
	}
	assert.Equal(t, CallSite{Type: "Person", Member: "Origin", Selector: "origin", Return: "PointF", ArmStret: true}, byMember["Origin"])
	assert.Equal(t, CallSite{Type: "Person", Member: "Frame", Selector: "frame", Return: "RectangleF", ArmStret: true, X86Stret: true}, byMember["Frame"])
	assert.Equal(t, CallSite{Type: "Person", Member: "SetFooBar", Selector: "foo:bar:", Return: "void"}, byMember["SetFooBar"])
}

// A read/write string property reconstructs the managed string in the
// getter and wraps it in an NSString in the setter.
func TestGenerate_ScenarioStringProperty(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, block(
		"public virtual string Name {",
		`[Export ("name")]`,
		"get {",
		"if (IsDirectBinding) {",
		"return NSString.FromHandle (Messaging.IntPtr_objc_msgSend (this.Handle, selName));",
		"} else {",
		"return NSString.FromHandle (Messaging.IntPtr_objc_msgSendSuper (this.SuperHandle, selName));",
		"}",
		"}",
		`[Export ("setName:")]`,
		"set {",
		"if (value == null)",
		`throw new ArgumentNullException ("value");`,
		"var nsvalue = new NSString (value);",
		"if (IsDirectBinding) {",
		"Messaging.void_objc_msgSend_IntPtr (this.Handle, selSetName_, nsvalue.Handle);",
		"} else {",
		"Messaging.void_objc_msgSendSuper_IntPtr (this.SuperHandle, selSetName_, nsvalue.Handle);",
		"}",
		"nsvalue.Dispose ();",
		"}",
		"}",
	))
}

// A sealed method with primitive parameters calls the entry point once,
// unconditionally.
func TestGenerate_ScenarioDirectCall(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, block(
		`[Export ("foo:bar:")]`,
		"public void SetFooBar (int a, float b)",
		"{",
		"Messaging.void_objc_msgSend_int_float (this.Handle, selFoo_bar_, a, b);",
		"}",
	))
}

func TestGenerate_ScenarioStaticMethod(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, block(
		`[Export ("personWithName:")]`,
		"public static Person Create (string name)",
		"{",
		"if (name == null)",
		`throw new ArgumentNullException ("name");`,
		"var nsname = new NSString (name);",
		"Person ret;",
		"ret = (Person) Runtime.GetNSObject (Messaging.IntPtr_objc_msgSend_IntPtr (class_ptr, selPersonWithName_, nsname.Handle));",
		"nsname.Dispose ();",
		"return ret;",
		"}",
	))
	assert.NotContains(t, person, "IntPtr_objc_msgSendSuper_IntPtr (class_ptr")
}

func TestGenerate_ScenarioFieldConstants(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	consts := files["MonoTouch/Foo/FooConstants.g.cs"]
	assert.Contains(t, consts, "public static partial class FooConstants {")
	assert.Equal(t, 1, strings.Count(consts, "static IntPtr Lib_libraryHandle;"))
	assert.Contains(t, consts, block(
		`[Field ("kFoo", "Lib")]`,
		"public static NSString Foo {",
		"get {",
		"if (Lib_libraryHandle == IntPtr.Zero)",
		"Lib_libraryHandle = Dlfcn.dlopen (Constants.LibLibrary, 0);",
		"if (_Foo == null)",
		`_Foo = Dlfcn.GetStringConstant (Lib_libraryHandle, "kFoo");`,
		"return _Foo;",
		"}",
		"}",
	))
	assert.Contains(t, consts, `_Bar = Dlfcn.GetStringConstant (Lib_libraryHandle, "kBar");`)
	assert.Contains(t, consts, `return Dlfcn.GetInt32 (Lib_libraryHandle, "kBaz");`)
	assert.NotContains(t, consts, "_Baz")
	assert.NotContains(t, consts, "class_ptr")
}

func TestGenerate_FieldLibraries(t *testing.T) {
	doc := `
namespace: MonoTouch.CoreText
types:
  - name: Keys
    attributes: [Static]
    members:
      - {property: Default, type: NSString, readonly: true, attributes: [{Field: kDefault}]}
      - {property: Main, type: IntPtr, readonly: true, attributes: [{Field: [kMain, __Internal]}]}
      - {property: Path, type: double, readonly: true, attributes: [{Field: [kPath, /usr/lib/libfoo.dylib]}]}
`
	files, _ := generate(t, doc, Options{})
	keys := files["MonoTouch/CoreText/Keys.g.cs"]
	assert.Contains(t, keys, `[Field ("kDefault")]`)
	assert.Contains(t, keys, "CoreText_libraryHandle = Dlfcn.dlopen (Constants.CoreTextLibrary, 0);")
	assert.Contains(t, keys, "__Internal_libraryHandle = Dlfcn.dlopen (null, 0);")
	assert.Contains(t, keys, `libfoo_libraryHandle = Dlfcn.dlopen ("/usr/lib/libfoo.dylib", 0);`)
	assert.Contains(t, keys, `return Dlfcn.GetDouble (libfoo_libraryHandle, "kPath");`)
}

func TestGenerate_Constructors(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, block(
		"[EditorBrowsable (EditorBrowsableState.Advanced)]",
		`[Export ("init")]`,
		"public Person () : base (NSObjectFlag.Empty)",
		"{",
		"Handle = Messaging.IntPtr_objc_msgSend (this.Handle, Selector.Init);",
		"}",
	))
	assert.Contains(t, person, "Handle = Messaging.IntPtr_objc_msgSend_IntPtr (this.Handle, Selector.InitWithCoder, coder.Handle);")
	assert.Contains(t, person, "public Person (NSObjectFlag t) : base (t) {}")
	assert.Contains(t, person, "public Person (IntPtr handle) : base (handle) {}")

	external, _ := generate(t, scenarios(t), Options{External: true, RuntimeNamespace: "Bindings.ObjCRuntime"})
	person = external["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, block(
		"public Person () : base (NSObjectFlag.Empty)",
		"{",
		"IsDirectBinding = GetType ().Assembly == global::Bindings.ObjCRuntime.Messaging.this_assembly;",
		"if (IsDirectBinding) {",
		"Handle = Messaging.IntPtr_objc_msgSend (this.Handle, Selector.Init);",
		"} else {",
		"Handle = Messaging.IntPtr_objc_msgSendSuper (this.SuperHandle, Selector.Init);",
		"}",
		"}",
	))
	assert.Contains(t, external, "Bindings/ObjCRuntime/Messaging.g.cs")
}

func TestGenerate_ConstructorSuppression(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: NoInit
    attributes: [{BaseType: NSObject}, DisableDefaultCtor]
  - name: Shared
    attributes: [{BaseType: {type: NSObject, singleton: true}}]
  - name: Helpers
    attributes: [Static]
`
	files, _ := generate(t, doc, Options{})
	noInit := files["MonoTouch/Foo/NoInit.g.cs"]
	assert.NotContains(t, noInit, `[Export ("init")]`)
	assert.Contains(t, noInit, `[Export ("initWithCoder:")]`)
	assert.Contains(t, noInit, "public NoInit (IntPtr handle) : base (handle) {}")

	shared := files["MonoTouch/Foo/Shared.g.cs"]
	assert.NotContains(t, shared, `[Export ("init")]`)
	assert.NotContains(t, shared, `[Export ("initWithCoder:")]`)
	assert.Contains(t, shared, "public Shared (NSObjectFlag t) : base (t) {}")

	helpers := files["MonoTouch/Foo/Helpers.g.cs"]
	assert.NotContains(t, helpers, "public Helpers (")
	assert.NotContains(t, helpers, "ClassHandle")
}

func TestGenerate_PropertyCache(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, "object __mt_Owner_var;")
	assert.Contains(t, person, block(
		"__mt_Owner_var = ret;",
		"return ret;",
	))
	assert.Contains(t, person, block(
		"protected override void Dispose (bool disposing)",
		"{",
		"base.Dispose (disposing);",
		"if (Handle == IntPtr.Zero)",
		"__mt_Owner_var = null;",
		"}",
	))
}

func TestGenerate_Trampolines(t *testing.T) {
	files, g := generate(t, scenarios(t), Options{})
	if diff := cmp.Diff([]string{"TNSAction"}, g.Context().Trampolines()); diff != "" {
		t.Errorf("Trampolines() mismatch (-want +got):\n%s", diff)
	}

	tramp := files["MonoTouch/ObjCRuntime/Trampolines.g.cs"]
	assert.Equal(t, 1, strings.Count(tramp, "internal delegate void DNSAction (IntPtr block);"))
	assert.Contains(t, tramp, "static internal readonly DNSAction Handler = TNSAction;")
	assert.Contains(t, tramp, block(
		"[MonoPInvokeCallback (typeof (DNSAction))]",
		"static unsafe void TNSAction (IntPtr block)",
		"{",
		"var descriptor = (BlockLiteral *) block;",
	))
	assert.Contains(t, tramp, "var del = (global::MonoTouch.Foo.NSAction) (descriptor->global_handle != IntPtr.Zero")
	assert.Contains(t, tramp, block("if (del != null)", "del ();"))

	person := files["MonoTouch/Foo/Person.g.cs"]
	assert.Contains(t, person, "public unsafe virtual void Run (NSAction action)")
	assert.Contains(t, person, block(
		"if (action == null)",
		`throw new ArgumentNullException ("action");`,
		"BlockLiteral * block_ptr_action;",
		"BlockLiteral block_action;",
		"block_action = new BlockLiteral ();",
		"block_ptr_action = &block_action;",
		"block_action.SetupBlock (Trampolines.SNSAction.Handler, action);",
	))
	assert.Contains(t, person, "Messaging.void_objc_msgSend_IntPtr (this.Handle, selRunWithAction_, (IntPtr) block_ptr_action);")
	assert.Contains(t, person, "block_ptr_action->CleanupBlock ();")
	assert.Contains(t, person, block(
		"if (action == null) {",
		"block_ptr_action = null;",
		"} else {",
	))
	assert.Contains(t, person, block("if (block_ptr_action != null)", "block_ptr_action->CleanupBlock ();"))
}

func TestTrampoline_Identity(t *testing.T) {
	c, err := contract.Parse([]byte(scenarios(t)), contract.Options{})
	require.NoError(t, err)
	g := New(c, Options{})
	d := c.Delegates[0]

	first, err := g.trampoline(d, "test")
	require.NoError(t, err)
	second, err := g.trampoline(d, "test")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "TNSAction", second.wrapperName)
	assert.Len(t, g.Context().Trampolines(), 1)
}

func TestTrampoline_Conversions(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
enums: [{name: Mode, underlying: uint}]
delegates:
  - name: Completion
    return: bool
    params:
      - {name: text, type: string}
      - {name: error, type: NSError}
      - {name: mode, type: Mode}
      - {name: items, type: "NSObject[]"}
types:
  - name: Loader
    attributes: [{BaseType: NSObject}]
    members:
      - method: Load
        params: [{name: done, type: Completion}]
        attributes: [{Export: "load:"}]
`
	files, _ := generate(t, doc, Options{})
	tramp := files["MonoTouch/ObjCRuntime/Trampolines.g.cs"]
	assert.Contains(t, tramp, "internal delegate bool DCompletion (IntPtr block, IntPtr text, IntPtr error, uint mode, IntPtr items);")
	assert.Contains(t, tramp, "var ret = del (NSString.FromHandle (text), (global::MonoTouch.Foundation.NSError) Runtime.GetNSObject (error), (global::MonoTouch.Foo.Mode) mode, NSArray.ArrayFromHandle<global::MonoTouch.Foundation.NSObject> (items));")
	assert.Contains(t, tramp, block("if (del == null)", "return default (bool);"))
}

func TestGenerate_Events(t *testing.T) {
	files, _ := generate(t, scenarios(t), Options{})
	player := files["MonoTouch/Foo/Player.g.cs"]

	assert.Contains(t, player, block(
		"_PlayerDelegate EnsurePlayerDelegate ()",
		"{",
		"var del = WeakDelegate;",
		"if (del == null || (!(del is _PlayerDelegate))) {",
		"del = new _PlayerDelegate ();",
		"WeakDelegate = del;",
		"}",
		"return (_PlayerDelegate) del;",
		"}",
	))
	assert.Contains(t, player, block(
		"public event EventHandler DidStart {",
		"add { EnsurePlayerDelegate ().didStart += value; }",
		"remove { EnsurePlayerDelegate ().didStart -= value; }",
		"}",
	))
	assert.Contains(t, player, "public event EventHandler<PlayerFinishedEventArgs> DidFinish {")
	assert.Contains(t, player, block(
		"public PlayerPredicate ShouldPlay {",
		"get {",
		"return EnsurePlayerDelegate ().shouldPlay;",
		"}",
		"set {",
		"EnsurePlayerDelegate ().shouldPlay = value;",
		"}",
		"}",
	))

	assert.Contains(t, player, block(
		"#pragma warning disable 672",
		"[Register]",
		"sealed class _PlayerDelegate : PlayerDelegate {",
		"public _PlayerDelegate ()",
		"{",
		"IsDirectBinding = false;",
		"}",
	))
	assert.Contains(t, player, "internal EventHandler<PlayerFinishedEventArgs> didFinish;")
	assert.Contains(t, player, block(
		"[Preserve (Conditional = true)]",
		"public override void DidStart (Player player)",
		"{",
		"if (didStart != null)",
		"didStart (player, EventArgs.Empty);",
		"}",
	))
	assert.Contains(t, player, block(
		"public override void DidFinish (Player player, bool success)",
		"{",
		"if (didFinish != null) {",
		"var args = new PlayerFinishedEventArgs (success);",
		"didFinish (player, args);",
		"}",
		"}",
	))
	assert.Contains(t, player, block(
		"public override bool ShouldPlay (Player player)",
		"{",
		"if (shouldPlay != null)",
		"return shouldPlay (player);",
		"return true;",
		"}",
	))
	assert.Contains(t, player, "#pragma warning restore 672")

	delegates := files["MonoTouch/Foo/Delegates.g.cs"]
	assert.Contains(t, delegates, "public delegate bool PlayerPredicate (Player player);")
	assert.Contains(t, delegates, block(
		"public partial class PlayerFinishedEventArgs : EventArgs {",
		"public PlayerFinishedEventArgs (bool success)",
		"{",
		"this.Success = success;",
		"}",
		"",
		"public bool Success { get; set; }",
	))
	assert.NotContains(t, delegates, "delegate void NSAction")
}

func TestGenerate_ModelMembers(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: TableSource
    attributes: [{BaseType: NSObject}, Model]
    members:
      - method: RowCount
        return: int
        attributes: [Abstract, {Export: "numberOfRows"}]
      - method: Selected
        params: [{name: row, type: int}]
        attributes: [{Export: "didSelect:"}]
      - {property: Editing, type: bool, attributes: [{Export: editing}]}
`
	files, _ := generate(t, doc, Options{})
	src := files["MonoTouch/Foo/TableSource.g.cs"]
	assert.Contains(t, src, block(`[Register ("TableSource")]`, "[Model]", "public abstract partial class TableSource : NSObject {"))
	assert.Contains(t, src, block(`[Export ("numberOfRows")]`, "public abstract int RowCount ();"))
	assert.Contains(t, src, block(
		"public virtual void Selected (int row)",
		"{",
		"throw new You_Should_Not_Call_base_In_This_Method ();",
		"}",
	))
	assert.Contains(t, src, `static readonly IntPtr selDidSelect_ = Selector.GetHandle ("didSelect:");`)
	assert.Contains(t, src, `static readonly IntPtr selEditing = Selector.GetHandle ("editing");`)
	assert.Contains(t, src, `static readonly IntPtr selSetEditing_ = Selector.GetHandle ("setEditing:");`)
	assert.NotContains(t, src, "selNumberOfRows")
	assert.NotContains(t, src, "class_ptr")
}

func TestGenerate_KeepRefUntil(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: Alert
    attributes:
      - BaseType: {type: NSObject, delegates: [Delegate], events: [AlertDelegate], keepRefUntil: Dismissed}
    members:
      - {property: Delegate, type: NSObject, attributes: [{Export: delegate}]}
  - name: AlertDelegate
    attributes: [{BaseType: NSObject}, Model]
    members:
      - method: Dismissed
        params: [{name: alert, type: Alert}]
        attributes: [{Export: "alertDismissed:"}]
`
	files, _ := generate(t, doc, Options{})
	alert := files["MonoTouch/Foo/Alert.g.cs"]
	assert.Contains(t, alert, "static System.Collections.ArrayList instances;")
	assert.Contains(t, alert, block(
		"if (instances == null)",
		"instances = new System.Collections.ArrayList ();",
		"instances.Add (this);",
	))
	assert.Contains(t, alert, block(
		"dismissed (alert, EventArgs.Empty);",
		"if (instances != null)",
		"instances.Remove (this);",
	))
}

func TestGenerate_BodyOrder(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: View
    attributes: [{BaseType: NSObject}]
    members:
      - method: Add
        params:
          - {name: child, type: View, attributes: [{RetainList: [true, Children]}]}
          - {name: tags, type: "string[]", attributes: [NullAllowed]}
        attributes:
          - Export: "addChild:tags:"
          - PrologueSnippet: "Check ();"
          - PreSnippet: "Before ();"
          - PostSnippet: "After ();"
          - PostGet: Subviews
      - method: Load
        params:
          - {name: error, type: out NSError}
        return: bool
        attributes: [{Export: "load:"}]
`
	files, _ := generate(t, doc, Options{})
	view := files["MonoTouch/Foo/View.g.cs"]
	assert.Contains(t, view, block(
		"public virtual void Add (View child, string[] tags)",
		"{",
		"Check ();",
		"if (child == null)",
		`throw new ArgumentNullException ("child");`,
		"var nsa_tags = tags == null ? null : NSArray.FromStrings (tags);",
		"if (__mt_Children_var == null)",
		"__mt_Children_var = new System.Collections.ArrayList ();",
		"__mt_Children_var.Add (child);",
		"Before ();",
		"if (IsDirectBinding) {",
		"Messaging.void_objc_msgSend_IntPtr_IntPtr (this.Handle, selAddChild_tags_, child.Handle, nsa_tags == null ? IntPtr.Zero : nsa_tags.Handle);",
		"} else {",
		"Messaging.void_objc_msgSendSuper_IntPtr_IntPtr (this.SuperHandle, selAddChild_tags_, child.Handle, nsa_tags == null ? IntPtr.Zero : nsa_tags.Handle);",
		"}",
		"After ();",
		"if (nsa_tags != null)",
		"nsa_tags.Dispose ();",
		"#pragma warning disable 168",
		"var postget0 = Subviews;",
		"#pragma warning restore 168",
		"}",
	))
	assert.Contains(t, view, "System.Collections.ArrayList __mt_Children_var;")
	assert.Contains(t, view, "__mt_Children_var = null;")

	assert.Contains(t, view, block(
		"public virtual bool Load (out NSError error)",
		"{",
		"IntPtr errorValue = IntPtr.Zero;",
		"bool ret;",
	))
	assert.Contains(t, view, "ret = Messaging.bool_objc_msgSend_out_IntPtr (this.Handle, selLoad_, out errorValue);")
	assert.Contains(t, view, "error = errorValue != IntPtr.Zero ? (NSError) Runtime.GetNSObject (errorValue) : null;")
}

func TestGenerate_Wrap(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: Label
    attributes: [{BaseType: NSObject}]
    members:
      - {property: WeakDelegate, type: NSObject, attributes: [{Export: delegate}]}
      - {property: Delegate, type: Label, attributes: [{Wrap: WeakDelegate}]}
      - {property: Count, type: int, readonly: true, attributes: [{Wrap: "Items.Length"}]}
      - method: Clear
        attributes: [{Wrap: "SetText (null)"}]
`
	files, _ := generate(t, doc, Options{})
	label := files["MonoTouch/Foo/Label.g.cs"]
	assert.Contains(t, label, block(
		"public virtual Label Delegate {",
		"get {",
		"return WeakDelegate as Label;",
		"}",
		"set {",
		"WeakDelegate = value;",
		"}",
		"}",
	))
	assert.Contains(t, label, "return (int) Items.Length;")
	assert.Contains(t, label, block("public virtual void Clear ()", "{", "SetText (null);", "}"))
}

func TestEventArgsName(t *testing.T) {
	tests := []struct {
		name    string
		ea      contract.EventArgs
		want    string
		wantErr bool
	}{
		{"suffix appended", contract.EventArgs{Name: "Foo"}, "FooEventArgs", false},
		{"full name", contract.EventArgs{Name: "Foo", FullName: true}, "Foo", false},
		{"full name with suffix", contract.EventArgs{Name: "FooEventArgs", FullName: true}, "FooEventArgs", false},
		{"suffix rejected", contract.EventArgs{Name: "FooEventArgs"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EventArgsName("Proto.Method", &tt.ea)
			if tt.wantErr {
				var be *contract.BindingError
				require.True(t, errors.As(err, &be))
				assert.Equal(t, contract.ErrEventArgsSuffix, be.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	eventDoc := func(method string) string {
		return `
namespace: MonoTouch.Foo
types:
  - name: Owner
    attributes: [{BaseType: {type: NSObject, delegates: [Delegate], events: [OwnerDelegate]}}]
    members:
      - {property: Delegate, type: NSObject, attributes: [{Export: delegate}]}
  - name: OwnerDelegate
    attributes: [{BaseType: NSObject}, Model]
    members:
` + method
	}
	tests := []struct {
		name string
		doc  string
		code contract.Code
	}{
		{
			name: "missing selector",
			doc: `
namespace: MonoTouch.Foo
types:
  - name: A
    attributes: [{BaseType: NSObject}]
    members:
      - {method: Run}
`,
			code: contract.ErrMissingSelector,
		},
		{
			name: "retained list reuses property cache",
			doc: `
namespace: MonoTouch.Foo
types:
  - name: A
    attributes: [{BaseType: NSObject}]
    members:
      - {property: Item, type: NSObject, attributes: [{Export: item}]}
      - method: AddItem
        params: [{name: item, type: NSObject, attributes: [{RetainList: [true, Item]}]}]
        attributes: [{Export: "addItem:"}]
`,
			code: contract.ErrFieldClash,
		},
		{
			name: "unknown type",
			doc: `
namespace: MonoTouch.Foo
types:
  - name: A
    attributes: [{BaseType: NSObject}]
    members:
      - {method: Run, params: [{name: x, type: Mystery}], attributes: [{Export: "run:"}]}
`,
			code: contract.ErrUnknownKind,
		},
		{
			name: "no signature for int array",
			doc: `
namespace: MonoTouch.Foo
types:
  - name: A
    attributes: [{BaseType: NSObject}]
    members:
      - {method: Run, params: [{name: x, type: "int[]"}], attributes: [{Export: "run:"}]}
`,
			code: contract.ErrNoSignature,
		},
		{
			name: "unsupported field",
			doc: `
namespace: MonoTouch.Foo
types:
  - name: K
    attributes: [Static]
    members:
      - {property: P, type: RectangleF, readonly: true, attributes: [{Field: kP}]}
`,
			code: contract.ErrUnsupportedField,
		},
		{
			name: "unknown inherited type",
			doc: `
namespace: MonoTouch.Foo
types:
  - name: A
    inherits: [Missing]
    attributes: [{BaseType: NSObject}]
`,
			code: contract.ErrUnknownContract,
		},
		{
			name: "unknown event type",
			doc: `
namespace: MonoTouch.Foo
types:
  - name: A
    attributes: [{BaseType: {type: NSObject, delegates: [Delegate], events: [Missing]}}]
`,
			code: contract.ErrUnknownContract,
		},
		{
			name: "callback without parameters",
			doc:  eventDoc("      - {method: Fired, attributes: [{Export: fired}]}\n"),
			code: contract.ErrCallbackNoParams,
		},
		{
			name: "callback without EventArgs",
			doc:  eventDoc("      - {method: Fired, params: [{name: s, type: Owner}, {name: n, type: int}], attributes: [{Export: \"fired:n:\"}]}\n"),
			code: contract.ErrMissingEventArgs,
		},
		{
			name: "EventArgs suffix",
			doc:  eventDoc("      - {method: Fired, params: [{name: s, type: Owner}, {name: n, type: int}], attributes: [{Export: \"fired:n:\"}, {EventArgs: FiredEventArgs}]}\n"),
			code: contract.ErrEventArgsSuffix,
		},
		{
			name: "value callback without delegate name",
			doc:  eventDoc("      - {method: Should, return: bool, params: [{name: s, type: Owner}], attributes: [{Export: \"should:\"}]}\n"),
			code: contract.ErrMissingEventArgs,
		},
		{
			name: "value callback without default",
			doc:  eventDoc("      - {method: Should, return: bool, params: [{name: s, type: Owner}], attributes: [{Export: \"should:\"}, {DelegateName: OwnerShould}]}\n"),
			code: contract.ErrMissingDefault,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := generateErr(t, tt.doc)
			var be *contract.BindingError
			require.True(t, errors.As(err, &be), "got %v", err)
			assert.Equal(t, tt.code, be.Code)
			assert.Contains(t, be.Error(), "error BI")
		})
	}
}

func TestGenerate_EventCallbackWithoutArgs(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: Owner
    attributes: [{BaseType: {type: NSObject, delegates: [Delegate], events: [OwnerDelegate]}}]
    members:
      - {property: Delegate, type: NSObject, attributes: [{Export: delegate}]}
  - name: OwnerDelegate
    attributes: [{BaseType: NSObject}, Model]
    members:
      - {method: Fired, params: [{name: sender, type: Owner}], attributes: [{Export: "fired:"}]}
      - method: Chose
        return: int
        params: [{name: sender, type: Owner}, {name: fallback, type: int}]
        attributes: [{Export: "chose:fallback:"}, {DelegateName: OwnerChoice}, {DefaultValueFromArgument: fallback}]
      - method: Must
        return: bool
        params: [{name: sender, type: Owner}]
        attributes: [{Export: "must:"}, {DelegateName: OwnerMust}, NoDefaultValue]
`
	files, _ := generate(t, doc, Options{})
	owner := files["MonoTouch/Foo/Owner.g.cs"]
	assert.Contains(t, owner, "public event EventHandler Fired {")
	assert.Contains(t, owner, block("return chose (sender, fallback);", "return fallback;"))
	assert.Contains(t, owner, block("return must (sender);", "throw new You_Should_Not_Call_base_In_This_Method ();"))
}

func TestGenerate_MixinProducesNoFile(t *testing.T) {
	doc := `
namespace: MonoTouch.Foo
types:
  - name: Copying
    members:
      - {method: Copy, return: NSObject, attributes: [{Export: copy}]}
  - name: Doc
    inherits: [Copying]
    attributes: [{BaseType: NSObject}]
`
	files, _ := generate(t, doc, Options{})
	assert.NotContains(t, files, "MonoTouch/Foo/Copying.g.cs")
	assert.Contains(t, files["MonoTouch/Foo/Doc.g.cs"], "public virtual NSObject Copy ()")
}
