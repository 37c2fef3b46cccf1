package generator

import (
	"fmt"
	"strconv"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// send describes one bound member invocation: the selector, the managed
// parameters and the shape of the dispatch.
type send struct {
	where    string
	member   string
	selector string
	ret      *contract.TypeRef // nil for void
	retPlain bool
	params   []*contract.Param
	attrs    contract.Attrs // snippets, PostGet
	static   bool
	direct   bool   // no IsDirectBinding branch
	cache    string // field assigned with the result (getter) or the value (setter)
}

// sendBody is the lowered body of one send.
type sendBody struct {
	stmts  []csharp.Stmt
	unsafe bool
}

// argument is the marshaled form of one managed parameter.
type argument struct {
	param  *contract.Param
	name   string
	mi     marshalInfo
	native csharp.Expr
}

func (te *typeEmitter) lowerSend(s *send) (*sendBody, error) {
	g := te.g
	var (
		args    []argument
		target  *contract.Param
		natives []marshalInfo
		out     = &sendBody{}
	)
	for _, p := range s.params {
		if p.Attrs.Has(contract.TargetParam) {
			target = p
			continue
		}
		mi, err := g.marshal(p.Type, p.Attrs.Has(contract.PlainString), s.where)
		if err != nil {
			return nil, err
		}
		args = append(args, argument{param: p, name: csharp.Identifier(p.Name), mi: mi})
		natives = append(natives, mi)
	}

	sig := signature{params: natives}
	var retMI *marshalInfo
	if s.ret != nil && s.ret.Kind != contract.KindVoid {
		mi, err := g.marshal(s.ret, s.retPlain, s.where)
		if err != nil {
			return nil, err
		}
		switch mi.Strategy {
		case marshalByRefStruct, marshalOutObject, marshalBlock:
			return nil, contract.Errorf(contract.ErrNoSignature, "do not know how to return %s in %s", s.ret, s.where)
		}
		retMI = &mi
		sig.ret = retMI
	}

	plan := abiPlan{}
	if retMI != nil {
		plan = g.planFor(s.ret)
	}
	selField := te.selector(s.selector)
	g.ctx.callSites = append(g.ctx.callSites, CallSite{
		Type:     te.t.Name,
		Member:   s.member,
		Selector: s.selector,
		Return:   sig.retToken(),
		ArmStret: retMI != nil && ArmNeedStret(s.ret),
		X86Stret: retMI != nil && X86NeedStret(s.ret),
	})

	var (
		pre     []csharp.Stmt
		cleanup []csharp.Stmt
		after   []csharp.Stmt
	)
	for _, code := range s.attrs.Snippets(contract.PrologueSnippet) {
		pre = append(pre, csharp.RawStmt{Code: code})
	}
	for _, a := range args {
		if a.mi.nullable() && !a.param.Attrs.Has(contract.NullAllowed) {
			pre = append(pre, throwIfNull(a.name))
		}
	}
	if target != nil {
		pre = append(pre, throwIfNull(csharp.Identifier(target.Name)))
	}
	for _, a := range args {
		if a.param.Attrs.Has(contract.CheckDisposed) {
			pre = append(pre, csharp.IfStmt{
				Cond: csharp.RawExpr{Code: a.name + ".Handle == IntPtr.Zero"},
				Body: []csharp.Stmt{csharp.ThrowStmt{Value: csharp.New{Type: "ObjectDisposedException", Args: []csharp.Expr{
					csharp.StringLit{Value: a.param.Name},
					csharp.StringLit{Value: "The object was disposed on the managed side."},
				}}}},
			})
		}
	}
	for i := range args {
		conv, clean, back, err := te.convert(&args[i], s)
		if err != nil {
			return nil, err
		}
		pre = append(pre, conv...)
		cleanup = append(cleanup, clean...)
		after = append(after, back...)
		if args[i].mi.Strategy == marshalBlock {
			out.unsafe = true
		}
	}
	for _, a := range args {
		stmts, err := te.retain(a, s.static)
		if err != nil {
			return nil, err
		}
		pre = append(pre, stmts...)
	}
	for _, code := range s.attrs.Snippets(contract.PreSnippet) {
		pre = append(pre, csharp.RawStmt{Code: code})
	}

	var post []csharp.Stmt
	for _, code := range s.attrs.Snippets(contract.PostSnippet) {
		post = append(post, csharp.RawStmt{Code: code})
	}
	post = append(post, cleanup...)
	post = append(post, after...)
	if retMI == nil && s.cache != "" {
		post = append(post, csharp.AssignStmt{Target: s.cache, Op: "=", Value: csharp.Ident{Name: "value"}})
	}
	var postGets []csharp.Stmt
	for _, a := range s.attrs {
		if pg, ok := a.(*contract.PostGet); ok {
			postGets = append(postGets, csharp.VarStmt{Type: "var", Name: "postget" + strconv.Itoa(len(postGets)), Value: csharp.Ident{Name: pg.Name}})
		}
	}
	if len(postGets) > 0 {
		post = append(post, csharp.Pragma{Text: "warning disable 168"})
		post = append(post, postGets...)
		post = append(post, csharp.Pragma{Text: "warning restore 168"})
	}

	receiver := "this.Handle"
	switch {
	case target != nil:
		receiver = csharp.Identifier(target.Name) + ".Handle"
	case s.static:
		receiver = "class_ptr"
		te.usesClassPtr = true
	}
	direct := s.direct || s.static || target != nil

	retType := ""
	assign := false
	if retMI != nil {
		retType = g.typeName(s.ret, te.ns)
		assign = plan.device || plan.simulator || len(post) > 0 || s.cache != ""
	}

	leaf := func(super, stret bool) ([]csharp.Stmt, error) {
		name := g.ctx.registerSend(sig, super, stret)
		recv := receiver
		if super {
			recv = "this.SuperHandle"
		}
		callArgs := []csharp.Expr{csharp.RawExpr{Code: recv}, csharp.Ident{Name: selField}}
		if stret {
			callArgs = append([]csharp.Expr{csharp.RawExpr{Code: "out ret"}}, callArgs...)
		}
		for _, a := range args {
			callArgs = append(callArgs, a.native)
		}
		call := csharp.Call{Func: "Messaging." + name, Args: callArgs}
		if retMI == nil || stret {
			return []csharp.Stmt{csharp.ExprStmt{Expr: call}}, nil
		}
		conv, err := g.managedFromNative(*retMI, call, te.ns)
		if err != nil {
			return nil, contract.Errorf(contract.ErrNoSignature, "do not know how to return %s in %s", s.ret, s.where)
		}
		if assign {
			return []csharp.Stmt{csharp.AssignStmt{Target: "ret", Op: "=", Value: conv}}, nil
		}
		return []csharp.Stmt{csharp.ReturnStmt{Value: conv}}, nil
	}
	perArch := func(super bool) ([]csharp.Stmt, error) {
		if !plan.branch {
			return leaf(super, plan.device)
		}
		device, err := leaf(super, plan.device)
		if err != nil {
			return nil, err
		}
		simulator, err := leaf(super, plan.simulator)
		if err != nil {
			return nil, err
		}
		return []csharp.Stmt{csharp.ArchBranch{Device: device, Simulator: simulator}}, nil
	}

	var dispatch []csharp.Stmt
	directStmts, err := perArch(false)
	if err != nil {
		return nil, err
	}
	if direct {
		dispatch = directStmts
	} else {
		superStmts, err := perArch(true)
		if err != nil {
			return nil, err
		}
		dispatch = []csharp.Stmt{csharp.IfStmt{
			Cond: csharp.Ident{Name: "IsDirectBinding"},
			Body: directStmts,
			Else: superStmts,
		}}
	}

	out.stmts = append(out.stmts, pre...)
	if assign {
		out.stmts = append(out.stmts, csharp.VarStmt{Type: retType, Name: "ret"})
	}
	out.stmts = append(out.stmts, dispatch...)
	if assign && s.cache != "" {
		out.stmts = append(out.stmts, csharp.AssignStmt{Target: s.cache, Op: "=", Value: csharp.Ident{Name: "ret"}})
	}
	out.stmts = append(out.stmts, post...)
	if assign {
		out.stmts = append(out.stmts, csharp.ReturnStmt{Value: csharp.Ident{Name: "ret"}})
	}
	return out, nil
}

// convert lowers one argument: statements before the call, cleanup after
// it, and write-backs of out parameters.
func (te *typeEmitter) convert(a *argument, s *send) (pre, cleanup, after []csharp.Stmt, err error) {
	nullable := a.param.Attrs.Has(contract.NullAllowed)
	name := a.name
	switch a.mi.Strategy {
	case marshalPrimitive, marshalStruct, marshalPlainString:
		a.native = csharp.Ident{Name: name}
	case marshalEnum:
		a.native = csharp.Cast{Type: a.mi.Type.Underlying, Value: csharp.Ident{Name: name}}
	case marshalByRefStruct:
		a.native = csharp.RawExpr{Code: a.mi.Type.Modifier + " " + name}
	case marshalObject, marshalCustom:
		handle := name + ".Handle"
		if a.mi.Custom != nil {
			handle = fmt.Sprintf(a.mi.Custom.ParameterMarshal, name)
		}
		if nullable {
			a.native = csharp.RawExpr{Code: name + " == null ? IntPtr.Zero : " + handle}
		} else {
			a.native = csharp.RawExpr{Code: handle}
		}
	case marshalNSString:
		pre, cleanup = wrapTemporary(name, "ns"+name, csharp.New{Type: "NSString", Args: []csharp.Expr{csharp.Ident{Name: name}}}, nullable)
		a.native = handleOf("ns"+name, nullable)
	case marshalArray:
		factory := "NSArray.FromNSObjects"
		if a.mi.Type.Elem.Kind == contract.KindString {
			factory = "NSArray.FromStrings"
		}
		tmp := "nsa_" + name
		pre, cleanup = wrapTemporary(name, tmp, csharp.Call{Func: factory, Args: []csharp.Expr{csharp.Ident{Name: name}}}, nullable)
		a.native = handleOf(tmp, nullable)
	case marshalOutObject:
		tmp := name + "Value"
		pre = []csharp.Stmt{csharp.VarStmt{Type: "IntPtr", Name: tmp, Value: csharp.RawExpr{Code: "IntPtr.Zero"}}}
		a.native = csharp.RawExpr{Code: "out " + tmp}
		after = []csharp.Stmt{csharp.AssignStmt{Target: name, Op: "=", Value: csharp.Cond{
			Cond: csharp.RawExpr{Code: tmp + " != IntPtr.Zero"},
			Then: csharp.Cast{Type: te.g.typeName(a.mi.Type.Elem, te.ns), Value: csharp.Call{Func: "Runtime.GetNSObject", Args: []csharp.Expr{csharp.Ident{Name: tmp}}}},
			Else: csharp.Null{},
		}}}
	case marshalBlock:
		ti, terr := te.g.trampoline(a.mi.Type.Delegate, s.where)
		if terr != nil {
			return nil, nil, nil, terr
		}
		ptr, lit := "block_ptr_"+name, "block_"+name
		setup := []csharp.Stmt{
			csharp.AssignStmt{Target: lit, Op: "=", Value: csharp.New{Type: "BlockLiteral"}},
			csharp.AssignStmt{Target: ptr, Op: "=", Value: csharp.RawExpr{Code: "&" + lit}},
			csharp.ExprStmt{Expr: csharp.Call{Func: lit + ".SetupBlock", Args: []csharp.Expr{
				csharp.RawExpr{Code: "Trampolines." + ti.staticName + ".Handler"}, csharp.Ident{Name: name},
			}}},
		}
		pre = []csharp.Stmt{
			csharp.VarStmt{Type: "BlockLiteral *", Name: ptr},
			csharp.VarStmt{Type: "BlockLiteral", Name: lit},
		}
		release := csharp.ExprStmt{Expr: csharp.Call{Func: ptr + "->CleanupBlock"}}
		if nullable {
			pre = append(pre, csharp.IfStmt{
				Cond: csharp.RawExpr{Code: name + " == null"},
				Body: []csharp.Stmt{csharp.AssignStmt{Target: ptr, Op: "=", Value: csharp.Null{}}},
				Else: setup,
			})
			cleanup = []csharp.Stmt{csharp.IfStmt{Cond: csharp.RawExpr{Code: ptr + " != null"}, Body: []csharp.Stmt{release}}}
		} else {
			pre = append(pre, setup...)
			cleanup = []csharp.Stmt{release}
		}
		a.native = csharp.Cast{Type: "IntPtr", Value: csharp.Ident{Name: ptr}}
	default:
		return nil, nil, nil, contract.Errorf(contract.ErrNoSignature, "do not know how to pass %s in %s", a.mi.Type, s.where)
	}
	return pre, cleanup, after, nil
}

// wrapTemporary creates a disposable native wrapper tmp around name.
func wrapTemporary(name, tmp string, create csharp.Expr, nullable bool) (pre, cleanup []csharp.Stmt) {
	dispose := csharp.ExprStmt{Expr: csharp.Call{Func: tmp + ".Dispose"}}
	if !nullable {
		return []csharp.Stmt{csharp.VarStmt{Type: "var", Name: tmp, Value: create}}, []csharp.Stmt{dispose}
	}
	return []csharp.Stmt{csharp.VarStmt{Type: "var", Name: tmp, Value: csharp.Cond{
			Cond: csharp.RawExpr{Code: name + " == null"},
			Then: csharp.Null{},
			Else: create,
		}}},
		[]csharp.Stmt{csharp.IfStmt{Cond: csharp.RawExpr{Code: tmp + " != null"}, Body: []csharp.Stmt{dispose}}}
}

func handleOf(name string, nullable bool) csharp.Expr {
	if nullable {
		return csharp.RawExpr{Code: name + " == null ? IntPtr.Zero : " + name + ".Handle"}
	}
	return csharp.RawExpr{Code: name + ".Handle"}
}

func throwIfNull(name string) csharp.Stmt {
	return csharp.IfStmt{
		Cond: csharp.RawExpr{Code: name + " == null"},
		Body: []csharp.Stmt{csharp.ThrowStmt{Value: csharp.New{Type: "ArgumentNullException", Args: []csharp.Expr{csharp.StringLit{Value: name}}}}},
	}
}

// retain keeps the managed argument alive in a field for as long as the
// native side may use it.
func (te *typeEmitter) retain(a argument, static bool) ([]csharp.Stmt, error) {
	var out []csharp.Stmt
	if r, ok := contract.Get[*contract.Retain](a.param.Attrs); ok {
		field, err := te.cacheField(r.Name, "object", static)
		if err != nil {
			return nil, err
		}
		out = append(out, csharp.AssignStmt{Target: field, Op: "=", Value: csharp.Ident{Name: a.name}})
	}
	if rl, ok := contract.Get[*contract.RetainList](a.param.Attrs); ok {
		field, err := te.cacheField(rl.Name, "System.Collections.ArrayList", static)
		if err != nil {
			return nil, err
		}
		if rl.Add {
			out = append(out,
				csharp.IfStmt{
					Cond: csharp.RawExpr{Code: field + " == null"},
					Body: []csharp.Stmt{csharp.AssignStmt{Target: field, Op: "=", Value: csharp.New{Type: "System.Collections.ArrayList"}}},
				},
				csharp.ExprStmt{Expr: csharp.Call{Func: field + ".Add", Args: []csharp.Expr{csharp.Ident{Name: a.name}}}})
		} else {
			out = append(out, csharp.IfStmt{
				Cond: csharp.RawExpr{Code: field + " != null"},
				Body: []csharp.Stmt{csharp.ExprStmt{Expr: csharp.Call{Func: field + ".Remove", Args: []csharp.Expr{csharp.Ident{Name: a.name}}}}},
			})
		}
	}
	return out, nil
}

// memberKind is the resolved modifier set of a bound member.
type memberKind struct {
	static   bool
	abstract bool // abstract member of a model type
	model    bool // body throws, callers override
	direct   bool
	mods     []string
}

func (te *typeEmitter) kindOf(attrs contract.Attrs) memberKind {
	k := memberKind{
		static: attrs.Has(contract.Static) || te.t.IsStatic(),
		model:  te.t.IsModel(),
	}
	k.abstract = k.model && attrs.Has(contract.Abstract) && !k.static
	if b, ok := contract.Get[*contract.Bind](attrs); ok && !b.Virtual {
		k.direct = true
	}
	if attrs.Has(contract.Sealed) {
		k.direct = true
	}

	if attrs.Has(contract.Internal) {
		k.mods = append(k.mods, "internal")
	} else {
		k.mods = append(k.mods, "public")
	}
	if attrs.Has(contract.New) {
		k.mods = append(k.mods, "new")
	}
	switch {
	case k.static:
		k.mods = append(k.mods, "static")
	case k.abstract:
		k.mods = append(k.mods, "abstract")
	case attrs.Has(contract.Override):
		k.mods = append(k.mods, "override")
	case k.direct:
	default:
		k.mods = append(k.mods, "virtual")
	}
	return k
}

// modelBody is the body of a non-abstract member of a model type.
func modelBody() []csharp.Stmt {
	return []csharp.Stmt{csharp.ThrowStmt{Value: csharp.New{Type: "You_Should_Not_Call_base_In_This_Method"}}}
}

// mirrors returns the Obsolete and Since attributes carried by attrs.
func mirrors(attrs contract.Attrs) []csharp.Attribute {
	var out []csharp.Attribute
	if o, ok := contract.Get[*contract.Obsolete](attrs); ok {
		var args []string
		if o.Message != "" {
			args = []string{csharp.Quote(o.Message)}
		}
		out = append(out, csharp.Attribute{Name: "Obsolete", Args: args})
	}
	if s, ok := contract.Get[*contract.Since](attrs); ok {
		out = append(out, csharp.Attribute{Name: "Since", Args: []string{strconv.Itoa(s.Major), strconv.Itoa(s.Minor)}})
	}
	return out
}

func exportAttr(sel, semantic string) csharp.Attribute {
	args := []string{csharp.Quote(sel)}
	if semantic != "" {
		args = append(args, "ArgumentSemantic."+semantic)
	}
	return csharp.Attribute{Name: "Export", Args: args}
}

// managedParams is the managed parameter list of a bound method.
func (te *typeEmitter) managedParams(params []*contract.Param) []csharp.Param {
	out := make([]csharp.Param, 0, len(params))
	for _, p := range params {
		cp := csharp.Param{Type: te.g.typeName(p.Type, te.ns), Name: csharp.Identifier(p.Name)}
		if p.Type.Kind == contract.KindByRef {
			cp.Modifier = p.Type.Modifier
		}
		out = append(out, cp)
	}
	return out
}

// method emits one bound method.
func (te *typeEmitter) method(m *contract.Method) error {
	where := te.t.Name + "." + m.Name
	k := te.kindOf(m.Attrs)

	ret := "void"
	if m.Return.Kind != contract.KindVoid {
		if m.Return.Kind == contract.KindUnknown {
			return contract.Errorf(contract.ErrUnknownKind, "unknown kind of type %s in %s", m.Return.FullName(), where)
		}
		ret = te.g.typeName(m.Return, te.ns)
	}
	cm := &csharp.Method{
		Modifiers: k.mods,
		Return:    ret,
		Name:      csharp.Identifier(m.Name),
		Params:    te.managedParams(m.Params),
	}

	if w, ok := contract.Get[*contract.Wrap](m.Attrs); ok {
		cm.Attributes = mirrors(m.Attrs)
		code := w.Expression + ";"
		if ret != "void" {
			code = "return " + code
		}
		cm.Body = []csharp.Stmt{csharp.RawStmt{Code: code}}
		te.members = append(te.members, cm)
		return nil
	}

	sel, ok := m.Selector()
	if !ok {
		return contract.Errorf(contract.ErrMissingSelector, "no [Export] or [Bind] attribute on %s", where)
	}
	if e, ok := contract.Get[*contract.Export](m.Attrs); ok {
		cm.Attributes = append(cm.Attributes, exportAttr(e.Selector, e.Semantic))
	}
	cm.Attributes = append(cm.Attributes, mirrors(m.Attrs)...)

	if k.abstract {
		for _, p := range m.Params {
			if _, err := te.g.marshal(p.Type, p.Attrs.Has(contract.PlainString), where); err != nil {
				return err
			}
		}
		te.abstract = true
		te.members = append(te.members, cm)
		return nil
	}
	if k.model {
		te.selector(sel)
		cm.Body = modelBody()
		te.members = append(te.members, cm)
		return nil
	}

	body, err := te.lowerSend(&send{
		where:    where,
		member:   m.Name,
		selector: sel,
		ret:      m.Return,
		retPlain: m.ReturnAttrs.Has(contract.PlainString),
		params:   m.Params,
		attrs:    m.Attrs,
		static:   k.static,
		direct:   k.direct,
	})
	if err != nil {
		return err
	}
	if body.unsafe {
		cm.Modifiers = withUnsafe(cm.Modifiers)
	}
	cm.Body = body.stmts
	te.members = append(te.members, cm)
	return nil
}

// withUnsafe inserts "unsafe" after the access and new modifiers.
func withUnsafe(mods []string) []string {
	out := make([]string, 0, len(mods)+1)
	i := 0
	for i < len(mods) && (mods[i] == "public" || mods[i] == "internal" || mods[i] == "new") {
		out = append(out, mods[i])
		i++
	}
	out = append(out, "unsafe")
	return append(out, mods[i:]...)
}

var intPtrInfo = marshalInfo{Type: &contract.TypeRef{Kind: contract.KindPrimitive, Name: "IntPtr"}, Strategy: marshalPrimitive}

// constructors emits init, initWithCoder: and the two passthroughs.
func (te *typeEmitter) constructors() {
	g := te.g
	bt, _ := te.t.BaseType()
	name := csharp.Identifier(te.t.Name)
	advanced := csharp.Attribute{Name: "EditorBrowsable", Args: []string{"EditorBrowsableState.Advanced"}}

	initSig := signature{ret: &intPtrInfo}
	coderSig := signature{ret: &intPtrInfo, params: []marshalInfo{intPtrInfo}}

	dispatch := func(sig signature, sel string, extra ...csharp.Expr) []csharp.Stmt {
		call := func(super bool) csharp.Stmt {
			recv := "this.Handle"
			if super {
				recv = "this.SuperHandle"
			}
			args := append([]csharp.Expr{csharp.RawExpr{Code: recv}, csharp.RawExpr{Code: sel}}, extra...)
			return csharp.AssignStmt{Target: "Handle", Op: "=", Value: csharp.Call{
				Func: "Messaging." + g.ctx.registerSend(sig, super, false),
				Args: args,
			}}
		}
		if !g.opts.External {
			return []csharp.Stmt{call(false)}
		}
		return []csharp.Stmt{
			csharp.AssignStmt{Target: "IsDirectBinding", Op: "=", Value: csharp.RawExpr{
				Code: "GetType ().Assembly == global::" + g.opts.RuntimeNamespace + ".Messaging.this_assembly",
			}},
			csharp.IfStmt{
				Cond: csharp.Ident{Name: "IsDirectBinding"},
				Body: []csharp.Stmt{call(false)},
				Else: []csharp.Stmt{call(true)},
			},
		}
	}

	singleton := bt != nil && bt.Singleton
	if !singleton && !te.t.Attrs.Has(contract.DisableDefaultCtor) {
		te.members = append(te.members, &csharp.Method{
			Attributes:  []csharp.Attribute{advanced, exportAttr("init", "")},
			Modifiers:   []string{"public"},
			Name:        name,
			Initializer: "base (NSObjectFlag.Empty)",
			Body:        dispatch(initSig, "Selector.Init"),
		})
	}
	if !singleton {
		te.members = append(te.members, &csharp.Method{
			Attributes:  []csharp.Attribute{advanced, exportAttr("initWithCoder:", "")},
			Modifiers:   []string{"public"},
			Name:        name,
			Params:      []csharp.Param{{Type: "NSCoder", Name: "coder"}},
			Initializer: "base (NSObjectFlag.Empty)",
			Body:        dispatch(coderSig, "Selector.InitWithCoder", csharp.RawExpr{Code: "coder.Handle"}),
		})
	}
	te.members = append(te.members,
		&csharp.Method{
			Attributes:  []csharp.Attribute{advanced},
			Modifiers:   []string{"public"},
			Name:        name,
			Params:      []csharp.Param{{Type: "NSObjectFlag", Name: "t"}},
			Initializer: "base (t)",
			Body:        []csharp.Stmt{},
		},
		&csharp.Method{
			Attributes:  []csharp.Attribute{advanced},
			Modifiers:   []string{"public"},
			Name:        name,
			Params:      []csharp.Param{{Type: "IntPtr", Name: "handle"}},
			Initializer: "base (handle)",
			Body:        []csharp.Stmt{},
		},
	)
}
