package generator

import (
	"strings"

	"github.com/golang-cz/textcase"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// eventArgsType is an EventArgs subclass carrying the callback parameters
// after the sender.
type eventArgsType struct {
	name   string
	ns     string
	params []*contract.Param
}

// delegateDecl is a delegate type derived from a value-returning callback.
type delegateDecl struct {
	name   string
	ns     string
	ret    *contract.TypeRef
	params []*contract.Param
}

// callback is one method of an event protocol as exposed on the owner.
type callback struct {
	m       *contract.Method
	field   string // forwarding field on the nested class
	handler string // EventHandler[<T>] or the derived delegate type
	event   string // member name on the owner
	args    string // EventArgs class, empty when none
	custom  bool   // handler is a derived delegate taking every parameter
	value   bool   // non-void: exposed as a property
}

// events emits, for each BaseType Events/Delegates pair, the nested
// forwarding class and the event members of the owner.
func (te *typeEmitter) events(bt *contract.BaseType) error {
	if len(bt.Events) == 0 && len(bt.Delegates) == 0 {
		return nil
	}
	if len(bt.Events) != len(bt.Delegates) {
		return contract.Errorf(contract.ErrUnknownContract, "%s: %d event types but %d delegate properties in [BaseType]", te.t.Name, len(bt.Events), len(bt.Delegates))
	}
	for i, name := range bt.Events {
		proto, ok := te.g.contract.Lookup(name)
		if !ok {
			return contract.Errorf(contract.ErrUnknownContract, "%s: unknown event type %s", te.t.Name, name)
		}
		if err := te.eventProtocol(proto, bt.Delegates[i], bt.KeepRefUntil); err != nil {
			return err
		}
	}
	return nil
}

func (te *typeEmitter) eventProtocol(proto *contract.Type, delegateProp, keepRefUntil string) error {
	g := te.g
	methods, _, err := g.membersOf(proto)
	if err != nil {
		return err
	}
	var cbs []callback
	for _, m := range methods {
		cb, err := te.callback(proto, m)
		if err != nil {
			return err
		}
		cbs = append(cbs, cb)
	}

	protoName := g.typeName(g.contract.Resolve(proto.FullName()), te.ns)
	nestedName := "_" + csharp.Identifier(proto.Name)

	var body []csharp.Member
	ctor := &csharp.Method{
		Modifiers: []string{"public"},
		Name:      nestedName,
		Body: []csharp.Stmt{
			csharp.AssignStmt{Target: "IsDirectBinding", Op: "=", Value: csharp.RawExpr{Code: "false"}},
		},
	}
	if keepRefUntil != "" {
		body = append(body, &csharp.Field{
			Modifiers: []string{"static"},
			Type:      "System.Collections.ArrayList",
			Name:      "instances",
		}, csharp.BlankLine{})
		ctor.Body = append(ctor.Body,
			csharp.IfStmt{
				Cond: csharp.RawExpr{Code: "instances == null"},
				Body: []csharp.Stmt{csharp.AssignStmt{Target: "instances", Op: "=", Value: csharp.New{Type: "System.Collections.ArrayList"}}},
			},
			csharp.ExprStmt{Expr: csharp.Call{Func: "instances.Add", Args: []csharp.Expr{csharp.RawExpr{Code: "this"}}}})
	}
	body = append(body, ctor)

	for _, cb := range cbs {
		body = append(body, &csharp.Field{Modifiers: []string{"internal"}, Type: cb.handler, Name: cb.field})
		body = append(body, te.forward(cb, cb.m.Name == keepRefUntil))
	}

	te.nested = append(te.nested,
		csharp.Pragma{Text: "warning disable 672"},
		&csharp.Class{
			Attributes: []csharp.Attribute{{Name: "Register"}},
			Modifiers:  []string{"sealed"},
			Name:       nestedName,
			Bases:      []string{protoName},
			Members:    body,
		},
		csharp.Pragma{Text: "warning restore 672"},
		csharp.BlankLine{},
	)

	ensure := "Ensure" + csharp.Identifier(proto.Name)
	te.members = append(te.members, &csharp.Method{
		Return: nestedName,
		Name:   ensure,
		Body: []csharp.Stmt{
			csharp.VarStmt{Type: "var", Name: "del", Value: csharp.Ident{Name: delegateProp}},
			csharp.IfStmt{
				Cond: csharp.RawExpr{Code: "del == null || (!(del is " + nestedName + "))"},
				Body: []csharp.Stmt{
					csharp.AssignStmt{Target: "del", Op: "=", Value: csharp.New{Type: nestedName}},
					csharp.AssignStmt{Target: delegateProp, Op: "=", Value: csharp.Ident{Name: "del"}},
				},
			},
			csharp.ReturnStmt{Value: csharp.Cast{Type: nestedName, Value: csharp.Ident{Name: "del"}}},
		},
	})

	for _, cb := range cbs {
		target := ensure + " ()." + cb.field
		if cb.value {
			te.members = append(te.members, &csharp.Property{
				Modifiers: []string{"public"},
				Type:      cb.handler,
				Name:      cb.event,
				Get:       &csharp.Accessor{Body: []csharp.Stmt{csharp.ReturnStmt{Value: csharp.RawExpr{Code: target}}}},
				Set:       &csharp.Accessor{Body: []csharp.Stmt{csharp.AssignStmt{Target: target, Op: "=", Value: csharp.Ident{Name: "value"}}}},
			})
			continue
		}
		te.members = append(te.members, &csharp.Event{
			Modifiers: []string{"public"},
			Type:      cb.handler,
			Name:      cb.event,
			Add:       []csharp.Stmt{csharp.AssignStmt{Target: target, Op: "+=", Value: csharp.Ident{Name: "value"}}},
			Remove:    []csharp.Stmt{csharp.AssignStmt{Target: target, Op: "-=", Value: csharp.Ident{Name: "value"}}},
		})
	}
	return nil
}

// callback validates m as an event callback and registers the EventArgs
// class or delegate type it needs.
func (te *typeEmitter) callback(proto *contract.Type, m *contract.Method) (callback, error) {
	g := te.g
	where := proto.Name + "." + m.Name
	if len(m.Params) == 0 {
		return callback{}, contract.Errorf(contract.ErrCallbackNoParams, "the delegate method %s needs to take at least one parameter", where)
	}
	for _, p := range m.Params {
		if p.Type.Kind == contract.KindUnknown {
			return callback{}, contract.Errorf(contract.ErrUnknownKind, "unknown kind of type %s in %s", p.Type.FullName(), where)
		}
	}
	cb := callback{
		m:     m,
		field: csharp.Identifier(textcase.CamelCase(m.Name)),
		event: m.Name,
	}
	if en, ok := contract.Get[*contract.EventName](m.Attrs); ok {
		cb.event = en.Name
	}
	cb.event = csharp.Identifier(cb.event)
	ns := proto.Namespace

	if m.Return.Kind != contract.KindVoid {
		dn, ok := contract.Get[*contract.DelegateName](m.Attrs)
		if !ok {
			return callback{}, contract.Errorf(contract.ErrMissingEventArgs, "the delegate method %s is missing the [DelegateName] attribute (or EventArgs)", where)
		}
		if !hasDefault(m.Attrs) {
			return callback{}, contract.Errorf(contract.ErrMissingDefault, "the delegate method %s is missing the [DefaultValue] attribute", where)
		}
		cb.value = true
		g.ctx.registerDelegate(&cb, dn.Name, ns)
		cb.handler = te.localName(ns, dn.Name)
		return cb, nil
	}

	if len(m.Params) == 1 {
		cb.handler = "EventHandler"
		return cb, nil
	}
	ea, ok := contract.Get[*contract.EventArgs](m.Attrs)
	if !ok {
		if dn, ok := contract.Get[*contract.DelegateName](m.Attrs); ok {
			g.ctx.registerDelegate(&cb, dn.Name, ns)
			cb.handler = te.localName(ns, dn.Name)
			return cb, nil
		}
		return callback{}, contract.Errorf(contract.ErrMissingEventArgs, "the delegate method %s needs to take an [EventArgs] attribute", where)
	}
	name, err := EventArgsName(where, ea)
	if err != nil {
		return callback{}, err
	}
	key := ns + "." + name
	if ea.SkipGeneration {
		g.ctx.skipGeneration[key] = true
	}
	if _, ok := g.ctx.eventArgTypes.Get(key); !ok {
		g.ctx.eventArgTypes.Put(key, &eventArgsType{name: name, ns: ns, params: m.Params[1:]})
	}
	cb.args = te.localName(ns, name)
	cb.handler = "EventHandler<" + cb.args + ">"
	return cb, nil
}

// registerDelegate marks cb as invoking a derived delegate type, declared
// once per namespace.
func (c *Context) registerDelegate(cb *callback, name, ns string) {
	cb.custom = true
	key := ns + "." + name
	if _, ok := c.delegateTypes.Get(key); !ok {
		c.delegateTypes.Put(key, &delegateDecl{name: name, ns: ns, ret: cb.m.Return, params: cb.m.Params})
	}
}

// EventArgsName derives the EventArgs class name: the literal name when
// FullName is set, otherwise the name plus "EventArgs". A short name that
// already ends in "EventArgs" is rejected.
func EventArgsName(where string, ea *contract.EventArgs) (string, error) {
	if ea.FullName {
		return ea.Name, nil
	}
	if strings.HasSuffix(ea.Name, "EventArgs") {
		return "", contract.Errorf(contract.ErrEventArgsSuffix, "EventArgs in %s attribute should not include the text `EventArgs' at the end", where)
	}
	return ea.Name + "EventArgs", nil
}

// localName is name as seen from the owner's namespace.
func (te *typeEmitter) localName(ns, name string) string {
	if ns == te.ns || te.g.imported[ns] {
		return name
	}
	return ns + "." + name
}

func hasDefault(attrs contract.Attrs) bool {
	if _, ok := contract.Get[*contract.DefaultValue](attrs); ok {
		return true
	}
	if _, ok := contract.Get[*contract.DefaultValueFromArgument](attrs); ok {
		return true
	}
	return attrs.Has(contract.NoDefaultValue)
}

// forward emits the override on the nested class that invokes the stored
// handler.
func (te *typeEmitter) forward(cb callback, keepRef bool) *csharp.Method {
	g := te.g
	m := cb.m
	ret := "void"
	if m.Return.Kind != contract.KindVoid {
		ret = g.typeName(m.Return, te.ns)
	}
	params := te.managedParams(m.Params)
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
		if p.Modifier == "out" || p.Modifier == "ref" {
			names[i] = p.Modifier + " " + p.Name
		}
	}

	var body []csharp.Stmt
	invoke := func(args ...string) csharp.Expr {
		return csharp.RawExpr{Code: cb.field + " (" + strings.Join(args, ", ") + ")"}
	}
	release := csharp.IfStmt{
		Cond: csharp.RawExpr{Code: "instances != null"},
		Body: []csharp.Stmt{csharp.ExprStmt{Expr: csharp.Call{Func: "instances.Remove", Args: []csharp.Expr{csharp.RawExpr{Code: "this"}}}}},
	}

	switch {
	case cb.custom:
		if ret == "void" {
			body = append(body, csharp.IfStmt{
				Cond: csharp.RawExpr{Code: cb.field + " != null"},
				Body: []csharp.Stmt{csharp.ExprStmt{Expr: invoke(names...)}},
			})
			break
		}
		body = append(body, csharp.IfStmt{
			Cond: csharp.RawExpr{Code: cb.field + " != null"},
			Body: []csharp.Stmt{csharp.ReturnStmt{Value: invoke(names...)}},
		})
		switch {
		case hasAttr[*contract.DefaultValue](m.Attrs):
			dv, _ := contract.Get[*contract.DefaultValue](m.Attrs)
			body = append(body, csharp.ReturnStmt{Value: csharp.RawExpr{Code: dv.Literal()}})
		case hasAttr[*contract.DefaultValueFromArgument](m.Attrs):
			da, _ := contract.Get[*contract.DefaultValueFromArgument](m.Attrs)
			body = append(body, csharp.ReturnStmt{Value: csharp.Ident{Name: csharp.Identifier(da.Argument)}})
		default:
			body = append(body, csharp.ThrowStmt{Value: csharp.New{Type: "You_Should_Not_Call_base_In_This_Method"}})
		}
	case cb.args == "":
		fire := []csharp.Stmt{csharp.ExprStmt{Expr: invoke(names[0], "EventArgs.Empty")}}
		body = append(body, csharp.IfStmt{Cond: csharp.RawExpr{Code: cb.field + " != null"}, Body: fire})
	default:
		ctorArgs := make([]csharp.Expr, 0, len(names)-1)
		for _, n := range params[1:] {
			ctorArgs = append(ctorArgs, csharp.Ident{Name: n.Name})
		}
		body = append(body, csharp.IfStmt{
			Cond: csharp.RawExpr{Code: cb.field + " != null"},
			Body: []csharp.Stmt{
				csharp.VarStmt{Type: "var", Name: "args", Value: csharp.New{Type: cb.args, Args: ctorArgs}},
				csharp.ExprStmt{Expr: invoke(names[0], "args")},
			},
		})
	}
	if keepRef {
		if ret == "void" {
			body = append(body, release)
		} else {
			body = append([]csharp.Stmt{release}, body...)
		}
	}

	return &csharp.Method{
		Attributes: []csharp.Attribute{{Name: "Preserve", Args: []string{"Conditional = true"}}},
		Modifiers:  []string{"public", "override"},
		Return:     ret,
		Name:       csharp.Identifier(m.Name),
		Params:     params,
		Body:       body,
	}
}

func hasAttr[T contract.Attr](attrs contract.Attrs) bool {
	_, ok := contract.Get[T](attrs)
	return ok
}
