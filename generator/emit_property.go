package generator

import (
	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

// property emits one bound property: a Field constant, a Wrap shortcut or
// a pair of message sends.
func (te *typeEmitter) property(p *contract.Property) error {
	where := te.t.Name + "." + p.Name
	if p.Type.Kind == contract.KindUnknown {
		return contract.Errorf(contract.ErrUnknownKind, "unknown kind of type %s in %s", p.Type.FullName(), where)
	}
	if f, ok := contract.Get[*contract.Field](p.Attrs); ok {
		return te.field(p, f)
	}

	k := te.kindOf(p.Attrs)
	typ := te.g.typeName(p.Type, te.ns)
	cp := &csharp.Property{
		Attributes: mirrors(p.Attrs),
		Modifiers:  k.mods,
		Type:       typ,
		Name:       csharp.Identifier(p.Name),
	}

	if w, ok := contract.Get[*contract.Wrap](p.Attrs); ok {
		get := "return " + w.Expression + " as " + typ + ";"
		if p.Type.IsValueType() {
			get = "return (" + typ + ") " + w.Expression + ";"
		}
		cp.Get = &csharp.Accessor{Body: []csharp.Stmt{csharp.RawStmt{Code: get}}}
		if p.Set != nil {
			cp.Set = &csharp.Accessor{Body: []csharp.Stmt{csharp.RawStmt{Code: w.Expression + " = value;"}}}
		}
		te.members = append(te.members, cp)
		return nil
	}

	export, hasExport := contract.Get[*contract.Export](p.Attrs)
	getSel, getBind := accessorSelector(p.Get.Attrs, export, hasExport)
	if getSel == "" {
		return contract.Errorf(contract.ErrMissingSelector, "no [Export] or [Bind] attribute on %s", where)
	}
	semantic := ""
	if hasExport {
		semantic = export.Semantic
	}
	cp.Get = &csharp.Accessor{Attributes: []csharp.Attribute{exportAttr(getSel, semantic)}}

	var setSel string
	var setBind *contract.Bind
	if p.Set != nil {
		if b, ok := contract.Get[*contract.Bind](p.Set.Attrs); ok {
			setSel, setBind = b.Selector, b
		} else if hasExport {
			setSel = "set" + csharp.UpperFirst(export.Selector) + ":"
		} else {
			return contract.Errorf(contract.ErrMissingSelector, "no [Export] or [Bind] attribute on the setter of %s", where)
		}
		cp.Set = &csharp.Accessor{Attributes: []csharp.Attribute{exportAttr(setSel, semantic)}}
	}

	if k.abstract {
		te.abstract = true
		te.members = append(te.members, cp)
		return nil
	}
	if k.model {
		te.selector(getSel)
		cp.Get.Body = modelBody()
		if cp.Set != nil {
			te.selector(setSel)
			cp.Set.Body = modelBody()
		}
		te.members = append(te.members, cp)
		return nil
	}

	cache := ""
	if p.Type.Kind == contract.KindObject {
		var err error
		if cache, err = te.cacheField(p.Name, "object", k.static); err != nil {
			return err
		}
	}

	getter, err := te.lowerSend(&send{
		where:    where,
		member:   p.Name,
		selector: getSel,
		ret:      p.Type,
		retPlain: p.Get.Attrs.Has(contract.PlainString),
		attrs:    append(append(contract.Attrs{}, p.Attrs...), p.Get.Attrs...),
		static:   k.static,
		direct:   k.direct || nonVirtual(getBind),
		cache:    cache,
	})
	if err != nil {
		return err
	}
	cp.Get.Body = getter.stmts
	unsafe := getter.unsafe

	if p.Set != nil {
		valueAttrs := append(contract.Attrs{}, p.Set.Attrs...)
		if p.Attrs.Has(contract.NullAllowed) {
			valueAttrs = append(valueAttrs, contract.NullAllowed)
		}
		setter, err := te.lowerSend(&send{
			where:    where + " (setter)",
			member:   p.Name,
			selector: setSel,
			params:   []*contract.Param{{Name: "value", Type: p.Type, Attrs: valueAttrs}},
			attrs:    append(append(contract.Attrs{}, p.Attrs...), p.Set.Attrs...),
			static:   k.static,
			direct:   k.direct || nonVirtual(setBind),
			cache:    cache,
		})
		if err != nil {
			return err
		}
		cp.Set.Body = setter.stmts
		unsafe = unsafe || setter.unsafe
	}
	if unsafe {
		cp.Modifiers = withUnsafe(cp.Modifiers)
	}
	te.members = append(te.members, cp)
	return nil
}

// accessorSelector picks the accessor's Bind selector over the property's
// Export selector.
func accessorSelector(attrs contract.Attrs, export *contract.Export, hasExport bool) (string, *contract.Bind) {
	if b, ok := contract.Get[*contract.Bind](attrs); ok {
		return b.Selector, b
	}
	if hasExport {
		return export.Selector, nil
	}
	return "", nil
}

func nonVirtual(b *contract.Bind) bool {
	return b != nil && !b.Virtual
}
