package generator

import (
	"strconv"
	"strings"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/csharp"
)

const (
	sendToken      = "objc_msgSend"
	sendSuperToken = "objc_msgSendSuper"
)

// ArmNeedStret reports whether returning t on the ARM (device) ABI uses the
// struct-return convention: any value type that is not an enum and not a
// core runtime struct.
func ArmNeedStret(t *contract.TypeRef) bool {
	return t != nil && t.Kind == contract.KindStruct && !t.Core
}

// X86NeedStret reports the x86 (simulator, desktop) decision: the ARM rule
// restricted to structs larger than 8 bytes.
func X86NeedStret(t *contract.TypeRef) bool {
	return ArmNeedStret(t) && t.Size > 8
}

// abiPlan is the dispatch strategy for one send: DirectOnly (branch false,
// stret decided by device) or BranchOnArch (device and simulator paths).
type abiPlan struct {
	branch    bool
	device    bool
	simulator bool
}

func (g *Generator) planFor(ret *contract.TypeRef) abiPlan {
	arm, x86 := ArmNeedStret(ret), X86NeedStret(ret)
	if g.opts.Desktop {
		return abiPlan{device: x86}
	}
	if arm == x86 {
		return abiPlan{device: arm}
	}
	return abiPlan{branch: true, device: arm, simulator: x86}
}

// signature is the marshaled shape of a send: return value and the
// non-target parameters.
type signature struct {
	ret    *marshalInfo // nil for void
	params []marshalInfo
}

func (s signature) retToken() string {
	if s.ret == nil {
		return "void"
	}
	return s.ret.token()
}

// name synthesizes the entry-point name. Identical shapes give identical
// names.
func (s signature) name(super, stret bool) string {
	var sb strings.Builder
	sb.WriteString(s.retToken())
	sb.WriteByte('_')
	if super {
		sb.WriteString(sendSuperToken)
	} else {
		sb.WriteString(sendToken)
	}
	if stret {
		sb.WriteString("_stret")
	}
	for _, p := range s.params {
		sb.WriteByte('_')
		sb.WriteString(strings.ReplaceAll(p.token(), " ", "_"))
	}
	return sb.String()
}

// sendMethod is one registered extern declaration.
type sendMethod struct {
	name       string
	entryPoint string
	super      bool
	stret      bool
	decl       *csharp.Method
}

// registerSend declares the entry point for s once and returns its name.
func (c *Context) registerSend(s signature, super, stret bool) string {
	name := s.name(super, stret)
	if _, ok := c.sends.Get(name); ok {
		return name
	}
	entry := sendToken
	if super {
		entry = sendSuperToken
	}
	if stret {
		entry += "_stret"
	}

	ret := s.retToken()
	var params []csharp.Param
	if stret {
		params = append(params, csharp.Param{Modifier: "out", Type: ret, Name: "retval"})
		ret = "void"
	}
	params = append(params,
		csharp.Param{Type: "IntPtr", Name: "receiver"},
		csharp.Param{Type: "IntPtr", Name: "selector"})
	for i, p := range s.params {
		param := csharp.Param{Type: p.token(), Name: "arg" + strconv.Itoa(i+1)}
		if mod, typ, ok := strings.Cut(param.Type, " "); ok {
			param.Modifier, param.Type = mod, typ
		}
		params = append(params, param)
	}

	c.sends.Put(name, &sendMethod{
		name:       name,
		entryPoint: entry,
		super:      super,
		stret:      stret,
		decl: &csharp.Method{
			Attributes: []csharp.Attribute{{Name: "DllImport", Args: []string{"LIBOBJC_DYLIB", `EntryPoint="` + entry + `"`}}},
			Modifiers:  []string{"public", "extern", "static"},
			Return:     ret,
			Name:       name,
			Params:     params,
		},
	})
	return name
}
