package generator

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/maps/treemap"

	"github.com/mono/maccore/csharp"
)

// Context holds the registries of one generator run. Every table is filled
// during the harvest pass and read during the emit pass.
type Context struct {
	selectors     *linkedhashmap.Map // selector -> field name
	selectorNames map[string]bool

	sends *linkedhashmap.Map // entry-point name -> *sendMethod

	trampolines     *linkedhashmap.Map // delegate full name -> *trampolineInfo
	trampolineNames map[string]bool

	eventArgTypes  *treemap.Map // full name -> *eventArgsType
	delegateTypes  *treemap.Map // full name -> *delegateDecl
	skipGeneration map[string]bool

	marshalTypes map[string]*marshalType
	usings       map[string]bool // namespaces needed by Messaging.g.cs
	callSites    []CallSite
}

func newContext() *Context {
	return &Context{
		selectors:       linkedhashmap.New(),
		selectorNames:   make(map[string]bool),
		sends:           linkedhashmap.New(),
		trampolines:     linkedhashmap.New(),
		trampolineNames: make(map[string]bool),
		eventArgTypes:   treemap.NewWithStringComparator(),
		delegateTypes:   treemap.NewWithStringComparator(),
		skipGeneration:  make(map[string]bool),
		marshalTypes:    make(map[string]*marshalType),
		usings:          make(map[string]bool),
	}
}

// SelectorField returns the static field holding the handle of sel. The
// mapping is injective: a name already taken by another selector gets a
// numeric suffix.
func (c *Context) SelectorField(sel string) string {
	if v, ok := c.selectors.Get(sel); ok {
		return v.(string)
	}
	base := csharp.Identifier("sel" + csharp.UpperFirst(strings.ReplaceAll(sel, ":", "_")))
	name := base
	for i := 2; c.selectorNames[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	c.selectors.Put(sel, name)
	c.selectorNames[name] = true
	return name
}

// SelectorEntry is one row of the selector table.
type SelectorEntry struct {
	Selector string
	Field    string
}

// Selectors lists the selector table in registration order.
func (c *Context) Selectors() []SelectorEntry {
	out := make([]SelectorEntry, 0, c.selectors.Size())
	it := c.selectors.Iterator()
	for it.Next() {
		out = append(out, SelectorEntry{Selector: it.Key().(string), Field: it.Value().(string)})
	}
	return out
}

// SendEntry describes one registered P/Invoke entry point.
type SendEntry struct {
	Name       string
	EntryPoint string
	Super      bool
	Stret      bool
}

// Sends lists the registered entry points in registration order.
func (c *Context) Sends() []SendEntry {
	out := make([]SendEntry, 0, c.sends.Size())
	for _, v := range c.sends.Values() {
		s := v.(*sendMethod)
		out = append(out, SendEntry{Name: s.name, EntryPoint: s.entryPoint, Super: s.super, Stret: s.stret})
	}
	return out
}

// CallSite records the struct-return decision taken for one bound member.
type CallSite struct {
	Type     string
	Member   string
	Selector string
	Return   string
	ArmStret bool
	X86Stret bool
}

// CallSites lists every message send the generator emitted, in order.
func (c *Context) CallSites() []CallSite {
	return c.callSites
}

// Trampolines lists the wrapper names of all synthesized trampolines.
func (c *Context) Trampolines() []string {
	out := make([]string, 0, c.trampolines.Size())
	for _, v := range c.trampolines.Values() {
		out = append(out, v.(*trampolineInfo).wrapperName)
	}
	return out
}
