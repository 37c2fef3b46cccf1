package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/mono/maccore/contract"
	"github.com/mono/maccore/generator"
)

// inspect prints the harvested registries of a generator run.
func inspect(w io.Writer, c *contract.Contract, gctx *generator.Context) {
	var types [][]string
	for _, t := range c.Types {
		types = append(types, []string{t.FullName(), typeKind(t), baseOf(t), fmt.Sprint(len(t.Methods)), fmt.Sprint(len(t.Properties))})
	}
	section(w, "TYPES", []string{"TYPE", "KIND", "BASE", "METHODS", "PROPERTIES"}, types)

	var sels [][]string
	for _, s := range gctx.Selectors() {
		sels = append(sels, []string{s.Selector, s.Field})
	}
	section(w, "SELECTORS", []string{"SELECTOR", "FIELD"}, sels)

	var sends [][]string
	for _, s := range gctx.Sends() {
		sends = append(sends, []string{s.Name, s.EntryPoint})
	}
	section(w, "SENDS", []string{"NAME", "ENTRY POINT"}, sends)

	var sites [][]string
	for _, cs := range gctx.CallSites() {
		sites = append(sites, []string{cs.Type + "." + cs.Member, cs.Selector, cs.Return, yesNo(cs.ArmStret), yesNo(cs.X86Stret)})
	}
	section(w, "CALL SITES", []string{"MEMBER", "SELECTOR", "RETURN", "ARM STRET", "X86 STRET"}, sites)

	if tramps := gctx.Trampolines(); len(tramps) > 0 {
		var rows [][]string
		for _, name := range tramps {
			rows = append(rows, []string{name})
		}
		section(w, "TRAMPOLINES", []string{"WRAPPER"}, rows)
	}
}

func section(w io.Writer, title string, header []string, data [][]string) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(data))
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
	fmt.Fprintln(w)
}

func typeKind(t *contract.Type) string {
	_, bound := t.BaseType()
	switch {
	case t.IsStatic():
		return "static"
	case !bound:
		return "mixin"
	case t.IsModel():
		return "model"
	}
	return "class"
}

func baseOf(t *contract.Type) string {
	bt, ok := t.BaseType()
	if !ok || t.IsStatic() {
		return "-"
	}
	if bt.Type == "" {
		return "NSObject"
	}
	return bt.Type
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
