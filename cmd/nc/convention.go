package main

import (
	"github.com/mewmew/nc/arch/x86"
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/ir/calling"
)

// knownConventions is the catalog of x86 calling conventions the
// orchestrator is told a program may be built under; Cdecl is first, and
// therefore the default when no oracle overrides it.
var knownConventions = []*calling.Convention{
	x86.Cdecl(),
	x86.Stdcall(),
	x86.Fastcall(),
	x86.MicrosoftX64(),
}

// conventionOracle maps a function's entry address to the name of the
// convention it was compiled under, loaded from the optional
// "conventions.json" side file; an unlisted address falls back to the
// orchestrator's own default (the catalog's first entry).
type conventionOracle map[bin.Addr]string

// detect implements orchestrator.ConventionDetector.
func (o conventionOracle) detect(fn *ir.Function) *calling.Convention {
	if fn.EntryAddr == nil {
		return nil
	}
	name, ok := o[*fn.EntryAddr]
	if !ok {
		return nil
	}
	for _, c := range knownConventions {
		if c.Name == name {
			return c
		}
	}
	warn.Printf("conventions.json names unknown convention %q for function at %v", name, *fn.EntryAddr)
	return nil
}
