package orchestrator

import (
	"fmt"
	"regexp"

	"github.com/mewmew/nc/ir"
)

// stdcallSuffix strips an "@N" stdcall stack-size decoration, e.g. "_foo@8".
var stdcallSuffix = regexp.MustCompile(`@[0-9]+$`)

// cleanupSymbolName strips the decorations a linker/compiler commonly adds
// to a symbol that a human would not write themselves: a single leading
// underscore (cdecl C name mangling) and a trailing "@N" stdcall
// decoration.
func cleanupSymbolName(name string) string {
	name = stdcallSuffix.ReplaceAllString(name, "")
	if len(name) > 1 && name[0] == '_' {
		name = name[1:]
	}
	return name
}

// nameFunction assigns fn's display name (spec.md §4.10 step 2): a cleaned
// symbol name if the host supplied a symbol table entry for its entry
// address, else an address-derived name, else (no known address at all,
// e.g. a function reached only through a resolved pointer) a
// pointer-derived name unique within this run.
func (o *Orchestrator) nameFunction(fn *ir.Function, anonIndex int) {
	if fn.EntryAddr != nil {
		if o.SymbolLookup != nil {
			if sym, ok := o.SymbolLookup(*fn.EntryAddr); ok && sym != "" {
				fn.Name = cleanupSymbolName(sym)
				return
			}
		}
		fn.Name = fmt.Sprintf("func_%08X", uint64(*fn.EntryAddr))
		return
	}
	fn.Name = fmt.Sprintf("func_ptr_%d", anonIndex)
}
