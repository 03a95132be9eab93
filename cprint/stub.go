// Package cprint renders a recovered function signature as a C declaration
// stub. Full statement/expression printing (the back end spec.md leaves
// open beyond the orchestrator's hand-off point) is not yet implemented.
package cprint

import (
	"strings"

	"github.com/mewmew/nc/ir/calling"
)

// Stub renders a function's recovered signature as a C-style prototype
// comment, e.g. "void func_00401000(int32 a0, int32 a1);". No types are
// looked up: a function with no recovered return value prints as void and
// any other as int32, and every argument prints as int32, matching the x86
// word size assumption used elsewhere in this module.
func Stub(name string, sig *calling.FunctionSignature) string {
	var buf strings.Builder
	if sig == nil || sig.ReturnValue == nil {
		buf.WriteString("void ")
	} else {
		buf.WriteString("int32 ")
	}
	buf.WriteString(name)
	buf.WriteByte('(')
	if sig != nil {
		for i := range sig.Arguments {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString("int32 a")
			buf.WriteString(itoa(i))
		}
		if sig.Variadic {
			if len(sig.Arguments) > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString("...")
		}
	}
	buf.WriteString(");")
	return buf.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
