package ir

import "github.com/kr/pretty"

// DebugString returns a deep, field-by-field rendering of v, used by tests
// and the orchestrator's verbose logging to dump IR snapshots without
// writing a bespoke printer for every term/statement kind.
func DebugString(v interface{}) string {
	return pretty.Sprint(v)
}
