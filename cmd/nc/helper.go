package main

import (
	"github.com/mewkiz/pkg/jsonutil"
	"github.com/mewkiz/pkg/osutil"
)

// parseJSON parses the given JSON oracle file and stores the result into v,
// silently leaving v untouched if the file does not exist; oracles are
// optional side-channel input (spec.md's "external disassembler" boundary),
// not a requirement of every run.
func parseJSON(jsonPath string, v interface{}) error {
	if !osutil.Exists(jsonPath) {
		warn.Printf("unable to locate JSON oracle %q", jsonPath)
		return nil
	}
	dbg.Printf("parseJSON(jsonPath = %q, v = %T)", jsonPath, v)
	return jsonutil.ParseFile(jsonPath, v)
}
