// Command nc lifts a Windows PE executable's code section to the IR
// (spec.md §4.1) and runs the decompiler pipeline (spec.md §4.10) over it,
// printing each recovered function's signature stub.
//
// Oracles are optional JSON side files read from the current directory,
// following the teacher's side-channel convention: blocks.json
// ([]bin.Addr, forced basic-block split points), conventions.json
// (map[bin.Addr]string, calling convention per function entry address) and
// symbols.json (map[bin.Addr]string, function names).
package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
	"github.com/pkg/errors"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/loader/pe"
	"github.com/mewmew/nc/orchestrator"
)

var (
	// dbg is a logger which logs debug messages with "nc:" prefix to
	// standard error.
	dbg = log.New(os.Stderr, term.MagentaBold("nc:")+" ", 0)
	// warn is a logger which logs warning messages with "warning:" prefix
	// to standard error.
	warn = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

func main() {
	var quiet bool
	flag.BoolVar(&quiet, "q", false, "suppress non-error messages")
	flag.Parse()
	if quiet {
		dbg.SetOutput(ioutil.Discard)
	}

	for _, binPath := range flag.Args() {
		if err := run(binPath); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

func run(binPath string) error {
	dbg.Printf("run(binPath = %q)", binPath)

	img, err := pe.Load(binPath)
	if err != nil {
		return errors.WithStack(err)
	}

	var blockAddrs []bin.Addr
	if err := parseJSON("blocks.json", &blockAddrs); err != nil {
		return errors.WithStack(err)
	}

	prog, err := decodeImage(img, blockAddrs)
	if err != nil {
		return errors.WithStack(err)
	}

	conv := make(conventionOracle)
	if err := parseJSON("conventions.json", &conv); err != nil {
		return errors.WithStack(err)
	}

	symbols := make(map[bin.Addr]string)
	if err := parseJSON("symbols.json", &symbols); err != nil {
		return errors.WithStack(err)
	}
	symbolLookup := func(addr bin.Addr) (string, bool) {
		name, ok := symbols[addr]
		return name, ok
	}

	o := orchestrator.New(
		prog,
		orchestrator.WithConventions(knownConventions...),
		orchestrator.WithConventionDetector(conv.detect),
		orchestrator.WithSymbolLookup(symbolLookup),
	)
	result, err := o.Run(context.Background())
	if err != nil {
		return errors.WithStack(err)
	}

	for _, fn := range result.Functions {
		fmt.Println(fn.Code)
	}
	return nil
}
