package main

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/mewmew/nc/arch/x86"
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/build"
	"github.com/mewmew/nc/ir"
	"github.com/mewmew/nc/loader/pe"
	"github.com/pkg/errors"
)

// cpuMode is the x86asm processor mode matching PE32's 32-bit address
// space.
const cpuMode = 32

// decodeImage feeds every instruction of img's code sections through the
// x86 analyzer and the program builder, producing a program the
// orchestrator can partition and analyze. blockAddrs, if non-empty, forces
// a block split at each listed address even absent a control-flow
// instruction there, matching the teacher's "blocks.json" oracle.
func decodeImage(img *pe.Image, blockAddrs []bin.Addr) (*ir.Program, error) {
	prog := ir.NewProgram()
	b := build.NewBuilder(prog)

	forceSplit := make(map[bin.Addr]bool, len(blockAddrs))
	for _, addr := range blockAddrs {
		forceSplit[addr] = true
	}

	for _, seed := range img.CallSeeds {
		b.AddCalledAddress(seed)
	}

	for _, code := range img.Code {
		if err := decodeSection(b, code, forceSplit); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return prog, nil
}

// decodeSection walks code linearly, lifting one instruction at a time.
func decodeSection(b *build.Builder, code pe.Code, forceSplit map[bin.Addr]bool) error {
	data := code.Data
	addr := code.Addr
	end := code.Addr + bin.Addr(len(data))

	for addr < end {
		offset := int(addr - code.Addr)
		inst, err := x86asm.Decode(data[offset:], cpuMode)
		if err != nil {
			dbg.Printf("unable to decode instruction at %v: %v", addr, err)
			addr++
			continue
		}
		if inst.Len == 0 {
			addr++
			continue
		}

		if target, ok := x86.CallTargetAddr(inst, addr); ok {
			b.AddCalledAddress(target)
		}

		stmts, err := x86.Analyze(inst, addr)
		if err != nil {
			return errors.Wrapf(err, "decodeSection: unable to lift instruction at %v", addr)
		}

		next := addr + bin.Addr(inst.Len)
		block, err := b.GetBlockForInstruction(addr, next)
		if err != nil {
			return errors.WithStack(err)
		}
		for _, s := range stmts {
			block.PushBack(s)
		}

		addr = next
		if forceSplit[addr] && addr < end {
			split, err := b.CreateBlock(addr)
			if err != nil {
				return errors.WithStack(err)
			}
			// The oracle can force a split after an ordinary instruction
			// (e.g. right after a call), leaving block without a
			// terminator; synthesize the fallthrough edge so the
			// partitioner and dataflow analyzer still see one function
			// spanning both halves.
			if !block.Terminated() {
				block.PushBack(ir.NewJump(ir.BlockTarget(split)))
			}
		}
	}
	return nil
}
