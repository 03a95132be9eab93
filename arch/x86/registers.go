// Package x86 grounds the architecture-agnostic IR in the x86/x86-64
// instruction set: a register table (spec.md §6), a calling-convention
// catalog built from it (spec.md §4.4), and a bridge from a decoded
// golang.org/x/arch/x86/x86asm instruction to the IR statements it means
// (spec.md §4.2).
package x86

import (
	"fmt"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"golang.org/x/arch/x86/x86asm"
)

// General-purpose register families, in x86asm's own declaration order.
// Each family occupies one ir.Domain; AL/AX/EAX/RAX and friends are
// different-width views of the same domain rather than distinct domains,
// mirroring how the hardware actually aliases them (spec.md §6).
const (
	famA = iota
	famC
	famD
	famB
	famSP
	famBP
	famSI
	famDI
	famR8
	famR9
	famR10
	famR11
	famR12
	famR13
	famR14
	famR15
	numGPFamilies
)

// FlagsDomain holds the condition-code bits of EFLAGS, one register domain
// past the last GP family.
var FlagsDomain = ir.FirstRegisterDomain + numGPFamilies

// FPUTopDomain is a pseudo-register tracking the x87 stack top (ST(0)'s
// physical register index), carried outside the dense GP/flags range since
// it has no x86asm.Reg of its own.
var FPUTopDomain = ir.UserDomainBase

func gpDomain(fam int) ir.Domain { return ir.FirstRegisterDomain + ir.Domain(fam) }

// EFLAGS bit positions of the condition codes the dataflow/signature layers
// actually reason about; the rest of EFLAGS is not modeled.
const (
	bitCF = 0
	bitPF = 2
	bitAF = 4
	bitZF = 6
	bitSF = 7
	bitOF = 11
)

func flagLoc(bit bin.BitAddr) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: FlagsDomain, BitOffset: bit, BitSize: 1}
}

// Flag locations, one bit each within FlagsDomain.
var (
	CF = flagLoc(bitCF)
	PF = flagLoc(bitPF)
	AF = flagLoc(bitAF)
	ZF = flagLoc(bitZF)
	SF = flagLoc(bitSF)
	OF = flagLoc(bitOF)
)

// FPUTop is the x87 top-of-stack pseudo-register: a 3-bit field wide enough
// to index ST(0..7), living in its own domain rather than a GP family.
var FPUTop = ir.MemoryLocation{Domain: FPUTopDomain, BitOffset: 0, BitSize: 3}

type regEntry struct {
	reg    x86asm.Reg
	fam    int
	offset bin.BitAddr
	size   bin.BitSize
}

// gpTable enumerates every aliased width of every general-purpose register,
// grouped by family. 8-bit "high byte" registers (AH/CH/DH/BH) occupy bits
// 8-15 of their family; every other width starts at bit 0.
var gpTable = []regEntry{
	{x86asm.AL, famA, 0, 8}, {x86asm.AH, famA, 8, 8}, {x86asm.AX, famA, 0, 16}, {x86asm.EAX, famA, 0, 32}, {x86asm.RAX, famA, 0, 64},
	{x86asm.CL, famC, 0, 8}, {x86asm.CH, famC, 8, 8}, {x86asm.CX, famC, 0, 16}, {x86asm.ECX, famC, 0, 32}, {x86asm.RCX, famC, 0, 64},
	{x86asm.DL, famD, 0, 8}, {x86asm.DH, famD, 8, 8}, {x86asm.DX, famD, 0, 16}, {x86asm.EDX, famD, 0, 32}, {x86asm.RDX, famD, 0, 64},
	{x86asm.BL, famB, 0, 8}, {x86asm.BH, famB, 8, 8}, {x86asm.BX, famB, 0, 16}, {x86asm.EBX, famB, 0, 32}, {x86asm.RBX, famB, 0, 64},
	{x86asm.SPB, famSP, 0, 8}, {x86asm.SP, famSP, 0, 16}, {x86asm.ESP, famSP, 0, 32}, {x86asm.RSP, famSP, 0, 64},
	{x86asm.BPB, famBP, 0, 8}, {x86asm.BP, famBP, 0, 16}, {x86asm.EBP, famBP, 0, 32}, {x86asm.RBP, famBP, 0, 64},
	{x86asm.SIB, famSI, 0, 8}, {x86asm.SI, famSI, 0, 16}, {x86asm.ESI, famSI, 0, 32}, {x86asm.RSI, famSI, 0, 64},
	{x86asm.DIB, famDI, 0, 8}, {x86asm.DI, famDI, 0, 16}, {x86asm.EDI, famDI, 0, 32}, {x86asm.RDI, famDI, 0, 64},
	{x86asm.R8B, famR8, 0, 8}, {x86asm.R8W, famR8, 0, 16}, {x86asm.R8L, famR8, 0, 32}, {x86asm.R8, famR8, 0, 64},
	{x86asm.R9B, famR9, 0, 8}, {x86asm.R9W, famR9, 0, 16}, {x86asm.R9L, famR9, 0, 32}, {x86asm.R9, famR9, 0, 64},
	{x86asm.R10B, famR10, 0, 8}, {x86asm.R10W, famR10, 0, 16}, {x86asm.R10L, famR10, 0, 32}, {x86asm.R10, famR10, 0, 64},
	{x86asm.R11B, famR11, 0, 8}, {x86asm.R11W, famR11, 0, 16}, {x86asm.R11L, famR11, 0, 32}, {x86asm.R11, famR11, 0, 64},
	{x86asm.R12B, famR12, 0, 8}, {x86asm.R12W, famR12, 0, 16}, {x86asm.R12L, famR12, 0, 32}, {x86asm.R12, famR12, 0, 64},
	{x86asm.R13B, famR13, 0, 8}, {x86asm.R13W, famR13, 0, 16}, {x86asm.R13L, famR13, 0, 32}, {x86asm.R13, famR13, 0, 64},
	{x86asm.R14B, famR14, 0, 8}, {x86asm.R14W, famR14, 0, 16}, {x86asm.R14L, famR14, 0, 32}, {x86asm.R14, famR14, 0, 64},
	{x86asm.R15B, famR15, 0, 8}, {x86asm.R15W, famR15, 0, 16}, {x86asm.R15L, famR15, 0, 32}, {x86asm.R15, famR15, 0, 64},
}

var (
	locByReg  = make(map[x86asm.Reg]ir.MemoryLocation, len(gpTable))
	regByName = make(map[ir.MemoryLocation]x86asm.Reg, len(gpTable))
)

func init() {
	for _, e := range gpTable {
		loc := ir.MemoryLocation{Domain: gpDomain(e.fam), BitOffset: e.offset, BitSize: e.size}
		locByReg[e.reg] = loc
		regByName[loc] = e.reg
	}
}

// Location returns the memory location a general-purpose x86asm register
// reads or writes, and whether reg is one.
func Location(reg x86asm.Reg) (ir.MemoryLocation, bool) {
	loc, ok := locByReg[reg]
	return loc, ok
}

// RegisterName returns the canonical x86asm register name for loc, for
// diagnostics; false if loc does not name a known general-purpose register.
func RegisterName(loc ir.MemoryLocation) (string, bool) {
	reg, ok := regByName[loc]
	if !ok {
		return "", false
	}
	return reg.String(), true
}

// famLoc returns the named family's location at a given width, used by the
// calling-convention catalog to build its widest-first argument candidates
// without spelling out x86asm register names twice.
func famLoc(fam int, size bin.BitSize) ir.MemoryLocation {
	return ir.MemoryLocation{Domain: gpDomain(fam), BitOffset: 0, BitSize: size}
}

func regString(loc ir.MemoryLocation) string {
	if name, ok := RegisterName(loc); ok {
		return name
	}
	return fmt.Sprintf("loc(%d,%d,%d)", loc.Domain, loc.BitOffset, loc.BitSize)
}
