package x86

import (
	"github.com/pkg/errors"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"golang.org/x/arch/x86/x86asm"
)

// cbwOperands returns the (destination, source) location pair a sign-extend-
// into-wider-accumulator instruction reads and writes.
func cbwOperands(op x86asm.Op) (ir.Term, ir.Term) {
	switch op {
	case x86asm.CWDE:
		return ir.NewLocationAccess(famLoc(famA, 32)), ir.NewLocationAccess(famLoc(famA, 16))
	case x86asm.CDQE:
		return ir.NewLocationAccess(famLoc(famA, 64)), ir.NewLocationAccess(famLoc(famA, 32))
	default: // CBW
		return ir.NewLocationAccess(famLoc(famA, 16)), ir.NewLocationAccess(famLoc(famA, 8))
	}
}

// cdqOperands returns the (high-half, low-half) location pair of the
// accumulator-pair sign-extension instructions (cwd/cdq/cqo): dx:ax,
// edx:eax, rdx:rax.
func cdqOperands(op x86asm.Op) (ir.Term, ir.Term) {
	switch op {
	case x86asm.CDQ:
		return ir.NewLocationAccess(famLoc(famD, 32)), ir.NewLocationAccess(famLoc(famA, 32))
	case x86asm.CQO:
		return ir.NewLocationAccess(famLoc(famD, 64)), ir.NewLocationAccess(famLoc(famA, 64))
	default: // CWD
		return ir.NewLocationAccess(famLoc(famD, 16)), ir.NewLocationAccess(famLoc(famA, 16))
	}
}

func flagsEqual(a, b ir.MemoryLocation) ir.Term {
	return ir.NewBinaryOp(ir.BinaryEq, ir.NewLocationAccess(a), ir.NewLocationAccess(b), 1)
}

func flagsNotEqual(a, b ir.MemoryLocation) ir.Term {
	return ir.NewBinaryOp(ir.BinaryNe, ir.NewLocationAccess(a), ir.NewLocationAccess(b), 1)
}

func flagIs(loc ir.MemoryLocation, value uint64) ir.Term {
	return ir.NewBinaryOp(ir.BinaryEq, ir.NewLocationAccess(loc), ir.NewConstant(value, 1), 1)
}

func regIsZero(loc ir.MemoryLocation) ir.Term {
	return ir.NewBinaryOp(ir.BinaryEq, ir.NewLocationAccess(loc), ir.NewConstant(0, loc.BitSize), 1)
}

// condJump builds the 1-bit condition term a conditional jump branches on,
// and reports whether op is one of the recognized Jcc/loop-guard mnemonics.
func condJump(op x86asm.Op) (ir.Term, bool) {
	switch op {
	case x86asm.JA:
		return ir.NewBinaryOp(ir.BinaryAnd, flagIs(CF, 0), flagIs(ZF, 0), 1), true
	case x86asm.JAE:
		return flagIs(CF, 0), true
	case x86asm.JB:
		return flagIs(CF, 1), true
	case x86asm.JBE:
		return ir.NewBinaryOp(ir.BinaryOr, flagIs(CF, 1), flagIs(ZF, 1), 1), true
	case x86asm.JE:
		return flagIs(ZF, 1), true
	case x86asm.JG:
		return ir.NewBinaryOp(ir.BinaryAnd, flagIs(ZF, 0), flagsEqual(SF, OF), 1), true
	case x86asm.JGE:
		return flagsEqual(SF, OF), true
	case x86asm.JL:
		return flagsNotEqual(SF, OF), true
	case x86asm.JLE:
		return ir.NewBinaryOp(ir.BinaryOr, flagIs(ZF, 1), flagsNotEqual(SF, OF), 1), true
	case x86asm.JNE:
		return flagIs(ZF, 0), true
	case x86asm.JNO:
		return flagIs(OF, 0), true
	case x86asm.JNP:
		return flagIs(PF, 0), true
	case x86asm.JNS:
		return flagIs(SF, 0), true
	case x86asm.JO:
		return flagIs(OF, 1), true
	case x86asm.JP:
		return flagIs(PF, 1), true
	case x86asm.JS:
		return flagIs(SF, 1), true
	case x86asm.JCXZ:
		return regIsZero(famLoc(famC, 16)), true
	case x86asm.JECXZ:
		return regIsZero(famLoc(famC, 32)), true
	case x86asm.JRCXZ:
		return regIsZero(famLoc(famC, 64)), true
	default:
		return nil, false
	}
}

// stringElemSize returns the per-iteration element width of a cmps/movs
// variant, keyed by its B/W/D/Q mnemonic suffix.
func stringElemSize(op x86asm.Op) bin.BitSize {
	switch op {
	case x86asm.CMPSB, x86asm.MOVSB:
		return 8
	case x86asm.CMPSW, x86asm.MOVSW:
		return 16
	case x86asm.CMPSQ, x86asm.MOVSQ:
		return 64
	default: // CMPSD, MOVSD
		return 32
	}
}

// stringCompareOrMove lifts one iteration of a cmps/movs instruction: a
// compare or copy between the memory addressed by [esi]/[rsi] and
// [edi]/[rdi], followed by advancing both index registers by the element
// size. The direction flag's runtime state is not tracked (spec.md's
// cmps/movs Open Question), so both indices are always advanced forward,
// matching the common DF=0 case.
func stringCompareOrMove(emit func(ir.Statement), op x86asm.Op, addrSize bin.BitSize, isCompare bool) error {
	elem := stringElemSize(op)
	siLoc := famLoc(famSI, addrSize)
	diLoc := famLoc(famDI, addrSize)

	if isCompare {
		buildResult := func() (ir.Term, error) {
			dst := ir.NewDereference(ir.NewLocationAccess(diLoc), ir.DomainMemory, elem)
			src := ir.NewDereference(ir.NewLocationAccess(siLoc), ir.DomainMemory, elem)
			return ir.NewBinaryOp(ir.BinarySub, dst, src, elem), nil
		}
		if err := emitCompareFlags(emit, buildResult, elem); err != nil {
			return errors.WithStack(err)
		}
	} else {
		dst := ir.NewDereference(ir.NewLocationAccess(diLoc), ir.DomainMemory, elem)
		src := ir.NewDereference(ir.NewLocationAccess(siLoc), ir.DomainMemory, elem)
		emit(ir.NewAssignment(dst, src))
	}

	step := uint64(elem) / 8
	emit(ir.NewAssignment(ir.NewLocationAccess(siLoc), ir.NewBinaryOp(ir.BinaryAdd, ir.NewLocationAccess(siLoc), ir.NewConstant(step, addrSize), addrSize)))
	emit(ir.NewAssignment(ir.NewLocationAccess(diLoc), ir.NewBinaryOp(ir.BinaryAdd, ir.NewLocationAccess(diLoc), ir.NewConstant(step, addrSize), addrSize)))
	return nil
}
