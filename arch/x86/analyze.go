package x86

import (
	"github.com/pkg/errors"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"golang.org/x/arch/x86/x86asm"
)

// Analyze translates a single decoded x86 instruction at addr into the IR
// statements it means (spec.md §4.2), covering the mnemonic families
// exercised by spec.md §8's scenarios: mov, push/pop, integer arithmetic,
// compare/test, conditional and unconditional jumps, call, ret, lea, the
// xor-self idiom, cbw/cwde sign extension, and the cmps/movs string family.
// An instruction outside that coverage yields an InlineAssembly placeholder
// rather than an error, matching spec.md §7's "invalid instruction" handling.
func Analyze(inst x86asm.Inst, addr bin.Addr) ([]ir.Statement, error) {
	size := bin.BitSize(inst.DataSize)
	addrSize := bin.BitSize(inst.AddrSize)

	// x86asm only hands back AddrSize 64 for an instruction actually decoded
	// in 64-bit mode (cpuMode 32 never produces it), so it doubles as the
	// long-mode signal the implicit zero-extend below is gated on.
	is64 := addrSize == 64

	var stmts []ir.Statement
	emit := func(s ir.Statement) {
		s.SetInstructionAddr(addr)
		stmts = append(stmts, s)
		if is64 {
			if zx, ok := implicitZeroExtend(s); ok {
				zx.SetInstructionAddr(addr)
				stmts = append(stmts, zx)
			}
		}
	}

	switch inst.Op {
	case x86asm.MOV, x86asm.MOVZX, x86asm.MOVSX, x86asm.MOVSXD:
		dst, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		srcSize := size
		if inst.Op == x86asm.MOVZX || inst.Op == x86asm.MOVSX || inst.Op == x86asm.MOVSXD {
			srcSize = nativeSize(inst.Args[1], inst)
		}
		src, err := argTerm(inst.Args[1], srcSize, addrSize)
		if err != nil {
			return nil, err
		}
		src = extend(inst.Op, src, size)
		emit(ir.NewAssignment(dst, src))

	case x86asm.LEA:
		dst, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		mem, ok := inst.Args[1].(x86asm.Mem)
		if !ok {
			return nil, errors.Errorf("x86: lea expects a memory operand, got %T", inst.Args[1])
		}
		addrTerm, err := effectiveAddress(mem, addrSize)
		if err != nil {
			return nil, err
		}
		emit(ir.NewAssignment(dst, addrTerm))

	case x86asm.PUSH:
		src, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		emit(decSP(size, addrSize))
		emit(ir.NewAssignment(derefSP(size, addrSize), src))

	case x86asm.POP:
		dst, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		emit(ir.NewAssignment(dst, derefSP(size, addrSize)))
		emit(incSP(size, addrSize))

	case x86asm.ADD, x86asm.SUB, x86asm.AND, x86asm.OR, x86asm.XOR:
		if inst.Op == x86asm.XOR && sameReg(inst.Args[0], inst.Args[1]) {
			// The canonical "zero a register" idiom: skip straight to a
			// constant rather than an operator over two reads of the same
			// uninitialized value.
			dst, err := argTerm(inst.Args[0], size, addrSize)
			if err != nil {
				return nil, err
			}
			emit(ir.NewAssignment(dst, ir.NewConstant(0, size)))
			break
		}
		dst, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		lhs, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		rhs, err := argTerm(inst.Args[1], size, addrSize)
		if err != nil {
			return nil, err
		}
		op := binaryOpOf(inst.Op)
		emit(ir.NewAssignment(dst, ir.NewBinaryOp(op, lhs, rhs, size)))

		buildPost := func() (ir.Term, error) { return argTerm(inst.Args[0], size, addrSize) }
		if err := emitFlags(emit, buildPost, size); err != nil {
			return nil, err
		}

	case x86asm.CMP, x86asm.TEST:
		op := ir.BinarySub
		if inst.Op == x86asm.TEST {
			op = ir.BinaryAnd
		}
		buildResult := func() (ir.Term, error) {
			lhs, err := argTerm(inst.Args[0], size, addrSize)
			if err != nil {
				return nil, err
			}
			rhs, err := argTerm(inst.Args[1], size, addrSize)
			if err != nil {
				return nil, err
			}
			return ir.NewBinaryOp(op, lhs, rhs, size), nil
		}
		if err := emitCompareFlags(emit, buildResult, size); err != nil {
			return nil, err
		}

	case x86asm.INC, x86asm.DEC:
		dst, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		arg, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		op := ir.BinaryAdd
		if inst.Op == x86asm.DEC {
			op = ir.BinarySub
		}
		emit(ir.NewAssignment(dst, ir.NewBinaryOp(op, arg, ir.NewConstant(1, size), size)))

		buildPost := func() (ir.Term, error) { return argTerm(inst.Args[0], size, addrSize) }
		if err := emitFlags(emit, buildPost, size); err != nil {
			return nil, err
		}

	case x86asm.NEG:
		dst, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		arg, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		emit(ir.NewAssignment(dst, ir.NewUnaryOp(ir.UnaryNegate, arg, size)))

		buildPost := func() (ir.Term, error) { return argTerm(inst.Args[0], size, addrSize) }
		if err := emitFlags(emit, buildPost, size); err != nil {
			return nil, err
		}

	case x86asm.NOT:
		dst, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		arg, err := argTerm(inst.Args[0], size, addrSize)
		if err != nil {
			return nil, err
		}
		emit(ir.NewAssignment(dst, ir.NewUnaryOp(ir.UnaryNot, arg, size)))

	case x86asm.CBW, x86asm.CWDE, x86asm.CDQE:
		dst, src := cbwOperands(inst.Op)
		emit(ir.NewAssignment(dst, ir.NewUnaryOp(ir.UnarySignExtend, src, dst.Size())))

	case x86asm.CWD, x86asm.CDQ, x86asm.CQO:
		// Sign-extends the accumulator into dx:ax/edx:eax/rdx:rax; only the
		// high half is modeled as a fresh write, the low half is unchanged.
		hi, lo := cdqOperands(inst.Op)
		full := ir.NewUnaryOp(ir.UnarySignExtend, lo, hi.Size()*2)
		shifted := ir.NewBinaryOp(ir.BinaryShr, full, ir.NewConstant(uint64(hi.Size()), hi.Size()*2), hi.Size()*2)
		emit(ir.NewAssignment(hi, ir.NewUnaryOp(ir.UnaryTruncate, shifted, hi.Size())))

	case x86asm.JMP:
		target, err := jumpTarget(inst.Args[0], addr, inst.Len, addrSize)
		if err != nil {
			return nil, err
		}
		emit(ir.NewJump(target))

	case x86asm.CALL:
		target, err := callTarget(inst.Args[0], addr, inst.Len, addrSize)
		if err != nil {
			return nil, err
		}
		emit(ir.NewCall(target))

	case x86asm.RET:
		emit(ir.NewJump(ir.AddressTarget(derefSP(addrSize, addrSize))))
		emit(incSP(addrSize, addrSize))

	case x86asm.CMPSB, x86asm.CMPSW, x86asm.CMPSQ:
		if err := stringCompareOrMove(emit, inst.Op, addrSize, true); err != nil {
			return nil, err
		}

	case x86asm.CMPSD:
		// x86asm.CMPSD also names the SSE scalar-double compare, which
		// always carries register operands; the string form never does.
		if inst.Args[0] != nil {
			emit(ir.NewInlineAssembly(inst.Op.String()))
			break
		}
		if err := stringCompareOrMove(emit, inst.Op, addrSize, true); err != nil {
			return nil, err
		}

	case x86asm.MOVSB, x86asm.MOVSW, x86asm.MOVSQ:
		if err := stringCompareOrMove(emit, inst.Op, addrSize, false); err != nil {
			return nil, err
		}

	case x86asm.MOVSD:
		// Same string-vs-SSE ambiguity as CMPSD above.
		if inst.Args[0] != nil {
			emit(ir.NewInlineAssembly(inst.Op.String()))
			break
		}
		if err := stringCompareOrMove(emit, inst.Op, addrSize, false); err != nil {
			return nil, err
		}

	case x86asm.NOP:
		// No IR effect.

	default:
		if cond, ok := condJump(inst.Op); ok {
			target, err := jumpTarget(inst.Args[0], addr, inst.Len, addrSize)
			if err != nil {
				return nil, err
			}
			emit(ir.NewCondJump(cond, target, ir.AddressTarget(ir.NewConstant(uint64(addr)+uint64(inst.Len), addrSize))))
			break
		}
		emit(ir.NewInlineAssembly(inst.Op.String()))
	}

	return stmts, nil
}

// implicitZeroExtend builds the long-mode side effect a plain 32-bit write
// carries for free: the upper 32 bits of the enclosing 64-bit general-
// purpose register are cleared, unlike the 8/16-bit forms which preserve
// whatever was already there (spec.md §4.10, scenario 5). Returns false for
// anything other than a 32-bit, offset-0 assignment into a GP domain.
func implicitZeroExtend(s ir.Statement) (ir.Statement, bool) {
	a, ok := s.(*ir.Assignment)
	if !ok {
		return nil, false
	}
	loc, ok := a.Left.(*ir.LocationAccess)
	if !ok {
		return nil, false
	}
	if loc.Location.BitOffset != 0 || loc.Location.BitSize != 32 {
		return nil, false
	}
	d := loc.Location.Domain
	if d < ir.FirstRegisterDomain || d >= ir.FirstRegisterDomain+ir.Domain(numGPFamilies) {
		return nil, false
	}
	upper := ir.MemoryLocation{Domain: d, BitOffset: 32, BitSize: 32}
	return ir.NewAssignment(ir.NewLocationAccess(upper), ir.NewConstant(0, 32)), true
}
