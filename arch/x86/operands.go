package x86

import (
	"github.com/pkg/errors"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
	"golang.org/x/arch/x86/x86asm"
)

// argTerm builds the term an x86asm operand reads or writes, at the given
// bit size (ignored for a register operand, whose width is dictated by the
// register itself).
func argTerm(arg x86asm.Arg, size, addrSize bin.BitSize) (ir.Term, error) {
	switch v := arg.(type) {
	case x86asm.Reg:
		loc, ok := Location(v)
		if !ok {
			return nil, errors.Errorf("x86: unsupported register %v", v)
		}
		return ir.NewLocationAccess(loc), nil
	case x86asm.Mem:
		addrTerm, err := effectiveAddress(v, addrSize)
		if err != nil {
			return nil, err
		}
		return ir.NewDereference(addrTerm, ir.DomainMemory, size), nil
	case x86asm.Imm:
		return ir.NewConstant(uint64(v), size), nil
	default:
		return nil, errors.Errorf("x86: unsupported operand type %T", arg)
	}
}

// nativeSize reports the bit width of arg as the instruction itself
// declares it, independent of the instruction's nominal DataSize; movzx and
// movsx read a source narrower than their destination, so DataSize (the
// destination's width) cannot be reused for the source operand.
func nativeSize(arg x86asm.Arg, inst x86asm.Inst) bin.BitSize {
	switch v := arg.(type) {
	case x86asm.Reg:
		if loc, ok := Location(v); ok {
			return loc.BitSize
		}
	case x86asm.Mem:
		if inst.MemBytes > 0 {
			return bin.BitSize(inst.MemBytes * 8)
		}
	}
	return bin.BitSize(inst.DataSize)
}

// effectiveAddress builds the address term a Mem operand computes: an
// optional base, an optional scaled index, and a displacement, added
// together at addrSize width.
func effectiveAddress(m x86asm.Mem, addrSize bin.BitSize) (ir.Term, error) {
	var addr ir.Term
	if m.Base != 0 {
		loc, ok := Location(m.Base)
		if !ok {
			return nil, errors.Errorf("x86: unsupported base register %v", m.Base)
		}
		addr = ir.NewLocationAccess(loc)
	}
	if m.Index != 0 && m.Scale != 0 {
		loc, ok := Location(m.Index)
		if !ok {
			return nil, errors.Errorf("x86: unsupported index register %v", m.Index)
		}
		idx := ir.Term(ir.NewLocationAccess(loc))
		if m.Scale != 1 {
			idx = ir.NewBinaryOp(ir.BinaryMul, idx, ir.NewConstant(uint64(m.Scale), addrSize), addrSize)
		}
		if addr == nil {
			addr = idx
		} else {
			addr = ir.NewBinaryOp(ir.BinaryAdd, addr, idx, addrSize)
		}
	}
	if m.Disp != 0 || addr == nil {
		disp := ir.NewConstant(uint64(m.Disp), addrSize)
		if addr == nil {
			addr = disp
		} else {
			addr = ir.NewBinaryOp(ir.BinaryAdd, addr, disp, addrSize)
		}
	}
	return addr, nil
}

// sameReg reports whether a and b are the same x86asm register, the
// signature of the "xor reg, reg" zeroing idiom.
func sameReg(a, b x86asm.Arg) bool {
	ra, ok1 := a.(x86asm.Reg)
	rb, ok2 := b.(x86asm.Reg)
	return ok1 && ok2 && ra == rb
}

// extend wraps src in the sign/zero-extension movzx/movsx/movsxd declare;
// a plain mov (src already at dstSize) passes src through unchanged.
func extend(op x86asm.Op, src ir.Term, dstSize bin.BitSize) ir.Term {
	if src.Size() == dstSize {
		return src
	}
	switch op {
	case x86asm.MOVSX, x86asm.MOVSXD:
		return ir.NewUnaryOp(ir.UnarySignExtend, src, dstSize)
	case x86asm.MOVZX:
		return ir.NewUnaryOp(ir.UnaryZeroExtend, src, dstSize)
	default:
		return src
	}
}

// relTarget resolves a PC-relative operand (the Args[0] of a direct jmp/
// call) to the absolute destination address it encodes.
func relTarget(rel x86asm.Rel, addr bin.Addr, instLen int) bin.Addr {
	return addr + bin.Addr(instLen) + bin.Addr(rel)
}

// jumpTarget builds the JumpTarget a jmp/Jcc operand names: a direct
// relative destination resolves to a concrete address, an indirect
// register/memory operand yields a runtime-computed address.
func jumpTarget(arg x86asm.Arg, addr bin.Addr, instLen int, addrSize bin.BitSize) (ir.JumpTarget, error) {
	if rel, ok := arg.(x86asm.Rel); ok {
		dst := relTarget(rel, addr, instLen)
		return ir.AddressTarget(ir.NewConstant(uint64(dst), addrSize)), nil
	}
	t, err := argTerm(arg, addrSize, addrSize)
	if err != nil {
		return ir.JumpTarget{}, err
	}
	return ir.AddressTarget(t), nil
}

// callTarget builds the term a call operand addresses, resolving a direct
// relative operand the same way jumpTarget does.
func callTarget(arg x86asm.Arg, addr bin.Addr, instLen int, addrSize bin.BitSize) (ir.Term, error) {
	if rel, ok := arg.(x86asm.Rel); ok {
		dst := relTarget(rel, addr, instLen)
		return ir.NewConstant(uint64(dst), addrSize), nil
	}
	return argTerm(arg, addrSize, addrSize)
}

// CallTargetAddr resolves a direct (PC-relative) call instruction's concrete
// destination address, for seeding the program builder's called-address set
// (spec.md §4.2/§4.3) ahead of lifting; an indirect call (through a register
// or memory operand) has no statically known address and reports false.
func CallTargetAddr(inst x86asm.Inst, addr bin.Addr) (bin.Addr, bool) {
	if inst.Op != x86asm.CALL {
		return 0, false
	}
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return relTarget(rel, addr, inst.Len), true
}
