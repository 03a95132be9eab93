package x86

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
)

func mustAnalyze(t *testing.T, inst x86asm.Inst, addr bin.Addr) []ir.Statement {
	t.Helper()
	stmts, err := Analyze(inst, addr)
	if err != nil {
		t.Fatalf("Analyze(%v): %v", inst.Op, err)
	}
	return stmts
}

func TestAnalyzeMov(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.MOV,
		Args:     x86asm.Args{x86asm.EAX, x86asm.EBX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 1 {
		t.Fatalf("mov produced %d statements, want 1", len(stmts))
	}
	a, ok := stmts[0].(*ir.Assignment)
	if !ok {
		t.Fatalf("mov statement is %T, want *ir.Assignment", stmts[0])
	}
	addr, ok := a.InstructionAddr()
	if !ok || addr != 0x1000 {
		t.Errorf("mov instruction address = %v, %v; want 0x1000, true", addr, ok)
	}
}

func TestAnalyzeXorSelfIdiom(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.XOR,
		Args:     x86asm.Args{x86asm.EAX, x86asm.EAX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 1 {
		t.Fatalf("xor eax, eax produced %d statements, want 1 (the zeroing idiom elides flags)", len(stmts))
	}
	a := stmts[0].(*ir.Assignment)
	c, ok := a.Right.(*ir.Constant)
	if !ok || c.Value != 0 {
		t.Errorf("xor eax, eax right-hand side = %#v, want constant 0", a.Right)
	}
}

func TestAnalyzeAddEmitsFlags(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.ADD,
		Args:     x86asm.Args{x86asm.EAX, x86asm.EBX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	// add + ZF + SF + 4 killed flags = 7
	if len(stmts) != 7 {
		t.Fatalf("add produced %d statements, want 7", len(stmts))
	}
	if _, ok := stmts[0].(*ir.Assignment); !ok {
		t.Errorf("add's first statement is %T, want *ir.Assignment", stmts[0])
	}
	zf := stmts[1].(*ir.Assignment)
	loc, ok := zf.Left.(*ir.LocationAccess)
	if !ok || loc.Location != ZF {
		t.Errorf("add's second statement does not write ZF: %#v", zf.Left)
	}
}

func TestAnalyzeDecEmitsZeroFlag(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.DEC,
		Args:     x86asm.Args{x86asm.ECX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	// dec + ZF + SF + 4 killed flags = 7
	if len(stmts) != 7 {
		t.Fatalf("dec produced %d statements, want 7", len(stmts))
	}
	zf := stmts[1].(*ir.Assignment)
	loc, ok := zf.Left.(*ir.LocationAccess)
	if !ok || loc.Location != ZF {
		t.Errorf("dec's second statement does not write ZF: %#v", zf.Left)
	}
}

func TestAnalyzeIncEmitsZeroFlag(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.INC,
		Args:     x86asm.Args{x86asm.EAX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 7 {
		t.Fatalf("inc produced %d statements, want 7", len(stmts))
	}
}

func TestAnalyzeNegEmitsFlags(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.NEG,
		Args:     x86asm.Args{x86asm.EAX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 7 {
		t.Fatalf("neg produced %d statements, want 7", len(stmts))
	}
}

func TestAnalyzeNotDoesNotTouchFlags(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.NOT,
		Args:     x86asm.Args{x86asm.EAX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 1 {
		t.Fatalf("not produced %d statements, want 1 (no EFLAGS effect)", len(stmts))
	}
}

func TestAnalyzeCmpDoesNotWriteOperands(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.CMP,
		Args:     x86asm.Args{x86asm.EAX, x86asm.EBX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	for _, s := range stmts {
		a, ok := s.(*ir.Assignment)
		if !ok {
			continue
		}
		loc, ok := a.Left.(*ir.LocationAccess)
		if ok && loc.Location.Domain == gpDomain(famA) {
			t.Errorf("cmp wrote to eax's domain, should only touch flags")
		}
	}
}

func TestAnalyzePushPop(t *testing.T) {
	push := x86asm.Inst{
		Op:       x86asm.PUSH,
		Args:     x86asm.Args{x86asm.EAX},
		DataSize: 32,
		AddrSize: 32,
		Len:      1,
	}
	stmts := mustAnalyze(t, push, 0x1000)
	if len(stmts) != 2 {
		t.Fatalf("push produced %d statements, want 2 (decrement + store)", len(stmts))
	}

	pop := x86asm.Inst{
		Op:       x86asm.POP,
		Args:     x86asm.Args{x86asm.ECX},
		DataSize: 32,
		AddrSize: 32,
		Len:      1,
	}
	stmts = mustAnalyze(t, pop, 0x1001)
	if len(stmts) != 2 {
		t.Fatalf("pop produced %d statements, want 2 (load + increment)", len(stmts))
	}
}

func TestAnalyzeJmpRelative(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.JMP,
		Args:     x86asm.Args{x86asm.Rel(5)},
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 1 {
		t.Fatalf("jmp produced %d statements, want 1", len(stmts))
	}
	jump := stmts[0].(*ir.Jump)
	if jump.IsConditional() {
		t.Errorf("unconditional jmp reported as conditional")
	}
	c, ok := jump.Then.Address.(*ir.Constant)
	if !ok {
		t.Fatalf("jmp target is %T, want *ir.Constant", jump.Then.Address)
	}
	if want := uint64(0x1000 + 2 + 5); c.Value != want {
		t.Errorf("jmp target = %#x, want %#x", c.Value, want)
	}
}

func TestAnalyzeCondJump(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.JE,
		Args:     x86asm.Args{x86asm.Rel(10)},
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x2000)
	jump := stmts[0].(*ir.Jump)
	if !jump.IsConditional() {
		t.Fatalf("je lifted as unconditional jump")
	}
	if jump.Else.Kind != ir.TargetAddress {
		t.Errorf("je's fallthrough target kind = %v, want TargetAddress", jump.Else.Kind)
	}
}

func TestAnalyzeCallRelative(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.CALL,
		Args:     x86asm.Args{x86asm.Rel(0x20)},
		AddrSize: 32,
		Len:      5,
	}
	stmts := mustAnalyze(t, inst, 0x3000)
	if len(stmts) != 1 {
		t.Fatalf("call produced %d statements, want 1", len(stmts))
	}
	call, ok := stmts[0].(*ir.Call)
	if !ok {
		t.Fatalf("call statement is %T, want *ir.Call", stmts[0])
	}
	c, ok := call.Target.(*ir.Constant)
	if !ok {
		t.Fatalf("call target is %T, want *ir.Constant", call.Target)
	}
	if want := uint64(0x3000 + 5 + 0x20); c.Value != want {
		t.Errorf("call target = %#x, want %#x", c.Value, want)
	}

	if addr, ok := CallTargetAddr(inst, 0x3000); !ok || uint64(addr) != want {
		t.Errorf("CallTargetAddr = %v, %v; want %#x, true", addr, ok, want)
	}
}

func TestAnalyzeCallIndirectHasNoStaticTarget(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.CALL,
		Args:     x86asm.Args{x86asm.EAX},
		AddrSize: 32,
		Len:      2,
	}
	if _, ok := CallTargetAddr(inst, 0x3000); ok {
		t.Errorf("CallTargetAddr resolved an indirect call")
	}
}

func TestAnalyzeLea(t *testing.T) {
	inst := x86asm.Inst{
		Op: x86asm.LEA,
		Args: x86asm.Args{x86asm.EAX, x86asm.Mem{
			Base: x86asm.EBX,
			Disp: 4,
		}},
		DataSize: 32,
		AddrSize: 32,
		Len:      3,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	a := stmts[0].(*ir.Assignment)
	binOp, ok := a.Right.(*ir.BinaryOp)
	if !ok || binOp.Op != ir.BinaryAdd {
		t.Fatalf("lea right-hand side = %#v, want an add of base and displacement", a.Right)
	}
}

func TestAnalyzeMovzx(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.MOVZX,
		Args:     x86asm.Args{x86asm.EAX, x86asm.BL},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	a := stmts[0].(*ir.Assignment)
	u, ok := a.Right.(*ir.UnaryOp)
	if !ok || u.Op != ir.UnaryZeroExtend {
		t.Fatalf("movzx right-hand side = %#v, want a zero-extend", a.Right)
	}
	if u.Arg.Size() != 8 {
		t.Errorf("movzx source size = %d, want 8 (bl)", u.Arg.Size())
	}
}

func TestAnalyzeRet(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.RET,
		AddrSize: 32,
		Len:      1,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 2 {
		t.Fatalf("ret produced %d statements, want 2 (jump + stack fixup)", len(stmts))
	}
	if _, ok := stmts[0].(*ir.Jump); !ok {
		t.Errorf("ret's first statement is %T, want *ir.Jump", stmts[0])
	}
}

func TestAnalyzeNopIsNoOp(t *testing.T) {
	inst := x86asm.Inst{Op: x86asm.NOP, Len: 1}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 0 {
		t.Errorf("nop produced %d statements, want 0", len(stmts))
	}
}

func TestAnalyzeUnknownOpcodeIsInlineAssembly(t *testing.T) {
	inst := x86asm.Inst{Op: x86asm.SYSCALL, Len: 2}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 1 {
		t.Fatalf("unrecognized opcode produced %d statements, want 1", len(stmts))
	}
	if _, ok := stmts[0].(*ir.InlineAssembly); !ok {
		t.Errorf("unrecognized opcode lifted as %T, want *ir.InlineAssembly", stmts[0])
	}
}

func TestAnalyzeCmpsdStringForm(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.CMPSD,
		AddrSize: 32,
		Len:      1,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) == 0 {
		t.Fatal("cmpsd (string form) produced no statements")
	}
	if _, ok := stmts[0].(*ir.InlineAssembly); ok {
		t.Errorf("cmpsd string form incorrectly fell back to inline assembly")
	}
}

func TestAnalyzeCmpsdSSEForm(t *testing.T) {
	inst := x86asm.Inst{
		Op:   x86asm.CMPSD,
		Args: x86asm.Args{x86asm.X0, x86asm.X1},
		Len:  4,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 1 {
		t.Fatalf("cmpsd (SSE form) produced %d statements, want 1", len(stmts))
	}
	if _, ok := stmts[0].(*ir.InlineAssembly); !ok {
		t.Errorf("cmpsd SSE form should fall back to inline assembly, got %T", stmts[0])
	}
}

func TestAnalyzeMovImplicitZeroExtendInLongMode(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.MOV,
		Args:     x86asm.Args{x86asm.EAX, x86asm.EBX},
		DataSize: 32,
		AddrSize: 64,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 2 {
		t.Fatalf("mov eax, ebx in long mode produced %d statements, want 2 (mov + upper-32 zero)", len(stmts))
	}
	zx, ok := stmts[1].(*ir.Assignment)
	if !ok {
		t.Fatalf("mov's second statement is %T, want *ir.Assignment", stmts[1])
	}
	loc, ok := zx.Left.(*ir.LocationAccess)
	if !ok || loc.Location.Domain != gpDomain(famA) || loc.Location.BitOffset != 32 || loc.Location.BitSize != 32 {
		t.Fatalf("mov's zero-extend writes %#v, want rax[32:64]", zx.Left)
	}
	c, ok := zx.Right.(*ir.Constant)
	if !ok || c.Value != 0 {
		t.Errorf("mov's zero-extend right-hand side = %#v, want constant 0", zx.Right)
	}
}

func TestAnalyzeMovNoImplicitZeroExtendInProtectedMode(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.MOV,
		Args:     x86asm.Args{x86asm.EAX, x86asm.EBX},
		DataSize: 32,
		AddrSize: 32,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 1 {
		t.Fatalf("mov eax, ebx in protected mode produced %d statements, want 1 (32-bit mode has no 64-bit alias to zero)", len(stmts))
	}
}

func TestAnalyzeMovzxImplicitZeroExtendInLongMode(t *testing.T) {
	inst := x86asm.Inst{
		Op:       x86asm.MOVZX,
		Args:     x86asm.Args{x86asm.EAX, x86asm.BL},
		DataSize: 32,
		AddrSize: 64,
		Len:      2,
	}
	stmts := mustAnalyze(t, inst, 0x1000)
	if len(stmts) != 2 {
		t.Fatalf("movzx eax, bl in long mode produced %d statements, want 2 (movzx + upper-32 zero)", len(stmts))
	}
}

func TestAnalyzeCwde(t *testing.T) {
	inst := x86asm.Inst{Op: x86asm.CWDE, Len: 1}
	stmts := mustAnalyze(t, inst, 0x1000)
	a := stmts[0].(*ir.Assignment)
	loc := a.Left.(*ir.LocationAccess)
	if loc.Location.BitSize != 32 {
		t.Errorf("cwde destination size = %d, want 32", loc.Location.BitSize)
	}
}
