package x86

import (
	"testing"

	"golang.org/x/arch/x86/x86asm"
)

func TestLocationAliasing(t *testing.T) {
	tests := []struct {
		reg        x86asm.Reg
		wantOffset int
		wantSize   int
	}{
		{x86asm.AL, 0, 8},
		{x86asm.AH, 8, 8},
		{x86asm.AX, 0, 16},
		{x86asm.EAX, 0, 32},
		{x86asm.RAX, 0, 64},
		{x86asm.R8B, 0, 8},
		{x86asm.R8, 0, 64},
	}
	for _, test := range tests {
		loc, ok := Location(test.reg)
		if !ok {
			t.Errorf("Location(%v): not found", test.reg)
			continue
		}
		if int(loc.BitOffset) != test.wantOffset || int(loc.BitSize) != test.wantSize {
			t.Errorf("Location(%v) = offset %d size %d, want offset %d size %d", test.reg, loc.BitOffset, loc.BitSize, test.wantOffset, test.wantSize)
		}
	}
}

func TestLocationAliasingSharesDomain(t *testing.T) {
	al, _ := Location(x86asm.AL)
	ax, _ := Location(x86asm.AX)
	eax, _ := Location(x86asm.EAX)
	rax, _ := Location(x86asm.RAX)
	if al.Domain != ax.Domain || ax.Domain != eax.Domain || eax.Domain != rax.Domain {
		t.Errorf("AL/AX/EAX/RAX do not share a domain: %d/%d/%d/%d", al.Domain, ax.Domain, eax.Domain, rax.Domain)
	}
	ecx, _ := Location(x86asm.ECX)
	if ecx.Domain == eax.Domain {
		t.Errorf("ECX and EAX unexpectedly share a domain")
	}
}

func TestRegisterNameRoundTrip(t *testing.T) {
	loc, ok := Location(x86asm.EBX)
	if !ok {
		t.Fatal("Location(EBX): not found")
	}
	name, ok := RegisterName(loc)
	if !ok || name != x86asm.EBX.String() {
		t.Errorf("RegisterName(EBX loc) = %q, %v; want %q, true", name, ok, x86asm.EBX.String())
	}
}

func TestRegisterNameUnknown(t *testing.T) {
	if _, ok := RegisterName(FPUTop); ok {
		t.Errorf("RegisterName(FPUTop) unexpectedly found a GP register name")
	}
}

func TestLocationUnknownRegister(t *testing.T) {
	if _, ok := Location(x86asm.X0); ok {
		t.Errorf("Location(X0): unexpectedly resolved an XMM register")
	}
}
