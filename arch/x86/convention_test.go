package x86

import "testing"

func TestCdeclAllArgsOnStack(t *testing.T) {
	c := Cdecl()
	if len(c.ArgumentGroups) != 0 {
		t.Errorf("cdecl has %d argument groups, want 0 (all stack-passed)", len(c.ArgumentGroups))
	}
	if c.CalleeCleanup {
		t.Errorf("cdecl: CalleeCleanup = true, want false")
	}
}

func TestStdcallIsCdeclWithCalleeCleanup(t *testing.T) {
	c := Stdcall()
	if !c.CalleeCleanup {
		t.Errorf("stdcall: CalleeCleanup = false, want true")
	}
	if c.StackPointer != Cdecl().StackPointer {
		t.Errorf("stdcall and cdecl stack pointers differ")
	}
}

func TestFastcallFirstTwoArgsInRegisters(t *testing.T) {
	c := Fastcall()
	if len(c.ArgumentGroups) != 2 {
		t.Fatalf("fastcall has %d argument groups, want 2", len(c.ArgumentGroups))
	}
	ecx := famLoc(famC, 32)
	got := c.ArgumentGroups[0].Candidates[0].Canonical()
	if got.Domain != ecx.Domain {
		t.Errorf("fastcall's first argument candidate's domain = %d, want ecx's domain %d", got.Domain, ecx.Domain)
	}
}

func TestMicrosoftX64ArgumentOrder(t *testing.T) {
	c := MicrosoftX64()
	if len(c.ArgumentGroups) != 4 {
		t.Fatalf("ms_x64 has %d argument groups, want 4", len(c.ArgumentGroups))
	}
	wantOrder := []int{famC, famD, famR8, famR9}
	for i, fam := range wantOrder {
		want := famLoc(fam, 64)
		got := c.ArgumentGroups[i].Candidates[0].Canonical()
		if got.Domain != want.Domain {
			t.Errorf("ms_x64 argument group %d domain = %d, want %d", i, got.Domain, want.Domain)
		}
	}
}

func TestGPCandidateWidestFirst(t *testing.T) {
	cand := gpCandidate(famA)
	sizes := make([]int, len(cand.Locations))
	for i, loc := range cand.Locations {
		sizes[i] = int(loc.BitSize)
	}
	for i := 1; i < len(sizes); i++ {
		if sizes[i] > sizes[i-1] {
			t.Fatalf("gpCandidate(famA) sizes not widest-first: %v", sizes)
		}
	}
	if cand.Canonical().BitSize != 64 {
		t.Errorf("gpCandidate(famA).Canonical().BitSize = %d, want 64", cand.Canonical().BitSize)
	}
}
