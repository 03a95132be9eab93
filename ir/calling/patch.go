package calling

import "github.com/mewmew/nc/ir"

// Patch is an owned statement list that can be spliced into a block at a
// single anchor and unspliced again, idempotently and revocably (spec.md
// §4.4). Patches are built once and never mutated afterwards; identical-key
// hooks are reused by HookManager instead of rebuilding a Patch.
type Patch struct {
	Statements []ir.Statement

	block    *ir.BasicBlock
	inserted bool
}

// NewPatch returns a patch wrapping the given statements, none of which
// should yet belong to a block.
func NewPatch(statements []ir.Statement) *Patch {
	return &Patch{Statements: statements}
}

// IsInserted reports whether the patch is currently spliced into a block.
func (p *Patch) IsInserted() bool { return p.inserted }

// InsertAfter splices the patch's statements into anchor's block,
// immediately after anchor, preserving their relative order.
func (p *Patch) InsertAfter(anchor ir.Statement) {
	if p.inserted {
		panic("calling: patch already inserted")
	}
	block := anchor.Block()
	cur := anchor
	for _, s := range p.Statements {
		block.InsertAfter(cur, s)
		cur = s
	}
	p.block = block
	p.inserted = true
}

// InsertBefore splices the patch's statements into anchor's block,
// immediately before anchor, preserving their relative order.
func (p *Patch) InsertBefore(anchor ir.Statement) {
	if p.inserted {
		panic("calling: patch already inserted")
	}
	block := anchor.Block()
	for _, s := range p.Statements {
		block.InsertBefore(anchor, s)
	}
	p.block = block
	p.inserted = true
}

// Remove unsplices the patch's statements from their block, restoring the
// block's statement list exactly as it was before InsertAfter/InsertBefore.
func (p *Patch) Remove() {
	if !p.inserted {
		return
	}
	for _, s := range p.Statements {
		p.block.Erase(s)
	}
	p.block = nil
	p.inserted = false
}
