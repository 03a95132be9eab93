// Package partition implements the function partitioner (spec.md §4.3): it
// splits a program's block graph into functions via reachability and
// call-target discovery.
package partition

import (
	"log"
	"os"
	"sort"

	"github.com/mewkiz/pkg/term"
	"github.com/mewmew/nc/bin"
	"github.com/mewmew/nc/ir"
)

var dbg = log.New(os.Stderr, term.MagentaBold("partition:")+" ", 0)

// Partition splits prog's blocks into functions in three passes, in
// priority order: blocks at known call targets, then not-yet-covered blocks
// with no predecessors, then everything left over (spec.md §4.3).
func Partition(prog *ir.Program) []*ir.Function {
	blocks := sortedBlocks(prog)
	covered := make(map[*ir.BasicBlock]bool)
	preds := predecessors(prog)
	calledSet := make(map[bin.Addr]bool)
	for _, a := range prog.CalledAddresses() {
		calledSet[a] = true
	}

	var funcs []*ir.Function
	for _, block := range blocks {
		if covered[block] || block.EntryAddr == nil || !calledSet[*block.EntryAddr] {
			continue
		}
		funcs = append(funcs, buildFunction(block, covered, calledSet))
	}
	for _, block := range blocks {
		if covered[block] || block.EntryAddr == nil || len(preds[block]) != 0 {
			continue
		}
		funcs = append(funcs, buildFunction(block, covered, calledSet))
	}
	for _, block := range blocks {
		if covered[block] {
			continue
		}
		funcs = append(funcs, buildFunction(block, covered, calledSet))
	}
	return funcs
}

func sortedBlocks(prog *ir.Program) []*ir.BasicBlock {
	blocks := append([]*ir.BasicBlock(nil), prog.Blocks()...)
	sort.Slice(blocks, func(i, j int) bool {
		ai, aj := blocks[i].EntryAddr, blocks[j].EntryAddr
		switch {
		case ai == nil && aj == nil:
			return false
		case ai == nil:
			return false
		case aj == nil:
			return true
		default:
			return *ai < *aj
		}
	})
	return blocks
}

// predecessors computes, for every block in prog, the set of blocks whose
// last statement jumps to it directly.
func predecessors(prog *ir.Program) map[*ir.BasicBlock][]*ir.BasicBlock {
	preds := make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for _, block := range prog.Blocks() {
		j, ok := block.Last().(*ir.Jump)
		if !ok {
			continue
		}
		if j.Then.Kind == ir.TargetBlock && j.Then.Block != nil {
			preds[j.Then.Block] = append(preds[j.Then.Block], block)
		}
		if j.IsConditional() && j.Else.Kind == ir.TargetBlock && j.Else.Block != nil {
			preds[j.Else.Block] = append(preds[j.Else.Block], block)
		}
		if j.Then.Kind == ir.TargetTable {
			for _, e := range j.Then.Table {
				if e.Block != nil {
					preds[e.Block] = append(preds[e.Block], block)
				}
			}
		}
	}
	return preds
}

// buildFunction runs a forward DFS from entry over not-yet-covered blocks,
// clones the trace, rewrites jump targets into the clones, and elides
// leading no-ops from the function's declared entry address.
func buildFunction(entry *ir.BasicBlock, covered map[*ir.BasicBlock]bool, calledSet map[bin.Addr]bool) *ir.Function {
	trace := dfs(entry, covered)
	clones := make(map[*ir.BasicBlock]*ir.BasicBlock, len(trace))
	for _, b := range trace {
		clones[b] = b.Clone()
		clones[b].EntryAddr = b.EntryAddr
		clones[b].SuccessorAddr = b.SuccessorAddr
	}
	for orig, clone := range clones {
		clone.RewriteJumpTargets(clones)
		dropDeadUnconditionalJump(clone)
		_ = orig
	}

	entryClone := clones[entry]
	f := ir.NewFunction(entryClone)
	f.EntryAddr = entry.EntryAddr
	for _, b := range trace {
		if b == entry {
			continue
		}
		f.AddBlock(clones[b])
	}

	if first := entryClone.First(); first != nil && entry.EntryAddr != nil {
		if addr, ok := first.InstructionAddr(); ok && addr > *entry.EntryAddr && !calledSet[*entry.EntryAddr] {
			f.EntryAddr = &addr
			dbg.Printf("elided leading no-ops: function entry %v -> %v", *entry.EntryAddr, addr)
		}
	}
	return f
}

// dfs walks the block graph reachable from entry through jump targets,
// stopping at blocks already covered by a previous function, and marks
// every block it adds as covered.
func dfs(entry *ir.BasicBlock, covered map[*ir.BasicBlock]bool) []*ir.BasicBlock {
	var trace []*ir.BasicBlock
	stack := []*ir.BasicBlock{entry}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if covered[b] {
			continue
		}
		covered[b] = true
		trace = append(trace, b)
		j, ok := b.Last().(*ir.Jump)
		if !ok {
			continue
		}
		stack = appendTargetBlocks(stack, j.Then, covered)
		if j.IsConditional() {
			stack = appendTargetBlocks(stack, j.Else, covered)
		}
	}
	return trace
}

func appendTargetBlocks(stack []*ir.BasicBlock, t ir.JumpTarget, covered map[*ir.BasicBlock]bool) []*ir.BasicBlock {
	switch t.Kind {
	case ir.TargetBlock:
		if t.Block != nil && !covered[t.Block] {
			stack = append(stack, t.Block)
		}
	case ir.TargetTable:
		for _, e := range t.Table {
			if e.Block != nil && !covered[e.Block] {
				stack = append(stack, e.Block)
			}
		}
	}
	return stack
}

// dropDeadUnconditionalJump erases an unconditional jump whose target block
// was not part of the cloned trace (spec.md §4.3): RewriteJumpTargets
// leaves such a target's Block field nil.
func dropDeadUnconditionalJump(block *ir.BasicBlock) {
	j, ok := block.Last().(*ir.Jump)
	if !ok || j.IsConditional() {
		return
	}
	if j.Then.Kind == ir.TargetBlock && j.Then.Block == nil {
		block.Erase(j)
	}
}
