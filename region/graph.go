// Package region implements the CFG structural analyzer (spec.md §4.8): a
// bottom-up graph rewriting loop that reduces a function's basic-block
// graph into a tree of regions suitable for structured C emission.
package region

import "github.com/mewmew/nc/ir"

// Kind discriminates the structural shape a region represents.
type Kind int

const (
	// KindBasic wraps exactly one basic block; the graph's initial state
	// is all KindBasic nodes.
	KindBasic Kind = iota
	// KindUnknown holds a heterogeneous leftover set with no recognized
	// structure; emitted via DFS preordering with explicit gotos.
	KindUnknown
	// KindBlock is a straight-line sequence of regions.
	KindBlock
	// KindCompoundCondition combines two conditions with && or ||.
	KindCompoundCondition
	// KindIfThen is a one-armed conditional.
	KindIfThen
	// KindIfThenElse is a two-armed conditional.
	KindIfThenElse
	// KindLoop is an endless loop (no recognized test).
	KindLoop
	// KindWhile is a pre-tested loop with an external exit.
	KindWhile
	// KindDoWhile is a post-tested loop.
	KindDoWhile
	// KindSwitch is a bounds-check plus dispatch over case arms.
	KindSwitch
)

func (k Kind) String() string {
	names := [...]string{
		"basic", "unknown", "block", "compound_condition", "if_then",
		"if_then_else", "loop", "while", "do_while", "switch",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "kind?"
}

// Connective discriminates && from || in a KindCompoundCondition.
type Connective int

const (
	And Connective = iota
	Or
)

// CaseArm is one arm of a KindSwitch region: the case values it's reached
// by (an index into the original jump table, since the IR's jump-table
// entries carry only resolved addresses) and the region they dispatch to.
type CaseArm struct {
	Values []int
	Target *Node
}

// Node is one region. Which fields are meaningful depends on Kind; see the
// Kind constants for the mapping.
type Node struct {
	Kind  Kind
	Block *ir.BasicBlock // KindBasic

	Seq      []*Node // KindBlock
	Children []*Node // KindUnknown

	Connective  Connective // KindCompoundCondition
	Left, Right *Node      // KindCompoundCondition

	Cond, Body, Else *Node // KindIfThen (Cond,Body), KindIfThenElse (+Else),
	// KindWhile (Cond,Body), KindDoWhile (Body,Cond; Else unused)
	// Negated reports whether Cond's sense must be inverted when emitting
	// (the structural match took the false arm as the kept branch).
	Negated bool

	BoundsCheck *Node // KindSwitch
	Dispatch    *Node // KindSwitch
	Cases       []CaseArm
	Default     *Node

	// Outgoing CFG edges among still-active top-level nodes. A
	// conditional exit uses True/False; an unconditional exit uses Next;
	// a table exit (KindBasic only, from a jump carrying a dispatch
	// table) uses Table.
	Conditional bool
	True, False *Node
	Next        *Node
	Table       []CaseArm
}

// successors returns every distinct active node n exits to.
func (n *Node) successors() []*Node {
	var out []*Node
	add := func(s *Node) {
		if s == nil {
			return
		}
		for _, o := range out {
			if o == s {
				return
			}
		}
		out = append(out, s)
	}
	if n.Conditional {
		add(n.True)
		add(n.False)
	} else {
		add(n.Next)
	}
	for _, c := range n.Table {
		add(c.Target)
	}
	return out
}

// Graph is a function's region graph: a mutable set of active top-level
// nodes, reduced in place by Reduce.
type Graph struct {
	Entry *Node
	nodes map[*Node]bool
	preds map[*Node][]*Node
}

// Build constructs the initial all-basic-block graph for fn.
func Build(fn *ir.Function) *Graph {
	nodeFor := make(map[*ir.BasicBlock]*Node, len(fn.Blocks()))
	for _, b := range fn.Blocks() {
		nodeFor[b] = &Node{Kind: KindBasic, Block: b}
	}

	g := &Graph{nodes: make(map[*Node]bool, len(fn.Blocks()))}
	for _, b := range fn.Blocks() {
		n := nodeFor[b]
		g.nodes[n] = true
		j, ok := b.Last().(*ir.Jump)
		if !ok {
			continue
		}
		if j.IsConditional() {
			n.Conditional = true
			n.True = blockNode(j.Then, nodeFor)
			n.False = blockNode(j.Else, nodeFor)
			continue
		}
		if j.Then.Kind == ir.TargetTable {
			for i, e := range j.Then.Table {
				if e.Block == nil {
					continue
				}
				n.Table = append(n.Table, CaseArm{Values: []int{i}, Target: nodeFor[e.Block]})
			}
			continue
		}
		n.Next = blockNode(j.Then, nodeFor)
	}

	g.Entry = nodeFor[fn.Entry]
	g.recomputePreds()
	return g
}

func blockNode(t ir.JumpTarget, nodeFor map[*ir.BasicBlock]*Node) *Node {
	if t.Kind != ir.TargetBlock || t.Block == nil {
		return nil
	}
	return nodeFor[t.Block]
}

func (g *Graph) recomputePreds() {
	g.preds = make(map[*Node][]*Node, len(g.nodes))
	for n := range g.nodes {
		for _, s := range n.successors() {
			g.preds[s] = append(g.preds[s], n)
		}
	}
}

// redirect rewrites every active node's outgoing edges that point at from
// so they point at to instead.
func (g *Graph) redirect(from, to *Node) {
	for n := range g.nodes {
		if n.True == from {
			n.True = to
		}
		if n.False == from {
			n.False = to
		}
		if n.Next == from {
			n.Next = to
		}
		for i, c := range n.Table {
			if c.Target == from {
				n.Table[i].Target = to
			}
		}
	}
}

// replace removes the nodes in merged from the active set and installs
// replacement (whose own outgoing-edge fields the caller must already have
// set correctly — the discarded internal edges among merged nodes differ
// per pattern, e.g. a loop's back edge is dropped rather than kept), then
// rewrites every other active node's edges into any of merged to point at
// replacement instead.
func (g *Graph) replace(merged []*Node, replacement *Node) {
	for _, m := range merged {
		delete(g.nodes, m)
		if g.Entry == m {
			g.Entry = replacement
		}
		g.redirect(m, replacement)
	}
	g.nodes[replacement] = true
	g.recomputePreds()
}

// Nodes returns every currently active top-level node.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Preds returns n's active predecessors.
func (g *Graph) Preds(n *Node) []*Node { return g.preds[n] }

// Active reports whether n is still a top-level node in the graph.
func (g *Graph) Active(n *Node) bool { return g.nodes[n] }

// Len reports the number of active top-level nodes.
func (g *Graph) Len() int { return len(g.nodes) }
