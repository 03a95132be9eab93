// Package variable implements variable recovery (spec.md §4.7): partitioning
// every memory-location-bearing term into the variable it belongs to, via
// union-find keyed by memory location.
package variable

import (
	"github.com/mewmew/nc/dataflow"
	"github.com/mewmew/nc/ir"
)

// Variable is a recovered storage unit: a merged memory location, the
// function it belongs to (nil for a global re-keyed by address across
// functions), and every term aliased to it.
type Variable struct {
	Location ir.MemoryLocation
	Func     *ir.Function
	Terms    []ir.Term
}

// node is one union-find entry, keyed by the memory location it was first
// seen at.
type node struct {
	parent *node
	v      *Variable
}

func (n *node) find() *node {
	for n.parent != n {
		n.parent.parent = n.parent.parent.parent // path halving
		n = n.parent
	}
	return n
}

// Recover partitions every term in fn's dataflow result carrying a known
// memory location into variables. Two terms are unioned iff their
// locations overlap (spec.md §4.7): global-memory-domain locations are
// keyed by address across functions via global, which is shared across
// every call to Recover for the same program.
func Recover(fn *ir.Function, result *dataflow.Result, global *Index) []*Variable {
	idx := newLocalIndex(fn, global)
	for t, loc := range result.Locations {
		idx.add(t, loc)
	}
	return idx.variables()
}

// Index tracks the global-memory variables shared across every function's
// recovery pass, keyed by address (spec.md §4.7: "Global-memory variables
// are distinguished by domain and re-keyed across functions via address").
type Index struct {
	nodes []*node
}

// NewIndex returns an empty shared global-memory index.
func NewIndex() *Index { return &Index{} }

// union merges b's set into a's, keeping a as the representative.
func union(a, b *node) *node {
	if a == b {
		return a
	}
	a.v.Terms = append(a.v.Terms, b.v.Terms...)
	a.v.Location = a.v.Location.Merge(b.v.Location)
	b.parent = a
	return a
}

// merge finds every existing root overlapping loc, unions them together,
// creates a fresh singleton root if none matched, and returns the result
// with loc folded into its merged location.
func merge(nodes *[]*node, loc ir.MemoryLocation, fn *ir.Function) *node {
	var matched *node
	for _, n := range *nodes {
		root := n.find()
		if root.v.Location.Overlaps(loc) {
			if matched == nil {
				matched = root
			} else {
				matched = union(matched, root)
			}
		}
	}
	if matched == nil {
		matched = &node{v: &Variable{Location: loc, Func: fn}}
		matched.parent = matched
		*nodes = append(*nodes, matched)
		return matched
	}
	matched.v.Location = matched.v.Location.Merge(loc)
	return matched
}

func (g *Index) nodeFor(loc ir.MemoryLocation) *node {
	return merge(&g.nodes, loc, nil)
}

type localIndex struct {
	fn          *ir.Function
	global      *Index
	nodes       []*node
	globalNodes []*node
}

func newLocalIndex(fn *ir.Function, global *Index) *localIndex {
	return &localIndex{fn: fn, global: global}
}

func (idx *localIndex) add(t ir.Term, loc ir.MemoryLocation) {
	if !loc.IsValid() {
		return
	}
	var n *node
	if loc.Domain == ir.DomainMemory {
		n = idx.global.nodeFor(loc)
		idx.globalNodes = append(idx.globalNodes, n)
	} else {
		n = merge(&idx.nodes, loc, idx.fn)
	}
	n.v.Terms = append(n.v.Terms, t)
}

// variables collects both this function's own locals and the global-memory
// variables it touched; the latter live in the shared Index's union-find
// forest, so they're deduped by root the same way locals are.
func (idx *localIndex) variables() []*Variable {
	seen := make(map[*node]bool)
	var out []*Variable
	collect := func(nodes []*node) {
		for _, n := range nodes {
			root := n.find()
			if seen[root] {
				continue
			}
			seen[root] = true
			out = append(out, root.v)
		}
	}
	collect(idx.nodes)
	collect(idx.globalNodes)
	return out
}
