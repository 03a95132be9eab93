package region

// Reduce repeatedly applies pattern matches in priority order — conditions,
// then sequences, then loops, then switches — until no pattern applies
// (spec.md §4.8). Any leftover top-level nodes are wrapped into a single
// KindUnknown root, to be emitted with explicit gotos.
func Reduce(g *Graph) *Node {
	for g.Len() > 1 {
		if tryConditions(g) {
			continue
		}
		if trySequences(g) {
			continue
		}
		if tryLoops(g) {
			continue
		}
		if trySwitches(g) {
			continue
		}
		break
	}
	if g.Len() > 1 {
		collapseUnknown(g)
	}
	return g.Entry
}

// tryConditions looks for one compound-condition, if-then-else or if-then
// match and applies it, in that priority order (spec.md §4.8: "conditions
// first").
func tryConditions(g *Graph) bool {
	for _, n := range g.Nodes() {
		if tryCompoundCondition(g, n) {
			return true
		}
	}
	for _, n := range g.Nodes() {
		if tryIfThenElse(g, n) {
			return true
		}
	}
	for _, n := range g.Nodes() {
		if tryIfThen(g, n) {
			return true
		}
	}
	return false
}

func singlePred(g *Graph, n, only *Node) bool {
	preds := g.Preds(n)
	if len(preds) != 1 {
		return false
	}
	return preds[0] == only
}

// tryCompoundCondition recognizes a && b and a || b (spec.md §4.8): a's
// branch into b is single-pred (b belongs only to this condition), and b's
// other branch rejoins a's other branch at a shared exit.
func tryCompoundCondition(g *Graph, a *Node) bool {
	if !a.Conditional {
		return false
	}
	// a.True -> b, b.False -> a.False (shared exit via b's else): AND.
	if b := a.True; b != nil && b != a && b.Conditional && singlePred(g, b, a) && b.False == a.False {
		merge := &Node{Kind: KindCompoundCondition, Connective: And, Left: a, Right: b,
			Conditional: true, True: b.True, False: a.False}
		g.replace([]*Node{a, b}, merge)
		return true
	}
	// a.False -> b, b.True -> a.True (shared exit via b's then): OR.
	if b := a.False; b != nil && b != a && b.Conditional && singlePred(g, b, a) && b.True == a.True {
		merge := &Node{Kind: KindCompoundCondition, Connective: Or, Left: a, Right: b,
			Conditional: true, True: a.True, False: b.False}
		g.replace([]*Node{a, b}, merge)
		return true
	}
	return false
}

// tryIfThenElse recognizes if (cond) then-body else else-body, where both
// arms are single-pred and rejoin at the same node (spec.md §4.8).
func tryIfThenElse(g *Graph, a *Node) bool {
	if !a.Conditional {
		return false
	}
	t, e := a.True, a.False
	if t == nil || e == nil || t == a || e == a || t == e {
		return false
	}
	if t.Conditional || e.Conditional {
		return false
	}
	if !singlePred(g, t, a) || !singlePred(g, e, a) {
		return false
	}
	if t.Next == nil || t.Next != e.Next {
		return false
	}
	join := t.Next
	merge := &Node{Kind: KindIfThenElse, Cond: a, Body: t, Else: e, Next: join}
	g.replace([]*Node{a, t, e}, merge)
	return true
}

// tryIfThen recognizes if (cond) body, where the taken arm is single-pred
// and rejoins directly at the other arm (spec.md §4.8).
func tryIfThen(g *Graph, a *Node) bool {
	if !a.Conditional {
		return false
	}
	try := func(body, join *Node, negated bool) bool {
		if body == nil || join == nil || body == a || body == join {
			return false
		}
		if body.Conditional || !singlePred(g, body, a) {
			return false
		}
		if body.Next != join {
			return false
		}
		merge := &Node{Kind: KindIfThen, Cond: a, Body: body, Negated: negated, Next: join}
		g.replace([]*Node{a, body}, merge)
		return true
	}
	if try(a.True, a.False, false) {
		return true
	}
	return try(a.False, a.True, true)
}

// trySequences merges an unconditional node into its single-pred successor
// (spec.md §4.8's BLOCK region: "straight-line sequence").
func trySequences(g *Graph) bool {
	for _, a := range g.Nodes() {
		if a.Conditional || a.Next == nil || len(a.Table) != 0 {
			continue
		}
		b := a.Next
		if b == a || !singlePred(g, b, a) {
			continue
		}
		var seq []*Node
		if a.Kind == KindBlock {
			seq = append(seq, a.Seq...)
		} else {
			seq = append(seq, a)
		}
		if b.Kind == KindBlock {
			seq = append(seq, b.Seq...)
		} else {
			seq = append(seq, b)
		}
		merge := &Node{
			Kind: KindBlock, Seq: seq,
			Conditional: b.Conditional, True: b.True, False: b.False, Next: b.Next, Table: b.Table,
		}
		g.replace([]*Node{a, b}, merge)
		return true
	}
	return false
}

// tryLoops looks for one while, do-while or single-node endless-loop match
// and applies it, in that priority order.
func tryLoops(g *Graph) bool {
	for _, n := range g.Nodes() {
		if tryWhile(g, n) {
			return true
		}
	}
	for _, n := range g.Nodes() {
		if tryDoWhile(g, n) {
			return true
		}
	}
	for _, n := range g.Nodes() {
		if tryLoop(g, n) {
			return true
		}
	}
	return false
}

// tryWhile recognizes a pre-tested loop: header a is conditional, one arm
// is a single-pred, unconditional body whose only exit is back to a, the
// other arm exits the loop (spec.md §4.8's WHILE).
func tryWhile(g *Graph, a *Node) bool {
	if !a.Conditional {
		return false
	}
	try := func(body, exit *Node, negated bool) bool {
		if body == nil || body == a {
			return false
		}
		if body.Conditional || len(body.Table) != 0 || !singlePred(g, body, a) {
			return false
		}
		if body.Next != a {
			return false
		}
		merge := &Node{Kind: KindWhile, Cond: a, Body: body, Negated: negated, Next: exit}
		g.replace([]*Node{a, body}, merge)
		return true
	}
	if try(a.True, a.False, false) {
		return true
	}
	return try(a.False, a.True, true)
}

// tryDoWhile recognizes a post-tested loop: an unconditional body whose
// sole exit is a conditional test node, one of whose arms loops back to
// the body and the other exits (spec.md §4.8's DO_WHILE).
func tryDoWhile(g *Graph, body *Node) bool {
	if body.Conditional || body.Next == nil || len(body.Table) != 0 {
		return false
	}
	test := body.Next
	if test == body || !test.Conditional {
		return false
	}
	if !singlePred(g, test, body) {
		return false
	}
	var exit *Node
	negated := false
	switch {
	case test.True == body:
		exit = test.False
	case test.False == body:
		exit = test.True
		negated = true
	default:
		return false
	}
	merge := &Node{Kind: KindDoWhile, Body: body, Cond: test, Negated: negated, Next: exit}
	g.replace([]*Node{body, test}, merge)
	return true
}

// tryLoop recognizes the degenerate endless loop: a single unconditional
// node whose sole exit targets itself, with no recognized test (spec.md
// §4.8's LOOP). Multi-block endless loops with no break fall through to
// collapseUnknown; recognizing those would require tracking strongly
// connected components, which this analyzer does not attempt.
func tryLoop(g *Graph, n *Node) bool {
	if n.Conditional || n.Next != n {
		return false
	}
	merge := &Node{Kind: KindLoop, Body: n}
	g.replace([]*Node{n}, merge)
	return true
}

// trySwitches recognizes a bounds-checked jump-table dispatch (spec.md
// §4.8's SWITCH): a conditional node a bounds-checks an index, one arm
// leading to a single-pred unconditional node whose exit is a jump table,
// the other arm (if any) falling through to a default case.
func trySwitches(g *Graph) bool {
	for _, a := range g.Nodes() {
		if !a.Conditional {
			continue
		}
		try := func(disp, def *Node) bool {
			if disp == nil || disp == a || len(disp.Table) == 0 {
				return false
			}
			if disp.Conditional || !singlePred(g, disp, a) {
				return false
			}
			cases := mergeCaseArms(disp.Table)
			merge := &Node{
				Kind: KindSwitch, BoundsCheck: a, Dispatch: disp,
				Cases: cases, Default: def, Table: switchTable(cases, def),
			}
			merged := []*Node{a, disp}
			g.replace(merged, merge)
			return true
		}
		if try(a.True, a.False) {
			return true
		}
		if try(a.False, a.True) {
			return true
		}
	}
	return false
}

// mergeCaseArms groups a dispatch node's per-entry table (one index per
// entry) into one arm per distinct target, so that case labels sharing a
// body are emitted together.
func mergeCaseArms(table []CaseArm) []CaseArm {
	var cases []CaseArm
	for _, e := range table {
		found := false
		for i := range cases {
			if cases[i].Target == e.Target {
				cases[i].Values = append(cases[i].Values, e.Values...)
				found = true
				break
			}
		}
		if !found {
			cases = append(cases, CaseArm{Values: append([]int(nil), e.Values...), Target: e.Target})
		}
	}
	return cases
}

// switchTable returns the merged switch's outgoing edges, for successors
// and edge-redirection bookkeeping: every case target plus the default
// arm, if present.
func switchTable(cases []CaseArm, def *Node) []CaseArm {
	out := append([]CaseArm(nil), cases...)
	if def != nil {
		out = append(out, CaseArm{Target: def})
	}
	return out
}

// collapseUnknown wraps every remaining active node into one KindUnknown
// root, ordered by a deterministic DFS preorder from the entry (spec.md
// §4.8: "un-reducible leftovers remain in UNKNOWN regions").
func collapseUnknown(g *Graph) {
	order := dfsOrder(g)
	merge := &Node{Kind: KindUnknown, Children: order}
	g.replace(order, merge)
}

func dfsOrder(g *Graph) []*Node {
	var order []*Node
	visited := make(map[*Node]bool)
	var visit func(*Node)
	visit = func(n *Node) {
		if n == nil || visited[n] || !g.Active(n) {
			return
		}
		visited[n] = true
		order = append(order, n)
		for _, s := range n.successors() {
			visit(s)
		}
	}
	visit(g.Entry)
	for _, n := range g.Nodes() {
		visit(n)
	}
	return order
}
