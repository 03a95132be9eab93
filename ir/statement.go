package ir

import (
	"fmt"

	"github.com/mewmew/nc/bin"
)

// Statement is a single step of IR execution, owned by at most one basic
// block and owning the terms it references. Statements live in an intrusive
// ordered list within their block (spec.md §3).
type Statement interface {
	// Block returns the basic block this statement belongs to, or nil.
	Block() *BasicBlock
	// VisitChildTerms calls fn on each term this statement owns directly.
	VisitChildTerms(fn func(Term))
	// Clone deep-copies the statement and the terms it owns, but not its
	// block membership or list links.
	Clone() Statement
	// String returns a debug representation.
	String() string
	// InstructionAddr returns the address of the originating machine
	// instruction and true, or (0, false) for a synthetic statement (one
	// inserted by a hook, patch or architecture-specific rewrite).
	InstructionAddr() (bin.Addr, bool)
	// SetInstructionAddr records the originating instruction address. It
	// may be called at most once; a second call is an internal consistency
	// violation (spec.md §7) and panics.
	SetInstructionAddr(addr bin.Addr)

	setBlock(*BasicBlock)
	prevStmt() Statement
	nextStmt() Statement
	setPrevStmt(Statement)
	setNextStmt(Statement)
}

// stmtBase is embedded by every concrete statement; it implements block
// membership, the intrusive list links, and the originating-instruction
// back-pointer shared by all statements.
type stmtBase struct {
	block        *BasicBlock
	prev, next   Statement
	instrAddr    bin.Addr
	hasInstrAddr bool
}

func (s *stmtBase) Block() *BasicBlock { return s.block }
func (s *stmtBase) setBlock(b *BasicBlock) { s.block = b }
func (s *stmtBase) prevStmt() Statement     { return s.prev }
func (s *stmtBase) nextStmt() Statement     { return s.next }
func (s *stmtBase) setPrevStmt(p Statement) { s.prev = p }
func (s *stmtBase) setNextStmt(n Statement) { s.next = n }

func (s *stmtBase) InstructionAddr() (bin.Addr, bool) { return s.instrAddr, s.hasInstrAddr }

func (s *stmtBase) SetInstructionAddr(addr bin.Addr) {
	if s.hasInstrAddr {
		panic("ir: statement's originating instruction address already set")
	}
	s.instrAddr = addr
	s.hasInstrAddr = true
}

func cloneBase(b stmtBase) stmtBase {
	return stmtBase{instrAddr: b.instrAddr, hasInstrAddr: b.hasInstrAddr}
}

// InlineAssembly is an opaque fallback for an instruction the lifter could
// not translate (spec.md §7 "invalid instruction").
type InlineAssembly struct {
	stmtBase
	// Text is a human-readable rendering of the untranslated instruction,
	// for diagnostics and AST emission only; it carries no semantics.
	Text string
}

// NewInlineAssembly returns an opaque placeholder statement for text.
func NewInlineAssembly(text string) *InlineAssembly {
	return &InlineAssembly{Text: text}
}

func (s *InlineAssembly) VisitChildTerms(fn func(Term)) {}
func (s *InlineAssembly) String() string                { return fmt.Sprintf("asm { %s }", s.Text) }
func (s *InlineAssembly) Clone() Statement {
	c := &InlineAssembly{stmtBase: cloneBase(s.stmtBase), Text: s.Text}
	return c
}

// Assignment writes the value of Right into the memory named by Left.
// Left and Right must share a bit size (spec.md §8).
type Assignment struct {
	stmtBase
	Left, Right Term
}

// NewAssignment returns an assignment statement and attaches its terms.
func NewAssignment(left, right Term) *Assignment {
	if left.Size() != right.Size() {
		panic(fmt.Sprintf("ir: assignment size mismatch: left=%d right=%d", left.Size(), right.Size()))
	}
	a := &Assignment{Left: left, Right: right}
	attachChildren(left, a, RoleWrite)
	attachChildren(right, a, RoleRead)
	return a
}

func (s *Assignment) VisitChildTerms(fn func(Term)) { fn(s.Left); fn(s.Right) }
func (s *Assignment) String() string                { return fmt.Sprintf("%v := %v", s.Left, s.Right) }
func (s *Assignment) Clone() Statement {
	c := &Assignment{stmtBase: cloneBase(s.stmtBase)}
	c.Left = CloneTerm(s.Left)
	c.Right = CloneTerm(s.Right)
	attachChildren(c.Left, c, RoleWrite)
	attachChildren(c.Right, c, RoleRead)
	return c
}

// Touch consumes Value purely for its effect on analyses: a READ records a
// use, a WRITE installs a definition, a KILL invalidates reaching
// definitions of Value's location without reading or defining a value.
type Touch struct {
	stmtBase
	Value Term
}

// NewTouch returns a touch statement with the given access role.
func NewTouch(value Term, role AccessRole) *Touch {
	t := &Touch{Value: value}
	attachChildren(value, t, role)
	return t
}

func (s *Touch) VisitChildTerms(fn func(Term)) { fn(s.Value) }
func (s *Touch) String() string                { return fmt.Sprintf("touch(%v, %v)", s.Value.Role(), s.Value) }
func (s *Touch) Clone() Statement {
	c := &Touch{stmtBase: cloneBase(s.stmtBase)}
	c.Value = CloneTerm(s.Value)
	attachChildren(c.Value, c, s.Value.Role())
	return c
}

// Call invokes the function addressed by Target. Target is read.
type Call struct {
	stmtBase
	Target Term
}

// NewCall returns a call statement targeting target.
func NewCall(target Term) *Call {
	c := &Call{Target: target}
	attachChildren(target, c, RoleRead)
	return c
}

func (s *Call) VisitChildTerms(fn func(Term)) { fn(s.Target) }
func (s *Call) String() string                { return fmt.Sprintf("call %v", s.Target) }
func (s *Call) Clone() Statement {
	c := &Call{stmtBase: cloneBase(s.stmtBase)}
	c.Target = CloneTerm(s.Target)
	attachChildren(c.Target, c, RoleRead)
	return c
}

// Halt terminates execution of the enclosing function (e.g. a trap or a
// provably-unreachable tail).
type Halt struct {
	stmtBase
}

// NewHalt returns a halt statement.
func NewHalt() *Halt { return &Halt{} }

func (s *Halt) VisitChildTerms(fn func(Term)) {}
func (s *Halt) String() string                { return "halt" }
func (s *Halt) Clone() Statement              { return &Halt{stmtBase: cloneBase(s.stmtBase)} }

// Jump transfers control to Then, or (if Condition is non-nil) to Else when
// Condition evaluates to zero. An unconditional jump has Condition == nil
// and a zero-value Else.
type Jump struct {
	stmtBase
	Condition  Term
	Then, Else JumpTarget
}

// NewJump returns an unconditional jump to target.
func NewJump(target JumpTarget) *Jump {
	return &Jump{Then: target}
}

// NewCondJump returns a conditional jump: to then if cond is non-zero, to
// els otherwise.
func NewCondJump(cond Term, then, els JumpTarget) *Jump {
	j := &Jump{Condition: cond, Then: then, Else: els}
	attachChildren(cond, j, RoleRead)
	return j
}

// IsConditional reports whether the jump carries a condition.
func (s *Jump) IsConditional() bool { return s.Condition != nil }

func (s *Jump) VisitChildTerms(fn func(Term)) {
	if s.Condition != nil {
		fn(s.Condition)
	}
	s.Then.visitTerms(fn)
	s.Else.visitTerms(fn)
}

func (s *Jump) String() string {
	if s.IsConditional() {
		return fmt.Sprintf("if %v then %v else %v", s.Condition, s.Then, s.Else)
	}
	return fmt.Sprintf("jmp %v", s.Then)
}

func (s *Jump) Clone() Statement {
	c := &Jump{stmtBase: cloneBase(s.stmtBase), Then: s.Then, Else: s.Else}
	if s.Condition != nil {
		c.Condition = CloneTerm(s.Condition)
		attachChildren(c.Condition, c, RoleRead)
	}
	if s.Then.Kind == TargetAddress && s.Then.Address != nil {
		c.Then.Address = CloneTerm(s.Then.Address)
	}
	if s.Else.Kind == TargetAddress && s.Else.Address != nil {
		c.Else.Address = CloneTerm(s.Else.Address)
	}
	return c
}

// RememberReachingDefs is a snapshot marker: the dataflow analyzer
// associates the pre-state reaching this statement with its identity, for
// later consumption by signature analysis (§4.6).
type RememberReachingDefs struct {
	stmtBase
}

// NewRememberReachingDefs returns a snapshot-marker statement.
func NewRememberReachingDefs() *RememberReachingDefs { return &RememberReachingDefs{} }

func (s *RememberReachingDefs) VisitChildTerms(fn func(Term)) {}
func (s *RememberReachingDefs) String() string                { return "remember-reaching-defs" }
func (s *RememberReachingDefs) Clone() Statement {
	return &RememberReachingDefs{stmtBase: cloneBase(s.stmtBase)}
}

// Callback indexes into the enclosing function's callback registry
// (spec.md §9): the dataflow analyzer invokes the registered closure when it
// reaches this statement, which may insert or remove a hook patch and
// request re-traversal. Modeling callbacks as a registry index instead of an
// embedded closure keeps the IR itself plain data (cloneable, comparable).
type Callback struct {
	stmtBase
	ID CallbackID
}

// NewCallback returns a callback statement referencing id.
func NewCallback(id CallbackID) *Callback { return &Callback{ID: id} }

func (s *Callback) VisitChildTerms(fn func(Term)) {}
func (s *Callback) String() string                { return fmt.Sprintf("callback(%d)", s.ID) }
func (s *Callback) Clone() Statement {
	return &Callback{stmtBase: cloneBase(s.stmtBase), ID: s.ID}
}

// CallbackID indexes into a per-function callback registry.
type CallbackID int
