package calling

import (
	"sync"

	"github.com/mewmew/nc/ir"
)

// FunctionSignature is a callee's formal argument list and optional return
// value, shared by reference between the callee and every call site that
// targets it (spec.md §3).
type FunctionSignature struct {
	Arguments   []ir.Term
	Variadic    bool
	ReturnValue ir.Term // nil if the function returns nothing recognized
}

// CallSignature is a single call site's view of a signature: the callee's
// formal arguments plus any call-specific extras, and the callee's return
// value term.
type CallSignature struct {
	Arguments   []ir.Term
	Extra       []ir.Term
	ReturnValue ir.Term
}

// Signatures is the shared, mutable map from callee id / call site to
// signature. Per spec.md §5, it follows a single-writer/many-reader
// discipline: read freely during per-function dataflow (step 5), written
// only during the single-threaded signature-analysis join (step 6).
type Signatures struct {
	mu       sync.RWMutex
	byCallee map[ir.CalleeID]*FunctionSignature
	byCall   map[ir.Statement]*CallSignature
	version  int
}

// NewSignatures returns an empty signature map.
func NewSignatures() *Signatures {
	return &Signatures{
		byCallee: make(map[ir.CalleeID]*FunctionSignature),
		byCall:   make(map[ir.Statement]*CallSignature),
	}
}

// FunctionSignature returns the signature known for id, if any.
func (s *Signatures) FunctionSignature(id ir.CalleeID) (*FunctionSignature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.byCallee[id]
	return sig, ok
}

// SetFunctionSignature records sig as the signature for id, bumping the
// version counter hook caches key off of.
func (s *Signatures) SetFunctionSignature(id ir.CalleeID, sig *FunctionSignature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCallee[id] = sig
	s.version++
}

// CallSignature returns the signature recorded for the given call
// statement, if any.
func (s *Signatures) CallSignature(call ir.Statement) (*CallSignature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.byCall[call]
	return sig, ok
}

// SetCallSignature records sig for the given call statement.
func (s *Signatures) SetCallSignature(call ir.Statement, sig *CallSignature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCall[call] = sig
	s.version++
}

// Version returns a counter bumped on every mutation, used by the hook
// cache to detect that a re-read of the signature snapshot is needed.
func (s *Signatures) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// CalleeIDs returns every callee id with a recorded signature.
func (s *Signatures) CalleeIDs() []ir.CalleeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ir.CalleeID, 0, len(s.byCallee))
	for id := range s.byCallee {
		ids = append(ids, id)
	}
	return ids
}
