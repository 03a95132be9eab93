package ir

import "github.com/mewmew/nc/bin"

// Function holds an entry block and the set of blocks it owns, plus the
// per-function callback registry backing Callback statements (spec.md §9).
// Registered callbacks are stored as opaque values; the dataflow analyzer
// and calling-convention package agree on the concrete closure type between
// themselves, keeping this package free of a dependency on either.
type Function struct {
	// Name is the function's display name: symbol name, address-derived,
	// or pointer-derived, assigned by the partitioner/orchestrator
	// (spec.md §4.10 step 2).
	Name string
	// Entry is the function's entry block.
	Entry *BasicBlock
	// EntryAddr is the function's declared entry address, which may be
	// advanced past Entry.EntryAddr when the partitioner elides leading
	// no-ops (spec.md §4.3).
	EntryAddr *bin.Addr

	blocks    []*BasicBlock
	blockSet  map[*BasicBlock]bool
	callbacks map[CallbackID]interface{}
	nextCBID  CallbackID
}

// NewFunction returns a new function with the given entry block. entry is
// added to the function's block list and its back-pointer is set.
func NewFunction(entry *BasicBlock) *Function {
	f := &Function{
		Entry:     entry,
		EntryAddr: entry.EntryAddr,
		blockSet:  make(map[*BasicBlock]bool),
	}
	f.AddBlock(entry)
	return f
}

// AddBlock adds block to the function's owned block list and sets its
// back-pointer. A block already owned by this function is not added twice.
func (f *Function) AddBlock(block *BasicBlock) {
	if f.blockSet[block] {
		return
	}
	if f.blockSet == nil {
		f.blockSet = make(map[*BasicBlock]bool)
	}
	block.fn = f
	f.blocks = append(f.blocks, block)
	f.blockSet[block] = true
}

// Blocks returns the function's blocks in the order they were added.
func (f *Function) Blocks() []*BasicBlock {
	return f.blocks
}

// IsEmpty reports whether the function holds no statement in any block.
func (f *Function) IsEmpty() bool {
	for _, b := range f.blocks {
		if b.Len() > 0 {
			return false
		}
	}
	return true
}

// RegisterCallback stores fn under a fresh CallbackID and returns it. fn's
// concrete type is a closure type owned by the dataflow/calling packages;
// this package only stores and retrieves it opaquely.
func (f *Function) RegisterCallback(fn interface{}) CallbackID {
	if f.callbacks == nil {
		f.callbacks = make(map[CallbackID]interface{})
	}
	id := f.nextCBID
	f.nextCBID++
	f.callbacks[id] = fn
	return id
}

// Callback returns the closure registered under id, or nil if none.
func (f *Function) Callback(id CallbackID) interface{} {
	return f.callbacks[id]
}

// ReplaceCallback overwrites the closure registered under id. Used by
// re-instrumentation (spec.md §4.4) to swap in a new hook-selection closure
// without changing the Callback statement's identity.
func (f *Function) ReplaceCallback(id CallbackID, fn interface{}) {
	if f.callbacks == nil {
		f.callbacks = make(map[CallbackID]interface{})
	}
	f.callbacks[id] = fn
}
