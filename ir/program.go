package ir

import (
	"sort"

	"github.com/mewmew/nc/bin"
)

// Program owns the global block list and two indices over it: a
// starting-address index and a half-open-range index keyed by a
// "ToTheLeft" ordering, `[a,b) < [c,d)` iff `b <= c && [a,b) != [c,d)`, so
// that LookupCovering(x) finds the unique block whose range contains byte
// x. A third set records addresses observed as call targets, consumed by
// the function partitioner (§4.3) and the program builder's call-aware
// splitting (§4.2).
type Program struct {
	blocks []*BasicBlock

	byAddr map[bin.Addr]*BasicBlock
	// ranged holds memory-bound blocks sorted by EntryAddr; it backs
	// LookupCovering via binary search over the ToTheLeft order described
	// above.
	ranged []*BasicBlock

	calledAddrs map[bin.Addr]bool
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{
		byAddr:      make(map[bin.Addr]*BasicBlock),
		calledAddrs: make(map[bin.Addr]bool),
	}
}

// Blocks returns every block owned by the program, in insertion order.
func (p *Program) Blocks() []*BasicBlock { return p.blocks }

// AddBlock adds block to the program's global list and indices.
func (p *Program) AddBlock(block *BasicBlock) {
	p.blocks = append(p.blocks, block)
	p.Reindex(block)
}

// RemoveBlock removes block from the program's indices and global list.
func (p *Program) RemoveBlock(block *BasicBlock) {
	if block.EntryAddr != nil {
		if p.byAddr[*block.EntryAddr] == block {
			delete(p.byAddr, *block.EntryAddr)
		}
	}
	p.removeFromRanged(block)
	for i, b := range p.blocks {
		if b == block {
			p.blocks = append(p.blocks[:i], p.blocks[i+1:]...)
			break
		}
	}
}

func (p *Program) removeFromRanged(block *BasicBlock) {
	for i, b := range p.ranged {
		if b == block {
			p.ranged = append(p.ranged[:i], p.ranged[i+1:]...)
			return
		}
	}
}

// Reindex refreshes the program's indices for block after its address
// and/or successor address have changed. Per the invariant in spec.md §3, a
// block appears in the range index iff it is memory-bound.
func (p *Program) Reindex(block *BasicBlock) {
	p.removeFromRanged(block)
	if block.EntryAddr != nil {
		p.byAddr[*block.EntryAddr] = block
	}
	if block.IsMemoryBound() {
		i := sort.Search(len(p.ranged), func(i int) bool {
			return *p.ranged[i].EntryAddr >= *block.EntryAddr
		})
		p.ranged = append(p.ranged, nil)
		copy(p.ranged[i+1:], p.ranged[i:])
		p.ranged[i] = block
	}
}

// BlockAt returns the block starting exactly at addr, if any.
func (p *Program) BlockAt(addr bin.Addr) (*BasicBlock, bool) {
	b, ok := p.byAddr[addr]
	return b, ok
}

// LookupCovering returns the unique memory-bound block whose half-open
// range [EntryAddr, SuccessorAddr) contains x.
func (p *Program) LookupCovering(x bin.Addr) (*BasicBlock, bool) {
	// Find the rightmost block with EntryAddr <= x.
	i := sort.Search(len(p.ranged), func(i int) bool {
		return *p.ranged[i].EntryAddr > x
	})
	if i == 0 {
		return nil, false
	}
	b := p.ranged[i-1]
	if *b.EntryAddr <= x && x < *b.SuccessorAddr {
		return b, true
	}
	return nil, false
}

// AddCalledAddress records addr as having been observed as a call target.
func (p *Program) AddCalledAddress(addr bin.Addr) {
	p.calledAddrs[addr] = true
}

// IsCalledAddress reports whether addr has been observed as a call target.
func (p *Program) IsCalledAddress(addr bin.Addr) bool {
	return p.calledAddrs[addr]
}

// CalledAddresses returns every address observed as a call target, sorted
// ascending.
func (p *Program) CalledAddresses() []bin.Addr {
	addrs := make(bin.Addrs, 0, len(p.calledAddrs))
	for a := range p.calledAddrs {
		addrs = append(addrs, a)
	}
	sort.Sort(addrs)
	return addrs
}
