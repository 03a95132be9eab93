// Package dataflow implements the per-function fixpoint dataflow analyzer
// (spec.md §4.5): reaching definitions and abstract values over the IR,
// plus the callback-driven re-instrumentation hook the calling-convention
// package relies on.
package dataflow

import (
	"strings"

	"github.com/mewmew/nc/bin"
)

// Bit is a three-state value: known zero, known one, or top (unknown).
type Bit int8

const (
	BitZero Bit = iota
	BitOne
	BitTop
)

func (b Bit) meet(other Bit) Bit {
	if b == other {
		return b
	}
	return BitTop
}

func (b Bit) String() string {
	switch b {
	case BitZero:
		return "0"
	case BitOne:
		return "1"
	default:
		return "T"
	}
}

// AbstractValue is the per-bit tri-valued lattice element tracked by
// dataflow, plus a scalar "stack offset" component: an integer when the
// value is known to be the stack pointer plus a constant offset, nil
// otherwise.
type AbstractValue struct {
	Bits        []Bit
	StackOffset *int64
}

// Top returns the maximally unknown value of the given bit size.
func Top(size bin.BitSize) AbstractValue {
	bits := make([]Bit, size)
	for i := range bits {
		bits[i] = BitTop
	}
	return AbstractValue{Bits: bits}
}

// FromConstant returns the abstract value corresponding to the concrete
// constant value, truncated to size bits.
func FromConstant(value uint64, size bin.BitSize) AbstractValue {
	bits := make([]Bit, size)
	for i := range bits {
		if value&(1<<uint(i)) != 0 {
			bits[i] = BitOne
		} else {
			bits[i] = BitZero
		}
	}
	return AbstractValue{Bits: bits}
}

// StackOffsetValue returns the abstract value representing an unknown bit
// pattern but a known stack offset (used for the stack pointer after an
// entry hook or a call's cleanup adjustment).
func StackOffsetValue(offset int64, size bin.BitSize) AbstractValue {
	v := Top(size)
	o := offset
	v.StackOffset = &o
	return v
}

// Size returns the bit width of v.
func (v AbstractValue) Size() bin.BitSize { return bin.BitSize(len(v.Bits)) }

// IsConcrete reports whether every bit of v is known.
func (v AbstractValue) IsConcrete() bool {
	for _, b := range v.Bits {
		if b == BitTop {
			return false
		}
	}
	return true
}

// ConcreteValue returns v's value and true if v is concrete.
func (v AbstractValue) ConcreteValue() (uint64, bool) {
	if !v.IsConcrete() {
		return 0, false
	}
	var x uint64
	for i, b := range v.Bits {
		if b == BitOne {
			x |= 1 << uint(i)
		}
	}
	return x, true
}

// Meet computes the pointwise three-valued meet of v and other, plus an
// either-agrees meet of the stack-offset component: known and equal stays
// known, anything else becomes "not a stack offset".
func (v AbstractValue) Meet(other AbstractValue) AbstractValue {
	n := len(v.Bits)
	if len(other.Bits) > n {
		n = len(other.Bits)
	}
	bits := make([]Bit, n)
	for i := 0; i < n; i++ {
		a, b := BitTop, BitTop
		if i < len(v.Bits) {
			a = v.Bits[i]
		}
		if i < len(other.Bits) {
			b = other.Bits[i]
		}
		bits[i] = a.meet(b)
	}
	var stackOffset *int64
	if v.StackOffset != nil && other.StackOffset != nil && *v.StackOffset == *other.StackOffset {
		o := *v.StackOffset
		stackOffset = &o
	}
	return AbstractValue{Bits: bits, StackOffset: stackOffset}
}

// Equal reports whether v and other carry the same bits and stack-offset
// component (used to detect fixpoint convergence).
func (v AbstractValue) Equal(other AbstractValue) bool {
	if len(v.Bits) != len(other.Bits) {
		return false
	}
	for i := range v.Bits {
		if v.Bits[i] != other.Bits[i] {
			return false
		}
	}
	switch {
	case v.StackOffset == nil && other.StackOffset == nil:
		return true
	case v.StackOffset == nil || other.StackOffset == nil:
		return false
	default:
		return *v.StackOffset == *other.StackOffset
	}
}

func (v AbstractValue) String() string {
	var sb strings.Builder
	for i := len(v.Bits) - 1; i >= 0; i-- {
		sb.WriteString(v.Bits[i].String())
	}
	if v.StackOffset != nil {
		sb.WriteString(" sp+")
		sb.WriteString(itoa(*v.StackOffset))
	}
	return sb.String()
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [32]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
