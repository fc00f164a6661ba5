package vm

import (
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// maxStackDepth bounds the operand stack; beyond it, overflow is fatal
// (§4.3.1: "Overflow expands a backing array" describes growth, but the
// array itself is capped to keep a runaway push loop from exhausting
// memory instead of producing a diagnosable FatalVm).
const maxStackDepth = 1 << 20

// OperandStack is the untyped 32-bit cell stack of §4.3.1.
type OperandStack struct {
	cells []value.Value
}

// Push pushes v, expanding the backing array as needed.
func (s *OperandStack) Push(v value.Value) {
	if len(s.cells) >= maxStackDepth {
		panic(vmerr.NewFatal("stack-push", 0, nil, vmerr.ErrStackOverflow))
	}
	s.cells = append(s.cells, v)
}

// Pop removes and returns the top cell; underflow is fatal.
func (s *OperandStack) Pop() value.Value {
	n := len(s.cells)
	if n == 0 {
		panic(vmerr.NewFatal("stack-pop", 0, nil, vmerr.ErrStackUnderflow))
	}
	v := s.cells[n-1]
	s.cells = s.cells[:n-1]
	return v
}

// PopN removes and returns the top n cells in push order (cells[0] was
// pushed first).
func (s *OperandStack) PopN(n int) []value.Value {
	if len(s.cells) < n {
		panic(vmerr.NewFatal("stack-pop", 0, nil, vmerr.ErrStackUnderflow))
	}
	out := make([]value.Value, n)
	copy(out, s.cells[len(s.cells)-n:])
	s.cells = s.cells[:len(s.cells)-n]
	return out
}

// Peek returns the cell n deep from the top (0 is the top itself)
// without popping it.
func (s *OperandStack) Peek(n int) value.Value {
	idx := len(s.cells) - 1 - n
	if idx < 0 {
		panic(vmerr.NewFatal("stack-peek", 0, nil, vmerr.ErrStackUnderflow))
	}
	return s.cells[idx]
}

// Set overwrites the cell n deep from the top.
func (s *OperandStack) Set(n int, v value.Value) {
	idx := len(s.cells) - 1 - n
	if idx < 0 {
		panic(vmerr.NewFatal("stack-set", 0, nil, vmerr.ErrStackUnderflow))
	}
	s.cells[idx] = v
}

// Len reports the current depth.
func (s *OperandStack) Len() int { return len(s.cells) }

// Raw exports the stack contents bottom-to-top as plain int32 cells, for
// a resume snapshot (§6).
func (s *OperandStack) Raw() []int32 {
	out := make([]int32, len(s.cells))
	for i, c := range s.cells {
		out[i] = c.Int()
	}
	return out
}

// SetRaw replaces the stack contents from a resume snapshot's flat
// int32 array, bottom-to-top.
func (s *OperandStack) SetRaw(cells []int32) {
	s.cells = make([]value.Value, len(cells))
	for i, c := range cells {
		s.cells[i] = value.Value(c)
	}
}

// PopRef pops a reference pair per §4.3.1's pop_var helper, inner pushed
// last (on top).
func (s *OperandStack) PopRef() value.Ref {
	inner := s.Pop()
	outer := s.Pop()
	return value.Ref{Outer: outer, Inner: inner}
}

// PushRef pushes a reference pair, outer first so inner ends on top.
func (s *OperandStack) PushRef(r value.Ref) {
	s.Push(r.Outer)
	s.Push(r.Inner)
}
