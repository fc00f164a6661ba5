// Package value implements the tagged 32-bit scalar that the interpreter
// pushes on the operand stack and stores in page slots. Representation is
// untyped: the interpreter knows from context (a function signature, a
// variable declaration, a page's kind) how to interpret a given word.
package value

import "math"

// Value is a single 32-bit storage cell. It holds, depending on context,
// a signed 32-bit integer, an IEEE-754 single-precision float, a boolean
// (0 or 1), or a heap slot index (for string/struct/array/delegate/
// reference values). -1 is the conventional "no slot" value.
type Value int32

// NoSlot is the conventional value of a reference/handle cell that does
// not refer to any heap slot.
const NoSlot Value = -1

// Int views v as a signed 32-bit integer.
func (v Value) Int() int32 { return int32(v) }

// IntFrom builds a Value from a signed 32-bit integer.
func IntFrom(i int32) Value { return Value(i) }

// Bool views v as a boolean: zero is false, anything else is true.
func (v Value) Bool() bool { return v != 0 }

// BoolFrom builds a Value from a boolean, per the 0/1 convention used by
// comparison opcodes.
func BoolFrom(b bool) Value {
	if b {
		return 1
	}
	return 0
}

// Float views v as an IEEE-754 single-precision float.
func (v Value) Float() float32 {
	return math.Float32frombits(uint32(v))
}

// FloatFrom builds a Value from a float32.
func FloatFrom(f float32) Value {
	return Value(math.Float32bits(f))
}

// Slot views v as a heap slot index.
func (v Value) Slot() int32 { return int32(v) }

// SlotFrom builds a Value from a heap slot index.
func SlotFrom(slot int32) Value { return Value(slot) }

// Long widens v to a 64-bit integer for the long-arithmetic family (§4.3.3);
// the interpreter always saturates the 64-bit result back into a Value
// before it is observable again (see vm.saturateLong).
func (v Value) Long() int64 { return int64(v) }

// Ref is the (outer_slot, inner_index) reference pair of §3.6: two Value
// cells that together address heap[outer].page.values[inner]. A
// reference to a reference is a pair of such pairs (four Values) — see
// vm's REFREF handling.
type Ref struct {
	Outer Value
	Inner Value
}
