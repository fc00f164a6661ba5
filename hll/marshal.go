package hll

import (
	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/value"
)

// Popper pops one Value off the operand stack, and PopRef pops a
// reference pair (§4.3.1's pop_var). The vm package supplies these as
// bound methods of its OperandStack so this package never needs to
// depend on vm (which depends on hll).
type Popper struct {
	Pop    func() value.Value
	PopRef func() value.Ref
}

// Marshal pops one argument per entry of argTypes, right-to-left per
// §4.5 ("values are popped right-to-left from the operand stack"): the
// last-declared argument was pushed last by the caller and so is popped
// first. The returned slice is in declaration order.
func Marshal(p Popper, h *heap.Heap, argTypes []ain.Type) []Arg {
	args := make([]Arg, len(argTypes))
	for i := len(argTypes) - 1; i >= 0; i-- {
		args[i] = marshalOne(p, argTypes[i])
	}
	return args
}

func marshalOne(p Popper, t ain.Type) Arg {
	switch t.Kind {
	case ain.TString:
		v := p.Pop()
		return Arg{Type: t, Slot: v.Slot()}
	case ain.TStruct, ain.TArray:
		v := p.Pop()
		return Arg{Type: t, Slot: v.Slot()}
	case ain.TRefStr, ain.TRefArr:
		r := p.PopRef()
		return Arg{Type: t, Slot: r.Outer.Slot(), IsRef: true, Ref: &r}
	case ain.TRef:
		r := p.PopRef()
		rr := r
		return Arg{Type: t, IsRef: true, Ref: &rr}
	default:
		// Value types: int/bool/long/float, function-type, delegate,
		// imain_system token — pass the popped word directly (§4.5).
		v := p.Pop()
		return Arg{Type: t, Raw: v}
	}
}

// Finalize releases each popped argument's reference except for
// reference-typed ones, whose refcount was never incremented on entry
// (§4.5: "each popped value is finalized except for reference-typed
// arguments").
func Finalize(h *heap.Heap, args []Arg) {
	for _, a := range args {
		if a.IsRef {
			continue
		}
		switch a.Type.Kind {
		case ain.TString, ain.TStruct, ain.TArray:
			if a.Slot >= 0 {
				h.Unref(a.Slot)
			}
		}
	}
}

// WrapReturn pushes a non-void native return value: a string result is
// owned by the callee and gets wrapped in a freshly allocated string
// slot; any other non-void type is the 32-bit result verbatim (§4.5).
func WrapReturn(h *heap.Heap, retType ain.Type, raw value.Value, nativeString string) value.Value {
	if retType.Kind == ain.TString {
		return value.SlotFrom(h.AllocString(nativeString))
	}
	return raw
}
