package vm

import (
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/value"
)

func isRefOp(op instr.Op) bool {
	switch op {
	case instr.OpRef, instr.OpRefRef, instr.OpRAssign, instr.OpREqualE:
		return true
	default:
		return false
	}
}

// execRef implements the "ref T" family of §3.6/§4.3.3: REF dereferences
// one level, pushing the referenced scalar value; REFREF produces a
// reference to a reference (a pair of reference pairs, flattened to four
// stack cells); R_ASSIGN writes through a reference; R_EQUALE compares
// two references for identity (same outer slot and inner index), not
// value equality.
func (v *VM) execRef(op instr.Op) {
	switch op {
	case instr.OpRef:
		ref := v.Operand.PopRef()
		p := v.pageAt(ref.Outer.Slot())
		v.Operand.Push(p.Get(ref.Inner.Slot()))
	case instr.OpRefRef:
		inner := v.Operand.PopRef()
		outer := v.Operand.PopRef()
		v.Operand.PushRef(outer)
		v.Operand.PushRef(inner)
	case instr.OpRAssign:
		val := v.Operand.Pop()
		ref := v.Operand.PopRef()
		result := v.assignVar(ref, val)
		v.Operand.Push(result)
	case instr.OpREqualE:
		b := v.Operand.PopRef()
		a := v.Operand.PopRef()
		v.Operand.Push(value.BoolFrom(a.Outer == b.Outer && a.Inner == b.Inner))
	}
}
