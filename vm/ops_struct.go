package vm

import (
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/value"
)

func isStructOp(op instr.Op) bool {
	switch op {
	case instr.OpNew, instr.OpDeleteStruct, instr.OpSRRef, instr.OpSRAssign:
		return true
	default:
		return false
	}
}

// execStruct implements the struct family of §3.3/§3.7/§4.3.3: NEW
// allocates a member-initialized page and runs the declared constructor
// (if any); SR_DELETE runs the destructor then releases the page;
// SR_REF/SR_ASSIGN read and write a struct member given its owning page
// slot and member index, with assignment following the same §3.5
// release-then-deep-copy rule as ASSIGN.
func (v *VM) execStruct(op instr.Op) {
	switch op {
	case instr.OpNew:
		structType := instr.ReadInt32(v.Image.Code, v.IP+2)
		slot, err := v.NewStructPage(structType)
		if err != nil {
			v.fatal("NEW", err)
		}
		if err := v.ConstructStruct(structType, slot); err != nil {
			v.fatal("NEW", err)
		}
		v.Operand.Push(value.SlotFrom(slot))
	case instr.OpDeleteStruct:
		s := v.Operand.Pop()
		if s.Slot() >= 0 {
			if err := v.DestroyStructPage(s.Slot(), false); err != nil {
				v.fatal("SR_DELETE", err)
			}
		}
	case instr.OpSRRef:
		idx := v.Operand.Pop().Int()
		s := v.Operand.Pop()
		p := v.pageAt(s.Slot())
		v.Operand.Push(p.Get(idx))
	case instr.OpSRAssign:
		val := v.Operand.Pop()
		idx := v.Operand.Pop().Int()
		s := v.Operand.Pop()
		result := v.assignVar(value.Ref{Outer: s, Inner: value.IntFrom(idx)}, val)
		v.Operand.Push(result)
	}
}
