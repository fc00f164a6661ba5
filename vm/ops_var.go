package vm

import (
	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

func isVarOp(op instr.Op) bool {
	switch op {
	case instr.OpPushGlobal, instr.OpPushLocal, instr.OpPushStructMember,
		instr.OpAssign, instr.OpInc, instr.OpDec, instr.OpDelete, instr.OpCreate:
		return true
	default:
		return false
	}
}

// currentFrame returns the active call frame, panicking (a FatalVm, per
// §3.4) if none is active — every variable-access opcode requires one.
func (v *VM) currentFrame() Frame {
	f, ok := v.Calls.Top()
	if !ok {
		v.fatal("var-access", vmerr.ErrInvariant)
	}
	return f
}

// execVar implements the lvalue-producing and lvalue-consuming family of
// §3.6/§4.3.3: PUSH_GLOBAL/PUSH_LOCAL/PUSH_STRUCT_MEMBER each push a
// (page, index) reference pair addressing a declared variable; ASSIGN,
// INC, DEC and DELETE consume one such pair off the top of the stack.
func (v *VM) execVar(op instr.Op) {
	switch op {
	case instr.OpPushGlobal:
		idx := instr.ReadUint32(v.Image.Code, v.IP+2)
		v.Operand.PushRef(value.Ref{Outer: value.SlotFrom(heap.GlobalSlot), Inner: imm32(int32(idx))})
	case instr.OpPushLocal:
		idx := instr.ReadUint32(v.Image.Code, v.IP+2)
		f := v.currentFrame()
		v.Operand.PushRef(value.Ref{Outer: value.SlotFrom(f.LocalSlot), Inner: imm32(int32(idx))})
	case instr.OpPushStructMember:
		idx := instr.ReadUint32(v.Image.Code, v.IP+2)
		f := v.currentFrame()
		v.Operand.PushRef(value.Ref{Outer: value.SlotFrom(f.StructSlot), Inner: imm32(int32(idx))})
	case instr.OpAssign:
		val := v.Operand.Pop()
		ref := v.Operand.PopRef()
		result := v.assignVar(ref, val)
		v.Operand.Push(result)
	case instr.OpInc:
		ref := v.Operand.PopRef()
		v.bumpVar(ref, 1)
	case instr.OpDec:
		ref := v.Operand.PopRef()
		v.bumpVar(ref, -1)
	case instr.OpDelete:
		ref := v.Operand.PopRef()
		p := v.pageAt(ref.Outer.Slot())
		i := ref.Inner.Slot()
		t := varType(p, i)
		old := p.Get(i)
		if t.IsHeapRef() && old.Slot() >= 0 {
			v.Heap.Unref(old.Slot())
		}
		p.Set(i, zeroOf(t))
	case instr.OpCreate:
		// SR_CREATE is a compiler lifetime hint in the reference encoding
		// (§6 disclaims full table fidelity); it has no observable effect
		// on heap or stack state here.
	}
}

// pageAt resolves a heap slot to its *page.Page, fatal if it is not one
// (an image invariant violation, §3.7).
func (v *VM) pageAt(slot int32) *page.Page {
	p, ok := v.Heap.Page(slot).(*page.Page)
	if !ok {
		v.fatal("page-access", vmerr.ErrInvariant)
	}
	return p
}

func varType(p *page.Page, i int32) ain.Type {
	if i < 0 || int(i) >= len(p.VarTypes) {
		return ain.Type{}
	}
	return p.VarTypes[i]
}

func zeroOf(t ain.Type) value.Value {
	if t.IsHeapRef() {
		return value.NoSlot
	}
	return 0
}

// assignVar implements §3.5's assignment rule at a (page,index) lvalue:
// the old heap-ref occupant (if any) is released, and the new value is
// deep-copied (string/struct/array/delegate) before being stored;
// reference types and plain scalars are stored verbatim. Returns
// the value now resident at the slot, the convention ASSIGN's result
// matches (some callers chain the assigned value, e.g. `a = b = 1`).
func (v *VM) assignVar(ref value.Ref, val value.Value) value.Value {
	p := v.pageAt(ref.Outer.Slot())
	i := ref.Inner.Slot()
	t := varType(p, i)
	old := p.Get(i)
	if t.IsHeapRef() && old.Slot() >= 0 {
		v.Heap.Unref(old.Slot())
	}
	newVal := page.VMCopy(v.Heap, t, val, v.CopyPage)
	p.Set(i, newVal)
	return newVal
}

// bumpVar implements INC/DEC: read-modify-write an integer lvalue by
// delta (§4.3.3); non-integer targets are left untouched (a RuntimeWarn,
// §7 — INC/DEC on a non-numeric declared type is an image defect, not a
// condition the interpreter should crash on).
func (v *VM) bumpVar(ref value.Ref, delta int32) {
	p := v.pageAt(ref.Outer.Slot())
	i := ref.Inner.Slot()
	t := varType(p, i)
	if t.Kind != ain.TInt {
		v.warn("INC/DEC on non-int variable (type %s)", t)
		return
	}
	p.Set(i, value.IntFrom(p.Get(i).Int()+delta))
}
