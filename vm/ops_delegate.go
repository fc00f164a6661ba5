package vm

import (
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
)

func isDelegateOp(op instr.Op) bool {
	switch op {
	case instr.OpDGNew, instr.OpDGAppend, instr.OpDGErase, instr.OpDGPlusA,
		instr.OpDGMinusA, instr.OpDGAssign, instr.OpDGClear, instr.OpDGNumOf,
		instr.OpDGCallBegin, instr.OpDGCall:
		return true
	default:
		return false
	}
}

// dgIterState tracks an in-progress DG_CALLBEGIN/DG_CALL iteration
// (§4.3.5): the delegate's compacted entries and the cursor into them.
// Delegate invocation is the one control-flow opcode pair that needs
// state carried across two opcodes, so it lives on the VM rather than
// the operand stack.
type dgIterState struct {
	entries []page.DelegateEntry
	args    []value.Value
	next    int
}

// execDelegate implements the delegate family of §3.3/§4.2/§4.3.5.
// DG_CALLBEGIN compacts stale entries (generational invalidation) and
// starts an iteration; each DG_CALL invokes the next live entry's bound
// method and loops back to itself until the entries are exhausted, at
// which point control falls through past the DG_CALL (§4.3.5's
// two-opcode protocol).
func (v *VM) execDelegate(op instr.Op) {
	switch op {
	case instr.OpDGNew:
		v.Operand.Push(value.SlotFrom(v.allocDelegate()))
	case instr.OpDGAppend:
		fn := v.Operand.Pop().Int()
		obj := v.Operand.Pop()
		dg := v.Operand.Pop()
		seq := v.SequenceOf(obj.Slot())
		page.DelegateAppend(v.pageAt(dg.Slot()), obj.Slot(), fn, seq)
	case instr.OpDGErase:
		fn := v.Operand.Pop().Int()
		obj := v.Operand.Pop()
		dg := v.Operand.Pop()
		page.DelegateErase(v.pageAt(dg.Slot()), obj.Slot(), fn)
	case instr.OpDGPlusA:
		src := v.Operand.Pop()
		dst := v.Operand.Pop()
		page.DelegatePlusA(v.pageAt(dst.Slot()), v.pageAt(src.Slot()))
	case instr.OpDGMinusA:
		src := v.Operand.Pop()
		dst := v.Operand.Pop()
		page.DelegateMinusA(v.pageAt(dst.Slot()), v.pageAt(src.Slot()))
	case instr.OpDGAssign:
		src := v.Operand.Pop()
		dst := v.Operand.Pop()
		page.DelegateAssign(v.Heap, v.pageAt(dst.Slot()), v.pageAt(src.Slot()))
	case instr.OpDGClear:
		dg := v.Operand.Pop()
		page.DelegateClear(v.Heap, v.pageAt(dg.Slot()))
	case instr.OpDGNumOf:
		dg := v.Operand.Pop()
		v.Operand.Push(value.IntFrom(page.DelegateNumOf(v.pageAt(dg.Slot()), v.SequenceOf)))
	case instr.OpDGCallBegin:
		argc := instr.ReadInt32(v.Image.Code, v.IP+2)
		args := v.Operand.PopN(int(argc))
		dg := v.Operand.Pop()
		p := v.pageAt(dg.Slot())
		page.DelegateNumOf(p, v.SequenceOf) // compact before iterating (§4.3.5)
		entries := make([]page.DelegateEntry, page.DelegateLen(p))
		for i := range entries {
			entries[i] = page.DelegateAt(p, int32(i))
		}
		v.dgIter = &dgIterState{entries: entries, args: args}
	case instr.OpDGCall:
		target := instr.ReadUint32(v.Image.Code, v.IP+2)
		v.stepDelegateCall(target)
		return // IP was set directly by stepDelegateCall (ControlTransfer)
	}
}

// allocDelegate builds and installs a fresh empty delegate page.
func (v *VM) allocDelegate() int32 {
	p := page.NewDelegate()
	slot := v.Heap.AllocPage(p)
	v.nextSequence(slot)
	return slot
}

// stepDelegateCall runs the next live entry of the active iteration (if
// any) and jumps back to this DG_CALL's own address so the opcode loops;
// once exhausted, it falls through to target (the address just past the
// DG_CALL, supplied as its own operand per the generic "every
// control-transfer opcode carries its target" shape of §6).
func (v *VM) stepDelegateCall(fallthroughTarget uint32) {
	it := v.dgIter
	// Skip entries whose bound object has died since DG_CALLBEGIN.
	for it != nil && it.next < len(it.entries) && v.SequenceOf(it.entries[it.next].Object) != it.entries[it.next].Sequence {
		it.next++
	}
	if it == nil || it.next >= len(it.entries) {
		v.dgIter = nil
		v.IP = fallthroughTarget
		return
	}
	e := it.entries[it.next]
	it.next++
	if _, err := v.Call(e.FuncIndex, e.Object, it.args); err != nil {
		v.fatal("DG_CALL", err)
		return
	}
	// Loop: re-execute this same DG_CALL for the next entry.
}
