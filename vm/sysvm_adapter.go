package vm

import (
	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/save"
	"github.com/ainrun/ainvm/value"
)

// This file adapts *VM to sysvm.Heaper, the minimal surface package
// sysvm needs to implement CALLSYS (§4.6). Kept separate from vm.go so
// the core dispatch loop file stays free of save/sysvm-facing plumbing.

// PopOperand pops the top operand cell.
func (v *VM) PopOperand() value.Value { return v.Operand.Pop() }

// PushOperand pushes val onto the operand stack.
func (v *VM) PushOperand(val value.Value) { v.Operand.Push(val) }

// HeapRef exposes the live heap.
func (v *VM) HeapRef() *heap.Heap { return v.Heap }

// ImageRef exposes the loaded image.
func (v *VM) ImageRef() *ain.Image { return v.Image }

// GlobalVars exposes the Global page as a save.Vars.
func (v *VM) GlobalVars() save.Vars { return v.GlobalPage() }

// FrameNames resolves the active call stack (top-down) into function
// names for GetFuncStackName (§4.6).
func (v *VM) FrameNames() []string {
	frames := v.Calls.Frames()
	names := make([]string, len(frames))
	for i, f := range frames {
		if fn, ok := v.Image.Func(f.FuncIndex); ok {
			names[i] = fn.Name
		}
	}
	return names
}

// AllocString interns s on the heap and returns its slot.
func (v *VM) AllocString(s string) int32 { return v.Heap.AllocString(s) }

// HaltVM implements SYS_EXIT.
func (v *VM) HaltVM() { v.Halt() }

// ResetVM implements the Reset syscall (§4.6): unwind every call frame,
// release the heap, and restart execution from Image.Main under a fresh
// VM state. Run must be called again by the host to actually resume
// dispatch; ResetVM only re-establishes the starting state.
func (v *VM) ResetVM() {
	v.Calls.SetFrames(nil)
	v.Operand.SetRaw(nil)
	v.dgIter = nil
	v.sequence = make(map[int32]int32)
	v.nextSeq = 0
	v.halted = false

	h := heap.New()
	h.SetGlobalPage(page.NewGlobal(globalTypes(v.Image)))
	v.Heap = h

	if v.Image.Main >= 0 {
		v.IP = 0
		if fn, ok := v.Image.Func(v.Image.Main); ok {
			local := page.NewLocal(v.Pool, v.Image.Main, page.NoStructPage, fn.Vars)
			localSlot := v.Heap.AllocPage(local)
			v.Calls.Push(Frame{FuncIndex: v.Image.Main, ReturnIP: SentinelIP, LocalSlot: localSlot, StructSlot: page.NoStructPage})
			v.IP = fn.Address
		}
	}
}

// CaptureResume builds a resume snapshot of the live VM state (§6).
func (v *VM) CaptureResume(key string) save.ResumeSnapshot {
	frames := make([]save.FrameRecord, 0, v.Calls.Depth())
	for _, f := range v.Calls.Frames() {
		frames = append(frames, save.FrameRecord{
			FuncIndex:  f.FuncIndex,
			CallIP:     f.CallIP,
			ReturnIP:   f.ReturnIP,
			LocalSlot:  f.LocalSlot,
			StructSlot: f.StructSlot,
		})
	}
	// Frames() returns top-down; the snapshot stores bottom-up so Restore
	// can push them back onto CallStack in call order.
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return save.Capture(key, v.Heap, frames, v.Operand.Raw(), v.IP)
}

// RestoreResume installs a previously captured snapshot into this VM,
// replacing its heap, call stack, operand stack and instruction pointer.
func (v *VM) RestoreResume(snap *save.ResumeSnapshot) {
	h, frameRecs, operand, ip := save.Restore(snap)
	v.Heap = h
	v.Operand.SetRaw(operand)
	v.IP = ip

	frames := make([]Frame, len(frameRecs))
	for i, f := range frameRecs {
		frames[i] = Frame{
			FuncIndex:  f.FuncIndex,
			CallIP:     f.CallIP,
			ReturnIP:   f.ReturnIP,
			LocalSlot:  f.LocalSlot,
			StructSlot: f.StructSlot,
		}
	}
	v.Calls.SetFrames(frames)

	v.sequence = make(map[int32]int32)
	v.dgIter = nil
	v.halted = false
}
