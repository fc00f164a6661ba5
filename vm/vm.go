// Package vm is the bytecode interpreter core of §4: the operand stack,
// call frames, and opcode dispatch loop that together execute a loaded
// ain.Image against a heap.Heap. Everything outside the core algorithm —
// native library implementations, system calls, save-file storage — is
// supplied by the host through Registry, sysvm.Exec and save.Hooks; vm
// itself only knows how to re-enter them.
package vm

import (
	"fmt"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/hll"
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
	"github.com/ainrun/ainvm/vmlog"
)

// Syscall is the host hook for CALLSYS (§4.6): tag identifies which
// system call fired. The implementation pops whatever arguments that tag
// declares directly off v.Operand and pushes its own return value (or
// none, for a void syscall) — concrete tags and their argument/return
// conventions live in package sysvm; vm only knows how to call through to
// whichever Syscall the host installed.
type Syscall func(v *VM, tag int32) error

// VM is the live interpreter state: the heap, the loaded image, the two
// stacks, the page pool, the external-call registry, the breakpoint
// table, the logger, and the current instruction pointer (§3.1).
type VM struct {
	Heap  *heap.Heap
	Image *ain.Image
	Pool  *page.Pool

	Operand OperandStack
	Calls   CallStack

	HLL         *hll.Registry
	Breakpoints *instr.BreakpointTable
	Syscalls    Syscall
	Log         *vmlog.Logger

	IP uint32

	// sequence is the monotonically increasing generation counter minted
	// for every newly allocated struct/array/delegate page, read by
	// SequenceOf to detect a delegate entry whose bound object has since
	// been freed and its slot reused (§3.3/§9).
	sequence map[int32]int32
	nextSeq  int32

	// dgIter holds the in-progress DG_CALLBEGIN/DG_CALL iteration state
	// (§4.3.5), nil when no delegate call sequence is active.
	dgIter *dgIterState

	halted bool
}

// New builds a VM ready to execute img against a fresh heap.
func New(img *ain.Image, hllReg *hll.Registry) *VM {
	h := heap.New()
	h.SetGlobalPage(page.NewGlobal(globalTypes(img)))
	return &VM{
		Heap:        h,
		Image:       img,
		Pool:        page.NewPool(),
		HLL:         hllReg,
		Breakpoints: instr.NewBreakpointTable(),
		Log:         vmlog.New(),
		sequence:    make(map[int32]int32),
	}
}

func globalTypes(img *ain.Image) []ain.Type {
	types := make([]ain.Type, len(img.Globals))
	for i, g := range img.Globals {
		types[i] = g.Type
	}
	return types
}

// GlobalPage returns the program's single Global page.
func (v *VM) GlobalPage() *page.Page {
	return v.Heap.Page(heap.GlobalSlot).(*page.Page)
}

// nextSequence mints a fresh generation tag for a newly allocated page,
// used by struct/array/delegate construction (§3.3) and read back by
// SequenceOf.
func (v *VM) nextSequence(slot int32) int32 {
	v.nextSeq++
	v.sequence[slot] = v.nextSeq
	return v.nextSeq
}

// SequenceOf implements page.SequenceOf: the generation tag of the page
// currently occupying slot, or -1 if that slot is no longer a live page
// (matches the delegate generational-invalidation rule of §3.3/§9).
func (v *VM) SequenceOf(slot int32) int32 {
	if v.Heap.Kind(slot) != heap.KindPage {
		return -1
	}
	seq, ok := v.sequence[slot]
	if !ok {
		return -1
	}
	return seq
}

// forgetSequence drops a freed slot's generation tag so a later reuse of
// the same index mints a fresh one instead of colliding with the old
// page's tag.
func (v *VM) forgetSequence(slot int32) {
	delete(v.sequence, slot)
}

// Run executes from the image's Main function until it returns (or the
// VM halts via SYS_EXIT), per §4.3.2's outermost vm_execute.
func (v *VM) Run() error {
	if v.Image.Main < 0 {
		return vmerr.NewFatal("run", 0, nil, vmerr.ErrInvariant)
	}
	_, err := v.Call(v.Image.Main, page.NoStructPage, nil)
	return err
}

// Start pushes Main's call frame and positions IP at its entry without
// running the dispatch loop, for the REPL's single-step command (Run
// does the equivalent internally but then runs straight to completion).
func (v *VM) Start() error {
	if v.Image.Main < 0 {
		return vmerr.NewFatal("start", 0, nil, vmerr.ErrInvariant)
	}
	fn, ok := v.Image.Func(v.Image.Main)
	if !ok {
		return vmerr.NewFatal("start", 0, nil, vmerr.ErrInvariant)
	}
	local := page.NewLocal(v.Pool, v.Image.Main, page.NoStructPage, fn.Vars)
	localSlot := v.Heap.AllocPage(local)
	v.Calls.Push(Frame{FuncIndex: v.Image.Main, ReturnIP: SentinelIP, LocalSlot: localSlot, StructSlot: page.NoStructPage})
	v.IP = fn.Address
	return nil
}

// Call re-enters the dispatcher for fn with args already evaluated
// (pushed as the callee's first NumArgs locals), per §4.3.2: it saves the
// caller's IP, pushes a frame whose return address is the SentinelIP
// marker, runs execute to completion, and restores the caller's IP. Used
// both by top-level Run and by any internal re-entry (CALL/CALLMETHOD,
// struct constructors/destructors, delegate invocation).
func (v *VM) Call(funcIndex int32, structSlot int32, args []value.Value) (value.Value, error) {
	fn, ok := v.Image.Func(funcIndex)
	if !ok {
		return 0, vmerr.NewFatal("call", v.IP, v.trace(), vmerr.ErrInvariant)
	}
	local := page.NewLocal(v.Pool, funcIndex, structSlot, fn.Vars)
	for i := 0; i < fn.NumArgs && i < len(args); i++ {
		local.Set(int32(i), args[i])
	}
	localSlot := value.SlotFrom(v.Heap.AllocPage(local))

	savedIP := v.IP
	v.Calls.Push(Frame{
		FuncIndex:  funcIndex,
		CallIP:     savedIP,
		ReturnIP:   SentinelIP,
		LocalSlot:  localSlot.Slot(),
		StructSlot: structSlot,
	})
	v.IP = fn.Address

	retErr := v.execute()
	v.IP = savedIP
	if retErr != nil {
		return 0, retErr
	}
	var ret value.Value
	if fn.Return.Kind != ain.TVoid {
		ret = v.Operand.Pop()
	}
	return ret, nil
}

// execute runs the fetch-decode-execute loop (§4.3.2) until a RETURN pops
// a frame whose ReturnIP is SentinelIP, the VM halts, or an error
// propagates out. A scenario jump (SJUMP/CALLONJUMP) does not end the
// loop: it continues in the jumped-to function, whose RETURN pops the
// sentinel frame scenarioJump installed.
func (v *VM) execute() (err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*vmerr.Fatal)
			if !ok {
				panic(r)
			}
			f.Trace = v.trace()
			v.Log.Fatal(f)
			err = f
		}
	}()

	for {
		if v.halted {
			return nil
		}
		op := v.fetch()
		done, jumpErr := v.dispatch(op)
		if jumpErr != nil {
			return jumpErr
		}
		if done {
			return nil
		}
	}
}

// Step executes exactly one instruction and reports whether the current
// Call's frame has just returned, for the REPL's single-step command —
// the out-of-scope interactive debugger's one entry point into the core,
// using nothing execute itself doesn't already use.
func (v *VM) Step() (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*vmerr.Fatal)
			if !ok {
				panic(r)
			}
			f.Trace = v.trace()
			v.Log.Fatal(f)
			err = f
		}
	}()
	if v.halted {
		return true, nil
	}
	op := v.fetch()
	return v.dispatch(op)
}

// fetch reads the opcode at the current IP with the breakpoint marker bit
// stripped, so a tagged opcode executes as its underlying opcode (§4.3.3).
// A tagged IP is looked up in the breakpoint table, but the result is
// discarded: fetch notifies no host.
func (v *VM) fetch() instr.Op {
	code := v.Image.Code
	if int(v.IP)+2 > len(code) {
		panic(vmerr.NewFatal("fetch", v.IP, nil, vmerr.ErrBadIP))
	}
	if instr.IsBreakpoint(code, v.IP) {
		v.Breakpoints.Hit(v.IP)
	}
	return instr.ReadOp(code, v.IP)
}

// dispatch executes one instruction. It returns done=true when this
// Call's frame has just returned (RETURN popped a SentinelIP frame).
func (v *VM) dispatch(op instr.Op) (done bool, err error) {
	info, ok := instr.Table[op]
	if !ok {
		panic(vmerr.NewFatal("dispatch", v.IP, v.trace(), vmerr.ErrIllegalOpcode))
	}

	switch {
	case isStackOp(op):
		v.execStack(op)
	case isVarOp(op):
		v.execVar(op)
	case isArithOp(op):
		v.execArith(op)
	case isStringOp(op):
		v.execString(op)
	case isRefOp(op):
		v.execRef(op)
	case isStructOp(op):
		v.execStruct(op)
	case isArrayOp(op):
		v.execArray(op)
	case isDelegateOp(op):
		v.execDelegate(op)
	case op == instr.OpCallSys:
		v.execSyscall()
	default:
		return v.execControl(op, info)
	}

	if !info.ControlTransfer {
		v.IP += uint32(info.Width)
	}
	return false, nil
}

// trace walks the current call stack into the vmerr.Frame slice a Fatal
// carries for diagnostics (§7).
func (v *VM) trace() []vmerr.Frame {
	frames := v.Calls.Frames()
	out := make([]vmerr.Frame, len(frames))
	for i, f := range frames {
		name := ""
		if fn, ok := v.Image.Func(f.FuncIndex); ok {
			name = fn.Name
		}
		out[i] = vmerr.Frame{FuncIndex: f.FuncIndex, FuncName: name, ReturnIP: f.ReturnIP}
	}
	return out
}

// Halt implements SYS_EXIT (§4.6): execution stops at the next dispatch
// boundary without unwinding any pending Go call frames.
func (v *VM) Halt() {
	v.halted = true
}

// warn logs a RuntimeWarn; execution continues (§7). Callers push any
// benign default value themselves.
func (v *VM) warn(format string, args ...interface{}) {
	v.Log.Warn(vmerr.NewWarn(format, args...))
}

func (v *VM) fatal(opcode string, cause error) {
	panic(vmerr.NewFatal(opcode, v.IP, v.trace(), cause))
}

// DestroyStructPage runs the struct's destructor (if any) then finalizes
// and frees the page — the interpreter-side half of page.DestroyStruct,
// since invoking a bytecode destructor means calling back into v.Call.
func (v *VM) DestroyStructPage(slot int32, shutdown bool) error {
	p, ok := v.Heap.Page(slot).(*page.Page)
	if !ok {
		return nil
	}
	dtor := func(structSlot int32) error {
		s, ok2 := v.Image.Struct(p.StructType)
		if !ok2 || s.Dtor < 0 {
			return nil
		}
		_, err := v.Call(s.Dtor, structSlot, nil)
		return err
	}
	err := page.DestroyStruct(v.Heap, slot, shutdown, dtor)
	v.forgetSequence(slot)
	return err
}

// NewStructPage allocates and ref-generation-tags a struct page for
// structType, satisfying page.StructAllocator for array-of-struct
// construction and NEW/array-alloc opcodes alike.
func (v *VM) NewStructPage(structType int32) (int32, error) {
	s, ok := v.Image.Struct(structType)
	if !ok {
		return 0, fmt.Errorf("vm: unknown struct type %d", structType)
	}
	p := page.NewStruct(v.Pool, structType, s.Members)
	slot := v.Heap.AllocPage(p)
	v.nextSequence(slot)
	return slot, nil
}

// ConstructStruct invokes structType's constructor (if any) on slot.
func (v *VM) ConstructStruct(structType, slot int32) error {
	s, ok := v.Image.Struct(structType)
	if !ok || s.Ctor < 0 {
		return nil
	}
	_, err := v.Call(s.Ctor, slot, nil)
	return err
}

// CopyPage implements the copyPage hook page.VMCopy/page.Copy need for
// deep-copying a struct/array/delegate element: allocate a fresh page of
// the same shape and recursively VMCopy its contents.
func (v *VM) CopyPage(h *heap.Heap, srcSlot int32) int32 {
	src, ok := h.Page(srcSlot).(*page.Page)
	if !ok {
		return srcSlot
	}
	switch src.Kind {
	case page.KindStruct:
		dstSlot, err := v.NewStructPage(src.StructType)
		if err != nil {
			v.fatal("copy", err)
		}
		dst := h.Page(dstSlot).(*page.Page)
		for i, mv := range src.Vars {
			var mt ain.Type
			if i < len(src.VarTypes) {
				mt = src.VarTypes[i]
			}
			dst.Vars[i] = page.VMCopy(h, mt, mv, v.CopyPage)
			_ = mt
		}
		return dstSlot
	case page.KindArray:
		dst := &page.Page{Kind: page.KindArray, ElemType: src.ElemType, Rank: src.Rank, StructType: src.StructType, Vars: make([]value.Value, len(src.Vars))}
		dstSlot := h.AllocPage(dst)
		v.nextSequence(dstSlot)
		elemType := src.ElemType
		if src.Rank > 1 {
			sub := ain.Type{Kind: ain.TArray, Rank: src.Rank - 1, Elem: &elemType, StructType: src.StructType}
			for i, ev := range src.Vars {
				dst.Vars[i] = page.VMCopy(h, sub, ev, v.CopyPage)
			}
		} else {
			for i, ev := range src.Vars {
				dst.Vars[i] = page.VMCopy(h, elemType, ev, v.CopyPage)
			}
		}
		return dstSlot
	case page.KindDelegate:
		dst := page.NewDelegate()
		dstSlot := h.AllocPage(dst)
		v.nextSequence(dstSlot)
		page.DelegateAssign(h, dst, src)
		return dstSlot
	default:
		return srcSlot
	}
}
