package vm

import (
	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// execControl implements the control-flow family of §4.3.2/§4.3.3/§4.3.4
// plus the shorthand (fused) opcodes of §9, all of which fall through
// dispatch's default case, which does not advance the instruction
// pointer: each case here sets it itself (the calls and shorthand opcodes
// by adding their own width).
func (v *VM) execControl(op instr.Op, info instr.InstrInfo) (done bool, err error) {
	switch op {
	case instr.OpJump:
		v.IP = instr.ReadUint32(v.Image.Code, v.IP+2)
	case instr.OpIfZ:
		target := instr.ReadUint32(v.Image.Code, v.IP+2)
		if v.Operand.Pop().Int() == 0 {
			v.IP = target
		} else {
			v.IP += uint32(info.Width)
		}
	case instr.OpIfNZ:
		target := instr.ReadUint32(v.Image.Code, v.IP+2)
		if v.Operand.Pop().Int() != 0 {
			v.IP = target
		} else {
			v.IP += uint32(info.Width)
		}
	case instr.OpCall:
		funcIndex := int32(instr.ReadUint32(v.Image.Code, v.IP+2))
		fn, ok := v.Image.Func(funcIndex)
		if !ok {
			v.fatal("CALL", vmerr.ErrInvariant)
		}
		args := v.Operand.PopN(fn.NumArgs)
		ret, cerr := v.Call(funcIndex, page.NoStructPage, args)
		if cerr != nil {
			return false, cerr
		}
		if fn.Return.Kind != ain.TVoid {
			v.Operand.Push(ret)
		}
		v.IP += uint32(info.Width)
	case instr.OpCallMethod:
		funcIndex := int32(instr.ReadUint32(v.Image.Code, v.IP+2))
		fn, ok := v.Image.Func(funcIndex)
		if !ok {
			v.fatal("CALLMETHOD", vmerr.ErrInvariant)
		}
		args := v.Operand.PopN(fn.NumArgs)
		self := v.Operand.Pop()
		ret, cerr := v.Call(funcIndex, self.Slot(), args)
		if cerr != nil {
			return false, cerr
		}
		if fn.Return.Kind != ain.TVoid {
			v.Operand.Push(ret)
		}
		v.IP += uint32(info.Width)
	case instr.OpReturn:
		return v.execReturn()
	case instr.OpSwitch:
		table := instr.ReadUint32(v.Image.Code, v.IP+2)
		key := v.Operand.Pop().Int()
		v.IP = v.resolveSwitch(table, value.IntFrom(key))
	case instr.OpStrSwitch:
		table := instr.ReadUint32(v.Image.Code, v.IP+2)
		s := v.Operand.Pop()
		v.IP = v.resolveStrSwitch(table, s)
	case instr.OpCallOnJump:
		target := int32(instr.ReadUint32(v.Image.Code, v.IP+2))
		v.scenarioJump(target)
	case instr.OpSJump:
		target := int32(instr.ReadUint32(v.Image.Code, v.IP+2))
		v.scenarioJump(target)

	case instr.OpAssignAdd:
		ref := v.Operand.PopRef()
		delta := v.Operand.Pop().Int()
		p := v.pageAt(ref.Outer.Slot())
		i := ref.Inner.Slot()
		p.Set(i, value.IntFrom(p.Get(i).Int()+delta))
		v.IP += uint32(info.Width)
	case instr.OpAssignSub:
		ref := v.Operand.PopRef()
		delta := v.Operand.Pop().Int()
		p := v.pageAt(ref.Outer.Slot())
		i := ref.Inner.Slot()
		p.Set(i, value.IntFrom(p.Get(i).Int()-delta))
		v.IP += uint32(info.Width)
	case instr.OpIncLocal:
		idx := int32(instr.ReadUint32(v.Image.Code, v.IP+2))
		f := v.currentFrame()
		p := v.pageAt(f.LocalSlot)
		p.Set(idx, value.IntFrom(p.Get(idx).Int()+1))
		v.IP += uint32(info.Width)
	case instr.OpDecLocal:
		idx := int32(instr.ReadUint32(v.Image.Code, v.IP+2))
		f := v.currentFrame()
		p := v.pageAt(f.LocalSlot)
		p.Set(idx, value.IntFrom(p.Get(idx).Int()-1))
		v.IP += uint32(info.Width)
	case instr.OpPushLocalPlusImm:
		idx := int32(instr.ReadUint32(v.Image.Code, v.IP+2))
		imm := instr.ReadInt32(v.Image.Code, v.IP+6)
		f := v.currentFrame()
		v.Operand.PushRef(value.Ref{Outer: value.SlotFrom(f.LocalSlot), Inner: imm32(idx + imm)})
		v.IP += uint32(info.Width)

	default:
		v.fatal("dispatch", vmerr.ErrInvariant)
	}
	return false, nil
}

// execReturn implements RETURN (§4.3.2): it releases the callee's Local
// page, pops the call frame, and either signals the enclosing Call to
// stop (the frame's ReturnIP was the SentinelIP it was pushed with) or
// resumes the caller at ReturnIP.
func (v *VM) execReturn() (done bool, err error) {
	var ret value.Value
	f, ok := v.Calls.Top()
	if ok {
		fn, _ := v.Image.Func(f.FuncIndex)
		if fn.Return.Kind != ain.TVoid {
			ret = v.Operand.Pop()
		}
	}
	frame := v.Calls.Pop()
	v.Heap.Unref(frame.LocalSlot)
	v.forgetSequence(frame.LocalSlot)

	if frame.ReturnIP == SentinelIP {
		fn, _ := v.Image.Func(frame.FuncIndex)
		if fn.Return.Kind != ain.TVoid {
			v.Operand.Push(ret)
		}
		return true, nil
	}
	if fn, _ := v.Image.Func(frame.FuncIndex); fn.Return.Kind != ain.TVoid {
		v.Operand.Push(ret)
	}
	v.IP = frame.ReturnIP
	return false, nil
}

// scenarioJump implements the shared effect of SJUMP and CALLONJUMP
// (§4.3.4): every pending call frame is flushed (its Local page released,
// no destructors run — a scenario transition discards rather than
// unwinds, matching the reference engine's "flush the entire call stack"
// wording) and execution resumes at target's entry address under a fresh
// sentinel frame.
func (v *VM) scenarioJump(target int32) {
	for v.Calls.Depth() > 0 {
		f := v.Calls.Pop()
		v.Heap.Unref(f.LocalSlot)
		v.forgetSequence(f.LocalSlot)
	}
	fn, ok := v.Image.Func(target)
	if !ok {
		v.fatal("SJUMP", vmerr.ErrInvariant)
	}
	local := page.NewLocal(v.Pool, target, page.NoStructPage, fn.Vars)
	localSlot := v.Heap.AllocPage(local)
	v.Calls.Push(Frame{FuncIndex: target, ReturnIP: SentinelIP, LocalSlot: localSlot, StructSlot: page.NoStructPage})
	v.IP = fn.Address
}

// resolveSwitch implements SWITCH's linear first-match scan (§4.3.3).
func (v *VM) resolveSwitch(table uint32, key value.Value) uint32 {
	sw, ok := v.switchAt(table)
	if !ok {
		v.fatal("SWITCH", vmerr.ErrInvariant)
	}
	for _, c := range sw.Cases {
		if c.IntValue == key.Int() {
			return c.Address
		}
	}
	if sw.Default >= 0 {
		return uint32(sw.Default)
	}
	return v.IP + 6
}

// resolveStrSwitch implements STRSWITCH: same linear scan, keyed by the
// referenced string's contents.
func (v *VM) resolveStrSwitch(table uint32, s value.Value) uint32 {
	sw, ok := v.switchAt(table)
	if !ok {
		v.fatal("STRSWITCH", vmerr.ErrInvariant)
	}
	key := ""
	if s.Slot() >= 0 {
		key = v.Heap.String(s.Slot())
	}
	for _, c := range sw.Cases {
		if c.StrValue == key {
			return c.Address
		}
	}
	if sw.Default >= 0 {
		return uint32(sw.Default)
	}
	return v.IP + 6
}

func (v *VM) switchAt(table uint32) (ain.Switch, bool) {
	if int(table) >= len(v.Image.Switches) {
		return ain.Switch{}, false
	}
	return v.Image.Switches[table], true
}

