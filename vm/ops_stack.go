package vm

import "github.com/ainrun/ainvm/instr"

func isStackOp(op instr.Op) bool {
	switch op {
	case instr.OpNop, instr.OpPush, instr.OpPop, instr.OpDup, instr.OpDup2,
		instr.OpDupX2, instr.OpDup2X1, instr.OpSwap:
		return true
	default:
		return false
	}
}

// execStack implements the stack-manipulation family of §4.3.1/§4.3.3:
// PUSH carries its literal as a 32-bit immediate; the DUP variants mirror
// the JVM-style naming (DUP2 duplicates the top pair, DUP_X2 duplicates
// the top value under the next two, DUP2_X1 duplicates the top pair under
// the one below it).
func (v *VM) execStack(op instr.Op) {
	switch op {
	case instr.OpNop:
	case instr.OpPush:
		imm := instr.ReadInt32(v.Image.Code, v.IP+2)
		v.Operand.Push(imm32(imm))
	case instr.OpPop:
		v.Operand.Pop()
	case instr.OpDup:
		v.Operand.Push(v.Operand.Peek(0))
	case instr.OpDup2:
		b, a := v.Operand.Peek(0), v.Operand.Peek(1)
		v.Operand.Push(a)
		v.Operand.Push(b)
	case instr.OpDupX2:
		top := v.Operand.Peek(0)
		a, b := v.Operand.Peek(1), v.Operand.Peek(2)
		v.Operand.Pop()
		v.Operand.Pop()
		v.Operand.Pop()
		v.Operand.Push(top)
		v.Operand.Push(b)
		v.Operand.Push(a)
		v.Operand.Push(top)
	case instr.OpDup2X1:
		top, next := v.Operand.Peek(0), v.Operand.Peek(1)
		under := v.Operand.Peek(2)
		v.Operand.Pop()
		v.Operand.Pop()
		v.Operand.Pop()
		v.Operand.Push(next)
		v.Operand.Push(top)
		v.Operand.Push(under)
		v.Operand.Push(next)
		v.Operand.Push(top)
	case instr.OpSwap:
		a := v.Operand.Pop()
		b := v.Operand.Pop()
		v.Operand.Push(a)
		v.Operand.Push(b)
	}
}
