package vm

import (
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/value"
)

func isArithOp(op instr.Op) bool {
	switch op {
	case instr.OpAdd, instr.OpSub, instr.OpMul, instr.OpDiv, instr.OpMod,
		instr.OpAnd, instr.OpOr, instr.OpXor, instr.OpLShift, instr.OpRShift,
		instr.OpNeg, instr.OpNot,
		instr.OpLongAdd, instr.OpLongSub, instr.OpLongMul, instr.OpLongDiv, instr.OpLongMod,
		instr.OpFAdd, instr.OpFSub, instr.OpFMul, instr.OpFDiv, instr.OpFNeg,
		instr.OpLT, instr.OpGT, instr.OpLTE, instr.OpGTE, instr.OpEq, instr.OpNEq,
		instr.OpFLT, instr.OpFGT, instr.OpFLTE, instr.OpFGTE, instr.OpFEq, instr.OpFNEq:
		return true
	default:
		return false
	}
}

// execArith implements the scalar arithmetic and comparison families of
// §4.3.3: plain int ops wrap on overflow (Go's int32 arithmetic already
// does); DIV and MOD by zero yield 0 rather than trapping; long ops
// compute at 64-bit width and pass the result through saturateLong, which
// clamps an over-large positive result to MaxInt32 and clamps ANY negative
// result to 0 (§8's documented quirk, reproduced verbatim: the reference
// saturate helper treats every negative intermediate as underflow).
func (v *VM) execArith(op instr.Op) {
	switch op {
	case instr.OpAdd:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a + b))
	case instr.OpSub:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a - b))
	case instr.OpMul:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a * b))
	case instr.OpDiv:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		if b == 0 {
			v.Operand.Push(value.IntFrom(0))
		} else {
			v.Operand.Push(value.IntFrom(a / b))
		}
	case instr.OpMod:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		if b == 0 {
			v.Operand.Push(value.IntFrom(0))
		} else {
			v.Operand.Push(value.IntFrom(a % b))
		}
	case instr.OpAnd:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a & b))
	case instr.OpOr:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a | b))
	case instr.OpXor:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a ^ b))
	case instr.OpLShift:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a << (uint32(b) & 31)))
	case instr.OpRShift:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(a >> (uint32(b) & 31)))
	case instr.OpNeg:
		a := v.Operand.Pop().Int()
		v.Operand.Push(value.IntFrom(-a))
	case instr.OpNot:
		a := v.Operand.Pop().Int()
		v.Operand.Push(value.BoolFrom(a == 0))

	case instr.OpLongAdd:
		b, a := v.Operand.Pop().Long(), v.Operand.Pop().Long()
		v.Operand.Push(saturateLong(a + b))
	case instr.OpLongSub:
		b, a := v.Operand.Pop().Long(), v.Operand.Pop().Long()
		v.Operand.Push(saturateLong(a - b))
	case instr.OpLongMul:
		b, a := v.Operand.Pop().Long(), v.Operand.Pop().Long()
		v.Operand.Push(saturateLong(a * b))
	case instr.OpLongDiv:
		b, a := v.Operand.Pop().Long(), v.Operand.Pop().Long()
		if b == 0 {
			v.Operand.Push(value.IntFrom(0))
		} else {
			v.Operand.Push(saturateLong(a / b))
		}
	case instr.OpLongMod:
		b, a := v.Operand.Pop().Long(), v.Operand.Pop().Long()
		if b == 0 {
			v.Operand.Push(value.IntFrom(0))
		} else {
			v.Operand.Push(saturateLong(a % b))
		}

	case instr.OpFAdd:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.FloatFrom(a + b))
	case instr.OpFSub:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.FloatFrom(a - b))
	case instr.OpFMul:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.FloatFrom(a * b))
	case instr.OpFDiv:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.FloatFrom(a / b)) // IEEE-754: a/0 is +-Inf or NaN, no trap (§4.3.3)
	case instr.OpFNeg:
		a := v.Operand.Pop().Float()
		v.Operand.Push(value.FloatFrom(-a))

	case instr.OpLT:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.BoolFrom(a < b))
	case instr.OpGT:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.BoolFrom(a > b))
	case instr.OpLTE:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.BoolFrom(a <= b))
	case instr.OpGTE:
		b, a := v.Operand.Pop().Int(), v.Operand.Pop().Int()
		v.Operand.Push(value.BoolFrom(a >= b))
	case instr.OpEq:
		b, a := v.Operand.Pop(), v.Operand.Pop()
		v.Operand.Push(value.BoolFrom(a == b))
	case instr.OpNEq:
		b, a := v.Operand.Pop(), v.Operand.Pop()
		v.Operand.Push(value.BoolFrom(a != b))
	case instr.OpFLT:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.BoolFrom(a < b))
	case instr.OpFGT:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.BoolFrom(a > b))
	case instr.OpFLTE:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.BoolFrom(a <= b))
	case instr.OpFGTE:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.BoolFrom(a >= b))
	case instr.OpFEq:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.BoolFrom(a == b))
	case instr.OpFNEq:
		b, a := v.Operand.Pop().Float(), v.Operand.Pop().Float()
		v.Operand.Push(value.BoolFrom(a != b))
	}
}

// saturateLong clamps a 64-bit intermediate back into the 32-bit Value
// word: results above MaxInt32 clamp to MaxInt32, any negative result
// clamps to 0 (src/vm.c:42 lint_clamp: "if (n < 0) return 0;" — reproduced
// verbatim, not just the overflow-magnitude case), and everything else
// passes through unchanged.
func saturateLong(n int64) value.Value {
	const maxInt32 = int64(1)<<31 - 1
	switch {
	case n > maxInt32:
		return value.IntFrom(int32(maxInt32))
	case n < 0:
		return value.IntFrom(0)
	default:
		return value.IntFrom(int32(n))
	}
}
