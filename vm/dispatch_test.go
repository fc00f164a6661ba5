package vm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/hll"
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
)

// asm is a tiny bytecode assembler for building fixture images by hand —
// no proprietary decoder involved, only instr.Table's documented widths.
type asm struct {
	buf bytes.Buffer
}

func (a *asm) op(op instr.Op) *asm {
	binary.Write(&a.buf, binary.LittleEndian, uint16(op))
	return a
}

func (a *asm) imm32(n int32) *asm {
	binary.Write(&a.buf, binary.LittleEndian, n)
	return a
}

func (a *asm) bytes() []byte { return a.buf.Bytes() }
func (a *asm) here() uint32  { return uint32(a.buf.Len()) }

func TestCallAddsTwoLocalArguments(t *testing.T) {
	var a asm
	base := a.here()

	a.op(instr.OpPushLocal).imm32(0)
	a.op(instr.OpRef)
	a.op(instr.OpPushLocal).imm32(1)
	a.op(instr.OpRef)
	a.op(instr.OpAdd)
	a.op(instr.OpReturn)

	b := ain.NewBuilder()
	b.SetCode(a.bytes())
	addIdx := b.AddFunction(ain.Function{
		Name:    "add",
		Address: base,
		Return:  ain.Type{Kind: ain.TInt},
		Vars:    []ain.Type{{Kind: ain.TInt}, {Kind: ain.TInt}},
		NumArgs: 2,
	})
	b.SetMain(addIdx)
	img := b.Build()

	v := New(img, hll.NewRegistry())
	ret, err := v.Call(addIdx, page.NoStructPage, []value.Value{value.IntFrom(3), value.IntFrom(4)})
	require.NoError(t, err)
	assert.Equal(t, int32(7), ret.Int())
}

func TestIfZBranchesOnZero(t *testing.T) {
	var a asm
	base := a.here()

	a.op(instr.OpPush).imm32(0)
	ifzAt := a.here()
	a.op(instr.OpIfZ).imm32(0) // patched below
	a.op(instr.OpPush).imm32(111)
	jmpAt := a.here()
	a.op(instr.OpJump).imm32(0) // patched below
	taken := a.here()
	a.op(instr.OpPush).imm32(222)
	end := a.here()
	a.op(instr.OpReturn)

	code := a.bytes()
	binary.LittleEndian.PutUint32(code[ifzAt+2:], taken)
	binary.LittleEndian.PutUint32(code[jmpAt+2:], end)

	b := ain.NewBuilder()
	b.SetCode(code)
	fnIdx := b.AddFunction(ain.Function{
		Name:    "branch",
		Address: base,
		Return:  ain.Type{Kind: ain.TInt},
	})
	b.SetMain(fnIdx)
	img := b.Build()

	v := New(img, hll.NewRegistry())
	ret, err := v.Call(fnIdx, page.NoStructPage, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(222), ret.Int())
}

func TestStringPushAddAndMod(t *testing.T) {
	var a asm
	base := a.here()

	a.op(instr.OpSPush).imm32(0) // "Hello, "
	a.op(instr.OpSPush).imm32(1) // "val=%d"
	a.op(instr.OpSAdd)
	a.op(instr.OpPush).imm32(42)
	a.op(instr.OpSMod).imm32(int32(StrFmtInt))
	a.op(instr.OpReturn)

	b := ain.NewBuilder()
	b.SetCode(a.bytes())
	b.AddString("Hello, ")
	b.AddString("val=%d")
	fnIdx := b.AddFunction(ain.Function{
		Name:    "greet",
		Address: base,
		Return:  ain.Type{Kind: ain.TString},
	})
	b.SetMain(fnIdx)
	img := b.Build()

	v := New(img, hll.NewRegistry())
	ret, err := v.Call(fnIdx, page.NoStructPage, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, val=42", v.Heap.String(ret.Slot()))
}

func TestRunExecutesMain(t *testing.T) {
	var a asm
	base := a.here()
	a.op(instr.OpPush).imm32(5)
	a.op(instr.OpPop)
	a.op(instr.OpReturn)

	b := ain.NewBuilder()
	b.SetCode(a.bytes())
	fnIdx := b.AddFunction(ain.Function{Name: "main", Address: base, Return: ain.Type{Kind: ain.TVoid}})
	b.SetMain(fnIdx)
	img := b.Build()

	v := New(img, hll.NewRegistry())
	require.NoError(t, v.Run())
}

func TestDivisionByZeroYieldsZero(t *testing.T) {
	var a asm
	base := a.here()
	a.op(instr.OpPush).imm32(10)
	a.op(instr.OpPush).imm32(0)
	a.op(instr.OpDiv)
	a.op(instr.OpReturn)

	b := ain.NewBuilder()
	b.SetCode(a.bytes())
	fnIdx := b.AddFunction(ain.Function{Name: "divzero", Address: base, Return: ain.Type{Kind: ain.TInt}})
	b.SetMain(fnIdx)
	img := b.Build()

	v := New(img, hll.NewRegistry())
	ret, err := v.Call(fnIdx, page.NoStructPage, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), ret.Int())
}
