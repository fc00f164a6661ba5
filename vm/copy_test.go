package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/hll"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
)

// TestCopyPageDeepCopiesStructMembers exercises CopyPage's struct branch:
// a copy must allocate a fresh page and deep-copy a string member rather
// than sharing the source's heap slot.
func TestCopyPageDeepCopiesStructMembers(t *testing.T) {
	b := ain.NewBuilder()
	b.SetCode([]byte{0, 0})
	structIdx := b.AddStruct(ain.Struct{
		Name: "point",
		Ctor: -1,
		Dtor: -1,
		Members: []ain.Member{
			{Name: "label", Type: ain.Type{Kind: ain.TString}},
			{Name: "x", Type: ain.Type{Kind: ain.TInt}},
		},
	})
	img := b.Build()

	v := New(img, hll.NewRegistry())
	srcSlot, err := v.NewStructPage(structIdx)
	require.NoError(t, err)

	src := v.Heap.Page(srcSlot).(*page.Page)
	src.Vars[0] = value.SlotFrom(v.Heap.AllocString("hi"))
	src.Vars[1] = value.IntFrom(7)

	dstSlot := v.CopyPage(v.Heap, srcSlot)
	require.NotEqual(t, srcSlot, dstSlot)

	dst := v.Heap.Page(dstSlot).(*page.Page)
	assert.Equal(t, int32(7), dst.Vars[1].Int())
	assert.NotEqual(t, src.Vars[0].Slot(), dst.Vars[0].Slot())
	assert.Equal(t, "hi", v.Heap.String(dst.Vars[0].Slot()))

	// Mutating the source's string slot afterward must not affect the copy.
	v.Heap.SetString(src.Vars[0].Slot(), "changed")
	assert.Equal(t, "hi", v.Heap.String(dst.Vars[0].Slot()))
}

// TestCopyPageDeepCopiesArray exercises CopyPage's array branch for a
// rank-1 int array: same element values, distinct heap slot.
func TestCopyPageDeepCopiesArray(t *testing.T) {
	b := ain.NewBuilder()
	b.SetCode([]byte{0, 0})
	img := b.Build()

	v := New(img, hll.NewRegistry())
	src := &page.Page{Kind: page.KindArray, Rank: 1, ElemType: ain.Type{Kind: ain.TInt}, Vars: []value.Value{value.IntFrom(1), value.IntFrom(2)}}
	srcSlot := v.Heap.AllocPage(src)

	dstSlot := v.CopyPage(v.Heap, srcSlot)
	require.NotEqual(t, srcSlot, dstSlot)

	dst := v.Heap.Page(dstSlot).(*page.Page)
	assert.Equal(t, []value.Value{value.IntFrom(1), value.IntFrom(2)}, dst.Vars)

	dst.Vars[0] = value.IntFrom(99)
	assert.Equal(t, int32(1), src.Vars[0].Int())
}
