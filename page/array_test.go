package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/value"
)

func intArray(vals ...int32) *Page {
	vars := make([]value.Value, len(vals))
	for i, v := range vals {
		vars[i] = value.IntFrom(v)
	}
	return &Page{Kind: KindArray, Rank: 1, ElemType: ain.Type{Kind: ain.TInt}, Vars: vars}
}

func TestSortNaturalOrderIsStable(t *testing.T) {
	p := intArray(3, 1, 2, 1, 3)
	h := heap.New()
	require.NoError(t, Sort(h, p, nil))

	got := make([]int32, len(p.Vars))
	for i, v := range p.Vars {
		got[i] = v.Int()
	}
	assert.Equal(t, []int32{1, 1, 2, 3, 3}, got)
}

func TestSortWithComparator(t *testing.T) {
	p := intArray(1, 2, 3, 4)
	h := heap.New()
	// Descending via a caller-supplied comparator.
	err := Sort(h, p, func(a, b value.Value) (int, error) {
		return int(b.Int() - a.Int()), nil
	})
	require.NoError(t, err)

	got := make([]int32, len(p.Vars))
	for i, v := range p.Vars {
		got[i] = v.Int()
	}
	assert.Equal(t, []int32{4, 3, 2, 1}, got)
}

func TestPushbackPopback(t *testing.T) {
	p := intArray()
	h := heap.New()
	p = Pushback(h, p, value.IntFrom(5))
	p = Pushback(h, p, value.IntFrom(6))
	assert.Equal(t, 2, p.NumVars())

	p = Popback(h, p)
	assert.Equal(t, 1, p.NumVars())
	assert.Equal(t, int32(5), p.Vars[0].Int())

	// Popping empty is a no-op.
	p = Popback(h, p)
	p = Popback(h, p)
	assert.Equal(t, 0, p.NumVars())
}

func TestEraseAndInsert(t *testing.T) {
	p := intArray(10, 20, 30)
	h := heap.New()

	p, ok := Erase(h, p, 1)
	require.True(t, ok)
	assert.Equal(t, []int32{10, 30}, rawInts(p))

	p = Insert(h, p, 1, value.IntFrom(99))
	assert.Equal(t, []int32{10, 99, 30}, rawInts(p))

	// Erase on an empty array is a no-op success.
	empty := intArray()
	got, ok := Erase(h, empty, 0)
	require.True(t, ok)
	assert.Nil(t, got)
}

func TestFindScalar(t *testing.T) {
	p := intArray(5, 6, 7, 6)
	h := heap.New()
	idx, err := Find(h, p, 0, int32(len(p.Vars)), value.IntFrom(6), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), idx)

	idx, err = Find(h, p, 0, int32(len(p.Vars)), value.IntFrom(42), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), idx)
}

func rawInts(p *Page) []int32 {
	out := make([]int32, len(p.Vars))
	for i, v := range p.Vars {
		out[i] = v.Int()
	}
	return out
}
