package page

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ainrun/ainvm/heap"
)

func TestDelegateAppendDedup(t *testing.T) {
	p := NewDelegate()
	DelegateAppend(p, 1, 10, 0)
	DelegateAppend(p, 1, 10, 0) // duplicate (object, function) is a no-op
	DelegateAppend(p, 2, 10, 0)
	assert.Equal(t, int32(2), DelegateLen(p))
}

func TestDelegateEraseRemovesOnlyMatchingPair(t *testing.T) {
	p := NewDelegate()
	DelegateAppend(p, 1, 10, 0)
	DelegateAppend(p, 1, 20, 0)
	DelegateErase(p, 1, 10)
	assert.Equal(t, int32(1), DelegateLen(p))
	assert.Equal(t, int32(20), DelegateAt(p, 0).FuncIndex)
}

func TestDelegatePlusAMinusA(t *testing.T) {
	dst := NewDelegate()
	DelegateAppend(dst, 1, 10, 0)

	src := NewDelegate()
	DelegateAppend(src, 1, 10, 0) // already present in dst
	DelegateAppend(src, 2, 20, 0)
	DelegatePlusA(dst, src)
	assert.Equal(t, int32(2), DelegateLen(dst))

	remove := NewDelegate()
	DelegateAppend(remove, 2, 20, 99) // sequence is ignored by MinusA's match
	DelegateMinusA(dst, remove)
	assert.Equal(t, int32(1), DelegateLen(dst))
	assert.Equal(t, int32(1), DelegateAt(dst, 0).Object)
}

func TestDelegateAssignDeepCopiesEntries(t *testing.T) {
	h := heap.New()
	src := NewDelegate()
	DelegateAppend(src, 1, 10, 0)

	dst := NewDelegate()
	DelegateAppend(dst, 9, 99, 0)
	DelegateAssign(h, dst, src)

	assert.Equal(t, int32(1), DelegateLen(dst))
	assert.Equal(t, DelegateAt(src, 0), DelegateAt(dst, 0))

	// Mutating src afterward must not affect dst's copied entries.
	DelegateAppend(src, 2, 20, 0)
	assert.Equal(t, int32(1), DelegateLen(dst))
}

// TestDelegateNumOfInvalidatesStaleGeneration exercises the generational
// invalidation at the heart of DelegateNumOf: an entry bound to an object
// whose current sequence has since moved on (the slot was freed and its
// sequence counter advanced) is compacted away rather than reported live.
func TestDelegateNumOfInvalidatesStaleGeneration(t *testing.T) {
	p := NewDelegate()
	DelegateAppend(p, 1, 10, 5) // bound when object 1 was at sequence 5
	DelegateAppend(p, 2, 20, 7) // bound when object 2 was at sequence 7

	current := map[int32]int32{1: 5, 2: 8} // object 2 has since moved to sequence 8
	seqOf := func(obj int32) int32 {
		s, ok := current[obj]
		if !ok {
			return -1
		}
		return s
	}

	live := DelegateNumOf(p, seqOf)
	assert.Equal(t, int32(1), live)
	assert.Equal(t, int32(1), DelegateAt(p, 0).Object)
}

func TestDelegateNumOfDropsFreedSlot(t *testing.T) {
	p := NewDelegate()
	DelegateAppend(p, 3, 30, 1)

	seqOf := func(obj int32) int32 { return -1 } // slot no longer live
	live := DelegateNumOf(p, seqOf)
	assert.Equal(t, int32(0), live)
	assert.Equal(t, int32(0), DelegateLen(p))
}
