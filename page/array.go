package page

import (
	"sort"
	"strings"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// StructAllocator allocates a fresh, member-initialized struct page for
// structType and returns its heap slot. Supplied by the caller (the vm
// package, which alone knows a struct's member layout from the image)
// because a struct array's element type carries only a struct index here.
type StructAllocator func(structType int32) (int32, error)

// Constructor is a caller-supplied hook used wherever allocating an array
// element (or an array-of-struct page) requires invoking a bytecode
// constructor — that means re-entering the interpreter (§4.3.2/§9), so
// this package never calls one directly.
type Constructor func(structSlot int32) error

// AllocArray builds the page tree described in §3.3/§4.2: a rank-1 array
// stores elem-typed Values directly; rank>1 stores, in each Value, the
// heap slot of a rank-(r-1) sub-array page. If elemType is a struct and
// initStructs is true, ctor is invoked for each leaf element after it is
// allocated via newStruct.
func AllocArray(h *heap.Heap, pool *Pool, rank int32, dims []int32, elemType ain.Type, structType int32, initStructs bool, newStruct StructAllocator, ctor Constructor) (*Page, error) {
	if rank < 1 || int(rank) != len(dims) {
		panic(vmerr.NewFatal("alloc_array", 0, nil, vmerr.ErrInvariant))
	}
	return allocArrayLevel(h, pool, dims, elemType, structType, initStructs, newStruct, ctor)
}

func allocArrayLevel(h *heap.Heap, pool *Pool, dims []int32, elemType ain.Type, structType int32, initStructs bool, newStruct StructAllocator, ctor Constructor) (*Page, error) {
	n := dims[0]
	p := &Page{
		Kind:       KindArray,
		Vars:       make([]value.Value, n),
		Rank:       int32(len(dims)),
		ElemType:   elemType,
		StructType: structType,
		pool:       pool,
	}
	if len(dims) == 1 {
		for i := int32(0); i < n; i++ {
			v, err := newArrayLeaf(h, elemType, structType, initStructs, newStruct, ctor)
			if err != nil {
				return nil, err
			}
			p.Vars[i] = v
		}
		return p, nil
	}
	for i := int32(0); i < n; i++ {
		sub, err := allocArrayLevel(h, pool, dims[1:], elemType, structType, initStructs, newStruct, ctor)
		if err != nil {
			return nil, err
		}
		p.Vars[i] = value.SlotFrom(h.AllocPage(sub))
	}
	return p, nil
}

func newArrayLeaf(h *heap.Heap, elemType ain.Type, structType int32, initStructs bool, newStruct StructAllocator, ctor Constructor) (value.Value, error) {
	switch elemType.Kind {
	case ain.TString:
		return value.SlotFrom(h.AllocString("")), nil
	case ain.TStruct:
		slot, err := newStruct(structType)
		if err != nil {
			return 0, err
		}
		if initStructs && ctor != nil {
			if err := ctor(slot); err != nil {
				return 0, err
			}
		}
		return value.SlotFrom(slot), nil
	case ain.TArray, ain.TDelegate:
		return value.NoSlot, nil
	default:
		return 0, nil
	}
}

// ReallocArray implements §4.2's realloc_array: growing initializes the
// new slots per type; shrinking finalizes the dropped slots; a zero total
// size returns a nil page (the "zero total ⇒ returns null" rule).
func ReallocArray(h *heap.Heap, pool *Pool, src *Page, rank int32, dims []int32, initStructs bool, newStruct StructAllocator, ctor Constructor) (*Page, error) {
	total := int32(1)
	for _, d := range dims {
		total *= d
	}
	if total == 0 {
		if src != nil {
			FreeArray(h, src, false)
		}
		return nil, nil
	}
	if src == nil {
		return AllocArray(h, pool, rank, dims, ain.Type{}, -1, initStructs, newStruct, ctor)
	}
	if rank == 1 {
		return realloc1D(h, pool, src, dims[0], initStructs, newStruct, ctor)
	}
	// Multi-rank shapes are rebuilt wholesale: finalize the old tree and
	// allocate the new one with the old element type.
	elemType, structType := src.ElemType, src.StructType
	FreeArray(h, src, false)
	return AllocArray(h, pool, rank, dims, elemType, structType, initStructs, newStruct, ctor)
}

func realloc1D(h *heap.Heap, pool *Pool, src *Page, n int32, initStructs bool, newStruct StructAllocator, ctor Constructor) (*Page, error) {
	old := int32(len(src.Vars))
	if n < old {
		for i := n; i < old; i++ {
			finalizeVar(h, src.ElemType, src.Vars[i], false)
		}
		src.Vars = src.Vars[:n]
		return src, nil
	}
	if n > old {
		grown := make([]value.Value, n)
		copy(grown, src.Vars)
		src.Vars = grown
		for i := old; i < n; i++ {
			v, err := newArrayLeaf(h, src.ElemType, src.StructType, initStructs, newStruct, ctor)
			if err != nil {
				return nil, err
			}
			src.Vars[i] = v
		}
	}
	return src, nil
}

// FreeArray finalizes every element of an array page (recursing through
// sub-array pages for rank>1) without freeing the page's own heap slot
// (the caller does that via heap.Unref, which calls Page.Finalize).
func FreeArray(h *heap.Heap, p *Page, shutdown bool) {
	p.Finalize(h, shutdown)
}

// Copy copies elem-typed values from src[si:si+n] into dst[di:di+n],
// each element through VMCopy (vm_copy in §4.2).
func Copy(h *heap.Heap, dst *Page, di int32, src *Page, si int32, n int32, copyPage func(h *heap.Heap, srcSlot int32) int32) {
	if n == 0 {
		return
	}
	if di < 0 || si < 0 || int(di+n) > len(dst.Vars) || int(si+n) > len(src.Vars) {
		panic(vmerr.NewFatal("array_copy", 0, nil, vmerr.ErrHeapOOB))
	}
	srcVals := make([]value.Value, n)
	copy(srcVals, src.Vars[si:si+n])
	for i := int32(0); i < n; i++ {
		dst.Vars[di+i] = VMCopy(h, dst.ElemType, srcVals[i], copyPage)
	}
}

// VMCopy implements §4.2's element-type copy rule used by array_copy,
// array assignment and struct member assignment alike: deep copy for
// string/struct/array/delegate (with a nil copyPage, struct/array/delegate
// slots are shared with a ref++ instead). Every other kind, reference
// types included, is returned as-is; its ref count is not changed.
func VMCopy(h *heap.Heap, t ain.Type, v value.Value, copyPage func(h *heap.Heap, srcSlot int32) int32) value.Value {
	switch t.Kind {
	case ain.TString:
		if v.Slot() < 0 {
			return value.NoSlot
		}
		return value.SlotFrom(h.AllocString(h.String(v.Slot())))
	case ain.TStruct, ain.TArray, ain.TDelegate:
		if v.Slot() < 0 {
			return value.NoSlot
		}
		if copyPage == nil {
			h.Ref(v.Slot())
			return v
		}
		return value.SlotFrom(copyPage(h, v.Slot()))
	default:
		return v
	}
}

// Pushback appends one element (rank must be 1). The page may be
// reallocated (its Vars slice grows); callers must use the returned page.
func Pushback(h *heap.Heap, p *Page, v value.Value) *Page {
	requireRank1(p)
	p.Vars = append(p.Vars, v)
	return p
}

// Popback removes the last element (rank must be 1). A pop on an empty
// array is a no-op, matching the "erase of an empty result" tie-break of
// §4.2.1 applied to the symmetric operation.
func Popback(h *heap.Heap, p *Page) *Page {
	requireRank1(p)
	n := len(p.Vars)
	if n == 0 {
		return p
	}
	finalizeVar(h, p.ElemType, p.Vars[n-1], false)
	p.Vars = p.Vars[:n-1]
	return p
}

// Erase removes the element at idx (rank must be 1). Per §4.2.1, erasing
// from an already-empty array yields a nil page handle with success=true.
func Erase(h *heap.Heap, p *Page, idx int32) (*Page, bool) {
	requireRank1(p)
	if len(p.Vars) == 0 {
		return nil, true
	}
	idx = clampIndex(idx, int32(len(p.Vars))-1)
	finalizeVar(h, p.ElemType, p.Vars[idx], false)
	p.Vars = append(p.Vars[:idx], p.Vars[idx+1:]...)
	return p, true
}

// Insert inserts v at idx (rank must be 1), clamped into [0, NumVars-1]
// per §4.2.1; insert-at-end is unrepresentable via Insert (use Pushback).
func Insert(h *heap.Heap, p *Page, idx int32, v value.Value) *Page {
	requireRank1(p)
	if len(p.Vars) == 0 {
		return Pushback(h, p, v)
	}
	idx = clampIndex(idx, int32(len(p.Vars))-1)
	p.Vars = append(p.Vars, 0)
	copy(p.Vars[idx+1:], p.Vars[idx:len(p.Vars)-1])
	p.Vars[idx] = v
	return p
}

func clampIndex(idx, max int32) int32 {
	if idx < 0 {
		return 0
	}
	if idx > max {
		return max
	}
	return idx
}

func requireRank1(p *Page) {
	if p.Rank != 1 {
		panic(vmerr.NewFatal("array-rank", 0, nil, vmerr.ErrInvariant))
	}
}

// CompareFn computes a three-way compare between two elements, used by
// Sort with an explicit comparator; invoking it means calling a bytecode
// function, so it is supplied by the interpreter (§4.2 "invokes the
// bytecode function with two arguments").
type CompareFn func(a, b value.Value) (int, error)

// Sort implements array_sort: stable, natural order for int/long/float/
// string when cmp is nil, otherwise the caller-supplied three-way
// comparator. Stability is guaranteed by carrying original indices as the
// tie-break (§4.2.1).
func Sort(h *heap.Heap, p *Page, cmp CompareFn) error {
	requireRank1(p)
	idx := make([]int, len(p.Vars))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	less := func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		a, b := p.Vars[idx[i]], p.Vars[idx[j]]
		var c int
		var err error
		if cmp != nil {
			c, err = cmp(a, b)
		} else {
			c = naturalCompare(h, p.ElemType, a, b)
		}
		if err != nil {
			sortErr = err
			return false
		}
		if c != 0 {
			return c < 0
		}
		return idx[i] < idx[j] // original-position tie-break, §4.2.1
	}
	sort.SliceStable(idx, less)
	if sortErr != nil {
		return sortErr
	}
	out := make([]value.Value, len(p.Vars))
	for i, j := range idx {
		out[i] = p.Vars[j]
	}
	p.Vars = out
	return nil
}

func naturalCompare(h *heap.Heap, t ain.Type, a, b value.Value) int {
	switch t.Kind {
	case ain.TString:
		return strings.Compare(h.String(a.Slot()), h.String(b.Slot()))
	case ain.TFloat:
		af, bf := a.Float(), b.Float()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case ain.TLong:
		al, bl := a.Long(), b.Long()
		switch {
		case al < bl:
			return -1
		case al > bl:
			return 1
		default:
			return 0
		}
	default: // int and all other scalar kinds compare as int32
		ai, bi := a.Int(), b.Int()
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
}

// MemberCompareFn reads the sort key for one struct-array element, given
// the struct's heap slot and the configured member index.
type MemberCompareFn func(structSlot int32) (value.Value, bool) // bool: isString

// SortMem implements array_sort_mem: sort an array-of-struct by one
// member (int or string), stable.
func SortMem(h *heap.Heap, p *Page, key MemberCompareFn) error {
	requireRank1(p)
	idx := make([]int, len(p.Vars))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		av, aIsStr := key(p.Vars[idx[i]].Slot())
		bv, _ := key(p.Vars[idx[j]].Slot())
		var c int
		if aIsStr {
			c = strings.Compare(h.String(av.Slot()), h.String(bv.Slot()))
		} else {
			c = naturalCompare(h, ain.Type{Kind: ain.TInt}, av, bv)
		}
		if c != 0 {
			return c < 0
		}
		return idx[i] < idx[j]
	})
	out := make([]value.Value, len(p.Vars))
	for i, j := range idx {
		out[i] = p.Vars[j]
	}
	p.Vars = out
	return nil
}

// FindFn is the caller-supplied predicate for array_find's fn variant:
// fn(value, element) treating a nonzero result as a match.
type FindFn func(needle, elem value.Value) (bool, error)

// Find implements array_find: a linear scan over [start,end). With fn,
// delegate the comparison; without, compare scalars by value and strings
// by byte-compare. Returns the first matching index, or -1.
func Find(h *heap.Heap, p *Page, start, end int32, needle value.Value, fn FindFn) (int32, error) {
	if end > int32(len(p.Vars)) {
		end = int32(len(p.Vars))
	}
	for i := start; i < end; i++ {
		elem := p.Vars[i]
		var match bool
		var err error
		if fn != nil {
			match, err = fn(needle, elem)
			if err != nil {
				return -1, err
			}
		} else if p.ElemType.Kind == ain.TString {
			match = h.String(needle.Slot()) == h.String(elem.Slot())
		} else {
			match = needle == elem
		}
		if match {
			return i, nil
		}
	}
	return -1, nil
}
