// Package heap implements the reference-counted slot array of §3.2/§4.1:
// a slot holds either a string or a page, plus a ref count and a kind tag.
// Slot 0 is permanently reserved for the global page.
package heap

import (
	"github.com/ainrun/ainvm/vmerr"
)

// Kind tags what a slot currently holds.
type Kind uint8

const (
	// KindFree marks a slot on the free list; ref is always 0.
	KindFree Kind = iota
	KindString
	KindPage
)

// GlobalSlot is the permanently reserved index of the program's global page.
const GlobalSlot = 0

// growStep is how many slots the backing array grows by when exhausted.
const growStep = 256

// Pageish is the subset of page.Page's contract the heap needs without
// importing package page (which imports heap): identity for pooling and a
// destructor hook run before the page's storage is released.
type Pageish interface {
	// Finalize releases everything the page owns. If shutdown is true,
	// no user destructors are invoked (the exit_unref variant of §4.1).
	Finalize(h *Heap, shutdown bool)
}

type slot struct {
	kind Kind
	ref  int32
	str  string
	page Pageish
}

// Heap is the slot array plus free list described in §3.2.
type Heap struct {
	slots []slot
	free  []int32
}

// New builds a Heap with slot 0 reserved for the global page, ref pinned
// at 1 for the lifetime of the program per §3.2.
func New() *Heap {
	h := &Heap{slots: make([]slot, 1, growStep)}
	h.slots[0] = slot{kind: KindPage, ref: 1}
	return h
}

// SetGlobalPage installs the program's global page into the reserved
// slot 0. Called once, during image initialization.
func (h *Heap) SetGlobalPage(p Pageish) {
	h.slots[0].page = p
}

// NewForRestore builds an empty Heap with no slots at all, for exclusive
// use by a resume-snapshot loader (save.Restore): the snapshot dictates
// every slot's kind and ref count, including slot 0, so the usual
// slot-0-reservation New() would have to be undone immediately.
func NewForRestore() *Heap {
	return &Heap{}
}

// RestoreSlots preallocates the backing array to exactly n slots, all
// initially free, and resets the free list to match. Called once before
// RestoreString/RestorePage repopulate the non-free slots in any order.
func (h *Heap) RestoreSlots(n int) {
	h.slots = make([]slot, n)
	h.free = h.free[:0]
	for i := n - 1; i >= 0; i-- {
		h.free = append(h.free, int32(i))
	}
}

// RestoreString installs a string slot at the exact index i (previously
// sized by RestoreSlots), removing it from the free list.
func (h *Heap) RestoreString(i int32, ref int32, s string) {
	h.slots[i] = slot{kind: KindString, ref: ref, str: s}
	h.unmarkFree(i)
}

// RestorePage installs a page slot at the exact index i, removing it
// from the free list.
func (h *Heap) RestorePage(i int32, ref int32, p Pageish) {
	h.slots[i] = slot{kind: KindPage, ref: ref, page: p}
	h.unmarkFree(i)
}

func (h *Heap) unmarkFree(i int32) {
	for j, f := range h.free {
		if f == i {
			h.free = append(h.free[:j], h.free[j+1:]...)
			return
		}
	}
}

func (h *Heap) grow() {
	n := len(h.slots)
	newLen := n + growStep
	grown := make([]slot, newLen)
	copy(grown, h.slots)
	h.slots = grown
	for i := newLen - 1; i >= n; i-- {
		h.free = append(h.free, int32(i))
	}
}

// AllocString allocates a fresh slot holding s with ref=1.
func (h *Heap) AllocString(s string) int32 {
	i := h.allocSlot(KindString)
	h.slots[i].str = s
	return i
}

// AllocPage allocates a fresh slot holding p with ref=1.
func (h *Heap) AllocPage(p Pageish) int32 {
	i := h.allocSlot(KindPage)
	h.slots[i].page = p
	return i
}

func (h *Heap) allocSlot(kind Kind) int32 {
	if len(h.free) == 0 {
		h.grow()
	}
	n := len(h.free)
	i := h.free[n-1]
	h.free = h.free[:n-1]
	h.slots[i] = slot{kind: kind, ref: 1}
	return i
}

func (h *Heap) check(i int32) *slot {
	if i < 0 || int(i) >= len(h.slots) || h.slots[i].ref == 0 {
		panic(vmerr.NewFatal("heap-access", 0, nil, vmerr.ErrHeapOOB))
	}
	return &h.slots[i]
}

// String returns the string held in slot i.
func (h *Heap) String(i int32) string {
	s := h.check(i)
	if s.kind != KindString {
		panic(vmerr.NewFatal("heap-access", 0, nil, vmerr.ErrInvariant))
	}
	return s.str
}

// SetString overwrites the contents of an existing string slot in place
// (the supplemented copy-on-assign rule in SPEC_FULL.md: assignment never
// rebinds the slot index, matching 3.2's "immutable-by-identity").
func (h *Heap) SetString(i int32, s string) {
	slot := h.check(i)
	if slot.kind != KindString {
		panic(vmerr.NewFatal("heap-access", 0, nil, vmerr.ErrInvariant))
	}
	slot.str = s
}

// Page returns the page held in slot i.
func (h *Heap) Page(i int32) Pageish {
	s := h.check(i)
	if s.kind != KindPage {
		panic(vmerr.NewFatal("heap-access", 0, nil, vmerr.ErrInvariant))
	}
	return s.page
}

// Kind returns the kind tag of slot i, or KindFree if i is out of range
// or already freed.
func (h *Heap) Kind(i int32) Kind {
	if i < 0 || int(i) >= len(h.slots) {
		return KindFree
	}
	return h.slots[i].kind
}

// RefCount returns the current reference count of slot i (0 if free).
func (h *Heap) RefCount(i int32) int32 {
	if i < 0 || int(i) >= len(h.slots) {
		return 0
	}
	return h.slots[i].ref
}

// Ref increments the ref count of slot i. A no-op for i == -1, matching
// value.NoSlot (§4.1).
func (h *Heap) Ref(i int32) {
	if i < 0 {
		return
	}
	h.check(i).ref++
}

// Unref decrements the ref count of slot i and, on reaching zero, frees
// the string or runs the page's destructor then frees the page (§4.1).
// Unref'ing slot 0 (the permanent global page) is never permitted (§4.3.6).
func (h *Heap) Unref(i int32) {
	h.unref(i, false)
}

// ExitUnref is the shutdown-path variant: it still releases storage but
// suppresses user destructor calls, per §3.5/§7.
func (h *Heap) ExitUnref(i int32) {
	h.unref(i, true)
}

func (h *Heap) unref(i int32, shutdown bool) {
	if i < 0 {
		return
	}
	if i == GlobalSlot {
		panic(vmerr.NewFatal("unref", 0, nil, vmerr.ErrInvariant))
	}
	s := h.check(i)
	s.ref--
	if s.ref < 0 {
		panic(vmerr.NewFatal("unref", 0, nil, vmerr.ErrDoubleFree))
	}
	if s.ref > 0 {
		return
	}
	switch s.kind {
	case KindString:
		s.str = ""
	case KindPage:
		p := s.page
		s.page = nil
		if p != nil {
			p.Finalize(h, shutdown)
		}
	}
	s.kind = KindFree
	h.free = append(h.free, i)
}

// Len reports the current size of the backing slot array, mostly useful
// for diagnostics and tests.
func (h *Heap) Len() int { return len(h.slots) }
