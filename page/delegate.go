package page

import (
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// DelegateEntry is one (object, function, sequence) triple of a delegate
// page's flat vector (§3.3). Sequence is the creation_sequence tag used
// for generational invalidation (§3.3/§9): an entry is "live" only while
// Sequence still matches the bound object's current sequence.
type DelegateEntry struct {
	Object    int32
	FuncIndex int32
	Sequence  int32
}

// SequenceOf returns the current sequence tag of the page at slot obj, or
// -1 if the slot is no longer a live page (it was freed and possibly
// reused) — the generational check that makes DelegateNumOf's compaction
// correct even across slot reuse.
type SequenceOf func(obj int32) int32

// NewDelegate builds an empty delegate page. NumVars is a multiple of 3
// per §3.7 by construction.
func NewDelegate() *Page {
	return &Page{Kind: KindDelegate}
}

func delegateEntries(p *Page) []DelegateEntry {
	if p == nil {
		return nil
	}
	if len(p.Vars)%3 != 0 {
		panic(vmerr.NewFatal("delegate-invariant", 0, nil, vmerr.ErrInvariant))
	}
	out := make([]DelegateEntry, len(p.Vars)/3)
	for i := range out {
		out[i] = DelegateEntry{
			Object:    p.Vars[3*i].Slot(),
			FuncIndex: p.Vars[3*i+1].Int(),
			Sequence:  p.Vars[3*i+2].Int(),
		}
	}
	return out
}

func setDelegateEntries(p *Page, entries []DelegateEntry) {
	p.Vars = make([]value.Value, len(entries)*3)
	for i, e := range entries {
		p.Vars[3*i] = value.SlotFrom(e.Object)
		p.Vars[3*i+1] = value.IntFrom(e.FuncIndex)
		p.Vars[3*i+2] = value.IntFrom(e.Sequence)
	}
}

// DelegateNumOf compacts entries whose bound object's sequence no longer
// matches (garbage collection, §4.2) and returns the live count.
func DelegateNumOf(p *Page, seqOf SequenceOf) int32 {
	entries := delegateEntries(p)
	live := entries[:0]
	for _, e := range entries {
		if seqOf(e.Object) == e.Sequence {
			live = append(live, e)
		}
	}
	setDelegateEntries(p, live)
	return int32(len(live))
}

// DelegateAppend is set-insertion: no duplicates by (object, function).
func DelegateAppend(p *Page, obj, fn, seq int32) {
	entries := delegateEntries(p)
	for _, e := range entries {
		if e.Object == obj && e.FuncIndex == fn {
			return
		}
	}
	entries = append(entries, DelegateEntry{Object: obj, FuncIndex: fn, Sequence: seq})
	setDelegateEntries(p, entries)
}

// DelegateErase removes the (object, function) entry if present.
func DelegateErase(p *Page, obj, fn int32) {
	entries := delegateEntries(p)
	out := entries[:0]
	for _, e := range entries {
		if e.Object == obj && e.FuncIndex == fn {
			continue
		}
		out = append(out, e)
	}
	setDelegateEntries(p, out)
}

// DelegatePlusA unions src's entries into dst (set-insertion semantics,
// same as repeated DelegateAppend).
func DelegatePlusA(dst, src *Page) {
	for _, e := range delegateEntries(src) {
		DelegateAppend(dst, e.Object, e.FuncIndex, e.Sequence)
	}
}

// DelegateMinusA removes from dst every entry also present in src
// (matched by object+function, ignoring sequence).
func DelegateMinusA(dst, src *Page) {
	remove := delegateEntries(src)
	entries := delegateEntries(dst)
	out := entries[:0]
	for _, e := range entries {
		drop := false
		for _, r := range remove {
			if r.Object == e.Object && r.FuncIndex == e.FuncIndex {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, e)
		}
	}
	setDelegateEntries(dst, out)
}

// DelegateAssign implements a deep copy of src's entries into dst. The
// bound object slots are copied without a ref count change: delegate
// entries are weak references (§9), validated by their sequence tag.
func DelegateAssign(h *heap.Heap, dst, src *Page) {
	DelegateClear(h, dst)
	entries := delegateEntries(src)
	out := make([]DelegateEntry, len(entries))
	copy(out, entries)
	setDelegateEntries(dst, out)
}

// DelegateClear empties a delegate page.
func DelegateClear(h *heap.Heap, p *Page) {
	p.Vars = nil
}

// DelegateLen returns the number of entries currently stored (including
// possibly-stale ones — callers that care about liveness call
// DelegateNumOf first, matching §4.3.5's "preceded by compaction").
func DelegateLen(p *Page) int32 {
	return int32(len(p.Vars) / 3)
}

// DelegateAt returns the i-th entry without compacting.
func DelegateAt(p *Page, i int32) DelegateEntry {
	if i < 0 || 3*i+2 >= int32(len(p.Vars)) {
		panic(vmerr.NewFatal("delegate-at", 0, nil, vmerr.ErrHeapOOB))
	}
	return DelegateEntry{
		Object:    p.Vars[3*i].Slot(),
		FuncIndex: p.Vars[3*i+1].Int(),
		Sequence:  p.Vars[3*i+2].Int(),
	}
}
