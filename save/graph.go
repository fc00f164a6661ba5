package save

import (
	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
)

// NodeKind tags one node of a walked value graph.
type NodeKind uint8

const (
	NodeNil NodeKind = iota
	NodeScalar
	NodeString
	NodeStruct
	NodeArray
	NodeDelegate
)

// Node is one value in the recursive graph walk of §6. Heap-ref kinds
// (String/Struct/Array) carry an index into the owning Graph's dedup
// table rather than inlining their contents, so two globals sharing the
// same heap slot serialize to the same table entry.
type Node struct {
	Kind   NodeKind
	Scalar value.Value // valid for NodeScalar
	Index  int         // valid for NodeString/NodeStruct/NodeArray/NodeDelegate
}

// StructRecord is one deduplicated struct table entry.
type StructRecord struct {
	StructType int32
	Members    []Node
}

// ArrayRecord is one deduplicated array table entry.
type ArrayRecord struct {
	ElemType   ain.Type
	Rank       int32
	StructType int32
	Elements   []Node
}

// DelegateRecord is one deduplicated delegate table entry.
type DelegateRecord struct {
	Entries []page.DelegateEntry
}

// Graph is the dedup table a globals snapshot's values are walked into:
// records, keyvals, arrays, and strings are deduplicated and referenced
// by index (§6).
type Graph struct {
	Strings   []string
	Structs   []StructRecord
	Arrays    []ArrayRecord
	Delegates []DelegateRecord
}

// walker caches, per heap slot, the table index already assigned to it so
// a value reachable through two different paths serializes once.
type walker struct {
	h          *heap.Heap
	g          *Graph
	strSeen    map[int32]int
	structSeen map[int32]int
	arraySeen  map[int32]int
	dgSeen     map[int32]int
}

func newWalker(h *heap.Heap, g *Graph) *walker {
	return &walker{
		h:          h,
		g:          g,
		strSeen:    make(map[int32]int),
		structSeen: make(map[int32]int),
		arraySeen:  make(map[int32]int),
		dgSeen:     make(map[int32]int),
	}
}

// Walk serializes v (of declared type t) into a Node, deduplicating any
// heap-referenced string/struct/array/delegate into w.g's tables.
func (w *walker) Walk(t ain.Type, v value.Value) Node {
	switch t.Kind {
	case ain.TString:
		slot := v.Slot()
		if slot < 0 {
			return Node{Kind: NodeNil}
		}
		if idx, ok := w.strSeen[slot]; ok {
			return Node{Kind: NodeString, Index: idx}
		}
		idx := len(w.g.Strings)
		w.g.Strings = append(w.g.Strings, w.h.String(slot))
		w.strSeen[slot] = idx
		return Node{Kind: NodeString, Index: idx}
	case ain.TStruct:
		slot := v.Slot()
		if slot < 0 {
			return Node{Kind: NodeNil}
		}
		if idx, ok := w.structSeen[slot]; ok {
			return Node{Kind: NodeStruct, Index: idx}
		}
		p := w.h.Page(slot).(*page.Page)
		idx := len(w.g.Structs)
		w.g.Structs = append(w.g.Structs, StructRecord{}) // reserve, for self-referential safety
		w.structSeen[slot] = idx
		members := make([]Node, len(p.Vars))
		for i, mv := range p.Vars {
			var mt ain.Type
			if i < len(p.VarTypes) {
				mt = p.VarTypes[i]
			}
			members[i] = w.Walk(mt, mv)
		}
		w.g.Structs[idx] = StructRecord{StructType: p.StructType, Members: members}
		return Node{Kind: NodeStruct, Index: idx}
	case ain.TArray:
		slot := v.Slot()
		if slot < 0 {
			return Node{Kind: NodeNil}
		}
		if idx, ok := w.arraySeen[slot]; ok {
			return Node{Kind: NodeArray, Index: idx}
		}
		p := w.h.Page(slot).(*page.Page)
		idx := len(w.g.Arrays)
		w.g.Arrays = append(w.g.Arrays, ArrayRecord{})
		w.arraySeen[slot] = idx
		elements := make([]Node, len(p.Vars))
		elemType := p.ElemType
		if p.Rank > 1 {
			sub := ain.Type{Kind: ain.TArray, Rank: p.Rank - 1, Elem: &elemType, StructType: p.StructType}
			for i, ev := range p.Vars {
				elements[i] = w.Walk(sub, ev)
			}
		} else {
			for i, ev := range p.Vars {
				elements[i] = w.Walk(elemType, ev)
			}
		}
		w.g.Arrays[idx] = ArrayRecord{ElemType: elemType, Rank: p.Rank, StructType: p.StructType, Elements: elements}
		return Node{Kind: NodeArray, Index: idx}
	case ain.TDelegate:
		slot := v.Slot()
		if slot < 0 {
			return Node{Kind: NodeNil}
		}
		if idx, ok := w.dgSeen[slot]; ok {
			return Node{Kind: NodeDelegate, Index: idx}
		}
		p := w.h.Page(slot).(*page.Page)
		entries := make([]page.DelegateEntry, p.NumVars()/3)
		for i := range entries {
			entries[i] = page.DelegateAt(p, int32(i))
		}
		idx := len(w.g.Delegates)
		w.g.Delegates = append(w.g.Delegates, DelegateRecord{Entries: entries})
		w.dgSeen[slot] = idx
		return Node{Kind: NodeDelegate, Index: idx}
	default:
		return Node{Kind: NodeScalar, Scalar: v}
	}
}

// rebuilder is the inverse of walker: it materializes Graph nodes back
// into fresh heap slots, caching one slot per table index so shared
// structure is restored exactly once and re-referenced, matching §8's
// "After a round-trip ... every observable value is identical".
type rebuilder struct {
	h          *heap.Heap
	g          *Graph
	strSlot    map[int]int32
	structSlot map[int]int32
	arraySlot  map[int]int32
	dgSlot     map[int]int32
}

func newRebuilder(h *heap.Heap, g *Graph) *rebuilder {
	return &rebuilder{
		h:          h,
		g:          g,
		strSlot:    make(map[int]int32),
		structSlot: make(map[int]int32),
		arraySlot:  make(map[int]int32),
		dgSlot:     make(map[int]int32),
	}
}

// Rebuild materializes n (of declared type t) into a live Value.
func (rb *rebuilder) Rebuild(t ain.Type, n Node) value.Value {
	switch n.Kind {
	case NodeNil:
		return value.NoSlot
	case NodeScalar:
		return n.Scalar
	case NodeString:
		if slot, ok := rb.strSlot[n.Index]; ok {
			rb.h.Ref(slot)
			return value.SlotFrom(slot)
		}
		slot := rb.h.AllocString(rb.g.Strings[n.Index])
		rb.strSlot[n.Index] = slot
		return value.SlotFrom(slot)
	case NodeStruct:
		if slot, ok := rb.structSlot[n.Index]; ok {
			rb.h.Ref(slot)
			return value.SlotFrom(slot)
		}
		rec := rb.g.Structs[n.Index]
		p := &page.Page{Kind: page.KindStruct, StructType: rec.StructType, Vars: make([]value.Value, len(rec.Members))}
		slot := rb.h.AllocPage(p)
		rb.structSlot[n.Index] = slot
		for i, m := range rec.Members {
			p.Vars[i] = rb.Rebuild(ain.Type{}, m)
		}
		return value.SlotFrom(slot)
	case NodeArray:
		if slot, ok := rb.arraySlot[n.Index]; ok {
			rb.h.Ref(slot)
			return value.SlotFrom(slot)
		}
		rec := rb.g.Arrays[n.Index]
		p := &page.Page{Kind: page.KindArray, ElemType: rec.ElemType, Rank: rec.Rank, StructType: rec.StructType, Vars: make([]value.Value, len(rec.Elements))}
		slot := rb.h.AllocPage(p)
		rb.arraySlot[n.Index] = slot
		elemType := rec.ElemType
		if rec.Rank > 1 {
			sub := ain.Type{Kind: ain.TArray, Rank: rec.Rank - 1, Elem: &elemType, StructType: rec.StructType}
			for i, e := range rec.Elements {
				p.Vars[i] = rb.Rebuild(sub, e)
			}
		} else {
			for i, e := range rec.Elements {
				p.Vars[i] = rb.Rebuild(elemType, e)
			}
		}
		return value.SlotFrom(slot)
	case NodeDelegate:
		if slot, ok := rb.dgSlot[n.Index]; ok {
			rb.h.Ref(slot)
			return value.SlotFrom(slot)
		}
		rec := rb.g.Delegates[n.Index]
		p := page.NewDelegate()
		for _, e := range rec.Entries {
			page.DelegateAppend(p, e.Object, e.FuncIndex, e.Sequence)
		}
		slot := rb.h.AllocPage(p)
		rb.dgSlot[n.Index] = slot
		return value.SlotFrom(slot)
	default:
		return value.NoSlot
	}
}
