// Package page implements the Page container of §3.3: global, local,
// struct, array and delegate objects, their variable initialization and
// finalization (§3.5), and the array/delegate operations of §4.2.
package page

import (
	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// Kind tags what a Page represents.
type Kind uint8

const (
	KindGlobal Kind = iota
	KindLocal
	KindStruct
	KindArray
	KindDelegate
)

// NoStructPage is the StructPage value for a Local page belonging to a
// plain (non-method) function call, per §3.4.
const NoStructPage int32 = -1

// Page is the ordered sequence of Values plus kind and metadata described
// in §3.3. The same type backs all five kinds; which metadata fields are
// meaningful depends on Kind.
type Page struct {
	Kind Kind
	Vars []value.Value

	// VarTypes holds the declared type of each entry in Vars, for
	// KindGlobal, KindLocal and KindStruct pages (finalization, §3.5,
	// needs the type to decide what to do with each slot). Nil for
	// KindArray (use ElemType for all elements) and KindDelegate (always
	// raw triples).
	VarTypes []ain.Type

	// ElemType is the element type of an Array page. Rank is the array's
	// rank (§3.3): a rank-1 page stores elements directly in Vars as heap
	// slots or scalars; rank>1 pages store, in Vars, the heap slot indices
	// of rank-(r-1) sub-array pages (a page tree, not contiguous memory).
	ElemType ain.Type
	Rank     int32

	// StructType names the struct declaration for KindStruct pages and
	// for KindArray pages whose ElemType.Kind == ain.TStruct; -1
	// otherwise.
	StructType int32

	// FuncIndex is the function this Local page was built for.
	FuncIndex int32
	// StructPage is the heap slot of the bound struct ("self") for a
	// method call's Local page, or NoStructPage for a plain function
	// call (§3.4, and the supplemented back-reference in SPEC_FULL.md).
	StructPage int32

	pool *Pool
}

// NumVars reports len(Vars) — the rank-1 array-element count invariant of
// §8 is array_numof(P,1) == P.NumVars().
func (p *Page) NumVars() int { return len(p.Vars) }

// finalizeVar applies the §3.5 policy for one declared type to the Value
// stored at index i, as part of destroying the whole page.
func finalizeVar(h *heap.Heap, t ain.Type, v value.Value, shutdown bool) {
	switch {
	case t.Kind == ain.TString, t.Kind == ain.TStruct, t.Kind == ain.TArray, t.Kind == ain.TDelegate:
		slot := v.Slot()
		if slot < 0 {
			return
		}
		if shutdown {
			h.ExitUnref(slot)
		} else {
			h.Unref(slot)
		}
	default:
		// Value / reference scalar: no action (§3.5).
	}
}

// Finalize implements heap.Pageish: it is called by heap.Unref/ExitUnref
// when this page's owning slot's ref count reaches zero. Per §3.3, struct
// destruction calls the struct's destructor BEFORE freeing members; that
// call-out is the responsibility of the interpreter (it alone can
// re-enter the dispatcher, §4.3.2/§9), so Finalize here only performs the
// member release — callers that need destructor semantics must invoke the
// struct's Dtor via vm.Call before calling heap.Unref on a struct page, or
// use DestroyStruct below which does both given a caller-supplied invoker.
func (p *Page) Finalize(h *heap.Heap, shutdown bool) {
	switch p.Kind {
	case KindGlobal, KindLocal, KindStruct:
		for i, v := range p.Vars {
			if i < len(p.VarTypes) {
				finalizeVar(h, p.VarTypes[i], v, shutdown)
			}
		}
	case KindArray:
		for _, v := range p.Vars {
			finalizeVar(h, arrayElemFinalizeType(p), v, shutdown)
		}
	case KindDelegate:
		// Delegate pages hold weak (object,function,sequence) references
		// (§9 "Cycles"); nothing to release.
	}
	p.release()
}

// arrayElemFinalizeType derives the type finalizeVar needs to finalize
// one element of an array page: heap-ref kinds need a Unref, scalars
// don't, matching §3.5 applied per-element.
func arrayElemFinalizeType(p *Page) ain.Type {
	return p.ElemType
}

// DestroyStruct runs dtor (if non-nil) then finalizes and frees the
// struct page at slot via h.Unref/ExitUnref, per §3.3's "struct
// destruction calls the struct's destructor (if any) BEFORE freeing
// members". dtor is a caller-supplied closure because invoking a
// bytecode destructor means re-entering the interpreter (vm.Call).
func DestroyStruct(h *heap.Heap, slot int32, shutdown bool, dtor func(structSlot int32) error) error {
	if !shutdown && dtor != nil {
		if err := dtor(slot); err != nil {
			return err
		}
	}
	if shutdown {
		h.ExitUnref(slot)
	} else {
		h.Unref(slot)
	}
	return nil
}

func (p *Page) release() {
	if p.pool == nil {
		return
	}
	p.pool.put(p)
}

// NewGlobal builds the single per-program Global page sized to len(types).
func NewGlobal(types []ain.Type) *Page {
	p := &Page{Kind: KindGlobal, Vars: make([]value.Value, len(types)), VarTypes: types}
	initVars(p.Vars, types)
	return p
}

// NewLocal builds a Local page for a call to fn (§4.3.2): sized to
// len(types) (the callee's declared variables, arguments first),
// structPage is the bound "self" slot or NoStructPage.
func NewLocal(pool *Pool, funcIndex int32, structPage int32, types []ain.Type) *Page {
	var p *Page
	if pool != nil {
		p = pool.get(KindLocal, len(types))
	}
	if p == nil {
		p = &Page{Kind: KindLocal, Vars: make([]value.Value, len(types))}
	} else {
		p.Kind = KindLocal
	}
	p.VarTypes = types
	p.FuncIndex = funcIndex
	p.StructPage = structPage
	p.pool = pool
	initVars(p.Vars, types)
	return p
}

// NewStruct builds a Struct page with NumVars == len(s.Members), per the
// §3.7 invariant. It does not invoke the constructor — callers construct
// after allocation, per §3.3.
func NewStruct(pool *Pool, structType int32, members []ain.Member) *Page {
	types := make([]ain.Type, len(members))
	for i, m := range members {
		types[i] = m.Type
	}
	var p *Page
	if pool != nil {
		p = pool.get(KindStruct, len(types))
	}
	if p == nil {
		p = &Page{Kind: KindStruct, Vars: make([]value.Value, len(types))}
	} else {
		p.Kind = KindStruct
	}
	p.VarTypes = types
	p.StructType = structType
	p.pool = pool
	initVars(p.Vars, types)
	return p
}

// initVars sets each declared variable to its zero value: 0 for scalars,
// value.NoSlot for heap-ref types (they are populated by the
// interpreter's construction code right after allocation).
func initVars(vars []value.Value, types []ain.Type) {
	for i, t := range types {
		if t.IsHeapRef() {
			vars[i] = value.NoSlot
		} else {
			vars[i] = 0
		}
	}
}

// Get reads Vars[i], bounds-checked per §3.7 (every array/page index must
// be < NumVars).
func (p *Page) Get(i int32) value.Value {
	if i < 0 || int(i) >= len(p.Vars) {
		panic(vmerr.NewFatal("page-get", 0, nil, vmerr.ErrHeapOOB))
	}
	return p.Vars[i]
}

// Set writes Vars[i], bounds-checked.
func (p *Page) Set(i int32, v value.Value) {
	if i < 0 || int(i) >= len(p.Vars) {
		panic(vmerr.NewFatal("page-set", 0, nil, vmerr.ErrHeapOOB))
	}
	p.Vars[i] = v
}
