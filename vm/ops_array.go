package vm

import (
	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/instr"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
)

func isArrayOp(op instr.Op) bool {
	switch op {
	case instr.OpAAlloc, instr.OpARealloc, instr.OpACopy, instr.OpAPushback,
		instr.OpAPopback, instr.OpAErase, instr.OpAInsert, instr.OpASort,
		instr.OpASortMem, instr.OpAFind, instr.OpANumOf:
		return true
	default:
		return false
	}
}

// execArray implements the array operation family of §4.2/§4.3.3,
// wiring page's generic array algorithms through the interpreter's
// struct-allocation and constructor re-entry hooks.
func (v *VM) execArray(op instr.Op) {
	switch op {
	case instr.OpAAlloc:
		rank := instr.ReadInt32(v.Image.Code, v.IP+2)
		dims := make([]int32, rank)
		for i := int32(rank) - 1; i >= 0; i-- {
			dims[i] = v.Operand.Pop().Int()
		}
		ref := v.Operand.PopRef()
		elemType, structType := v.arrayElemInfo(ref)
		p, err := page.AllocArray(v.Heap, v.Pool, rank, dims, elemType, structType, true, v.NewStructPage, v.constructorFor(structType))
		if err != nil {
			v.fatal("A_ALLOC", err)
		}
		slot := v.assignNewArrayPage(ref, p)
		v.Operand.Push(value.SlotFrom(slot))
	case instr.OpARealloc:
		rank := instr.ReadInt32(v.Image.Code, v.IP+2)
		dims := make([]int32, rank)
		for i := int32(rank) - 1; i >= 0; i-- {
			dims[i] = v.Operand.Pop().Int()
		}
		ref := v.Operand.PopRef()
		arr := v.arrayAt(ref)
		var elemType ain.Type
		var structType int32 = -1
		if arr != nil {
			elemType, structType = arr.ElemType, arr.StructType
		} else {
			elemType, structType = v.arrayElemInfo(ref)
		}
		p, err := page.ReallocArray(v.Heap, v.Pool, arr, rank, dims, true, v.NewStructPage, v.constructorFor(structType))
		if err != nil {
			v.fatal("A_REALLOC", err)
		}
		_ = elemType
		slot := v.assignNewArrayPage(ref, p)
		v.Operand.Push(value.SlotFrom(slot))
	case instr.OpACopy:
		n := v.Operand.Pop().Int()
		si := v.Operand.Pop().Int()
		src := v.Operand.Pop()
		di := v.Operand.Pop().Int()
		dst := v.Operand.Pop()
		dstPage := v.pageAt(dst.Slot())
		srcPage := v.pageAt(src.Slot())
		page.Copy(v.Heap, dstPage, di, srcPage, si, n, v.CopyPage)
	case instr.OpAPushback:
		val := v.Operand.Pop()
		arrV := v.Operand.Pop()
		p := v.pageAt(arrV.Slot())
		copied := page.VMCopy(v.Heap, p.ElemType, val, v.CopyPage)
		page.Pushback(v.Heap, p, copied)
	case instr.OpAPopback:
		arrV := v.Operand.Pop()
		page.Popback(v.Heap, v.pageAt(arrV.Slot()))
	case instr.OpAErase:
		idx := v.Operand.Pop().Int()
		arrV := v.Operand.Pop()
		_, ok := page.Erase(v.Heap, v.pageAt(arrV.Slot()), idx)
		v.Operand.Push(value.BoolFrom(ok))
	case instr.OpAInsert:
		val := v.Operand.Pop()
		idx := v.Operand.Pop().Int()
		arrV := v.Operand.Pop()
		p := v.pageAt(arrV.Slot())
		copied := page.VMCopy(v.Heap, p.ElemType, val, v.CopyPage)
		page.Insert(v.Heap, p, idx, copied)
	case instr.OpASort:
		_ = instr.ReadInt32(v.Image.Code, v.IP+2) // compare-function index; not used: A_SORT always sorts in natural order
		arrV := v.Operand.Pop()
		if err := page.Sort(v.Heap, v.pageAt(arrV.Slot()), nil); err != nil {
			v.fatal("A_SORT", err)
		}
	case instr.OpASortMem:
		memberIdx := instr.ReadInt32(v.Image.Code, v.IP+2)
		arrV := v.Operand.Pop()
		p := v.pageAt(arrV.Slot())
		key := func(structSlot int32) (value.Value, bool) {
			sp := v.pageAt(structSlot)
			mv := sp.Get(memberIdx)
			isStr := int(memberIdx) < len(sp.VarTypes) && sp.VarTypes[memberIdx].Kind == ain.TString
			return mv, isStr
		}
		if err := page.SortMem(v.Heap, p, key); err != nil {
			v.fatal("A_SORT_MEM", err)
		}
	case instr.OpAFind:
		end := v.Operand.Pop().Int()
		start := v.Operand.Pop().Int()
		needle := v.Operand.Pop()
		arrV := v.Operand.Pop()
		idx, err := page.Find(v.Heap, v.pageAt(arrV.Slot()), start, end, needle, nil)
		if err != nil {
			v.fatal("A_FIND", err)
		}
		v.Operand.Push(value.IntFrom(idx))
	case instr.OpANumOf:
		_ = instr.ReadInt32(v.Image.Code, v.IP+2) // rank argument: NumVars is always this level's element count (§3.7)
		arrV := v.Operand.Pop()
		p := v.pageAt(arrV.Slot())
		v.Operand.Push(value.IntFrom(int32(p.NumVars())))
	}
}

// arrayElemInfo reads the element type declared for the lvalue named by
// ref (an array variable), used by A_ALLOC when (re)allocating into it
// for the first time.
func (v *VM) arrayElemInfo(ref value.Ref) (ain.Type, int32) {
	p := v.pageAt(ref.Outer.Slot())
	t := varType(p, ref.Inner.Slot())
	if t.Elem != nil {
		return *t.Elem, t.StructType
	}
	return ain.Type{}, -1
}

// arrayAt returns the *page.Page currently occupying ref's lvalue, or nil
// if it is unset (NoSlot) — A_REALLOC's "no prior array" case.
func (v *VM) arrayAt(ref value.Ref) *page.Page {
	p := v.pageAt(ref.Outer.Slot())
	cur := p.Get(ref.Inner.Slot())
	if cur.Slot() < 0 {
		return nil
	}
	return v.pageAt(cur.Slot())
}

// assignNewArrayPage installs a freshly built array page p at ref,
// releasing whatever array previously occupied the lvalue.
func (v *VM) assignNewArrayPage(ref value.Ref, p *page.Page) int32 {
	owner := v.pageAt(ref.Outer.Slot())
	idx := ref.Inner.Slot()
	old := owner.Get(idx)
	if old.Slot() >= 0 {
		v.Heap.Unref(old.Slot())
	}
	if p == nil {
		owner.Set(idx, value.NoSlot)
		return -1
	}
	slot := v.Heap.AllocPage(p)
	v.nextSequence(slot)
	owner.Set(idx, value.SlotFrom(slot))
	return slot
}

// constructorFor returns the bytecode constructor hook for structType, or
// nil if it has none, for page's array-of-struct allocation path.
func (v *VM) constructorFor(structType int32) page.Constructor {
	if structType < 0 {
		return nil
	}
	s, ok := v.Image.Struct(structType)
	if !ok || s.Ctor < 0 {
		return nil
	}
	return func(structSlot int32) error {
		_, err := v.Call(s.Ctor, structSlot, nil)
		return err
	}
}
