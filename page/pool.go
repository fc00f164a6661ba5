package page

import "github.com/ainrun/ainvm/ain"

// Pool caches freed pages bucketed by (kind, variable count) so the
// common call/return and array-resize paths avoid allocating a fresh
// Page and Vars slice every time (the supplemented optimization in
// SPEC_FULL.md, grounded in xsystem4's page.c per-size pool arrays).
// Disabling it (passing a nil *Pool everywhere) must not change any
// observable behavior — it is purely an allocation-count optimization,
// per §4.2's "correctness must not depend on pool reuse".
type Pool struct {
	buckets map[poolKey][]*Page
}

type poolKey struct {
	kind Kind
	size int
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{buckets: make(map[poolKey][]*Page)}
}

func (pl *Pool) get(kind Kind, size int) *Page {
	k := poolKey{kind, size}
	bucket := pl.buckets[k]
	n := len(bucket)
	if n == 0 {
		return nil
	}
	p := bucket[n-1]
	pl.buckets[k] = bucket[:n-1]
	return p
}

func (pl *Pool) put(p *Page) {
	k := poolKey{p.Kind, len(p.Vars)}
	// Clear metadata so a reused Page never leaks the previous owner's
	// type/slot information before the allocator repopulates it.
	p.VarTypes = nil
	p.StructType = 0
	p.FuncIndex = 0
	p.StructPage = NoStructPage
	p.ElemType = ain.Type{}
	p.Rank = 0
	pl.buckets[k] = append(pl.buckets[k], p)
}
