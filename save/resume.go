package save

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// FrameRecord is one call-stack frame in a resume snapshot (§3.4/§6).
type FrameRecord struct {
	FuncIndex  int32
	CallIP     uint32
	ReturnIP   uint32
	LocalSlot  int32
	StructSlot int32
}

// SlotRecord is one heap slot's full state: ref count, kind, and — for a
// page slot — its page kind, metadata and Vars vector (§6's "pages
// serialize kind, type-index, per-variant metadata, and value vector").
// Resume snapshots dump the heap flat (no dedup graph): the slot array
// itself already is the dedup mechanism, since Vars entries that are heap
// references are just slot indices, preserved verbatim by round-tripping
// the whole array at the same indices.
type SlotRecord struct {
	Kind heap.Kind
	Ref  int32

	Str string // valid when Kind == heap.KindString

	PageKind   page.Kind // valid when Kind == heap.KindPage
	Vars       []int32
	VarTypes   []ain.Type
	ElemType   ain.Type
	Rank       int32
	StructType int32
	FuncIndex  int32
	StructPage int32
}

// ResumeSnapshot is the full live-VM-state snapshot of §6.
type ResumeSnapshot struct {
	Version string
	Key     string

	Heap         []SlotRecord
	Frames       []FrameRecord
	OperandStack []int32
	IP           uint32
}

// HeapSource is the minimal view of the live heap ResumeCapture needs,
// satisfied by *heap.Heap.
type HeapSource interface {
	Len() int
	Kind(i int32) heap.Kind
	RefCount(i int32) int32
	String(i int32) string
	Page(i int32) heap.Pageish
}

// Capture walks every slot of h and builds a ResumeSnapshot. frames and
// operand are supplied by the vm package (call stack and operand stack
// contents), since this package has no access to vm's live types.
func Capture(key string, h HeapSource, frames []FrameRecord, operand []int32, ip uint32) ResumeSnapshot {
	snap := ResumeSnapshot{
		Version:      FormatVersion.String(),
		Key:          key,
		Frames:       frames,
		OperandStack: operand,
		IP:           ip,
	}
	n := h.Len()
	snap.Heap = make([]SlotRecord, n)
	for i := 0; i < n; i++ {
		kind := h.Kind(int32(i))
		rec := SlotRecord{Kind: kind, Ref: h.RefCount(int32(i))}
		switch kind {
		case heap.KindString:
			rec.Str = h.String(int32(i))
		case heap.KindPage:
			p, ok := h.Page(int32(i)).(*page.Page)
			if !ok || p == nil {
				break
			}
			rec.PageKind = p.Kind
			rec.Vars = make([]int32, len(p.Vars))
			for j, v := range p.Vars {
				rec.Vars[j] = int32(v)
			}
			rec.VarTypes = p.VarTypes
			rec.ElemType = p.ElemType
			rec.Rank = p.Rank
			rec.StructType = p.StructType
			rec.FuncIndex = p.FuncIndex
			rec.StructPage = p.StructPage
		}
		snap.Heap[i] = rec
	}
	return snap
}

// ResumeStore persists resume snapshots in an embedded go.etcd.io/bbolt
// database: one bucket ("resume"), one key per save name, value is the
// gob-encoded ResumeSnapshot. bbolt's single-writer transactions are a
// good match for a snapshot that must be written or read atomically as
// one unit.
type ResumeStore struct {
	db *bbolt.DB
}

var resumeBucket = []byte("resume")

// OpenResumeStore opens (creating if absent) the bbolt database at path.
func OpenResumeStore(path string) (*ResumeStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resumeBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &ResumeStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *ResumeStore) Close() error { return s.db.Close() }

// Save writes snap under name.
func (s *ResumeStore) Save(name string, snap ResumeSnapshot) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return fmt.Errorf("encode resume snapshot: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(resumeBucket).Put([]byte(name), buf.Bytes())
	})
}

// Load reads back a ResumeSnapshot, checking its key against wantKey
// (§6: "Keys must match on load; mismatch is fatal" to the containing
// syscall, per §7's DataError kind).
func (s *ResumeStore) Load(name, wantKey string) (*ResumeSnapshot, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(resumeBucket).Get([]byte(name))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, vmerr.NewData("no such resume save: "+name, nil)
	}
	var snap ResumeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, vmerr.NewData("decode resume snapshot "+name, err)
	}
	if err := checkVersion(snap.Version); err != nil {
		return nil, err
	}
	if snap.Key != wantKey {
		return nil, vmerr.NewData(fmt.Sprintf("save key mismatch: want %q got %q", wantKey, snap.Key), nil)
	}
	return &snap, nil
}

// Restore rebuilds a fresh Heap (plus frame/operand/IP values) from snap.
// It returns the heap and the raw frame/operand/IP data for the vm
// package to install into its own CallStack/OperandStack types. Since a
// resume snapshot dumps the heap flat and at the original slot indices
// (§6), cross-references between slots (a Vars entry naming another
// slot) need no fix-up: they are already correct by construction.
func Restore(snap *ResumeSnapshot) (*heap.Heap, []FrameRecord, []int32, uint32) {
	h := heap.NewForRestore()
	h.RestoreSlots(len(snap.Heap))
	for i, rec := range snap.Heap {
		switch rec.Kind {
		case heap.KindString:
			h.RestoreString(int32(i), rec.Ref, rec.Str)
		case heap.KindPage:
			p := &page.Page{
				Kind:       rec.PageKind,
				VarTypes:   rec.VarTypes,
				ElemType:   rec.ElemType,
				Rank:       rec.Rank,
				StructType: rec.StructType,
				FuncIndex:  rec.FuncIndex,
				StructPage: rec.StructPage,
				Vars:       make([]value.Value, len(rec.Vars)),
			}
			for j, v := range rec.Vars {
				p.Vars[j] = value.Value(v)
			}
			h.RestorePage(int32(i), rec.Ref, p)
		}
	}
	return h, snap.Frames, snap.OperandStack, snap.IP
}
