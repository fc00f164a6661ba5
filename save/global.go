package save

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/akrylysov/pogreb"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/value"
	"github.com/ainrun/ainvm/vmerr"
)

// GlobalEntry is one exported global's snapshot record: name, declared
// type, and its walked value graph root (§6).
type GlobalEntry struct {
	Name string
	Type ain.Type
	Root Node
}

// GlobalSnapshot is the format-version-tagged, key-and-group-scoped
// globals snapshot of §6.
type GlobalSnapshot struct {
	Version string
	Key     string
	Group   string
	Graph   Graph
	Entries []GlobalEntry
}

// GlobalStore persists globals snapshots in an embedded
// github.com/akrylysov/pogreb key-value store, one record per (save name)
// keyed by its filename — pogreb is a pure-Go embedded KV store well
// suited to this format's "blob per save slot" access pattern (no
// transactions or range scans are needed, unlike the resume store).
type GlobalStore struct {
	db *pogreb.DB
}

// OpenGlobalStore opens (creating if absent) the pogreb database at dir.
func OpenGlobalStore(dir string) (*GlobalStore, error) {
	db, err := pogreb.Open(dir, nil)
	if err != nil {
		return nil, err
	}
	return &GlobalStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *GlobalStore) Close() error { return s.db.Close() }

// Save walks each exported global reachable from h's global page (per
// globalsList, in declaration order) and writes a GlobalSnapshot under
// name. If group is non-empty, only globals whose declared group index
// matches groupIndex are included — the supplemented group-filter
// behavior in SPEC_FULL.md ("globals not in the group are skipped
// entirely").
func (s *GlobalStore) Save(name, key, group string, groupIndex int32, h *heap.Heap, globalPage Vars, globalsList []ain.Global) error {
	w := newWalker(h, &Graph{})
	snap := GlobalSnapshot{Version: FormatVersion.String(), Key: key, Group: group}
	for i, g := range globalsList {
		if group != "" && g.Group != groupIndex {
			continue
		}
		root := w.Walk(g.Type, globalPage.Get(int32(i)))
		snap.Entries = append(snap.Entries, GlobalEntry{Name: g.Name, Type: g.Type, Root: root})
	}
	snap.Graph = *w.g

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&snap); err != nil {
		return fmt.Errorf("encode global snapshot: %w", err)
	}
	return s.db.Put([]byte(name), buf.Bytes())
}

// Load reads back a GlobalSnapshot written by Save, checking that its key
// matches wantKey — a mismatch is a DataError per §6 ("Keys must match on
// load; mismatch is fatal" — fatal to the containing syscall, not to the
// VM, per §7's DataError semantics).
func (s *GlobalStore) Load(name, wantKey string) (*GlobalSnapshot, error) {
	raw, err := s.db.Get([]byte(name))
	if err != nil {
		return nil, vmerr.NewData("read global snapshot "+name, err)
	}
	if raw == nil {
		return nil, vmerr.NewData("no such save: "+name, nil)
	}
	var snap GlobalSnapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, vmerr.NewData("decode global snapshot "+name, err)
	}
	if err := checkVersion(snap.Version); err != nil {
		return nil, err
	}
	if snap.Key != wantKey {
		return nil, vmerr.NewData(fmt.Sprintf("save key mismatch: want %q got %q", wantKey, snap.Key), nil)
	}
	return &snap, nil
}

// Apply rebuilds each entry of snap into fresh heap values and writes
// them into globalPage by name, skipping globals present in the snapshot
// but absent from globalsList (an older save against a newer image).
func Apply(h *heap.Heap, snap *GlobalSnapshot, globalPage Vars, globalsList []ain.Global) {
	byName := make(map[string]int32, len(globalsList))
	for i, g := range globalsList {
		byName[g.Name] = int32(i)
	}
	rb := newRebuilder(h, &snap.Graph)
	for _, e := range snap.Entries {
		idx, ok := byName[e.Name]
		if !ok {
			continue
		}
		globalPage.Set(idx, rb.Rebuild(e.Type, e.Root))
	}
}

// Vars is the minimal global-page accessor Save/Apply need, satisfied by
// *page.Page — kept as an interface so this package does not need to
// import page for anything beyond the graph walker's own use.
type Vars interface {
	Get(i int32) value.Value
	Set(i int32, v value.Value)
}
