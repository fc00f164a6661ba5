package save

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainrun/ainvm/ain"
	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
)

// TestGlobalSaveLoadApplyRoundTrip exercises the dedup graph walk: two
// globals pointing at the same struct slot must serialize to one table
// entry and, after Apply, the rebuilt globals must still share a slot.
func TestGlobalSaveLoadApplyRoundTrip(t *testing.T) {
	h := heap.New()

	structType := int32(0)
	shared := &page.Page{
		Kind:       page.KindStruct,
		StructType: structType,
		VarTypes:   []ain.Type{{Kind: ain.TInt}},
		Vars:       []value.Value{value.IntFrom(5)},
	}
	sharedSlot := h.AllocPage(shared)
	h.Ref(sharedSlot) // both globals below reference it

	globals := []ain.Global{
		{Name: "a", Type: ain.Type{Kind: ain.TStruct, StructType: structType}},
		{Name: "b", Type: ain.Type{Kind: ain.TStruct, StructType: structType}},
	}
	globalPage := &page.Page{
		Kind:     page.KindGlobal,
		VarTypes: []ain.Type{globals[0].Type, globals[1].Type},
		Vars:     []value.Value{value.SlotFrom(sharedSlot), value.SlotFrom(sharedSlot)},
	}

	dir := t.TempDir()
	store, err := OpenGlobalStore(filepath.Join(dir, "globals.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save("slot1", "k1", "", 0, h, globalPage, globals))

	snap, err := store.Load("slot1", "k1")
	require.NoError(t, err)
	assert.Len(t, snap.Graph.Structs, 1) // deduplicated to a single table entry

	h2 := heap.New()
	restoredPage := &page.Page{
		Kind:     page.KindGlobal,
		VarTypes: []ain.Type{globals[0].Type, globals[1].Type},
		Vars:     make([]value.Value, 2),
	}
	Apply(h2, snap, restoredPage, globals)

	assert.Equal(t, restoredPage.Vars[0].Slot(), restoredPage.Vars[1].Slot())
	restored := h2.Page(restoredPage.Vars[0].Slot()).(*page.Page)
	assert.Equal(t, int32(5), restored.Vars[0].Int())
}

func TestGlobalLoadRejectsKeyMismatch(t *testing.T) {
	h := heap.New()
	dir := t.TempDir()
	store, err := OpenGlobalStore(filepath.Join(dir, "globals.db"))
	require.NoError(t, err)
	defer store.Close()

	globalPage := &page.Page{Kind: page.KindGlobal}
	require.NoError(t, store.Save("slot1", "right-key", "", 0, h, globalPage, nil))

	_, err = store.Load("slot1", "wrong-key")
	assert.Error(t, err)
}

func TestGlobalGroupFilterSkipsOtherGroups(t *testing.T) {
	h := heap.New()
	globals := []ain.Global{
		{Name: "a", Type: ain.Type{Kind: ain.TInt}, Group: 1},
		{Name: "b", Type: ain.Type{Kind: ain.TInt}, Group: 2},
	}
	globalPage := &page.Page{
		Kind:     page.KindGlobal,
		VarTypes: []ain.Type{globals[0].Type, globals[1].Type},
		Vars:     []value.Value{value.IntFrom(1), value.IntFrom(2)},
	}

	dir := t.TempDir()
	store, err := OpenGlobalStore(filepath.Join(dir, "globals.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save("grouped", "k", "save-area", 1, h, globalPage, globals))
	snap, err := store.Load("grouped", "k")
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "a", snap.Entries[0].Name)
}
