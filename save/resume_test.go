package save

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ainrun/ainvm/heap"
	"github.com/ainrun/ainvm/page"
	"github.com/ainrun/ainvm/value"
)

// TestCaptureRestoreRoundTrip builds a small heap with a string slot and a
// local page referencing it, captures a snapshot, restores it into a fresh
// heap, and checks the restored state matches slot-for-slot — the resume
// path never renumbers slots, so cross-references need no fix-up.
func TestCaptureRestoreRoundTrip(t *testing.T) {
	h := heap.New()
	h.SetGlobalPage(page.NewGlobal(nil))

	strSlot := h.AllocString("hello")

	local := page.NewLocal(nil, 3, page.NoStructPage, nil)
	local.Vars = []value.Value{value.IntFrom(42), value.SlotFrom(strSlot)}
	localSlot := h.AllocPage(local)

	frames := []FrameRecord{{FuncIndex: 3, CallIP: 10, ReturnIP: 20, LocalSlot: localSlot, StructSlot: page.NoStructPage}}
	operand := []int32{7, 8, 9}

	snap := Capture("save-key", h, frames, operand, 0x100)
	require.Equal(t, FormatVersion.String(), snap.Version)
	require.Equal(t, h.Len(), len(snap.Heap))

	restored, restoredFrames, restoredOperand, restoredIP := Restore(&snap)

	assert.Equal(t, "hello", restored.String(strSlot))
	assert.Equal(t, h.RefCount(strSlot), restored.RefCount(strSlot))

	p, ok := restored.Page(localSlot).(*page.Page)
	require.True(t, ok)
	assert.Equal(t, int32(42), p.Vars[0].Int())
	assert.Equal(t, strSlot, p.Vars[1].Slot())

	assert.Equal(t, frames, restoredFrames)
	assert.Equal(t, operand, restoredOperand)
	assert.Equal(t, uint32(0x100), restoredIP)
}

func TestCheckVersionRejectsMalformedTag(t *testing.T) {
	snap := ResumeSnapshot{Version: "bogus-version", Key: "k"}
	err := checkVersion(snap.Version)
	assert.Error(t, err)
}
