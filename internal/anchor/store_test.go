package anchor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ListOrdersByCreatedAt(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)

	require.NoError(t, store.Save(Record{AnchorID: "a2", CreatedAt: "2026-08-03T11:00:00Z", EventCount: 5}, nil))
	require.NoError(t, store.Save(Record{AnchorID: "a1", CreatedAt: "2026-08-03T10:00:00Z", EventCount: 3}, nil))

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].AnchorID)
	assert.Equal(t, "a2", list[1].AnchorID)
}

func TestStore_TotalAnchoredCountIsHighestEventCount(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)

	require.NoError(t, store.Save(Record{AnchorID: "a1", CreatedAt: "2026-08-03T10:00:00Z", EventCount: 3}, nil))
	require.NoError(t, store.Save(Record{AnchorID: "a2", CreatedAt: "2026-08-03T11:00:00Z", EventCount: 7}, nil))

	assert.Equal(t, 7, store.TotalAnchoredCount())
}

func TestStore_LatestPicksMostRecentlyCreated(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)

	require.NoError(t, store.Save(Record{AnchorID: "a1", CreatedAt: "2026-08-03T10:00:00Z"}, nil))
	require.NoError(t, store.Save(Record{AnchorID: "a2", CreatedAt: "2026-08-03T11:00:00Z"}, nil))

	latest, found := store.Latest()
	require.True(t, found)
	assert.Equal(t, "a2", latest.AnchorID)
}

func TestStore_ReloadsPersistedIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "anchors")
	store, err := OpenStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(Record{AnchorID: "a1", CreatedAt: "2026-08-03T10:00:00Z", EventCount: 3}, map[string]any{"k": "v"}))

	reopened, err := OpenStore(dir)
	require.NoError(t, err)
	rec, ok := reopened.Get("a1")
	require.True(t, ok)
	assert.Equal(t, 3, rec.EventCount)

	proof, err := reopened.Proof("a1")
	require.NoError(t, err)
	assert.Equal(t, "v", proof["k"])
}
