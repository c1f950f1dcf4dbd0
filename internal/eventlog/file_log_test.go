package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
)

func sealedEvent(seq uint64, prevHash string) chain.SealedEvent {
	return chain.SealedEvent{
		Event: chain.Event{
			EventID:   "evt",
			EventType: "ORDER_NEW",
			Timestamp: "2026-08-03T10:00:00.000Z",
		},
		EventHash: "hash-" + string(rune('a'+seq)),
		PrevHash:  prevHash,
		Sequence:  seq,
	}
}

func TestFileLog_AppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	log, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, log.Append(sealedEvent(1, "")))
	require.NoError(t, log.Append(sealedEvent(2, "hash-a")))
	require.NoError(t, log.Close())

	replayed, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, uint64(1), replayed[0].Sequence)
	assert.Equal(t, uint64(2), replayed[1].Sequence)
	assert.Equal(t, "hash-a", replayed[1].PrevHash)
}

func TestReadAll_MissingFileReturnsEmpty(t *testing.T) {
	events, err := ReadAll(filepath.Join(t.TempDir(), "does-not-exist.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFileLog_LookupFindsMostRecentMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := Open(path)
	require.NoError(t, err)

	ev1 := sealedEvent(1, "")
	ev1.EventID = "dup"
	ev2 := sealedEvent(2, "hash-a")
	ev2.EventID = "dup"
	require.NoError(t, log.Append(ev1))
	require.NoError(t, log.Append(ev2))
	require.NoError(t, log.Close())

	log2, err := Open(path)
	require.NoError(t, err)
	found, ok, err := log2.Lookup("dup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), found.Sequence)

	_, ok, err = log2.Lookup("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileLog_ListPaginatesByOffsetAndLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, log.Append(sealedEvent(i, "")))
	}
	require.NoError(t, log.Close())

	log2, err := Open(path)
	require.NoError(t, err)

	page, total, err := log2.List(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].Sequence)
	assert.Equal(t, uint64(3), page[1].Sequence)

	page, _, err = log2.List(10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}
