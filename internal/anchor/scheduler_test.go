package anchor

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

type countingLog struct{ n int }

func (c *countingLog) Append(ev chain.SealedEvent) error { c.n++; return nil }

type flakyProvider struct {
	name       string
	failTimes  int32
	calls      int32
}

func (p *flakyProvider) Name() string { return p.name }

func (p *flakyProvider) Anchor(root string) (*Result, error) {
	n := atomic.AddInt32(&p.calls, 1)
	if n <= atomic.LoadInt32(&p.failTimes) {
		return nil, assertTransientError{}
	}
	return &Result{Success: true, Provider: p.name, MerkleRoot: root, Timestamp: nowRFC3339(), AnchorID: "anchor-1"}, nil
}

func (p *flakyProvider) Verify(root string, proof map[string]any) (bool, error) { return true, nil }

type assertTransientError struct{}

func (assertTransientError) Error() string { return "transient provider failure" }

func newTestSchedulerChain(t *testing.T) *chain.HashChain {
	t.Helper()
	signer, err := vcpcrypto.NewEd25519Signer("key-1")
	require.NoError(t, err)
	return chain.New(signer, &countingLog{})
}

func TestScheduler_TickAnchorsCurrentRoot(t *testing.T) {
	c := newTestSchedulerChain(t)
	_, err := c.Seal(chain.Event{EventID: "e1", EventType: "ORDER_NEW", Timestamp: "t", Tier: "gold", PolicyID: "p", ClockSync: "ntp", SystemID: "s", AccountID: "a"})
	require.NoError(t, err)

	store, err := OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)

	provider := &flakyProvider{name: "test"}
	sched := NewScheduler(c, store, provider, time.Hour, nil)

	rec, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.EventCount)
	assert.Equal(t, StatusConfirmed, rec.Status)
}

func TestScheduler_TickIsNoopWhenNothingNew(t *testing.T) {
	c := newTestSchedulerChain(t)
	store, err := OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)

	provider := &flakyProvider{name: "test"}
	sched := NewScheduler(c, store, provider, time.Hour, nil)

	rec, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", rec.AnchorID)
	assert.Equal(t, int32(0), provider.calls)
}

func TestScheduler_RetriesTransientFailures(t *testing.T) {
	c := newTestSchedulerChain(t)
	_, err := c.Seal(chain.Event{EventID: "e1", EventType: "ORDER_NEW", Timestamp: "t", Tier: "gold", PolicyID: "p", ClockSync: "ntp", SystemID: "s", AccountID: "a"})
	require.NoError(t, err)

	store, err := OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)

	provider := &flakyProvider{name: "test", failTimes: 2}
	sched := NewScheduler(c, store, provider, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec, err := sched.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, rec.Status)
	assert.Equal(t, int32(3), provider.calls)
}

func TestScheduler_CumulativeAnchorsNeverShrinkCoverage(t *testing.T) {
	c := newTestSchedulerChain(t)
	store, err := OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)
	provider := &flakyProvider{name: "test"}
	sched := NewScheduler(c, store, provider, time.Hour, nil)

	for i := 0; i < 3; i++ {
		_, err := c.Seal(chain.Event{EventID: "e", EventType: "ORDER_NEW", Timestamp: "t", Tier: "gold", PolicyID: "p", ClockSync: "ntp", SystemID: "s", AccountID: "a"})
		require.NoError(t, err)
	}
	first, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.EventCount)
	assert.Equal(t, 0, first.PrevAnchorCount)
	assert.Equal(t, 3, c.Tree().Size(), "the accumulator must not be reset after anchoring")

	for i := 0; i < 2; i++ {
		_, err := c.Seal(chain.Event{EventID: "e", EventType: "ORDER_NEW", Timestamp: "t", Tier: "gold", PolicyID: "p", ClockSync: "ntp", SystemID: "s", AccountID: "a"})
		require.NoError(t, err)
	}
	second, err := sched.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, second.EventCount, "second anchor must cumulatively cover all 5 events, not just the 2 new ones")
	assert.Equal(t, 3, second.PrevAnchorCount, "the window newly covered by the second anchor starts where the first left off")
}
