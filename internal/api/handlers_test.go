package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/anchor"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/eventlog"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

func newTestPipeline(t *testing.T) (*Pipeline, *eventlog.FileLog) {
	t.Helper()
	signer, err := vcpcrypto.NewEd25519Signer("key-1")
	require.NoError(t, err)

	log, err := eventlog.Open(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)

	c := chain.New(signer, log)

	store, err := anchor.OpenStore(filepath.Join(t.TempDir(), "anchors"))
	require.NoError(t, err)

	provider := anchor.NewLocalFileProvider(t.TempDir())
	sched := anchor.NewScheduler(c, store, provider, 0, nil)
	providers := map[string]anchor.Provider{"local": provider}

	ring := vcpcrypto.NewKeyRing()
	ring.AddKey(signer.KeyID(), signer.PublicKeyHex())

	p := NewPipeline(c, log, store, sched, signer, ring, providers, "gold", nil)
	return p, log
}

func validEventBody() []byte {
	body, _ := json.Marshal(map[string]any{
		"event_id":   "evt-1",
		"timestamp":  "2026-08-03T10:00:00.000Z",
		"event_type": "ORDER_NEW",
		"tier":       "GOLD",
		"policy_id":  "policy-1",
		"clock_sync": "NTP_SYNCED",
		"system_id":  "sys-1",
		"account_id": "acct-1",
		"payload":    map[string]any{"symbol": "AAPL"},
	})
	return body
}

func TestHandleEvent_AcceptsValidEvent(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("POST", "/vcp/event", bytes.NewReader(validEventBody()))
	w := httptest.NewRecorder()
	p.HandleEvent(w, req)

	require.Equal(t, 200, w.Code)
	var resp ingestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "evt-1", resp.EventID)
	assert.NotEmpty(t, resp.Signature)
}

func TestHandleEvent_RejectsMissingFields(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("POST", "/vcp/event", bytes.NewReader([]byte(`{"event_id":"evt-1"}`)))
	w := httptest.NewRecorder()
	p.HandleEvent(w, req)

	assert.Equal(t, 400, w.Code)
}

func TestHandleEvent_RejectsWrongMethod(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("GET", "/vcp/event", nil)
	w := httptest.NewRecorder()
	p.HandleEvent(w, req)

	assert.Equal(t, 405, w.Code)
}

func TestHandleVerifyEvent_ReturnsValidForUntamperedEvent(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("POST", "/vcp/event", bytes.NewReader(validEventBody()))
	w := httptest.NewRecorder()
	p.HandleEvent(w, req)
	require.Equal(t, 200, w.Code)

	req2 := httptest.NewRequest("GET", "/vcp/verify/evt-1", nil)
	w2 := httptest.NewRecorder()
	p.HandleVerifyEvent(w2, req2)

	require.Equal(t, 200, w2.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["valid"])
}

func TestHandleVerifyEvent_NotFound(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("GET", "/vcp/verify/no-such-event", nil)
	w := httptest.NewRecorder()
	p.HandleVerifyEvent(w, req)

	assert.Equal(t, 404, w.Code)
}

func TestHandleProof_ReturnsInclusionPath(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("POST", "/vcp/event", bytes.NewReader(validEventBody()))
	w := httptest.NewRecorder()
	p.HandleEvent(w, req)
	require.Equal(t, 200, w.Code)

	req2 := httptest.NewRequest("GET", "/vcp/proof/evt-1", nil)
	w2 := httptest.NewRecorder()
	p.HandleProof(w2, req2)

	require.Equal(t, 200, w2.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["tree_size"])
}

func TestHandleHealth_ReportsSignerReady(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	p.HandleHealth(w, req)

	require.Equal(t, 200, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["signer_ready"])
	assert.Equal(t, "gold", resp["tier"])
}

func TestHandleListEvents_Paginates(t *testing.T) {
	p, _ := newTestPipeline(t)
	for i := 0; i < 3; i++ {
		body := validEventBody()
		var m map[string]any
		json.Unmarshal(body, &m)
		m["event_id"] = "evt-" + string(rune('a'+i))
		body, _ = json.Marshal(m)

		req := httptest.NewRequest("POST", "/vcp/event", bytes.NewReader(body))
		w := httptest.NewRecorder()
		p.HandleEvent(w, req)
		require.Equal(t, 200, w.Code)
	}

	req := httptest.NewRequest("GET", "/vcp/events?offset=1&limit=1", nil)
	w := httptest.NewRecorder()
	p.HandleListEvents(w, req)

	require.Equal(t, 200, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["total"])
	events, ok := resp["events"].([]any)
	require.True(t, ok)
	assert.Len(t, events, 1)
}

func TestHandleKeys_ListsRegisteredKeys(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("GET", "/vcp/keys", nil)
	w := httptest.NewRecorder()
	p.HandleKeys(w, req)

	require.Equal(t, 200, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	keys, ok := resp["keys"].([]any)
	require.True(t, ok)
	require.Len(t, keys, 1)
	doc := keys[0].(map[string]any)
	assert.Equal(t, "Ed25519", doc["algorithm"])
}

func TestHandleAnchorStatus_ReportsPendingCount(t *testing.T) {
	p, _ := newTestPipeline(t)

	req := httptest.NewRequest("POST", "/vcp/event", bytes.NewReader(validEventBody()))
	w := httptest.NewRecorder()
	p.HandleEvent(w, req)
	require.Equal(t, 200, w.Code)

	req2 := httptest.NewRequest("GET", "/vcp/anchor/status", nil)
	w2 := httptest.NewRecorder()
	p.HandleAnchorStatus(w2, req2)

	require.Equal(t, 200, w2.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["pending_count"])
	assert.Equal(t, "local", resp["provider"])
}
