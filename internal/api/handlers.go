package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/verifier"
)

// Version is reported by /health.
const Version = "0.1.0"

const maxEventBodyBytes = 1 << 20 // 1MB

// ingestResponse is the success envelope for POST /vcp/event.
type ingestResponse struct {
	Success     bool   `json:"success"`
	EventID     string `json:"event_id"`
	EventHash   string `json:"event_hash"`
	Signature   string `json:"signature"`
	MerkleIndex int    `json:"merkle_index"`
}

// HandleEvent implements POST /vcp/event: decode, validate, and seal one
// inbound event. Auth (401) is the HTTP shell's responsibility and 429
// comes from the router's rate-limit middleware — this handler only
// produces 400/405/500.
func (p *Pipeline) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEventBodyBytes)
	var ev chain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeBadRequest(w, r, "request body is not valid JSON: "+err.Error())
		return
	}

	if err := validateEvent(ev); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	sealed, err := p.Chain.Seal(ev)
	if err != nil {
		// A canonicalization-kind failure (non-representable payload) is
		// the caller's fault, not the server's; everything else (signing,
		// durable write) is an internal error.
		if strings.Contains(err.Error(), "canonicalization") || strings.Contains(err.Error(), "payload is not valid JSON") {
			writeBadRequest(w, r, err.Error())
			return
		}
		writeInternal(w, r, p.Logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ingestResponse{
		Success:     true,
		EventID:     sealed.EventID,
		EventHash:   sealed.EventHash,
		Signature:   sealed.Signature,
		MerkleIndex: sealed.MerkleIndex,
	})
}

// HandleVerifyEvent implements GET /vcp/verify/{event_id}: recompute the
// canonical hash and signature for one persisted event.
func (p *Pipeline) HandleVerifyEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	eventID := pathTail(r.URL.Path, "/vcp/verify/")
	if eventID == "" {
		writeBadRequest(w, r, "missing event_id in path")
		return
	}

	ev, found, err := p.Reader.Lookup(eventID)
	if err != nil {
		writeInternal(w, r, p.Logger, err)
		return
	}
	if !found {
		writeNotFound(w, r, "no sealed event with that event_id")
		return
	}

	results := verifier.CheckEvent(ev, p.KeyRing)
	checks := make(map[string]bool, len(results))
	valid := true
	for _, c := range results {
		checks[c.CheckName] = c.Pass
		valid = valid && c.Pass
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"event_id": eventID,
		"valid":    valid,
		"checks":   checks,
	})
}

// proofStep is the wire shape of one audit-path entry: hash and side.
type proofStep struct {
	Hash string `json:"hash"`
	Side string `json:"side"`
}

// HandleProof implements GET /vcp/proof/{event_id}: the RFC 6962
// inclusion proof for one persisted event against the chain's current
// tree size.
func (p *Pipeline) HandleProof(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	eventID := pathTail(r.URL.Path, "/vcp/proof/")
	if eventID == "" {
		writeBadRequest(w, r, "missing event_id in path")
		return
	}

	ev, found, err := p.Reader.Lookup(eventID)
	if err != nil {
		writeInternal(w, r, p.Logger, err)
		return
	}
	if !found {
		writeNotFound(w, r, "no sealed event with that event_id")
		return
	}

	treeSize := p.Chain.Size()
	proof, err := p.Chain.InclusionProofAt(ev.MerkleIndex, treeSize)
	if err != nil {
		writeInternal(w, r, p.Logger, err)
		return
	}

	path := make([]proofStep, 0, len(proof.Path))
	for _, step := range proof.Path {
		side := "left"
		if step.SiblingIsRight {
			side = "right"
		}
		path = append(path, proofStep{Hash: hex.EncodeToString(step.SiblingHash[:]), Side: side})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"leaf_index": proof.LeafIndex,
		"tree_size":  proof.TreeSize,
		"audit_path": path,
		"root":       hex.EncodeToString(proof.Root[:]),
	})
}

// HandleAnchorForce implements POST /vcp/anchor/force: trigger an anchor
// attempt immediately, for testing. It bounds the attempt to a
// window shorter than the provider's unbounded retry policy so the HTTP
// request doesn't hang forever; a window timeout does not lose the
// pending anchor — the next force call or scheduled tick picks it back up,
// since nothing is persisted until a provider call actually succeeds.
func (p *Pipeline) HandleAnchorForce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 25*time.Second)
	defer cancel()

	rec, err := p.Scheduler.ForceAnchor(ctx)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accepted": true,
			"detail":   "anchor submission did not complete within the request window; it will keep retrying",
		})
		return
	}
	if rec.AnchorID == "" {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"anchored": false,
			"detail":   "nothing new to anchor since the last anchor",
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"anchored": true, "anchor": rec})
}

// HandleHealth implements GET /health.
func (p *Pipeline) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"version":        Version,
		"tier":           p.Tier,
		"signer_ready":   p.Signer != nil,
		"events_pending": p.pendingCount(),
	})
}

// HandleListEvents implements GET /vcp/events — a paginated listing of
// sealed events.
func (p *Pipeline) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	offset := parseIntParam(r, "offset", 0)
	limit := parseIntParam(r, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	events, total, err := p.Reader.List(offset, limit)
	if err != nil {
		writeInternal(w, r, p.Logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"events": events,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

// HandleAnchorStatus implements GET /vcp/anchor/status — last/next anchor
// time, pending leaf count, current root, and configured provider.
func (p *Pipeline) HandleAnchorStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}

	size, root := p.Chain.Snapshot()
	resp := map[string]any{
		"provider":      p.Scheduler.Provider(),
		"interval":      p.Scheduler.Interval().String(),
		"current_root":  hex.EncodeToString(root[:]),
		"tree_size":     size,
		"pending_count": p.pendingCount(),
	}
	if lastTick, ok := p.Scheduler.LastTickAt(); ok {
		resp["last_tick_at"] = lastTick.UTC().Format(time.RFC3339)
		resp["next_tick_at"] = lastTick.Add(p.Scheduler.Interval()).UTC().Format(time.RFC3339)
	}
	if latest, ok := p.Store.Latest(); ok {
		resp["last_anchor_id"] = latest.AnchorID
		resp["last_anchored_count"] = latest.EventCount
		resp["last_anchored_at"] = latest.ConfirmedAt
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// keyDocument is the public key export persisted format.
type keyDocument struct {
	KeyID     string `json:"key_id"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
}

// HandleKeys implements GET /vcp/keys — every public key the verifier's
// key ring currently trusts, including rotated-out keys still needed to
// verify old events.
func (p *Pipeline) HandleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, r)
		return
	}
	ids := p.KeyRing.KeyIDs()
	docs := make([]keyDocument, 0, len(ids))
	for _, id := range ids {
		pub, ok := p.KeyRing.PublicKeyHex(id)
		if !ok {
			continue
		}
		docs = append(docs, keyDocument{KeyID: id, Algorithm: "Ed25519", PublicKey: pub})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"keys": docs})
}

func pathTail(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
