// Package verifier offline-checks a persisted sealed-event log against
// nothing but the cryptographic primitives and the trusted public keys —
// no running server, no network call, no trust in whatever process wrote
// the log. It mirrors the trust model of
// Mindburn-Labs-helm/core/pkg/verifier: the verifier trusts only Ed25519,
// SHA-256, and the canonicalization rules, never the pipeline that
// produced the artifacts it is checking.
package verifier

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/anchor"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/canonicalize"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/merkle"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

// jsonUnmarshalNumber decodes into v using json.Number for numeric
// literals, so canonicalization sees the same token shape the chain saw
// when it first sealed the event.
func jsonUnmarshalNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// VerifierVersion is reported in every Report, so a report can be matched
// back to the logic that produced it.
const VerifierVersion = "1.0.0"

// CheckResult is one ordered check's outcome, carrying a structured
// failure shape: an event id, a named check, what was expected, and
// what was actually observed.
type CheckResult struct {
	EventID   string `json:"event_id,omitempty"`
	CheckName string `json:"check_name"`
	Pass      bool   `json:"pass"`
	Expected  string `json:"expected,omitempty"`
	Observed  string `json:"observed,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Report is the total, always-produced result of a verification run. It
// never panics and never returns an error from Verify itself — a
// malformed log is a collection of failed checks, not a crashed verifier.
type Report struct {
	Verified      bool          `json:"verified"`
	VerifierVer   string        `json:"verifier_version"`
	EventsChecked int           `json:"events_checked"`
	Checks        []CheckResult `json:"checks"`
	IssueCount    int           `json:"issue_count"`
	Summary       string        `json:"summary"`
}

func (r *Report) add(results ...CheckResult) {
	for _, res := range results {
		r.Checks = append(r.Checks, res)
		if !res.Pass {
			r.IssueCount++
		}
	}
}

// Verify runs six ordered checks against events, in the order a real
// tamper would first become visible: canonical hashes, signatures,
// sequence continuity, the prev_hash chain, Merkle root reconstruction,
// then anchor proofs (if anchorStore is non-nil).
func Verify(events []chain.SealedEvent, keyring *vcpcrypto.KeyRing, anchorStore anchor.RecordStore, providers map[string]anchor.Provider) *Report {
	report := &Report{VerifierVer: VerifierVersion, EventsChecked: len(events)}

	report.add(checkCanonicalHashes(events)...)
	report.add(checkSignatures(events, keyring)...)
	report.add(checkSequenceContinuity(events)...)
	report.add(checkPrevHashChain(events)...)
	report.add(checkMerkleReconstruction(events)...)
	if anchorStore != nil {
		report.add(checkAnchorProofs(events, anchorStore, providers)...)
	}

	report.Verified = report.IssueCount == 0
	if report.Verified {
		report.Summary = fmt.Sprintf("all %d checks passed across %d events", len(report.Checks), len(events))
	} else {
		report.Summary = fmt.Sprintf("%d of %d checks failed across %d events", report.IssueCount, len(report.Checks), len(events))
	}
	return report
}

// CheckEvent runs the canonical-hash and signature checks against a
// single sealed event, for the online GET /vcp/verify/{event_id}
// endpoint — the same per-event logic Verify folds across the whole
// log, without requiring the rest of it.
func CheckEvent(ev chain.SealedEvent, keyring *vcpcrypto.KeyRing) []CheckResult {
	results := checkCanonicalHashes([]chain.SealedEvent{ev})
	results = append(results, checkSignatures([]chain.SealedEvent{ev}, keyring)...)
	return results
}

// checkCanonicalHashes recomputes each event's canonical-form SHA-256 and
// compares it to the persisted event_hash.
func checkCanonicalHashes(events []chain.SealedEvent) []CheckResult {
	results := make([]CheckResult, 0, len(events))
	for _, ev := range events {
		var payload any
		if len(ev.Payload) > 0 {
			if err := jsonUnmarshalNumber(ev.Payload, &payload); err != nil {
				results = append(results, CheckResult{
					EventID: ev.EventID, CheckName: "canonical_hash", Pass: false,
					Detail: fmt.Sprintf("payload is not valid JSON: %v", err),
				})
				continue
			}
		} else {
			payload = map[string]any{}
		}

		subset := canonicalize.Subset(ev.AccountID, ev.ClockSync, ev.EventID, ev.EventType,
			payload, ev.PolicyID, ev.PrevHash, ev.SystemID, ev.Tier, ev.Timestamp, ev.VCPVersion)
		canonical, err := canonicalize.JCS(subset)
		if err != nil {
			results = append(results, CheckResult{
				EventID: ev.EventID, CheckName: "canonical_hash", Pass: false,
				Detail: fmt.Sprintf("canonicalization failed: %v", err),
			})
			continue
		}
		sum := sha256.Sum256(canonical)
		computed := hex.EncodeToString(sum[:])

		results = append(results, CheckResult{
			EventID:   ev.EventID,
			CheckName: "canonical_hash",
			Pass:      computed == ev.EventHash,
			Expected:  ev.EventHash,
			Observed:  computed,
		})
	}
	return results
}

// checkSignatures verifies each event's signature was produced by the key
// it claims, under that exact signer_key_id — no best-effort fallback
// across every known key.
func checkSignatures(events []chain.SealedEvent, keyring *vcpcrypto.KeyRing) []CheckResult {
	results := make([]CheckResult, 0, len(events))
	for _, ev := range events {
		hashBytes, err := hex.DecodeString(ev.EventHash)
		if err != nil {
			results = append(results, CheckResult{
				EventID: ev.EventID, CheckName: "signature", Pass: false,
				Detail: fmt.Sprintf("event_hash is not valid hex: %v", err),
			})
			continue
		}

		ok, err := keyring.VerifyEvent(ev.SignerKeyID, ev.Signature, hashBytes)
		if err != nil {
			results = append(results, CheckResult{
				EventID: ev.EventID, CheckName: "signature", Pass: false,
				Detail: err.Error(),
			})
			continue
		}
		results = append(results, CheckResult{
			EventID:   ev.EventID,
			CheckName: "signature",
			Pass:      ok,
			Expected:  "valid signature under " + ev.SignerKeyID,
			Observed:  fmt.Sprintf("valid=%v", ok),
		})
	}
	return results
}

// checkSequenceContinuity requires sequence numbers 1..n with no gaps or
// repeats.
func checkSequenceContinuity(events []chain.SealedEvent) []CheckResult {
	results := make([]CheckResult, 0, len(events))
	var want uint64 = 1
	for _, ev := range events {
		results = append(results, CheckResult{
			EventID:   ev.EventID,
			CheckName: "sequence_continuity",
			Pass:      ev.Sequence == want,
			Expected:  fmt.Sprintf("%d", want),
			Observed:  fmt.Sprintf("%d", ev.Sequence),
		})
		want = ev.Sequence + 1
	}
	return results
}

// checkPrevHashChain requires event[i].prev_hash == event[i-1].event_hash,
// and "" for the first event.
func checkPrevHashChain(events []chain.SealedEvent) []CheckResult {
	results := make([]CheckResult, 0, len(events))
	prev := ""
	for _, ev := range events {
		results = append(results, CheckResult{
			EventID:   ev.EventID,
			CheckName: "prev_hash_chain",
			Pass:      ev.PrevHash == prev,
			Expected:  prev,
			Observed:  ev.PrevHash,
		})
		prev = ev.EventHash
	}
	return results
}

// checkMerkleReconstruction rebuilds the accumulator from scratch and
// confirms every event's recorded merkle_index matches its actual
// append-order position.
func checkMerkleReconstruction(events []chain.SealedEvent) []CheckResult {
	results := make([]CheckResult, 0, len(events))
	tree := merkle.New()
	for _, ev := range events {
		hashBytes, err := hex.DecodeString(ev.EventHash)
		if err != nil {
			results = append(results, CheckResult{
				EventID: ev.EventID, CheckName: "merkle_reconstruction", Pass: false,
				Detail: fmt.Sprintf("event_hash is not valid hex: %v", err),
			})
			continue
		}
		idx, _ := tree.Append(hashBytes)
		results = append(results, CheckResult{
			EventID:   ev.EventID,
			CheckName: "merkle_reconstruction",
			Pass:      idx == ev.MerkleIndex,
			Expected:  fmt.Sprintf("%d", ev.MerkleIndex),
			Observed:  fmt.Sprintf("%d", idx),
		})
	}
	return results
}

// checkAnchorProofs confirms every persisted anchor's recorded root
// matches the independently-recomputed root at that anchor's event
// count, and that the named provider accepts its own proof document
// (optional per tier).
func checkAnchorProofs(events []chain.SealedEvent, store anchor.RecordStore, providers map[string]anchor.Provider) []CheckResult {
	tree := merkle.New()
	for _, ev := range events {
		hashBytes, err := hex.DecodeString(ev.EventHash)
		if err != nil {
			continue
		}
		tree.Append(hashBytes)
	}

	var results []CheckResult
	for _, rec := range store.List() {
		recomputed, err := tree.RootAt(rec.EventCount)
		if err != nil {
			results = append(results, CheckResult{
				CheckName: "anchor_root", Pass: false,
				Detail: fmt.Sprintf("anchor %s: cannot recompute root at event count %d: %v", rec.AnchorID, rec.EventCount, err),
			})
			continue
		}
		observedRoot := hex.EncodeToString(recomputed[:])
		results = append(results, CheckResult{
			EventID:   rec.AnchorID,
			CheckName: "anchor_root",
			Pass:      observedRoot == rec.MerkleRoot,
			Expected:  rec.MerkleRoot,
			Observed:  observedRoot,
		})

		provider, ok := providers[rec.Provider]
		if !ok {
			results = append(results, CheckResult{
				EventID: rec.AnchorID, CheckName: "anchor_proof", Pass: false,
				Detail: fmt.Sprintf("no provider registered for %q", rec.Provider),
			})
			continue
		}
		proof, err := store.Proof(rec.AnchorID)
		if err != nil {
			results = append(results, CheckResult{
				EventID: rec.AnchorID, CheckName: "anchor_proof", Pass: false,
				Detail: err.Error(),
			})
			continue
		}
		valid, err := provider.Verify(rec.MerkleRoot, proof)
		results = append(results, CheckResult{
			EventID:   rec.AnchorID,
			CheckName: "anchor_proof",
			Pass:      err == nil && valid,
			Detail:    errString(err),
		})
	}
	return results
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
