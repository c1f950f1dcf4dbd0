// Package chain implements the hash-chained, Merkle-accumulated,
// digitally-signed event ledger at the center of the evidence pipeline:
// every sealed event links to its predecessor by hash, is signed under a
// tracked key, and is appended to a Merkle accumulator for later anchoring.
package chain

import "encoding/json"

// SupportedVCPVersion is stamped onto every sealed event that arrives
// without a vcp_version.
const SupportedVCPVersion = "1.1"

// Event is the caller-supplied input to Seal. Every field is required
// except VCPVersion, which Seal fills with SupportedVCPVersion when empty,
// and Payload's shape, which is opaque to the chain and passed through
// canonicalization unchanged.
type Event struct {
	EventID    string          `json:"event_id"`
	Timestamp  string          `json:"timestamp"`
	EventType  string          `json:"event_type"`
	Tier       string          `json:"tier"`
	PolicyID   string          `json:"policy_id"`
	ClockSync  string          `json:"clock_sync"`
	SystemID   string          `json:"system_id"`
	AccountID  string          `json:"account_id"`
	Payload    json.RawMessage `json:"payload"`
	VCPVersion string          `json:"vcp_version,omitempty"`
}

// SealedEvent is an Event after it has passed through the chain: hashed,
// signed, sequenced, linked to its predecessor, and staged for Merkle
// inclusion.
type SealedEvent struct {
	Event

	EventHash   string `json:"event_hash"`
	Signature   string `json:"signature"`
	SignerKeyID string `json:"signer_key_id"`
	PrevHash    string `json:"prev_hash,omitempty"`
	Sequence    uint64 `json:"sequence"`
	MerkleIndex int    `json:"merkle_index"`
	ReceivedAt  string `json:"received_at"`
}

// KnownEventTypes enumerates the exhaustive event_type validation set.
// The wider vocabulary the original Python reference tracks
// (ORDER_PARTIALLY_FILLED, POSITION_OPEN, ALGO_SIGNAL, RISK_LIMIT_BREACH,
// SYSTEM_START, and friends) is not reintroduced here: these four values
// are the required field's domain, not an illustrative sample, so
// validation treats it as closed and any widening is a deliberate
// schema change, not a bug fix.
var KnownEventTypes = map[string]bool{
	"ORDER_NEW":             true,
	"ORDER_FILLED":          true,
	"POSITION_CLOSE":        true,
	"ALGO_PARAMETER_CHANGE": true,
}
