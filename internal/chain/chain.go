package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/canonicalize"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/merkle"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

// ErrSequenceGap is returned by Restore when the persisted log's sequence
// numbers are not contiguous starting at 1.
var ErrSequenceGap = fmt.Errorf("chain: sequence gap detected during restore")

// EventLog is the durability boundary Seal writes through. Append must be
// synchronous and durable before it returns nil — Seal's atomicity
// guarantee depends on it.
type EventLog interface {
	Append(event SealedEvent) error
}

// Clock is the injectable time source, mirroring the corpus's
// injectable-clock pattern for testable stores (store/ledger.FileLedger).
type Clock func() time.Time

// HashChain owns the single append() critical section: computing
// prev_hash, canonicalizing, hashing, signing, staging the Merkle leaf,
// sequencing, and durably logging a sealed event, all under one lock so
// no two events can interleave partway through sealing.
type HashChain struct {
	mu sync.Mutex

	signer vcpcrypto.Signer
	tree   *merkle.Tree
	log    EventLog
	clock  Clock

	lastHash     string
	lastSequence uint64
}

// New constructs a HashChain with a fresh Merkle accumulator. Use Restore
// instead when rebuilding from a persisted log after a restart.
func New(signer vcpcrypto.Signer, log EventLog) *HashChain {
	return &HashChain{
		signer: signer,
		tree:   merkle.New(),
		log:    log,
		clock:  time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (c *HashChain) WithClock(clock Clock) *HashChain {
	c.clock = clock
	return c
}

// Seal is the append() operation: it links, hashes, signs, and durably
// records ev, returning the resulting SealedEvent. On any failure no
// chain state is mutated — the Merkle accumulator and sequence counter
// are only advanced after the durable log write succeeds, so a failed
// Seal can be retried without leaving the chain in a torn state.
func (c *HashChain) Seal(ev Event) (SealedEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.VCPVersion == "" {
		ev.VCPVersion = SupportedVCPVersion
	}

	var payload any
	if len(ev.Payload) > 0 {
		dec := json.NewDecoder(bytes.NewReader(ev.Payload))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return SealedEvent{}, fmt.Errorf("chain: payload is not valid JSON: %w", err)
		}
	} else {
		payload = map[string]any{}
	}

	subset := canonicalize.Subset(
		ev.AccountID, ev.ClockSync, ev.EventID, ev.EventType,
		payload, ev.PolicyID, c.lastHash, ev.SystemID, ev.Tier, ev.Timestamp, ev.VCPVersion,
	)
	canonical, err := canonicalize.JCS(subset)
	if err != nil {
		return SealedEvent{}, fmt.Errorf("chain: canonicalization failed: %w", err)
	}

	sum := sha256.Sum256(canonical)
	eventHash := hex.EncodeToString(sum[:])

	signature, err := c.signer.Sign(sum[:])
	if err != nil {
		return SealedEvent{}, fmt.Errorf("chain: signing failed: %w", err)
	}

	sealed := SealedEvent{
		Event:       ev,
		EventHash:   eventHash,
		Signature:   signature,
		SignerKeyID: c.signer.KeyID(),
		PrevHash:    c.lastHash,
		Sequence:    c.lastSequence + 1,
		MerkleIndex: c.tree.Size(),
		ReceivedAt:  c.clock().UTC().Format(time.RFC3339Nano),
	}

	if err := c.log.Append(sealed); err != nil {
		return SealedEvent{}, fmt.Errorf("chain: durable log write failed, chain state unchanged: %w", err)
	}

	c.tree.Append(sum[:])
	c.lastHash = eventHash
	c.lastSequence = sealed.Sequence

	return sealed, nil
}

// Restore replays a persisted, sequence-ordered slice of sealed events to
// rebuild in-memory chain state after a restart. It re-canonicalizes each
// event and checks the result against its stored event_hash, checks the
// sequence and prev_hash links, and re-derives the Merkle accumulator;
// signatures are not re-checked. Any failure leaves the chain unchanged.
func (c *HashChain) Restore(events []SealedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tree := merkle.New()
	var lastHash string
	var lastSequence uint64

	for i, ev := range events {
		wantSeq := lastSequence + 1
		if ev.Sequence != wantSeq {
			return fmt.Errorf("%w: event %d has sequence %d, want %d", ErrSequenceGap, i, ev.Sequence, wantSeq)
		}
		if ev.PrevHash != lastHash {
			return fmt.Errorf("chain: prev_hash mismatch at sequence %d: got %q, want %q", ev.Sequence, ev.PrevHash, lastHash)
		}

		var payload any = map[string]any{}
		if len(ev.Payload) > 0 {
			dec := json.NewDecoder(bytes.NewReader(ev.Payload))
			dec.UseNumber()
			if err := dec.Decode(&payload); err != nil {
				return fmt.Errorf("chain: event %d has malformed payload: %w", i, err)
			}
		}
		canonical, err := canonicalize.JCS(canonicalize.Subset(ev.AccountID, ev.ClockSync, ev.EventID, ev.EventType,
			payload, ev.PolicyID, ev.PrevHash, ev.SystemID, ev.Tier, ev.Timestamp, ev.VCPVersion))
		if sum := sha256.Sum256(canonical); err != nil || hex.EncodeToString(sum[:]) != ev.EventHash {
			return fmt.Errorf("chain: event %d event_hash does not match its canonical form", i)
		}

		hashBytes, err := hex.DecodeString(ev.EventHash)
		if err != nil {
			return fmt.Errorf("chain: event %d has malformed event_hash: %w", i, err)
		}
		idx, _ := tree.Append(hashBytes)
		if idx != ev.MerkleIndex {
			return fmt.Errorf("chain: event %d expected merkle_index %d, computed %d", i, ev.MerkleIndex, idx)
		}

		lastHash = ev.EventHash
		lastSequence = ev.Sequence
	}

	c.tree = tree
	c.lastHash = lastHash
	c.lastSequence = lastSequence
	return nil
}

// Tree exposes the Merkle accumulator for tests and for callers that
// already hold no concurrent writers (e.g. Restore's caller, before
// serving traffic). Concurrent readers — the anchor scheduler, the proof
// and verify endpoints — must go through Snapshot, RootAt, or
// InclusionProofAt instead, which take the chain lock so their read
// lines up with a single consistent (size, leaves) pair instead of racing
// Seal's in-progress Append.
func (c *HashChain) Tree() *merkle.Tree { return c.tree }

// Snapshot returns the current leaf count and root under the chain lock,
// the consistent pair the anchor scheduler needs for its tick.
func (c *HashChain) Snapshot() (size int, root [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Size(), c.tree.Root()
}

// Size returns the current leaf count under the chain lock.
func (c *HashChain) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Size()
}

// RootAt returns MTH(D[0:size]) under the chain lock, so a reader's root
// computation never overlaps an in-progress Seal's Append.
func (c *HashChain) RootAt(size int) ([32]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.RootAt(size)
}

// InclusionProofAt returns an inclusion proof for leafIndex against tree
// size treeSize, under the chain lock.
func (c *HashChain) InclusionProofAt(leafIndex, treeSize int) (*merkle.InclusionProof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.InclusionProofAt(leafIndex, treeSize)
}

// LastHash returns the most recently sealed event's hash, or "" if none.
func (c *HashChain) LastHash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHash
}

// LastSequence returns the most recently assigned sequence number.
func (c *HashChain) LastSequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSequence
}
