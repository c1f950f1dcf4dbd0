package api

import (
	"log/slog"
	"time"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/anchor"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/eventlog"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

// Pipeline bundles the evidence-pipeline components a running vcpd
// process needs to serve its HTTP surface: the hash chain (the single
// ingest critical section), a read-only view of the durable log, the
// anchor store and scheduler, and the key material used to answer
// verify/export requests without re-deriving anything the chain already
// computed.
type Pipeline struct {
	Chain     *chain.HashChain
	Reader    eventlog.Reader
	Store     anchor.RecordStore
	Scheduler *anchor.Scheduler
	Signer    vcpcrypto.Signer
	KeyRing   *vcpcrypto.KeyRing
	Providers map[string]anchor.Provider
	Tier      string
	Logger    *slog.Logger

	startedAt time.Time
}

// NewPipeline wires the components into a Pipeline ready to be handed to
// NewServer. providers is kept as Pipeline.Providers, keyed the same way
// anchor.Record.Provider is; /vcp/anchor/status reports the scheduler's
// own provider and does not read this map.
func NewPipeline(c *chain.HashChain, reader eventlog.Reader, store anchor.RecordStore, sched *anchor.Scheduler, signer vcpcrypto.Signer, keyring *vcpcrypto.KeyRing, providers map[string]anchor.Provider, tier string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Chain:     c,
		Reader:    reader,
		Store:     store,
		Scheduler: sched,
		Signer:    signer,
		KeyRing:   keyring,
		Providers: providers,
		Tier:      tier,
		Logger:    logger.With("component", "api"),
		startedAt: time.Now(),
	}
}

// pendingCount returns how many leaves exist that no anchor yet covers.
func (p *Pipeline) pendingCount() int {
	size := p.Chain.Size()
	anchored := p.Store.TotalAnchoredCount()
	if anchored > size {
		return 0
	}
	return size - anchored
}
