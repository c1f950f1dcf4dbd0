package anchor

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
)

// Scheduler periodically snapshots the hash chain's Merkle root and
// submits it to a Provider, independently of event ingestion and without
// holding its write lock across the provider round trip. Anchors are
// cumulative: each tick commits to every leaf from 0 through the current
// size, and the scheduler never resets or truncates the accumulator — an
// earlier anchor's root always remains checkable against the same growing
// tree, rather than going amnesiac about everything anchored before it.
type Scheduler struct {
	chain    *chain.HashChain
	store    RecordStore
	provider Provider
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
	lastTick  time.Time
}

// Provider returns the configured provider's name, for /vcp/anchor/status.
func (s *Scheduler) Provider() string { return s.provider.Name() }

// Interval returns the configured anchor cadence.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// LastTickAt returns when Tick last ran (whether or not it anchored
// anything), and whether it has run at least once.
func (s *Scheduler) LastTickAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick, !s.lastTick.IsZero()
}

// NewScheduler builds a scheduler that anchors via provider every
// interval, recording state in store.
func NewScheduler(c *chain.HashChain, store RecordStore, provider Provider, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		chain:    c,
		store:    store,
		provider: provider,
		interval: interval,
		logger:   logger.With("component", "anchor_scheduler"),
	}
}

// Start launches the background ticking loop. It is a no-op if already
// running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	go s.loop()
}

// Stop signals the loop to exit and waits for it to finish. Safe to call
// even if Start was never called.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	doneCh := s.doneCh
	s.running = false
	s.mu.Unlock()

	<-doneCh
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("anchor tick failed", "err", err)
			}
			cancel()
		}
	}
}

// Tick runs one anchor attempt now: snapshot the current root, retry the
// provider submission with exponential backoff (1s base, 10min cap,
// unbounded retries) until ctx is canceled, then persist the resulting
// record. If there is nothing new to anchor since the last anchor, Tick
// is a no-op and returns the zero Record.
func (s *Scheduler) Tick(ctx context.Context) (Record, error) {
	s.mu.Lock()
	s.lastTick = time.Now()
	s.mu.Unlock()

	size, root := s.chain.Snapshot()
	prevAnchored := s.store.TotalAnchoredCount()
	if size == 0 || size <= prevAnchored {
		return Record{}, nil
	}
	rootHex := hex.EncodeToString(root[:])

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 10 * time.Minute
	b.Multiplier = 2

	result, err := backoff.Retry(ctx, func() (*Result, error) {
		res, err := s.provider.Anchor(rootHex)
		if err != nil {
			s.logger.Warn("anchor attempt failed, will retry", "provider", s.provider.Name(), "err", err)
			return nil, err
		}
		return res, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(0), backoff.WithMaxElapsedTime(0))
	if err != nil {
		return Record{}, fmt.Errorf("anchor: provider %s failed permanently: %w", s.provider.Name(), err)
	}

	rec := Record{
		AnchorID:        result.AnchorID,
		Provider:        result.Provider,
		MerkleRoot:      result.MerkleRoot,
		CreatedAt:       result.Timestamp,
		ConfirmedAt:     result.Timestamp,
		TxHash:          result.TxHash,
		Status:          StatusConfirmed,
		EventCount:      size,
		PrevAnchorCount: prevAnchored,
	}
	if err := s.store.Save(rec, result.Proof); err != nil {
		return Record{}, fmt.Errorf("anchor: persisting record: %w", err)
	}

	s.logger.Info("anchored", "anchor_id", rec.AnchorID, "provider", rec.Provider, "event_count", rec.EventCount)
	return rec, nil
}

// ForceAnchor runs Tick immediately, for POST /vcp/anchor/force.
func (s *Scheduler) ForceAnchor(ctx context.Context) (Record, error) {
	return s.Tick(ctx)
}
