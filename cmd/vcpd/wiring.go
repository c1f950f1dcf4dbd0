package main

import (
	"fmt"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/anchor"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/config"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/eventlog"
)

// buildProviders constructs every anchor provider, keyed by its
// configuration enum name. Every provider is always built, regardless of
// which one is selected for new anchors, because the verifier needs a
// Provider to re-check historical anchors written under any of them —
// switching providers never orphans old anchor proofs.
func buildProviders(cfg *config.Config) map[string]anchor.Provider {
	return map[string]anchor.Provider{
		"opentimestamps": anchor.NewOpenTimestampsProvider(),
		"bitcoin":        anchor.NewBitcoinProvider(cfg.BitcoinRPCURL, cfg.BitcoinWalletName),
		"rfc3161_tsa":    anchor.NewRFC3161TSAProvider(),
		"local":          anchor.NewLocalFileProvider(cfg.AnchorStorageDir),
	}
}

// replayer is implemented by both eventlog backends, letting startup
// replay stay agnostic to which one is configured.
type replayer interface {
	ReadAll() ([]chain.SealedEvent, error)
}

// eventBackend bundles the three eventlog.Reader/chain.EventLog/replayer
// roles a single opened backend plays, plus its Close.
type eventBackend struct {
	writer chain.EventLog
	reader eventlog.Reader
	replay replayer
	close  func() error
}

// openEventBackend opens the Postgres backend when VCP_DATABASE_URL is
// set, falling back to the file-backed JSONL log otherwise — the same
// precedence the corpus's store/ledger split uses.
func openEventBackend(cfg *config.Config) (*eventBackend, error) {
	if cfg.DatabaseURL != "" {
		pg, err := eventlog.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres event backend: %w", err)
		}
		return &eventBackend{writer: pg, reader: pg, replay: pg, close: pg.Close}, nil
	}

	fl, err := eventlog.Open(cfg.EventLogPath)
	if err != nil {
		return nil, fmt.Errorf("opening file event backend: %w", err)
	}
	return &eventBackend{writer: fl, reader: fl, replay: fl, close: fl.Close}, nil
}

// anchorBackend bundles an anchor.RecordStore with its Close, so callers
// stay agnostic to whether anchors live on disk or in Postgres.
type anchorBackend struct {
	store anchor.RecordStore
	close func() error
}

// openAnchorBackend mirrors openEventBackend's precedence: Postgres when
// VCP_DATABASE_URL is set, the local anchor directory otherwise. A
// deployment that already points its event log at Postgres keeps anchor
// bookkeeping in the same database rather than a separate directory.
func openAnchorBackend(cfg *config.Config, dir string) (*anchorBackend, error) {
	if cfg.DatabaseURL != "" {
		pg, err := anchor.OpenPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres anchor backend: %w", err)
		}
		return &anchorBackend{store: pg, close: pg.Close}, nil
	}

	fl, err := anchor.OpenStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening file anchor backend: %w", err)
	}
	return &anchorBackend{store: fl, close: func() error { return nil }}, nil
}
