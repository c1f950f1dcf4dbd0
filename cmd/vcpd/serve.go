package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/anchor"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/api"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/chain"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/config"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the evidence pipeline HTTP server",
	GroupID: "system",
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var profile *config.Profile
	if cfg.ProfilePath != "" {
		profile, err = config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return err
		}
	}

	// A missing or unreadable private key is fatal at startup — the
	// pipeline must never accept events without a ready signer.
	signer, err := vcpcrypto.LoadSigner(cfg.PrivateKeyPath, cfg.SignerKeyID)
	if err != nil {
		return fmt.Errorf("fatal: signer unavailable at startup: %w", err)
	}
	logger.Info("signer loaded", "key_id", signer.KeyID())

	keyring := vcpcrypto.NewKeyRing()
	keyring.AddKey(signer.KeyID(), signer.PublicKeyHex())

	backend, err := openEventBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	c := chain.New(signer, backend.writer)

	// Replay must re-verify hashes and chain links, and refuse to accept
	// new writes if any fail — a corrupt log detected during replay is a
	// fatal startup condition, not a degraded-mode continuation.
	persisted, err := backend.replay.ReadAll()
	if err != nil {
		return fmt.Errorf("fatal: replaying event log: %w", err)
	}
	if err := c.Restore(persisted); err != nil {
		return fmt.Errorf("fatal: corrupt event log detected during replay: %w", err)
	}
	logger.Info("replayed event log", "events", len(persisted))

	anchorBackend, err := openAnchorBackend(cfg, cfg.AnchorStorageDir)
	if err != nil {
		return err
	}
	defer anchorBackend.close()

	providers := buildProviders(cfg)
	provider, ok := providers[cfg.AnchorProvider]
	if !ok {
		return fmt.Errorf("fatal: unknown anchor provider %q", cfg.AnchorProvider)
	}
	interval := config.AnchorInterval(cfg, profile, cfg.Tier)
	sched := anchor.NewScheduler(c, anchorBackend.store, provider, interval, logger)

	pipeline := api.NewPipeline(c, backend.reader, anchorBackend.store, sched, signer, keyring, providers, cfg.Tier, logger)
	server := api.NewServer(cfg.Addr, pipeline)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
