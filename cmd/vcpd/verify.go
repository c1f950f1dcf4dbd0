package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/config"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/verifier"
)

var (
	verifyKeys       []string
	verifyAnchorsDir string
	verifyJSON       bool
)

// verifyCmd is the offline verification tool as a subcommand: consume
// the persisted log and anchor records, recompute everything, and
// report a structured pass/fail. It never relies on a running vcpd
// process.
var verifyCmd = &cobra.Command{
	Use:     "verify",
	Short:   "Offline-verify a persisted event log against anchors and public keys",
	GroupID: "system",
	RunE:    runVerify,
}

func init() {
	verifyCmd.Flags().StringArrayVar(&verifyKeys, "key", nil, "key_id=hex_public_key (repeatable); defaults to the configured signer's key")
	verifyCmd.Flags().StringVar(&verifyAnchorsDir, "anchors", "", "anchor store directory (defaults to VCP_ANCHOR_STORAGE_DIR)")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print the report as JSON")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	keyring, err := buildVerifyKeyring(cfg)
	if err != nil {
		return err
	}

	backend, err := openEventBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	events, err := backend.replay.ReadAll()
	if err != nil {
		return fmt.Errorf("reading event log: %w", err)
	}

	anchorsDir := verifyAnchorsDir
	if anchorsDir == "" {
		anchorsDir = cfg.AnchorStorageDir
	}
	anchorBackend, err := openAnchorBackend(cfg, anchorsDir)
	if err != nil {
		return err
	}
	defer anchorBackend.close()

	providers := buildProviders(cfg)
	report := verifier.Verify(events, keyring, anchorBackend.store, providers)

	if verifyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReportText(report)
	}

	if !report.Verified {
		return fmt.Errorf("verification failed: %s", report.Summary)
	}
	return nil
}

// buildVerifyKeyring loads --key entries, falling back to the signer key
// configured for this deployment so a bare `vcpd verify` with no flags
// still works against the common case of a single active key.
func buildVerifyKeyring(cfg *config.Config) (*vcpcrypto.KeyRing, error) {
	ring := vcpcrypto.NewKeyRing()
	if len(verifyKeys) == 0 {
		signer, err := vcpcrypto.LoadSigner(cfg.PrivateKeyPath, cfg.SignerKeyID)
		if err != nil {
			return nil, fmt.Errorf("no --key given and the configured signer key is unavailable: %w", err)
		}
		ring.AddKey(signer.KeyID(), signer.PublicKeyHex())
		return ring, nil
	}

	for _, entry := range verifyKeys {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --key %q, want key_id=hex_public_key", entry)
		}
		ring.AddKey(parts[0], parts[1])
	}
	return ring, nil
}

func printReportText(report *verifier.Report) {
	fmt.Printf("vcp verify %s\n", report.VerifierVer)
	fmt.Printf("events checked: %d\n", report.EventsChecked)
	fmt.Printf("%s\n\n", report.Summary)
	for _, c := range report.Checks {
		if c.Pass {
			continue
		}
		label := c.CheckName
		if c.EventID != "" {
			label = fmt.Sprintf("%s (%s)", c.CheckName, c.EventID)
		}
		fmt.Printf("FAIL %s\n", label)
		if c.Expected != "" || c.Observed != "" {
			fmt.Printf("  expected: %s\n  observed: %s\n", c.Expected, c.Observed)
		}
		if c.Detail != "" {
			fmt.Printf("  detail: %s\n", c.Detail)
		}
	}
}
