package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/config"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

// keyExportDocument is the public key export persisted format:
// key_id, algorithm, public_key.
type keyExportDocument struct {
	KeyID     string `json:"key_id"`
	Algorithm string `json:"algorithm"`
	PublicKey string `json:"public_key"`
}

var exportKeyCmd = &cobra.Command{
	Use:     "export-key",
	Short:   "Print the configured public key as a key export document",
	GroupID: "keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		signer, err := vcpcrypto.LoadSigner(cfg.PrivateKeyPath, cfg.SignerKeyID)
		if err != nil {
			return fmt.Errorf("loading signer: %w", err)
		}

		doc := keyExportDocument{
			KeyID:     signer.KeyID(),
			Algorithm: "Ed25519",
			PublicKey: signer.PublicKeyHex(),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}
