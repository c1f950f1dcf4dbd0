package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/config"
	"github.com/alejandr02820/vcp-tradingview-rta-reference/internal/vcpcrypto"
)

// keygenCmd writes a fresh Ed25519 key pair to the configured paths,
// refusing to clobber an existing key unless --force is given.
var keygenCmd = &cobra.Command{
	Use:     "keygen",
	Short:   "Generate a new Ed25519 signing key pair",
	GroupID: "keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		signer, err := vcpcrypto.GenerateAndSave(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.SignerKeyID, force)
		if err != nil {
			if err == vcpcrypto.ErrKeyExists {
				return fmt.Errorf("%s already exists; rerun with --force to overwrite", cfg.PrivateKeyPath)
			}
			return err
		}

		fmt.Printf("generated key %s\n  private: %s\n  public:  %s\n  pubkey:  %s\n",
			signer.KeyID(), cfg.PrivateKeyPath, cfg.PublicKeyPath, signer.PublicKeyHex())
		return nil
	},
}

func init() {
	keygenCmd.Flags().Bool("force", false, "overwrite an existing private key")
}
