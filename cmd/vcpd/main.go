// Command vcpd runs the VeritasChain Protocol evidence pipeline: it
// receives algorithmic trading events over HTTP, hashes, signs, links,
// and Merkle-accumulates them, periodically anchors the tree root, and
// can offline-verify a persisted log.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vcpd",
	Short: "VeritasChain Protocol evidence pipeline daemon",
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "system", Title: "System:"},
		&cobra.Group{ID: "keys", Title: "Keys:"},
	)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(exportKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
