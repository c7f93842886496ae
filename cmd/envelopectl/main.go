// Command envelopectl exercises the envelope encryption pipeline from the
// command line: key provisioning, multi-recipient encryption, and
// decryption, over JSON envelope files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "envelopectl",
		Short: "Hybrid envelope encryption CLI",
		Long: `envelopectl encrypts payloads for multiple recipients using hybrid
envelope encryption: AES-256-CBC for the content, RSA-2048 OAEP for the
per-recipient key wrapping. Envelopes are read and written as JSON files.`,
	}

	rootCmd.AddCommand(newKeygenCmd())
	rootCmd.AddCommand(newEncryptCmd())
	rootCmd.AddCommand(newDecryptCmd())
	rootCmd.AddCommand(newEncryptFileCmd())
	rootCmd.AddCommand(newDecryptFileCmd())
	rootCmd.AddCommand(newMessengerCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("envelopectl version %s\n", version)
		},
	}
}
