package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cipherline/envelope-go"
)

func newKeygenCmd() *cobra.Command {
	var privOut string
	var pubOut string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA-2048 identity key pair",
		Long: `Generate a new RSA-2048 identity key pair. The private key is written as
unencrypted PKCS#8 PEM and must be kept secure; the public key is written as
SubjectPublicKeyInfo PEM and is safe to share with anyone who should be able
to encrypt for this identity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := envelope.GenerateIdentityKeyPair()
			if err != nil {
				return fmt.Errorf("failed to generate key pair: %w", err)
			}

			if err := os.WriteFile(privOut, kp.PrivateKeyPEM, 0o600); err != nil {
				return fmt.Errorf("failed to write private key: %w", err)
			}
			if err := os.WriteFile(pubOut, kp.PublicKeyPEM, 0o644); err != nil {
				return fmt.Errorf("failed to write public key: %w", err)
			}

			fmt.Fprintf(os.Stdout, "private key saved to: %s\n", privOut)
			fmt.Fprintf(os.Stdout, "public key saved to:  %s\n", pubOut)
			fmt.Fprintln(os.Stderr, "keep the private key secure; it is never recoverable")
			return nil
		},
	}

	cmd.Flags().StringVarP(&privOut, "private", "p", "private.pem", "Output file for the private key")
	cmd.Flags().StringVarP(&pubOut, "public", "P", "public.pem", "Output file for the public key")

	return cmd
}
