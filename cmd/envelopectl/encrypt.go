package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cipherline/envelope-go"
)

// loadRecipients parses repeated "identity=pubkey.pem" flags into the
// recipient key map.
func loadRecipients(specs []string) (map[string][]byte, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --recipient is required")
	}

	keys := make(map[string][]byte, len(specs))
	for _, spec := range specs {
		identity, path, ok := strings.Cut(spec, "=")
		if !ok || identity == "" || path == "" {
			return nil, fmt.Errorf("invalid --recipient %q, want identity=pubkey.pem", spec)
		}
		pemKey, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key for %q: %w", identity, err)
		}
		keys[identity] = pemKey
	}
	return keys, nil
}

func newEncryptCmd() *cobra.Command {
	var recipients []string
	var input string
	var output string

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a payload for one or more recipients",
		Long: `Encrypt a payload once for every recipient. The payload is encrypted with
a fresh AES-256 key; the key is wrapped under each recipient's RSA public
key. The output is a JSON envelope with the ciphertext, IV, and key map.
If any recipient's key is missing or unusable, nothing is produced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipientKeys, err := loadRecipients(recipients)
			if err != nil {
				return err
			}

			payload, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			env, err := envelope.Encrypt(payload, recipientKeys)
			if err != nil {
				return fmt.Errorf("encryption failed: %w", err)
			}

			data, err := json.MarshalIndent(env, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode envelope: %w", err)
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write envelope: %w", err)
			}

			fmt.Fprintf(os.Stdout, "envelope written to %s for %d recipient(s)\n", output, len(env.Keys))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&recipients, "recipient", "r", nil, "Recipient as identity=pubkey.pem (repeatable)")
	cmd.Flags().StringVarP(&input, "in", "i", "", "Input file with the plaintext payload")
	cmd.Flags().StringVarP(&output, "out", "o", "envelope.json", "Output file for the JSON envelope")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func newEncryptFileCmd() *cobra.Command {
	var recipients []string
	var input string
	var output string
	var maxSize int64

	cmd := &cobra.Command{
		Use:   "encrypt-file",
		Short: "Encrypt a binary attachment for one or more recipients",
		Long: `Encrypt a binary file through the attachment codec. The ciphertext is
base64 encoded inside the JSON envelope so it can travel through
text-oriented channels. Files over the size ceiling are rejected before
any encryption.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			recipientKeys, err := loadRecipients(recipients)
			if err != nil {
				return err
			}

			payload, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			codec := envelope.NewAttachmentCodec(envelope.WithMaxPayloadSize(maxSize))
			att, err := codec.Encrypt(payload, recipientKeys)
			if err != nil {
				return fmt.Errorf("encryption failed: %w", err)
			}

			data, err := json.MarshalIndent(att, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode envelope: %w", err)
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write envelope: %w", err)
			}

			fmt.Fprintf(os.Stdout, "attachment envelope written to %s (%d bytes in)\n", output, len(payload))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&recipients, "recipient", "r", nil, "Recipient as identity=pubkey.pem (repeatable)")
	cmd.Flags().StringVarP(&input, "in", "i", "", "Input file to encrypt")
	cmd.Flags().StringVarP(&output, "out", "o", "attachment.json", "Output file for the JSON envelope")
	cmd.Flags().Int64Var(&maxSize, "max-size", 0, "Payload size ceiling in bytes (default 16 MiB)")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}
