package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cipherline/envelope-go"
)

func newDecryptCmd() *cobra.Command {
	var identity string
	var keyPath string
	var input string
	var output string

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt a JSON envelope as one of its recipients",
		Long: `Decrypt an envelope with the requesting identity's private key. An
identity absent from the envelope's key map is denied before any
cryptographic work. All cryptographic failures are reported uniformly;
the cause is deliberately not disclosed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			privPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("failed to read private key: %w", err)
			}

			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read envelope: %w", err)
			}

			var env envelope.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return fmt.Errorf("failed to parse envelope: %w", err)
			}

			payload, err := envelope.Decrypt(&env, identity, privPEM)
			if err != nil {
				return fmt.Errorf("cannot decrypt: %w", err)
			}

			if output == "-" {
				_, err = os.Stdout.Write(payload)
				return err
			}
			if err := os.WriteFile(output, payload, 0o600); err != nil {
				return fmt.Errorf("failed to write payload: %w", err)
			}
			fmt.Fprintf(os.Stdout, "payload written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&identity, "identity", "u", "", "Requesting identity")
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "Private key PEM file")
	cmd.Flags().StringVarP(&input, "in", "i", "envelope.json", "Input JSON envelope file")
	cmd.Flags().StringVarP(&output, "out", "o", "-", "Output file for the payload (default stdout)")
	_ = cmd.MarkFlagRequired("identity")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func newDecryptFileCmd() *cobra.Command {
	var identity string
	var keyPath string
	var input string
	var output string

	cmd := &cobra.Command{
		Use:   "decrypt-file",
		Short: "Decrypt an attachment envelope as one of its recipients",
		RunE: func(cmd *cobra.Command, args []string) error {
			privPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("failed to read private key: %w", err)
			}

			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("failed to read envelope: %w", err)
			}

			var att envelope.AttachmentEnvelope
			if err := json.Unmarshal(data, &att); err != nil {
				return fmt.Errorf("failed to parse envelope: %w", err)
			}

			codec := envelope.NewAttachmentCodec()
			payload, err := codec.Decrypt(&att, identity, privPEM)
			if err != nil {
				return fmt.Errorf("cannot decrypt: %w", err)
			}

			if err := os.WriteFile(output, payload, 0o600); err != nil {
				return fmt.Errorf("failed to write payload: %w", err)
			}
			fmt.Fprintf(os.Stdout, "payload written to %s (%d bytes)\n", output, len(payload))
			return nil
		},
	}

	cmd.Flags().StringVarP(&identity, "identity", "u", "", "Requesting identity")
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "Private key PEM file")
	cmd.Flags().StringVarP(&input, "in", "i", "attachment.json", "Input JSON envelope file")
	cmd.Flags().StringVarP(&output, "out", "o", "attachment.bin", "Output file for the payload")
	_ = cmd.MarkFlagRequired("identity")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}
