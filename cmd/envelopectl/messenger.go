package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	envelope "github.com/cipherline/envelope-go"
	"github.com/cipherline/envelope-go/config"
	"github.com/cipherline/envelope-go/internal/blob"
	"github.com/cipherline/envelope-go/internal/store"
)

// newService wires a Messenger from the environment configuration: the
// database, the blob directory, and the attachment ceiling all come from
// config.Load.
func newService() (*envelope.Messenger, error) {
	cfg := config.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	blobs, err := blob.NewFileStore(cfg.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}

	return envelope.NewMessenger(store.New(db), blobs,
		envelope.WithLogger(logger),
		envelope.WithAttachmentCodec(envelope.NewAttachmentCodec(
			envelope.WithMaxPayloadSize(cfg.MaxAttachmentSize),
		)),
	), nil
}

func newMessengerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messenger",
		Short: "Operate a local encrypted message store",
		Long: `Operate an encrypted message store backed by the configured database and
blob directory. Configuration comes from the environment (or a .env file):
DATABASE_DRIVER, DATABASE_DSN, BLOB_DIR, MAX_ATTACHMENT_SIZE, LOG_LEVEL.

Every message is encrypted once for all participants of its conversation;
the store only ever holds ciphertext, IVs, and wrapped keys.`,
	}

	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newConversationCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newReadCmd())
	cmd.AddCommand(newAttachCmd())
	cmd.AddCommand(newOpenCmd())

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var keyOut string

	cmd := &cobra.Command{
		Use:   "register <identity>",
		Short: "Register an identity and save its private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := args[0]
			m, err := newService()
			if err != nil {
				return err
			}

			kp, err := m.RegisterIdentity(cmd.Context(), identity)
			if err != nil {
				return fmt.Errorf("failed to register %q: %w", identity, err)
			}

			if keyOut == "" {
				keyOut = identity + ".pem"
			}
			if err := os.WriteFile(keyOut, kp.PrivateKeyPEM, 0o600); err != nil {
				return fmt.Errorf("failed to write private key: %w", err)
			}

			fmt.Fprintf(os.Stdout, "registered %q, private key saved to %s\n", identity, keyOut)
			return nil
		},
	}

	cmd.Flags().StringVarP(&keyOut, "key-out", "k", "", "Output file for the private key (default <identity>.pem)")

	return cmd
}

func newConversationCmd() *cobra.Command {
	var as string
	var with string
	var name string

	cmd := &cobra.Command{
		Use:   "conversation",
		Short: "Create or reuse a conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newService()
			if err != nil {
				return err
			}

			participants := strings.Split(with, ",")
			conv, err := m.CreateConversation(cmd.Context(), as, participants, name)
			if err != nil {
				return fmt.Errorf("failed to create conversation: %w", err)
			}

			fmt.Fprintf(os.Stdout, "conversation %s with %s\n", conv.ID, strings.Join(conv.Participants, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Creating identity")
	cmd.Flags().StringVar(&with, "with", "", "Comma-separated participant identities")
	cmd.Flags().StringVar(&name, "name", "", "Group name (groups only)")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("with")

	return cmd
}

func newSendCmd() *cobra.Command {
	var as string
	var conversationID string

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send an encrypted message to a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newService()
			if err != nil {
				return err
			}

			msg, err := m.SendMessage(cmd.Context(), conversationID, as, []byte(args[0]))
			if err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}

			fmt.Fprintf(os.Stdout, "message %s sent to %d recipient(s)\n", msg.ID, len(msg.Envelope.Keys))
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Sending identity")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation id")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("conversation")

	return cmd
}

func newReadCmd() *cobra.Command {
	var as string
	var keyPath string

	cmd := &cobra.Command{
		Use:   "read <message-id>",
		Short: "Decrypt and print a stored message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newService()
			if err != nil {
				return err
			}

			privPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("failed to read private key: %w", err)
			}

			plaintext, err := m.ReadMessage(cmd.Context(), args[0], as, privPEM)
			if err != nil {
				return fmt.Errorf("cannot read message: %w", err)
			}

			_, err = os.Stdout.Write(append(plaintext, '\n'))
			return err
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Reading identity")
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "Private key PEM file")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func newAttachCmd() *cobra.Command {
	var as string
	var messageID string
	var mimeType string

	cmd := &cobra.Command{
		Use:   "attach <file>",
		Short: "Encrypt and attach a file to a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newService()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			att, err := m.AttachFile(cmd.Context(), messageID, as, args[0], mimeType, data)
			if err != nil {
				return fmt.Errorf("failed to attach: %w", err)
			}

			fmt.Fprintf(os.Stdout, "attachment %s stored (%d bytes)\n", att.ID, att.Size)
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Sending identity")
	cmd.Flags().StringVarP(&messageID, "message", "m", "", "Owning message id")
	cmd.Flags().StringVar(&mimeType, "mime", "application/octet-stream", "MIME type of the file")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func newOpenCmd() *cobra.Command {
	var as string
	var keyPath string
	var output string

	cmd := &cobra.Command{
		Use:   "open <attachment-id>",
		Short: "Decrypt a stored attachment to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newService()
			if err != nil {
				return err
			}

			privPEM, err := os.ReadFile(keyPath)
			if err != nil {
				return fmt.Errorf("failed to read private key: %w", err)
			}

			data, err := m.OpenAttachment(cmd.Context(), args[0], as, privPEM)
			if err != nil {
				return fmt.Errorf("cannot open attachment: %w", err)
			}

			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			fmt.Fprintf(os.Stdout, "attachment written to %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Reading identity")
	cmd.Flags().StringVarP(&keyPath, "key", "k", "", "Private key PEM file")
	cmd.Flags().StringVarP(&output, "out", "o", "attachment.bin", "Output file")
	_ = cmd.MarkFlagRequired("as")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}
