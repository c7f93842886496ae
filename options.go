package envelope

import "log/slog"

// DefaultMaxPayloadSize is the default attachment size ceiling: 16 MiB.
const DefaultMaxPayloadSize = 16 << 20

// codecConfig holds configuration for the attachment codec.
type codecConfig struct {
	maxPayloadSize int64
}

// CodecOption configures an AttachmentCodec.
type CodecOption func(*codecConfig)

// WithMaxPayloadSize sets the attachment size ceiling in bytes. Values of
// zero or less keep the default.
func WithMaxPayloadSize(limit int64) CodecOption {
	return func(c *codecConfig) {
		if limit > 0 {
			c.maxPayloadSize = limit
		}
	}
}

// messengerConfig holds configuration for the Messenger service.
type messengerConfig struct {
	codec  *AttachmentCodec
	logger *slog.Logger
}

// MessengerOption configures a Messenger.
type MessengerOption func(*messengerConfig)

// WithAttachmentCodec sets the codec used for attachment payloads.
func WithAttachmentCodec(codec *AttachmentCodec) MessengerOption {
	return func(c *messengerConfig) {
		c.codec = codec
	}
}

// WithLogger sets the structured logger used by the Messenger. The logger
// receives operation names and identities, never key material or plaintext.
func WithLogger(logger *slog.Logger) MessengerOption {
	return func(c *messengerConfig) {
		c.logger = logger
	}
}
