package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/cipherline/envelope-go/internal/crypto"
)

// AttachmentCodec applies the envelope pipeline to binary payloads up to a
// configured ceiling and owns the text-safe encoding of the ciphertext.
// Attachment envelopes travel through text-oriented channels (JSON columns,
// ".enc" files), so the bulk ciphertext is carried as standard base64 rather
// than raw bytes.
//
// A codec is immutable after construction and safe for concurrent use.
type AttachmentCodec struct {
	maxPayloadSize int64
}

// NewAttachmentCodec creates an attachment codec. The default payload
// ceiling is [DefaultMaxPayloadSize].
func NewAttachmentCodec(opts ...CodecOption) *AttachmentCodec {
	cfg := &codecConfig{maxPayloadSize: DefaultMaxPayloadSize}
	for _, opt := range opts {
		opt(cfg)
	}
	return &AttachmentCodec{maxPayloadSize: cfg.maxPayloadSize}
}

// MaxPayloadSize returns the configured payload ceiling in bytes.
func (c *AttachmentCodec) MaxPayloadSize() int64 {
	return c.maxPayloadSize
}

// AttachmentEnvelope is the envelope of one attachment: the base64-encoded
// bulk ciphertext plus the same IV and key map an [Envelope] carries.
type AttachmentEnvelope struct {
	// Content is the AES-256-CBC ciphertext in standard base64.
	Content string
	// IV is the 16-byte initialization vector. Not secret.
	IV []byte
	// Keys is the per-recipient wrapped-key map.
	Keys KeyMap
}

// attachmentJSON is the persisted form of an attachment envelope.
type attachmentJSON struct {
	Content string `json:"content"`
	IV      string `json:"iv"`
	Keys    KeyMap `json:"keys"`
}

// MarshalJSON encodes the attachment envelope in its persisted form.
func (a *AttachmentEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(attachmentJSON{
		Content: a.Content,
		IV:      crypto.ToBase64(a.IV),
		Keys:    a.Keys,
	})
}

// UnmarshalJSON decodes the persisted form.
func (a *AttachmentEnvelope) UnmarshalJSON(data []byte) error {
	var raw attachmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	iv, err := crypto.FromBase64(raw.IV)
	if err != nil {
		return fmt.Errorf("%w: iv: %v", ErrInvalidEnvelope, err)
	}

	a.Content = raw.Content
	a.IV = iv
	a.Keys = raw.Keys
	return nil
}

// Encrypt encrypts a binary payload for the given recipients. It fails with
// a [PayloadTooLargeError] before any cryptographic work when the payload
// exceeds the ceiling; otherwise the semantics match [Encrypt], with the
// ciphertext base64-encoded for text-safe transport.
func (c *AttachmentCodec) Encrypt(payload []byte, recipientKeys map[string][]byte) (*AttachmentEnvelope, error) {
	if int64(len(payload)) > c.maxPayloadSize {
		return nil, &PayloadTooLargeError{Size: int64(len(payload)), Limit: c.maxPayloadSize}
	}

	env, err := Encrypt(payload, recipientKeys)
	if err != nil {
		return nil, err
	}

	return &AttachmentEnvelope{
		Content: crypto.ToBase64(env.Ciphertext),
		IV:      env.IV,
		Keys:    env.Keys,
	}, nil
}

// Decrypt decodes the text-safe ciphertext and recovers the binary payload
// for the requesting identity. The semantics match [Decrypt]: absent
// identities get an [AccessDeniedError] before any cryptographic operation,
// and every other failure is the coarse ErrDecryptionFailed.
func (c *AttachmentCodec) Decrypt(att *AttachmentEnvelope, identity string, privateKeyPEM []byte) ([]byte, error) {
	if att == nil || att.Content == "" {
		return nil, fmt.Errorf("%w: empty attachment", ErrInvalidEnvelope)
	}

	// Access check precedes content decoding; a non-recipient learns
	// nothing about the stored bytes.
	if _, ok := att.Keys[identity]; !ok {
		return nil, &AccessDeniedError{Identity: identity}
	}

	ciphertext, err := crypto.FromBase64(att.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrInvalidEnvelope, err)
	}

	return Decrypt(&Envelope{
		Ciphertext: ciphertext,
		IV:         att.IV,
		Keys:       att.Keys,
	}, identity, privateKeyPEM)
}
