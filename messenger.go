package envelope

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// MessageKind distinguishes what a message envelope carries.
type MessageKind string

const (
	// MessageText is an encrypted text message.
	MessageText MessageKind = "text"
	// MessageFile is a message whose payload describes attached files.
	MessageFile MessageKind = "file"
)

// Conversation groups messages between a fixed set of participants. Direct
// (two-party) conversations are deduplicated; group conversations may carry
// a name.
type Conversation struct {
	ID           string
	Name         string
	IsGroup      bool
	Participants []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasParticipant reports whether the identity belongs to the conversation.
func (c *Conversation) HasParticipant(identity string) bool {
	return slices.Contains(c.Participants, identity)
}

// Message is one encrypted message. The plaintext exists only transiently
// inside SendMessage and ReadMessage calls; the store only ever sees the
// envelope fields.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Kind           MessageKind
	Envelope       *Envelope
	SentAt         time.Time
}

// Attachment is one encrypted file attached to a message. The ciphertext
// lives in the blob store under BlobName; the store keeps the metadata and
// the envelope's IV and key map.
type Attachment struct {
	ID        string
	MessageID string
	FileName  string
	Size      int64
	MimeType  string
	BlobName  string
	IV        []byte
	Keys      KeyMap
	CreatedAt time.Time
}

// EnvelopeStore persists identities, conversations, and envelopes. The store
// treats envelope fields as opaque; it never sees plaintext or unwrapped
// keys. Implementations must keep the fields of one envelope together:
// mixing ciphertext, IV, or key map across encryption operations corrupts
// the envelope irrecoverably.
type EnvelopeStore interface {
	// SaveIdentity registers or replaces an identity's public key.
	SaveIdentity(ctx context.Context, identity string, publicKeyPEM []byte) error
	// PublicKey resolves a registered identity's public key; the error
	// matches ErrIdentityNotFound when none is registered.
	PublicKey(ctx context.Context, identity string) ([]byte, error)

	CreateConversation(ctx context.Context, conv *Conversation) error
	// FindConversation returns the conversation with its participant list,
	// or an error matching ErrConversationNotFound.
	FindConversation(ctx context.Context, id string) (*Conversation, error)
	// FindDirectConversation returns the existing non-group conversation
	// between exactly the two identities, or an error matching
	// ErrConversationNotFound.
	FindDirectConversation(ctx context.Context, a, b string) (*Conversation, error)
	ListConversations(ctx context.Context, identity string) ([]*Conversation, error)
	// DeleteConversation removes the conversation with its participants,
	// messages, and attachment rows in one transaction.
	DeleteConversation(ctx context.Context, id string) error
	// TouchConversation bumps the conversation's activity timestamp.
	TouchConversation(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, msg *Message) error
	FindMessage(ctx context.Context, id string) (*Message, error)
	// ListMessages returns up to limit newest messages in chronological
	// order.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	CreateAttachment(ctx context.Context, att *Attachment) error
	FindAttachment(ctx context.Context, id string) (*Attachment, error)
	ListAttachments(ctx context.Context, messageID string) ([]*Attachment, error)
	// ListConversationAttachments returns every attachment in the
	// conversation, for cascade deletes.
	ListConversationAttachments(ctx context.Context, conversationID string) ([]*Attachment, error)
}

// BlobStore holds already-encrypted, text-safe attachment payloads. Content
// passed in and out is the base64 ciphertext; a blob store never sees
// plaintext.
type BlobStore interface {
	// Write stores the content and returns the generated blob name.
	Write(ctx context.Context, content string) (string, error)
	Read(ctx context.Context, name string) (string, error)
	Remove(ctx context.Context, name string) error
}

// Messenger is the calling layer around the envelope core: it resolves
// recipients, runs the encryption pipeline, and persists the resulting
// envelope fields. It owns the two invariants the core cannot enforce:
// envelopes are stored atomically with their owning message, and fields from
// different encryption operations are never mixed.
type Messenger struct {
	store EnvelopeStore
	blobs BlobStore
	codec *AttachmentCodec
	log   *slog.Logger
}

// NewMessenger creates a Messenger over the given store and blob store.
func NewMessenger(store EnvelopeStore, blobs BlobStore, opts ...MessengerOption) *Messenger {
	cfg := &messengerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.codec == nil {
		cfg.codec = NewAttachmentCodec()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Messenger{
		store: store,
		blobs: blobs,
		codec: cfg.codec,
		log:   cfg.logger,
	}
}

// RegisterIdentity provisions a key pair for a new identity, registers the
// public half, and returns the pair. The private half is the caller's to
// keep; the Messenger retains no copy.
func (m *Messenger) RegisterIdentity(ctx context.Context, identity string) (*KeyPair, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrIdentityNotFound)
	}

	kp, err := GenerateIdentityKeyPair()
	if err != nil {
		m.log.ErrorContext(ctx, "key pair generation failed",
			"operation", "register_identity",
			"identity", identity,
			"error", err,
		)
		return nil, err
	}

	if err := m.store.SaveIdentity(ctx, identity, kp.PublicKeyPEM); err != nil {
		return nil, fmt.Errorf("saving identity %q: %w", identity, err)
	}

	m.log.InfoContext(ctx, "identity registered",
		"operation", "register_identity",
		"identity", identity,
	)
	return kp, nil
}

// CreateConversation starts a conversation between the creator and the given
// participants. The creator is always included. Every participant must have
// a registered public key; otherwise the creation aborts with a
// [MissingRecipientKeyError]. For two-party conversations an existing direct
// conversation is returned instead of creating a duplicate.
func (m *Messenger) CreateConversation(ctx context.Context, creator string, participants []string, name string) (*Conversation, error) {
	ids := []string{creator}
	for _, p := range participants {
		if p != creator && !slices.Contains(ids, p) {
			ids = append(ids, p)
		}
	}

	// All-or-nothing key check up front, mirroring encryption fan-out.
	if _, err := ResolveRecipients(ctx, storeDirectory{m.store}, ids); err != nil {
		return nil, err
	}

	isGroup := len(ids) > 2
	if !isGroup && len(ids) == 2 {
		if existing, err := m.store.FindDirectConversation(ctx, ids[0], ids[1]); err == nil {
			return existing, nil
		}
	}

	conv := &Conversation{
		Name:         name,
		IsGroup:      isGroup,
		Participants: ids,
	}
	if !isGroup {
		conv.Name = ""
	}

	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	m.log.InfoContext(ctx, "conversation created",
		"operation", "create_conversation",
		"conversation_id", conv.ID,
		"participants", len(ids),
		"is_group", isGroup,
	)
	return conv, nil
}

// conversationFor loads a conversation and checks that the identity is a
// participant; non-participants get ErrConversationNotFound rather than a
// hint that the conversation exists.
func (m *Messenger) conversationFor(ctx context.Context, conversationID, identity string) (*Conversation, error) {
	conv, err := m.store.FindConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(identity) {
		return nil, fmt.Errorf("%w: %q", ErrConversationNotFound, conversationID)
	}
	return conv, nil
}

// SendMessage encrypts content for every participant of the conversation and
// persists the envelope. The sender is among the recipients, so senders can
// read their own messages back.
func (m *Messenger) SendMessage(ctx context.Context, conversationID, sender string, content []byte) (*Message, error) {
	return m.sendMessage(ctx, conversationID, sender, content, MessageText)
}

func (m *Messenger) sendMessage(ctx context.Context, conversationID, sender string, content []byte, kind MessageKind) (*Message, error) {
	conv, err := m.conversationFor(ctx, conversationID, sender)
	if err != nil {
		return nil, err
	}

	recipientKeys, err := ResolveRecipients(ctx, storeDirectory{m.store}, conv.Participants)
	if err != nil {
		return nil, err
	}

	env, err := Encrypt(content, recipientKeys)
	if err != nil {
		m.log.ErrorContext(ctx, "message encryption failed",
			"operation", "send_message",
			"conversation_id", conversationID,
			"sender", sender,
			"error", err,
		)
		return nil, err
	}

	msg := &Message{
		ConversationID: conversationID,
		SenderID:       sender,
		Kind:           kind,
		Envelope:       env,
	}
	if err := m.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	if err := m.store.TouchConversation(ctx, conversationID); err != nil {
		m.log.WarnContext(ctx, "failed to bump conversation activity",
			"operation", "send_message",
			"conversation_id", conversationID,
			"error", err,
		)
	}

	m.log.InfoContext(ctx, "message sent",
		"operation", "send_message",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"sender", sender,
		"recipients", len(env.Keys),
	)
	return msg, nil
}

// ReadMessage decrypts a stored message for the requesting identity. The
// plaintext is returned transiently and never persisted. Identities outside
// the conversation, or absent from the envelope's key map, are denied.
func (m *Messenger) ReadMessage(ctx context.Context, messageID, identity string, privateKeyPEM []byte) ([]byte, error) {
	msg, err := m.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if _, err := m.conversationFor(ctx, msg.ConversationID, identity); err != nil {
		return nil, &AccessDeniedError{Identity: identity}
	}

	plaintext, err := Decrypt(msg.Envelope, identity, privateKeyPEM)
	if err != nil {
		m.log.WarnContext(ctx, "message decryption failed",
			"operation", "read_message",
			"message_id", messageID,
			"identity", identity,
			"error", err,
		)
		return nil, err
	}

	return plaintext, nil
}

// Messages returns up to limit newest messages of the conversation in
// chronological order, envelopes included, for the requesting participant.
func (m *Messenger) Messages(ctx context.Context, conversationID, identity string, limit int) ([]*Message, error) {
	if _, err := m.conversationFor(ctx, conversationID, identity); err != nil {
		return nil, err
	}
	return m.store.ListMessages(ctx, conversationID, limit)
}

// Conversations returns the identity's conversations, most recently active
// first.
func (m *Messenger) Conversations(ctx context.Context, identity string) ([]*Conversation, error) {
	return m.store.ListConversations(ctx, identity)
}

// AttachFile encrypts file data through the attachment codec, stores the
// text-safe ciphertext in the blob store, and records the attachment under
// the given message. The sender must be a participant of the message's
// conversation.
func (m *Messenger) AttachFile(ctx context.Context, messageID, sender, fileName, mimeType string, data []byte) (*Attachment, error) {
	msg, err := m.store.FindMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	conv, err := m.conversationFor(ctx, msg.ConversationID, sender)
	if err != nil {
		return nil, err
	}

	recipientKeys, err := ResolveRecipients(ctx, storeDirectory{m.store}, conv.Participants)
	if err != nil {
		return nil, err
	}

	attEnv, err := m.codec.Encrypt(data, recipientKeys)
	if err != nil {
		m.log.ErrorContext(ctx, "attachment encryption failed",
			"operation", "attach_file",
			"message_id", messageID,
			"sender", sender,
			"size", len(data),
			"error", err,
		)
		return nil, err
	}

	blobName, err := m.blobs.Write(ctx, attEnv.Content)
	if err != nil {
		return nil, fmt.Errorf("storing attachment payload: %w", err)
	}

	att := &Attachment{
		MessageID: messageID,
		FileName:  fileName,
		Size:      int64(len(data)),
		MimeType:  mimeType,
		BlobName:  blobName,
		IV:        attEnv.IV,
		Keys:      attEnv.Keys,
	}
	if err := m.store.CreateAttachment(ctx, att); err != nil {
		// The blob is orphaned if this fails; best effort cleanup.
		if rmErr := m.blobs.Remove(ctx, blobName); rmErr != nil {
			m.log.WarnContext(ctx, "failed to remove orphaned blob",
				"operation", "attach_file",
				"blob", blobName,
				"error", rmErr,
			)
		}
		return nil, fmt.Errorf("storing attachment: %w", err)
	}

	m.log.InfoContext(ctx, "attachment stored",
		"operation", "attach_file",
		"message_id", messageID,
		"attachment_id", att.ID,
		"size", att.Size,
	)
	return att, nil
}

// OpenAttachment reads the stored ciphertext and decrypts it for the
// requesting identity, returning the original file bytes.
func (m *Messenger) OpenAttachment(ctx context.Context, attachmentID, identity string, privateKeyPEM []byte) ([]byte, error) {
	att, err := m.store.FindAttachment(ctx, attachmentID)
	if err != nil {
		return nil, err
	}

	msg, err := m.store.FindMessage(ctx, att.MessageID)
	if err != nil {
		return nil, err
	}

	if _, err := m.conversationFor(ctx, msg.ConversationID, identity); err != nil {
		return nil, &AccessDeniedError{Identity: identity}
	}

	content, err := m.blobs.Read(ctx, att.BlobName)
	if err != nil {
		return nil, fmt.Errorf("reading attachment payload: %w", err)
	}

	return m.codec.Decrypt(&AttachmentEnvelope{
		Content: content,
		IV:      att.IV,
		Keys:    att.Keys,
	}, identity, privateKeyPEM)
}

// DeleteConversation removes a conversation with all its messages,
// attachments, and blob payloads. Envelopes are deleted atomically with
// their owning rows; blob removal is best effort after the transaction.
func (m *Messenger) DeleteConversation(ctx context.Context, conversationID, identity string) error {
	if _, err := m.conversationFor(ctx, conversationID, identity); err != nil {
		return err
	}

	atts, err := m.store.ListConversationAttachments(ctx, conversationID)
	if err != nil {
		return err
	}

	if err := m.store.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	for _, att := range atts {
		if err := m.blobs.Remove(ctx, att.BlobName); err != nil {
			m.log.WarnContext(ctx, "failed to remove attachment blob",
				"operation", "delete_conversation",
				"blob", att.BlobName,
				"error", err,
			)
		}
	}

	m.log.InfoContext(ctx, "conversation deleted",
		"operation", "delete_conversation",
		"conversation_id", conversationID,
		"attachments", len(atts),
	)
	return nil
}

// storeDirectory adapts an EnvelopeStore to the Directory interface.
type storeDirectory struct {
	store EnvelopeStore
}

func (d storeDirectory) PublicKey(ctx context.Context, identity string) ([]byte, error) {
	return d.store.PublicKey(ctx, identity)
}
