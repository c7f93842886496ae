package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cipherline/envelope-go"
	"github.com/cipherline/envelope-go/internal/crypto"
)

// IdentityModel holds a registered identity's public key.
type IdentityModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	PublicKey []byte    `gorm:"type:blob;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName returns the table name.
func (IdentityModel) TableName() string {
	return "identities"
}

// ConversationModel is the gorm model for conversations.
type ConversationModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(255)"`
	IsGroup   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime;index:idx_conversations_updated"`
}

// TableName returns the table name.
func (ConversationModel) TableName() string {
	return "conversations"
}

// BeforeCreate assigns a UUID before insert.
func (c *ConversationModel) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// ParticipantModel links an identity to a conversation.
type ParticipantModel struct {
	ConversationID string    `gorm:"type:char(36);primaryKey;index:idx_participants_conversation"`
	UserID         string    `gorm:"type:varchar(64);primaryKey;index:idx_participants_user"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
}

// TableName returns the table name.
func (ParticipantModel) TableName() string {
	return "conversation_participants"
}

// MessageModel persists one message with its opaque envelope fields:
// base64 ciphertext, base64 IV, and the JSON key map.
type MessageModel struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	ConversationID string    `gorm:"type:char(36);not null;index:idx_messages_conversation"`
	SenderID       string    `gorm:"type:varchar(64);not null;index:idx_messages_sender"`
	Kind           string    `gorm:"type:varchar(20);not null;default:'text'"`
	Ciphertext     string    `gorm:"type:text;not null"`
	EncryptedKeys  string    `gorm:"type:text;not null"`
	IV             string    `gorm:"type:varchar(32);not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime;index:idx_messages_created"`
}

// TableName returns the table name.
func (MessageModel) TableName() string {
	return "messages"
}

// BeforeCreate assigns a UUID before insert.
func (m *MessageModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// toDomain converts the model to a domain message, decoding the envelope
// fields.
func (m *MessageModel) toDomain() (*envelope.Message, error) {
	ciphertext, err := crypto.FromBase64(m.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: message %s ciphertext: %v", envelope.ErrInvalidEnvelope, m.ID, err)
	}

	iv, err := crypto.FromBase64(m.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: message %s iv: %v", envelope.ErrInvalidEnvelope, m.ID, err)
	}

	var keys envelope.KeyMap
	if err := json.Unmarshal([]byte(m.EncryptedKeys), &keys); err != nil {
		return nil, fmt.Errorf("%w: message %s key map: %v", envelope.ErrInvalidEnvelope, m.ID, err)
	}

	return &envelope.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Kind:           envelope.MessageKind(m.Kind),
		Envelope: &envelope.Envelope{
			Ciphertext: ciphertext,
			IV:         iv,
			Keys:       keys,
		},
		SentAt: m.CreatedAt,
	}, nil
}

// messageModel encodes a domain message into its persisted form.
func messageModel(msg *envelope.Message) (*MessageModel, error) {
	keysJSON, err := json.Marshal(msg.Envelope.Keys)
	if err != nil {
		return nil, fmt.Errorf("encoding key map: %w", err)
	}

	return &MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Kind:           string(msg.Kind),
		Ciphertext:     crypto.ToBase64(msg.Envelope.Ciphertext),
		EncryptedKeys:  string(keysJSON),
		IV:             crypto.ToBase64(msg.Envelope.IV),
	}, nil
}

// AttachmentModel persists attachment metadata plus the envelope's IV and
// key map; the base64 ciphertext lives in the blob store under BlobName.
type AttachmentModel struct {
	ID            string    `gorm:"type:char(36);primaryKey"`
	MessageID     string    `gorm:"type:char(36);not null;index:idx_attachments_message"`
	FileName      string    `gorm:"type:varchar(255);not null"`
	Size          int64     `gorm:"not null"`
	MimeType      string    `gorm:"type:varchar(100);not null"`
	BlobName      string    `gorm:"type:varchar(255);not null"`
	EncryptedKeys string    `gorm:"type:text;not null"`
	IV            string    `gorm:"type:varchar(32);not null"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime"`
}

// TableName returns the table name.
func (AttachmentModel) TableName() string {
	return "message_attachments"
}

// BeforeCreate assigns a UUID before insert.
func (a *AttachmentModel) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

func (a *AttachmentModel) toDomain() (*envelope.Attachment, error) {
	iv, err := crypto.FromBase64(a.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: attachment %s iv: %v", envelope.ErrInvalidEnvelope, a.ID, err)
	}

	var keys envelope.KeyMap
	if err := json.Unmarshal([]byte(a.EncryptedKeys), &keys); err != nil {
		return nil, fmt.Errorf("%w: attachment %s key map: %v", envelope.ErrInvalidEnvelope, a.ID, err)
	}

	return &envelope.Attachment{
		ID:        a.ID,
		MessageID: a.MessageID,
		FileName:  a.FileName,
		Size:      a.Size,
		MimeType:  a.MimeType,
		BlobName:  a.BlobName,
		IV:        iv,
		Keys:      keys,
		CreatedAt: a.CreatedAt,
	}, nil
}

func attachmentModel(att *envelope.Attachment) (*AttachmentModel, error) {
	keysJSON, err := json.Marshal(att.Keys)
	if err != nil {
		return nil, fmt.Errorf("encoding key map: %w", err)
	}

	return &AttachmentModel{
		ID:            att.ID,
		MessageID:     att.MessageID,
		FileName:      att.FileName,
		Size:          att.Size,
		MimeType:      att.MimeType,
		BlobName:      att.BlobName,
		EncryptedKeys: string(keysJSON),
		IV:            crypto.ToBase64(att.IV),
	}, nil
}
