package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"gorm.io/gorm"

	"github.com/cipherline/envelope-go"
)

// Store implements envelope.EnvelopeStore on a gorm database.
type Store struct {
	db *gorm.DB
}

// New creates a Store over an open database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveIdentity registers or replaces an identity's public key.
func (s *Store) SaveIdentity(ctx context.Context, identity string, publicKeyPEM []byte) error {
	model := &IdentityModel{ID: identity, PublicKey: publicKeyPEM}
	err := s.db.WithContext(ctx).Save(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to save identity",
			"operation", "save_identity",
			"identity", identity,
			"error", err,
		)
	}
	return err
}

// PublicKey resolves a registered identity's public key.
func (s *Store) PublicKey(ctx context.Context, identity string) ([]byte, error) {
	var model IdentityModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", envelope.ErrIdentityNotFound, identity)
		}
		slog.ErrorContext(ctx, "failed to find identity",
			"operation", "public_key",
			"identity", identity,
			"error", err,
		)
		return nil, err
	}
	return model.PublicKey, nil
}

// CreateConversation stores a conversation and its participant rows in one
// transaction.
func (s *Store) CreateConversation(ctx context.Context, conv *envelope.Conversation) error {
	model := &ConversationModel{
		ID:      conv.ID,
		Name:    conv.Name,
		IsGroup: conv.IsGroup,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		for _, id := range conv.Participants {
			p := &ParticipantModel{ConversationID: model.ID, UserID: id}
			if err := tx.Create(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create conversation",
			"operation", "create_conversation",
			"participants", len(conv.Participants),
			"error", err,
		)
		return err
	}

	conv.ID = model.ID
	conv.CreatedAt = model.CreatedAt
	conv.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *Store) participants(ctx context.Context, conversationID string) ([]string, error) {
	var rows []ParticipantModel
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) conversationFromModel(ctx context.Context, model *ConversationModel) (*envelope.Conversation, error) {
	participants, err := s.participants(ctx, model.ID)
	if err != nil {
		return nil, err
	}
	return &envelope.Conversation{
		ID:           model.ID,
		Name:         model.Name,
		IsGroup:      model.IsGroup,
		Participants: participants,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}, nil
}

// FindConversation returns a conversation with its participant list.
func (s *Store) FindConversation(ctx context.Context, id string) (*envelope.Conversation, error) {
	var model ConversationModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", envelope.ErrConversationNotFound, id)
		}
		return nil, err
	}
	return s.conversationFromModel(ctx, &model)
}

// FindDirectConversation returns the existing non-group conversation between
// exactly the two identities.
func (s *Store) FindDirectConversation(ctx context.Context, a, b string) (*envelope.Conversation, error) {
	var candidates []ConversationModel
	err := s.db.WithContext(ctx).
		Where("is_group = ? AND id IN (?)", false,
			s.db.Model(&ParticipantModel{}).Select("conversation_id").Where("user_id = ?", a)).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	want := []string{a, b}
	slices.Sort(want)
	for i := range candidates {
		conv, err := s.conversationFromModel(ctx, &candidates[i])
		if err != nil {
			return nil, err
		}
		if slices.Equal(conv.Participants, want) {
			return conv, nil
		}
	}

	return nil, fmt.Errorf("%w: direct conversation %q/%q", envelope.ErrConversationNotFound, a, b)
}

// ListConversations returns the identity's conversations, most recently
// active first.
func (s *Store) ListConversations(ctx context.Context, identity string) ([]*envelope.Conversation, error) {
	var models []ConversationModel
	err := s.db.WithContext(ctx).
		Where("id IN (?)",
			s.db.Model(&ParticipantModel{}).Select("conversation_id").Where("user_id = ?", identity)).
		Order("updated_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to list conversations",
			"operation", "list_conversations",
			"identity", identity,
			"error", err,
		)
		return nil, err
	}

	convs := make([]*envelope.Conversation, 0, len(models))
	for i := range models {
		conv, err := s.conversationFromModel(ctx, &models[i])
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// DeleteConversation removes the conversation, its participants, messages,
// and attachment rows in one transaction.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messageIDs := tx.Model(&MessageModel{}).Select("id").Where("conversation_id = ?", id)
		if err := tx.Where("message_id IN (?)", messageIDs).Delete(&AttachmentModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&ParticipantModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ConversationModel{}, "id = ?", id).Error
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete conversation",
			"operation", "delete_conversation",
			"conversation_id", id,
			"error", err,
		)
	}
	return err
}

// TouchConversation bumps the conversation's activity timestamp.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

// CreateMessage stores a message with its envelope fields.
func (s *Store) CreateMessage(ctx context.Context, msg *envelope.Message) error {
	model, err := messageModel(msg)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create message",
			"operation", "create_message",
			"conversation_id", msg.ConversationID,
			"sender", msg.SenderID,
			"error", err,
		)
		return err
	}

	msg.ID = model.ID
	msg.SentAt = model.CreatedAt
	return nil
}

// FindMessage returns a stored message with its envelope decoded.
func (s *Store) FindMessage(ctx context.Context, id string) (*envelope.Message, error) {
	var model MessageModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", envelope.ErrMessageNotFound, id)
		}
		return nil, err
	}
	return model.toDomain()
}

// ListMessages returns up to limit newest messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]*envelope.Message, error) {
	q := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var models []MessageModel
	if err := q.Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to list messages",
			"operation", "list_messages",
			"conversation_id", conversationID,
			"error", err,
		)
		return nil, err
	}

	msgs := make([]*envelope.Message, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msg, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// CreateAttachment stores attachment metadata and envelope fields.
func (s *Store) CreateAttachment(ctx context.Context, att *envelope.Attachment) error {
	model, err := attachmentModel(att)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create attachment",
			"operation", "create_attachment",
			"message_id", att.MessageID,
			"error", err,
		)
		return err
	}

	att.ID = model.ID
	att.CreatedAt = model.CreatedAt
	return nil
}

// FindAttachment returns a stored attachment.
func (s *Store) FindAttachment(ctx context.Context, id string) (*envelope.Attachment, error) {
	var model AttachmentModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q", envelope.ErrAttachmentNotFound, id)
		}
		return nil, err
	}
	return model.toDomain()
}

// ListAttachments returns the attachments of one message.
func (s *Store) ListAttachments(ctx context.Context, messageID string) ([]*envelope.Attachment, error) {
	var models []AttachmentModel
	err := s.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	atts := make([]*envelope.Attachment, 0, len(models))
	for i := range models {
		att, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}
	return atts, nil
}

// ListConversationAttachments returns every attachment in a conversation.
func (s *Store) ListConversationAttachments(ctx context.Context, conversationID string) ([]*envelope.Attachment, error) {
	var models []AttachmentModel
	err := s.db.WithContext(ctx).
		Where("message_id IN (?)",
			s.db.Model(&MessageModel{}).Select("id").Where("conversation_id = ?", conversationID)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	atts := make([]*envelope.Attachment, 0, len(models))
	for i := range models {
		att, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		atts = append(atts, att)
	}
	return atts, nil
}
