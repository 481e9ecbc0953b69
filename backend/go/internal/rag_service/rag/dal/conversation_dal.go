package dal

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// ConversationDAL provides data access methods for conversations and messages.
type ConversationDAL struct {
	db *gorm.DB
}

// NewConversationDAL creates a new ConversationDAL.
func NewConversationDAL(db *gorm.DB) *ConversationDAL {
	return &ConversationDAL{db: db}
}

func (dal *ConversationDAL) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := dal.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ragerr.ErrConversationNotFound, id)
	}
	return &conv, nil
}

// ListConversations returns conversations, most recently active first.
func (dal *ConversationDAL) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := dal.db.WithContext(ctx).Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

func (dal *ConversationDAL) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if err := dal.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes the conversation and its messages.
func (dal *ConversationDAL) DeleteConversation(ctx context.Context, id string) error {
	return dal.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		res := tx.Delete(&models.Conversation{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ragerr.ErrConversationNotFound, id)
		}
		return nil
	})
}

// RecentMessages returns the last limit messages in chronological (seq) order.
func (dal *ConversationDAL) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := dal.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (dal *ConversationDAL) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := dal.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// SaveTurn writes the (optional) new conversation, both messages and the
// conversation's updated_at in one transaction. The messages get the next
// two sequence numbers; the unique (conversation_id, seq) index rejects a
// concurrent writer that picked the same numbers.
func (dal *ConversationDAL) SaveTurn(ctx context.Context, turn *schema.Turn) error {
	return dal.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if turn.Conversation != nil {
			if turn.Conversation.CreatedAt.IsZero() {
				turn.Conversation.CreatedAt = turn.At
			}
			if err := tx.Create(turn.Conversation).Error; err != nil {
				return fmt.Errorf("create conversation: %w", err)
			}
		}

		var maxSeq int64
		err := tx.Model(&models.Message{}).
			Where("conversation_id = ?", turn.ConversationID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return fmt.Errorf("read sequence: %w", err)
		}

		turn.UserMessage.ConversationID = turn.ConversationID
		turn.UserMessage.Seq = maxSeq + 1
		turn.AssistantMessage.ConversationID = turn.ConversationID
		turn.AssistantMessage.Seq = maxSeq + 2
		if err := tx.Create(turn.UserMessage).Error; err != nil {
			return fmt.Errorf("save user message: %w", err)
		}
		if err := tx.Create(turn.AssistantMessage).Error; err != nil {
			return fmt.Errorf("save assistant message: %w", err)
		}

		res := tx.Model(&models.Conversation{}).
			Where("id = ?", turn.ConversationID).
			Update("updated_at", turn.At)
		if res.Error != nil {
			return fmt.Errorf("touch conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ragerr.ErrConversationNotFound, turn.ConversationID)
		}
		return nil
	})
}

var _ interfaces.ConversationStore = (*ConversationDAL)(nil)
