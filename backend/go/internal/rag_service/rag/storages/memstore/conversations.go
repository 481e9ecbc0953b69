package memstore

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"context"
	"fmt"
	"sort"
)

func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ragerr.ErrConversationNotFound, id)
	}
	return &conv, nil
}

func (s *Store) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		convs = append(convs, c)
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createConversation(conv)
}

// createConversation must be called with the write lock held.
func (s *Store) createConversation(conv *models.Conversation) error {
	if _, ok := s.conversations[conv.ID]; ok {
		return fmt.Errorf("%w: duplicate conversation id %s", ragerr.ErrInvalidInput, conv.ID)
	}
	now := s.now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	s.conversations[conv.ID] = *conv
	return nil
}

func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("%w: %s", ragerr.ErrConversationNotFound, id)
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]models.Message{}, msgs...), nil
}

func (s *Store) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message{}, s.messages[conversationID]...), nil
}

// SaveTurn checks everything before mutating, so a failed turn leaves no trace.
func (s *Store) SaveTurn(ctx context.Context, turn *schema.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.Conversation != nil {
		if _, ok := s.conversations[turn.Conversation.ID]; ok {
			return fmt.Errorf("%w: duplicate conversation id %s", ragerr.ErrInvalidInput, turn.Conversation.ID)
		}
	} else if _, ok := s.conversations[turn.ConversationID]; !ok {
		return fmt.Errorf("%w: %s", ragerr.ErrConversationNotFound, turn.ConversationID)
	}
	if turn.UserMessage == nil || turn.AssistantMessage == nil {
		return fmt.Errorf("%w: turn needs both messages", ragerr.ErrInvalidInput)
	}

	if turn.Conversation != nil {
		if turn.Conversation.CreatedAt.IsZero() {
			turn.Conversation.CreatedAt = turn.At
		}
		if err := s.createConversation(turn.Conversation); err != nil {
			return err
		}
	}
	existing := s.messages[turn.ConversationID]
	var seq int64
	if n := len(existing); n > 0 {
		seq = existing[n-1].Seq
	}
	for _, m := range []*models.Message{turn.UserMessage, turn.AssistantMessage} {
		seq++
		m.ConversationID = turn.ConversationID
		m.Seq = seq
		if m.CreatedAt.IsZero() {
			m.CreatedAt = turn.At
		}
		existing = append(existing, *m)
	}
	s.messages[turn.ConversationID] = existing

	conv := s.conversations[turn.ConversationID]
	conv.UpdatedAt = turn.At
	s.conversations[turn.ConversationID] = conv
	return nil
}
