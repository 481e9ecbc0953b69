package pipeline

import (
	"Athena/backend/go/internal/llm"
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/internal/rag_service/rag/textutil"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultConversationTitle is used when no title can be derived from the first message.
const DefaultConversationTitle = "New Conversation"

const maxTitleRunes = 60

// ChatOptions tunes a ConversationManager.
type ChatOptions struct {
	HistoryLimit int
	SystemPrompt string
	MaxTokens    int
	Temperature  *float32      // nil uses the model client's default
	LockWait     time.Duration // 0 waits as long as the request context allows
}

// ConversationManager runs tutoring turns. Each turn is generated first and
// then persisted in one transaction, so a failed turn leaves nothing behind.
type ConversationManager struct {
	store   interfaces.ConversationStore
	llm     llm.LLM
	locks   interfaces.Locker
	trimmer *HistoryTrimmer
	opts    ChatOptions
	log     *logger.Logger
	now     func() time.Time
}

// NewConversationManager creates a new ConversationManager. trimmer may be nil.
func NewConversationManager(
	store interfaces.ConversationStore,
	client llm.LLM,
	locks interfaces.Locker,
	trimmer *HistoryTrimmer,
	opts ChatOptions,
	log *logger.Logger,
) *ConversationManager {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &ConversationManager{
		store:   store,
		llm:     client,
		locks:   locks,
		trimmer: trimmer,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// Chat answers one user message. An empty ConversationID starts a new conversation.
func (m *ConversationManager) Chat(ctx context.Context, req schema.ChatRequest) (*schema.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", ragerr.ErrEmptyInput)
	}

	turn := &schema.Turn{}
	var history []models.Message
	if req.ConversationID == "" {
		conv := &models.Conversation{ID: uuid.NewString(), Title: ConversationTitle(message)}
		turn.Conversation = conv
		turn.ConversationID = conv.ID
	} else {
		unlock, err := m.lock(ctx, req.ConversationID)
		if err != nil {
			return nil, err
		}
		defer unlock()

		if _, err := m.store.GetConversation(ctx, req.ConversationID); err != nil {
			return nil, err
		}
		history, err = m.store.RecentMessages(ctx, req.ConversationID, m.opts.HistoryLimit)
		if err != nil {
			return nil, err
		}
		turn.ConversationID = req.ConversationID
	}

	systemPrompt := strings.TrimSpace(req.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = m.opts.SystemPrompt
	}
	if m.trimmer != nil {
		history = m.trimmer.Trim(history, m.trimmer.Count(systemPrompt)+m.trimmer.Count(message))
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		msgs = append(msgs, llm.Message{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, llm.Message{Role: models.RoleUser, Content: message})

	log := m.log.With("conversationId", turn.ConversationID)
	reply, err := m.llm.Generate(ctx, &llm.GenerateRequest{
		SystemPrompt: systemPrompt,
		Messages:     msgs,
		MaxTokens:    m.opts.MaxTokens,
		Temperature:  m.opts.Temperature,
	})
	if err != nil {
		log.WithErr(err).Error("Failed to generate reply")
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	now := m.now().UTC()
	turn.At = now
	turn.UserMessage = &models.Message{ID: uuid.NewString(), Role: models.RoleUser, Content: message, CreatedAt: now}
	turn.AssistantMessage = &models.Message{ID: uuid.NewString(), Role: models.RoleAssistant, Content: reply.Text, CreatedAt: now}
	if turn.Conversation != nil {
		turn.Conversation.CreatedAt = now
		turn.Conversation.UpdatedAt = now
	}
	if err := m.store.SaveTurn(ctx, turn); err != nil {
		log.WithErr(err).Error("Failed to save turn")
		return nil, err
	}
	log.Debug(fmt.Sprintf("Saved turn with %d history messages", len(history)))

	return &schema.ChatResponse{
		ConversationID:    turn.ConversationID,
		MessageID:         turn.AssistantMessage.ID,
		Response:          reply.Text,
		IsNewConversation: turn.Conversation != nil,
	}, nil
}

func (m *ConversationManager) lock(ctx context.Context, conversationID string) (func(), error) {
	if m.locks == nil {
		return func() {}, nil
	}
	if m.opts.LockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.LockWait)
		defer cancel()
	}
	unlock, err := m.locks.Lock(ctx, "conversation:"+conversationID)
	if err != nil {
		return nil, fmt.Errorf("wait for conversation %s: %w", conversationID, err)
	}
	return unlock, nil
}

// CreateConversation starts an empty conversation.
func (m *ConversationManager) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	title = textutil.Truncate(strings.TrimSpace(title), 255)
	if title == "" {
		title = DefaultConversationTitle
	}
	now := m.now().UTC()
	conv := &models.Conversation{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	if err := m.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (m *ConversationManager) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	return m.store.ListConversations(ctx)
}

// History returns every message of the conversation in order.
func (m *ConversationManager) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := m.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return m.store.Messages(ctx, conversationID)
}

func (m *ConversationManager) DeleteConversation(ctx context.Context, conversationID string) error {
	return m.store.DeleteConversation(ctx, conversationID)
}

// ConversationTitle derives a title from the first sentence of message.
func ConversationTitle(message string) string {
	if title := textutil.FirstSentence(message, maxTitleRunes); title != "" {
		return title
	}
	return DefaultConversationTitle
}
