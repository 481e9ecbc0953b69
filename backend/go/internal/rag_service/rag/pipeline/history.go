package pipeline

import (
	"Athena/backend/go/internal/models"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// HistoryTrimmer keeps the newest messages that fit in a token budget.
type HistoryTrimmer struct {
	encoding  *tiktoken.Tiktoken
	maxTokens int
}

// NewHistoryTrimmer returns nil when maxTokens is 0, which disables trimming.
func NewHistoryTrimmer(encoding string, maxTokens int) (*HistoryTrimmer, error) {
	if maxTokens <= 0 {
		return nil, nil
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	return &HistoryTrimmer{encoding: enc, maxTokens: maxTokens}, nil
}

// Count returns the number of tokens in text.
func (t *HistoryTrimmer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Trim drops the oldest messages until the rest, plus reserved tokens for
// the system prompt and new message, fit the budget. Order is preserved.
func (t *HistoryTrimmer) Trim(history []models.Message, reserved int) []models.Message {
	if t == nil {
		return history
	}
	budget := t.maxTokens - reserved
	start := len(history)
	for start > 0 {
		cost := t.Count(history[start-1].Content)
		if cost > budget {
			break
		}
		budget -= cost
		start--
	}
	return history[start:]
}
