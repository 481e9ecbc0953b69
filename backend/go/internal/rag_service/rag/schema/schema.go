package schema

import (
	"Athena/backend/go/internal/models"
	"time"
)

// RetrievedChunk is one ranked result of a similarity query.
type RetrievedChunk struct {
	Text            string  `json:"text"`
	DocumentID      string  `json:"documentId"`
	DocumentTitle   string  `json:"documentTitle"`
	DocumentSubject string  `json:"documentSubject"`
	ChunkIndex      int     `json:"chunkIndex"`
	Similarity      float64 `json:"similarity"` // 1 - cosine distance
}

// IngestRequest carries an uploaded file and its user-supplied metadata.
type IngestRequest struct {
	Title       string
	Description string
	Subject     string
	FileName    string
	ContentType string
	Data        []byte
}

// IngestResult summarises an ingestion. Warnings holds one entry per failed
// chunk, formatted as "chunk <index>: <error>", in chunk order.
type IngestResult struct {
	DocumentID      string   `json:"documentId"`
	ChunksProcessed int      `json:"chunksProcessed"`
	TotalChunks     int      `json:"totalChunks"`
	Warnings        []string `json:"warnings"`
}

// IngestionEvent is published once a document has been indexed.
type IngestionEvent struct {
	DocumentID      string    `json:"documentId"`
	Title           string    `json:"title"`
	Subject         string    `json:"subject"`
	ChunksProcessed int       `json:"chunksProcessed"`
	TotalChunks     int       `json:"totalChunks"`
	Warnings        []string  `json:"warnings,omitempty"`
	At              time.Time `json:"at"`
}

// ChatRequest is a single user turn. An empty ConversationID starts a new conversation.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	SystemPrompt   string `json:"systemPrompt"`
}

// ChatResponse is the assistant's reply to a ChatRequest.
type ChatResponse struct {
	ConversationID    string `json:"conversationId"`
	MessageID         string `json:"messageId"`
	Response          string `json:"response"`
	IsNewConversation bool   `json:"isNewConversation"`
}

// Turn is the unit a ConversationStore persists atomically. Conversation is
// set only when the turn starts a new conversation.
type Turn struct {
	Conversation     *models.Conversation
	ConversationID   string
	UserMessage      *models.Message
	AssistantMessage *models.Message
	At               time.Time
}

// QuizQuestion is a validated multiple-choice question.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// Quiz is the API view of a stored quiz.
type Quiz struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Subject     string         `json:"subject"`
	DocumentIDs []string       `json:"documentIds"`
	Questions   []QuizQuestion `json:"questions"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// QuizResult is returned by quiz generation.
type QuizResult struct {
	QuizID string `json:"quizId"`
	Quiz   Quiz   `json:"quiz"`
}
