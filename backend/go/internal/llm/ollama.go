package llm

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	olla "github.com/ollama/ollama/api"
)

// Ollama 是一个用于 Ollama API 的 LLM 客户端。
type Ollama struct {
	client *olla.Client // Ollama 客户端实例。
	model  string       // 要使用的模型名称。
	defaults
}

// NewOllama 创建一个新的 Ollama 客户端。
//
// 参数:
//
//	model: 要使用的模型名称。
//	baseURL: Ollama 服务的基准 URL。如果为空，则默认为 "http://localhost:11434"。
//	timeout: 单次请求超时。
//
// 返回值:
//
//	*Ollama: 新创建的 Ollama 客户端实例。
//	error: 如果基准 URL 无效，则返回错误。
func NewOllama(model, baseURL string, timeout time.Duration, d defaults) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ollama base URL: %v", ragerr.ErrConfiguration, err)
	}
	client := olla.NewClient(parsedURL, &http.Client{Timeout: timeout})
	return &Ollama{client: client, model: model, defaults: d}, nil
}

// Generate 使用 Ollama 的 chat 接口生成回复 (非流式)。
func (o *Ollama) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	maxTokens, temperature := o.resolve(req)

	var messages []olla.Message
	if req.SystemPrompt != "" {
		messages = append(messages, olla.Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.conversation() {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, olla.Message{Role: role, Content: m.Content})
	}

	options := map[string]interface{}{"num_predict": maxTokens}
	if temperature != nil {
		options["temperature"] = *temperature
	}

	stream := false
	var sb strings.Builder
	err := o.client.Chat(ctx, &olla.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}, func(resp olla.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr olla.StatusError
		if errors.As(err, &statusErr) {
			if mapped := ragerr.FromStatus(statusErr.StatusCode, err); mapped != nil {
				return nil, mapped
			}
		}
		return nil, fmt.Errorf("failed to generate content with ollama: %w", err)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, emptyReply("ollama")
	}
	return &GenerateResponse{Text: sb.String(), Model: o.model}, nil
}

var _ LLM = (*Ollama)(nil)
