package llm

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAI 是一个用于 OpenAI API 的 LLM 客户端。
type OpenAI struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
	apiKey string
	defaults
}

// NewOpenAI 创建一个新的 OpenAI 客户端。baseURL 为空时使用官方地址。
func NewOpenAI(model, apiKey, baseURL string, timeout time.Duration, d defaults) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAI{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		apiKey:   apiKey,
		defaults: d,
	}
}

// Generate 使用 Chat Completions 接口生成回复。
func (o *OpenAI) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(o.apiKey) == "" {
		return nil, fmt.Errorf("%w: openai api key is not set", ragerr.ErrConfiguration)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, o.toOpenAIRequest(req))
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, emptyReply("openai")
	}
	return &GenerateResponse{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

// toOpenAIRequest 将我们的内部请求格式转换为 OpenAI 格式。
func (o *OpenAI) toOpenAIRequest(req *GenerateRequest) openai.ChatCompletionRequest {
	maxTokens, temperature := o.resolve(req)
	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.conversation() {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

func mapOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if mapped := ragerr.FromStatus(status, err); mapped != nil {
		return mapped
	}
	return fmt.Errorf("failed to create chat completion: %w", err)
}

var _ LLM = (*OpenAI)(nil)
