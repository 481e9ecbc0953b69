package embedding

import (
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIModel 是一个用于 OpenAI API 的 Embedding 模型客户端。
type OpenAIModel struct {
	client *openai.Client // OpenAI 客户端实例。
	model  string         // 要使用的模型名称。
	apiKey string
}

// NewOpenAIModel 创建一个新的 OpenAIModel 客户端。
// baseURL 非空时指向兼容 OpenAI 协议的服务。
func NewOpenAIModel(apiKey, modelName, baseURL string) *OpenAIModel {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIModel{client: client, model: modelName, apiKey: apiKey}
}

func (m *OpenAIModel) Name() string { return string(OpenAI) }

func (m *OpenAIModel) Validate() error {
	if strings.TrimSpace(m.apiKey) == "" {
		return fmt.Errorf("%w: openai api key is not set", ragerr.ErrConfiguration)
	}
	return nil
}

// Embed 使用 OpenAI API 为单个文本生成嵌入向量。
func (m *OpenAIModel) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(m.model),
	}
	resp, err := m.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: openai returned no embeddings", ragerr.ErrUnexpectedResponseFormat)
	}
	return resp.Data[0].Embedding, nil
}

// mapOpenAIError 将 OpenAI 的 HTTP 状态码映射为统一的错误类型。
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
	return fmt.Errorf("failed to create embeddings: %w", err)
}

var _ Provider = (*OpenAIModel)(nil)
