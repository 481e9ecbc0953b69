package embedding

import (
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaModel 是一个用于 Ollama API 的 Embedding 模型客户端。
type OllamaModel struct {
	client *ollama.Client // Ollama 客户端实例。
	model  string         // 要使用的模型名称。
}

// NewOllamaModel 创建一个新的 OllamaModel 客户端。
//
// 参数:
//
//	model: 要使用的模型名称。
//	baseURL: Ollama 服务的基准 URL。如果为空，则默认为 "http://localhost:11434"。
//	timeout: 单次请求超时。
//
// 返回值:
//
//	*OllamaModel: 新创建的 OllamaModel 客户端实例。
//	error: 如果基准 URL 无效，则返回错误。
func NewOllamaModel(model, baseURL string, timeout time.Duration) (*OllamaModel, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ollama base URL: %v", ragerr.ErrConfiguration, err)
	}
	client := ollama.NewClient(parsedURL, &http.Client{Timeout: timeout})
	return &OllamaModel{client: client, model: model}, nil
}

func (m *OllamaModel) Name() string { return string(Ollama) }

// Validate 本地服务不需要凭证，只检查模型名称。
func (m *OllamaModel) Validate() error {
	if m.model == "" {
		return fmt.Errorf("%w: ollama embedding model is not set", ragerr.ErrConfiguration)
	}
	return nil
}

// Embed 为单个文本生成嵌入向量。
func (m *OllamaModel) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.client.Embed(ctx, &ollama.EmbedRequest{
		Model: m.model,
		Input: text,
	})
	if err != nil {
		return nil, mapOllamaError(err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: ollama returned no embeddings", ragerr.ErrUnexpectedResponseFormat)
	}
	return resp.Embeddings[0], nil
}

func mapOllamaError(err error) error {
	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		if mapped := ragerr.FromStatus(statusErr.StatusCode, err); mapped != nil {
			return mapped
		}
	}
	return fmt.Errorf("failed to get embeddings from ollama: %w", err)
}

var _ Provider = (*OllamaModel)(nil)
