package embedding

import (
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleModel 是一个用于 Google GenAI Embedding API 的客户端。
type GoogleModel struct {
	model  *genai.EmbeddingModel
	apiKey string
}

// NewGoogleModel 创建并返回一个新的 GoogleModel 客户端实例。
// 未配置 API 密钥时不建立连接，Validate 会报告配置错误。
func NewGoogleModel(ctx context.Context, apiKey string, modelName string) (*GoogleModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return &GoogleModel{}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建 GenAI 客户端失败: %w", err)
	}
	return &GoogleModel{
		model:  client.EmbeddingModel(modelName),
		apiKey: apiKey,
	}, nil
}

func (m *GoogleModel) Name() string { return string(Google) }

func (m *GoogleModel) Validate() error {
	if m.model == nil {
		return fmt.Errorf("%w: gemini api key is not set", ragerr.ErrConfiguration)
	}
	return nil
}

// Embed 为单个文本生成嵌入向量。
func (m *GoogleModel) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := m.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content with gemini: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embedding", ragerr.ErrUnexpectedResponseFormat)
	}
	return res.Embedding.Values, nil
}

var _ Provider = (*GoogleModel)(nil)
