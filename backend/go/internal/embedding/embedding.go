package embedding

import (
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/textutil"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
)

// Client 在具体提供商之上统一输入预处理与输出维度。
// 每次调用的顺序: 凭证检查 -> 截断 -> 清洗 -> 空文本返回零向量 -> 调用提供商 -> 维度对齐。
type Client struct {
	provider      Provider
	dimension     int
	maxInputChars int
	log           *logger.Logger
}

// NewClient 创建一个新的 Client。
//
// 参数:
//
//	provider: 具体的 Embedding 提供商。
//	dimension: 系统统一的向量维度 D。
//	maxInputChars: 发送前的最大字符数，<= 0 表示不截断。
//	log: 日志记录器。
func NewClient(provider Provider, dimension, maxInputChars int, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		provider:      provider,
		dimension:     dimension,
		maxInputChars: maxInputChars,
		log:           log.With("embedding_provider", provider.Name()),
	}
}

// Dimension 返回向量维度 D。
func (c *Client) Dimension() int { return c.dimension }

// Embed 为文本生成长度恰好为 D 的向量。
// 提供商的错误原样 (包装后) 返回给调用方，不做重试。
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.provider.Validate(); err != nil {
		return nil, err
	}

	text = textutil.Sanitize(textutil.Truncate(text, c.maxInputChars))
	if text == "" {
		return make([]float32, c.dimension), nil
	}

	vector, err := c.provider.Embed(ctx, text)
	if err != nil {
		c.log.WithErr(err).Warn("embedding request failed")
		return nil, fmt.Errorf("embed with %s: %w", c.provider.Name(), err)
	}
	if len(vector) != c.dimension {
		c.log.WithFields(map[string]interface{}{
			"returned": len(vector),
			"expected": c.dimension,
		}).Debug("normalising embedding dimension")
	}
	return Normalize(vector, c.dimension), nil
}

// Normalize 将向量截断或在末尾补零到长度 d，不修改入参。
func Normalize(vector []float32, d int) []float32 {
	out := make([]float32, d)
	copy(out, vector)
	return out
}

var _ interfaces.Embedder = (*Client)(nil)
