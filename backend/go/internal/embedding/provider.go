package embedding

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	pkghttp "Athena/backend/go/pkg/http"
	"context"
	"fmt"
	"time"
)

// Provider 是具体 Embedding 服务的最小接口。
// 返回的向量维度由服务决定，统一维度由 Client 负责。
type Provider interface {
	// Name 返回提供商名称，用于日志与错误信息。
	Name() string
	// Validate 检查调用所需的凭证是否齐全，缺失时返回 ragerr.ErrConfiguration。
	Validate() error
	// Embed 为单个文本生成原始向量。
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelType 是一个枚举类型，用于表示不同的模型厂商。
type ModelType string

const (
	OpenAI      ModelType = "openai"      // OpenAI 模型类型。
	Google      ModelType = "gemini"      // Google 模型类型。
	Ollama      ModelType = "ollama"      // Ollama 模型类型。
	HuggingFace ModelType = "huggingface" // HuggingFace 模型类型。
)

// NewProvider 根据配置创建对应的 Embedding 提供商。
//
// 参数:
//
//	ctx: 上下文，仅用于需要建立连接的客户端 (gemini)。
//	cfg: embedding 配置段。
//
// 返回值:
//
//	Provider: 新创建的提供商实例。
//	error: 如果提供商不支持或初始化失败，则返回错误。
func NewProvider(ctx context.Context, cfg config.EmbeddingConfig) (Provider, error) {
	timeout := config.Duration(cfg.Timeout, 30*time.Second)
	switch ModelType(cfg.Provider) {
	case HuggingFace:
		hc, err := pkghttp.NewClient(cfg.CircuitBreaker, timeout)
		if err != nil {
			return nil, fmt.Errorf("创建 HuggingFace HTTP 客户端失败: %w", err)
		}
		return NewHuggingFaceModel(cfg.HuggingFace.APIKey, cfg.HuggingFace.Model, cfg.HuggingFace.BaseURL, hc), nil
	case OpenAI:
		return NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL), nil
	case Ollama:
		return NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.BaseURL, timeout)
	case Google:
		return NewGoogleModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider %q", ragerr.ErrConfiguration, cfg.Provider)
	}
}
