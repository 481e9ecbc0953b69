package llm

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	pkghttp "Athena/backend/go/pkg/http"
	"context"
	"fmt"
	"strings"
	"time"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
type LLM interface {
	// Generate 发送一次非流式请求并返回完整的回复文本。
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// Message 是对话中的一条消息。
type Message struct {
	Role    models.Role
	Content string
}

// GenerateRequest 是与提供商无关的生成请求。
// Messages 与 Prompt 可以同时给出，Prompt 作为最后一条用户消息追加。
type GenerateRequest struct {
	SystemPrompt string
	Messages     []Message
	Prompt       string
	MaxTokens    int      // 0 表示使用客户端默认值
	Temperature  *float32 // nil 表示使用客户端默认值，0 是合法的确定性输出
}

// GenerateResponse 是生成结果。
type GenerateResponse struct {
	Text  string
	Model string
}

// conversation 返回完整的消息序列 (不含系统提示)。
func (r *GenerateRequest) conversation() []Message {
	msgs := make([]Message, 0, len(r.Messages)+1)
	msgs = append(msgs, r.Messages...)
	if strings.TrimSpace(r.Prompt) != "" {
		msgs = append(msgs, Message{Role: models.RoleUser, Content: r.Prompt})
	}
	return msgs
}

// defaults 保存客户端级别的默认生成参数。
type defaults struct {
	maxTokens   int
	temperature float32
}

// resolve 返回 nil 温度表示请求与客户端都未指定，交由提供商决定。
func (d defaults) resolve(req *GenerateRequest) (int, *float32) {
	maxTokens, temperature := req.MaxTokens, req.Temperature
	if maxTokens <= 0 {
		maxTokens = d.maxTokens
	}
	if temperature == nil && d.temperature > 0 {
		t := d.temperature
		temperature = &t
	}
	return maxTokens, temperature
}

// Float32 返回 v 的指针，便于填写 GenerateRequest.Temperature。
func Float32(v float32) *float32 {
	return &v
}

func validateRequest(req *GenerateRequest) error {
	if req == nil || len(req.conversation()) == 0 {
		return fmt.Errorf("%w: generation request has no messages", ragerr.ErrInvalidInput)
	}
	return nil
}

func emptyReply(provider string) error {
	return fmt.Errorf("%w: %s returned an empty reply", ragerr.ErrUnexpectedResponseFormat, provider)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
// 缺少凭证不会导致创建失败，而是在每次 Generate 时返回 ragerr.ErrConfiguration，
// 这样未配置 LLM 时文档入库仍然可用。
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	timeout := config.Duration(cfg.Timeout, 60*time.Second)
	d := defaults{maxTokens: cfg.MaxTokens, temperature: cfg.Temperature}
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, timeout, d), nil
	case "gemini":
		return NewGemini(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey, d)
	case "ollama":
		return NewOllama(cfg.Ollama.Model, cfg.Ollama.BaseURL, timeout, d)
	case "huggingface":
		hc, err := pkghttp.NewClient(cfg.CircuitBreaker, timeout)
		if err != nil {
			return nil, fmt.Errorf("创建 HuggingFace HTTP 客户端失败: %w", err)
		}
		return NewHuggingFace(cfg.HuggingFace.Model, cfg.HuggingFace.APIKey, cfg.HuggingFace.BaseURL, hc, d), nil
	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", ragerr.ErrConfiguration, cfg.Provider)
	}
}
