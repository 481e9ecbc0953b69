package llm

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini 是一个实现了 LLM 接口的结构体，用于与 Gemini API 交互。
// 每次请求都基于给定的历史新建聊天会话，客户端本身不保存对话状态。
type Gemini struct {
	client *genai.Client
	model  string
	defaults
}

// NewGemini 创建一个新的 Gemini 客户端。
//
// 参数:
//
//	ctx: 上下文，用于控制客户端的生命周期。
//	model: 要使用的 Gemini 模型名称。
//	apiKey: Gemini API 密钥，为空时不建立连接。
//
// 返回值:
//
//	*Gemini: 新创建的 Gemini 客户端实例。
//	error: 如果无法创建 GenAI 客户端，则返回错误。
func NewGemini(ctx context.Context, model, apiKey string, d defaults) (*Gemini, error) {
	g := &Gemini{model: model, defaults: d}
	if strings.TrimSpace(apiKey) == "" {
		return g, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("创建 GenAI 客户端失败: %w", err)
	}
	g.client = client
	return g, nil
}

// Generate 把除最后一条以外的消息作为会话历史，发送最后一条消息。
func (g *Gemini) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if g.client == nil {
		return nil, fmt.Errorf("%w: gemini api key is not set", ragerr.ErrConfiguration)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	maxTokens, temperature := g.resolve(req)
	model := g.client.GenerativeModel(g.model)
	model.SetMaxOutputTokens(int32(maxTokens))
	if temperature != nil {
		model.SetTemperature(*temperature)
	}
	if req.SystemPrompt != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemPrompt))
	}

	msgs := req.conversation()
	last := msgs[len(msgs)-1]
	session := model.StartChat()
	session.History = toGenaiHistory(msgs[:len(msgs)-1])

	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with gemini: %w", err)
	}
	text := fromGenaiResponse(resp)
	if strings.TrimSpace(text) == "" {
		return nil, emptyReply("gemini")
	}
	return &GenerateResponse{Text: text, Model: g.model}, nil
}

// toGenaiHistory 将内部消息转换为 GenAI 历史，助手角色对应 "model"。
func toGenaiHistory(msgs []Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return history
}

// fromGenaiResponse 拼接第一个候选者中的所有文本部分。
func fromGenaiResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

var _ LLM = (*Gemini)(nil)
