package llm

import (
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	pkghttp "Athena/backend/go/pkg/http"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HuggingFace 是一个用于 Hugging Face Inference API 文本生成接口的 LLM 客户端。
type HuggingFace struct {
	client  pkghttp.Doer // HTTP 客户端实例。
	model   string       // 要使用的模型名称。
	apiKey  string       // Hugging Face API 密钥。
	baseURL string       // Hugging Face Inference API 的基准 URL。
	defaults
}

// NewHuggingFace 创建一个新的 HuggingFace 客户端。
// baseURL 为空时默认为 "https://api-inference.huggingface.co/models/"。
func NewHuggingFace(model, apiKey, baseURL string, client pkghttp.Doer, d defaults) *HuggingFace {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HuggingFace{client: client, model: model, apiKey: apiKey, baseURL: baseURL, defaults: d}
}

// Generate 使用 Hugging Face Inference API 生成内容。
func (h *HuggingFace) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if strings.TrimSpace(h.apiKey) == "" {
		return nil, fmt.Errorf("%w: huggingface api key is not set", ragerr.ErrConfiguration)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	jsonReq, err := json.Marshal(h.toHuggingFaceRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewReader(jsonReq))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("huggingface returned status %d", resp.StatusCode)
		if mapped := ragerr.FromStatus(resp.StatusCode, err); mapped != nil {
			return nil, mapped
		}
		return nil, err
	}

	var hfResp []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &hfResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ragerr.ErrUnexpectedResponseFormat, err)
	}
	if len(hfResp) == 0 || strings.TrimSpace(hfResp[0].GeneratedText) == "" {
		return nil, emptyReply("huggingface")
	}
	return &GenerateResponse{Text: strings.TrimSpace(hfResp[0].GeneratedText), Model: h.model}, nil
}

// toHuggingFaceRequest 将对话渲染为单个提示，以 "assistant:" 结尾等待续写。
func (h *HuggingFace) toHuggingFaceRequest(req *GenerateRequest) map[string]interface{} {
	maxTokens, temperature := h.resolve(req)
	var sb strings.Builder
	if req.SystemPrompt != "" {
		sb.WriteString("system: ")
		sb.WriteString(req.SystemPrompt)
		sb.WriteString("\n")
	}
	for _, m := range req.conversation() {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("assistant:")

	params := map[string]interface{}{
		"max_new_tokens":   maxTokens,
		"return_full_text": false,
	}
	if temperature != nil {
		params["temperature"] = *temperature
	}
	return map[string]interface{}{
		"inputs":     sb.String(),
		"parameters": params,
	}
}

var _ LLM = (*HuggingFace)(nil)
