package embedding

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

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/pipeline/feature-extraction/"

// HuggingFaceModel 是一个用于 Hugging Face Inference API 的 Embedding 模型客户端。
type HuggingFaceModel struct {
	client  pkghttp.Doer // 带熔断的 HTTP 客户端。
	model   string       // 要使用的模型名称。
	apiKey  string       // Hugging Face API 密钥。
	baseURL string       // Hugging Face Inference API 的基准 URL。
}

// NewHuggingFaceModel 创建一个新的 HuggingFaceModel 客户端。
//
// 参数:
//
//	apiKey: Hugging Face 的 API 密钥。
//	modelName: 要使用的模型名称。
//	baseURL: Inference API 的基准 URL，为空时使用公共 feature-extraction 地址。
//	client: 发送请求的 HTTP 客户端，为 nil 时使用 http.DefaultClient。
func NewHuggingFaceModel(apiKey, modelName, baseURL string, client pkghttp.Doer) *HuggingFaceModel {
	if baseURL == "" {
		baseURL = defaultHuggingFaceURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HuggingFaceModel{
		client:  client,
		model:   modelName,
		apiKey:  apiKey,
		baseURL: baseURL,
	}
}

func (m *HuggingFaceModel) Name() string { return string(HuggingFace) }

// Validate 检查 API 密钥是否已配置。
func (m *HuggingFaceModel) Validate() error {
	if strings.TrimSpace(m.apiKey) == "" {
		return fmt.Errorf("%w: huggingface api key is not set", ragerr.ErrConfiguration)
	}
	return nil
}

// Embed 使用 Hugging Face Inference API 为单个文本生成嵌入向量。
// 接口返回的形状可能是 [f, ...] 或 [[f, ...]]，两种都接受。
func (m *HuggingFaceModel) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]interface{}{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true}, // 等待模型加载。
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+m.model, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if err := statusError(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return parseHuggingFaceVector(body)
}

func statusError(code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	snippet := body
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	err := fmt.Errorf("huggingface returned status %d: %s", code, snippet)
	if mapped := ragerr.FromStatus(code, err); mapped != nil {
		return mapped
	}
	return err
}

func parseHuggingFaceVector(body []byte) ([]float32, error) {
	var row []*float32
	var flat []*float32
	var nested [][]*float32
	switch {
	case json.Unmarshal(body, &flat) == nil && len(flat) > 0:
		row = flat
	case json.Unmarshal(body, &nested) == nil && len(nested) > 0 && len(nested[0]) > 0:
		row = nested[0]
	default:
		return nil, fmt.Errorf("%w: huggingface response is neither a vector nor a list of vectors", ragerr.ErrUnexpectedResponseFormat)
	}

	vector := make([]float32, len(row))
	for i, x := range row {
		if x == nil {
			return nil, fmt.Errorf("%w: huggingface vector has null at index %d", ragerr.ErrUnexpectedResponseFormat, i)
		}
		vector[i] = *x
	}
	return vector, nil
}

// compile-time check
var _ Provider = (*HuggingFaceModel)(nil)
