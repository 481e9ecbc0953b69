package llm

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = defaults{maxTokens: 256, temperature: 0.5}

func chatRequest() *GenerateRequest {
	return &GenerateRequest{
		SystemPrompt: "You are a tutor.",
		Messages: []Message{
			{Role: models.RoleUser, Content: "What is a cell?"},
			{Role: models.RoleAssistant, Content: "The basic unit of life."},
		},
		Prompt: "And mitosis?",
	}
}

func TestConversationAppendsPrompt(t *testing.T) {
	msgs := chatRequest().conversation()
	require.Len(t, msgs, 3)
	assert.Equal(t, Message{Role: models.RoleUser, Content: "And mitosis?"}, msgs[2])

	assert.ErrorIs(t, validateRequest(&GenerateRequest{Prompt: "  "}), ragerr.ErrInvalidInput)
}

func TestDefaultsResolve(t *testing.T) {
	maxTokens, temperature := testDefaults.resolve(&GenerateRequest{})
	assert.Equal(t, 256, maxTokens)
	require.NotNil(t, temperature)
	assert.Equal(t, float32(0.5), *temperature)

	maxTokens, temperature = testDefaults.resolve(&GenerateRequest{MaxTokens: 10, Temperature: Float32(0.9)})
	assert.Equal(t, 10, maxTokens)
	assert.Equal(t, float32(0.9), *temperature)

	_, temperature = testDefaults.resolve(&GenerateRequest{Temperature: Float32(0)})
	require.NotNil(t, temperature)
	assert.Equal(t, float32(0), *temperature, "explicit zero is kept")

	_, temperature = defaults{maxTokens: 1}.resolve(&GenerateRequest{})
	assert.Nil(t, temperature)
}

func TestOpenAIGenerate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-test",
			"choices":[{"index":0,"message":{"role":"assistant","content":"Cell division."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client := NewOpenAI("gpt-test", "sk-test", srv.URL+"/v1", 5*time.Second, testDefaults)
	resp, err := client.Generate(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "Cell division.", resp.Text)

	msgs := got["messages"].([]interface{})
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]interface{})["role"])
	assert.Equal(t, "And mitosis?", msgs[3].(map[string]interface{})["content"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-6)

	req := chatRequest()
	req.Temperature = Float32(0)
	_, err = client.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, got, "temperature")
	assert.Equal(t, float64(0), got["temperature"])
}

func TestOpenAIStatusMapping(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusUnauthorized:    ragerr.ErrProviderAuth,
		http.StatusTooManyRequests: ragerr.ErrRateLimited,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
		}))
		client := NewOpenAI("gpt-test", "sk-test", srv.URL+"/v1", 5*time.Second, testDefaults)

		_, err := client.Generate(context.Background(), chatRequest())
		assert.ErrorIs(t, err, want, "status %d", status)
		srv.Close()
	}
}

func TestMissingCredentials(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []string{"openai", "gemini", "huggingface"} {
		client, err := NewClient(ctx, config.LLMConfig{Provider: provider, Timeout: "1s"})
		require.NoError(t, err, provider)

		_, err = client.Generate(ctx, chatRequest())
		assert.ErrorIs(t, err, ragerr.ErrConfiguration, provider)
	}

	_, err := NewClient(ctx, config.LLMConfig{Provider: "markov"})
	assert.ErrorIs(t, err, ragerr.ErrConfiguration)
}

func TestOllamaGenerate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Mitosis splits a cell."},"done":true}`))
	}))
	defer srv.Close()

	client, err := NewOllama("llama3", srv.URL, 5*time.Second, testDefaults)
	require.NoError(t, err)
	resp, err := client.Generate(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "Mitosis splits a cell.", resp.Text)
	assert.Equal(t, false, got["stream"])
	assert.Len(t, got["messages"], 4)
}

func TestHuggingFaceGenerate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/mistral", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`[{"generated_text":" It is nuclear division. "}]`))
	}))
	defer srv.Close()

	client := NewHuggingFace("mistral", "hf-key", srv.URL+"/models", nil, testDefaults)
	resp, err := client.Generate(context.Background(), chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "It is nuclear division.", resp.Text)

	inputs := got["inputs"].(string)
	assert.Contains(t, inputs, "system: You are a tutor.\n")
	assert.Contains(t, inputs, "assistant: The basic unit of life.\n")
	assert.Contains(t, inputs, "user: And mitosis?\nassistant:")
}

func TestHuggingFaceEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewHuggingFace("mistral", "hf-key", srv.URL, nil, testDefaults)
	_, err := client.Generate(context.Background(), chatRequest())
	assert.ErrorIs(t, err, ragerr.ErrUnexpectedResponseFormat)
}
