package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("app:\n  name: study\n"))
	require.NoError(t, err)

	assert.Equal(t, "study", cfg.App.Name)
	assert.Equal(t, "memory", cfg.Databases.Driver)
	assert.Equal(t, "memory", cfg.VectorStore.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 2000, cfg.Embedding.MaxInputChars)
	assert.Equal(t, 500, cfg.Ingestion.ChunkSize)
	assert.Equal(t, 50, cfg.Ingestion.ChunkOverlap)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.Equal(t, 12000, cfg.Quiz.MaxContentChars)
	assert.Equal(t, 5, cfg.Retrieval.DefaultTopK)
	assert.Equal(t, DefaultSystemPrompt, cfg.Chat.SystemPrompt)
}

func TestParseKeepsExplicitZeroTemperature(t *testing.T) {
	cfg, err := Parse([]byte("quiz:\n  temperature: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Quiz.Temperature)
	assert.Equal(t, float32(0), *cfg.Quiz.Temperature)
	require.NotNil(t, cfg.Chat.Temperature)
	assert.Equal(t, float32(0.7), *cfg.Chat.Temperature)
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("ATHENA_TEST_HF_KEY", "hf_secret")
	data := []byte(`
databases:
  driver: postgres
embedding:
  huggingface:
    apiKey: ${ATHENA_TEST_HF_KEY}
`)
	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "hf_secret", cfg.Embedding.HuggingFace.APIKey)
	assert.Equal(t, "pgvector", cfg.VectorStore.Provider)
}

func TestParseRejectsInvalidChunking(t *testing.T) {
	_, err := Parse([]byte("ingestion:\n  chunkSize: 10\n  chunkOverlap: 10\n"))
	require.Error(t, err)

	_, err = Parse([]byte("ingestion:\n  chunkSize: 10\n  chunkOverlap: -1\n"))
	require.Error(t, err)
}

func TestParseRejectsMismatchedVectorStore(t *testing.T) {
	_, err := Parse([]byte("databases:\n  driver: mysql\nvectorStore:\n  provider: pgvector\n"))
	require.Error(t, err)

	_, err = Parse([]byte("databases:\n  driver: memory\nvectorStore:\n  provider: milvus\n"))
	require.Error(t, err)
}

func TestParseRejectsBadDuration(t *testing.T) {
	_, err := Parse([]byte("llm:\n  timeout: soon\n"))
	require.Error(t, err)
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  historyLimit: 8\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Chat.HistoryLimit)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, Duration("3s", time.Minute))
	assert.Equal(t, time.Minute, Duration("bogus", time.Minute))
}
