package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.APIHost)
	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, "rag_chatbot", cfg.DBName)
	assert.Equal(t, "mongodb://localhost:27017/", cfg.MongoURI)
	assert.Equal(t, "openai", cfg.LLMBackend)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLMModel)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, "mongodb", cfg.VectorStoreType)
	assert.Equal(t, 3, cfg.RetrievalTopK)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LLM_BACKEND", "mock")
	t.Setenv("API_HOST", "127.0.0.1")
	t.Setenv("API_PORT", "9000")
	t.Setenv("DB_NAME", "rag_test")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "100")
	t.Setenv("VECTOR_STORE_TYPE", "MEMORY")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com")
	t.Setenv("LLM_TIMEOUT_SECS", "15")
	t.Setenv("RETRIEVAL_TOP_K", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.APIHost)
	assert.Equal(t, 9000, cfg.APIPort)
	assert.Equal(t, "rag_test", cfg.DBName)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, "memory", cfg.VectorStoreType, "type should be lowercased")
	assert.Equal(t, []string{"http://localhost:3000", "https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 5, cfg.RetrievalTopK)
}

func TestLoadCollectsValidationErrors(t *testing.T) {
	t.Setenv("LLM_BACKEND", "mock")
	t.Setenv("API_PORT", "70000")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "API_PORT")
	assert.Contains(t, msg, "LOG_LEVEL")
	assert.Contains(t, msg, "CHUNK_OVERLAP")
	assert.GreaterOrEqual(t, strings.Count(msg, "\n"), 2, "all failures should be reported together")
}

func TestLoadRequiresOpenAIKey(t *testing.T) {
	t.Setenv("LLM_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadRequiresWeaviateHost(t *testing.T) {
	t.Setenv("LLM_BACKEND", "mock")
	t.Setenv("VECTOR_STORE_TYPE", "weaviate")
	t.Setenv("WEAVIATE_HOST", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEAVIATE_HOST")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("LLM_BACKEND", "anthropic")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_BACKEND")
}
