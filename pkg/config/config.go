// Package config provides environment-driven configuration for the RAG
// chatbot backend. Values are loaded from the process environment (with an
// optional .env file) on top of defaults, and validated with collected
// errors so a misconfigured service fails fast with a full report.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings holds the complete service configuration.
type Settings struct {
	// Service configuration
	APIHost          string        `json:"api_host"`
	APIPort          int           `json:"api_port"`
	Debug            bool          `json:"debug"`
	LogLevel         string        `json:"log_level"`
	GracefulShutdown time.Duration `json:"graceful_shutdown"`
	CORSOrigins      []string      `json:"cors_origins"`
	MaxUploadBytes   int64         `json:"max_upload_bytes"`

	// MongoDB configuration
	MongoURI                string        `json:"mongo_uri"`
	DBName                  string        `json:"db_name"`
	DocumentsCollection     string        `json:"documents_collection"`
	VectorsCollection       string        `json:"vectors_collection"`
	ChatHistoryCollection   string        `json:"chat_history_collection"`
	ConversationsCollection string        `json:"conversations_collection"`
	MessagesCollection      string        `json:"messages_collection"`
	MongoConnectTimeout     time.Duration `json:"mongo_connect_timeout"`

	// LLM configuration
	LLMBackend     string        `json:"llm_backend"` // "openai" or "mock"
	OpenAIAPIKey   string        `json:"-"`
	OpenAIAPIBase  string        `json:"openai_api_base"`
	LLMModel       string        `json:"llm_model"`
	LLMTemperature float64       `json:"llm_temperature"`
	LLMMaxTokens   int           `json:"llm_max_tokens"`
	LLMTimeout     time.Duration `json:"llm_timeout"`
	LLMMaxRetries  int           `json:"llm_max_retries"`

	// Embedding configuration
	EmbeddingModel      string        `json:"embedding_model"`
	EmbeddingDimensions int           `json:"embedding_dimensions"`
	EmbeddingBatchSize  int           `json:"embedding_batch_size"`
	EmbeddingRateLimit  int           `json:"embedding_rate_limit"` // requests per minute
	EmbeddingCacheTTL   time.Duration `json:"embedding_cache_ttl"`

	// Document processing
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
	MinChunkSize int `json:"min_chunk_size"`

	// Vector store selection
	VectorStoreType string `json:"vector_store_type"` // mongodb, memory, weaviate
	MemoryIndexPath string `json:"memory_index_path"`
	WeaviateHost    string `json:"weaviate_host"`
	WeaviateScheme  string `json:"weaviate_scheme"`
	WeaviateAPIKey  string `json:"-"`
	WeaviateClass   string `json:"weaviate_class"`

	// Redis embedding cache
	RedisEnabled  bool   `json:"redis_enabled"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db"`

	// Retrieval
	RetrievalTopK int `json:"retrieval_top_k"`
}

// Default returns the default settings, matching the documented env defaults.
func Default() *Settings {
	return &Settings{
		APIHost:          "0.0.0.0",
		APIPort:          8000,
		Debug:            true,
		LogLevel:         "info",
		GracefulShutdown: 30 * time.Second,
		CORSOrigins:      []string{"*"},
		MaxUploadBytes:   32 << 20, // 32 MB

		MongoURI:                "mongodb://localhost:27017/",
		DBName:                  "rag_chatbot",
		DocumentsCollection:     "documents",
		VectorsCollection:       "vectors",
		ChatHistoryCollection:   "chat_history",
		ConversationsCollection: "conversations",
		MessagesCollection:      "messages",
		MongoConnectTimeout:     10 * time.Second,

		LLMBackend:     "openai",
		OpenAIAPIBase:  "https://api.openai.com/v1",
		LLMModel:       "gpt-3.5-turbo",
		LLMTemperature: 0.2,
		LLMMaxTokens:   1024,
		LLMTimeout:     60 * time.Second,
		LLMMaxRetries:  2,

		EmbeddingModel:      "text-embedding-ada-002",
		EmbeddingDimensions: 1536,
		EmbeddingBatchSize:  64,
		EmbeddingRateLimit:  300,
		EmbeddingCacheTTL:   24 * time.Hour,

		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinChunkSize: 50,

		VectorStoreType: "mongodb",
		MemoryIndexPath: "vector_index",
		WeaviateScheme:  "http",
		WeaviateClass:   "DocumentChunk",

		RedisAddr: "localhost:6379",

		RetrievalTopK: 3,
	}
}

// Load builds Settings from the environment. A .env file in the working
// directory is applied first when present. All validation failures are
// collected and reported together.
func Load() (*Settings, error) {
	// Missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := Default()
	var errs []string

	cfg.APIHost = getEnvOrDefault("API_HOST", cfg.APIHost)
	cfg.APIPort = parseIntWithValidation("API_PORT", cfg.APIPort, validatePort, &errs)
	cfg.Debug = parseBool("DEBUG", cfg.Debug, &errs)
	cfg.LogLevel = getEnvWithValidation("LOG_LEVEL", cfg.LogLevel, validateLogLevel, &errs)
	cfg.GracefulShutdown = parseDuration("GRACEFUL_SHUTDOWN_TIMEOUT", cfg.GracefulShutdown, &errs)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitAndTrim(origins)
	}
	cfg.MaxUploadBytes = int64(parseIntWithValidation("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes), validatePositiveInt, &errs))

	cfg.MongoURI = getEnvOrDefault("MONGODB_CONNECTION_STRING", cfg.MongoURI)
	cfg.DBName = getEnvOrDefault("DB_NAME", cfg.DBName)
	cfg.DocumentsCollection = getEnvOrDefault("DOCUMENTS_COLLECTION", cfg.DocumentsCollection)
	cfg.VectorsCollection = getEnvOrDefault("VECTORS_COLLECTION", cfg.VectorsCollection)
	cfg.ChatHistoryCollection = getEnvOrDefault("CHAT_HISTORY_COLLECTION", cfg.ChatHistoryCollection)
	cfg.ConversationsCollection = getEnvOrDefault("CONVERSATIONS_COLLECTION", cfg.ConversationsCollection)
	cfg.MessagesCollection = getEnvOrDefault("MESSAGES_COLLECTION", cfg.MessagesCollection)
	cfg.MongoConnectTimeout = parseDuration("MONGO_CONNECT_TIMEOUT", cfg.MongoConnectTimeout, &errs)

	cfg.LLMBackend = getEnvWithValidation("LLM_BACKEND", cfg.LLMBackend, validateLLMBackend, &errs)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIAPIBase = getEnvOrDefault("OPENAI_API_BASE", cfg.OpenAIAPIBase)
	cfg.LLMModel = getEnvOrDefault("LLM_MODEL", cfg.LLMModel)
	cfg.LLMTemperature = parseFloat("LLM_TEMPERATURE", cfg.LLMTemperature, &errs)
	cfg.LLMMaxTokens = parseIntWithValidation("LLM_MAX_TOKENS", cfg.LLMMaxTokens, validatePositiveInt, &errs)
	cfg.LLMMaxRetries = parseIntWithValidation("LLM_MAX_RETRIES", cfg.LLMMaxRetries, validateNonNegativeInt, &errs)
	if secs := os.Getenv("LLM_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err != nil {
			errs = append(errs, fmt.Sprintf("LLM_TIMEOUT_SECS: invalid integer: %v", err))
		} else if n <= 0 {
			errs = append(errs, "LLM_TIMEOUT_SECS: must be positive")
		} else {
			cfg.LLMTimeout = time.Duration(n) * time.Second
		}
	}

	cfg.EmbeddingModel = getEnvOrDefault("EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.EmbeddingDimensions = parseIntWithValidation("EMBEDDING_DIMENSIONS", cfg.EmbeddingDimensions, validatePositiveInt, &errs)
	cfg.EmbeddingBatchSize = parseIntWithValidation("EMBEDDING_BATCH_SIZE", cfg.EmbeddingBatchSize, validatePositiveInt, &errs)
	cfg.EmbeddingRateLimit = parseIntWithValidation("EMBEDDING_RATE_LIMIT", cfg.EmbeddingRateLimit, validatePositiveInt, &errs)
	cfg.EmbeddingCacheTTL = parseDuration("EMBEDDING_CACHE_TTL", cfg.EmbeddingCacheTTL, &errs)

	cfg.ChunkSize = parseIntWithValidation("CHUNK_SIZE", cfg.ChunkSize, validatePositiveInt, &errs)
	cfg.ChunkOverlap = parseIntWithValidation("CHUNK_OVERLAP", cfg.ChunkOverlap, validateNonNegativeInt, &errs)
	cfg.MinChunkSize = parseIntWithValidation("MIN_CHUNK_SIZE", cfg.MinChunkSize, validateNonNegativeInt, &errs)
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		errs = append(errs, "CHUNK_OVERLAP: must be smaller than CHUNK_SIZE")
	}

	cfg.VectorStoreType = strings.ToLower(getEnvOrDefault("VECTOR_STORE_TYPE", cfg.VectorStoreType))
	cfg.MemoryIndexPath = getEnvOrDefault("MEMORY_INDEX_PATH", cfg.MemoryIndexPath)
	cfg.WeaviateHost = getEnvOrDefault("WEAVIATE_HOST", cfg.WeaviateHost)
	cfg.WeaviateScheme = getEnvOrDefault("WEAVIATE_SCHEME", cfg.WeaviateScheme)
	cfg.WeaviateAPIKey = os.Getenv("WEAVIATE_API_KEY")
	cfg.WeaviateClass = getEnvOrDefault("WEAVIATE_CLASS", cfg.WeaviateClass)

	cfg.RedisEnabled = parseBool("REDIS_ENABLED", cfg.RedisEnabled, &errs)
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = parseIntWithValidation("REDIS_DB", cfg.RedisDB, validateNonNegativeInt, &errs)

	cfg.RetrievalTopK = parseIntWithValidation("RETRIEVAL_TOP_K", cfg.RetrievalTopK, validatePositiveInt, &errs)

	if cfg.LLMBackend == "openai" && cfg.OpenAIAPIKey == "" {
		errs = append(errs, "OPENAI_API_KEY: required when LLM_BACKEND=openai")
	}
	if cfg.VectorStoreType == "weaviate" && cfg.WeaviateHost == "" {
		errs = append(errs, "WEAVIATE_HOST: required when VECTOR_STORE_TYPE=weaviate")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return cfg, nil
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.APIHost, s.APIPort)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvWithValidation(key, def string, validate func(string) error, errs *[]string) string {
	v := getEnvOrDefault(key, def)
	if err := validate(v); err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return v
}

func parseIntWithValidation(key string, def int, validate func(int) error, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer: %v", key, err))
		return def
	}
	if err := validate(n); err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func parseFloat(key string, def float64, errs *[]string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid number: %v", key, err))
		return def
	}
	return f
}

func parseBool(key string, def bool, errs *[]string) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid boolean: %v", key, err))
		return def
	}
	return b
}

func parseDuration(key string, def time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration: %v", key, err))
		return def
	}
	if d <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive", key))
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func validatePort(p int) error {
	if p < 1 || p > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("must be one of debug, info, warn, error")
}

func validateLLMBackend(backend string) error {
	switch backend {
	case "openai", "mock":
		return nil
	}
	return fmt.Errorf("must be one of openai, mock")
}

func validatePositiveInt(n int) error {
	if n <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateNonNegativeInt(n int) error {
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
