package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// OpenAIConfig holds configuration for the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey     string        `json:"-"`
	APIBase    string        `json:"api_base"`
	Model      string        `json:"model"`
	Dimensions int           `json:"dimensions"`
	BatchSize  int           `json:"batch_size"`
	RateLimit  int           `json:"rate_limit"` // requests per minute
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

func defaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		APIBase:    "https://api.openai.com/v1",
		Model:      "text-embedding-ada-002",
		Dimensions: 1536,
		BatchSize:  64,
		RateLimit:  300,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	config     *OpenAIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	usage      usageCounter
}

// NewOpenAIProvider creates an embedding provider with the given config.
func NewOpenAIProvider(config *OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	if config == nil {
		config = defaultOpenAIConfig()
	}
	if config.APIBase == "" {
		config.APIBase = "https://api.openai.com/v1"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 300
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	perSecond := rate.Limit(float64(config.RateLimit) / 60.0)
	return &OpenAIProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(perSecond, config.RateLimit/10+1),
		logger:     logger.With("component", "embedding-service"),
	}
}

// Dimensions returns the embedding dimensionality.
func (p *OpenAIProvider) Dimensions() int { return p.config.Dimensions }

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string { return p.config.Model }

// Usage returns accumulated token usage.
func (p *OpenAIProvider) Usage() Usage { return p.usage.snapshot() }

// Embed generates an embedding for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for the given texts, splitting into
// API batches as needed and preserving input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.config.BatchSize {
		end := start + p.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := p.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *OpenAIProvider) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Input: batch, Model: p.config.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.config.RetryDelay * time.Duration(attempt)):
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, retryable, err := p.doRequest(ctx, payload, len(batch))
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		p.logger.Warn("embedding request failed",
			slog.Int("attempt", attempt+1),
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()))
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}

func (p *OpenAIProvider) doRequest(ctx context.Context, payload []byte, expect int) ([][]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.APIBase+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read embedding response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode embedding response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(raw)
		if parsed.Error != nil {
			detail = parsed.Error.Message
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, detail)
	}
	if len(parsed.Data) != expect {
		return nil, false, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(parsed.Data), expect)
	}

	p.usage.add(int64(parsed.Usage.PromptTokens), int64(parsed.Usage.TotalTokens))

	// The API is allowed to reorder; data carries explicit indexes.
	out := make([][]float32, expect)
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= expect {
			return nil, false, fmt.Errorf("embedding API returned out-of-range index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, true, nil
}
