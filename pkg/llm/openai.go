package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey      string        `json:"-"`
	APIBase     string        `json:"api_base"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
	MaxRetries  int           `json:"max_retries"`
	RetryDelay  time.Duration `json:"retry_delay"`
}

func defaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		APIBase:     "https://api.openai.com/v1",
		Model:       "gpt-3.5-turbo",
		Temperature: 0.2,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Second,
	}
}

// OpenAIClient talks to an OpenAI-compatible /chat/completions endpoint.
// Calls run behind a circuit breaker so a failing upstream sheds load
// quickly instead of queueing requests against its timeout.
type OpenAIClient struct {
	config     *OpenAIConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewOpenAIClient creates a chat client with the given configuration.
func NewOpenAIClient(config *OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if config == nil {
		config = defaultOpenAIConfig()
	}
	if config.APIBase == "" {
		config.APIBase = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-chat",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &OpenAIClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    breaker,
		logger:     logger.With("component", "llm-client"),
	}
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Tools       []Tool    `json:"tools,omitempty"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat sends the conversation to the model and returns the assistant message.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []Tool) (*Message, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("chat requires at least one message")
	}

	body := chatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, payload)
		})
		if err == nil {
			return result.(*Message), nil
		}
		lastErr = err

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("llm backend unavailable: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("chat completion attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}
	return nil, fmt.Errorf("chat completion failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *OpenAIClient) doRequest(ctx context.Context, payload []byte) (*Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.APIBase+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode chat response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(raw)
		if parsed.Error != nil {
			detail = parsed.Error.Message
		}
		return nil, fmt.Errorf("chat completion returned status %d: %s", resp.StatusCode, detail)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := parsed.Choices[0].Message
	return &msg, nil
}
