package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mindloop/internal/logging"
)

// OpenAIConfig holds configuration for an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration // first backoff; doubles per retry
}

// DefaultOpenAIConfig returns defaults for the public OpenAI API.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:     apiKey,
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4.1-mini",
		Timeout:    60 * time.Second,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

// OpenAIClient talks to /chat/completions.
type OpenAIClient struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a client from cfg.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt and returns the completion.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt, opts...)
}

// CompleteWithSystem sends a prompt with a system message. 429 and transport
// failures are retried with exponential backoff.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts ...CallOption) (string, error) {
	if c.cfg.APIKey == "" {
		logging.Get(logging.CategoryAPI).Error("[OpenAI] API key not configured")
		return "", ErrNoAPIKey
	}

	ctx, cancel := withDefaultTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	o := applyOptions(c.cfg.Model, opts)
	startTime := time.Now()
	logging.APIDebug("[OpenAI] model=%s system_len=%d user_len=%d", o.Model, len(systemPrompt), len(userPrompt))

	reqBody := openAIRequest{
		Model:       o.Model,
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
	}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.Messages = append(reqBody.Messages, openAIMessage{Role: "system", Content: systemPrompt})
	}
	reqBody.Messages = append(reqBody.Messages, openAIMessage{Role: "user", Content: userPrompt})
	if o.JSON {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, c.cfg.RetryDelay<<uint(i-1)); err != nil {
				return "", fmt.Errorf("request abandoned: %w", err)
			}
		}

		text, retry, err := c.do(ctx, jsonData)
		if err == nil {
			logging.API("[OpenAI] completed in %v response_len=%d", time.Since(startTime), len(text))
			return text, nil
		}
		if !retry || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
		logging.Get(logging.CategoryAPI).Warn("[OpenAI] attempt %d failed: %v", i+1, err)
	}

	logging.Get(logging.CategoryAPI).Error("[OpenAI] max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// do performs one request. retry reports whether the failure is transient.
func (c *OpenAIClient) do(ctx context.Context, body []byte) (text string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("rate limit exceeded (429)")
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("server error %d: %s", resp.StatusCode, string(data))
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(data))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}
