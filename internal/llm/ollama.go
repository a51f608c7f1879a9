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

// DefaultOllamaURL is the local Ollama daemon.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient talks to a local Ollama daemon via /api/chat.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient creates a client for baseURL (DefaultOllamaURL when empty).
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Complete sends a prompt and returns the completion.
func (c *OllamaClient) Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt, opts...)
}

// CompleteWithSystem sends a non-streaming chat request.
func (c *OllamaClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts ...CallOption) (string, error) {
	o := applyOptions(c.model, opts)
	startTime := time.Now()

	reqBody := ollamaChatRequest{Model: o.Model, Stream: false}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	reqBody.Messages = append(reqBody.Messages, ollamaMessage{Role: "user", Content: userPrompt})
	if o.JSON {
		reqBody.Format = "json"
	}
	if o.Temperature != nil || o.MaxTokens > 0 {
		reqBody.Options = &ollamaOptions{Temperature: o.Temperature, NumPredict: o.MaxTokens}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("ollama chat status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}

	logging.API("[Ollama] model=%s completed in %v response_len=%d", o.Model, time.Since(startTime), len(out.Message.Content))
	return strings.TrimSpace(out.Message.Content), nil
}
