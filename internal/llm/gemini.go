package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mindloop/internal/logging"

	"google.golang.org/genai"
)

// =============================================================================
// GOOGLE GENAI COMPLETION CLIENT
// =============================================================================

// GeminiClient completes prompts through the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// GeminiConfig configures a GeminiClient. BaseURL is optional.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrNoAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model, timeout: cfg.Timeout}, nil
}

// Complete sends a prompt and returns the completion.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt, opts...)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string, opts ...CallOption) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.timeout)
	defer cancel()

	o := applyOptions(c.model, opts)
	startTime := time.Now()

	gc := &genai.GenerateContentConfig{}
	if strings.TrimSpace(systemPrompt) != "" {
		gc.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if o.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*o.Temperature))
	}
	if o.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(o.MaxTokens)
	}
	if o.JSON {
		gc.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, o.Model, genai.Text(userPrompt), gc)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	logging.API("[Gemini] model=%s completed in %v response_len=%d", o.Model, time.Since(startTime), len(text))
	return text, nil
}
