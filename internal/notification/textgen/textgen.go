// Package textgen rewrites templated notification copy through the GenAI
// service. Callers must treat it as optional and fall back to the template.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "servicedesk/internal/common/errors"
	commonhttp "servicedesk/internal/common/http"
	"servicedesk/internal/common/logger"
)

// Prompt carries the templated notification and the facts it was built from.
type Prompt struct {
	EventType string
	Tone      string
	Title     string
	Body      string
	Facts     map[string]string
}

type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (title, body string, err error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

type GenAIClient struct {
	config Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewGenAIClient(cfg Config, log logger.Logger) *GenAIClient {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}

	// The deadline comes from the caller's context.
	client := commonhttp.NewClient(0)
	if cfg.APIKey != "" {
		client = client.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &GenAIClient{
		config: cfg,
		client: client,
		logger: log.WithFields(map[string]interface{}{"component": "textgen"}),
	}
}

type generateRequest struct {
	Prompt      string            `json:"prompt"`
	Context     map[string]string `json:"context,omitempty"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (c *GenAIClient) Generate(ctx context.Context, prompt Prompt) (string, string, error) {
	start := time.Now()
	req := generateRequest{
		Prompt:      buildPrompt(prompt),
		Context:     prompt.Facts,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	var resp generateResponse
	err := c.client.PostJSON(ctx, strings.TrimRight(c.config.BaseURL, "/")+"/api/ai/generate", req, &resp)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", "", apperrors.NewTextGenerationTimeoutError(time.Since(start))
		}
		return "", "", apperrors.NewTextGenerationFailedError(err)
	}

	title, body := splitText(resp.Text, prompt.Title)
	if body == "" {
		return "", "", apperrors.NewTextGenerationFailedError(errors.New("empty response text"))
	}

	c.logger.Debug("notification text generated", map[string]interface{}{
		"eventType":  prompt.EventType,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return title, body, nil
}

func buildPrompt(p Prompt) string {
	tone := p.Tone
	if tone == "" {
		tone = "friendly"
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Rewrite this property maintenance notification in a %s tone.", tone))
	parts = append(parts, "Keep every fact unchanged. Reply with the title on the first line and the message below it.")
	parts = append(parts, fmt.Sprintf("\nTitle: %s", p.Title))
	parts = append(parts, fmt.Sprintf("Message: %s", p.Body))
	return strings.Join(parts, "\n")
}

// splitText reads the first line as the title when the reply has more than
// one line; a single line replaces only the body.
func splitText(text, fallbackTitle string) (string, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackTitle, ""
	}

	first, rest, found := strings.Cut(text, "\n")
	rest = strings.TrimSpace(rest)
	if !found || rest == "" {
		return fallbackTitle, text
	}

	title := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(first), "Title:"))
	if title == "" {
		title = fallbackTitle
	}
	return title, strings.TrimSpace(strings.TrimPrefix(rest, "Message:"))
}
