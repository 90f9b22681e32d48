// Package summarizer turns a day's raw events into a daily note through an
// OpenAI-compatible chat completion, on a wall-clock schedule or a manual
// trigger.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Message is one chat message sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces a completion for a message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Provider calls an OpenAI-compatible chat completions API. The key is
// read from the environment variable named by APIKeyEnv at call time.
type Provider struct {
	APIBase   string
	Model     string
	APIKeyEnv string

	client *http.Client
}

// NewProvider creates a Provider with a bounded request timeout.
func NewProvider(apiBase, model, apiKeyEnv string) *Provider {
	return &Provider{
		APIBase:   strings.TrimSuffix(apiBase, "/"),
		Model:     model,
		APIKeyEnv: apiKeyEnv,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete implements Completer.
func (p *Provider) Complete(ctx context.Context, messages []Message) (string, error) {
	key := os.Getenv(p.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("summarizer: API key env %s is not set", p.APIKeyEnv)
	}

	body, err := json.Marshal(map[string]any{
		"model":    p.Model,
		"messages": messages,
	})
	if err != nil {
		return "", fmt.Errorf("summarizer: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.APIBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("summarizer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarizer: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("summarizer: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summarizer: API status %d: %s", resp.StatusCode, firstBytes(data, 200))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("summarizer: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("summarizer: empty completion")
	}
	return parsed.Choices[0].Message.Content, nil
}

func firstBytes(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
