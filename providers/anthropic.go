package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider talks to an Anthropic-style messages endpoint.
type AnthropicProvider struct {
	baseURL  string
	apiKey   string
	model    string
	priority int
	client   *http.Client
	limiter  *rate.Limiter
}

func NewAnthropicProvider(baseURL, apiKey, model string, priority int, rps float64) *AnthropicProvider {
	return &AnthropicProvider{
		baseURL:  baseURL,
		apiKey:   apiKey,
		model:    model,
		priority: priority,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }
func (p *AnthropicProvider) Priority() int { return p.priority }
func (p *AnthropicProvider) Enabled() bool { return p.apiKey != "" }

func (p *AnthropicProvider) Call(ctx context.Context, prompt Prompt) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"model":      p.model,
		"max_tokens": 2048,
		"system":     prompt.System,
		"messages": []map[string]string{
			{"role": "user", "content": prompt.Text},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Class: FailureTransient, Message: err.Error()}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[AnthropicProvider] Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Class: FailureTransient, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &CallError{
			Provider: p.Name(),
			Class:    classifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Message:  string(raw),
		}
	}

	var decoded struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	for _, block := range decoded.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}
