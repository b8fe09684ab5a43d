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

// OpenAIProvider talks to an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	baseURL  string
	apiKey   string
	model    string
	priority int
	client   *http.Client
	limiter  *rate.Limiter
}

func NewOpenAIProvider(baseURL, apiKey, model string, priority int, rps float64) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:  baseURL,
		apiKey:   apiKey,
		model:    model,
		priority: priority,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }
func (p *OpenAIProvider) Priority() int { return p.priority }
func (p *OpenAIProvider) Enabled() bool { return p.apiKey != "" }

func (p *OpenAIProvider) Call(ctx context.Context, prompt Prompt) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body := map[string]interface{}{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "system", "content": prompt.System},
			{"role": "user", "content": prompt.Text},
		},
		"temperature": 0,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &CallError{Provider: p.Name(), Class: FailureTransient, Message: err.Error()}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("[OpenAIProvider] Failed to close response body: %v", err)
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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return decoded.Choices[0].Message.Content, nil
}
