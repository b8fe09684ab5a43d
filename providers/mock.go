package providers

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a scriptable provider used in tests and offline runs. Each
// call consumes the next queued response; when the queue is exhausted the
// last entry repeats.
type MockProvider struct {
	ProviderName string
	Prio         int
	Disabled     bool
	Delay        time.Duration

	mu        sync.Mutex
	responses []mockResponse
	calls     int
}

type mockResponse struct {
	data string
	err  error
}

func NewMockProvider(name string, priority int) *MockProvider {
	return &MockProvider{ProviderName: name, Prio: priority}
}

// Respond queues a successful response.
func (p *MockProvider) Respond(data string) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, mockResponse{data: data})
	return p
}

// Fail queues an error response.
func (p *MockProvider) Fail(err error) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, mockResponse{err: err})
	return p
}

func (p *MockProvider) Name() string  { return p.ProviderName }
func (p *MockProvider) Model() string { return "mock" }
func (p *MockProvider) Priority() int { return p.Prio }
func (p *MockProvider) Enabled() bool { return !p.Disabled }

// Calls reports how many times Call completed.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MockProvider) Call(ctx context.Context, prompt Prompt) (string, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.responses) == 0 {
		return "[]", nil
	}
	idx := p.calls - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	r := p.responses[idx]
	return r.data, r.err
}
