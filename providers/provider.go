package providers

import (
	"context"
)

// Prompt is the single request shape every provider accepts. System carries
// the task instructions, Text the document content under analysis.
type Prompt struct {
	System string
	Text   string
}

// Provider defines the interface all LLM providers must implement. Call
// returns the raw response text; parsing into detections happens in the LLM
// layer, which owns the response contract.
type Provider interface {
	Name() string
	Model() string
	Priority() int
	Enabled() bool
	Call(ctx context.Context, prompt Prompt) (string, error)
}

// ByPriority sorts providers ascending by priority (1 = first choice).
// Insertion sort; the provider list is always tiny.
func ByPriority(list []Provider) []Provider {
	out := append([]Provider(nil), list...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority() < out[j-1].Priority(); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
