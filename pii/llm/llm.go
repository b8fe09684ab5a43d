package llm

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hannes/docshield/pii"
	"github.com/hannes/docshield/providers"
)

// Options tunes the LLM layer.
type Options struct {
	// Threshold filters detections below this confidence before returning.
	Threshold float64
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration
	// MaxRetries is the retry count per provider on top of the first attempt.
	MaxRetries int
	// EnsembleProviders keeps calling lower-priority providers after a
	// success and merges agreeing results instead of stopping early.
	EnsembleProviders bool
}

// Layer sends document text to external LLM providers and parses their
// responses into detections. Providers are tried in priority order with
// bounded retries; the layer fails only when every provider fails.
type Layer struct {
	providers []providers.Provider
	opts      Options
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewLayer builds the LLM layer from the given providers. Disabled providers
// are filtered out here so the detection loop never sees them.
func NewLayer(list []providers.Provider, opts Options) *Layer {
	enabled := make([]providers.Provider, 0, len(list))
	for _, p := range providers.ByPriority(list) {
		if p.Enabled() {
			enabled = append(enabled, p)
		}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	log.Printf("[LLMLayer] Initialized with providers: %s", describeProviders(enabled))
	return &Layer{
		providers: enabled,
		opts:      opts,
		sleep:     sleepContext,
	}
}

func (l *Layer) Name() string { return "llm" }

// Available reports whether at least one provider can be called.
func (l *Layer) Available() bool { return len(l.providers) > 0 }

// Detect asks the providers for PII in the OCR text.
func (l *Layer) Detect(ctx context.Context, ocr *pii.OCRResult) ([]pii.Detection, error) {
	if ocr == nil || ocr.Text == "" {
		return nil, nil
	}
	return l.run(ctx, detectionPrompt(ocr.Text), false)
}

// Verify asks the providers to confirm candidate detections against the
// document text. Confirmed detections come back marked verified.
func (l *Layer) Verify(ctx context.Context, text string, existing []pii.Detection) ([]pii.Detection, error) {
	if text == "" || len(existing) == 0 {
		return nil, nil
	}
	dets, err := l.run(ctx, verificationPrompt(text, existing), true)
	if err != nil {
		return nil, err
	}
	for i := range dets {
		dets[i].Verified = true
	}
	return dets, nil
}

func (l *Layer) run(ctx context.Context, prompt providers.Prompt, verify bool) ([]pii.Detection, error) {
	if len(l.providers) == 0 {
		return nil, fmt.Errorf("no enabled providers")
	}

	var perProvider [][]pii.Detection
	var lastErr error

	for _, prov := range l.providers {
		data, err := l.callWithRetry(ctx, prov, prompt)
		if err != nil {
			log.Printf("[LLMLayer] Provider %s failed: %v", prov.Name(), err)
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		dets, err := parseDetections(data)
		if err != nil {
			log.Printf("[LLMLayer] Provider %s returned unparseable response: %v", prov.Name(), err)
			lastErr = err
			continue
		}
		dets = l.filter(dets)

		if !l.opts.EnsembleProviders {
			if len(dets) > 0 || verify {
				return dets, nil
			}
			// An empty detection list may just mean this provider missed;
			// give the next provider a chance.
			perProvider = append(perProvider, dets)
			continue
		}
		perProvider = append(perProvider, dets)
	}

	if len(perProvider) == 0 {
		return nil, fmt.Errorf("all providers failed: %w", lastErr)
	}
	if l.opts.EnsembleProviders && len(perProvider) > 1 {
		return ensembleProviders(perProvider), nil
	}
	return perProvider[0], nil
}

// callWithRetry runs one provider with the configured retry budget. Each
// attempt races the provider response against the call timeout. Auth
// failures abort immediately; rate limits back off for 2^attempt seconds;
// transient failures back off starting at 500ms, doubling per attempt.
func (l *Layer) callWithRetry(ctx context.Context, prov providers.Provider, prompt providers.Prompt) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= l.opts.MaxRetries; attempt++ {
		data, err := l.callOnce(ctx, prov, prompt)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		switch providers.Classify(err) {
		case providers.FailureAuth:
			return "", err
		case providers.FailureRateLimit:
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			if err := l.sleep(ctx, backoff); err != nil {
				return "", err
			}
		default:
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond
			if err := l.sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

func (l *Layer) callOnce(ctx context.Context, prov providers.Provider, prompt providers.Prompt) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, l.opts.CallTimeout)
	defer cancel()

	type callResult struct {
		data string
		err  error
	}
	ch := make(chan callResult, 1)
	go func() {
		data, err := prov.Call(cctx, prompt)
		ch <- callResult{data, err}
	}()

	select {
	case r := <-ch:
		return r.data, r.err
	case <-cctx.Done():
		return "", fmt.Errorf("provider %s timed out: %w", prov.Name(), cctx.Err())
	}
}

func (l *Layer) filter(dets []pii.Detection) []pii.Detection {
	out := dets[:0]
	for _, d := range dets {
		if d.Confidence >= l.opts.Threshold {
			out = append(out, d)
		}
	}
	return out
}

// ensembleProviders merges per-provider result sets: a (type, text) pair
// survives only when at least two providers agree on it. The surviving
// detection is the highest-confidence member with its confidence boosted to
// min(mean * 1.1, 1.0) and marked verified.
func ensembleProviders(perProvider [][]pii.Detection) []pii.Detection {
	type group struct {
		best      pii.Detection
		sum       float64
		providers int
	}
	groups := make(map[string]*group)
	var order []string

	for _, dets := range perProvider {
		seen := make(map[string]bool)
		for _, d := range dets {
			key := d.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			g, ok := groups[key]
			if !ok {
				g = &group{best: d}
				groups[key] = g
				order = append(order, key)
			} else if d.Confidence > g.best.Confidence {
				g.best = d
			}
			g.sum += d.Confidence
			g.providers++
		}
	}

	var out []pii.Detection
	for _, key := range order {
		g := groups[key]
		if g.providers < 2 {
			continue
		}
		d := g.best
		mean := g.sum / float64(g.providers)
		d.Confidence = math.Min(mean*1.1, 1.0)
		d.Verified = true
		out = append(out, d)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
