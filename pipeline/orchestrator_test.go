package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hannes/docshield/config"
	"github.com/hannes/docshield/pii"
	"github.com/hannes/docshield/pii/llm"
	"github.com/hannes/docshield/providers"
)

// countingOCR returns a fixed OCR result and counts invocations.
type countingOCR struct {
	result *pii.OCRResult
	err    error
	calls  int64
}

func (c *countingOCR) Recognize(ctx context.Context, image []byte) (*pii.OCRResult, error) {
	atomic.AddInt64(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type staticVision struct {
	regions []pii.VisionRegion
	err     error
}

func (s *staticVision) DetectRegions(ctx context.Context, image []byte) ([]pii.VisionRegion, error) {
	return s.regions, s.err
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.EnsembleEnabled = false
	cfg.Layers.LLM = false
	cfg.LayerTimeout = time.Second
	cfg.LLMTimeout = time.Second
	return cfg
}

func TestProcessTextCardAndSSN(t *testing.T) {
	orch := New(testConfig(), Deps{})

	res, err := orch.ProcessText(context.Background(), "Card: 4111-1111-1111-1111, SSN 123-45-6789")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}
	if !res.Success {
		t.Errorf("expected success, errors: %+v", res.Errors)
	}
	if len(res.Detections) != 3 {
		t.Fatalf("expected card + whole-card + ssn, got %d: %+v", len(res.Detections), res.Detections)
	}

	var card, ssn bool
	for _, d := range res.Detections {
		switch {
		case d.Type == pii.TypeCreditCard && d.Text == "4111-1111-1111-1111":
			card = true
			if d.Confidence != 0.95 {
				t.Errorf("card confidence = %v, want 0.95", d.Confidence)
			}
		case d.Type == pii.TypeSSN:
			ssn = true
			if d.Confidence != 0.90 {
				t.Errorf("ssn confidence = %v, want 0.90", d.Confidence)
			}
		}
	}
	if !card || !ssn {
		t.Errorf("missing expected detections: %+v", res.Detections)
	}
	if res.Metadata.LineCount != 1 || res.Metadata.RunID == "" {
		t.Errorf("unexpected metadata %+v", res.Metadata)
	}
}

func TestProcessTextEmptyInput(t *testing.T) {
	orch := New(testConfig(), Deps{})
	if _, err := orch.ProcessText(context.Background(), "   \n "); err == nil {
		t.Error("empty input must be rejected before any layer runs")
	}
}

func TestProcessImageEmptyInput(t *testing.T) {
	orch := New(testConfig(), Deps{})
	if _, err := orch.ProcessImage(context.Background(), nil); err == nil {
		t.Error("empty image must be rejected")
	}
}

func TestProcessImageOCRFailureDegrades(t *testing.T) {
	ocr := &countingOCR{err: errors.New("engine crashed")}
	orch := New(testConfig(), Deps{OCR: ocr})

	res, err := orch.ProcessImage(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("OCR failure must not propagate: %v", err)
	}
	if res.Success {
		t.Error("result should report failure when OCR errored")
	}
	if len(res.Errors) == 0 || res.Errors[0].Kind != pii.ErrKindOCR {
		t.Errorf("expected OCR error recorded, got %+v", res.Errors)
	}
	if len(res.Detections) != 0 {
		t.Errorf("no detections expected from empty text, got %+v", res.Detections)
	}
}

func TestProcessImageCacheHitSkipsLayers(t *testing.T) {
	ocr := &countingOCR{result: &pii.OCRResult{
		Text: "jane@example.com",
		Lines: []pii.OCRLine{
			{Text: "jane@example.com", Box: pii.BoundingBox{Width: 160, Height: 20}},
		},
	}}
	orch := New(testConfig(), Deps{OCR: ocr})
	image := []byte("scanned-document")

	first, err := orch.ProcessImage(context.Background(), image)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := orch.ProcessImage(context.Background(), image)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if atomic.LoadInt64(&ocr.calls) != 1 {
		t.Errorf("cache hit must skip all layers, OCR ran %d times", ocr.calls)
	}
	if first.Metadata.RunID != second.Metadata.RunID {
		t.Error("cached result must be the identical stored result")
	}
	if len(first.Detections) != len(second.Detections) {
		t.Error("cached detections differ from original")
	}
	for i := range first.Detections {
		if first.Detections[i] != second.Detections[i] {
			t.Errorf("detection %d differs between original and cached", i)
		}
	}
}

func TestProcessImageVisionRegions(t *testing.T) {
	ocr := &countingOCR{result: &pii.OCRResult{
		Text: "jane@example.com",
		Lines: []pii.OCRLine{
			{Text: "jane@example.com", Box: pii.BoundingBox{X: 0, Y: 0, Width: 160, Height: 20}},
		},
	}}
	vis := &staticVision{regions: []pii.VisionRegion{
		{Kind: pii.RegionText, Confidence: 0.77, Box: pii.BoundingBox{X: 10, Y: 5, Width: 50, Height: 10}},
	}}
	cfg := testConfig()
	orch := New(cfg, Deps{OCR: ocr, Vision: vis})

	res, err := orch.ProcessImage(context.Background(), []byte("doc"))
	if err != nil {
		t.Fatalf("ProcessImage failed: %v", err)
	}
	// Pattern and vision both find the email; dedup keeps the higher score.
	var email *pii.Detection
	for i := range res.Detections {
		if res.Detections[i].Type == pii.TypeEmail {
			email = &res.Detections[i]
		}
	}
	if email == nil {
		t.Fatalf("expected email detection, got %+v", res.Detections)
	}
	if email.Confidence != 0.85 {
		t.Errorf("dedup should keep pattern's higher confidence, got %v", email.Confidence)
	}
}

func TestEnsembleEnabledDropsSingleLayerDetections(t *testing.T) {
	cfg := testConfig()
	cfg.EnsembleEnabled = true
	orch := New(cfg, Deps{})

	// Only the pattern layer fires on this input.
	res, err := orch.ProcessText(context.Background(), "reach me at jane@example.com")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}
	if len(res.Detections) != 0 {
		t.Errorf("single-layer detections must be dropped when ensembling, got %+v", res.Detections)
	}
}

func TestEnsembleWithLLMAgreement(t *testing.T) {
	cfg := testConfig()
	cfg.EnsembleEnabled = true
	cfg.Layers.LLM = true

	provider := providers.NewMockProvider("mock", 1).
		Respond(`[{"type":"ssn","text":"123-45-6789","confidence":0.95}]`)
	llmLayer := llm.NewLayer([]providers.Provider{provider}, llm.Options{
		Threshold:   cfg.ConfidenceThreshold,
		CallTimeout: time.Second,
	})
	orch := New(cfg, Deps{LLM: llmLayer})

	res, err := orch.ProcessText(context.Background(), "SSN 123-45-6789")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("expected the corroborated ssn only, got %+v", res.Detections)
	}
	d := res.Detections[0]
	if d.Type != pii.TypeSSN || !d.Verified {
		t.Errorf("unexpected final detection %+v", d)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		t.Errorf("boosted confidence %v outside [0,1]", d.Confidence)
	}
}

func TestLLMTimeoutDoesNotBlockPipeline(t *testing.T) {
	cfg := testConfig()
	cfg.Layers.LLM = true
	cfg.LLMTimeout = 30 * time.Millisecond

	slow := providers.NewMockProvider("slow", 1)
	slow.Delay = 2 * time.Second
	llmLayer := llm.NewLayer([]providers.Provider{slow}, llm.Options{
		Threshold:   cfg.ConfidenceThreshold,
		CallTimeout: time.Minute,
	})
	orch := New(cfg, Deps{LLM: llmLayer})

	start := time.Now()
	res, err := orch.ProcessText(context.Background(), "SSN 123-45-6789")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("pipeline blocked past the LLM timeout")
	}
	if res.Success {
		t.Error("timed-out LLM layer should be recorded as an error")
	}

	var ssnFound bool
	for _, d := range res.Detections {
		if d.Type == pii.TypeSSN {
			ssnFound = true
		}
	}
	if !ssnFound {
		t.Error("other layers' detections must survive an LLM timeout")
	}
}

func TestCancellationReturnsPartialResult(t *testing.T) {
	orch := New(testConfig(), Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := orch.ProcessText(ctx, "SSN 123-45-6789")
	if err != nil {
		t.Fatalf("cancellation must not propagate as a top-level error: %v", err)
	}
	if res.Success {
		t.Error("cancelled run must not report success")
	}
	if len(res.Errors) == 0 {
		t.Error("cancelled run should record the cancellation")
	}
}

func TestCancelledRunIsNotCached(t *testing.T) {
	orch := New(testConfig(), Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := orch.ProcessText(ctx, "SSN 123-45-6789"); err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}
	if orch.Cache().Size() != 0 {
		t.Error("cancelled runs must not be cached")
	}

	res, err := orch.ProcessText(context.Background(), "SSN 123-45-6789")
	if err != nil {
		t.Fatalf("ProcessText failed: %v", err)
	}
	if !res.Success {
		t.Errorf("fresh run after cancellation should succeed, errors: %+v", res.Errors)
	}
}
