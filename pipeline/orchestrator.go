package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hannes/docshield/config"
	"github.com/hannes/docshield/monitor"
	"github.com/hannes/docshield/pii"
	"github.com/hannes/docshield/pii/detectors"
	"github.com/hannes/docshield/pii/llm"
	"github.com/hannes/docshield/pii/vision"
)

// Deps are the collaborators injected into the Orchestrator. OCR is
// load-bearing for image input; Vision and LLM are optional and nil simply
// skips their layers.
type Deps struct {
	OCR      pii.OCREngine
	Vision   pii.VisionEngine
	LLM      *llm.Layer
	Reporter monitor.Reporter
}

// Orchestrator drives one detection run through its stages: vision and OCR,
// the parallel text layers, optional LLM verification, combine and ensemble
// merge. Layer failures degrade to empty results and are recorded; the only
// top-level error is invalid input.
type Orchestrator struct {
	cfg      *config.Config
	ocr      pii.OCREngine
	vis      pii.VisionEngine
	llmLayer *llm.Layer
	pattern  *detectors.PatternEngine
	special  *detectors.SpecializedEngine
	cache    *ResultCache
	reporter monitor.Reporter
}

// New builds an Orchestrator. The result cache is owned here; callers reach
// it through Cache() for operational clearing.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	reporter := deps.Reporter
	if reporter == nil {
		reporter = monitor.NopReporter{}
	}
	return &Orchestrator{
		cfg:      cfg,
		ocr:      deps.OCR,
		vis:      deps.Vision,
		llmLayer: deps.LLM,
		pattern:  detectors.NewPatternEngine(cfg.ConfidenceThreshold),
		special:  detectors.NewSpecializedEngine(cfg.ConfidenceThreshold),
		cache:    NewResultCache(cfg.CacheTTL),
		reporter: reporter,
	}
}

// Cache exposes the result cache for operational endpoints.
func (o *Orchestrator) Cache() *ResultCache { return o.cache }

// ProcessImage runs the full pipeline over a scanned document image.
func (o *Orchestrator) ProcessImage(ctx context.Context, image []byte) (*pii.DetectionResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image input")
	}
	key := HashContent(image)
	if cached, ok := o.cache.Get(key); ok {
		log.Printf("[Orchestrator] Cache hit for image input")
		return cached, nil
	}

	started := time.Now()
	var preErrors []pii.LayerError

	// Vision has no data dependency on OCR, so the two run concurrently.
	type visionOut struct {
		regions []pii.VisionRegion
		lerr    *pii.LayerError
	}
	visionCh := make(chan visionOut, 1)
	if o.vis != nil && o.cfg.Layers.Vision {
		go func() {
			regions, lerr := o.detectRegions(ctx, image)
			visionCh <- visionOut{regions, lerr}
		}()
	} else {
		visionCh <- visionOut{}
	}

	ocrRes, ocrErr := o.recognize(ctx, image)
	if ocrErr != nil {
		preErrors = append(preErrors, *ocrErr)
	}

	vo := <-visionCh
	if vo.lerr != nil {
		preErrors = append(preErrors, *vo.lerr)
	}

	return o.finish(ctx, key, started, ocrRes, vo.regions, preErrors), nil
}

// ProcessText runs the text layers over raw text, synthesizing OCR geometry
// so bounding-box interpolation still produces usable coordinates.
func (o *Orchestrator) ProcessText(ctx context.Context, text string) (*pii.DetectionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text input")
	}
	key := HashContent([]byte(text))
	if cached, ok := o.cache.Get(key); ok {
		log.Printf("[Orchestrator] Cache hit for text input")
		return cached, nil
	}

	started := time.Now()
	return o.finish(ctx, key, started, syntheticOCR(text), nil, nil), nil
}

// finish runs the OCR-dependent stages and assembles the final result.
func (o *Orchestrator) finish(ctx context.Context, key uint64, started time.Time, ocrRes *pii.OCRResult, regions []pii.VisionRegion, preErrors []pii.LayerError) *pii.DetectionResult {
	var results []pii.LayerResult

	// Pattern and specialized are independent once OCR text exists.
	var textLayers []detectors.Layer
	if o.cfg.Layers.Pattern {
		textLayers = append(textLayers, o.pattern)
	}
	if o.cfg.Layers.Specialized {
		textLayers = append(textLayers, o.special)
	}
	parallel := make([]pii.LayerResult, len(textLayers))
	var wg sync.WaitGroup
	for i, layer := range textLayers {
		wg.Add(1)
		go func(i int, layer detectors.Layer) {
			defer wg.Done()
			parallel[i] = o.runLayer(ctx, layer, ocrRes, o.cfg.LayerTimeout, pii.ErrKindProcessing)
		}(i, layer)
	}
	wg.Wait()
	results = append(results, parallel...)

	if len(regions) > 0 {
		classifier := vision.NewRegionClassifier(regions)
		results = append(results, o.runLayer(ctx, classifier, ocrRes, o.cfg.LayerTimeout, pii.ErrKindVision))
	}

	if cancelled := ctx.Err(); cancelled != nil {
		return o.buildResult(started, ocrRes, results, append(preErrors,
			pii.NewLayerError("pipeline", pii.ErrKindProcessing, cancelled)), false, key)
	}

	if o.cfg.Layers.LLM && o.llmLayer != nil && o.llmLayer.Available() {
		results = append(results, o.runLLM(ctx, ocrRes, results))
	}

	if cancelled := ctx.Err(); cancelled != nil {
		return o.buildResult(started, ocrRes, results, append(preErrors,
			pii.NewLayerError("pipeline", pii.ErrKindProcessing, cancelled)), false, key)
	}

	result := o.buildResult(started, ocrRes, results, preErrors, true, key)
	o.cache.Put(key, result)
	return result
}

// buildResult combines, optionally ensembles, and wraps everything into the
// immutable DetectionResult. Cancelled runs skip the ensemble step and are
// never cached.
func (o *Orchestrator) buildResult(started time.Time, ocrRes *pii.OCRResult, results []pii.LayerResult, errs []pii.LayerError, complete bool, key uint64) *pii.DetectionResult {
	for _, lr := range results {
		if lr.Err != nil {
			errs = append(errs, *lr.Err)
		}
	}

	combined := combine(results, o.cfg.MaxDetections)
	final := combined
	if complete && o.cfg.EnsembleEnabled {
		final = ensembleMerge(combined, results)
	}

	counts := make(map[pii.Source]int)
	for _, d := range final {
		counts[d.Source]++
	}

	result := &pii.DetectionResult{
		Success:        complete && len(errs) == 0,
		Detections:     final,
		Errors:         errs,
		ProcessingTime: time.Since(started),
		Metadata: pii.ResultMetadata{
			RunID:        uuid.NewString(),
			LineCount:    len(ocrRes.Lines),
			CharCount:    len(ocrRes.Text),
			SourceCounts: counts,
		},
	}
	log.Printf("[Orchestrator] Run %s: %d detections, %d errors in %s",
		result.Metadata.RunID, len(final), len(errs), result.ProcessingTime)
	return result
}

// runLayer wraps one layer invocation in a timeout race. A timed-out or
// erroring layer's partial work is discarded.
func (o *Orchestrator) runLayer(ctx context.Context, layer detectors.Layer, ocrRes *pii.OCRResult, timeout time.Duration, kind pii.ErrorKind) pii.LayerResult {
	start := time.Now()
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type out struct {
		dets []pii.Detection
		err  error
	}
	ch := make(chan out, 1)
	go func() {
		dets, err := layer.Detect(lctx, ocrRes)
		ch <- out{dets, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			o.reporter.CaptureError(fmt.Errorf("%s layer failed: %w", layer.Name(), r.err))
			return pii.FailedLayerResult(layer.Name(), kind, r.err, time.Since(start))
		}
		return pii.NewLayerResult(layer.Name(), r.dets, time.Since(start))
	case <-lctx.Done():
		o.reporter.CaptureError(fmt.Errorf("%s layer timed out: %w", layer.Name(), lctx.Err()))
		return pii.FailedLayerResult(layer.Name(), kind, lctx.Err(), time.Since(start))
	}
}

// runLLM verifies the candidates found so far, or detects from scratch when
// the earlier layers found nothing.
func (o *Orchestrator) runLLM(ctx context.Context, ocrRes *pii.OCRResult, prior []pii.LayerResult) pii.LayerResult {
	start := time.Now()
	lctx, cancel := context.WithTimeout(ctx, o.cfg.LLMTimeout)
	defer cancel()

	candidates := combine(prior, o.cfg.MaxDetections)

	type out struct {
		dets []pii.Detection
		err  error
	}
	ch := make(chan out, 1)
	go func() {
		var dets []pii.Detection
		var err error
		if len(candidates) > 0 {
			dets, err = o.llmLayer.Verify(lctx, ocrRes.Text, candidates)
		} else {
			dets, err = o.llmLayer.Detect(lctx, ocrRes)
		}
		ch <- out{dets, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			o.reporter.CaptureError(fmt.Errorf("llm layer failed: %w", r.err))
			return pii.FailedLayerResult("llm", pii.ErrKindLLM, r.err, time.Since(start))
		}
		return pii.NewLayerResult("llm", r.dets, time.Since(start))
	case <-lctx.Done():
		o.reporter.CaptureError(fmt.Errorf("llm layer timed out: %w", lctx.Err()))
		return pii.FailedLayerResult("llm", pii.ErrKindLLM, lctx.Err(), time.Since(start))
	}
}

// recognize runs OCR with the layer timeout. Failure degrades to empty text
// so the text layers still run (and find nothing) instead of aborting.
func (o *Orchestrator) recognize(ctx context.Context, image []byte) (*pii.OCRResult, *pii.LayerError) {
	empty := &pii.OCRResult{}
	if o.ocr == nil {
		lerr := pii.NewLayerError("ocr", pii.ErrKindOCR, fmt.Errorf("no OCR engine configured"))
		return empty, &lerr
	}

	octx, cancel := context.WithTimeout(ctx, o.cfg.LayerTimeout)
	defer cancel()

	type out struct {
		res *pii.OCRResult
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := o.ocr.Recognize(octx, image)
		ch <- out{res, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			o.reporter.CaptureError(fmt.Errorf("ocr failed: %w", r.err))
			lerr := pii.NewLayerError("ocr", pii.ErrKindOCR, r.err)
			return empty, &lerr
		}
		if r.res == nil {
			return empty, nil
		}
		return r.res, nil
	case <-octx.Done():
		lerr := pii.NewLayerError("ocr", pii.ErrKindOCR, octx.Err())
		return empty, &lerr
	}
}

func (o *Orchestrator) detectRegions(ctx context.Context, image []byte) ([]pii.VisionRegion, *pii.LayerError) {
	vctx, cancel := context.WithTimeout(ctx, o.cfg.LayerTimeout)
	defer cancel()

	type out struct {
		regions []pii.VisionRegion
		err     error
	}
	ch := make(chan out, 1)
	go func() {
		regions, err := o.vis.DetectRegions(vctx, image)
		ch <- out{regions, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			o.reporter.CaptureError(fmt.Errorf("vision failed: %w", r.err))
			lerr := pii.NewLayerError("vision", pii.ErrKindVision, r.err)
			return nil, &lerr
		}
		return r.regions, nil
	case <-vctx.Done():
		lerr := pii.NewLayerError("vision", pii.ErrKindVision, vctx.Err())
		return nil, &lerr
	}
}

// syntheticOCR turns raw text into an OCRResult with nominal geometry: 10px
// per character, 20px line height. Good enough for the interpolation the
// text layers do; text input has no real coordinates to map back to anyway.
func syntheticOCR(text string) *pii.OCRResult {
	lines := strings.Split(text, "\n")
	res := &pii.OCRResult{Text: text}
	for i, line := range lines {
		res.Lines = append(res.Lines, pii.OCRLine{
			Text: line,
			Box: pii.BoundingBox{
				X:      0,
				Y:      float64(i * 20),
				Width:  float64(10 * len(line)),
				Height: 20,
			},
		})
	}
	return res
}
