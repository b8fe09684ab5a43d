package pii

import "time"

// LayerResult is the output of one layer invocation. It is created once per
// execution and never mutated after return; only the orchestrator consumes it.
type LayerResult struct {
	Layer          string
	Detections     []Detection
	Success        bool
	Err            *LayerError
	MeanConfidence float64
	Elapsed        time.Duration
	Provider       string
}

// NewLayerResult builds a successful LayerResult, computing mean confidence.
func NewLayerResult(layer string, detections []Detection, elapsed time.Duration) LayerResult {
	mean := 0.0
	if len(detections) > 0 {
		sum := 0.0
		for _, d := range detections {
			sum += d.Confidence
		}
		mean = sum / float64(len(detections))
	}
	return LayerResult{
		Layer:          layer,
		Detections:     detections,
		Success:        true,
		MeanConfidence: mean,
		Elapsed:        elapsed,
	}
}

// FailedLayerResult builds a LayerResult for a layer that errored or timed
// out. Partial work is discarded.
func FailedLayerResult(layer string, kind ErrorKind, err error, elapsed time.Duration) LayerResult {
	le := NewLayerError(layer, kind, err)
	return LayerResult{Layer: layer, Err: &le, Elapsed: elapsed}
}

// ResultMetadata carries run diagnostics alongside the final detections.
type ResultMetadata struct {
	RunID        string         `json:"runId"`
	LineCount    int            `json:"lineCount"`
	CharCount    int            `json:"charCount"`
	SourceCounts map[Source]int `json:"sourceCounts"`
}

// DetectionResult is the top-level pipeline output. It is constructed once at
// the end of a run and never mutated; callers receive copies.
type DetectionResult struct {
	Success        bool           `json:"success"`
	Detections     []Detection    `json:"detections"`
	Errors         []LayerError   `json:"errors"`
	ProcessingTime time.Duration  `json:"processingTime"`
	Metadata       ResultMetadata `json:"metadata"`
}

// Copy returns a deep copy so cached results stay immutable.
func (r *DetectionResult) Copy() *DetectionResult {
	out := *r
	out.Detections = append([]Detection(nil), r.Detections...)
	out.Errors = append([]LayerError(nil), r.Errors...)
	if r.Metadata.SourceCounts != nil {
		out.Metadata.SourceCounts = make(map[Source]int, len(r.Metadata.SourceCounts))
		for k, v := range r.Metadata.SourceCounts {
			out.Metadata.SourceCounts[k] = v
		}
	}
	return &out
}
