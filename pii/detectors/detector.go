package detectors

import (
	"context"

	"github.com/hannes/docshield/pii"
)

// Layer is one independent detection strategy over OCR output. Every layer
// returns candidate detections; the orchestrator decides what survives.
type Layer interface {
	Name() string
	Detect(ctx context.Context, ocr *pii.OCRResult) ([]pii.Detection, error)
}
