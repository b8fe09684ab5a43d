package vision

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/hannes/docshield/pii"
	"github.com/hannes/docshield/pii/detectors"
)

var (
	streetAddressRe = regexp.MustCompile(`\b\d{1,5}\s+[A-Za-z][A-Za-z. ]+\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct|Place|Pl)\.?\b`)

	// cityNames is a small gazetteer used for document-region heuristics.
	// Incomplete on purpose; a miss falls through to the address regex.
	cityNames = []string{
		"new york", "los angeles", "chicago", "houston", "phoenix",
		"philadelphia", "san antonio", "san diego", "dallas", "austin",
		"san francisco", "seattle", "denver", "boston", "miami",
	}
)

// RegionClassifier correlates vision-detected regions with OCR lines and
// turns them into typed detections. It holds no state and is safe for
// concurrent use.
type RegionClassifier struct {
	regions func(ctx context.Context) ([]pii.VisionRegion, error)
}

// NewRegionClassifier wraps the vision regions captured for the current
// input. The orchestrator binds the regions per run, so the classifier itself
// satisfies the Layer contract over OCR output alone.
func NewRegionClassifier(regions []pii.VisionRegion) *RegionClassifier {
	return &RegionClassifier{
		regions: func(ctx context.Context) ([]pii.VisionRegion, error) {
			return regions, nil
		},
	}
}

func (c *RegionClassifier) Name() string { return "vision" }

// Detect maps each vision region to the first OCR line whose box overlaps it,
// then classifies that line's text. Face regions never produce a detection.
func (c *RegionClassifier) Detect(ctx context.Context, ocr *pii.OCRResult) ([]pii.Detection, error) {
	regions, err := c.regions(ctx)
	if err != nil {
		return nil, err
	}
	if ocr == nil || len(regions) == 0 {
		return nil, nil
	}

	var out []pii.Detection
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if region.Kind == pii.RegionFace {
			// Faces carry no text to classify and no PII type is assigned.
			continue
		}
		lineIdx, line, ok := firstOverlappingLine(ocr.Lines, region.Box)
		if !ok {
			continue
		}
		if d, ok := classifyRegion(region, line, lineIdx); ok {
			out = append(out, d)
		}
	}

	if len(out) > 0 {
		log.Printf("[RegionClassifier] Classified %d of %d regions", len(out), len(regions))
	}
	return out, nil
}

func firstOverlappingLine(lines []pii.OCRLine, box pii.BoundingBox) (int, pii.OCRLine, bool) {
	for i, line := range lines {
		if line.Box.Intersects(box) {
			return i, line, true
		}
	}
	return 0, pii.OCRLine{}, false
}

// classifyRegion assigns a PII type to a region's overlapping line text. The
// detection inherits the region's confidence unmodified.
func classifyRegion(region pii.VisionRegion, line pii.OCRLine, lineIdx int) (pii.Detection, bool) {
	switch region.Kind {
	case pii.RegionText:
		typ, match, ok := detectors.FirstMatch(line.Text)
		if !ok {
			return pii.Detection{}, false
		}
		return makeDetection(typ, match, region, lineIdx), true

	case pii.RegionDocument:
		lower := strings.ToLower(line.Text)
		if strings.Contains(lower, "passport") {
			return makeDetection(pii.TypePassport, line.Text, region, lineIdx), true
		}
		if strings.Contains(lower, "driver") || strings.Contains(lower, "license") || containsCity(lower) {
			return makeDetection(pii.TypeDriversLicense, line.Text, region, lineIdx), true
		}
		if m := streetAddressRe.FindString(line.Text); m != "" {
			return makeDetection(pii.TypeAddress, m, region, lineIdx), true
		}
	}
	return pii.Detection{}, false
}

func makeDetection(typ pii.Type, text string, region pii.VisionRegion, lineIdx int) pii.Detection {
	return pii.Detection{
		Type:        typ,
		Text:        text,
		Confidence:  pii.Clamp01(region.Confidence),
		BoundingBox: region.Box,
		Line:        lineIdx,
		Source:      pii.SourceVision,
	}
}

func containsCity(lower string) bool {
	for _, city := range cityNames {
		if strings.Contains(lower, city) {
			return true
		}
	}
	return false
}
