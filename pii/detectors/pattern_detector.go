package detectors

import (
	"context"
	"log"

	"github.com/hannes/docshield/pii"
)

// maxMatchesPerPatternLine caps how many hits one pattern may contribute on a
// single line, so a pathological line cannot flood the pipeline.
const maxMatchesPerPatternLine = 10

// wholeCardPadding is the pixel margin added around a line that contains a
// credit card number. Card numbers on scanned documents usually sit inside a
// larger card image, so the whole region is flagged for obscuring.
const wholeCardPadding = 40.0

// PatternEngine is the regex detection layer. It is stateless after
// construction and safe for concurrent use.
type PatternEngine struct {
	threshold float64
}

// NewPatternEngine builds the regex layer. Detections scoring below the
// threshold are dropped before they leave the layer.
func NewPatternEngine(threshold float64) *PatternEngine {
	return &PatternEngine{threshold: threshold}
}

func (e *PatternEngine) Name() string { return "pattern" }

// Detect runs every pattern over every OCR line. Matches are deduplicated by
// (text, type, line) within the layer; cross-layer deduplication happens in
// the orchestrator.
func (e *PatternEngine) Detect(ctx context.Context, ocr *pii.OCRResult) ([]pii.Detection, error) {
	if ocr == nil {
		return nil, nil
	}

	var out []pii.Detection
	seen := make(map[lineKey]struct{})

	for lineIdx, line := range ocr.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if line.Text == "" {
			continue
		}
		for _, set := range patternTable {
			for _, re := range set.Patterns {
				locs := re.FindAllStringIndex(line.Text, maxMatchesPerPatternLine)
				for _, loc := range locs {
					match := line.Text[loc[0]:loc[1]]
					conf := scoreConfidence(set.Type, match, line.Text)
					if conf < e.threshold {
						continue
					}
					key := lineKey{match, set.Type, lineIdx}
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}

					out = append(out, pii.Detection{
						Type:        set.Type,
						Text:        match,
						Confidence:  conf,
						BoundingBox: spanBox(line, loc[0], loc[1]),
						Line:        lineIdx,
						Source:      pii.SourcePattern,
					})

					if set.Type == pii.TypeCreditCard {
						whole := wholeCardDetection(line, lineIdx, conf)
						wkey := lineKey{whole.Text, whole.Type, lineIdx}
						if _, dup := seen[wkey]; !dup {
							seen[wkey] = struct{}{}
							out = append(out, whole)
						}
					}
				}
			}
		}
	}

	if len(out) > 0 {
		log.Printf("[PatternEngine] Found %d matches across %d lines", len(out), len(ocr.Lines))
	}
	return out, nil
}

type lineKey struct {
	text string
	typ  pii.Type
	line int
}

// spanBox interpolates a character span into pixel coordinates, assuming
// uniform glyph width across the OCR line.
func spanBox(line pii.OCRLine, start, end int) pii.BoundingBox {
	n := len(line.Text)
	if n == 0 {
		return line.Box
	}
	charW := line.Box.Width / float64(n)
	return pii.BoundingBox{
		X:      line.Box.X + float64(start)*charW,
		Y:      line.Box.Y,
		Width:  float64(end-start) * charW,
		Height: line.Box.Height,
	}
}

// wholeCardDetection flags the surrounding line region when a card number is
// found. Its text is the full line so it survives deduplication against the
// number itself.
func wholeCardDetection(line pii.OCRLine, lineIdx int, conf float64) pii.Detection {
	box := pii.BoundingBox{
		X:      line.Box.X - wholeCardPadding,
		Y:      line.Box.Y - wholeCardPadding,
		Width:  line.Box.Width + 2*wholeCardPadding,
		Height: line.Box.Height + 2*wholeCardPadding,
	}
	if box.X < 0 {
		box.Width += box.X
		box.X = 0
	}
	if box.Y < 0 {
		box.Height += box.Y
		box.Y = 0
	}
	return pii.Detection{
		Type:        pii.TypeCreditCard,
		Text:        line.Text,
		Confidence:  conf,
		BoundingBox: box,
		Line:        lineIdx,
		Source:      pii.SourcePattern,
	}
}
