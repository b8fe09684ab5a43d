package detectors

import (
	"context"
	"log"
	"regexp"

	"github.com/hannes/docshield/pii"
)

// specializedRule is one ordered heuristic. A rule with a context expression
// fires at highConf when the surrounding lines contain the expected
// vocabulary; otherwise it fires at lowConf, or not at all when lowConf is 0.
type specializedRule struct {
	typ      pii.Type
	re       *regexp.Regexp
	ctx      *regexp.Regexp
	highConf float64
	lowConf  float64
	group    int
}

// specializedRules are evaluated in order. Medical identifiers come first
// because they are the most context-sensitive; bare numeric forms only fire
// when the document carries matching vocabulary.
var specializedRules = []specializedRule{
	{
		typ:      pii.TypePatientID,
		re:       regexp.MustCompile(`(?i)\bpatient\s*(?:id|number)?[\s#:]*P?\d{4,8}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:medical|hospital|clinic|insurance|patient|physician)\b`),
		highConf: 0.90,
		lowConf:  0.65,
	},
	{
		typ:      pii.TypeMedicalRecord,
		re:       regexp.MustCompile(`(?i)\b(?:mrn|medical\s+record)[\s#:]*\d{5,10}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:medical|hospital|clinic|patient|chart)\b`),
		highConf: 0.90,
		lowConf:  0.70,
	},
	{
		typ:      pii.TypeHealthInsurance,
		re:       regexp.MustCompile(`(?i)\b(?:member|insurance|subscriber)\s*(?:id|number|no)[\s#:]*[A-Z0-9]{6,12}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:health|insurance|coverage|plan|group)\b`),
		highConf: 0.85,
		lowConf:  0.65,
	},
	{
		typ:      pii.TypeInsurancePolicy,
		re:       regexp.MustCompile(`(?i)\bpolicy[\s#:]*[A-Z]{0,3}-?\d{6,10}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:insurance|insurer|premium|claim|coverage)\b`),
		highConf: 0.85,
		lowConf:  0.65,
	},
	{
		typ:      pii.TypeMedicalInfo,
		re:       regexp.MustCompile(`(?i)\b(?:diagnosis|diagnosed\s+with|prescription|prescribed)[\s:]+[A-Za-z][A-Za-z ]{2,40}`),
		highConf: 0.75,
		lowConf:  0.75,
	},
	{
		typ:      pii.TypeMedicalInfo,
		re:       regexp.MustCompile(`\b[A-TV-Z]\d{2}\.\d{1,2}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:icd|diagnosis|diagnostic)\b`),
		highConf: 0.85,
	},
	{
		typ:      pii.TypeBankAccount,
		re:       regexp.MustCompile(`\b\d{8,12}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:bank|account|checking|savings|deposit)\b`),
		highConf: 0.85,
	},
	{
		typ:      pii.TypeRoutingNumber,
		re:       regexp.MustCompile(`\b\d{9}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:routing|aba|wire|transfer)\b`),
		highConf: 0.80,
	},
	{
		typ:      pii.TypeDocumentID,
		re:       regexp.MustCompile(`\b[A-Z]{2}\d{6,8}\b`),
		ctx:      regexp.MustCompile(`(?i)\b(?:document|permit|certificate|registration|case)\b`),
		highConf: 0.80,
	},
	{
		typ:      pii.TypePersonName,
		re:       regexp.MustCompile(`(?i:\bname[\s:]+)([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,2})`),
		highConf: 0.75,
		lowConf:  0.75,
		group:    1,
	},
	{
		typ:      pii.TypeDateOfBirth,
		re:       regexp.MustCompile(`(?i:\b(?:dob|date\s+of\s+birth)[\s:]*)((?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-]\d{2,4})`),
		highConf: 0.90,
		lowConf:  0.90,
		group:    1,
	},
}

// SpecializedEngine applies domain heuristics (medical, financial, document
// identifiers) that need more context than a bare regex. Independent from the
// pattern layer so the two can corroborate each other during ensembling.
type SpecializedEngine struct {
	threshold float64
}

func NewSpecializedEngine(threshold float64) *SpecializedEngine {
	return &SpecializedEngine{threshold: threshold}
}

func (e *SpecializedEngine) Name() string { return "specialized" }

func (e *SpecializedEngine) Detect(ctx context.Context, ocr *pii.OCRResult) ([]pii.Detection, error) {
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
		window := contextWindow(ocr.Lines, lineIdx)
		for _, rule := range specializedRules {
			for _, loc := range rule.re.FindAllStringSubmatchIndex(line.Text, maxMatchesPerPatternLine) {
				start, end := loc[0], loc[1]
				if rule.group > 0 && len(loc) > 2*rule.group+1 && loc[2*rule.group] >= 0 {
					start, end = loc[2*rule.group], loc[2*rule.group+1]
				}
				match := line.Text[start:end]

				conf := rule.highConf
				if rule.ctx != nil && !rule.ctx.MatchString(window) {
					if rule.lowConf == 0 {
						continue
					}
					conf = rule.lowConf
				}
				conf = clampSpecialized(conf)
				if conf < e.threshold {
					continue
				}
				key := lineKey{match, rule.typ, lineIdx}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				out = append(out, pii.Detection{
					Type:        rule.typ,
					Text:        match,
					Confidence:  conf,
					BoundingBox: spanBox(line, start, end),
					Line:        lineIdx,
					Source:      pii.SourceSpecialized,
				})
			}
		}
	}

	if len(out) > 0 {
		log.Printf("[SpecializedEngine] Found %d matches across %d lines", len(out), len(ocr.Lines))
	}
	return out, nil
}

// contextWindow joins a line with its neighbors so vocabulary checks can see
// labels that OCR split onto adjacent lines.
func contextWindow(lines []pii.OCRLine, idx int) string {
	window := lines[idx].Text
	if idx > 0 {
		window = lines[idx-1].Text + "\n" + window
	}
	if idx+1 < len(lines) {
		window = window + "\n" + lines[idx+1].Text
	}
	return window
}

func clampSpecialized(v float64) float64 {
	if v < minPatternConfidence {
		return minPatternConfidence
	}
	if v > maxPatternConfidence {
		return maxPatternConfidence
	}
	return v
}
