package llm

import (
	"encoding/json"
	"fmt"

	"github.com/hannes/docshield/pii"
)

// rawDetection is the wire shape providers must return. Confidence is a
// pointer so entries that omit the field can be told apart from 0.
type rawDetection struct {
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// parseDetections decodes a provider response into detections. Providers
// wrap the JSON in prose often enough that the parser extracts the first
// top-level JSON array instead of decoding the response as-is. Entries
// missing any required field are dropped, never fabricated.
func parseDetections(response string) ([]pii.Detection, error) {
	arr, err := extractJSONArray(response)
	if err != nil {
		return nil, err
	}

	var raw []rawDetection
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode detection array: %w", err)
	}

	out := make([]pii.Detection, 0, len(raw))
	for _, r := range raw {
		if r.Type == "" || r.Text == "" || r.Confidence == nil {
			continue
		}
		out = append(out, pii.Detection{
			Type:       pii.Type(r.Type),
			Text:       r.Text,
			Confidence: pii.Clamp01(*r.Confidence),
			Source:     pii.SourceLLM,
		})
	}
	return out, nil
}

// extractJSONArray returns the first top-level JSON array in s, tracking
// string and escape state so brackets inside values do not confuse the depth
// count.
func extractJSONArray(s string) (string, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '[':
			if start < 0 {
				start = i
			}
			depth++
		case ']':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	if start >= 0 {
		return "", fmt.Errorf("unterminated JSON array in response")
	}
	return "", fmt.Errorf("no JSON array found in response")
}
