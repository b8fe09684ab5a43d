package detectors

import (
	"net"
	"regexp"
	"strings"

	"github.com/hannes/docshield/pii"
)

const (
	minPatternConfidence = 0.6
	maxPatternConfidence = 0.95
)

var (
	strictEmailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)
	macRe         = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	vinRe         = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
	taxIDRe       = regexp.MustCompile(`\d{2}-\d{7}`)
	addressCtxRe  = regexp.MustCompile(`(?i)\b(?:address|street|road|avenue|apt|suite)\b`)
)

// scoreConfidence assigns a deterministic confidence to a pattern match.
// Validation that passes raises the score, validation that fails lowers it,
// and the result is always clamped to [0.6, 0.95] so a regex hit is never
// reported as either noise or certainty.
func scoreConfidence(t pii.Type, match, lineText string) float64 {
	score := 0.70
	switch t {
	case pii.TypeCreditCard:
		if luhnValid(digitsOf(match)) {
			score = 0.95
		} else {
			score = 0.75
		}
	case pii.TypePhone:
		n := len(digitsOf(match))
		if n >= 10 && n <= 15 {
			score = 0.90
		} else {
			score = 0.60
		}
	case pii.TypeEmail:
		if strictEmailRe.MatchString(match) {
			score = 0.85
		} else {
			score = 0.60
		}
	case pii.TypeSSN:
		if len(digitsOf(match)) == 9 {
			score = 0.90
		} else {
			score = 0.60
		}
	case pii.TypeAddress:
		if addressCtxRe.MatchString(lineText) {
			score = 0.80
		} else {
			score = 0.65
		}
	case pii.TypeIPAddress:
		if net.ParseIP(match) != nil {
			score = 0.90
		} else {
			score = 0.65
		}
	case pii.TypeMACAddress:
		if macRe.MatchString(match) {
			score = 0.90
		} else {
			score = 0.60
		}
	case pii.TypeVehicleVIN:
		if vinRe.MatchString(match) {
			score = 0.90
		} else {
			score = 0.65
		}
	case pii.TypeTaxID, pii.TypeEIN:
		if taxIDRe.MatchString(match) {
			score = 0.90
		} else {
			score = 0.60
		}
	}
	if score < minPatternConfidence {
		return minPatternConfidence
	}
	if score > maxPatternConfidence {
		return maxPatternConfidence
	}
	return score
}

// luhnValid implements the Luhn checksum over a digit string.
func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
