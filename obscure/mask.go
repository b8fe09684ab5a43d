package obscure

import (
	"strings"

	"github.com/hannes/docshield/pii"
)

// maskText applies a type-specific partial reveal. Separators and formatting
// characters are preserved so the masked value keeps its shape.
func maskText(typ pii.Type, text string) string {
	switch typ {
	case pii.TypeCreditCard:
		return maskDigits(text, 4, 4)
	case pii.TypePhone:
		return maskDigits(text, 3, 2)
	case pii.TypeEmail:
		return maskEmail(text)
	default:
		return maskGeneric(text)
	}
}

// maskDigits keeps the first keepLead and last keepTail digits visible and
// masks the digits between them. Non-digit characters pass through.
func maskDigits(text string, keepLead, keepTail int) string {
	total := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			total++
		}
	}
	if total <= keepLead+keepTail {
		return maskGeneric(text)
	}

	var b strings.Builder
	seen := 0
	for _, r := range text {
		if r < '0' || r > '9' {
			b.WriteRune(r)
			continue
		}
		if seen < keepLead || seen >= total-keepTail {
			b.WriteRune(r)
		} else {
			b.WriteRune('*')
		}
		seen++
	}
	return b.String()
}

// maskEmail reveals the first letter of the local part and the full domain.
func maskEmail(text string) string {
	at := strings.LastIndex(text, "@")
	if at <= 0 {
		return maskGeneric(text)
	}
	local := []rune(text[:at])
	return string(local[0]) + strings.Repeat("*", len(local)-1) + text[at:]
}

// maskGeneric reveals only the first and last character.
func maskGeneric(text string) string {
	runes := []rune(text)
	if len(runes) <= 2 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1])
}
