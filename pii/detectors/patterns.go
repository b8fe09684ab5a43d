package detectors

import (
	"regexp"

	"github.com/hannes/docshield/pii"
)

// patternSet is the ordered regex table for one PII type. Order matters:
// patterns are evaluated in sequence and the engine dedupes per line, so the
// more specific pattern must come first.
type patternSet struct {
	Type     pii.Type
	Patterns []*regexp.Regexp
}

// patternTable holds every compiled pattern the engine evaluates. Kept as a
// slice rather than a map so iteration order is deterministic.
var patternTable = []patternSet{
	{pii.TypeCreditCard, compile(
		`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`,
		`\b3[47]\d{2}[\s-]?\d{6}[\s-]?\d{5}\b`,
	)},
	{pii.TypeSSN, compile(
		`\b\d{3}-\d{2}-\d{4}\b`,
		`(?i)\bssn[\s#:]*\d{9}\b`,
	)},
	{pii.TypeEmail, compile(
		`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
	)},
	{pii.TypePhone, compile(
		`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}\b`,
		`\+\d{1,3}[\s-]?\d{2,4}[\s-]?\d{3,4}[\s-]?\d{3,4}\b`,
	)},
	{pii.TypeDateOfBirth, compile(
		`\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2}\b`,
		`(?i)\b(?:dob|born|birth)[\s:]*(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-]\d{2,4}\b`,
	)},
	{pii.TypeAddress, compile(
		`\b\d{1,5}\s+[A-Za-z][A-Za-z. ]+\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct|Place|Pl)\.?\b`,
	)},
	{pii.TypeZipCode, compile(
		`\b\d{5}-\d{4}\b`,
		`(?i)\b(?:zip|postal)[\s:]*\d{5}\b`,
	)},
	{pii.TypeIPAddress, compile(
		`\b(?:\d{1,3}\.){3}\d{1,3}\b`,
	)},
	{pii.TypeMACAddress, compile(
		`\b(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}\b`,
	)},
	{pii.TypeVehicleVIN, compile(
		`\b[A-HJ-NPR-Z0-9]{8}[0-9X][A-HJ-NPR-Z0-9]{8}\b`,
	)},
	{pii.TypeLicensePlate, compile(
		`\b[A-Z]{3}[-\s]?\d{4}\b`,
	)},
	{pii.TypeDriversLicense, compile(
		`(?i)\b(?:dl|driver'?s?\s+license|license)[\s#:]*[A-Z]\d{7,9}\b`,
	)},
	{pii.TypePassport, compile(
		`(?i)\bpassport[\s#:]*[A-Z]{1,2}\d{6,8}\b`,
	)},
	{pii.TypeBankAccount, compile(
		`(?i)\b(?:account|acct)[\s#:]*\d{8,12}\b`,
	)},
	{pii.TypeRoutingNumber, compile(
		`(?i)\b(?:routing|aba)[\s#:]*\d{9}\b`,
	)},
	{pii.TypeIBAN, compile(
		`\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}(?:\s?[A-Z0-9]{1,4})?\b`,
	)},
	{pii.TypeSwiftCode, compile(
		`(?i)\b(?:swift|bic)[\s#:]*[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`,
	)},
	{pii.TypeTaxID, compile(
		`(?i)\b(?:tin|tax\s*id)[\s#:]*\d{2}-?\d{7}\b`,
		`\b\d{2}-\d{7}\b`,
	)},
	{pii.TypeEIN, compile(
		`(?i)\bein[\s#:]*\d{2}-\d{7}\b`,
	)},
	{pii.TypeUsername, compile(
		`(?i)\b(?:username|login|user)[\s:=]+[A-Za-z0-9_.-]{3,20}\b`,
	)},
	{pii.TypePassword, compile(
		`(?i)\b(?:password|passwd|pwd)[\s:=]+\S{6,}`,
	)},
	{pii.TypeAPIKey, compile(
		`\b(?:sk|pk)[-_](?:live|test)[-_][A-Za-z0-9]{16,}\b`,
		`\bAKIA[0-9A-Z]{16}\b`,
	)},
	{pii.TypeNationalID, compile(
		`(?i)\bnational\s*id[\s#:]*[A-Z0-9]{6,12}\b`,
	)},
	{pii.TypeDocumentID, compile(
		`(?i)\b(?:document|doc|case)[\s#:]+[A-Z0-9]{6,12}\b`,
	)},
}

// FirstMatch classifies free text against the pattern table and returns the
// first matching type with its matched text. Used by the vision region
// classifier, which inherits the region's own confidence instead of scoring.
func FirstMatch(text string) (pii.Type, string, bool) {
	for _, set := range patternTable {
		for _, re := range set.Patterns {
			if m := re.FindString(text); m != "" {
				return set.Type, m, true
			}
		}
	}
	return "", "", false
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}
