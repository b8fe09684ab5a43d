package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hannes/docshield/pii"
	"github.com/hannes/docshield/providers"
)

const detectionSystemPrompt = `You are a PII detection engine for scanned documents. Find every piece of personally identifiable information in the text.

Respond with ONLY a JSON array, no prose. Each element must have:
- "type": one of credit_card, ssn, email, phone, address, person_name, date_of_birth, drivers_license, passport, bank_account, routing_number, iban, swift_code, ip_address, mac_address, vehicle_vin, license_plate, medical_record, health_insurance, patient_id, medical_info, insurance_policy, tax_id, ein, username, password, api_key, zip_code, national_id, document_id
- "text": the exact PII text as it appears in the document
- "confidence": a number between 0 and 1

Return [] if no PII is present.`

const verificationSystemPrompt = `You are a PII verification engine. You receive document text and a list of candidate PII detections. Confirm or reject each candidate against the document, and add any PII the candidates missed.

Respond with ONLY a JSON array in the same shape as the candidates: objects with "type", "text" and "confidence". Include only candidates you confirm plus any additions. Return [] if nothing is confirmed.`

func detectionPrompt(text string) providers.Prompt {
	return providers.Prompt{System: detectionSystemPrompt, Text: text}
}

func verificationPrompt(text string, existing []pii.Detection) providers.Prompt {
	type candidate struct {
		Type       string  `json:"type"`
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	cands := make([]candidate, 0, len(existing))
	for _, d := range existing {
		cands = append(cands, candidate{Type: string(d.Type), Text: d.Text, Confidence: d.Confidence})
	}
	encoded, err := json.Marshal(cands)
	if err != nil {
		encoded = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("Document text:\n")
	b.WriteString(text)
	b.WriteString("\n\nCandidate detections:\n")
	b.Write(encoded)
	return providers.Prompt{System: verificationSystemPrompt, Text: b.String()}
}

// describeProviders renders the provider lineup for startup logging.
func describeProviders(list []providers.Provider) string {
	parts := make([]string, 0, len(list))
	for _, p := range list {
		parts = append(parts, fmt.Sprintf("%s(priority=%d)", p.Name(), p.Priority()))
	}
	return strings.Join(parts, ", ")
}
