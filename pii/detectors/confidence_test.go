package detectors

import (
	"testing"

	"github.com/hannes/docshield/pii"
)

func TestLuhnValid(t *testing.T) {
	valid := []string{
		"4111111111111111",
		"5500005555555559",
		"340000000000009",
		"6011000000000004",
	}
	for _, card := range valid {
		if !luhnValid(card) {
			t.Errorf("expected %s to pass Luhn", card)
		}
	}

	invalid := []string{
		"4111111111111112",
		"1234567812345678",
		"0000000000000001",
		"411111111111",    // too short
		"41111111111111111111", // too long
	}
	for _, card := range invalid {
		if luhnValid(card) {
			t.Errorf("expected %s to fail Luhn", card)
		}
	}
}

func TestCreditCardConfidence(t *testing.T) {
	if got := scoreConfidence(pii.TypeCreditCard, "4111-1111-1111-1111", ""); got != 0.95 {
		t.Errorf("valid Luhn card confidence = %v, want 0.95", got)
	}
	if got := scoreConfidence(pii.TypeCreditCard, "4111-1111-1111-1112", ""); got != 0.75 {
		t.Errorf("invalid Luhn card confidence = %v, want 0.75", got)
	}
}

func TestConfidenceRules(t *testing.T) {
	tests := []struct {
		typ   pii.Type
		match string
		line  string
		want  float64
	}{
		{pii.TypePhone, "(555) 123-4567", "", 0.90},
		{pii.TypePhone, "555-1234", "", 0.60},
		{pii.TypeEmail, "jane.doe@example.com", "", 0.85},
		{pii.TypeEmail, "bad@@example..com", "", 0.60},
		{pii.TypeSSN, "123-45-6789", "", 0.90},
		{pii.TypeSSN, "123-45-678", "", 0.60},
		{pii.TypeAddress, "123 Main Street", "Home address: 123 Main Street", 0.80},
		{pii.TypeAddress, "123 Main Street", "123 Main Street", 0.65},
		{pii.TypeIPAddress, "192.168.1.10", "", 0.90},
		{pii.TypeIPAddress, "999.999.999.999", "", 0.65},
		{pii.TypeMACAddress, "00:1A:2B:3C:4D:5E", "", 0.90},
		{pii.TypeVehicleVIN, "1HGCM82633A004352", "", 0.90},
		{pii.TypeTaxID, "12-3456789", "", 0.90},
		{pii.TypeZipCode, "94105-0001", "", 0.70}, // default fallback
	}
	for _, tt := range tests {
		got := scoreConfidence(tt.typ, tt.match, tt.line)
		if got != tt.want {
			t.Errorf("scoreConfidence(%s, %q) = %v, want %v", tt.typ, tt.match, got, tt.want)
		}
	}
}

func TestConfidenceAlwaysClamped(t *testing.T) {
	samples := []struct {
		typ   pii.Type
		match string
	}{
		{pii.TypeCreditCard, "4111111111111111"},
		{pii.TypeCreditCard, "1234"},
		{pii.TypePhone, "1"},
		{pii.TypeEmail, "x"},
		{pii.TypeDocumentID, "AB123456"},
	}
	for _, s := range samples {
		got := scoreConfidence(s.typ, s.match, "")
		if got < 0.6 || got > 0.95 {
			t.Errorf("scoreConfidence(%s, %q) = %v outside [0.6, 0.95]", s.typ, s.match, got)
		}
	}
}
