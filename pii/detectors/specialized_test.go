package detectors

import (
	"context"
	"testing"

	"github.com/hannes/docshield/pii"
)

func TestSpecializedPatientIDContext(t *testing.T) {
	engine := NewSpecializedEngine(0.5)

	withCtx := ocrFromLines(
		"Mercy Hospital admission record",
		"Patient ID: P12345",
	)
	dets, err := engine.Detect(context.Background(), withCtx)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	var patient *pii.Detection
	for i := range dets {
		if dets[i].Type == pii.TypePatientID {
			patient = &dets[i]
		}
	}
	if patient == nil {
		t.Fatal("expected patient_id detection with medical context")
	}
	if patient.Confidence != 0.90 {
		t.Errorf("patient_id with medical context confidence = %v, want 0.90", patient.Confidence)
	}

	withoutCtx := ocrFromLines("Patient ID: P12345")
	dets, err = engine.Detect(context.Background(), withoutCtx)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, d := range dets {
		if d.Type == pii.TypePatientID && d.Confidence != 0.90 {
			// The label itself carries the vocabulary, so the rule still
			// fires high when "patient" appears inline.
			t.Errorf("patient_id confidence = %v, want 0.90", d.Confidence)
		}
	}
}

func TestSpecializedBankAccountRequiresContext(t *testing.T) {
	engine := NewSpecializedEngine(0.5)

	dets, err := engine.Detect(context.Background(), ocrFromLines("reference 123456789012"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	for _, d := range dets {
		if d.Type == pii.TypeBankAccount {
			t.Errorf("bare number without bank vocabulary should not fire: %+v", d)
		}
	}

	dets, err = engine.Detect(context.Background(), ocrFromLines("Bank account number", "123456789012"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	var found bool
	for _, d := range dets {
		if d.Type == pii.TypeBankAccount && d.Text == "123456789012" {
			found = true
			if d.Confidence != 0.85 {
				t.Errorf("bank_account confidence = %v, want 0.85", d.Confidence)
			}
		}
	}
	if !found {
		t.Error("expected bank_account detection with bank vocabulary on adjacent line")
	}
}

func TestSpecializedPersonNameCapture(t *testing.T) {
	engine := NewSpecializedEngine(0.5)
	dets, err := engine.Detect(context.Background(), ocrFromLines("Name: Jane Smith"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	var found bool
	for _, d := range dets {
		if d.Type == pii.TypePersonName {
			found = true
			if d.Text != "Jane Smith" {
				t.Errorf("person_name text = %q, want %q", d.Text, "Jane Smith")
			}
		}
	}
	if !found {
		t.Error("expected person_name detection from labeled name")
	}
}

func TestSpecializedQuietOnFinancialLine(t *testing.T) {
	engine := NewSpecializedEngine(0.5)
	dets, err := engine.Detect(context.Background(), ocrFromLines("Card: 4111-1111-1111-1111, SSN 123-45-6789"))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("specialized layer should stay quiet on this line, got %+v", dets)
	}
}
