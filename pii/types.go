package pii

import (
	"context"
)

// Type is the closed set of PII categories the pipeline can detect.
type Type string

const (
	TypeCreditCard      Type = "credit_card"
	TypeSSN             Type = "ssn"
	TypeEmail           Type = "email"
	TypePhone           Type = "phone"
	TypeAddress         Type = "address"
	TypePersonName      Type = "person_name"
	TypeDateOfBirth     Type = "date_of_birth"
	TypeDriversLicense  Type = "drivers_license"
	TypePassport        Type = "passport"
	TypeBankAccount     Type = "bank_account"
	TypeRoutingNumber   Type = "routing_number"
	TypeIBAN            Type = "iban"
	TypeSwiftCode       Type = "swift_code"
	TypeIPAddress       Type = "ip_address"
	TypeMACAddress      Type = "mac_address"
	TypeVehicleVIN      Type = "vehicle_vin"
	TypeLicensePlate    Type = "license_plate"
	TypeMedicalRecord   Type = "medical_record"
	TypeHealthInsurance Type = "health_insurance"
	TypePatientID       Type = "patient_id"
	TypeMedicalInfo     Type = "medical_info"
	TypeInsurancePolicy Type = "insurance_policy"
	TypeTaxID           Type = "tax_id"
	TypeEIN             Type = "ein"
	TypeUsername        Type = "username"
	TypePassword        Type = "password"
	TypeAPIKey          Type = "api_key"
	TypeZipCode         Type = "zip_code"
	TypeNationalID      Type = "national_id"
	TypeDocumentID      Type = "document_id"
)

// Source identifies which detection layer produced a Detection.
type Source string

const (
	SourcePattern     Source = "pattern"
	SourceVision      Source = "vision"
	SourceLLM         Source = "llm"
	SourceSpecialized Source = "specialized"
)

// BoundingBox is a pixel-space rectangle in document coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Intersects reports whether two boxes share any non-zero area.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.X < o.X+o.Width && o.X < b.X+b.Width &&
		b.Y < o.Y+o.Height && o.Y < b.Y+b.Height
}

// Detection is a single PII finding. Detections are immutable value objects;
// identity for deduplication is the (Type, Text) pair.
type Detection struct {
	Type        Type        `json:"type"`
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Line        int         `json:"line"`
	Source      Source      `json:"source"`
	Verified    bool        `json:"verified"`
}

// Key returns the deduplication identity of the detection.
func (d Detection) Key() string {
	return string(d.Type) + "\x00" + d.Text
}

// Clamp01 clamps a confidence value to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// OCRLine is one recognized text line with its bounding box.
type OCRLine struct {
	Text string      `json:"text"`
	Box  BoundingBox `json:"bbox"`
}

// OCRResult is the output of the OCR collaborator.
type OCRResult struct {
	Text  string    `json:"text"`
	Lines []OCRLine `json:"lines"`
}

// RegionKind is the coarse label assigned to a vision region.
type RegionKind string

const (
	RegionText     RegionKind = "text_region"
	RegionDocument RegionKind = "document"
	RegionFace     RegionKind = "face"
)

// VisionRegion is one region reported by the vision collaborator.
type VisionRegion struct {
	Kind       RegionKind  `json:"type"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"boundingBox"`
}

// OCREngine is the OCR collaborator contract. Failure is treated by the
// orchestrator as empty text rather than a fatal error.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (*OCRResult, error)
}

// VisionEngine is the optional vision collaborator contract.
type VisionEngine interface {
	DetectRegions(ctx context.Context, image []byte) ([]VisionRegion, error)
}
