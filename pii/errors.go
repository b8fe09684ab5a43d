package pii

import "fmt"

// ErrorKind classifies pipeline failures. Only initialization and
// configuration errors are fatal; everything else is recorded on the
// DetectionResult and the run proceeds.
type ErrorKind string

const (
	ErrKindInit       ErrorKind = "initialization"
	ErrKindProcessing ErrorKind = "processing"
	ErrKindLLM        ErrorKind = "llm"
	ErrKindVision     ErrorKind = "vision"
	ErrKindOCR        ErrorKind = "ocr"
	ErrKindConfig     ErrorKind = "configuration"
	ErrKindValidation ErrorKind = "validation"
)

// LayerError is a recoverable, per-layer failure captured into a
// DetectionResult. It stores the message rather than the error value so
// results stay copyable and serializable.
type LayerError struct {
	Layer   string    `json:"layer"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e LayerError) Error() string {
	return fmt.Sprintf("%s layer (%s): %s", e.Layer, e.Kind, e.Message)
}

// NewLayerError builds a LayerError from an underlying error.
func NewLayerError(layer string, kind ErrorKind, err error) LayerError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return LayerError{Layer: layer, Kind: kind, Message: msg}
}
