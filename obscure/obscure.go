package obscure

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/hannes/docshield/pii"
)

// Technique selects how a detection's text is obscured.
type Technique string

const (
	TechniqueRedaction     Technique = "redaction"
	TechniqueMasking       Technique = "masking"
	TechniqueAnonymization Technique = "anonymization"
	TechniqueEncryption    Technique = "encryption"
	TechniqueHashing       Technique = "hashing"
	TechniqueTokenization  Technique = "tokenization"
)

// ErrNotFound is returned by Detokenize and Decrypt for tokens or
// ciphertexts this engine never produced.
var ErrNotFound = errors.New("original text not found")

// Result is the outcome of obscuring one detection.
type Result struct {
	OriginalText string            `json:"originalText"`
	ObscuredText string            `json:"obscuredText"`
	Technique    Technique         `json:"technique"`
	Reversible   bool              `json:"reversible"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

const redactionGlyph = "█"

// Engine converts detections into obscured representations. Encryption and
// tokenization are the only reversible techniques; the token store is the
// only shared mutable state and carries its own locking.
type Engine struct {
	key    []byte
	prefix string
	tokens TokenStore
	salt   uint32
}

// NewEngine builds an obscuring engine. An empty encryption key disables the
// encryption technique; a nil store falls back to the in-memory one.
func NewEngine(encryptionKey, tokenPrefix string, store TokenStore) *Engine {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if tokenPrefix == "" {
		tokenPrefix = "PII"
	}
	return &Engine{
		key:    []byte(encryptionKey),
		prefix: tokenPrefix,
		tokens: store,
		// Session-stable anonymization salt. Reseeding per process keeps
		// replacements untraceable across runs.
		salt: rand.New(rand.NewSource(time.Now().UnixNano())).Uint32(),
	}
}

// Obscure applies the technique to one detection.
func (e *Engine) Obscure(d pii.Detection, technique Technique) (Result, error) {
	if d.Text == "" {
		return Result{}, fmt.Errorf("empty detection text")
	}

	switch technique {
	case TechniqueRedaction:
		return Result{
			OriginalText: d.Text,
			ObscuredText: strings.Repeat(redactionGlyph, len([]rune(d.Text))),
			Technique:    technique,
		}, nil

	case TechniqueMasking:
		return Result{
			OriginalText: d.Text,
			ObscuredText: maskText(d.Type, d.Text),
			Technique:    technique,
		}, nil

	case TechniqueAnonymization:
		return Result{
			OriginalText: d.Text,
			ObscuredText: e.anonymize(d.Type, d.Text),
			Technique:    technique,
		}, nil

	case TechniqueEncryption:
		if len(e.key) == 0 {
			return Result{}, fmt.Errorf("encryption requires a configured key")
		}
		return Result{
			OriginalText: d.Text,
			ObscuredText: e.encrypt(d.Text),
			Technique:    technique,
			Reversible:   true,
		}, nil

	case TechniqueHashing:
		return Result{
			OriginalText: d.Text,
			ObscuredText: hashText(d.Text),
			Technique:    technique,
		}, nil

	case TechniqueTokenization:
		token, err := e.tokens.Tokenize(e.prefix, d.Type, d.Text)
		if err != nil {
			return Result{}, fmt.Errorf("tokenization failed: %w", err)
		}
		return Result{
			OriginalText: d.Text,
			ObscuredText: token,
			Technique:    technique,
			Reversible:   true,
			Metadata:     map[string]string{"token": token},
		}, nil

	default:
		return Result{}, fmt.Errorf("unknown technique %q", technique)
	}
}

// ObscureBatch is a pure map over Obscure. Entries that fail are returned as
// zero Results alongside the first error.
func (e *Engine) ObscureBatch(dets []pii.Detection, technique Technique) ([]Result, error) {
	out := make([]Result, len(dets))
	var firstErr error
	for i, d := range dets {
		r, err := e.Obscure(d, technique)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		out[i] = r
	}
	return out, firstErr
}

// Detokenize recovers the original text behind a token.
func (e *Engine) Detokenize(token string) (string, error) {
	original, ok, err := e.tokens.Resolve(token)
	if err != nil {
		return "", fmt.Errorf("token lookup failed: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	return original, nil
}

// ClearTokens drops every stored token mapping. There is no automatic
// expiry; this is the operator-facing reset for long-running processes.
func (e *Engine) ClearTokens() error {
	if err := e.tokens.Clear(); err != nil {
		return err
	}
	log.Printf("[ObscureEngine] Token map cleared")
	return nil
}

// TokenCount reports the number of live token mappings.
func (e *Engine) TokenCount() (int, error) {
	return e.tokens.Count()
}
