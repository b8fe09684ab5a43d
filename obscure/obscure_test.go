package obscure

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hannes/docshield/pii"
)

func detection(typ pii.Type, text string) pii.Detection {
	return pii.Detection{Type: typ, Text: text, Confidence: 0.9}
}

func TestRedaction(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeEmail, "jane@example.com"), TechniqueRedaction)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if r.ObscuredText != strings.Repeat("█", len("jane@example.com")) {
		t.Errorf("redacted text = %q", r.ObscuredText)
	}
	if r.Reversible {
		t.Error("redaction must not be reversible")
	}
}

func TestMaskCreditCard(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeCreditCard, "4111111111111111"), TechniqueMasking)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if r.ObscuredText != "4111********1111" {
		t.Errorf("masked card = %q, want 4111********1111", r.ObscuredText)
	}
}

func TestMaskCreditCardPreservesSeparators(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeCreditCard, "4111-1111-1111-1111"), TechniqueMasking)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if r.ObscuredText != "4111-****-****-1111" {
		t.Errorf("masked card = %q, want 4111-****-****-1111", r.ObscuredText)
	}
}

func TestMaskEmail(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeEmail, "jane@example.com"), TechniqueMasking)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if r.ObscuredText != "j***@example.com" {
		t.Errorf("masked email = %q, want j***@example.com", r.ObscuredText)
	}
}

func TestMaskPhone(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypePhone, "555-123-4567"), TechniqueMasking)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	// Area code plus last two digits stay visible.
	if r.ObscuredText != "555-***-**67" {
		t.Errorf("masked phone = %q, want 555-***-**67", r.ObscuredText)
	}
}

func TestMaskGenericFallback(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeUsername, "jdoe42"), TechniqueMasking)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if r.ObscuredText != "j****2" {
		t.Errorf("masked generic = %q, want j****2", r.ObscuredText)
	}
}

func TestAnonymizationStableWithinSession(t *testing.T) {
	e := NewEngine("", "PII", nil)
	d := detection(pii.TypePersonName, "John Smith")

	first, err := e.Obscure(d, TechniqueAnonymization)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	second, _ := e.Obscure(d, TechniqueAnonymization)
	if first.ObscuredText != second.ObscuredText {
		t.Error("anonymization must be stable within one session")
	}
	if first.ObscuredText == "John Smith" {
		t.Error("anonymization must not return the original")
	}
	if first.Reversible {
		t.Error("anonymization must not be reversible")
	}
}

func TestEncryptionRoundTrip(t *testing.T) {
	e := NewEngine("secret-key", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeSSN, "123-45-6789"), TechniqueEncryption)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if !r.Reversible {
		t.Error("encryption must be reversible")
	}
	if r.ObscuredText == "123-45-6789" {
		t.Error("ciphertext must differ from plaintext")
	}

	plain, err := e.Decrypt(r.ObscuredText)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plain != "123-45-6789" {
		t.Errorf("decrypted = %q, want original", plain)
	}
}

func TestEncryptionRequiresKey(t *testing.T) {
	e := NewEngine("", "PII", nil)
	if _, err := e.Obscure(detection(pii.TypeSSN, "123-45-6789"), TechniqueEncryption); err == nil {
		t.Error("encryption without a key must fail")
	}
}

func TestHashingFixedWidth(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeEmail, "jane@example.com"), TechniqueHashing)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if len(r.ObscuredText) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(r.ObscuredText))
	}
	same, _ := e.Obscure(detection(pii.TypeEmail, "jane@example.com"), TechniqueHashing)
	if r.ObscuredText != same.ObscuredText {
		t.Error("hashing must be deterministic")
	}
}

func TestTokenizationRoundTrip(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, err := e.Obscure(detection(pii.TypeEmail, "jane@example.com"), TechniqueTokenization)
	if err != nil {
		t.Fatalf("Obscure failed: %v", err)
	}
	if !strings.HasPrefix(r.ObscuredText, "PII_EMAIL_") {
		t.Errorf("token = %q, want PII_EMAIL_N", r.ObscuredText)
	}
	if !r.Reversible {
		t.Error("tokenization must be reversible")
	}

	original, err := e.Detokenize(r.ObscuredText)
	if err != nil {
		t.Fatalf("Detokenize failed: %v", err)
	}
	if original != "jane@example.com" {
		t.Errorf("detokenized = %q, want original", original)
	}
}

func TestTokensAreMonotonic(t *testing.T) {
	e := NewEngine("", "PII", nil)
	first, _ := e.Obscure(detection(pii.TypeEmail, "a@b.com"), TechniqueTokenization)
	second, _ := e.Obscure(detection(pii.TypeEmail, "c@d.com"), TechniqueTokenization)
	if first.ObscuredText != "PII_EMAIL_1" || second.ObscuredText != "PII_EMAIL_2" {
		t.Errorf("tokens = %q, %q; want PII_EMAIL_1, PII_EMAIL_2", first.ObscuredText, second.ObscuredText)
	}
}

func TestDetokenizeUnknownToken(t *testing.T) {
	e := NewEngine("", "PII", nil)
	if _, err := e.Detokenize("PII_EMAIL_999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDecryptGarbageNotFound(t *testing.T) {
	e := NewEngine("key", "PII", nil)
	if _, err := e.Decrypt("not base64 at all!!!"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClearTokens(t *testing.T) {
	e := NewEngine("", "PII", nil)
	r, _ := e.Obscure(detection(pii.TypeSSN, "123-45-6789"), TechniqueTokenization)

	count, err := e.TokenCount()
	if err != nil || count != 1 {
		t.Fatalf("count = (%d, %v), want 1", count, err)
	}
	if err := e.ClearTokens(); err != nil {
		t.Fatalf("ClearTokens failed: %v", err)
	}
	count, _ = e.TokenCount()
	if count != 0 {
		t.Errorf("count after clear = %d, want 0", count)
	}
	if _, err := e.Detokenize(r.ObscuredText); !errors.Is(err, ErrNotFound) {
		t.Error("cleared token must not resolve")
	}
}

func TestConcurrentTokenizationNoDuplicates(t *testing.T) {
	e := NewEngine("", "PII", nil)
	const n = 50

	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.Obscure(detection(pii.TypeEmail, fmt.Sprintf("user%d@example.com", i)), TechniqueTokenization)
			if err != nil {
				t.Errorf("Obscure failed: %v", err)
				return
			}
			tokens[i] = r.ObscuredText
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, token := range tokens {
		if seen[token] {
			t.Errorf("duplicate token %q under concurrency", token)
		}
		seen[token] = true
	}
}

func TestObscureBatch(t *testing.T) {
	e := NewEngine("", "PII", nil)
	dets := []pii.Detection{
		detection(pii.TypeEmail, "a@b.com"),
		detection(pii.TypeSSN, "123-45-6789"),
	}
	results, err := e.ObscureBatch(dets, TechniqueRedaction)
	if err != nil {
		t.Fatalf("ObscureBatch failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, r := range results {
		if r.OriginalText != dets[i].Text {
			t.Errorf("result %d original = %q", i, r.OriginalText)
		}
	}
}

func TestUnknownTechnique(t *testing.T) {
	e := NewEngine("", "PII", nil)
	if _, err := e.Obscure(detection(pii.TypeEmail, "a@b.com"), Technique("pixelate")); err == nil {
		t.Error("unknown technique must fail")
	}
}
