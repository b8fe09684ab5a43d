package obscure

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// encrypt XORs the text with the configured key and base64-encodes the
// result. This is obfuscation keyed to the session, not cryptographic
// protection; the reversibility contract is what matters here.
func (e *Engine) encrypt(text string) string {
	data := []byte(text)
	for i := range data {
		data[i] ^= e.key[i%len(e.key)]
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Decrypt reverses encrypt. Ciphertexts that do not decode cleanly are
// reported as not found rather than returning garbage.
func (e *Engine) Decrypt(ciphertext string) (string, error) {
	if len(e.key) == 0 {
		return "", fmt.Errorf("decryption requires a configured key")
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrNotFound
	}
	for i := range data {
		data[i] ^= e.key[i%len(e.key)]
	}
	return string(data), nil
}

// hashText produces a one-way digest with fixed-width hex output.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
