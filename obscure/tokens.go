package obscure

import (
	"fmt"
	"strings"
	"sync"

	"github.com/hannes/docshield/pii"
)

// TokenStore persists the token map for the tokenization technique. Token
// IDs must be monotonic per store so concurrent obscuring calls never mint
// duplicate tokens. Entries live until Clear; there is no automatic expiry.
type TokenStore interface {
	// Tokenize mints the next token for the detection type and stores the
	// original text under it.
	Tokenize(prefix string, typ pii.Type, original string) (string, error)
	// Resolve returns the original text for a token, if it exists.
	Resolve(token string) (string, bool, error)
	Clear() error
	Count() (int, error)
	Close() error
}

func formatToken(prefix string, typ pii.Type, id int64) string {
	return fmt.Sprintf("%s_%s_%d", prefix, strings.ToUpper(string(typ)), id)
}

// MemoryTokenStore is the default in-process token map. A single mutex
// guards both the map and the counter.
type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]string
	counter int64
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{entries: make(map[string]string)}
}

func (s *MemoryTokenStore) Tokenize(prefix string, typ pii.Type, original string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	token := formatToken(prefix, typ, s.counter)
	s.entries[token] = original
	return token, nil
}

func (s *MemoryTokenStore) Resolve(token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, ok := s.entries[token]
	return original, ok, nil
}

// Clear drops all mappings. The counter keeps counting so cleared tokens are
// never reissued within a session.
func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
	return nil
}

func (s *MemoryTokenStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *MemoryTokenStore) Close() error { return nil }
