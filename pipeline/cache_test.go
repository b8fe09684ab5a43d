package pipeline

import (
	"testing"
	"time"

	"github.com/hannes/docshield/pii"
)

func sampleResult() *pii.DetectionResult {
	return &pii.DetectionResult{
		Success: true,
		Detections: []pii.Detection{
			{Type: pii.TypeEmail, Text: "a@b.com", Confidence: 0.85, Source: pii.SourcePattern},
		},
		Metadata: pii.ResultMetadata{RunID: "run-1", LineCount: 1, CharCount: 7},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewResultCache(5 * time.Minute)
	key := HashContent([]byte("document"))

	if _, ok := cache.Get(key); ok {
		t.Fatal("empty cache should miss")
	}

	cache.Put(key, sampleResult())
	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Metadata.RunID != "run-1" || len(got.Detections) != 1 {
		t.Errorf("unexpected cached result %+v", got)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewResultCache(5 * time.Minute)
	key := uint64(42)
	cache.Put(key, sampleResult())

	first, _ := cache.Get(key)
	first.Detections[0].Text = "mutated"

	second, _ := cache.Get(key)
	if second.Detections[0].Text != "a@b.com" {
		t.Error("mutating a returned result must not affect the cache")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewResultCache(5 * time.Minute)
	current := time.Now()
	cache.now = func() time.Time { return current }

	key := uint64(7)
	cache.Put(key, sampleResult())

	current = current.Add(4 * time.Minute)
	if _, ok := cache.Get(key); !ok {
		t.Error("entry should still be fresh before TTL")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := cache.Get(key); ok {
		t.Error("entry should expire after TTL")
	}
	if cache.Size() != 0 {
		t.Error("expired entry should be evicted on read")
	}
}

func TestCacheClear(t *testing.T) {
	cache := NewResultCache(5 * time.Minute)
	cache.Put(1, sampleResult())
	cache.Put(2, sampleResult())
	if cache.Size() != 2 {
		t.Fatalf("size = %d, want 2", cache.Size())
	}
	cache.Clear()
	if cache.Size() != 0 {
		t.Error("clear should drop all entries")
	}
}

func TestHashContentDeterministic(t *testing.T) {
	a := HashContent([]byte("same input"))
	b := HashContent([]byte("same input"))
	c := HashContent([]byte("different"))
	if a != b {
		t.Error("identical content must hash identically")
	}
	if a == c {
		t.Error("different content should hash differently")
	}
}
