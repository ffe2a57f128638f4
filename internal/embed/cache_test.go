package embed

import (
	"context"
	"testing"
)

// countingProvider returns a fixed vector per text and counts remote calls.
type countingProvider struct {
	calls int
}

func (p *countingProvider) Model() string { return "test-model" }

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *countingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.calls += len(texts)
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t)), 1, 0}
	}
	return vecs, nil
}

func TestCacheMemoizes(t *testing.T) {
	inner := &countingProvider{}
	cache, err := NewCache(inner, t.TempDir())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	texts := []string{"alpha", "beta", "gamma"}

	first, err := cache.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 remote calls, got %d", inner.calls)
	}

	second, err := cache.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch (cached): %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected no further remote calls, got %d", inner.calls)
	}
	for i := range first {
		if len(first[i]) != len(second[i]) {
			t.Fatalf("text %d: vector length changed across cache hit", i)
		}
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("text %d: cached vector differs at %d", i, j)
			}
		}
	}
}

func TestCachePartialHit(t *testing.T) {
	inner := &countingProvider{}
	cache, err := NewCache(inner, t.TempDir())
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if _, err := cache.EmbedBatch(ctx, []string{"alpha"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}

	vecs, err := cache.EmbedBatch(ctx, []string{"alpha", "delta"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if inner.calls != 2 { // alpha once, delta once
		t.Fatalf("expected 2 remote calls total, got %d", inner.calls)
	}
	if len(vecs) != 2 || vecs[0] == nil || vecs[1] == nil {
		t.Fatalf("unexpected result: %v", vecs)
	}
}
