package search

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"meetindex/internal/index"
	"meetindex/internal/queryparse"
	"meetindex/internal/store"
	"meetindex/internal/vecindex"
)

// queryProvider returns one fixed vector for every query, so tests steer
// the ranking by choosing which stored vector the query aligns with.
type queryProvider struct {
	vec   []float32
	calls atomic.Int64
}

func (p *queryProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	out := make([]float32, len(p.vec))
	copy(out, p.vec)
	return out, nil
}

func (p *queryProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := p.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *queryProvider) Model() string { return "test-model" }

func basis(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// newSnapshot builds a loaded index pair in memory-plus-tempdir form: one
// vector and one metadata record per entry, ids assigned sequentially.
func newSnapshot(t *testing.T, vectors [][]float32, timestamps []time.Time) *index.Loaded {
	t.Helper()
	ix := vecindex.New()
	var records []store.Record
	for i, vec := range vectors {
		id, err := ix.Add(vec)
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, store.Record{
			ID:         int64(id),
			SourcePath: fmt.Sprintf("transcripts/meeting-%d.txt", i),
			ChunkIndex: 0,
			Kind:       "transcript",
			Text:       fmt.Sprintf("chunk text %d", i),
			DocTS:      timestamps[i].Unix(),
		})
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InsertRecords(records); err != nil {
		t.Fatal(err)
	}
	return &index.Loaded{Index: ix, Store: st}
}

var testNow = time.Date(2024, time.February, 15, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, provider *queryProvider, snap *index.Loaded) *Service {
	t.Helper()
	parser, err := queryparse.NewWithClock(func() time.Time { return testNow })
	if err != nil {
		t.Fatal(err)
	}
	return New(provider, parser, snap)
}

func TestSearchRanksAndResolvesMetadata(t *testing.T) {
	ts := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	snap := newSnapshot(t,
		[][]float32{basis(4, 0), basis(4, 1), basis(4, 2)},
		[]time.Time{ts, ts, ts})
	provider := &queryProvider{vec: basis(4, 1)}
	svc := newTestService(t, provider, snap)

	resp, err := svc.Search(context.Background(), "deployment schedule", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	top := resp.Results[0]
	if top.ID != 1 {
		t.Fatalf("top id = %d, want 1", top.ID)
	}
	if top.Text != "chunk text 1" || top.SourcePath != "transcripts/meeting-1.txt" {
		t.Fatalf("metadata not resolved: %+v", top)
	}
	if top.Score < 0.999 {
		t.Fatalf("aligned vector should score ~1, got %f", top.Score)
	}
	if resp.DateFiltered {
		t.Fatal("no date in query, nothing should be filtered")
	}
}

func TestSearchAppliesDateFilter(t *testing.T) {
	inRange := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)
	outOfRange := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	// The query vector aligns with the out-of-range chunk, so only the
	// date filter can promote the in-range one.
	snap := newSnapshot(t,
		[][]float32{basis(4, 0), basis(4, 1)},
		[]time.Time{outOfRange, inRange})
	provider := &queryProvider{vec: basis(4, 0)}
	svc := newTestService(t, provider, snap)

	resp, err := svc.Search(context.Background(), "budget review from March 1 to March 5", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.DateFiltered {
		t.Fatal("expected the date filter to apply")
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	if resp.Results[0].ID != 1 {
		t.Fatalf("surviving id = %d, want the in-range chunk", resp.Results[0].ID)
	}
}

func TestSearchDateFilterFallsBack(t *testing.T) {
	old := time.Date(2020, 6, 1, 9, 0, 0, 0, time.UTC)
	snap := newSnapshot(t,
		[][]float32{basis(4, 0), basis(4, 1)},
		[]time.Time{old, old})
	provider := &queryProvider{vec: basis(4, 0)}
	svc := newTestService(t, provider, snap)

	resp, err := svc.Search(context.Background(), "budget review from March 1 to March 5", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.DateFiltered {
		t.Fatal("filter emptied the results and should have been abandoned")
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want the unfiltered ranking", len(resp.Results))
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	snap := newSnapshot(t, nil, nil)
	provider := &queryProvider{vec: basis(4, 0)}
	svc := newTestService(t, provider, snap)

	resp, err := svc.Search(context.Background(), "anything at all", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("got %d results from an empty index", len(resp.Results))
	}
	if provider.calls.Load() != 0 {
		t.Fatal("empty index should not embed the query")
	}
}

func TestSearchDefaultK(t *testing.T) {
	ts := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	var vectors [][]float32
	var times []time.Time
	for i := 0; i < 12; i++ {
		vectors = append(vectors, basis(16, i))
		times = append(times, ts)
	}
	snap := newSnapshot(t, vectors, times)
	provider := &queryProvider{vec: basis(16, 0)}
	svc := newTestService(t, provider, snap)

	resp, err := svc.Search(context.Background(), "anything", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != DefaultK {
		t.Fatalf("got %d results, want DefaultK=%d", len(resp.Results), DefaultK)
	}
}

func TestSwapGoesLive(t *testing.T) {
	ts := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	first := newSnapshot(t, [][]float32{basis(4, 0)}, []time.Time{ts})
	second := newSnapshot(t, [][]float32{basis(4, 0), basis(4, 1)}, []time.Time{ts, ts})
	provider := &queryProvider{vec: basis(4, 0)}
	svc := newTestService(t, provider, first)

	resp, err := svc.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("first snapshot: %d results, want 1", len(resp.Results))
	}

	if prev := svc.Swap(second); prev != first {
		t.Fatal("Swap should hand back the previous snapshot")
	}
	resp, err = svc.Search(context.Background(), "anything", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("second snapshot: %d results, want 2", len(resp.Results))
	}
}
