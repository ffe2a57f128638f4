package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() []Record {
	return []Record{
		{ID: 0, SourcePath: "/corpus/recordings/standup.txt", ChunkIndex: 0, Kind: "transcript", Text: "chunk zero", CharStart: 0, CharEnd: 10, DocTS: 1700000000},
		{ID: 1, SourcePath: "/corpus/recordings/standup.txt", ChunkIndex: 1, Kind: "transcript", Text: "chunk one", CharStart: 8, CharEnd: 18, DocTS: 1700000000},
		{ID: 2, SourcePath: "/corpus/summaries/standup.txt", ChunkIndex: 0, Kind: "summary", Text: "summary chunk", CharStart: 0, CharEnd: 13, DocTS: 1700001000},
	}
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertRecords(sampleRecords()); err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Count = %d, want 3", n)
	}

	r, err := s.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if r.Text != "chunk one" || r.ChunkIndex != 1 || r.Kind != "transcript" {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestGetManyPreservesOrder(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertRecords(sampleRecords()); err != nil {
		t.Fatal(err)
	}

	records, err := s.GetMany([]int64{2, 0})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(records) != 2 || records[0].ID != 2 || records[1].ID != 0 {
		t.Fatalf("unexpected order: %+v", records)
	}
}

func TestGetManyMissingID(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertRecords(sampleRecords()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetMany([]int64{0, 99}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestListSources(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertRecords(sampleRecords()); err != nil {
		t.Fatal(err)
	}

	sources, err := s.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Chunks != 2 || sources[0].Kind != "transcript" {
		t.Fatalf("unexpected rollup: %+v", sources[0])
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetMeta("embedding_model", "nomic-embed-text"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetMeta("embedding_model", "text-embedding-3-small"); err != nil {
		t.Fatal(err)
	}

	v, err := s.GetMeta("embedding_model")
	if err != nil {
		t.Fatal(err)
	}
	if v != "text-embedding-3-small" {
		t.Fatalf("GetMeta = %q", v)
	}

	missing, err := s.GetMeta("nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != "" {
		t.Fatalf("GetMeta missing key = %q, want empty", missing)
	}
}
