package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadOrdersAndTags(t *testing.T) {
	dir := t.TempDir()
	tr := filepath.Join(dir, "recordings")
	su := filepath.Join(dir, "summaries")

	writeFile(t, filepath.Join(tr, "b_standup.txt"), "standup notes")
	writeFile(t, filepath.Join(tr, "a_planning.txt"), "planning notes")
	writeFile(t, filepath.Join(su, "nested", "a_planning.txt"), "planning summary")
	writeFile(t, filepath.Join(tr, "ignored.md"), "not a txt file")
	writeFile(t, filepath.Join(tr, "empty.txt"), "")

	docs, err := Load(tr, su)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(docs))
	}

	// Transcripts first, sorted by path; summaries after.
	if docs[0].Kind != KindTranscript || filepath.Base(docs[0].Path) != "a_planning.txt" {
		t.Errorf("docs[0] = %s (%s)", docs[0].Path, docs[0].Kind)
	}
	if docs[1].Kind != KindTranscript || filepath.Base(docs[1].Path) != "b_standup.txt" {
		t.Errorf("docs[1] = %s (%s)", docs[1].Path, docs[1].Kind)
	}
	if docs[2].Kind != KindSummary || docs[2].Text != "planning summary" {
		t.Errorf("docs[2] = %s (%s)", docs[2].Path, docs[2].Kind)
	}
	if docs[0].ModTime.IsZero() {
		t.Error("ModTime not populated")
	}
}

func TestLoadMissingDirs(t *testing.T) {
	docs, err := Load(filepath.Join(t.TempDir(), "nope"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}
