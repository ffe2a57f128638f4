package chunker

import (
	"errors"
	"strings"
	"testing"
)

func TestChunksOffsets(t *testing.T) {
	text := strings.Repeat("x", 2400)

	chunks, err := Chunks(text, 1000, 200)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantStarts := []int{0, 800, 1600}
	for i, c := range chunks {
		if c.CharStart != wantStarts[i] {
			t.Errorf("chunk %d: start = %d, want %d", i, c.CharStart, wantStarts[i])
		}
		if c.Index != i {
			t.Errorf("chunk %d: index = %d", i, c.Index)
		}
	}
	if last := chunks[2]; last.CharEnd != 2400 {
		t.Errorf("last chunk end = %d, want 2400", last.CharEnd)
	}
}

func TestChunksReconstruct(t *testing.T) {
	text := "The quarterly budget was reviewed on Tuesday. Alice presented the hiring plan and Bob raised concerns about the launch timeline for the new product."

	size, overlap := 40, 10
	chunks, err := Chunks(text, size, overlap)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}

	// Start offsets advance by exactly size-overlap, except possibly the last.
	for i := 1; i < len(chunks); i++ {
		if got := chunks[i].CharStart - chunks[i-1].CharStart; got != size-overlap {
			t.Errorf("chunk %d: advance = %d, want %d", i, got, size-overlap)
		}
	}

	// Concatenation with overlaps removed reconstructs the input.
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Text)
			continue
		}
		b.WriteString(c.Text[overlap:])
	}
	if b.String() != text {
		t.Errorf("reconstruction mismatch:\ngot  %q\nwant %q", b.String(), text)
	}
}

func TestChunksShortText(t *testing.T) {
	chunks, err := Chunks("short", 1000, 200)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "short" {
		t.Fatalf("unexpected chunks: %+v", chunks)
	}
}

func TestChunksEmptyText(t *testing.T) {
	chunks, err := Chunks("", 100, 10)
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestChunksDeterministic(t *testing.T) {
	text := strings.Repeat("meeting notes ", 500)
	a, _ := Chunks(text, 128, 32)
	b, _ := Chunks(text, 128, 32)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunksRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
		{"negative overlap", 100, -1},
		{"zero size", 0, 0},
		{"negative size", -5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Chunks("some text", tc.size, tc.overlap); !errors.Is(err, ErrConfig) {
				t.Fatalf("Chunks(%d, %d) = %v, want ErrConfig", tc.size, tc.overlap, err)
			}
		})
	}
}
