// Package index builds, persists, and loads the searchable index: the
// vector index and its parallel metadata records, kept consistent as a
// pair.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"meetindex/internal/chunker"
	"meetindex/internal/corpus"
	"meetindex/internal/embed"
	"meetindex/internal/store"
	"meetindex/internal/vecindex"
)

// Common errors.
var (
	// ErrNotFound means the persisted artifacts (or their manifest) are
	// absent. BuildOrLoad recovers from this by building fresh.
	ErrNotFound = errors.New("index: persisted artifacts not found")

	// ErrCorrupt means the persisted artifacts disagree with each other
	// or with their manifest. This is surfaced, never silently repaired:
	// the remedy is an explicit rebuild.
	ErrCorrupt = errors.New("index: persisted artifacts corrupt")
)

// Config holds build parameters.
type Config struct {
	TranscriptsDir string
	SummariesDir   string

	// ChunkSize and ChunkOverlap are in bytes. Defaults: 1000 / 200.
	ChunkSize    int
	ChunkOverlap int

	// BatchSize is the number of chunks per embedding call. Default 32.
	BatchSize int

	// Workers is the number of concurrent embedding batches. Default
	// NumCPU.
	Workers int

	// Retries is the per-batch retry budget for provider failures.
	// Default 3.
	Retries int

	// Lenient makes a batch that exhausts its retries drop its chunks
	// (from both vector and metadata sequences, preserving the count
	// invariant) instead of failing the build. Default is strict:
	// the whole build aborts.
	Lenient bool
}

func (c *Config) applyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 && c.ChunkSize > 200 {
		c.ChunkOverlap = 200
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
}

// Stats reports build results.
type Stats struct {
	Documents int
	Chunks    int
	Skipped   int // chunks dropped in lenient mode
	Dimension int
}

// Built is a freshly constructed index/metadata pair, not yet persisted.
type Built struct {
	Index   *vecindex.Index
	Records []store.Record
	Stats   Stats
}

// Build chunks every corpus document, embeds every chunk, and assembles the
// vector index with a metadata record at each matching position.
//
// Documents are processed in the loader's sorted order and chunks are
// appended sequentially, so id assignment is deterministic even though
// embedding runs concurrently. The build fails fast on the first vector
// whose dimension disagrees with the index (or that is empty/non-finite).
func Build(ctx context.Context, provider embed.Provider, cfg Config) (*Built, error) {
	cfg.applyDefaults()

	docs, err := corpus.Load(cfg.TranscriptsDir, cfg.SummariesDir)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	// Chunk sequentially in corpus order. Chunking is pure and cheap; the
	// expensive stage is embedding, which is parallelized below.
	type job struct {
		text   string
		record store.Record
	}
	var jobs []job
	for _, doc := range docs {
		chunks, err := chunker.Chunks(doc.Text, cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		for _, ch := range chunks {
			jobs = append(jobs, job{
				text: ch.Text,
				record: store.Record{
					SourcePath: doc.Path,
					ChunkIndex: ch.Index,
					Kind:       string(doc.Kind),
					Text:       ch.Text,
					CharStart:  ch.CharStart,
					CharEnd:    ch.CharEnd,
					DocTS:      doc.ModTime.Unix(),
				},
			})
		}
	}

	texts := make([]string, len(jobs))
	for i, j := range jobs {
		texts[i] = j.text
	}

	vectors, dropped, err := embedAll(ctx, provider, texts, cfg)
	if err != nil {
		return nil, err
	}

	// Single appender: id assignment is the serialization point.
	ix := vecindex.New()
	built := &Built{Index: ix}
	built.Stats.Documents = len(docs)
	for i, j := range jobs {
		if dropped[i] {
			built.Stats.Skipped++
			continue
		}
		id, err := ix.Add(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", j.record.ChunkIndex, j.record.SourcePath, err)
		}
		rec := j.record
		rec.ID = int64(id)
		built.Records = append(built.Records, rec)
	}
	built.Stats.Chunks = ix.Count()
	built.Stats.Dimension = ix.Dimension()

	if built.Stats.Skipped > 0 {
		slog.Warn("build dropped chunks after provider failures",
			"dropped", built.Stats.Skipped, "kept", built.Stats.Chunks)
	}

	if ix.Count() != len(built.Records) {
		// Cannot happen by construction; guard the invariant anyway.
		return nil, fmt.Errorf("%w: %d vectors vs %d records", ErrCorrupt, ix.Count(), len(built.Records))
	}
	return built, nil
}

// BuildOrLoad loads the persisted index when its artifacts exist, otherwise
// builds from the corpus and persists. Given an unchanged corpus and
// unchanged chunking parameters this is idempotent: the second call only
// loads.
func BuildOrLoad(ctx context.Context, provider embed.Provider, cfg Config, dir string) (*Loaded, error) {
	loaded, err := Load(dir)
	if err == nil {
		if m := loaded.Manifest; m.ChunkSize != 0 && (m.ChunkSize != cfg.ChunkSize || m.ChunkOverlap != cfg.ChunkOverlap) && cfg.ChunkSize != 0 {
			slog.Warn("persisted index was built with different chunking parameters",
				"stored_size", m.ChunkSize, "stored_overlap", m.ChunkOverlap,
				"configured_size", cfg.ChunkSize, "configured_overlap", cfg.ChunkOverlap)
		}
		return loaded, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	built, err := Build(ctx, provider, cfg)
	if err != nil {
		return nil, err
	}
	if err := Persist(built, provider.Model(), cfg, dir); err != nil {
		return nil, err
	}
	return Load(dir)
}
