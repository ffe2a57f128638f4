// Package search answers natural-language queries against a loaded index:
// it parses the query, embeds it, ranks chunks by cosine similarity, and
// applies any date constraints the query expressed.
package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"meetindex/internal/embed"
	"meetindex/internal/index"
	"meetindex/internal/queryparse"
)

// DefaultK is the result count when the caller does not ask for one.
const DefaultK = 5

// Result is one ranked chunk with its resolved metadata.
type Result struct {
	ID         int64     `json:"id"`
	Score      float64   `json:"score"`
	SourcePath string    `json:"source_path"`
	Kind       string    `json:"kind"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

// Response carries the ranked results plus the parsed view of the query.
type Response struct {
	Query        queryparse.ParsedQuery `json:"query"`
	Results      []Result               `json:"results"`
	DateFiltered bool                   `json:"date_filtered"`
}

// Service serves queries against an atomically swappable index snapshot,
// so a rebuild can go live without pausing readers.
type Service struct {
	provider embed.Provider
	parser   *queryparse.Parser
	snap     atomic.Pointer[index.Loaded]
}

// New wires a service around a loaded snapshot.
func New(provider embed.Provider, parser *queryparse.Parser, loaded *index.Loaded) *Service {
	s := &Service{provider: provider, parser: parser}
	s.snap.Store(loaded)
	return s
}

// Swap installs a new snapshot and returns the previous one. The caller
// closes the returned snapshot once in-flight queries have drained.
func (s *Service) Swap(loaded *index.Loaded) *index.Loaded {
	return s.snap.Swap(loaded)
}

// Snapshot returns the currently installed index pair.
func (s *Service) Snapshot() *index.Loaded {
	return s.snap.Load()
}

// Search runs one query. Parsing and query embedding are independent, so
// they run concurrently. When the query names dates, results are filtered
// to those dates; if the filter would empty the result set, the unfiltered
// ranking is returned instead, flagged via Response.DateFiltered.
func (s *Service) Search(ctx context.Context, query string, k int) (*Response, error) {
	if k <= 0 {
		k = DefaultK
	}
	snap := s.snap.Load()

	parsedCh := make(chan queryparse.ParsedQuery, 1)
	go func() {
		parsedCh <- s.parser.Parse(query)
	}()

	resp := &Response{}
	if snap.Index.Count() == 0 {
		resp.Query = <-parsedCh
		resp.Results = []Result{}
		return resp, nil
	}

	vec, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	resp.Query = <-parsedCh

	// Over-fetch so date filtering still has k survivors to choose from.
	headroom := max(3*k, 20)
	matches, err := snap.Index.Search(vec, headroom)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = int64(m.ID)
	}
	records, err := snap.Store.GetMany(ids)
	if err != nil {
		return nil, fmt.Errorf("resolve metadata: %w", err)
	}

	ranked := make([]Result, len(matches))
	for i, m := range matches {
		rec := records[i]
		ranked[i] = Result{
			ID:         rec.ID,
			Score:      m.Score,
			SourcePath: rec.SourcePath,
			Kind:       rec.Kind,
			ChunkIndex: rec.ChunkIndex,
			Text:       rec.Text,
			Timestamp:  time.Unix(rec.DocTS, 0).UTC(),
		}
	}

	if len(resp.Query.DateRanges) > 0 {
		filtered := filterByDate(ranked, resp.Query.DateRanges)
		if len(filtered) > 0 {
			ranked = filtered
			resp.DateFiltered = true
		}
	}

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	resp.Results = ranked
	return resp, nil
}

func filterByDate(results []Result, ranges []queryparse.DateRange) []Result {
	var kept []Result
	for _, r := range results {
		for _, dr := range ranges {
			if dr.Contains(r.Timestamp) {
				kept = append(kept, r)
				break
			}
		}
	}
	return kept
}
