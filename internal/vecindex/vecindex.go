// Package vecindex implements a flat exact-similarity vector index.
//
// Vectors are L2-normalized on insertion and scored by inner product, so
// the reported score is cosine similarity in [-1, 1]. The index is
// append-only: ids are assigned sequentially from 0 and never reused.
// A fully built index is immutable from the reader's point of view and safe
// for concurrent searches.
package vecindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Common errors.
var (
	// ErrDimension reports a vector whose shape disagrees with the index:
	// wrong dimension, empty, or containing non-finite values.
	ErrDimension = errors.New("vecindex: vector dimension mismatch")

	// ErrCorrupt reports a persisted index that failed validation on load.
	ErrCorrupt = errors.New("vecindex: corrupt index file")
)

// Match is a single search hit: the id of a stored vector and its cosine
// similarity to the query.
type Match struct {
	ID    int
	Score float64
}

// Index is a flat in-memory vector index. The dimension is fixed by the
// first vector added.
type Index struct {
	dim  int
	rows [][]float32
}

// New returns an empty index. The dimension is established by the first Add.
func New() *Index {
	return &Index{}
}

// Dimension returns the vector dimension, or 0 for an empty index.
func (ix *Index) Dimension() int { return ix.dim }

// Count returns the number of stored vectors.
func (ix *Index) Count() int { return len(ix.rows) }

// Add normalizes vec and appends it, returning the assigned id. The first
// vector fixes the index dimension; later vectors must match it. Empty and
// non-finite vectors are rejected.
func (ix *Index) Add(vec []float32) (int, error) {
	if len(vec) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDimension)
	}
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return 0, fmt.Errorf("%w: non-finite value at component %d", ErrDimension, i)
		}
	}
	if ix.dim == 0 {
		ix.dim = len(vec)
	} else if len(vec) != ix.dim {
		return 0, fmt.Errorf("%w: got %d, index has %d", ErrDimension, len(vec), ix.dim)
	}

	row := make([]float32, len(vec))
	copy(row, vec)
	Normalize(row)
	ix.rows = append(ix.rows, row)
	return len(ix.rows) - 1, nil
}

// Search returns the top k stored vectors by cosine similarity to query,
// ordered by descending score with ties broken by ascending id. k is
// clamped to the index size. An empty index yields an empty result, not an
// error.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	if len(ix.rows) == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimension, len(query), ix.dim)
	}

	q := make([]float32, len(query))
	copy(q, query)
	Normalize(q)

	matches := make([]Match, len(ix.rows))
	for id, row := range ix.rows {
		matches[id] = Match{ID: id, Score: dot(q, row)}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Normalize scales vec to unit length in place. A zero vector is left
// unchanged: its similarity to anything is then 0 rather than undefined,
// which is the degenerate fallback for texts that could not be embedded.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
