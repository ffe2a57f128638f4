// Package embed converts text into dense float32 vectors via a remote
// embedding model.
//
// The engine treats vectors as opaque fixed-dimension payloads; nothing in
// this repository interprets their contents. Two remote implementations are
// provided (Ollama and any OpenAI-compatible API) plus a Badger-backed
// cache that memoizes vectors across rebuilds.
package embed

import (
	"context"
	"errors"
)

// Provider converts text into dense float32 vectors.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embedding vectors for multiple texts. The result
	// has the same length and order as the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the embedding model identifier.
	Model() string
}

// Common errors.
var (
	// ErrProvider wraps any failure of the remote embedding call,
	// including timeouts. Callers retry or abort per their policy.
	ErrProvider = errors.New("embed: provider call failed")

	// ErrEmptyInput is returned when there is nothing to embed.
	ErrEmptyInput = errors.New("embed: empty input")
)
