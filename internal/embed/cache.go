package embed

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// cacheEntry is the persisted value for one embedded text.
type cacheEntry struct {
	Model  string    `msgpack:"model"`
	Vector []float32 `msgpack:"vector"`
}

// Cache wraps a Provider and memoizes embeddings in a Badger database,
// keyed by SHA-256 of (model, text). Rebuilding an index over an unchanged
// corpus then costs no remote calls.
type Cache struct {
	inner Provider
	db    *badger.DB
}

var _ Provider = (*Cache)(nil)

// NewCache opens (or creates) the cache database at dir and wraps inner.
func NewCache(inner Provider, dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open embed cache: %w", err)
	}
	return &Cache{inner: inner, db: db}, nil
}

// Model returns the wrapped provider's model identifier.
func (c *Cache) Model() string { return c.inner.Model() }

// Close releases the cache database.
func (c *Cache) Close() error { return c.db.Close() }

// Embed returns the cached vector for text, calling the wrapped provider on
// a miss.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch resolves each text from the cache and embeds only the misses
// through the wrapped provider, in a single remote batch.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(c.key(text))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missIdx = append(missIdx, i)
				missTexts = append(missTexts, text)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				var entry cacheEntry
				if err := msgpack.Unmarshal(val, &entry); err != nil {
					return err
				}
				result[i] = entry.Vector
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embed cache read: %w", err)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		for j, i := range missIdx {
			result[i] = vecs[j]
			data, err := msgpack.Marshal(cacheEntry{Model: c.inner.Model(), Vector: vecs[j]})
			if err != nil {
				return err
			}
			if err := txn.Set(c.key(texts[i]), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Cache write failure is not fatal to the embedding itself, but a
		// half-written batch would be confusing on the next run; surface it.
		return nil, fmt.Errorf("embed cache write: %w", err)
	}

	return result, nil
}

func (c *Cache) key(text string) []byte {
	h := sha256.New()
	h.Write([]byte(c.inner.Model()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum(nil)
}
