package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meetindex/internal/embed"
)

// batch is a contiguous range of chunk texts embedded in one provider call.
type batch struct {
	start, end int
}

// embedAll embeds texts in batches across cfg.Workers goroutines. Workers
// write into disjoint ranges of the result slice, so output order is
// independent of scheduling. dropped[i] marks chunks abandoned in lenient
// mode after the retry budget was exhausted.
//
// Cancellation is cooperative: a cancelled ctx abandons the remaining
// batches and the partial build is reported as an error, never returned as
// a silently incomplete index.
func embedAll(ctx context.Context, provider embed.Provider, texts []string, cfg Config) (vectors [][]float32, dropped []bool, err error) {
	vectors = make([][]float32, len(texts))
	dropped = make([]bool, len(texts))
	if len(texts) == 0 {
		return vectors, dropped, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	batches := make(chan batch)
	go func() {
		defer close(batches)
		for start := 0; start < len(texts); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(texts))
			select {
			case batches <- batch{start, end}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		mu       sync.Mutex
		firstErr error
	)
	fail := func(e error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = e
		}
		mu.Unlock()
		cancel()
	}

	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				vecs, err := embedBatch(ctx, provider, texts[b.start:b.end], cfg.Retries)
				if err != nil {
					if cfg.Lenient && ctx.Err() == nil {
						slog.Warn("dropping batch after retries", "start", b.start, "end", b.end, "err", err)
						for i := b.start; i < b.end; i++ {
							dropped[i] = true
						}
						continue
					}
					fail(fmt.Errorf("embed chunks [%d:%d]: %w", b.start, b.end, err))
					return
				}
				copy(vectors[b.start:b.end], vecs)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("build cancelled: %w", err)
	}
	return vectors, dropped, nil
}

// embedBatch calls the provider with bounded retries and exponential
// backoff. Only provider-side failures are retried; cancellation is not.
func embedBatch(ctx context.Context, provider embed.Provider, texts []string, retries int) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		vecs, err := provider.EmbedBatch(ctx, texts)
		if err == nil {
			if len(vecs) != len(texts) {
				return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", embed.ErrProvider, len(vecs), len(texts))
			}
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
