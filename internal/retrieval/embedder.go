package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/studyrag/internal/engine"
)

// ErrEmbedderInit is returned, wrapped, when the embedding model cannot be
// loaded. The failure is remembered: later calls fail the same way without
// contacting the engine again.
var ErrEmbedderInit = errors.New("embedding model unavailable")

// EmbedderOptions tunes batching and caching. Zero values pick defaults.
type EmbedderOptions struct {
	// BatchSize is the number of texts sent per engine call.
	BatchSize int
	// Concurrency bounds the number of batches in flight.
	Concurrency int
	// CacheSize is the number of query embeddings kept in memory. Zero
	// disables the cache.
	CacheSize int
}

// Embedder wraps an Engine to generate unit-length text embeddings. It is
// constructed once per process and shared; the model is probed on first use.
type Embedder struct {
	engine engine.Engine
	model  string
	opts   EmbedderOptions

	once    sync.Once
	initErr error
	dim     int

	cache *lru.Cache[string, []float32]
}

// NewEmbedder creates an Embedder using the given Engine and model name.
func NewEmbedder(e engine.Engine, model string, opts EmbedderOptions) *Embedder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	emb := &Embedder{engine: e, model: model, opts: opts}
	if opts.CacheSize > 0 {
		// lru.New only fails for a non-positive size.
		emb.cache, _ = lru.New[string, []float32](opts.CacheSize)
	}
	return emb
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Dim returns the embedding dimension, or 0 before a successful Init.
func (e *Embedder) Dim() int { return e.dim }

// Init loads the model by embedding a probe string. It runs at most once per
// Embedder; a failure is sticky and wrapped in ErrEmbedderInit.
func (e *Embedder) Init(ctx context.Context) error {
	e.once.Do(func() {
		vecs, err := e.engine.Embed(ctx, e.model, []string{"init"})
		if err != nil {
			e.initErr = fmt.Errorf("%w: %s: %v", ErrEmbedderInit, e.model, err)
			return
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			e.initErr = fmt.Errorf("%w: %s returned no vector", ErrEmbedderInit, e.model)
			return
		}
		e.dim = len(vecs[0])
	})
	return e.initErr
}

// Embed returns the normalized embedding for a single text, typically a
// question. Results are cached by exact text; callers get their own copy.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return slices.Clone(v), nil
		}
	}
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Add(text, slices.Clone(vecs[0]))
	}
	return vecs[0], nil
}

// EmbedBatch returns normalized embedding vectors for texts, in input order.
// Texts are split into batches that run with bounded concurrency.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.Init(ctx); err != nil {
		return nil, err
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.engine.Embed(gCtx, e.model, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding texts %d-%d: got %d vectors", start, end-1, len(vecs))
			}
			for i, v := range vecs {
				if len(v) != e.dim {
					return fmt.Errorf("embedding text %d: dimension %d, want %d", start+i, len(v), e.dim)
				}
				results[start+i] = normalize(v)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// normalize returns v scaled to unit length. A zero vector is returned as a
// zero vector.
func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out
}
