package retrieval

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"testing"
)

func vecNorm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}

func TestEmbedBatch_NormalizesAndPreservesOrder(t *testing.T) {
	eng := &mockEngine{
		embedFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i, txt := range texts {
				// Encode the text length in the vector so order is checkable.
				out[i] = []float32{float32(len(txt)), 0, 3}
			}
			return out, nil
		},
	}
	e := NewEmbedder(eng, "nomic-embed-text", EmbedderOptions{BatchSize: 2, Concurrency: 3})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if n := vecNorm(v); math.Abs(n-1) > 1e-5 {
			t.Errorf("vector %d has norm %f, want 1", i, n)
		}
		want := normalize([]float32{float32(len(texts[i])), 0, 3})
		if math.Abs(float64(v[0]-want[0])) > 1e-6 {
			t.Errorf("vector %d out of order: got %v, want %v", i, v, want)
		}
	}
}

func TestEmbedBatch_Batches(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	eng := &mockEngine{
		embedFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
			mu.Lock()
			sizes = append(sizes, len(texts))
			mu.Unlock()
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, 0}
			}
			return out, nil
		},
	}
	e := NewEmbedder(eng, "m", EmbedderOptions{BatchSize: 4})

	if _, err := e.EmbedBatch(context.Background(), make([]string, 10)); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	// One init probe plus batches of 4, 4 and 2.
	total := 0
	for _, s := range sizes {
		if s > 4 {
			t.Errorf("batch of %d exceeds BatchSize 4", s)
		}
		total += s
	}
	if total != 11 {
		t.Errorf("embedded %d texts in total, want 11 (10 + init probe)", total)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	called := false
	eng := &mockEngine{embedFn: func(_ context.Context, _ string, _ []string) ([][]float32, error) {
		called = true
		return nil, nil
	}}
	vecs, err := NewEmbedder(eng, "m", EmbedderOptions{}).EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("EmbedBatch(nil) = %v, %v", vecs, err)
	}
	if called {
		t.Error("engine called for empty input")
	}
}

func TestInit_FailureIsSticky(t *testing.T) {
	calls := 0
	eng := &mockEngine{
		embedFn: func(_ context.Context, _ string, _ []string) ([][]float32, error) {
			calls++
			return nil, errors.New("model \"nomic-embed-text\" not found")
		},
	}
	e := NewEmbedder(eng, "nomic-embed-text", EmbedderOptions{})

	for i := 0; i < 3; i++ {
		_, err := e.Embed(context.Background(), "q")
		if !errors.Is(err, ErrEmbedderInit) {
			t.Fatalf("call %d: err = %v, want ErrEmbedderInit", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("engine called %d times, want 1", calls)
	}
}

func TestInit_RecordsDimension(t *testing.T) {
	e := NewEmbedder(bowEngine(nil), "m", EmbedderOptions{})
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if e.Dim() != bowDim {
		t.Errorf("Dim = %d, want %d", e.Dim(), bowDim)
	}
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	n := 0
	eng := &mockEngine{
		embedFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
			n++
			dim := 3
			if n > 1 {
				dim = 5
			}
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = make([]float32, dim)
				out[i][0] = 1
			}
			return out, nil
		},
	}
	e := NewEmbedder(eng, "m", EmbedderOptions{})
	if _, err := e.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestEmbed_Cached(t *testing.T) {
	calls := 0
	e := NewEmbedder(bowEngine(&calls), "m", EmbedderOptions{CacheSize: 8})

	a, err := e.Embed(context.Background(), "what is osmosis")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(context.Background(), "what is osmosis")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	// init probe + first query; the second query is served from cache.
	if calls != 2 {
		t.Errorf("engine called %d times, want 2", calls)
	}
	if len(a) != len(b) || a[0] != b[0] {
		t.Error("cached vector differs")
	}
}

func TestEmbed_CachedVectorIsCopied(t *testing.T) {
	e := NewEmbedder(bowEngine(nil), "m", EmbedderOptions{CacheSize: 8})
	ctx := context.Background()

	first, err := e.Embed(ctx, "what is osmosis")
	if err != nil {
		t.Fatal(err)
	}
	want := slices.Clone(first)
	first[0] = 42

	second, err := e.Embed(ctx, "what is osmosis")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(second, want) {
		t.Fatalf("cache corrupted by caller write to the first result")
	}
	second[1] = 42

	third, err := e.Embed(ctx, "what is osmosis")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(third, want) {
		t.Error("cache corrupted by caller write to a cached result")
	}
}

func TestEmbed_NoCache(t *testing.T) {
	calls := 0
	e := NewEmbedder(bowEngine(&calls), "m", EmbedderOptions{CacheSize: 0})
	for i := 0; i < 2; i++ {
		if _, err := e.Embed(context.Background(), "q"); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 3 {
		t.Errorf("engine called %d times, want 3", calls)
	}
}

func TestNormalize_Zero(t *testing.T) {
	v := normalize([]float32{0, 0, 0})
	for _, f := range v {
		if f != 0 {
			t.Fatalf("normalize(zero) = %v", v)
		}
	}
}
