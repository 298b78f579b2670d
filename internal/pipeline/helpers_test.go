package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"
	"unicode"

	"github.com/kalambet/studyrag/internal/engine"
	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/retrieval"
	"github.com/kalambet/studyrag/internal/storage"
)

// bowEngine implements engine.Engine with a bag-of-words embedding.
type bowEngine struct{}

func (bowEngine) Generate(_ context.Context, _ engine.GenerateRequest) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (bowEngine) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 32)
		for _, w := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool { return !unicode.IsLetter(r) }) {
			h := fnv.New32a()
			h.Write([]byte(w))
			v[h.Sum32()%32]++
		}
		v[31] += 0.01
		out[i] = v
	}
	return out, nil
}
func (bowEngine) IsRunning(_ context.Context) bool               { return true }
func (bowEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (bowEngine) HasModel(_ context.Context, _ string) bool      { return true }

// stubGenerator records its calls and answers with generateFn.
type stubGenerator struct {
	generateFn func(model string, mode grounded.Mode, material, question string) (*grounded.Result, error)
	calls      int
	material   string
	model      string
}

func (g *stubGenerator) Generate(_ context.Context, model string, mode grounded.Mode, material, question string) (*grounded.Result, error) {
	g.calls++
	g.material = material
	g.model = model
	if g.generateFn == nil {
		return nil, fmt.Errorf("generator should not be called")
	}
	return g.generateFn(model, mode, material, question)
}

// quoting returns a generator answering qa with quote as its only evidence.
func quoting(quote string) *stubGenerator {
	return &stubGenerator{generateFn: func(_ string, mode grounded.Mode, _, _ string) (*grounded.Result, error) {
		return &grounded.Result{Mode: mode, QA: &grounded.QAResult{
			Mode:      grounded.ModeQA,
			Answer:    "Plants use chlorophyll.",
			KeyPoints: []string{"chlorophyll"},
			Evidence:  []string{quote},
		}}, nil
	}}
}

// stubRetriever returns a fixed retrieval result.
type stubRetriever struct {
	result retrieval.Result
}

func (r *stubRetriever) IndexNotes(_ context.Context, notes string) (retrieval.IndexInfo, error) {
	return retrieval.IndexInfo{NotesHash: retrieval.NotesHash(notes), Reindexed: true}, nil
}
func (r *stubRetriever) EnsureIndexed(ctx context.Context, notes string) (retrieval.IndexInfo, error) {
	return r.IndexNotes(ctx, notes)
}
func (r *stubRetriever) RetrieveIndexed(_ context.Context, _ retrieval.IndexInfo, _ string, _ int) (retrieval.Result, error) {
	return r.result, nil
}
func (r *stubRetriever) Recall(_ context.Context, _ string, _ int) (retrieval.Result, error) {
	return r.result, nil
}
func (r *stubRetriever) Forget(string) {}

// countingRetriever counts index checks made through a real retriever.
type countingRetriever struct {
	*retrieval.Retriever
	ensures int
}

func (r *countingRetriever) EnsureIndexed(ctx context.Context, notes string) (retrieval.IndexInfo, error) {
	r.ensures++
	return r.Retriever.EnsureIndexed(ctx, notes)
}

type fixture struct {
	store     *storage.Store
	retriever *retrieval.Retriever
	vectors   *retrieval.SQLiteStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	vectors := retrieval.NewSQLiteStore(store.DB())
	emb := retrieval.NewEmbedder(bowEngine{}, "embed", retrieval.EmbedderOptions{})
	idx := retrieval.NewIndex(vectors, emb, retrieval.DefaultCollection)
	r := retrieval.NewRetriever(idx, emb, nil, retrieval.RetrieverOptions{
		ChunkSize:    retrieval.DefaultChunkSize,
		ChunkOverlap: retrieval.DefaultChunkOverlap,
		ScopeToNotes: true,
	})
	return fixture{store: store, retriever: r, vectors: vectors}
}

func (f fixture) chunks(t *testing.T, hash string) int {
	t.Helper()
	n, err := f.vectors.Count(context.Background(), retrieval.DefaultCollection, retrieval.Filter{NotesHash: hash})
	if err != nil {
		t.Fatalf("counting chunks: %v", err)
	}
	return n
}
