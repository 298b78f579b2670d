package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"testing"
	"unicode"

	"github.com/kalambet/studyrag/internal/engine"
	"github.com/kalambet/studyrag/internal/storage"
)

// mockEngine implements engine.Engine for testing.
type mockEngine struct {
	embedFn func(ctx context.Context, model string, texts []string) ([][]float32, error)
}

func (m *mockEngine) Generate(_ context.Context, _ engine.GenerateRequest) (string, error) {
	return "", fmt.Errorf("not implemented")
}
func (m *mockEngine) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return m.embedFn(ctx, model, texts)
}
func (m *mockEngine) IsRunning(_ context.Context) bool               { return true }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (m *mockEngine) HasModel(_ context.Context, _ string) bool      { return true }

const bowDim = 64

// bagOfWords is a deterministic toy embedding: word counts hashed into
// bowDim buckets. Texts sharing words end up near each other.
func bagOfWords(text string) []float32 {
	v := make([]float32, bowDim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%bowDim]++
	}
	// Keep the vector non-zero so normalization is defined.
	v[bowDim-1] += 0.01
	return v
}

// bowEngine returns a mockEngine embedding with bagOfWords and counting calls.
func bowEngine(calls *int) *mockEngine {
	return &mockEngine{
		embedFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
			if calls != nil {
				*calls++
			}
			out := make([][]float32, len(texts))
			for i, t := range texts {
				out[i] = bagOfWords(t)
			}
			return out, nil
		},
	}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewSQLiteStore(s.DB())
}

func unit(v ...float32) []float32 {
	return normalize(v)
}
