package api

import (
	"context"
	"hash/fnv"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/kalambet/studyrag/internal/engine"
	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/pipeline"
	"github.com/kalambet/studyrag/internal/retrieval"
	"github.com/kalambet/studyrag/internal/storage"
)

const (
	testToken      = "test-token-12345"
	photosynthesis = "Photosynthesis converts light energy into chemical energy. Plants use chlorophyll."
	qaReply        = `{"mode":"qa","answer":"Chlorophyll.","key_points":["chlorophyll"],"evidence":["Plants use chlorophyll."],"missing":null}`
)

// testEngine answers every generation with reply and embeds with a
// bag-of-words vector.
type testEngine struct {
	reply string
	err   error
	calls int
}

func (e *testEngine) Generate(_ context.Context, _ engine.GenerateRequest) (string, error) {
	e.calls++
	return e.reply, e.err
}
func (e *testEngine) Embed(_ context.Context, _ string, texts []string) ([][]float32, error) {
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
func (e *testEngine) IsRunning(_ context.Context) bool               { return true }
func (e *testEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (e *testEngine) HasModel(_ context.Context, _ string) bool      { return true }

type testStack struct {
	engine   *testEngine
	store    *storage.Store
	pipeline *pipeline.Pipeline
	session  *pipeline.Session
}

func newTestStack(t *testing.T) testStack {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := &testEngine{reply: qaReply}
	emb := retrieval.NewEmbedder(eng, "embed", retrieval.EmbedderOptions{})
	idx := retrieval.NewIndex(retrieval.NewSQLiteStore(store.DB()), emb, retrieval.DefaultCollection)
	r := retrieval.NewRetriever(idx, emb, nil, retrieval.RetrieverOptions{
		ChunkOverlap: retrieval.DefaultChunkOverlap,
		ScopeToNotes: true,
	})
	gen := grounded.NewGenerator(eng, grounded.Options{VerifyEvidence: true})
	p := pipeline.New(r, gen, store, pipeline.Options{Model: "mistral:7b"})

	return testStack{engine: eng, store: store, pipeline: p, session: pipeline.NewSession(p)}
}

func setupAppHandler(t *testing.T, token string) (http.Handler, testStack) {
	t.Helper()
	st := newTestStack(t)
	h := NewAppHandler(AppDeps{
		Pipeline: st.pipeline,
		Session:  st.session,
		Token:    token,
		Now:      func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) },
	})
	return h, st
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
