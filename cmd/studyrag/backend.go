package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/pipeline"
	"github.com/kalambet/studyrag/internal/retrieval"
	"github.com/kalambet/studyrag/internal/storage"
)

// studyBackend runs study actions either in-process or against a server.
type studyBackend interface {
	Index(ctx context.Context, src pipeline.Source) (pipeline.IndexInfo, error)
	Ask(ctx context.Context, src pipeline.Source, req pipeline.AskRequest) (*grounded.Result, error)
	Recall(ctx context.Context, query string, topK int) ([]retrieval.Source, error)
	Documents(ctx context.Context, limit int) ([]storage.Document, error)
	DeleteDocument(ctx context.Context, notesHash string) (int, error)
	Close() error
}

// openBackend returns the remote backend when --remote is set and builds the
// local stack otherwise.
var openBackend = func(ctx context.Context) (studyBackend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if remote {
		return &remoteBackend{client: newAPIClient(cfg)}, nil
	}
	st, err := buildStack(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &localBackend{st: st}, nil
}

type localBackend struct {
	st *stack
}

func (b *localBackend) Index(ctx context.Context, src pipeline.Source) (pipeline.IndexInfo, error) {
	return b.st.pipeline.IndexOnly(ctx, src)
}

func (b *localBackend) Ask(ctx context.Context, src pipeline.Source, req pipeline.AskRequest) (*grounded.Result, error) {
	return b.st.pipeline.AnswerQuestion(ctx, src, req)
}

func (b *localBackend) Recall(ctx context.Context, query string, topK int) ([]retrieval.Source, error) {
	res, err := b.st.pipeline.Recall(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return res.Sources, nil
}

func (b *localBackend) Documents(ctx context.Context, limit int) ([]storage.Document, error) {
	return b.st.pipeline.Documents(ctx, limit)
}

func (b *localBackend) DeleteDocument(ctx context.Context, notesHash string) (int, error) {
	return b.st.pipeline.DeleteDocument(ctx, notesHash)
}

func (b *localBackend) Close() error { return b.st.Close() }

type remoteBackend struct {
	client *apiClient
}

// studyBody builds the JSON body the server's /index and /ask accept.
func studyBody(src pipeline.Source) map[string]any {
	body := map[string]any{"text": src.PastedText}
	if src.File != nil {
		body["file_name"] = filepath.Base(src.File.Name)
		body["file_content"] = base64.StdEncoding.EncodeToString(src.File.Data)
	}
	return body
}

func (b *remoteBackend) Index(ctx context.Context, src pipeline.Source) (pipeline.IndexInfo, error) {
	resp, err := b.client.post(ctx, "/index", studyBody(src))
	if err != nil {
		return pipeline.IndexInfo{}, err
	}
	var info pipeline.IndexInfo
	if err := decodeJSON(resp, &info); err != nil {
		return pipeline.IndexInfo{}, err
	}
	return info, nil
}

// Ask indexes src on the server first: the server's session answers only
// after an index.
func (b *remoteBackend) Ask(ctx context.Context, src pipeline.Source, req pipeline.AskRequest) (*grounded.Result, error) {
	if _, err := b.Index(ctx, src); err != nil {
		return nil, err
	}

	body := studyBody(src)
	body["question"] = req.Question
	body["mode"] = req.Mode
	body["model"] = req.Model
	body["top_k"] = req.TopK
	resp, err := b.client.post(ctx, "/ask", body)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		return nil, err
	}
	var res grounded.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return &res, nil
}

func (b *remoteBackend) Recall(ctx context.Context, query string, topK int) ([]retrieval.Source, error) {
	resp, err := b.client.post(ctx, "/recall", map[string]any{"query": query, "top_k": topK})
	if err != nil {
		return nil, err
	}
	var out struct {
		Sources []retrieval.Source `json:"sources"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Sources, nil
}

func (b *remoteBackend) Documents(ctx context.Context, limit int) ([]storage.Document, error) {
	resp, err := b.client.get(ctx, fmt.Sprintf("/documents?limit=%d", limit))
	if err != nil {
		return nil, err
	}
	var docs []storage.Document
	if err := decodeJSON(resp, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (b *remoteBackend) DeleteDocument(ctx context.Context, notesHash string) (int, error) {
	resp, err := b.client.delete(ctx, "/documents/"+url.PathEscape(notesHash))
	if err != nil {
		return 0, err
	}
	var out struct {
		Chunks int `json:"chunks"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return 0, err
	}
	return out.Chunks, nil
}

func (b *remoteBackend) Close() error { return nil }
