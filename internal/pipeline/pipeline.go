// Package pipeline runs the two study actions end to end: indexing notes,
// and answering a question grounded in them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kalambet/studyrag/internal/extract"
	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/retrieval"
	"github.com/kalambet/studyrag/internal/storage"
)

// NoChunksReason is the missing note of the result returned when retrieval
// finds nothing.
const NoChunksReason = "No relevant chunks were retrieved from the provided notes."

const (
	defaultTopK   = 5
	titleMaxChars = 60
)

// Retriever indexes notes and finds the chunks nearest a question.
// *retrieval.Retriever implements it.
type Retriever interface {
	IndexNotes(ctx context.Context, notes string) (retrieval.IndexInfo, error)
	EnsureIndexed(ctx context.Context, notes string) (retrieval.IndexInfo, error)
	RetrieveIndexed(ctx context.Context, info retrieval.IndexInfo, question string, topK int) (retrieval.Result, error)
	Recall(ctx context.Context, query string, topK int) (retrieval.Result, error)
	Forget(notesHash string)
}

// Generator produces a grounded result from retrieved context.
// *grounded.Generator implements it.
type Generator interface {
	Generate(ctx context.Context, model string, mode grounded.Mode, material, question string) (*grounded.Result, error)
}

// DocumentStore records which notes are indexed. *storage.Store implements it.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc storage.Document) error
	ListDocuments(ctx context.Context, limit int) ([]storage.Document, error)
	DeleteDocument(ctx context.Context, notesHash string) (int, error)
}

// Source is the study material for one action. Pasted text wins over the
// file whenever it is non-blank.
type Source struct {
	PastedText string
	File       *extract.File
}

// IndexInfo is the outcome of IndexOnly.
type IndexInfo struct {
	Status    string `json:"status"`
	NotesHash string `json:"notes_hash"`
	NotesLen  int    `json:"notes_len"`
	Chunks    int    `json:"chunks"`
}

// AskRequest holds the parameters of AnswerQuestion. Empty Mode means qa,
// empty Model and non-positive TopK take the pipeline defaults.
type AskRequest struct {
	Question string
	Mode     string
	Model    string
	TopK     int
}

// Options sets the pipeline defaults.
type Options struct {
	Model string
	TopK  int
}

// Pipeline composes extraction, retrieval and generation. Actions are
// serialized: one runs to completion before the next starts.
type Pipeline struct {
	mu        sync.Mutex
	retriever Retriever
	generator Generator
	docs      DocumentStore
	opts      Options
}

// New creates a Pipeline. docs may be nil, in which case indexed documents
// are not recorded.
func New(r Retriever, g Generator, docs DocumentStore, opts Options) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	return &Pipeline{retriever: r, generator: g, docs: docs, opts: opts}
}

// IndexOnly extracts the study text from src and indexes it, replacing any
// previous generation of the same notes.
func (p *Pipeline) IndexOnly(ctx context.Context, src Source) (IndexInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := slog.With("request_id", uuid.NewString())
	log.Info("index: extracting text")
	text, err := studyText(src)
	if err != nil {
		return IndexInfo{}, err
	}

	log.Info("index: embedding chunks", "notes_len", utf8.RuneCountInString(text))
	info, err := p.retriever.IndexNotes(ctx, text)
	if err != nil {
		return IndexInfo{}, fmt.Errorf("indexing notes: %w", err)
	}
	p.record(ctx, src, text, info)

	log.Info("index: done", "notes_hash", info.NotesHash, "chunks", info.Chunks)
	return IndexInfo{
		Status:    "indexed",
		NotesHash: info.NotesHash,
		NotesLen:  info.NotesLen,
		Chunks:    info.Chunks,
	}, nil
}

// AnswerQuestion retrieves the chunks of src nearest to the question and
// has the generator answer from them. When nothing is retrieved the
// generator is not called and a qa-shaped "Insufficient context." result is
// returned. The retrieved sources are attached to the result.
func (p *Pipeline) AnswerQuestion(ctx context.Context, src Source, req AskRequest) (*grounded.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := slog.With("request_id", uuid.NewString())
	start := time.Now()

	log.Info("ask: extracting text")
	text, err := studyText(src)
	if err != nil {
		return nil, err
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	mode, err := grounded.ParseMode(req.Mode)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = p.opts.Model
	}
	topK := req.TopK
	if topK <= 0 {
		topK = p.opts.TopK
	}

	info, err := p.retriever.EnsureIndexed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("indexing notes: %w", err)
	}
	if info.Reindexed {
		p.record(ctx, src, text, info)
	}

	log.Info("ask: retrieving context", "notes_hash", info.NotesHash, "notes_len", info.NotesLen, "top_k", topK)
	hits, err := p.retriever.RetrieveIndexed(ctx, info, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	if strings.TrimSpace(hits.Context) == "" {
		log.Info("ask: nothing retrieved, skipping generation")
		res := grounded.Insufficient(grounded.ModeQA, "", NoChunksReason)
		res.Sources = []retrieval.Source{}
		return res, nil
	}

	log.Info("ask: generating answer", "mode", mode, "model", model, "chunks", len(hits.Sources))
	res, err := p.generator.Generate(ctx, model, mode, hits.Context, question)
	if err != nil {
		return nil, err
	}
	res.Sources = hits.Sources

	log.Info("ask: done", "insufficient", res.IsInsufficient(), "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// Recall searches every indexed document for query.
func (p *Pipeline) Recall(ctx context.Context, query string, topK int) (retrieval.Result, error) {
	if strings.TrimSpace(query) == "" {
		return retrieval.Result{}, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = p.opts.TopK
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.retriever.Recall(ctx, query, topK)
}

// Documents lists indexed documents, newest first.
func (p *Pipeline) Documents(ctx context.Context, limit int) ([]storage.Document, error) {
	if p.docs == nil {
		return []storage.Document{}, nil
	}
	return p.docs.ListDocuments(ctx, limit)
}

// DeleteDocument removes the notes with notesHash from the index and returns
// how many chunks were dropped.
func (p *Pipeline) DeleteDocument(ctx context.Context, notesHash string) (int, error) {
	if p.docs == nil {
		return 0, storage.ErrNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.docs.DeleteDocument(ctx, notesHash)
	if err != nil {
		return 0, err
	}
	p.retriever.Forget(notesHash)
	slog.Info("documents: deleted", "notes_hash", notesHash, "chunks", n)
	return n, nil
}

// record saves the indexed notes to the document list. Failure only costs
// the listing, so it is logged and not returned.
func (p *Pipeline) record(ctx context.Context, src Source, text string, info retrieval.IndexInfo) {
	if p.docs == nil {
		return
	}
	doc := storage.Document{
		NotesHash:  info.NotesHash,
		Title:      title(src, text),
		NotesLen:   info.NotesLen,
		ChunkCount: info.Chunks,
		IndexedAt:  time.Now().UTC(),
	}
	if err := p.docs.SaveDocument(ctx, doc); err != nil {
		slog.Warn("documents: failed to record indexed notes", "notes_hash", info.NotesHash, "error", err)
	}
}

func studyText(src Source) (string, error) {
	text, err := extract.Select(src.PastedText, src.File)
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}
	if text == "" {
		return "", ErrNoStudyText
	}
	return text, nil
}

// title names a document after its file, or after the first line of pasted
// text.
func title(src Source, text string) string {
	if strings.TrimSpace(src.PastedText) == "" && src.File != nil && src.File.Name != "" {
		return filepath.Base(src.File.Name)
	}
	first, _, _ := strings.Cut(text, "\n")
	if utf8.RuneCountInString(first) > titleMaxChars {
		first = string([]rune(first)[:titleMaxChars]) + "..."
	}
	return first
}
