package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// ContextSeparator joins retrieved chunks into a single context string.
const ContextSeparator = "\n\n---\n\n"

// Source is one retrieved chunk as reported alongside a generated answer.
type Source struct {
	Rank      int     `json:"rank"`
	Chunk     string  `json:"chunk"`
	NotesHash string  `json:"notes_hash"`
	ChunkID   int     `json:"chunk_id"`
	Distance  float64 `json:"distance"`
}

// Result is the outcome of one retrieval: the ranked sources and their texts
// joined in rank order. Zero hits yields an empty Context and no Sources.
type Result struct {
	Context string
	Sources []Source
}

// IndexInfo describes the indexed state of one notes text.
type IndexInfo struct {
	NotesHash string `json:"notes_hash"`
	NotesLen  int    `json:"notes_len"`
	Chunks    int    `json:"chunks"`
	// Reindexed is false when the notes were already current and embedding
	// was skipped.
	Reindexed bool `json:"-"`
}

// RetrieverOptions configures chunking and query scoping.
type RetrieverOptions struct {
	ChunkSize    int
	ChunkOverlap int
	// ScopeToNotes restricts Retrieve to chunks of the notes being asked
	// about instead of the whole collection.
	ScopeToNotes bool
}

// Retriever indexes notes on demand and finds the chunks nearest a question.
type Retriever struct {
	index    *Index
	embedder *Embedder
	cache    *IndexCache
	opts     RetrieverOptions
}

// NewRetriever creates a Retriever over index. A nil cache gets a fresh one.
func NewRetriever(index *Index, embedder *Embedder, cache *IndexCache, opts RetrieverOptions) *Retriever {
	if cache == nil {
		cache = &IndexCache{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Retriever{index: index, embedder: embedder, cache: cache, opts: opts}
}

// Cache returns the retriever's index cache.
func (r *Retriever) Cache() *IndexCache { return r.cache }

// Index returns the underlying index.
func (r *Retriever) Index() *Index { return r.index }

// IndexNotes chunks, embeds and stores notes unconditionally, replacing any
// previous generation under the same hash, and marks the hash current.
func (r *Retriever) IndexNotes(ctx context.Context, notes string) (IndexInfo, error) {
	hash := NotesHash(notes)
	chunks := Chunk(notes, r.opts.ChunkSize, r.opts.ChunkOverlap)

	n, err := r.index.UpsertNotes(ctx, hash, chunks)
	if err != nil {
		r.cache.Invalidate()
		return IndexInfo{}, err
	}
	r.cache.MarkIndexed(hash)

	return IndexInfo{
		NotesHash: hash,
		NotesLen:  utf8.RuneCountInString(notes),
		Chunks:    n,
		Reindexed: true,
	}, nil
}

// EnsureIndexed indexes notes unless their hash is already current.
func (r *Retriever) EnsureIndexed(ctx context.Context, notes string) (IndexInfo, error) {
	hash := NotesHash(notes)
	if !r.cache.IsCurrent(hash) {
		slog.Info("retrieve: notes changed, indexing", "notes_hash", hash)
		return r.IndexNotes(ctx, notes)
	}

	n, err := r.index.Store().Count(ctx, r.index.Collection(), Filter{NotesHash: hash})
	if err != nil {
		return IndexInfo{}, fmt.Errorf("counting chunks of %s: %w", hash, err)
	}
	return IndexInfo{
		NotesHash: hash,
		NotesLen:  utf8.RuneCountInString(notes),
		Chunks:    n,
	}, nil
}

// Retrieve makes sure notes are indexed and returns the topK chunks nearest
// to question.
func (r *Retriever) Retrieve(ctx context.Context, notes, question string, topK int) (Result, error) {
	info, err := r.EnsureIndexed(ctx, notes)
	if err != nil {
		return Result{}, err
	}
	return r.RetrieveIndexed(ctx, info, question, topK)
}

// RetrieveIndexed returns the topK chunks nearest to question for notes
// already indexed as info, without checking the index again.
func (r *Retriever) RetrieveIndexed(ctx context.Context, info IndexInfo, question string, topK int) (Result, error) {
	var f Filter
	if r.opts.ScopeToNotes {
		f.NotesHash = info.NotesHash
	}
	return r.search(ctx, question, topK, f)
}

// Recall searches every indexed document for question without indexing
// anything.
func (r *Retriever) Recall(ctx context.Context, question string, topK int) (Result, error) {
	return r.search(ctx, question, topK, Filter{})
}

// Forget drops notesHash from the index cache if it is current, so the next
// retrieval of those notes indexes them again.
func (r *Retriever) Forget(notesHash string) {
	if r.cache.IsCurrent(notesHash) {
		r.cache.Invalidate()
	}
}

func (r *Retriever) search(ctx context.Context, question string, topK int, f Filter) (Result, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	scored, err := r.index.Query(ctx, vec, topK, f)
	if err != nil {
		return Result{}, fmt.Errorf("querying index: %w", err)
	}
	return buildResult(scored), nil
}

func buildResult(scored []ScoredRecord) Result {
	if len(scored) == 0 {
		return Result{}
	}
	sources := make([]Source, len(scored))
	texts := make([]string, len(scored))
	for i, s := range scored {
		sources[i] = Source{
			Rank:      i + 1,
			Chunk:     s.Text,
			NotesHash: s.NotesHash,
			ChunkID:   s.ChunkID,
			Distance:  s.Distance,
		}
		texts[i] = s.Text
	}
	return Result{
		Context: strings.Join(texts, ContextSeparator),
		Sources: sources,
	}
}
