package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Index is the write and query path over one collection of a VectorStore.
type Index struct {
	store      VectorStore
	embedder   *Embedder
	collection string
}

// NewIndex creates an Index over collection. An empty collection name uses
// DefaultCollection.
func NewIndex(store VectorStore, embedder *Embedder, collection string) *Index {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Index{store: store, embedder: embedder, collection: collection}
}

// Collection returns the collection name.
func (ix *Index) Collection() string { return ix.collection }

// Store returns the underlying vector store.
func (ix *Index) Store() VectorStore { return ix.store }

// UpsertNotes replaces the stored generation of notesHash with chunks. The
// chunks are embedded first and the swap is a single store transaction, so
// any failure leaves the previous generation intact. Re-upserting the same
// chunks never grows the index. It returns the number of records written.
func (ix *Index) UpsertNotes(ctx context.Context, notesHash string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vecs, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks of %s: %w", notesHash, err)
	}

	now := time.Now().UTC()
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			ID:        ChunkRecordID(notesHash, i),
			NotesHash: notesHash,
			ChunkID:   i,
			Text:      c,
			Embedding: vecs[i],
			CreatedAt: now,
		}
	}

	slog.Info("index: writing chunks", "notes_hash", notesHash, "chunks", len(records), "collection", ix.collection)
	removed, err := ix.store.ReplaceNotes(ctx, ix.collection, notesHash, records)
	if err != nil {
		return 0, fmt.Errorf("inserting chunks of %s: %w", notesHash, err)
	}
	if removed > 0 {
		slog.Debug("index: replaced previous generation", "notes_hash", notesHash, "removed", removed)
	}
	return len(records), nil
}

// Query returns up to topK records matching f, nearest first.
func (ix *Index) Query(ctx context.Context, vec []float32, topK int, f Filter) ([]ScoredRecord, error) {
	return ix.store.Search(ctx, ix.collection, vec, topK, f)
}
