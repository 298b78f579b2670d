package retrieval

import (
	"context"
	"time"
)

// DefaultCollection is the collection study notes are indexed into.
const DefaultCollection = "study_notes"

// VectorStore is the interface for vector storage and nearest-neighbour
// search backends. The SQLite implementation does a brute-force scan, which
// is adequate for the handful of documents a single user indexes.
type VectorStore interface {
	// Insert adds records to the given collection.
	Insert(ctx context.Context, collection string, records []Record) error

	// DeleteWhere removes every record in the collection matching f and
	// returns how many were removed.
	DeleteWhere(ctx context.Context, collection string, f Filter) (int, error)

	// ReplaceNotes atomically swaps every record of notesHash in the
	// collection for records and returns how many old records were removed.
	ReplaceNotes(ctx context.Context, collection, notesHash string, records []Record) (int, error)

	// Search returns up to topK records matching f, nearest first.
	Search(ctx context.Context, collection string, vector []float32, topK int, f Filter) ([]ScoredRecord, error)

	// Count returns the number of records in the collection matching f.
	Count(ctx context.Context, collection string, f Filter) (int, error)

	// ListNotes returns one summary per notes_hash present in the collection.
	ListNotes(ctx context.Context, collection string) ([]NotesSummary, error)
}

// Filter restricts an operation to a subset of a collection. The zero value
// matches everything.
type Filter struct {
	NotesHash string
}

// Record is one indexed chunk.
type Record struct {
	ID        string
	NotesHash string
	ChunkID   int
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with its distance from the query vector attached.
// Distance is the squared Euclidean distance; for unit vectors it equals
// 2 - 2*cos(a, b), so smaller is nearer.
type ScoredRecord struct {
	Record
	Distance float64
}

// NotesSummary counts the chunks stored for one notes_hash.
type NotesSummary struct {
	NotesHash string `json:"notes_hash"`
	Chunks    int    `json:"chunks"`
}
