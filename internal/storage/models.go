package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is the bookkeeping row for one indexed generation of notes.
// Chunk vectors live in the vectors table under the same notes_hash.
type Document struct {
	NotesHash  string    `json:"notes_hash"`
	Title      string    `json:"title"`
	NotesLen   int       `json:"notes_len"`
	ChunkCount int       `json:"chunks"`
	IndexedAt  time.Time `json:"indexed_at"`
}
