package retrieval

import (
	"cmp"
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage and brute-force nearest-neighbour search
// backed by SQLite. This is the default implementation of VectorStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
// The vectors table must already exist (created via migrations).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// where builds the WHERE clause and arguments for a collection and filter.
func where(collection string, f Filter) (string, []any) {
	clause := "collection = ?"
	args := []any{collection}
	if f.NotesHash != "" {
		clause += " AND notes_hash = ?"
		args = append(args, f.NotesHash)
	}
	return clause, args
}

// Insert adds records to the vectors table in a single transaction.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	if err := insertTx(ctx, tx, collection, records); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ReplaceNotes deletes every record of notesHash and inserts records in one
// transaction. Either the new generation is stored or the old one is kept.
// A failed delete is logged and the insert still runs.
func (s *SQLiteStore) ReplaceNotes(ctx context.Context, collection, notesHash string, records []Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning replace transaction: %w", err)
	}

	var removed int
	clause, args := where(collection, Filter{NotesHash: notesHash})
	res, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE "+clause, args...)
	if err != nil {
		slog.Debug("vectors: delete of previous generation failed, continuing", "notes_hash", notesHash, "error", err)
	} else if n, err := res.RowsAffected(); err == nil {
		removed = int(n)
	}

	if err := insertTx(ctx, tx, collection, records); err != nil {
		tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing replace of %s: %w", notesHash, err)
	}
	return removed, nil
}

func insertTx(ctx context.Context, tx *sql.Tx, collection string, records []Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (collection, id, notes_hash, chunk_id, text_chunk, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		blob := encodeFloat32s(r.Embedding)
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.NotesHash, r.ChunkID, r.Text, blob, createdAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ID, err)
		}
	}
	return nil
}

// DeleteWhere removes all records in the collection matching f.
func (s *SQLiteStore) DeleteWhere(ctx context.Context, collection string, f Filter) (int, error) {
	clause, args := where(collection, f)
	res, err := s.db.ExecContext(ctx, "DELETE FROM vectors WHERE "+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// candidate holds only the sort key during the scan phase of Search.
// Full record details are fetched only for the top-K winners.
type candidate struct {
	ID        string
	NotesHash string
	ChunkID   int
	Distance  float64
}

// nearer orders candidates by distance, breaking ties by notes_hash and then
// chunk id so equal distances always rank the same way.
func nearer(a, b candidate) int {
	if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
		return c
	}
	if c := cmp.Compare(a.NotesHash, b.NotesHash); c != 0 {
		return c
	}
	return cmp.Compare(a.ChunkID, b.ChunkID)
}

// Search performs a brute-force scan over the matching vectors and returns
// the topK nearest records by squared Euclidean distance, nearest first.
// Rows whose dimension differs from the query are skipped.
func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, topK int, f Filter) ([]ScoredRecord, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}

	clause, args := where(collection, f)

	// Phase 1: scan only the sort key + embedding to find top-K candidates.
	rows, err := s.db.QueryContext(ctx, "SELECT id, notes_hash, chunk_id, embedding FROM vectors WHERE "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &candidateHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var c candidate
		var blob []byte
		if err := rows.Scan(&c.ID, &c.NotesHash, &c.ChunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
		}
		if len(buf) != len(vector) {
			continue
		}

		c.Distance = squaredL2(vector, buf)
		if h.Len() < topK {
			heap.Push(h, c)
		} else if nearer(c, (*h)[0]) < 0 {
			(*h)[0] = c
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full records only for the top-K IDs.
	top := make([]candidate, h.Len())
	for i := len(top) - 1; i >= 0; i-- {
		top[i] = heap.Pop(h).(candidate)
	}
	distances := make(map[string]float64, len(top))
	queryArgs := make([]any, 0, len(top)+1)
	queryArgs = append(queryArgs, collection)
	for _, c := range top {
		distances[c.ID] = c.Distance
		queryArgs = append(queryArgs, c.ID)
	}
	fullQuery := `SELECT id, notes_hash, chunk_id, text_chunk, embedding, created_at
		FROM vectors WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(top)-1) + `)`

	fullRows, err := s.db.QueryContext(ctx, fullQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("fetching top-K records: %w", err)
	}
	defer fullRows.Close()

	var results []ScoredRecord
	for fullRows.Next() {
		r, err := scanRecord(fullRows)
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredRecord{Record: r, Distance: distances[r.ID]})
	}
	if err := fullRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating full records: %w", err)
	}

	// The IN query doesn't preserve order.
	slices.SortFunc(results, func(a, b ScoredRecord) int {
		return nearer(
			candidate{Distance: a.Distance, NotesHash: a.NotesHash, ChunkID: a.ChunkID},
			candidate{Distance: b.Distance, NotesHash: b.NotesHash, ChunkID: b.ChunkID},
		)
	})

	return results, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	var blob []byte
	var createdAt string
	if err := rows.Scan(&r.ID, &r.NotesHash, &r.ChunkID, &r.Text, &blob, &createdAt); err != nil {
		return Record{}, fmt.Errorf("scanning full record: %w", err)
	}
	embedding, err := decodeFloat32s(blob)
	if err != nil {
		return Record{}, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
	}
	r.Embedding = embedding
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parsing created_at for id %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	return r, nil
}

// Count returns the number of records in the collection matching f.
func (s *SQLiteStore) Count(ctx context.Context, collection string, f Filter) (int, error) {
	clause, args := where(collection, f)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors WHERE "+clause, args...).Scan(&count)
	return count, err
}

// ListNotes returns per-notes_hash chunk counts, ordered by hash.
func (s *SQLiteStore) ListNotes(ctx context.Context, collection string) ([]NotesSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT notes_hash, COUNT(*) FROM vectors
		WHERE collection = ?
		GROUP BY notes_hash ORDER BY notes_hash`, collection)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var out []NotesSummary
	for rows.Next() {
		var n NotesSummary
		if err := rows.Scan(&n.NotesHash, &n.Chunks); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// squaredL2 returns the squared Euclidean distance between a and b, which
// must have the same length.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// candidateHeap is a max-heap of candidates: the farthest kept candidate sits
// at the root so it can be replaced when a nearer one shows up.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return nearer(h[i], h[j]) > 0 }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
