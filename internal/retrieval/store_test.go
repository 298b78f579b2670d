package retrieval

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"
)

func insert(t *testing.T, s *SQLiteStore, collection string, recs ...Record) {
	t.Helper()
	if err := s.Insert(context.Background(), collection, recs); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func TestInsertAndSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insert(t, s, DefaultCollection, Record{
		ID:        "abc_0",
		NotesHash: "abc",
		ChunkID:   0,
		Text:      "Go is a compiled language",
		Embedding: unit(1, 0, 0),
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	results, err := s.Search(ctx, DefaultCollection, unit(1, 0, 0), 5, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.ID != "abc_0" || r.NotesHash != "abc" || r.ChunkID != 0 || r.Text != "Go is a compiled language" {
		t.Errorf("record mismatch: %+v", r.Record)
	}
	if r.Distance > 1e-9 {
		t.Errorf("distance to itself = %f, want 0", r.Distance)
	}
	if len(r.Embedding) != 3 {
		t.Errorf("embedding dim = %d, want 3", len(r.Embedding))
	}
}

func TestSearch_AscendingDistance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insert(t, s, DefaultCollection,
		Record{ID: "h_0", NotesHash: "h", ChunkID: 0, Text: "far", Embedding: unit(0, 1, 0)},
		Record{ID: "h_1", NotesHash: "h", ChunkID: 1, Text: "near", Embedding: unit(1, 0.1, 0)},
		Record{ID: "h_2", NotesHash: "h", ChunkID: 2, Text: "mid", Embedding: unit(1, 1, 0)},
		Record{ID: "h_3", NotesHash: "h", ChunkID: 3, Text: "opposite", Embedding: unit(-1, 0, 0)},
	)

	results, err := s.Search(ctx, DefaultCollection, unit(1, 0, 0), 3, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"near", "mid", "far"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].Text != w {
			t.Errorf("results[%d] = %q, want %q", i, results[i].Text, w)
		}
		if i > 0 && results[i].Distance < results[i-1].Distance {
			t.Errorf("distance decreased at %d: %f < %f", i, results[i].Distance, results[i-1].Distance)
		}
	}
	// Orthogonal unit vectors are at squared distance 2.
	if math.Abs(results[2].Distance-2) > 1e-5 {
		t.Errorf("orthogonal distance = %f, want 2", results[2].Distance)
	}
}

func TestSearch_TiesBrokenByChunkID(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, DefaultCollection,
		Record{ID: "h_2", NotesHash: "h", ChunkID: 2, Text: "two", Embedding: unit(1, 0)},
		Record{ID: "h_0", NotesHash: "h", ChunkID: 0, Text: "zero", Embedding: unit(1, 0)},
		Record{ID: "h_1", NotesHash: "h", ChunkID: 1, Text: "one", Embedding: unit(1, 0)},
	)
	results, err := s.Search(context.Background(), DefaultCollection, unit(1, 0), 2, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ChunkID != 0 || results[1].ChunkID != 1 {
		t.Errorf("got %+v, want chunks 0 then 1", results)
	}
}

func TestSearch_Filter(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, DefaultCollection,
		Record{ID: "a_0", NotesHash: "a", Text: "alpha", Embedding: unit(1, 0)},
		Record{ID: "b_0", NotesHash: "b", Text: "beta", Embedding: unit(1, 0.2)},
	)

	results, err := s.Search(context.Background(), DefaultCollection, unit(1, 0), 5, Filter{NotesHash: "b"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Text != "beta" {
		t.Errorf("filtered search returned %+v", results)
	}
}

func TestSearch_CollectionsAreSeparate(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, "other", Record{ID: "a_0", NotesHash: "a", Text: "elsewhere", Embedding: unit(1, 0)})

	results, err := s.Search(context.Background(), DefaultCollection, unit(1, 0), 5, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from another collection", len(results))
	}
}

func TestSearch_EmptyAndZeroTopK(t *testing.T) {
	s := openTestStore(t)
	results, err := s.Search(context.Background(), DefaultCollection, unit(1, 0), 5, Filter{})
	if err != nil || len(results) != 0 {
		t.Errorf("empty store: %v, %v", results, err)
	}

	insert(t, s, DefaultCollection, Record{ID: "a_0", NotesHash: "a", Text: "x", Embedding: unit(1, 0)})
	results, err = s.Search(context.Background(), DefaultCollection, unit(1, 0), 0, Filter{})
	if err != nil || len(results) != 0 {
		t.Errorf("topK 0: %v, %v", results, err)
	}
}

func TestSearch_SkipsDimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, DefaultCollection,
		Record{ID: "a_0", NotesHash: "a", Text: "3d", Embedding: unit(1, 0, 0)},
		Record{ID: "a_1", NotesHash: "a", ChunkID: 1, Text: "2d", Embedding: unit(1, 0)},
	)
	results, err := s.Search(context.Background(), DefaultCollection, unit(1, 0), 5, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Text != "2d" {
		t.Errorf("got %+v", results)
	}
}

func TestDeleteWhereAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insert(t, s, DefaultCollection,
		Record{ID: "a_0", NotesHash: "a", Text: "x", Embedding: unit(1, 0)},
		Record{ID: "a_1", NotesHash: "a", ChunkID: 1, Text: "y", Embedding: unit(1, 0)},
		Record{ID: "b_0", NotesHash: "b", Text: "z", Embedding: unit(1, 0)},
	)

	n, err := s.DeleteWhere(ctx, DefaultCollection, Filter{NotesHash: "a"})
	if err != nil {
		t.Fatalf("DeleteWhere: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	n, err = s.DeleteWhere(ctx, DefaultCollection, Filter{NotesHash: "missing"})
	if err != nil || n != 0 {
		t.Errorf("delete of nothing = %d, %v; want 0, nil", n, err)
	}

	total, err := s.Count(ctx, DefaultCollection, Filter{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 1 {
		t.Errorf("Count = %d, want 1", total)
	}
}

func TestListNotes(t *testing.T) {
	s := openTestStore(t)
	insert(t, s, DefaultCollection,
		Record{ID: "b_0", NotesHash: "b", Text: "x", Embedding: unit(1, 0)},
		Record{ID: "a_0", NotesHash: "a", Text: "y", Embedding: unit(1, 0)},
		Record{ID: "a_1", NotesHash: "a", ChunkID: 1, Text: "z", Embedding: unit(1, 0)},
	)
	notes, err := s.ListNotes(context.Background(), DefaultCollection)
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 2 || notes[0].NotesHash != "a" || notes[0].Chunks != 2 || notes[1].Chunks != 1 {
		t.Errorf("got %+v", notes)
	}
}

func TestEncodeDecodeFloat32s(t *testing.T) {
	in := []float32{0, 1.5, -2.25, float32(math.Pi)}
	out, err := decodeFloat32s(encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], in[i])
		}
	}
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestReplaceNotes_SwapsGeneration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insert(t, s, DefaultCollection,
		Record{ID: "a_0", NotesHash: "a", Text: "old0", Embedding: unit(1, 0)},
		Record{ID: "a_1", NotesHash: "a", ChunkID: 1, Text: "old1", Embedding: unit(1, 0)},
		Record{ID: "b_0", NotesHash: "b", Text: "other", Embedding: unit(1, 0)},
	)

	removed, err := s.ReplaceNotes(ctx, DefaultCollection, "a", []Record{
		{ID: "a_0", NotesHash: "a", Text: "new0", Embedding: unit(0, 1)},
	})
	if err != nil {
		t.Fatalf("ReplaceNotes: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	results, err := s.Search(ctx, DefaultCollection, unit(0, 1), 5, Filter{NotesHash: "a"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Text != "new0" {
		t.Errorf("got %+v, want only new0", results)
	}
	if n, _ := s.Count(ctx, DefaultCollection, Filter{NotesHash: "b"}); n != 1 {
		t.Errorf("other notes count = %d, want 1", n)
	}
}

func TestReplaceNotes_InsertFailureRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insert(t, s, DefaultCollection,
		Record{ID: "a_0", NotesHash: "a", Text: "old0", Embedding: unit(1, 0)},
		Record{ID: "a_1", NotesHash: "a", ChunkID: 1, Text: "old1", Embedding: unit(1, 0)},
	)

	// The duplicate primary key fails the second insert after the delete ran.
	_, err := s.ReplaceNotes(ctx, DefaultCollection, "a", []Record{
		{ID: "a_0", NotesHash: "a", Text: "new0", Embedding: unit(0, 1)},
		{ID: "a_0", NotesHash: "a", Text: "dup", Embedding: unit(0, 1)},
	})
	if err == nil {
		t.Fatal("expected error for duplicate id")
	}

	results, err := s.Search(ctx, DefaultCollection, unit(1, 0), 5, Filter{NotesHash: "a"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d records, want the previous 2", len(results))
	}
	for _, r := range results {
		if !strings.HasPrefix(r.Text, "old") {
			t.Errorf("record %s = %q, want previous generation", r.ID, r.Text)
		}
	}
}
