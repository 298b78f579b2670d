package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the vector index and the document
// ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "studyrag.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// DB exposes the underlying handle so the vector store can share the
// connection and its single-writer limit.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Documents ---

// SaveDocument inserts or replaces the ledger row for doc.NotesHash.
func (s *Store) SaveDocument(ctx context.Context, doc Document) error {
	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (notes_hash, title, notes_len, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(notes_hash) DO UPDATE SET
			title = excluded.title,
			notes_len = excluded.notes_len,
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at`,
		doc.NotesHash, doc.Title, doc.NotesLen, doc.ChunkCount, indexedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *Store) GetDocument(ctx context.Context, notesHash string) (Document, error) {
	var d Document
	var indexedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT notes_hash, title, notes_len, chunk_count, indexed_at
		FROM documents WHERE notes_hash = ?`, notesHash,
	).Scan(&d.NotesHash, &d.Title, &d.NotesLen, &d.ChunkCount, &indexedAt)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, indexedAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing indexed_at: %w", err)
	}
	d.IndexedAt = t
	return d, nil
}

// ListDocuments returns up to limit documents, most recently indexed first.
// A limit <= 0 returns all of them.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]Document, error) {
	query := `SELECT notes_hash, title, notes_len, chunk_count, indexed_at
		FROM documents ORDER BY indexed_at DESC, notes_hash ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var d Document
		var indexedAt string
		if err := rows.Scan(&d.NotesHash, &d.Title, &d.NotesLen, &d.ChunkCount, &indexedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, indexedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing indexed_at: %w", err)
		}
		d.IndexedAt = t
		results = append(results, d)
	}
	return results, rows.Err()
}

// DeleteDocument removes the ledger row and every vector stored under
// notesHash in one transaction. It returns the number of vectors removed.
func (s *Store) DeleteDocument(ctx context.Context, notesHash string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning delete transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE notes_hash = ?`, notesHash)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("deleting document %s: %w", notesHash, err)
	}
	docs, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM vectors WHERE notes_hash = ?`, notesHash)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("deleting vectors for %s: %w", notesHash, err)
	}
	vecs, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if docs == 0 && vecs == 0 {
		tx.Rollback()
		return 0, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete of %s: %w", notesHash, err)
	}
	return int(vecs), nil
}
