// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kikitori/kikitori/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	// end is a reserved word in SQL, hence start_sec/end_sec.
	schema := `
	CREATE TABLE IF NOT EXISTS transcript_files (
		file TEXT PRIMARY KEY,
		mtime_ns INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS word_spans (
		file TEXT NOT NULL,
		seq INTEGER NOT NULL,
		word TEXT NOT NULL,
		start_sec REAL NOT NULL,
		end_sec REAL NOT NULL,
		PRIMARY KEY (file, seq),
		FOREIGN KEY (file) REFERENCES transcript_files(file) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_word_spans_file ON word_spans(file);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveTranscript replaces the stored spans and metadata for file in one
// transaction.
func (s *SQLiteStorage) SaveTranscript(ctx context.Context, file string, meta FileMeta, spans []models.WordSpan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transcript_files (file, mtime_ns, size_bytes) VALUES (?, ?, ?)
		 ON CONFLICT(file) DO UPDATE SET mtime_ns = excluded.mtime_ns,
		                                 size_bytes = excluded.size_bytes,
		                                 indexed_at = CURRENT_TIMESTAMP`,
		file, meta.ModTime.UnixNano(), meta.Size,
	); err != nil {
		return fmt.Errorf("failed to upsert file row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM word_spans WHERE file = ?`, file); err != nil {
		return fmt.Errorf("failed to clear old spans: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO word_spans (file, seq, word, start_sec, end_sec) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, span := range spans {
		if _, err := stmt.ExecContext(ctx, file, i, span.Word, span.Start, span.End); err != nil {
			return fmt.Errorf("failed to insert span %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadTranscript returns the stored spans for file in sequence order.
func (s *SQLiteStorage) LoadTranscript(ctx context.Context, file string) ([]models.WordSpan, error) {
	var known int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transcript_files WHERE file = ?`, file,
	).Scan(&known); err != nil {
		return nil, err
	}
	if known == 0 {
		return nil, fmt.Errorf("transcript not found: %s", file)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT word, start_sec, end_sec FROM word_spans WHERE file = ? ORDER BY seq`, file,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	spans := []models.WordSpan{}
	for rows.Next() {
		var span models.WordSpan
		if err := rows.Scan(&span.Word, &span.Start, &span.End); err != nil {
			return nil, err
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

// LoadAll returns every stored transcript keyed by file. Files with no spans
// appear with an empty slice.
func (s *SQLiteStorage) LoadAll(ctx context.Context) (map[string][]models.WordSpan, error) {
	out := make(map[string][]models.WordSpan)

	fileRows, err := s.db.QueryContext(ctx, `SELECT file FROM transcript_files`)
	if err != nil {
		return nil, err
	}
	defer fileRows.Close()
	for fileRows.Next() {
		var file string
		if err := fileRows.Scan(&file); err != nil {
			return nil, err
		}
		out[file] = []models.WordSpan{}
	}
	if err := fileRows.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT file, word, start_sec, end_sec FROM word_spans ORDER BY file, seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var file string
		var span models.WordSpan
		if err := rows.Scan(&file, &span.Word, &span.Start, &span.End); err != nil {
			return nil, err
		}
		out[file] = append(out[file], span)
	}
	return out, rows.Err()
}

// FileMeta returns the stored metadata for file.
func (s *SQLiteStorage) FileMeta(ctx context.Context, file string) (FileMeta, bool, error) {
	var mtimeNS, size int64
	err := s.db.QueryRowContext(ctx,
		`SELECT mtime_ns, size_bytes FROM transcript_files WHERE file = ?`, file,
	).Scan(&mtimeNS, &size)
	if err == sql.ErrNoRows {
		return FileMeta{}, false, nil
	}
	if err != nil {
		return FileMeta{}, false, err
	}
	return FileMeta{ModTime: time.Unix(0, mtimeNS), Size: size}, true, nil
}

// DeleteTranscript removes file and, via the cascade, its spans.
func (s *SQLiteStorage) DeleteTranscript(ctx context.Context, file string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transcript_files WHERE file = ?`, file)
	return err
}

// CountFiles returns the number of stored transcripts.
func (s *SQLiteStorage) CountFiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript_files`).Scan(&count)
	return count, err
}

// CountSpans returns the total number of stored word spans.
func (s *SQLiteStorage) CountSpans(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM word_spans`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
