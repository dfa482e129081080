// Package storage persists transcripts so indexed audio survives restarts.
package storage

import (
	"context"
	"time"

	"github.com/kikitori/kikitori/internal/models"
)

// FileMeta records the source audio file's identity at indexing time. The
// indexer compares it against the file on disk to skip unchanged files.
type FileMeta struct {
	ModTime time.Time
	Size    int64
}

// Storage defines transcript persistence operations.
type Storage interface {
	// SaveTranscript atomically replaces the stored spans and metadata for
	// file. An empty span slice is valid; it records a silent file.
	SaveTranscript(ctx context.Context, file string, meta FileMeta, spans []models.WordSpan) error
	// LoadTranscript returns the stored spans for file in sequence order.
	LoadTranscript(ctx context.Context, file string) ([]models.WordSpan, error)
	// LoadAll returns every stored transcript keyed by file.
	LoadAll(ctx context.Context) (map[string][]models.WordSpan, error)
	// FileMeta returns the stored metadata for file, reporting whether the
	// file is known.
	FileMeta(ctx context.Context, file string) (FileMeta, bool, error)
	// DeleteTranscript removes file and its spans.
	DeleteTranscript(ctx context.Context, file string) error

	// Stats
	CountFiles(ctx context.Context) (int64, error)
	CountSpans(ctx context.Context) (int64, error)

	Close() error
}
