// Package indexer drives audio files through transcription and into the
// corpus, keyword index, and storage.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kikitori/kikitori/internal/audio"
	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/keyword"
	"github.com/kikitori/kikitori/internal/models"
	"github.com/kikitori/kikitori/internal/storage"
	"github.com/kikitori/kikitori/internal/timeline"
	"github.com/kikitori/kikitori/internal/transcribe"
)

// DefaultMaxSegmentBytes bounds one transcription upload's PCM payload.
const DefaultMaxSegmentBytes = 100 << 20

// Indexer transcribes audio files and installs the results in the corpus.
// Files are identified by base name, matching how searches address them.
type Indexer struct {
	corpus          *corpus.Corpus
	transcriber     transcribe.Transcriber
	storage         storage.Storage // optional; nil disables persistence
	keywordIndex    *keyword.Index  // optional
	maxSegmentBytes int64
	segmentDir      string
	extensions      []string
	logger          *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithStorage enables transcript persistence and unchanged-file skipping.
func WithStorage(s storage.Storage) Option {
	return func(idx *Indexer) { idx.storage = s }
}

// WithKeywordIndex keeps a word-presence index in sync with the corpus.
func WithKeywordIndex(k *keyword.Index) Option {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithLogger sets a logger for per-file progress events.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithMaxSegmentBytes overrides the transcription upload limit.
func WithMaxSegmentBytes(n int64) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.maxSegmentBytes = n
		}
	}
}

// WithSegmentDir sets where temporary audio chunks are written.
func WithSegmentDir(dir string) Option {
	return func(idx *Indexer) { idx.segmentDir = dir }
}

// NewIndexer creates an indexer over c using t for speech recognition.
func NewIndexer(c *corpus.Corpus, t transcribe.Transcriber, opts ...Option) *Indexer {
	idx := &Indexer{
		corpus:          c,
		transcriber:     t,
		maxSegmentBytes: DefaultMaxSegmentBytes,
		segmentDir:      os.TempDir(),
		extensions:      []string{".wav"},
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexFile transcribes path and installs its transcript. Unchanged files
// (same mtime and size as the stored copy) are not re-transcribed; their
// stored transcript is re-installed if the corpus lost it.
func (idx *Indexer) IndexFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	if !idx.extensionAllowed(absPath) {
		return fmt.Errorf("extension %q not supported", filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", absPath)
	}
	file := filepath.Base(absPath)

	if skip, err := idx.shouldSkipFile(ctx, file, info); err != nil {
		return err
	} else if skip {
		idx.logger.Debug("skipping unchanged file", zap.String("file", file))
		return idx.restoreStored(ctx, file)
	}

	jobID := uuid.New().String()
	idx.logger.Info("transcribing file",
		zap.String("file", file),
		zap.String("job_id", jobID))

	spans, err := idx.transcribeFile(ctx, absPath, file)
	if err != nil {
		return err
	}
	tr, err := corpus.NewTranscript(file, spans)
	if err != nil {
		return err
	}

	idx.corpus.Set(file, tr)
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.IndexTranscript(file, tr.Projection().Text); err != nil {
			return fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	if idx.storage != nil {
		meta := storage.FileMeta{ModTime: info.ModTime(), Size: info.Size()}
		if err := idx.storage.SaveTranscript(ctx, file, meta, spans); err != nil {
			return fmt.Errorf("failed to persist transcript: %w", err)
		}
	}

	idx.logger.Info("file indexed",
		zap.String("file", file),
		zap.String("job_id", jobID),
		zap.Int("words", len(spans)))
	return nil
}

// transcribeFile splits the audio to fit the upload limit, transcribes each
// chunk, and reassembles one file-relative span sequence.
func (idx *Indexer) transcribeFile(ctx context.Context, absPath, file string) ([]models.WordSpan, error) {
	segDir, err := os.MkdirTemp(idx.segmentDir, "segments-")
	if err != nil {
		return nil, fmt.Errorf("failed to create segment dir: %w", err)
	}
	defer os.RemoveAll(segDir)

	chunks, err := audio.Split(absPath, segDir, idx.maxSegmentBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to split audio: %w", err)
	}
	if len(chunks) > 1 {
		idx.logger.Debug("file split for upload",
			zap.String("file", file),
			zap.Int("segments", len(chunks)))
	}

	segments := make([]timeline.Segment, 0, len(chunks))
	for _, chunk := range chunks {
		f, err := os.Open(chunk.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open segment %d: %w", chunk.Index, err)
		}
		spans, err := idx.transcriber.Transcribe(ctx, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to transcribe segment %d: %w", chunk.Index, err)
		}
		segments = append(segments, timeline.Segment{
			Index:  chunk.Index,
			Offset: chunk.Offset,
			Spans:  spans,
		})
	}
	return timeline.Reconstruct(file, segments)
}

// shouldSkipFile reports whether file is already stored with the same mtime
// and size.
func (idx *Indexer) shouldSkipFile(ctx context.Context, file string, info os.FileInfo) (bool, error) {
	if idx.storage == nil {
		return false, nil
	}
	meta, ok, err := idx.storage.FileMeta(ctx, file)
	if err != nil || !ok {
		return false, err
	}
	return meta.ModTime.Equal(info.ModTime()) && meta.Size == info.Size(), nil
}

// restoreStored re-installs a stored transcript into the corpus and keyword
// index, covering the case where persistence survived a restart but the
// in-memory state did not.
func (idx *Indexer) restoreStored(ctx context.Context, file string) error {
	if _, ok := idx.corpus.Get(file); ok {
		return nil
	}
	spans, err := idx.storage.LoadTranscript(ctx, file)
	if err != nil {
		return fmt.Errorf("failed to load stored transcript: %w", err)
	}
	tr, err := corpus.NewTranscript(file, spans)
	if err != nil {
		return err
	}
	idx.corpus.Set(file, tr)
	if idx.keywordIndex != nil {
		return idx.keywordIndex.IndexTranscript(file, tr.Projection().Text)
	}
	return nil
}

// IndexDirectory indexes every supported file under dir. Failures do not
// stop the walk; they are collected per file. Returns the number of files
// successfully indexed.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string) (int, map[string]error, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, nil, fmt.Errorf("not a directory: %s", absDir)
	}

	n := 0
	failures := make(map[string]error)
	walkErr := filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !idx.extensionAllowed(path) {
			return nil
		}
		finfo, statErr := os.Stat(path) // resolves symlinks
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if err := idx.IndexFile(ctx, path); err != nil {
			failures[filepath.Base(path)] = err
			idx.logger.Warn("failed to index file",
				zap.String("file", filepath.Base(path)),
				zap.Error(err))
			return nil
		}
		n++
		return nil
	})
	if len(failures) == 0 {
		failures = nil
	}
	return n, failures, walkErr
}

// DeleteFile removes file from the corpus, keyword index, and storage.
func (idx *Indexer) DeleteFile(ctx context.Context, file string) error {
	idx.corpus.Delete(file)
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.Delete(file); err != nil {
			return fmt.Errorf("failed to delete from keyword index: %w", err)
		}
	}
	if idx.storage != nil {
		if err := idx.storage.DeleteTranscript(ctx, file); err != nil {
			return fmt.Errorf("failed to delete stored transcript: %w", err)
		}
	}
	idx.logger.Debug("file removed", zap.String("file", file))
	return nil
}

// LoadPersisted installs every stored transcript into the corpus and keyword
// index. A malformed stored transcript is reported per file and does not
// block the rest.
func (idx *Indexer) LoadPersisted(ctx context.Context) (int, map[string]error, error) {
	if idx.storage == nil {
		return 0, nil, nil
	}
	stored, err := idx.storage.LoadAll(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to load stored transcripts: %w", err)
	}
	n := 0
	failures := make(map[string]error)
	for file, spans := range stored {
		tr, err := corpus.NewTranscript(file, spans)
		if err != nil {
			failures[file] = err
			continue
		}
		idx.corpus.Set(file, tr)
		if idx.keywordIndex != nil {
			if err := idx.keywordIndex.IndexTranscript(file, tr.Projection().Text); err != nil {
				failures[file] = err
				continue
			}
		}
		n++
	}
	if len(failures) == 0 {
		failures = nil
	}
	return n, failures, nil
}

func (idx *Indexer) extensionAllowed(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range idx.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
