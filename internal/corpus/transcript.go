// Package corpus holds immutable per-file transcripts and the swappable
// corpus snapshot they live in.
package corpus

import (
	"sync"

	"github.com/kikitori/kikitori/internal/models"
)

// Transcript is the ordered, immutable word span sequence of one audio file.
// The flattened text projection is computed on first use and cached for the
// lifetime of the transcript; re-indexing a file installs a new transcript
// and with it a fresh cache.
type Transcript struct {
	spans []models.WordSpan

	projectOnce sync.Once
	projection  *Projection
}

// NewTranscript validates spans against the transcript invariants and wraps
// them. The slice is copied, so callers may keep mutating theirs. Violations
// are construction-time failures, not deferred to search time.
func NewTranscript(file string, spans []models.WordSpan) (*Transcript, error) {
	for i, s := range spans {
		switch {
		case s.Word == "":
			return nil, &models.MalformedSpanError{File: file, Index: i, Reason: "empty word"}
		case s.Start > s.End:
			return nil, &models.MalformedSpanError{File: file, Index: i, Reason: "start after end"}
		case i > 0 && s.Start < spans[i-1].Start:
			return nil, &models.MalformedSpanError{File: file, Index: i, Reason: "start precedes previous span"}
		}
	}
	cp := make([]models.WordSpan, len(spans))
	copy(cp, spans)
	return &Transcript{spans: cp}, nil
}

// Len returns the number of word spans.
func (t *Transcript) Len() int {
	return len(t.spans)
}

// Span returns the word span at index i.
func (t *Transcript) Span(i int) models.WordSpan {
	return t.spans[i]
}

// Spans returns a copy of the span sequence.
func (t *Transcript) Spans() []models.WordSpan {
	cp := make([]models.WordSpan, len(t.spans))
	copy(cp, t.spans)
	return cp
}

// Projection returns the cached flattened-text view, building it on first use.
func (t *Transcript) Projection() *Projection {
	t.projectOnce.Do(func() {
		t.projection = project(t.spans)
	})
	return t.projection
}
