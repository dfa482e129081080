package models

import "fmt"

// MalformedSpanError reports a word span that violates the transcript
// invariants: empty word, start > end, or a start preceding the previous
// span's start. Raised at transcript construction and at persisted-index
// load; fatal to the affected file only.
type MalformedSpanError struct {
	File   string // audio file the span belongs to, empty when not yet known
	Index  int    // position of the offending span in the sequence
	Reason string
}

func (e *MalformedSpanError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("malformed word span in %q at index %d: %s", e.File, e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed word span at index %d: %s", e.Index, e.Reason)
}

// OffsetGapError reports non-contiguous segment indices during time
// reconstruction. A lost segment would silently shift every later timestamp,
// so the gap is surfaced instead of tolerated.
type OffsetGapError struct {
	File     string
	Expected int
	Got      int
}

func (e *OffsetGapError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("segment index gap in %q: expected segment %d, got %d", e.File, e.Expected, e.Got)
	}
	return fmt.Sprintf("segment index gap: expected segment %d, got %d", e.Expected, e.Got)
}

// InvalidQueryError is a caller error, rejected before any scan begins.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}
