// Package timeline merges per-segment recognition output into file-global time.
package timeline

import (
	"math"

	"github.com/kikitori/kikitori/internal/models"
)

// Segment is the recognition output of one audio segment: its position in the
// file's split order, the cumulative start offset of the segment within the
// file in seconds, and the recognized word spans in segment-local time.
type Segment struct {
	Index  int
	Offset float64
	Spans  []models.WordSpan
}

// Reconstruct merges segments into one word span sequence in file-global time
// by shifting every span by its segment's offset and concatenating in segment
// order. Segment indices must be contiguous from zero; a missing or reordered
// segment would silently shift all later timestamps, so it is reported as an
// OffsetGapError instead. A segment with no spans (silence-only chunk)
// contributes nothing but does not break continuity.
func Reconstruct(file string, segments []Segment) ([]models.WordSpan, error) {
	total := 0
	for _, seg := range segments {
		total += len(seg.Spans)
	}
	out := make([]models.WordSpan, 0, total)
	for i, seg := range segments {
		if seg.Index != i {
			return nil, &models.OffsetGapError{File: file, Expected: i, Got: seg.Index}
		}
		for _, s := range seg.Spans {
			shifted := s.Shifted(seg.Offset)
			shifted.Start = round2(shifted.Start)
			shifted.End = round2(shifted.End)
			out = append(out, shifted)
		}
	}
	return out, nil
}

// OffsetsFromDurations converts per-segment durations into cumulative start
// offsets: segment i starts where segments 0..i-1 end. Segments may have
// unequal durations, so offsets are accumulated rather than derived from a
// fixed segment length.
func OffsetsFromDurations(durations []float64) []float64 {
	offsets := make([]float64, len(durations))
	var acc float64
	for i, d := range durations {
		offsets[i] = acc
		acc += d
	}
	return offsets
}

// Recognizer timings carry sub-millisecond float noise; timestamps are kept
// at centisecond precision like the recognizers themselves report.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
