package timeline

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kikitori/kikitori/internal/models"
)

func span(w string, start, end float64) models.WordSpan {
	return models.WordSpan{Word: w, Start: start, End: end}
}

func TestReconstruct_ShiftsByCumulativeOffsets(t *testing.T) {
	segments := []Segment{
		{Index: 0, Offset: 0, Spans: []models.WordSpan{span("a", 0.0, 0.5), span("b", 0.6, 1.0)}},
		{Index: 1, Offset: 5.0, Spans: []models.WordSpan{span("c", 0.1, 0.4)}},
		{Index: 2, Offset: 12.3, Spans: []models.WordSpan{span("d", 0.0, 0.2), span("e", 0.2, 0.9)}},
	}
	got, err := Reconstruct("big.wav", segments)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.WordSpan{
		span("a", 0.0, 0.5), span("b", 0.6, 1.0),
		span("c", 5.1, 5.4),
		span("d", 12.3, 12.5), span("e", 12.5, 13.2),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reconstruct() = %v, want %v", got, want)
	}
	if len(got) != 2+1+2 {
		t.Errorf("length = %d, want sum of segment lengths", len(got))
	}
}

func TestReconstruct_SplitFileMatchesUnsplitTiming(t *testing.T) {
	// Mirrors a file split at 0.5s: segment-local times plus the prior
	// segment's duration must equal the timings of an unsplit transcription.
	segments := []Segment{
		{Index: 0, Offset: 0, Spans: []models.WordSpan{
			span("This", 0.01, 0.05), span("is", 0.05, 0.08), span("some", 0.1, 0.2),
			span("garbage", 0.21, 0.26), span("This", 0.3, 0.4), span("in", 0.4, 0.5),
		}},
		{Index: 1, Offset: 0.5, Spans: []models.WordSpan{
			span("some", 0.01, 0.04), span("other", 0.4, 0.5), span("test", 0.6, 0.62),
		}},
	}
	got, err := Reconstruct("test.wav", segments)
	if err != nil {
		t.Fatal(err)
	}
	tail := got[len(got)-3:]
	want := []models.WordSpan{span("some", 0.51, 0.54), span("other", 0.9, 1.0), span("test", 1.1, 1.12)}
	if !reflect.DeepEqual(tail, want) {
		t.Errorf("shifted tail = %v, want %v", tail, want)
	}
}

func TestReconstruct_EmptySegmentKeepsContinuity(t *testing.T) {
	segments := []Segment{
		{Index: 0, Offset: 0, Spans: []models.WordSpan{span("a", 0.0, 0.3)}},
		{Index: 1, Offset: 4.0, Spans: nil}, // silence-only chunk
		{Index: 2, Offset: 8.0, Spans: []models.WordSpan{span("b", 0.5, 0.7)}},
	}
	got, err := Reconstruct("f.wav", segments)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.WordSpan{span("a", 0.0, 0.3), span("b", 8.5, 8.7)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reconstruct() = %v, want %v", got, want)
	}
}

func TestReconstruct_GapInSegmentIndices(t *testing.T) {
	segments := []Segment{
		{Index: 0, Offset: 0, Spans: []models.WordSpan{span("a", 0, 1)}},
		{Index: 2, Offset: 10, Spans: []models.WordSpan{span("b", 0, 1)}},
	}
	_, err := Reconstruct("f.wav", segments)
	var gap *models.OffsetGapError
	if !errors.As(err, &gap) {
		t.Fatalf("expected OffsetGapError, got %v", err)
	}
	if gap.Expected != 1 || gap.Got != 2 || gap.File != "f.wav" {
		t.Errorf("unexpected gap detail: %+v", gap)
	}
}

func TestOffsetsFromDurations(t *testing.T) {
	got := OffsetsFromDurations([]float64{0.5, 0.62, 1.0})
	want := []float64{0, 0.5, 1.12}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OffsetsFromDurations() = %v, want %v", got, want)
	}
	if len(OffsetsFromDurations(nil)) != 0 {
		t.Error("expected empty offsets for no durations")
	}
}
