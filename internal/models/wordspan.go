// Package models defines core data structures for word spans, queries, and matches.
package models

// WordSpan is one recognized token together with its time interval, in seconds,
// relative to the start of the audio file it was recognized in.
type WordSpan struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Shifted returns a copy of the span with both bounds moved by offset seconds.
func (s WordSpan) Shifted(offset float64) WordSpan {
	return WordSpan{Word: s.Word, Start: s.Start + offset, End: s.End + offset}
}
