package search

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/models"
)

func span(w string, start, end float64) models.WordSpan {
	return models.WordSpan{Word: w, Start: start, End: end}
}

func buildCorpus(t *testing.T, files map[string][]models.WordSpan) *corpus.Corpus {
	t.Helper()
	c := corpus.New()
	for file, spans := range files {
		tr, err := corpus.NewTranscript(file, spans)
		if err != nil {
			t.Fatalf("transcript %s: %v", file, err)
		}
		c.Set(file, tr)
	}
	return c
}

func collect(t *testing.T, e *Engine, q *models.Query) []models.Match {
	t.Helper()
	seq, err := e.Search(q)
	if err != nil {
		t.Fatalf("Search(%q): %v", q.Pattern, err)
	}
	var out []models.Match
	for m := range seq {
		out = append(out, m)
	}
	return out
}

func intervals(ms []models.Match) []models.Interval {
	var out []models.Interval
	for _, m := range ms {
		out = append(out, models.Interval{Start: m.Start, End: m.End})
	}
	return out
}

func TestSearch_ExactPhrase(t *testing.T) {
	e := NewEngine(buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("hello", 0.0, 0.3), span("world", 0.3, 0.6), span("again", 0.7, 1.0)},
	}))
	got := collect(t, e, &models.Query{Pattern: "hello world"})
	want := []models.Interval{{Start: 0.0, End: 0.6}}
	if !reflect.DeepEqual(intervals(got), want) {
		t.Errorf("intervals = %v, want %v", intervals(got), want)
	}
	if got[0].File != "a.wav" || got[0].Query != "hello world" {
		t.Errorf("match metadata = %+v", got[0])
	}
}

func TestSearch_TimingError(t *testing.T) {
	// 0.7s of silence between the two words.
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("hello", 0.0, 0.3), span("world", 1.0, 1.4)},
	})
	e := NewEngine(c)

	tests := []struct {
		name    string
		timing  float64
		matches int
	}{
		{"gap exceeds bound", 0.5, 0},
		{"gap within bound", 1.0, 1},
		{"gap equals bound", 0.7, 1},
		{"zero bound demands contiguity", 0.0, 0},
		{"negative bound treated as zero", -3.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, e, &models.Query{Pattern: "hello world", TimingError: tt.timing})
			if len(got) != tt.matches {
				t.Errorf("got %d matches, want %d", len(got), tt.matches)
			}
		})
	}
}

func TestSearch_GapRounding(t *testing.T) {
	// Offset arithmetic leaves the gap a hair over 0.5; the four-decimal
	// rounding of the comparison must not reject it.
	e := NewEngine(buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("x", 0.0, 0.1), span("y", 0.1+0.500000001, 0.8)},
	}))
	got := collect(t, e, &models.Query{Pattern: "x y", TimingError: 0.5})
	if len(got) != 1 {
		t.Errorf("got %d matches, want 1", len(got))
	}
}

func TestSearch_MissingWordTolerance(t *testing.T) {
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("a", 0, 1), span("b", 1, 2), span("c", 2, 3), span("d", 3, 4)},
	})
	e := NewEngine(c)

	t.Run("extra transcript token absorbed", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: "a c d", MissingWordTolerance: 1})
		want := []models.Interval{{Start: 0, End: 4}}
		if !reflect.DeepEqual(intervals(got), want) {
			t.Errorf("intervals = %v, want %v", intervals(got), want)
		}
	})
	t.Run("zero tolerance rejects", func(t *testing.T) {
		if got := collect(t, e, &models.Query{Pattern: "a c d"}); len(got) != 0 {
			t.Errorf("got %v, want none", got)
		}
	})
	t.Run("absent query word dropped", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: "a q b", MissingWordTolerance: 1})
		want := []models.Interval{{Start: 0, End: 2}}
		if !reflect.DeepEqual(intervals(got), want) {
			t.Errorf("intervals = %v, want %v", intervals(got), want)
		}
	})
	t.Run("final word must match", func(t *testing.T) {
		if got := collect(t, e, &models.Query{Pattern: "c d q", MissingWordTolerance: 1}); len(got) != 0 {
			t.Errorf("got %v, want none", got)
		}
	})
	t.Run("tolerance at query length is invalid", func(t *testing.T) {
		_, err := e.Search(&models.Query{Pattern: "a b", MissingWordTolerance: 2})
		var inv *models.InvalidQueryError
		if !errors.As(err, &inv) {
			t.Errorf("expected InvalidQueryError, got %v", err)
		}
	})
}

func TestSearch_Subsequence(t *testing.T) {
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {
			span("small", 0.0, 0.4), span("yellow", 0.4, 0.9),
			span("big", 0.9, 1.3), span("dog", 1.3, 1.6),
		},
	})
	e := NewEngine(c)

	t.Run("extras between matched words", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: "small dog", AllowSubsequence: true, TimingError: 2.0})
		want := []models.Interval{{Start: 0.0, End: 1.6}}
		if !reflect.DeepEqual(intervals(got), want) {
			t.Errorf("intervals = %v, want %v", intervals(got), want)
		}
	})
	t.Run("gap measured between matched tokens", func(t *testing.T) {
		// small..dog spans 0.9s of intervening speech; a tight bound on the
		// matched pair rejects even though adjacent tokens are contiguous.
		got := collect(t, e, &models.Query{Pattern: "small dog", AllowSubsequence: true, TimingError: 0.5})
		if len(got) != 0 {
			t.Errorf("got %v, want none", got)
		}
	})
	t.Run("off means no extras", func(t *testing.T) {
		if got := collect(t, e, &models.Query{Pattern: "small dog", TimingError: 2.0}); len(got) != 0 {
			t.Errorf("got %v, want none", got)
		}
	})
}

func TestSearch_Supersequence(t *testing.T) {
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {
			span("the", 0.0, 0.2), span("very", 0.2, 0.5),
			span("end", 0.5, 0.8), span("credits", 2.5, 2.9),
		},
	})
	e := NewEngine(c)

	t.Run("extras inside contiguous region", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: "the end", AllowSupersequence: true})
		want := []models.Interval{{Start: 0.0, End: 0.8}}
		if !reflect.DeepEqual(intervals(got), want) {
			t.Errorf("intervals = %v, want %v", intervals(got), want)
		}
	})
	t.Run("region contiguity enforced across extras", func(t *testing.T) {
		// "end credits" are 1.7s apart, so an absorbed extra cannot bridge it.
		got := collect(t, e, &models.Query{Pattern: "the credits", AllowSupersequence: true, TimingError: 0.5})
		if len(got) != 0 {
			t.Errorf("got %v, want none", got)
		}
	})
}

func TestSearch_CaseSensitivity(t *testing.T) {
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("Hello", 0.0, 0.5)},
	})
	e := NewEngine(c)
	if got := collect(t, e, &models.Query{Pattern: "hello"}); len(got) != 1 {
		t.Errorf("case-insensitive: got %d matches, want 1", len(got))
	}
	if got := collect(t, e, &models.Query{Pattern: "hello", CaseSensitive: true}); len(got) != 0 {
		t.Errorf("case-sensitive: got %d matches, want 0", len(got))
	}
	if got := collect(t, e, &models.Query{Pattern: "Hello", CaseSensitive: true}); len(got) != 1 {
		t.Errorf("case-sensitive exact: got %d matches, want 1", len(got))
	}
}

func TestSearch_NonOverlapping(t *testing.T) {
	// "go go go go" holds two non-overlapping "go go" matches, not three.
	e := NewEngine(buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("go", 0, 1), span("go", 1, 2), span("go", 2, 3), span("go", 3, 4)},
	}))
	got := collect(t, e, &models.Query{Pattern: "go go"})
	want := []models.Interval{{Start: 0, End: 2}, {Start: 2, End: 4}}
	if !reflect.DeepEqual(intervals(got), want) {
		t.Errorf("intervals = %v, want %v", intervals(got), want)
	}
}

func TestSearch_FileOrderAndRestriction(t *testing.T) {
	files := map[string][]models.WordSpan{
		"b.wav": {span("hi", 0, 1)},
		"a.wav": {span("hi", 2, 3)},
	}
	e := NewEngine(buildCorpus(t, files))

	got := collect(t, e, &models.Query{Pattern: "hi"})
	if len(got) != 2 || got[0].File != "a.wav" || got[1].File != "b.wav" {
		t.Errorf("expected deterministic file order, got %v", got)
	}

	got = collect(t, e, &models.Query{Pattern: "hi", File: "b.wav"})
	if len(got) != 1 || got[0].File != "b.wav" {
		t.Errorf("file restriction: got %v", got)
	}

	got = collect(t, e, &models.Query{Pattern: "hi", File: "missing.wav"})
	if len(got) != 0 {
		t.Errorf("unknown file: got %v, want none", got)
	}
}

func TestSearch_LazyEarlyStop(t *testing.T) {
	e := NewEngine(buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("x", 0, 1), span("x", 2, 3), span("x", 4, 5)},
	}))
	seq, err := e.Search(&models.Query{Pattern: "x"})
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 {
		t.Errorf("consumed %d matches, want 1", n)
	}
	// The sequence is restartable; a second full pass sees all matches.
	n = 0
	for range seq {
		n++
	}
	if n != 3 {
		t.Errorf("second pass saw %d matches, want 3", n)
	}
}

func TestSearch_Regexp(t *testing.T) {
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("cat", 0.0, 0.4), span("dog", 1.0, 1.4), span("dogs", 2.0, 2.6)},
	})
	e := NewEngine(c)

	t.Run("literal hits map to tokens", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: "dog", IsRegexp: true})
		want := []models.Interval{{Start: 1.0, End: 1.4}, {Start: 2.0, End: 2.6}}
		if !reflect.DeepEqual(intervals(got), want) {
			t.Errorf("intervals = %v, want %v", intervals(got), want)
		}
	})
	t.Run("span across separator covers both tokens", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: `cat\s+dog`, IsRegexp: true})
		want := []models.Interval{{Start: 0.0, End: 1.4}}
		if !reflect.DeepEqual(intervals(got), want) {
			t.Errorf("intervals = %v, want %v", intervals(got), want)
		}
	})
	t.Run("separator-only hit dropped", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: `\s`, IsRegexp: true})
		if len(got) != 0 {
			t.Errorf("got %v, want none", got)
		}
	})
	t.Run("matched literal carried on match", func(t *testing.T) {
		got := collect(t, e, &models.Query{Pattern: `dog\w+`, IsRegexp: true})
		if len(got) != 1 || got[0].Query != "dogs" {
			t.Errorf("got %v, want single match with literal dogs", got)
		}
	})
	t.Run("bad pattern rejected", func(t *testing.T) {
		_, err := e.Search(&models.Query{Pattern: "[", IsRegexp: true})
		var inv *models.InvalidQueryError
		if !errors.As(err, &inv) {
			t.Errorf("expected InvalidQueryError, got %v", err)
		}
	})
}

func TestSearchRegexp_GroupsByLiteral(t *testing.T) {
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("ab", 0, 1), span("cd", 1, 2)},
		"b.wav": {span("ab", 5, 6)},
	})
	e := NewEngine(c)
	got, err := e.SearchRegexp("[ac][bd]", "")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]map[string][]models.Interval{
		"ab": {
			"a.wav": {{Start: 0, End: 1}},
			"b.wav": {{Start: 5, End: 6}},
		},
		"cd": {
			"a.wav": {{Start: 1, End: 2}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchRegexp() = %v, want %v", got, want)
	}
}

func TestSearchAll_Shape(t *testing.T) {
	c := buildCorpus(t, map[string][]models.WordSpan{
		"a.wav": {span("red", 0, 1), span("blue", 1, 2)},
	})
	e := NewEngine(c)
	got, err := e.SearchAll([]*models.Query{
		{Pattern: "red"},
		{Pattern: "green"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]map[string][]models.Interval{
		"red": {"a.wav": {{Start: 0, End: 1}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SearchAll() = %v, want %v", got, want)
	}

	if _, err := e.SearchAll([]*models.Query{{Pattern: "ok"}, {Pattern: ""}}); err == nil {
		t.Error("expected validation error for empty pattern")
	}
}

type fixedFilter struct {
	files []string
	err   error
	calls int
}

func (f *fixedFilter) CandidateFiles(words []string) ([]string, error) {
	f.calls++
	return f.files, f.err
}

func TestSearch_CandidateFilter(t *testing.T) {
	files := map[string][]models.WordSpan{
		"a.wav": {span("hit", 0, 1)},
		"b.wav": {span("hit", 0, 1)},
	}

	t.Run("narrows scan", func(t *testing.T) {
		f := &fixedFilter{files: []string{"b.wav", "stale.wav"}}
		e := NewEngine(buildCorpus(t, files), WithCandidateFilter(f))
		got := collect(t, e, &models.Query{Pattern: "hit"})
		if len(got) != 1 || got[0].File != "b.wav" {
			t.Errorf("got %v, want only b.wav", got)
		}
	})
	t.Run("error falls back to full scan", func(t *testing.T) {
		f := &fixedFilter{err: errors.New("index offline")}
		e := NewEngine(buildCorpus(t, files), WithCandidateFilter(f))
		if got := collect(t, e, &models.Query{Pattern: "hit"}); len(got) != 2 {
			t.Errorf("got %d matches, want 2", len(got))
		}
	})
	t.Run("bypassed with missing-word tolerance", func(t *testing.T) {
		f := &fixedFilter{files: []string{}}
		e := NewEngine(buildCorpus(t, files), WithCandidateFilter(f))
		got := collect(t, e, &models.Query{Pattern: "zap hit", MissingWordTolerance: 1})
		if f.calls != 0 {
			t.Error("filter consulted for tolerant query")
		}
		if len(got) != 2 {
			t.Errorf("got %d matches, want 2", len(got))
		}
	})
}
