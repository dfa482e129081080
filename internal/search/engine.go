// Package search implements the phrase and regexp matchers over a corpus
// snapshot.
package search

import (
	"iter"
	"regexp"
	"sort"
	"time"

	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/models"
)

// CandidateFilter narrows the set of files scanned for exact-mode phrase
// queries. Implementations must never exclude a file that could match;
// returning an error or a nil slice falls back to a full scan.
type CandidateFilter interface {
	CandidateFiles(words []string) ([]string, error)
}

// Engine answers search requests over the current corpus snapshot. It is
// safe for concurrent use: every call captures the snapshot once and the
// snapshot itself is immutable.
type Engine struct {
	corpus    *corpus.Corpus
	prefilter CandidateFilter // optional
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCandidateFilter installs a prefilter consulted for phrase queries
// without missing-word tolerance.
func WithCandidateFilter(f CandidateFilter) EngineOption {
	return func(e *Engine) { e.prefilter = f }
}

// NewEngine creates an engine over c.
func NewEngine(c *corpus.Corpus, opts ...EngineOption) *Engine {
	e := &Engine{corpus: c}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search validates q and returns a lazy sequence of matches in file order,
// then transcript order. Validation errors surface here, before any scan
// begins; the sequence itself cannot fail. Matches are produced one at a
// time, so a caller that stops consuming stops the scan.
func (e *Engine) Search(q *models.Query) (iter.Seq[models.Match], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	snap := e.corpus.Snapshot()
	if q.IsRegexp {
		re := regexp.MustCompile(q.Pattern) // Validate already compiled it
		return e.regexpSeq(snap, filesToScan(snap, q.File), re), nil
	}
	words := q.Words()
	files := e.phraseFiles(snap, q, words)
	return func(yield func(models.Match) bool) {
		for _, file := range files {
			if !scanTranscript(file, snap[file], words, q, yield) {
				return
			}
		}
	}, nil
}

// SearchAll runs every query and collects results as
// pattern -> file -> ordered intervals. All queries are validated up front,
// so an invalid one yields an error and no partial results.
func (e *Engine) SearchAll(queries []*models.Query) (map[string]map[string][]models.Interval, error) {
	for _, q := range queries {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	results := make(map[string]map[string][]models.Interval)
	for _, q := range queries {
		seq, err := e.Search(q)
		if err != nil {
			return nil, err
		}
		for m := range seq {
			addInterval(results, q.Pattern, m)
		}
	}
	return results, nil
}

// SearchRegexp matches pattern against every transcript (or only file, when
// non-empty) and groups the results by matched literal, then by file.
func (e *Engine) SearchRegexp(pattern, file string) (map[string]map[string][]models.Interval, error) {
	seq, err := e.Search(&models.Query{Pattern: pattern, IsRegexp: true, File: file})
	if err != nil {
		return nil, err
	}
	results := make(map[string]map[string][]models.Interval)
	for m := range seq {
		addInterval(results, m.Query, m)
	}
	return results, nil
}

// Respond materializes a search into the response shape shared by the HTTP
// handlers and the CLI.
func (e *Engine) Respond(q *models.Query) (*models.SearchResponse, error) {
	startTime := time.Now()
	seq, err := e.Search(q)
	if err != nil {
		return nil, err
	}
	matches := []models.Match{}
	for m := range seq {
		matches = append(matches, m)
	}
	return &models.SearchResponse{
		Matches:   matches,
		Total:     len(matches),
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     q.Pattern,
	}, nil
}

func addInterval(results map[string]map[string][]models.Interval, key string, m models.Match) {
	byFile := results[key]
	if byFile == nil {
		byFile = make(map[string][]models.Interval)
		results[key] = byFile
	}
	byFile[m.File] = append(byFile[m.File], models.Interval{Start: m.Start, End: m.End})
}

// phraseFiles returns the files a phrase query has to scan. The prefilter is
// only consulted when it cannot exclude a true match: every query word must
// appear verbatim in a matching file unless missing-word tolerance is on.
func (e *Engine) phraseFiles(snap map[string]*corpus.Transcript, q *models.Query, words []string) []string {
	if q.File != "" {
		return filesToScan(snap, q.File)
	}
	if e.prefilter == nil || q.MissingWordTolerance > 0 {
		return filesToScan(snap, "")
	}
	candidates, err := e.prefilter.CandidateFiles(words)
	if err != nil || candidates == nil {
		return filesToScan(snap, "")
	}
	out := make([]string, 0, len(candidates))
	for _, file := range candidates {
		if _, ok := snap[file]; ok {
			out = append(out, file)
		}
	}
	sort.Strings(out)
	return out
}

func filesToScan(snap map[string]*corpus.Transcript, only string) []string {
	if only != "" {
		if _, ok := snap[only]; ok {
			return []string{only}
		}
		return nil
	}
	files := make([]string, 0, len(snap))
	for file := range snap {
		files = append(files, file)
	}
	sort.Strings(files)
	return files
}
