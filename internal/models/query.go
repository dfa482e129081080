package models

import (
	"regexp"
	"strings"
	"unicode"
)

// Query represents a single search request. Phrase-mode tolerance fields are
// ignored when IsRegexp is set.
type Query struct {
	Pattern              string  `json:"pattern"`
	IsRegexp             bool    `json:"is_regexp,omitempty"`
	CaseSensitive        bool    `json:"case_sensitive,omitempty"`
	TimingError          float64 `json:"timing_error,omitempty"`           // max tolerated silence gap in seconds; <= 0 demands contiguity
	MissingWordTolerance int     `json:"missing_word_tolerance,omitempty"` // query words allowed to be absent
	AllowSubsequence     bool    `json:"allow_subsequence,omitempty"`      // extra transcript words allowed between matched words
	AllowSupersequence   bool    `json:"allow_supersequence,omitempty"`    // extra transcript words allowed inside a contiguous region
	File                 string  `json:"file,omitempty"`                   // restrict search to one audio file
}

// Words returns the phrase-mode word sequence of the query: the pattern
// reduced to letters, digits and spaces, split on spaces, lowercased unless
// the query is case sensitive.
func (q *Query) Words() []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			return r
		}
		return -1
	}, q.Pattern)
	if !q.CaseSensitive {
		cleaned = strings.ToLower(cleaned)
	}
	return strings.Fields(cleaned)
}

// Validate rejects malformed queries before any scan begins.
// Phrase queries must contain at least one word and must not tolerate every
// word missing; regexp queries must compile.
func (q *Query) Validate() error {
	if strings.TrimSpace(q.Pattern) == "" {
		return &InvalidQueryError{Reason: "empty pattern"}
	}
	if q.IsRegexp {
		if _, err := regexp.Compile(q.Pattern); err != nil {
			return &InvalidQueryError{Reason: "bad pattern: " + err.Error()}
		}
		return nil
	}
	words := q.Words()
	if len(words) == 0 {
		return &InvalidQueryError{Reason: "pattern contains no searchable words"}
	}
	if q.MissingWordTolerance < 0 {
		return &InvalidQueryError{Reason: "missing word tolerance must not be negative"}
	}
	if q.MissingWordTolerance >= len(words) {
		return &InvalidQueryError{Reason: "missing word tolerance would allow every query word to be absent"}
	}
	return nil
}
