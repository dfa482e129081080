package search

import (
	"math"
	"strings"

	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/models"
)

// scanTranscript walks the transcript left to right and yields every
// non-overlapping phrase match. After a match the scan resumes at the token
// after the match's last token.
func scanTranscript(file string, tr *corpus.Transcript, words []string, q *models.Query, yield func(models.Match) bool) bool {
	for i := 0; i < tr.Len(); {
		last, ok := alignAt(tr, i, words, q)
		if !ok {
			i++
			continue
		}
		m := models.Match{
			File:  file,
			Query: q.Pattern,
			Start: tr.Span(i).Start,
			End:   tr.Span(last).End,
		}
		if !yield(m) {
			return false
		}
		i = last + 1
	}
	return true
}

// alignAt tries to align the query words against the transcript with the
// match region anchored at token i. It returns the index of the last matched
// token.
//
// Alignment is greedy. At each step the current transcript token is compared
// to the current query word; on a match both advance and the timing gap to
// the previous region token is checked. A mismatch is resolved, in order of
// preference, by spending missing-word tolerance to drop a query word the
// transcript never produced, by absorbing the transcript token when
// subsequence or supersequence mode permits extras, or by spending tolerance
// to absorb an unexpected transcript token inside the region. The final
// query word must always be matched, never dropped.
func alignAt(tr *corpus.Transcript, i int, words []string, q *models.Query) (last int, ok bool) {
	skips := q.MissingWordTolerance
	bound := q.TimingError
	if bound < 0 {
		bound = 0
	}
	allowExtra := q.AllowSubsequence || q.AllowSupersequence
	// In subsequence mode the gap bound applies between consecutive matched
	// tokens; otherwise the whole region must stay within bound token to token.
	gapFromMatched := q.AllowSubsequence

	qi := 0
	for qi < len(words) && !wordEq(tr.Span(i).Word, words[qi], q.CaseSensitive) {
		if skips == 0 {
			return 0, false
		}
		skips--
		qi++
	}
	if qi >= len(words) {
		return 0, false
	}
	qi++
	last = i
	prevMatched := i

	for ti := i + 1; qi < len(words); ti++ {
		if ti >= tr.Len() {
			return 0, false
		}
		s := tr.Span(ti)
		if wordEq(s.Word, words[qi], q.CaseSensitive) {
			ref := ti - 1
			if gapFromMatched {
				ref = prevMatched
			}
			if gap(tr.Span(ref), s) > bound {
				return 0, false
			}
			prevMatched = ti
			last = ti
			qi++
			continue
		}
		if skips > 0 && qi+1 < len(words) && wordEq(s.Word, words[qi+1], q.CaseSensitive) {
			// The query expects a word the transcript never produced; drop
			// it and reconsider this token against the next query word.
			skips--
			qi++
			ti--
			continue
		}
		if allowExtra {
			if !gapFromMatched && gap(tr.Span(ti-1), s) > bound {
				return 0, false
			}
			continue
		}
		if skips > 0 {
			// Unexpected transcript token inside the region.
			if gap(tr.Span(ti-1), s) > bound {
				return 0, false
			}
			skips--
			continue
		}
		return 0, false
	}
	return last, true
}

// gap is the silence between two consecutive region tokens, rounded to four
// decimals so that float noise from offset arithmetic cannot flip a
// comparison against the bound.
func gap(prev, next models.WordSpan) float64 {
	return math.Round((next.Start-prev.End)*10000) / 10000
}

func wordEq(transcriptWord, queryWord string, caseSensitive bool) bool {
	if caseSensitive {
		return transcriptWord == queryWord
	}
	return strings.EqualFold(transcriptWord, queryWord)
}
