package search

import (
	"iter"
	"regexp"

	"github.com/kikitori/kikitori/internal/corpus"
	"github.com/kikitori/kikitori/internal/models"
)

// regexpSeq matches re against the flattened text of each transcript and
// yields one match per regexp hit, carrying the matched literal and the time
// interval of the minimal covering token range. Hits that fall entirely on
// separator bytes resolve to no token and are dropped.
func (e *Engine) regexpSeq(snap map[string]*corpus.Transcript, files []string, re *regexp.Regexp) iter.Seq[models.Match] {
	return func(yield func(models.Match) bool) {
		for _, file := range files {
			tr := snap[file]
			p := tr.Projection()
			for _, loc := range re.FindAllStringIndex(p.Text, -1) {
				first, last, ok := p.TokensForRange(loc[0], loc[1])
				if !ok {
					continue
				}
				m := models.Match{
					File:  file,
					Query: p.Text[loc[0]:loc[1]],
					Start: tr.Span(first).Start,
					End:   tr.Span(last).End,
				}
				if !yield(m) {
					return
				}
			}
		}
	}
}
