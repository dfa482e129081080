package corpus

import (
	"strings"

	"github.com/kikitori/kikitori/internal/models"
)

// separator joins span words in the flattened text. Regex engines operate on
// this text; the byte-offset map below translates their matches back to
// token indices.
const separator = ' '

// Projection is the flattened textual view of a transcript: span words joined
// by single spaces, plus a map from each byte offset of the text to the index
// of the originating token (separator bytes map to no token).
type Projection struct {
	Text    string
	tokenAt []int // per byte of Text; -1 on separator bytes
}

func project(spans []models.WordSpan) *Projection {
	var b strings.Builder
	tokenAt := make([]int, 0, totalBytes(spans))
	for i, s := range spans {
		if i > 0 {
			b.WriteByte(separator)
			tokenAt = append(tokenAt, -1)
		}
		b.WriteString(s.Word)
		for range len(s.Word) {
			tokenAt = append(tokenAt, i)
		}
	}
	return &Projection{Text: b.String(), tokenAt: tokenAt}
}

func totalBytes(spans []models.WordSpan) int {
	n := 0
	for _, s := range spans {
		n += len(s.Word) + 1
	}
	return n
}

// TokensForRange resolves the byte range [start, end) of Text to the minimal
// covering token range. Leading and trailing separator bytes are trimmed
// first; a range that covers only separators resolves to ok=false.
func (p *Projection) TokensForRange(start, end int) (first, last int, ok bool) {
	if start < 0 {
		start = 0
	}
	if end > len(p.tokenAt) {
		end = len(p.tokenAt)
	}
	for start < end && p.tokenAt[start] == -1 {
		start++
	}
	for end > start && p.tokenAt[end-1] == -1 {
		end--
	}
	if start >= end {
		return 0, 0, false
	}
	return p.tokenAt[start], p.tokenAt[end-1], true
}
