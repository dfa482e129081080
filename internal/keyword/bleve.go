// Package keyword maintains a Bleve index over flattened transcript text,
// used to narrow phrase searches to files that contain every query word.
package keyword

import (
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// transcriptDoc is the shape indexed per file.
type transcriptDoc struct {
	Words string `json:"words"`
}

// Index is a word-presence index keyed by file identifier. It never answers
// a search by itself; it only rules files out, so it must stay correct on
// the exclusion side: a file containing every query word is always returned.
type Index struct {
	index bleve.Index
}

// transcriptAnalyzer tokenizes and lowercases, nothing more. Stemming or
// stop-word removal would let the index exclude files that actually contain
// a query word verbatim.
const transcriptAnalyzer = "transcript_words"

func indexMapping() (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(transcriptAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}
	docMapping := bleve.NewDocumentMapping()
	wordsField := bleve.NewTextFieldMapping()
	wordsField.Analyzer = transcriptAnalyzer
	docMapping.AddFieldMappingsAt("words", wordsField)
	im.AddDocumentMapping("transcript", docMapping)
	im.DefaultType = "transcript"
	im.DefaultMapping = docMapping
	return im, nil
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reused so unchanged files survive restarts without re-indexing.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open keyword index: %w", openErr)
		}
		return &Index{index: idx}, nil
	}
	im, err := indexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &Index{index: idx}, nil
}

// NewMemIndex creates an in-memory index, used by the server when no index
// path is configured and throughout the tests.
func NewMemIndex() (*Index, error) {
	im, err := indexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &Index{index: idx}, nil
}

// IndexTranscript records the flattened text of file, replacing any previous
// entry for the same file.
func (x *Index) IndexTranscript(file, text string) error {
	return x.index.Index(file, &transcriptDoc{Words: text})
}

// Delete removes file from the index.
func (x *Index) Delete(file string) error {
	return x.index.Delete(file)
}

// CandidateFiles returns every file whose transcript contains all of words.
// Word lookups are exact after lowercasing, matching the analyzer used at
// index time.
func (x *Index) CandidateFiles(words []string) ([]string, error) {
	if len(words) == 0 {
		return nil, nil
	}
	terms := make([]blevequery.Query, 0, len(words))
	for _, w := range words {
		tq := bleve.NewTermQuery(strings.ToLower(w))
		tq.SetField("words")
		terms = append(terms, tq)
	}
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(terms...))
	total, err := x.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("keyword doc count failed: %w", err)
	}
	req.Size = int(total)
	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	files := make([]string, 0, len(results.Hits))
	for _, hit := range results.Hits {
		files = append(files, hit.ID)
	}
	return files, nil
}

// DocCount returns the number of indexed files.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close releases the underlying index.
func (x *Index) Close() error {
	return x.index.Close()
}
