// Package cli renders search results for terminal consumption.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/kikitori/kikitori/internal/models"
	"github.com/kikitori/kikitori/pkg/utils"
)

// OutputFormat is the format for search result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteMatches writes a phrase search response to w in the given format.
func WriteMatches(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}
	fmt.Fprintf(w, "\nFound %d matches for %q in %dms\n\n",
		response.Total, response.Query, response.QueryTime)
	for _, m := range response.Matches {
		fmt.Fprintf(w, "%s  %s - %s\n",
			m.File, utils.FormatSeconds(m.Start), utils.FormatSeconds(m.End))
	}
	return nil
}

// WriteRegexpResults writes a regexp search response to w in the given
// format. Text output groups intervals under each matched literal and file.
func WriteRegexpResults(w io.Writer, response *models.RegexpResponse, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	}
	fmt.Fprintf(w, "\nPattern %q matched %d distinct strings in %dms\n\n",
		response.Pattern, len(response.Results), response.QueryTime)
	for _, literal := range sortedKeys(response.Results) {
		fmt.Fprintf(w, "%q:\n", literal)
		byFile := response.Results[literal]
		for _, file := range sortedKeys(byFile) {
			for _, iv := range byFile[file] {
				fmt.Fprintf(w, "  %s  %s - %s\n",
					file, utils.FormatSeconds(iv.Start), utils.FormatSeconds(iv.End))
			}
		}
	}
	return nil
}

// WriteTranscript writes one file's word spans as a timing table.
func WriteTranscript(w io.Writer, file string, spans []models.WordSpan, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"file": file, "words": spans})
	}
	fmt.Fprintf(w, "\n%s (%d words)\n\n", file, len(spans))
	for _, s := range spans {
		fmt.Fprintf(w, "%s - %s  %s\n",
			utils.FormatSeconds(s.Start), utils.FormatSeconds(s.End), s.Word)
	}
	return nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
