package models

// Interval is a start/end second pair within one audio file.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Match is one search hit: the audio file, the query text that produced the
// hit (for regexp searches, the literal matched substring), and the time
// interval the hit spans in the original audio.
type Match struct {
	File  string  `json:"file"`
	Query string  `json:"query"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SearchResponse is the response for a phrase search request.
type SearchResponse struct {
	Matches   []Match `json:"matches"`
	Total     int     `json:"total"`
	QueryTime int64   `json:"query_time_ms"`
	Query     string  `json:"query"`
}

// RegexpResponse is the response for a regexp search request: matched literal
// text -> audio file -> ordered intervals.
type RegexpResponse struct {
	Pattern   string                           `json:"pattern"`
	Results   map[string]map[string][]Interval `json:"results"`
	QueryTime int64                            `json:"query_time_ms"`
}
