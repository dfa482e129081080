// Package utils provides shared utilities for text formatting and logging.
package utils

import (
	"fmt"
	"math"
)

// Truncate returns s truncated to maxLen characters, with "..." appended if
// truncated. If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// FormatSeconds renders a second offset as h:mm:ss.cc for display alongside
// search results.
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	centis := int(math.Round((seconds - float64(whole)) * 100))
	if centis == 100 {
		whole++
		centis = 0
	}
	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, centis)
}
