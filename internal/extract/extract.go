// Package extract finds and validates tracking numbers in free text.
//
// Candidate extraction is deliberately high-recall: it only knows what a
// tracking number tends to look like, not which courier issued it.
// Precision comes from Confirm, which applies per-courier format and
// check-digit rules.
package extract

import (
	"regexp"
	"strings"
)

var (
	// Contiguous alphanumeric runs. Length and digit-content filters are
	// applied after matching so a 40-char run is rejected whole rather
	// than matched piecewise.
	alnumRunRe = regexp.MustCompile(`[A-Z0-9]+`)

	// Space-separated digit groups, e.g. "9400 1000 0000 0000 0000 00".
	digitGroupsRe = regexp.MustCompile(`\d{2,4}(?: \d{2,4}){3,}`)
)

const (
	minRunLen = 12
	maxRunLen = 34
)

// Candidates scans text for tracking-number-shaped substrings. Matching is
// case-insensitive. Results are deduplicated within one call, first-seen
// order preserved.
func Candidates(text string) []string {
	upper := strings.ToUpper(text)

	var out []string
	seen := make(map[string]struct{})
	add := func(c string) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	for _, m := range alnumRunRe.FindAllString(upper, -1) {
		if len(m) < minRunLen || len(m) > maxRunLen {
			continue
		}
		if !containsDigit(m) {
			continue
		}
		add(m)
	}

	for _, m := range digitGroupsRe.FindAllString(upper, -1) {
		add(m)
	}

	return out
}

func containsDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			return true
		}
	}
	return false
}
