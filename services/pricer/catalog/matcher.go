// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"sort"
	"unicode"
)

// Match confidence classes. A whole-word match scores exactBase plus the
// keyword length; a prefix match scores prefixBase plus the keyword length.
// Longer keywords therefore outrank shorter ones within a class, but the
// classes overlap: a prefix match on a keyword of 10+ characters reaches
// exactBase, so score alone does not identify the match class. Consumers
// that care (the fabric ambiguity rule) compare against exactBase by value.
const (
	exactBase  = 100
	prefixBase = 90
)

// Candidate is one ranked match from a table.
//
// Candidates are transient: produced and consumed within a single resolution
// step, never persisted.
type Candidate[V any] struct {
	Keyword    string
	Value      V
	Confidence int
}

// Match finds every table keyword present in the query and ranks the results.
//
// Description:
//
//	For each keyword the query is scanned for an occurrence starting at a
//	word edge. If the occurrence also ends at a word edge it is an exact
//	match (100 + len); if it runs into a trailing word character it is a
//	prefix match (90 + len). Results are ordered by confidence descending;
//	ties keep table insertion order, so equal-confidence ordering is
//	deterministic.
//
//	There is deliberately no fuzzy or edit-distance fallback here. Automatic
//	approximate correction at the table level silently resolved "3-seater"
//	to "4-seater" in production; typo tolerance belongs to the reasoning
//	agent, which can re-issue a corrected literal query.
//
// Inputs:
//   - query: Free text, already lower-cased by the caller.
//   - table: The keyword table to scan. May be nil or empty.
//
// Outputs:
//   - []Candidate[V]: Ranked matches, possibly empty. Never an error.
func Match[V any](query string, table *Table[V]) []Candidate[V] {
	if table.Len() == 0 || query == "" {
		return nil
	}

	var out []Candidate[V]
	for _, keyword := range table.Keys() {
		if keyword == "" {
			continue
		}
		conf := bestOccurrence(query, keyword)
		if conf == 0 {
			continue
		}
		value, _ := table.Get(keyword)
		out = append(out, Candidate[V]{Keyword: keyword, Value: value, Confidence: conf})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// bestOccurrence scans query for keyword and returns the strongest match
// class found, or 0 if the keyword does not occur at any word edge.
func bestOccurrence(query, keyword string) int {
	best := 0
	qr := []rune(query)
	kr := []rune(keyword)
	for i := 0; i+len(kr) <= len(qr); i++ {
		if !runesEqual(qr[i:i+len(kr)], kr) {
			continue
		}
		// Must start at a word edge.
		if i > 0 && isWordRune(qr[i-1]) {
			continue
		}
		end := i + len(kr)
		if end == len(qr) || !isWordRune(qr[end]) {
			return exactBase + len(keyword)
		}
		if best < prefixBase+len(keyword) {
			best = prefixBase + len(keyword)
		}
	}
	return best
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
