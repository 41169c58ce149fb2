package service

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"it": {}, "this": {}, "that": {}, "we": {}, "our": {}, "they": {}, "their": {}, "what": {}, "how": {},
	"which": {}, "who": {}, "does": {}, "do": {}, "company": {}, "companies": {},
}

// mergeResults keeps the best score per chunk id.
func mergeResults(dst map[string]*SearchResult, results []*SearchResult) {
	for _, r := range results {
		if r == nil {
			continue
		}
		if existing, ok := dst[r.ID]; !ok || r.Score > existing.Score {
			dst[r.ID] = r
		}
	}
}

// sortResultsByScore orders merged results by descending score, then id so
// equal scores stay deterministic.
func sortResultsByScore(results map[string]*SearchResult) []*SearchResult {
	out := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// queryVariants splits a compound query into its parts plus a keyword-only
// form, without repeats and without the original query itself.
func queryVariants(query string, limit int) []string {
	clean := strings.TrimSpace(query)
	if limit <= 0 || clean == "" {
		return nil
	}

	seen := map[string]struct{}{strings.ToLower(clean): {}}
	var variants []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		key := strings.ToLower(candidate)
		if candidate == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, candidate)
	}

	for _, part := range splitQueryParts(clean) {
		add(part)
	}
	add(keywordQuery(clean))

	if len(variants) > limit {
		variants = variants[:limit]
	}
	return variants
}

func splitQueryParts(query string) []string {
	var parts []string
	chunks := strings.FieldsFunc(query, func(r rune) bool {
		switch r {
		case ',', ';', '/', '|', ':', '?', '!', '(', ')':
			return true
		}
		return false
	})
	for _, chunk := range chunks {
		for _, sub := range strings.Split(chunk, " and ") {
			if sub = strings.TrimSpace(sub); sub != "" {
				parts = append(parts, sub)
			}
		}
	}
	return parts
}

func keywordQuery(query string) string {
	var tokens []string
	for _, token := range strings.FieldsFunc(query, unicode.IsSpace) {
		if _, ok := stopwords[strings.ToLower(token)]; ok {
			continue
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}
