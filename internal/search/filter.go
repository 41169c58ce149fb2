package search

import (
	"regexp"
	"strings"
)

// irrelevantDomains are never company websites.
var irrelevantDomains = []string{
	"wikipedia.org", "youtube.com", "tiktok.com", "pinterest.com", "facebook.com",
	"instagram.com", "reddit.com", "twitter.com", "x.com", "linkedin.com",
	"amazon.com", "ebay.com", "alibaba.com", "apple.com", "google.com",
	"yelp.com", "glassdoor.com", "indeed.com", "quora.com", "medium.com",
	"bbb.org", "trustpilot.com",
	// directories and market research
	"thomasnet.com", "iqsdirectory.com", "globalspec.com", "mordorintelligence.com",
	"grandviewresearch.com", "statista.com", "ibisworld.com", "dnb.com",
	"zoominfo.com", "crunchbase.com", "ensun.com", "inven.ai",
	"marketsandmarkets.com", "made-in-china.com", "globalsources.com",
	"indiamart.com", "europages.com", "kompass.com", "yellowpages.com",
}

// directoryTitle matches listing pages rather than company sites.
var directoryTitle = regexp.MustCompile(`(?i)` +
	`(^top\s+\d+\s)` +
	`|(best\s+\d+\s)` +
	`|(\d+\s+best\s)` +
	`|(companies\s+in\s)` +
	`|(market\s+size)` +
	`|(market\s+report)` +
	`|(companies\s+list)` +
	`|(manufacturers\s*&\s*suppliers)` +
	`|(manufacturers,\s*factories)` +
	`|(manufacturers\s+and\s+suppliers)` +
	`|(\|\s*b2b\s)` +
	`|(suppliers\s+in\s+\w+$)` +
	`|(buy\s+or\s+sell)`)

var businessKeywords = []string{"manufacturer", "company", "factory", "supplier", "gmbh", "inc", "ltd", "corp"}

var schemePrefix = regexp.MustCompile(`(?i)^https?://(www\.)?`)

// EnhanceQuery biases a bare query toward manufacturing company results.
func EnhanceQuery(query string) string {
	lower := strings.ToLower(query)
	for _, w := range businessKeywords {
		if strings.Contains(lower, w) {
			return query
		}
	}
	return query + " manufacturer company"
}

// DomainOf returns the lowercased host of rawURL without scheme or "www.".
func DomainOf(rawURL string) string {
	rest := schemePrefix.ReplaceAllString(strings.TrimSpace(rawURL), "")
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}

// Relevant reports whether a hit may be a company website.
func Relevant(rawURL, title string) bool {
	domain := DomainOf(rawURL)
	for _, bad := range irrelevantDomains {
		if domain == bad || strings.HasSuffix(domain, "."+bad) {
			return false
		}
	}
	return !directoryTitle.MatchString(title)
}

// Filter drops irrelevant hits and keeps the first hit seen for each domain,
// returning at most limit results in input order.
func Filter(results []Result, limit int) []Result {
	if limit <= 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(results))
	out := make([]Result, 0, limit)
	for _, r := range results {
		if len(out) >= limit {
			break
		}
		if !Relevant(r.URL, r.Title) {
			continue
		}
		domain := DomainOf(r.URL)
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		r.Domain = domain
		out = append(out, r)
	}
	return out
}
