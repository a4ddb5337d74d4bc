package ingest

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Header keywords per semantic field, strongest first. Matching is fuzzy so
// that real-world headers like "Total Purchase Value  July 25 against the
// Vendors (INR)" still resolve.
var (
	termKeywords   = []string{"payment terms", "payment term", "current payment terms", "net terms", "terms"}
	amountKeywords = []string{"total amount", "purchase value", "total purchase value", "amount", "value"}
	vendorKeywords = []string{"vendor name", "vendors", "vendor", "supplier"}
)

// SuggestMapping ranks the detected headers against per-field keyword lists
// and returns the best candidate for each semantic field (-1 when nothing
// plausibly matches). The result is a prefill; callers may override any
// column before parsing.
func SuggestMapping(headers []string) FieldMapping {
	amountCol := bestColumn(headers, amountKeywords, -1)
	// The amount column must not shadow the term column when a header like
	// "payment value" matches both keyword sets.
	termCol := bestColumn(headers, termKeywords, amountCol)
	vendorCol := bestColumn(headers, vendorKeywords, termCol, amountCol)
	return FieldMapping{TermCol: termCol, AmountCol: amountCol, VendorCol: vendorCol}
}

// bestColumn returns the header index with the strongest keyword match,
// skipping indices already claimed by another field.
func bestColumn(headers []string, keywords []string, taken ...int) int {
	best := -1
	bestScore := -1

	for i, header := range headers {
		if isTaken(i, taken) {
			continue
		}
		normalized := normalizeHeader(header)
		if normalized == "" {
			continue
		}
		for pos, keyword := range keywords {
			score := matchScore(keyword, normalized, pos)
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
	}
	return best
}

// matchScore prefers substring containment over fuzzy subsequence matches,
// and earlier keywords over later ones.
func matchScore(keyword, header string, keywordPos int) int {
	priority := len(termKeywords) + len(amountKeywords) - keywordPos
	if strings.Contains(header, keyword) {
		return 1000 + priority*10 - len(header)
	}
	rank := fuzzy.RankMatchNormalizedFold(keyword, header)
	if rank < 0 {
		return -1
	}
	// Lower Levenshtein-ish rank is a closer match.
	return 500 + priority*10 - rank
}

func isTaken(i int, taken []int) bool {
	for _, t := range taken {
		if t >= 0 && t == i {
			return true
		}
	}
	return false
}

func normalizeHeader(header string) string {
	return strings.Join(strings.Fields(strings.ToLower(header)), " ")
}
