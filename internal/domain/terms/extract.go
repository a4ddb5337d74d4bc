package terms

import (
	"math"
	"regexp"
	"sort"
	"strconv"
)

// DefaultValidTerms is the discrete term set observed in payables data. Any
// extracted day count is snapped to its nearest member.
var DefaultValidTerms = []float64{0, 7, 15, 21, 30}

// unmatchedSampleLimit caps how many failing descriptions an extraction
// result (or EmptyExtractionError) carries back for diagnostics.
const unmatchedSampleLimit = 5

var dayPattern = regexp.MustCompile(`\d+`)

// SourceRow is one vendor purchase row as produced by ingestion: a free-form
// payment-term description and an absolute-valued monetary amount.
type SourceRow struct {
	TermDescription string
	Amount          float64
}

// ExtractionResult is the grouped summary consumed by the optimizer, plus the
// accounting for rows that were silently excluded by extraction. The
// exclusion itself is deliberate policy; hiding the count is not.
type ExtractionResult struct {
	Groups          []TermGroup `json:"groups"`
	RowsTotal       int         `json:"rows_total"`
	RowsGrouped     int         `json:"rows_grouped"`
	ExcludedRows    int         `json:"excluded_rows"`
	UnmatchedSample []string    `json:"unmatched_sample,omitempty"`
}

// Extractor maps free-form payment-term descriptions to a fixed set of valid
// discrete terms: the first run of digits is read as a day count, then
// snapped to the nearest valid term (ties snap low).
type Extractor struct {
	validTerms []float64
}

// NewExtractor creates an extractor over the given valid term set. An empty
// set falls back to DefaultValidTerms.
func NewExtractor(validTerms []float64) *Extractor {
	if len(validTerms) == 0 {
		validTerms = DefaultValidTerms
	}
	terms := make([]float64, len(validTerms))
	copy(terms, validTerms)
	sort.Float64s(terms)
	return &Extractor{validTerms: terms}
}

// Extract aggregates source rows into per-term groups. Rows whose description
// yields no day count contribute to neither vendor count nor amount; they are
// counted and sampled instead. If every row fails, an *EmptyExtractionError
// is returned. Non-finite amounts are rejected before aggregation.
func (e *Extractor) Extract(rows []SourceRow) (*ExtractionResult, error) {
	type bucket struct {
		vendors float64
		amount  float64
	}

	result := &ExtractionResult{RowsTotal: len(rows)}
	buckets := make(map[float64]*bucket)

	for i, row := range rows {
		if math.IsNaN(row.Amount) || math.IsInf(row.Amount, 0) {
			return nil, &InputError{Field: "amount", Index: i, Reason: "must be finite"}
		}

		days, ok := extractDays(row.TermDescription)
		if !ok {
			result.ExcludedRows++
			if len(result.UnmatchedSample) < unmatchedSampleLimit {
				result.UnmatchedSample = append(result.UnmatchedSample, row.TermDescription)
			}
			continue
		}

		term := e.snap(days)
		b := buckets[term]
		if b == nil {
			b = &bucket{}
			buckets[term] = b
		}
		b.vendors++
		b.amount += math.Abs(row.Amount)
		result.RowsGrouped++
	}

	if result.RowsTotal > 0 && result.RowsGrouped == 0 {
		return nil, &EmptyExtractionError{RowsTotal: result.RowsTotal, Sample: result.UnmatchedSample}
	}

	terms := make([]float64, 0, len(buckets))
	for term := range buckets {
		terms = append(terms, term)
	}
	sort.Float64s(terms)

	result.Groups = make([]TermGroup, 0, len(terms))
	for _, term := range terms {
		b := buckets[term]
		result.Groups = append(result.Groups, TermGroup{
			CurrentTerm: term,
			VendorCount: b.vendors,
			TotalAmount: b.amount,
		})
	}
	return result, nil
}

// ValidTerms returns the extractor's term set in ascending order.
func (e *Extractor) ValidTerms() []float64 {
	terms := make([]float64, len(e.validTerms))
	copy(terms, e.validTerms)
	return terms
}

// extractDays reads the first run of digits in a description as a day count.
// "Net 30", "30 days", "NET30" and a bare "30" all yield 30.
func extractDays(description string) (float64, bool) {
	match := dayPattern.FindString(description)
	if match == "" {
		return 0, false
	}
	days, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return days, true
}

// snap returns the valid term nearest to days; an exact midpoint snaps to the
// lower candidate.
func (e *Extractor) snap(days float64) float64 {
	best := e.validTerms[0]
	bestDist := math.Abs(days - best)
	for _, term := range e.validTerms[1:] {
		dist := math.Abs(days - term)
		if dist < bestDist {
			best = term
			bestDist = dist
		}
	}
	return best
}
