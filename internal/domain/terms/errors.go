package terms

import (
	"fmt"
	"strings"
)

// InputError reports malformed numeric input, rejected before allocation
// begins rather than discovered mid-loop. Index is -1 for scalar fields.
type InputError struct {
	Field  string
	Index  int
	Reason string
}

func (e *InputError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid %s in group %d: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EmptyExtractionError is returned when every source row failed payment-term
// extraction. Sample carries up to a handful of the unmatched descriptions so
// the caller can diagnose the format.
type EmptyExtractionError struct {
	RowsTotal int
	Sample    []string
}

func (e *EmptyExtractionError) Error() string {
	if len(e.Sample) == 0 {
		return fmt.Sprintf("no payment terms extracted from %d rows", e.RowsTotal)
	}
	return fmt.Sprintf("no payment terms extracted from %d rows (samples: %s)",
		e.RowsTotal, strings.Join(e.Sample, "; "))
}
