package terms

// payableNormalizationDays is the fixed period used to convert a group's
// total amount into a daily payable rate. A business convention, not a
// calendar computation.
const payableNormalizationDays = 30.0

// deriveRow computes the per-group financial metrics for an allocated term.
// Each field depends only on the fields computed before it, and the whole set
// is recomputed on every run; nothing here is cached between allocations.
func deriveRow(g TermGroup, targetTerm, interestRate float64) GroupAllocation {
	row := GroupAllocation{
		TermGroup:  g,
		TargetTerm: targetTerm,
	}
	row.WeightedCurrentValue = g.CurrentTerm * g.TotalAmount
	row.WeightedTargetValue = targetTerm * g.TotalAmount
	row.TermChange = targetTerm - g.CurrentTerm
	row.DailyPayableRate = g.TotalAmount / payableNormalizationDays
	row.CashInventoryImprovement = row.TermChange * row.DailyPayableRate
	row.ForegoneInterest = row.CashInventoryImprovement * interestRate
	return row
}
