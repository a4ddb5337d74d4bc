// Package terms implements the payment-terms optimization core: vendor
// purchases grouped by their current payment term, and a greedy allocator
// that redistributes term-days across groups to hit a target vendor-weighted
// average within global bounds.
package terms

import (
	"math"
	"sort"
)

const (
	// DefaultEpsilon is the numeric-tolerance floor for the allocation loop.
	// It absorbs float accumulation error; it is not a business threshold.
	DefaultEpsilon = 1e-9

	// DefaultInterestRate is the annualized rate applied to cash-inventory
	// improvement when a request does not override it.
	DefaultInterestRate = 0.0515
)

// TermGroup is one row per distinct current payment term observed in the
// source data.
type TermGroup struct {
	CurrentTerm float64 `json:"current_term"`
	VendorCount float64 `json:"vendor_count"`
	TotalAmount float64 `json:"total_amount"`
}

// OptimizationRequest is the full input to a single allocation run. The
// optimizer holds no state between calls; the caller owns both request and
// result.
type OptimizationRequest struct {
	Groups        []TermGroup `json:"groups"`
	TargetAverage float64     `json:"target_average"`
	LowerBound    float64     `json:"lower_bound"`
	UpperBound    float64     `json:"upper_bound"`

	// InterestRate and Epsilon fall back to the optimizer defaults when zero.
	InterestRate float64 `json:"interest_rate,omitempty"`
	Epsilon      float64 `json:"epsilon,omitempty"`
}

// GroupAllocation is the allocated term for one group plus its derived
// financial metrics.
type GroupAllocation struct {
	TermGroup

	TargetTerm               float64 `json:"target_term"`
	WeightedCurrentValue     float64 `json:"weighted_current_value"`
	WeightedTargetValue      float64 `json:"weighted_target_value"`
	TermChange               float64 `json:"term_change"`
	DailyPayableRate         float64 `json:"daily_payable_rate"`
	CashInventoryImprovement float64 `json:"cash_inventory_improvement"`
	ForegoneInterest         float64 `json:"foregone_interest"`
}

// Allocation is the result of one allocation run. An unreachable target is an
// expected outcome, not an error: Feasible flips to false and Shortfall
// carries the residual weighted-day mass that could not be placed.
type Allocation struct {
	Rows             []GroupAllocation `json:"rows"`
	Feasible         bool              `json:"feasible"`
	RequestedAverage float64           `json:"requested_average"`
	AchievedAverage  float64           `json:"achieved_average"`
	Shortfall        float64           `json:"shortfall"`
	TotalVendors     float64           `json:"total_vendors"`
	TotalAmount      float64           `json:"total_amount"`
}

// Optimizer allocates payment terms. It is a pure function of its inputs plus
// the configured defaults and is safe for concurrent use.
type Optimizer struct {
	interestRate float64
	epsilon      float64
}

// NewOptimizer creates an optimizer with the given defaults. Zero values fall
// back to DefaultInterestRate and DefaultEpsilon.
func NewOptimizer(interestRate, epsilon float64) *Optimizer {
	if interestRate == 0 {
		interestRate = DefaultInterestRate
	}
	if epsilon == 0 {
		epsilon = DefaultEpsilon
	}
	return &Optimizer{interestRate: interestRate, epsilon: epsilon}
}

// Optimize produces a target term for every group such that L <= target <= U,
// extending highest amount-per-vendor groups first until the vendor-weighted
// average reaches the requested target or every group saturates at U.
//
// Malformed numeric input is rejected up front with an *InputError. A target
// that cannot be reached within the bounds is NOT an error: the allocation is
// returned best-effort with Feasible=false and the shortfall reported. There
// is deliberately no up-front feasibility check; infeasibility is discovered
// by residual need after the loop.
func (o *Optimizer) Optimize(req OptimizationRequest) (*Allocation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	eps := req.Epsilon
	if eps == 0 {
		eps = o.epsilon
	}
	rate := req.InterestRate
	if rate == 0 {
		rate = o.interestRate
	}

	groups := req.Groups
	n := len(groups)
	lower, upper := req.LowerBound, req.UpperBound

	totalVendors := 0.0
	totalAmount := 0.0
	for _, g := range groups {
		totalVendors += g.VendorCount
		totalAmount += g.TotalAmount
	}

	// Required weighted-day mass, and what remains after starting every
	// group at the lower bound.
	required := req.TargetAverage * totalVendors
	need := required - totalVendors*lower

	// Priority: amount per vendor, descending. max(count,1) keeps
	// zero-vendor groups in the ordering without dividing by zero; they can
	// never absorb mass anyway.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return priorityRatio(groups[order[a]]) > priorityRatio(groups[order[b]])
	})

	targets := make([]float64, n)
	for i := range targets {
		targets[i] = lower
	}

	for _, i := range order {
		if need <= eps {
			break
		}
		vendors := groups[i].VendorCount
		if vendors <= 0 {
			continue
		}
		capacity := (upper - targets[i]) * vendors
		take := math.Min(capacity, need)
		if take > 0 {
			targets[i] += take / vendors
			need -= take
		}
	}

	achievedSum := 0.0
	for i, g := range groups {
		achievedSum += g.VendorCount * targets[i]
	}
	achieved := 0.0
	if totalVendors > 0 {
		achieved = achievedSum / totalVendors
	}

	feasible := need <= eps
	shortfall := 0.0
	if !feasible {
		shortfall = need
	}

	rows := make([]GroupAllocation, n)
	for i, g := range groups {
		rows[i] = deriveRow(g, targets[i], rate)
	}

	return &Allocation{
		Rows:             rows,
		Feasible:         feasible,
		RequestedAverage: req.TargetAverage,
		AchievedAverage:  achieved,
		Shortfall:        shortfall,
		TotalVendors:     totalVendors,
		TotalAmount:      totalAmount,
	}, nil
}

func priorityRatio(g TermGroup) float64 {
	return g.TotalAmount / math.Max(g.VendorCount, 1)
}

func validateRequest(req OptimizationRequest) error {
	if !isFinite(req.TargetAverage) {
		return &InputError{Field: "target_average", Index: -1, Reason: "must be finite"}
	}
	if !isFinite(req.LowerBound) || !isFinite(req.UpperBound) {
		return &InputError{Field: "bounds", Index: -1, Reason: "must be finite"}
	}
	if req.LowerBound > req.UpperBound {
		return &InputError{Field: "bounds", Index: -1, Reason: "lower bound exceeds upper bound"}
	}
	if req.Epsilon < 0 || !isFinite(req.Epsilon) {
		return &InputError{Field: "epsilon", Index: -1, Reason: "must be non-negative and finite"}
	}
	if req.InterestRate < 0 || !isFinite(req.InterestRate) {
		return &InputError{Field: "interest_rate", Index: -1, Reason: "must be non-negative and finite"}
	}

	seen := make(map[float64]struct{}, len(req.Groups))
	for i, g := range req.Groups {
		if !isFinite(g.CurrentTerm) {
			return &InputError{Field: "current_term", Index: i, Reason: "must be finite"}
		}
		if !isFinite(g.VendorCount) || g.VendorCount < 0 {
			return &InputError{Field: "vendor_count", Index: i, Reason: "must be finite and non-negative"}
		}
		if !isFinite(g.TotalAmount) || g.TotalAmount < 0 {
			return &InputError{Field: "total_amount", Index: i, Reason: "must be finite and non-negative"}
		}
		if _, dup := seen[g.CurrentTerm]; dup {
			return &InputError{Field: "current_term", Index: i, Reason: "duplicate current term"}
		}
		seen[g.CurrentTerm] = struct{}{}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
