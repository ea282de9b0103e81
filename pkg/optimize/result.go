package optimize

import (
	"fmt"

	"github.com/testpack/testpack/pkg/coverage"
)

// Result is the outcome of one greedy solve: the selected tests in pick
// order and the union coverage they achieve.
type Result struct {
	Selections []*coverage.TestWithCoverage

	covered        *coverage.Bitmap
	numProbePoints int
	selected       map[string]struct{}
}

func newResult(selections []*coverage.TestWithCoverage, covered *coverage.Bitmap, numProbePoints int) *Result {
	r := &Result{
		Selections:     selections,
		covered:        covered,
		numProbePoints: numProbePoints,
		selected:       make(map[string]struct{}, len(selections)),
	}
	for _, s := range selections {
		r.selected[s.ID] = struct{}{}
	}
	return r
}

// Contains reports whether the test id was selected. Filter predicates
// are built on this.
func (r *Result) Contains(id string) bool {
	_, ok := r.selected[id]
	return ok
}

// CoveredFraction returns the union coverage of the selection.
func (r *Result) CoveredFraction() float64 {
	if r.numProbePoints == 0 {
		return 0
	}
	return float64(r.covered.Cardinality()) / float64(r.numProbePoints)
}

// TotalCost returns the summed cost of the selection in milliseconds.
func (r *Result) TotalCost() int64 {
	var total int64
	for _, s := range r.Selections {
		total += s.Cost
	}
	return total
}

// Describe returns a human-readable plan summary.
func (r *Result) Describe() string {
	return fmt.Sprintf("%d tests selected, achieving %2.1f%% coverage in approximately %d ms",
		len(r.Selections), r.CoveredFraction()*100, r.TotalCost())
}
