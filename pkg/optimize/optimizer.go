// Package optimize selects a subset of tests that reaches a coverage,
// cost or count target via greedy weighted set cover over the coverage
// repository's snapshots.
package optimize

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/testpack/testpack/internal/output"
	"github.com/testpack/testpack/pkg/coverage"
	"github.com/testpack/testpack/pkg/framework"
)

// Optimizer reduces a request to an approximately optimal subset. Exactly
// one target may be set; with none, the optimizer passes requests through
// untouched.
type Optimizer struct {
	repo *coverage.Repository
	log  *log.Logger
	out  io.Writer

	targetTestCount *int
	targetCoverage  *float64
	targetCostMS    *int64
}

// New creates a disabled optimizer over the repository. Plan output goes
// to out; diagnostics to logger.
func New(repo *coverage.Repository, logger *log.Logger, out io.Writer) *Optimizer {
	return &Optimizer{repo: repo, log: logger, out: out}
}

// WithTargetTestCount selects exactly k tests maximising union coverage.
func (o *Optimizer) WithTargetTestCount(k int) *Optimizer {
	o.targetTestCount = &k
	return o
}

// WithTargetCoverage selects the smallest cost-prefix reaching fractional
// coverage c.
func (o *Optimizer) WithTargetCoverage(c float64) *Optimizer {
	o.targetCoverage = &c
	return o
}

// WithTargetCost selects the coverage-maximising subset whose total cost
// stays within budget milliseconds.
func (o *Optimizer) WithTargetCost(budgetMillis int64) *Optimizer {
	o.targetCostMS = &budgetMillis
	return o
}

// Enabled reports whether any target is set.
func (o *Optimizer) Enabled() bool {
	return o.targetTestCount != nil || o.targetCoverage != nil || o.targetCostMS != nil
}

func (o *Optimizer) describeGoal() string {
	switch {
	case o.targetTestCount != nil:
		return fmt.Sprintf("best test coverage with exactly %d tests run", *o.targetTestCount)
	case o.targetCoverage != nil:
		return fmt.Sprintf("quickest execution time for at least %2.1f%% test coverage", *o.targetCoverage*100)
	case o.targetCostMS != nil:
		return fmt.Sprintf("best test coverage for maximum execution time of %2.1fs", float64(*o.targetCostMS)/1000)
	default:
		return "nothing (optimizer disabled)"
	}
}

// FilterRequest reduces the request to the optimized subset. Degenerate
// inputs — no coverage data at all, or candidates with uniformly zero
// coverage — warn and return the request unfiltered.
func (o *Optimizer) FilterRequest(request *framework.Request) *framework.Request {
	if !o.Enabled() {
		return request
	}

	o.log.Info("Attempting to select a subset of tests", "goal", o.describeGoal())

	if o.repo.IsEmpty() || o.repo.NumProbePoints() == 0 {
		o.log.Warn("No coverage data found - test coverage cannot be optimized on this run")
		o.log.Warn(fmt.Sprintf("  (No coverage data was found in the %s folder)", coverage.DefaultStoreDir))
		return request
	}

	var candidates []*coverage.TestWithCoverage
	maxCoverage := 0.0
	for _, desc := range request.Descriptions() {
		twc := o.repo.Get(desc.ID())
		if twc == nil {
			twc = &coverage.TestWithCoverage{
				ID:       desc.ID(),
				Coverage: coverage.NewBitmap(o.repo.NumProbePoints()),
			}
		}
		candidates = append(candidates, twc)
		if c := twc.IndividualCoverage(); c > maxCoverage {
			maxCoverage = c
		}
	}

	if maxCoverage == 0 {
		o.log.Warn("No coverage data found - test coverage cannot be optimized on this run")
		o.log.Warn("   All test methods identified have 0% coverage:")
		for _, twc := range candidates {
			fmt.Fprint(o.out, output.Expandf("             %s @|yellow (%2.1f %%)|@\n", twc.ID, twc.IndividualCoverage()*100))
		}
		return request
	}

	result := o.Solve(candidates)

	o.log.Info("Optimizer complete", "plan", result.Describe())
	for _, sel := range result.Selections {
		fmt.Fprint(o.out, output.Expandf("    %-30s (%d ms)     %s %2.1f%%\n",
			sel.ID,
			sel.Cost,
			sel.Coverage.Bar(20),
			sel.IndividualCoverage()*100))
	}
	fmt.Fprint(o.out, "\n\n")

	return request.Filter(func(d framework.Description) bool {
		return result.Contains(d.ID())
	})
}

// Solve runs the greedy selection over the candidate pool.
func (o *Optimizer) Solve(candidates []*coverage.TestWithCoverage) *Result {
	pool := make([]*coverage.TestWithCoverage, len(candidates))
	copy(pool, candidates)
	covered := coverage.NewBitmap(o.repo.NumProbePoints())
	var selections []*coverage.TestWithCoverage

	switch {
	case o.targetTestCount != nil:
		selections = o.solveForTargetTestCount(pool, covered)
	case o.targetCoverage != nil:
		selections = o.solveForTargetCoverage(pool, covered)
	case o.targetCostMS != nil:
		selections = o.solveForTargetCost(pool, covered)
	}

	return newResult(selections, covered, o.repo.NumProbePoints())
}

func (o *Optimizer) solveForTargetTestCount(pool []*coverage.TestWithCoverage, covered *coverage.Bitmap) []*coverage.TestWithCoverage {
	var selections []*coverage.TestWithCoverage
	for i := 0; i < *o.targetTestCount && len(pool) > 0; i++ {
		var picked *coverage.TestWithCoverage
		pool, picked = search(pool, covered)
		selections = append(selections, picked)
	}
	return selections
}

func (o *Optimizer) solveForTargetCoverage(pool []*coverage.TestWithCoverage, covered *coverage.Bitmap) []*coverage.TestWithCoverage {
	var selections []*coverage.TestWithCoverage
	n := float64(o.repo.NumProbePoints())
	for float64(covered.Cardinality())/n < *o.targetCoverage && len(pool) > 0 {
		var picked *coverage.TestWithCoverage
		pool, picked = search(pool, covered)
		selections = append(selections, picked)
	}
	return selections
}

// solveForTargetCost keeps picking greedily and rolls back any pick that
// would overshoot the budget, discarding that candidate so cheaper later
// tests can still fit. Terminates when the pool is empty.
func (o *Optimizer) solveForTargetCost(pool []*coverage.TestWithCoverage, covered *coverage.Bitmap) []*coverage.TestWithCoverage {
	var selections []*coverage.TestWithCoverage
	var costSoFar int64
	for len(pool) > 0 {
		before := covered.Clone()
		var picked *coverage.TestWithCoverage
		pool, picked = search(pool, covered)

		costSoFar += picked.Cost
		if costSoFar > *o.targetCostMS {
			costSoFar -= picked.Cost
			covered.IntersectInPlace(before)
		} else {
			selections = append(selections, picked)
		}
	}
	return selections
}

// search scores every remaining candidate by newly-covered probes per
// millisecond, removes the best from the pool, unions its bitmap into
// covered, and returns it. Ties break by cost ascending, then id
// lexicographic — a total order, so selections are deterministic.
func search(pool []*coverage.TestWithCoverage, covered *coverage.Bitmap) ([]*coverage.TestWithCoverage, *coverage.TestWithCoverage) {
	coveredCardinality := covered.Cardinality()

	bestIdx := -1
	var bestScore float64
	for i, candidate := range pool {
		newlyCovered := float64(covered.UnionCardinality(candidate.Coverage) - coveredCardinality)
		score := newlyCovered / float64(effectiveCost(candidate))
		if bestIdx < 0 || better(score, candidate, bestScore, pool[bestIdx]) {
			bestIdx = i
			bestScore = score
		}
	}

	best := pool[bestIdx]
	pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	covered.UnionInPlace(best.Coverage)
	return pool, best
}

// effectiveCost treats zero-cost tests as one millisecond so scores stay
// finite.
func effectiveCost(t *coverage.TestWithCoverage) int64 {
	if t.Cost <= 0 {
		return 1
	}
	return t.Cost
}

func better(score float64, candidate *coverage.TestWithCoverage, bestScore float64, best *coverage.TestWithCoverage) bool {
	if score != bestScore {
		return score > bestScore
	}
	if effectiveCost(candidate) != effectiveCost(best) {
		return effectiveCost(candidate) < effectiveCost(best)
	}
	return candidate.ID < best.ID
}
