// Package stats provides the comparators used by the comparison engine,
// looked up by name: two correlations and a rank test.
package stats

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minSample is the smallest sample with a defined correlation p-value (n-2 > 0).
const minSample = 3

// Pearson is the product-moment correlation with a two-sided t-test p-value.
type Pearson struct{}

// Compare returns Pearson's r and its p-value.
func (Pearson) Compare(x, y []float64) (float64, float64, error) {
	if err := checkSample(x, y); err != nil {
		return 0, 0, err
	}
	return correlate(x, y)
}

// Spearman is the rank correlation: Pearson's r on average ranks.
type Spearman struct{}

// Compare returns Spearman's rho and its p-value.
func (Spearman) Compare(x, y []float64) (float64, float64, error) {
	if err := checkSample(x, y); err != nil {
		return 0, 0, err
	}
	return correlate(ranks(x), ranks(y))
}

func checkSample(x, y []float64) error {
	if len(x) != len(y) {
		return fmt.Errorf("sample lengths differ: %d and %d", len(x), len(y))
	}
	if len(x) < minSample {
		return fmt.Errorf("%w: %d pairs, need %d", domain.ErrComparisonFailure, len(x), minSample)
	}
	return nil
}

func correlate(x, y []float64) (float64, float64, error) {
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, 0, fmt.Errorf("%w: zero variance", domain.ErrComparisonFailure)
	}
	r = math.Max(-1, math.Min(1, r))
	return r, PValue(r, len(x)), nil
}

// PValue is the two-sided p-value of correlation r over n pairs under the
// Student t distribution with n-2 degrees of freedom.
func PValue(r float64, n int) float64 {
	if n < minSample {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

// ranks assigns 1-based average ranks, sharing the mean rank between ties.
func ranks(values []float64) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	out := make([]float64, len(values))
	for start := 0; start < len(idx); {
		end := start
		for end+1 < len(idx) && values[idx[end+1]] == values[idx[start]] {
			end++
		}
		avg := float64(start+end)/2 + 1
		for k := start; k <= end; k++ {
			out[idx[k]] = avg
		}
		start = end + 1
	}
	return out
}

var registry = map[string]domain.Comparator{
	"pearson":     Pearson{},
	"spearman":    Spearman{},
	"mannwhitney": MannWhitney{},
}

// Lookup returns the comparator registered under name.
func Lookup(name string) (domain.Comparator, error) {
	cmp, ok := registry[name]
	if !ok {
		return nil, &domain.ConfigurationError{
			Parameter: "comparator",
			Reason:    fmt.Sprintf("unknown comparator %q, expected one of %v", name, Names()),
		}
	}
	return cmp, nil
}

// Names lists the registered comparators in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
