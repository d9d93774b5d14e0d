package stats

import (
	"fmt"
	"math"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"gonum.org/v1/gonum/stat/distuv"
)

// exactLimit is the sample size below which, without ties, the exact U
// distribution is used instead of the normal approximation.
const exactLimit = 8

// MannWhitney is the two-sided Mann-Whitney U rank test of whether x and y
// come from the same distribution. The pairing of x and y is ignored.
type MannWhitney struct{}

// Compare returns the U statistic of x and its two-sided p-value.
func (MannWhitney) Compare(x, y []float64) (float64, float64, error) {
	n1, n2 := len(x), len(y)
	if n1 == 0 || n2 == 0 {
		return 0, 0, fmt.Errorf("%w: empty sample", domain.ErrComparisonFailure)
	}
	combined := append(append(make([]float64, 0, n1+n2), x...), y...)
	r := ranks(combined)
	var rankSum float64
	for _, v := range r[:n1] {
		rankSum += v
	}
	u1 := rankSum - float64(n1*(n1+1))/2
	u := math.Max(u1, float64(n1*n2)-u1)

	ties := tieTerm(r)
	var p float64
	if n1 < exactLimit && n2 < exactLimit && ties == 0 {
		p = 2 * exactSurvival(int(u), n1, n2)
	} else {
		n := float64(n1 + n2)
		variance := float64(n1*n2) / 12 * ((n + 1) - ties/(n*(n-1)))
		if variance <= 0 {
			return 0, 0, fmt.Errorf("%w: all values tied", domain.ErrComparisonFailure)
		}
		z := (u - float64(n1*n2)/2 - 0.5) / math.Sqrt(variance)
		p = 2 * distuv.UnitNormal.Survival(z)
	}
	return u1, math.Min(p, 1), nil
}

// tieTerm is the sum of t^3-t over groups of t tied ranks.
func tieTerm(r []float64) float64 {
	counts := make(map[float64]int, len(r))
	for _, v := range r {
		counts[v]++
	}
	var sum float64
	for _, t := range counts {
		sum += float64(t*t*t - t)
	}
	return sum
}

// exactSurvival is P(U >= u) for samples of n1 and n2 untied values.
func exactSurvival(u, n1, n2 int) float64 {
	counts := uCounts(n1, n2)
	var tail, total float64
	for k, c := range counts {
		total += c
		if k >= u {
			tail += c
		}
	}
	return tail / total
}

// uCounts returns, for each U of the first sample, how many orderings of n1
// and n2 untied values produce it.
func uCounts(n1, n2 int) []float64 {
	size := n1*n2 + 1
	prev := make([][]float64, n2+1)
	for i := 0; i <= n1; i++ {
		cur := make([][]float64, n2+1)
		for j := 0; j <= n2; j++ {
			cur[j] = make([]float64, size)
			if i == 0 || j == 0 {
				cur[j][0] = 1
				continue
			}
			// The largest value comes from x and beats all j values of y,
			// or it comes from y and adds nothing.
			for k := range cur[j] {
				if k >= j {
					cur[j][k] += prev[j][k-j]
				}
				cur[j][k] += cur[j-1][k]
			}
		}
		prev = cur
	}
	return prev[n2]
}
