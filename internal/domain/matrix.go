package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a square column-by-column table of values.
type Matrix struct {
	Names []string
	Data  *mat.Dense
}

func newMatrix(names []string) Matrix {
	n := len(names)
	if n == 0 {
		return Matrix{Names: names}
	}
	return Matrix{Names: names, Data: mat.NewDense(n, n, nil)}
}

// At returns the value for the pair of named columns.
func (m Matrix) At(row, col string) float64 {
	i, j := slices.Index(m.Names, row), slices.Index(m.Names, col)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	return m.Data.At(i, j)
}

func frameColumns(f *Frame, columns []string) ([]string, error) {
	if len(columns) == 0 {
		return f.FloatColumns(), nil
	}
	for _, col := range columns {
		if err := requireFloatColumn(f, "columns", col); err != nil {
			return nil, err
		}
	}
	return columns, nil
}

// PairwiseOverlap counts, for every pair of float columns, the rows where both
// are non-null. The diagonal holds each column's non-null count. No columns
// selects all float columns.
func PairwiseOverlap(f *Frame, columns ...string) (Matrix, error) {
	cols, err := frameColumns(f, columns)
	if err != nil {
		return Matrix{}, err
	}
	m := newMatrix(cols)
	for i, a := range cols {
		for j := i; j < len(cols); j++ {
			x, y := f.floatCol(a), f.floatCol(cols[j])
			n := 0
			for row := range x {
				if !math.IsNaN(x[row]) && !math.IsNaN(y[row]) {
					n++
				}
			}
			m.Data.Set(i, j, float64(n))
			m.Data.Set(j, i, float64(n))
		}
	}
	return m, nil
}

// CorrelationMatrix applies cmp to every ordered pair of distinct columns,
// dropping rows where either is null. The diagonal and the pairs the
// comparator cannot evaluate are NaN.
func CorrelationMatrix(f *Frame, cmp Comparator, columns ...string) (stats, pvalues Matrix, err error) {
	cols, err := frameColumns(f, columns)
	if err != nil {
		return Matrix{}, Matrix{}, err
	}
	stats, pvalues = newMatrix(cols), newMatrix(cols)
	for i, a := range cols {
		for j, b := range cols {
			stats.Data.Set(i, j, math.NaN())
			pvalues.Data.Set(i, j, math.NaN())
			if i == j {
				continue
			}
			x, y := dropNullPairs(f.floatCol(a), f.floatCol(b))
			if len(x) < minPairs {
				continue
			}
			s, p, err := cmp.Compare(x, y)
			if errors.Is(err, ErrComparisonFailure) {
				continue
			}
			if err != nil {
				return Matrix{}, Matrix{}, fmt.Errorf("correlate %s with %s: %w", a, b, err)
			}
			stats.Data.Set(i, j, s)
			pvalues.Data.Set(i, j, p)
		}
	}
	return stats, pvalues, nil
}

func dropNullPairs(x, y []float64) ([]float64, []float64) {
	var outX, outY []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		outX = append(outX, x[i])
		outY = append(outY, y[i])
	}
	return outX, outY
}

// MedianIndex returns, per float column, the row whose percentile rank is
// closest to 0.5. Ties in value share their average rank and ties in distance
// resolve to the earliest row. Columns without values map to -1.
func MedianIndex(f *Frame, columns ...string) (map[string]int, error) {
	cols, err := frameColumns(f, columns)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(cols))
	for _, col := range cols {
		ranks := percentRanks(f.floatCol(col))
		best, bestDist := -1, math.Inf(1)
		for row, r := range ranks {
			if math.IsNaN(r) {
				continue
			}
			if d := math.Abs(r - 0.5); d < bestDist {
				best, bestDist = row, d
			}
		}
		out[col] = best
	}
	return out, nil
}

// percentRanks assigns average ranks to non-null values divided by their count.
func percentRanks(values []float64) []float64 {
	var idx []int
	for i, v := range values {
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case values[a] < values[b]:
			return -1
		case values[a] > values[b]:
			return 1
		}
		return 0
	})
	ranks := make([]float64, len(values))
	for i := range ranks {
		ranks[i] = math.NaN()
	}
	n := float64(len(idx))
	for start := 0; start < len(idx); {
		end := start
		for end+1 < len(idx) && values[idx[end+1]] == values[idx[start]] {
			end++
		}
		avg := float64(start+end)/2 + 1
		for k := start; k <= end; k++ {
			ranks[idx[k]] = avg / n
		}
		start = end + 1
	}
	return ranks
}

// exponent returns floor(log10(|v|)), or 0 for zero.
func exponent(v float64) int {
	if v == 0 {
		return 0
	}
	return int(math.Floor(math.Log10(math.Abs(v))))
}

// FormatStatistic renders a statistic and its p-value on two lines, e.g.
// "0.85\n(p=0.004)". P-values too small for pDecimals are shown as an upper
// bound: "0.85\n(p<10^-4)".
func FormatStatistic(stat, p float64, statDecimals, pDecimals int) string {
	var pStr string
	if e := exponent(p); e < -pDecimals {
		pStr = fmt.Sprintf("p<10^%d", e+1)
	} else {
		pStr = fmt.Sprintf("p=%.*f", pDecimals, p)
	}
	return fmt.Sprintf("%.*f\n(%s)", statDecimals, stat, pStr)
}
