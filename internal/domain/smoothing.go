package domain

import "math"

// Aggregate selects the rolling statistic.
type Aggregate string

const (
	AggregateMean Aggregate = "mean"
	AggregateSum  Aggregate = "sum"
)

// EdgePolicy selects how windows behave near the boundaries and around nulls.
type EdgePolicy string

const (
	// EdgeShrink narrows the window to the available points (at least one
	// non-null point is needed for a value).
	EdgeShrink EdgePolicy = "shrink"
	// EdgeStrict only yields a value for complete windows of non-null points,
	// so the borders become null.
	EdgeStrict EdgePolicy = "strict"
)

// windowBounds returns the inclusive-exclusive row range of the centered
// window at position i. For even windows the extra point lies before i:
// a window of 4 at i covers i-2..i+1.
func windowBounds(i, window, n int) (lo, hi int, full bool) {
	offset := (window - 1) / 2
	hi = i + offset + 1
	lo = hi - window
	full = lo >= 0 && hi <= n
	return max(lo, 0), min(hi, n), full
}

// rolling computes the centered rolling aggregate of values.
func rolling(values []float64, window int, agg Aggregate, edge EdgePolicy) []float64 {
	n := len(values)
	out := make([]float64, n)
	if agg == AggregateSum {
		edge = EdgeShrink
	}
	for i := range values {
		lo, hi, full := windowBounds(i, window, n)
		sum, count := 0.0, 0
		for _, v := range values[lo:hi] {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			count++
		}
		switch {
		case edge == EdgeStrict && (!full || count < window):
			out[i] = math.NaN()
		case count == 0:
			out[i] = math.NaN()
		case agg == AggregateSum:
			out[i] = sum
		default:
			out[i] = sum / float64(count)
		}
	}
	return out
}

// Smooth returns a copy of f where each listed float column is replaced by its
// centered rolling aggregate over window rows. Other columns are copied
// unchanged and rows keep their order. Sums always use the shrink policy.
func Smooth(f *Frame, columns []string, window int, agg Aggregate, edge EdgePolicy) (*Frame, error) {
	if window <= 0 {
		return nil, configErrorf("window", "must be a positive integer, got %d", window)
	}
	if agg != AggregateMean && agg != AggregateSum {
		return nil, configErrorf("aggregate", "unknown aggregate %q", agg)
	}
	if edge != EdgeShrink && edge != EdgeStrict {
		return nil, configErrorf("edge policy", "unknown policy %q", edge)
	}
	for _, col := range columns {
		if err := requireFloatColumn(f, "columns", col); err != nil {
			return nil, err
		}
	}

	out := f.Clone()
	for _, col := range columns {
		var err error
		out, err = out.WithFloats(col, rolling(f.floatCol(col), window, agg, edge))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RollingSum is the centered shrink-policy rolling sum of values.
func RollingSum(values []float64, window int) []float64 {
	return rolling(values, window, AggregateSum, EdgeShrink)
}
