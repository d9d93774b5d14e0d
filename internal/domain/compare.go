package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Comparator computes a statistic and its p-value for two paired samples of
// equal length with nulls already removed. It returns ErrComparisonFailure when
// the sample is degenerate; any other error aborts the comparison run.
type Comparator interface {
	Compare(x, y []float64) (stat, pvalue float64, err error)
}

// ComparatorFunc adapts a plain function to the Comparator interface.
type ComparatorFunc func(x, y []float64) (float64, float64, error)

// Compare calls fn(x, y).
func (fn ComparatorFunc) Compare(x, y []float64) (float64, float64, error) { return fn(x, y) }

// Lag selects whether the series field is compared against the same or the
// following reference year.
type Lag string

const (
	LagNone         Lag = "none"
	LagPreviousYear Lag = "previous_year"
)

// ParseLag accepts the empty string as LagNone.
func ParseLag(s string) (Lag, error) {
	switch Lag(s) {
	case "", LagNone:
		return LagNone, nil
	case LagPreviousYear:
		return LagPreviousYear, nil
	}
	return "", configErrorf("lag", "unknown lag %q", s)
}

// minPairs is the smallest paired sample handed to a comparator. Smaller
// samples produce a null row without calling it.
const minPairs = 2

// CompareOptions configures one comparison run.
type CompareOptions struct {
	// Field is the series column to compare.
	Field string
	// Target is the reference column. Empty selects the only numeric reference column.
	Target string
	Lag    Lag
}

// ComparisonRow is the result for one calendar key. Stat and PValue are nil
// when the key had too few pairs or the comparator could not be evaluated.
type ComparisonRow struct {
	Key    CalendarKey `json:"key"`
	Stat   *float64    `json:"stat"`
	PValue *float64    `json:"p_value"`
	// N is the number of paired observations found for the key.
	N int `json:"n"`
}

// IsNull reports whether the row carries no statistic.
func (r ComparisonRow) IsNull() bool { return r.Stat == nil }

// ComparisonTable is the ordered result of one comparison run.
type ComparisonTable struct {
	Field  string          `json:"field"`
	Target string          `json:"target"`
	Lag    Lag             `json:"lag"`
	Rows   []ComparisonRow `json:"rows"`
}

// NullRows counts rows without a statistic.
func (t *ComparisonTable) NullRows() int {
	n := 0
	for _, r := range t.Rows {
		if r.IsNull() {
			n++
		}
	}
	return n
}

// Compare produces one row per distinct calendar key of series, in the order
// the keys first appear. For each key the rows holding it are ordered by year,
// the field is optionally shifted down by one position within that group, the
// values are paired with the reference target by Year and pairs with a null on
// either side are dropped. The lag is positional: with a gap in the years the
// previous value is the one of the closest earlier year present.
func Compare(series ClimateSeries, ref *Reference, cmp Comparator, opts CompareOptions) (*ComparisonTable, error) {
	if cmp == nil {
		return nil, configErrorf("comparator", "comparator is required")
	}
	f := series.Frame()
	if err := requireFloatColumn(f, "field", opts.Field); err != nil {
		return nil, err
	}
	target, err := ref.resolveTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	lag, err := ParseLag(string(opts.Lag))
	if err != nil {
		return nil, err
	}

	values := f.floatCol(opts.Field)
	years := f.intCol(ColYear)
	refValues := ref.Frame().floatCol(target)
	refYears := ref.yearIndex()

	table := &ComparisonTable{Field: opts.Field, Target: target, Lag: lag}
	keys, groups := groupBy(series.CalendarKeys())
	for _, key := range keys {
		// Sorted copy: groups keeps row order.
		rows := slices.SortedStableFunc(slices.Values(groups[key]), func(a, b int) int { return years[a] - years[b] })
		var x, y []float64
		for pos, row := range rows {
			v := values[row]
			if lag == LagPreviousYear {
				v = math.NaN()
				if pos > 0 {
					v = values[rows[pos-1]]
				}
			}
			for _, refRow := range refYears[years[row]] {
				w := refValues[refRow]
				if math.IsNaN(v) || math.IsNaN(w) {
					continue
				}
				x = append(x, v)
				y = append(y, w)
			}
		}

		out := ComparisonRow{Key: key, N: len(x)}
		if len(x) >= minPairs {
			stat, p, err := cmp.Compare(x, y)
			switch {
			case errors.Is(err, ErrComparisonFailure):
			case err != nil:
				return nil, fmt.Errorf("compare %s at %s: %w", opts.Field, key, err)
			case !math.IsNaN(stat):
				out.Stat = floatPtr(stat)
				if !math.IsNaN(p) {
					out.PValue = floatPtr(p)
				}
			}
		}
		table.Rows = append(table.Rows, out)
	}
	return table, nil
}

func floatPtr(v float64) *float64 { return &v }
