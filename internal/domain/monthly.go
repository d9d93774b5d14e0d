package domain

import (
	"math"
	"slices"
	"time"
)

// Aggregation reduces the daily values of one month.
type Aggregation string

const (
	AggregationMean Aggregation = "mean"
	AggregationSum  Aggregation = "sum"
	AggregationMax  Aggregation = "max"
)

// DefaultAggregations averages temperature and totals precipitation.
func DefaultAggregations() map[string]Aggregation {
	return map[string]Aggregation{
		ColTemperature:   AggregationMean,
		ColPrecipitation: AggregationSum,
	}
}

// reduce ignores nulls and returns NaN when every value is null.
func (a Aggregation) reduce(values []float64) float64 {
	acc, count := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case count == 0:
			acc = v
		case a == AggregationMax:
			acc = math.Max(acc, v)
		default:
			acc += v
		}
		count++
	}
	if count == 0 {
		return math.NaN()
	}
	if a == AggregationMean {
		return acc / float64(count)
	}
	return acc
}

// AggregateMonthly reduces daily to one row per (Year, Month), in first-seen
// order. rules maps each aggregated column to its reduction; columns without a
// rule are dropped. A nil rules map applies DefaultAggregations to the columns
// present.
func AggregateMonthly(daily *DailySeries, rules map[string]Aggregation) (*MonthlySeries, error) {
	f := daily.Frame()
	if rules == nil {
		rules = DefaultAggregations()
		for col := range rules {
			if !f.Has(col) {
				delete(rules, col)
			}
		}
	}
	var columns []string
	for _, col := range f.FloatColumns() {
		if _, ok := rules[col]; ok {
			columns = append(columns, col)
		}
	}
	for col, agg := range rules {
		if err := requireFloatColumn(f, "aggregation", col); err != nil {
			return nil, err
		}
		switch agg {
		case AggregationMean, AggregationSum, AggregationMax:
		default:
			return nil, configErrorf("aggregation", "unknown aggregation %q for %s", agg, col)
		}
	}

	years, months := f.intCol(ColYear), f.intCol(ColMonth)
	type yearMonth struct{ year, month int }
	keys := make([]yearMonth, f.Len())
	for i := range keys {
		keys[i] = yearMonth{years[i], months[i]}
	}
	order, groups := groupBy(keys)

	out := NewFrame()
	outYears := make([]int, len(order))
	outMonths := make([]int, len(order))
	for i, k := range order {
		outYears[i], outMonths[i] = k.year, k.month
	}
	out.mustAdd(out.AddInts(ColYear, outYears))
	out.mustAdd(out.AddInts(ColMonth, outMonths))
	for _, col := range columns {
		src := f.floatCol(col)
		agg := rules[col]
		values := make([]float64, len(order))
		for i, k := range order {
			rows := groups[k]
			buf := make([]float64, len(rows))
			for j, row := range rows {
				buf[j] = src[row]
			}
			values[i] = agg.reduce(buf)
		}
		out.mustAdd(out.AddFloats(col, values))
	}
	return NewMonthlySeries(out)
}

// MonthNames are the wide monthly column names, January first.
var MonthNames = func() []string {
	names := make([]string, 12)
	for m := time.January; m <= time.December; m++ {
		names[m-1] = m.String()
	}
	return names
}()

// MonthlyWideSchema is the contract of a wide monthly table: Year plus one
// nullable numeric column per month.
var MonthlyWideSchema = func() Schema {
	cols := []ColumnSpec{{Name: ColYear, Kind: KindInt}}
	for _, name := range MonthNames {
		cols = append(cols, ColumnSpec{Name: name, Kind: KindFloat, Nullable: true})
	}
	return Schema{Name: "monthly wide", Columns: cols, Checks: []FrameCheck{uniqueRows(ColYear)}}
}()

// WideSource is a wide monthly table holding one climate field.
type WideSource struct {
	Field string
	Frame *Frame
}

// MonthlyFromWide converts wide monthly tables into one long MonthlySeries
// with a column per source field. All sources must list the same years in the
// same order.
func MonthlyFromWide(sources []WideSource) (*MonthlySeries, error) {
	if len(sources) == 0 {
		return nil, configErrorf("sources", "at least one wide source is required")
	}
	for _, src := range sources {
		if err := MonthlyWideSchema.Validate(src.Frame); err != nil {
			return nil, err
		}
	}
	years := sources[0].Frame.intCol(ColYear)
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if src.Field == "" || src.Field == ColYear || src.Field == ColMonth {
			return nil, configErrorf("sources", "invalid field name %q", src.Field)
		}
		if seen[src.Field] {
			return nil, configErrorf("sources", "field %q given twice", src.Field)
		}
		seen[src.Field] = true
		if !slices.Equal(src.Frame.intCol(ColYear), years) {
			return nil, configErrorf("sources", "%s covers different years than %s", src.Field, sources[0].Field)
		}
	}

	n := len(years) * 12
	outYears := make([]int, 0, n)
	outMonths := make([]int, 0, n)
	for _, year := range years {
		for m := 1; m <= 12; m++ {
			outYears = append(outYears, year)
			outMonths = append(outMonths, m)
		}
	}
	out := NewFrame()
	out.mustAdd(out.AddInts(ColYear, outYears))
	out.mustAdd(out.AddInts(ColMonth, outMonths))
	for _, src := range sources {
		values := make([]float64, 0, n)
		for row := range years {
			for _, name := range MonthNames {
				values = append(values, src.Frame.floatCol(name)[row])
			}
		}
		out.mustAdd(out.AddFloats(src.Field, values))
	}
	return NewMonthlySeries(out)
}

// MonthlyClimatology averages the monthly aggregates of daily over the years:
// one row per month present, in calendar order, with the mean monthly
// temperature and the mean monthly precipitation total.
func MonthlyClimatology(daily *DailySeries) (*Frame, error) {
	monthly, err := AggregateMonthly(daily, nil)
	if err != nil {
		return nil, err
	}
	f := monthly.Frame()
	_, groups := groupBy(f.intCol(ColMonth))
	var months []int
	for m := range groups {
		months = append(months, m)
	}
	slices.Sort(months)

	out := NewFrame()
	out.mustAdd(out.AddInts(ColMonth, months))
	for _, col := range f.FloatColumns() {
		src := f.floatCol(col)
		values := make([]float64, len(months))
		for i, m := range months {
			rows := groups[m]
			buf := make([]float64, len(rows))
			for j, row := range rows {
				buf[j] = src[row]
			}
			values[i] = AggregationMean.reduce(buf)
		}
		out.mustAdd(out.AddFloats(col, values))
	}
	return out, nil
}
