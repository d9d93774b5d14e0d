package domain

// FullCompareOptions configures FullCompare.
type FullCompareOptions struct {
	Primary   string
	Secondary string
	Target    string
	// SmoothingWindow pre-smooths both fields with a shrinking centered mean.
	// Zero disables it.
	SmoothingWindow int
}

func (o FullCompareOptions) withDefaults() FullCompareOptions {
	if o.Primary == "" {
		o.Primary = ColTemperature
	}
	if o.Secondary == "" {
		o.Secondary = ColPrecipitation
	}
	return o
}

// Cell is one statistic/p-value pair of a full comparison row.
type Cell struct {
	Stat   *float64 `json:"stat"`
	PValue *float64 `json:"p_value"`
}

// FullComparisonRow merges the four comparison runs for one calendar key.
type FullComparisonRow struct {
	Key           CalendarKey `json:"key"`
	Primary       Cell        `json:"primary"`
	PrimaryPrev   Cell        `json:"primary_prev"`
	Secondary     Cell        `json:"secondary"`
	SecondaryPrev Cell        `json:"secondary_prev"`
}

// Cells returns the four cells in column order.
func (r FullComparisonRow) Cells() [4]Cell {
	return [4]Cell{r.Primary, r.PrimaryPrev, r.Secondary, r.SecondaryPrev}
}

// FullComparisonTable is the outer merge of the four runs on calendar key.
type FullComparisonTable struct {
	Primary   string              `json:"primary"`
	Secondary string              `json:"secondary"`
	Target    string              `json:"target"`
	Rows      []FullComparisonRow `json:"rows"`
}

// StatColumns returns the eight statistic column names, e.g.
// "Stat Temp", "P-value Temp", "Stat Temp prev", "P-value Temp prev", ...
func (t *FullComparisonTable) StatColumns() []string {
	cols := make([]string, 0, 8)
	for _, field := range []string{t.Primary, t.Secondary} {
		short := abbreviate(field)
		cols = append(cols,
			"Stat "+short, "P-value "+short,
			"Stat "+short+" prev", "P-value "+short+" prev")
	}
	return cols
}

// NullCells counts the statistics that could not be computed, including the
// ones missing because a run had no row for the key.
func (t *FullComparisonTable) NullCells() int {
	n := 0
	for _, row := range t.Rows {
		for _, c := range row.Cells() {
			if c.Stat == nil {
				n++
			}
		}
	}
	return n
}

func abbreviate(field string) string {
	r := []rune(field)
	if len(r) > 4 {
		r = r[:4]
	}
	return string(r)
}

// FullCompare runs Compare for both fields with and without the previous-year
// lag and merges the results on calendar key. Every key produced by any run
// appears exactly once, in first-seen order across the runs.
func FullCompare(series ClimateSeries, ref *Reference, cmp Comparator, opts FullCompareOptions) (*FullComparisonTable, error) {
	opts = opts.withDefaults()
	if opts.Primary == opts.Secondary {
		return nil, configErrorf("fields", "primary and secondary are both %q", opts.Primary)
	}
	fields := []string{opts.Primary, opts.Secondary}
	for _, field := range fields {
		if err := requireFloatColumn(series.Frame(), "field", field); err != nil {
			return nil, err
		}
	}
	target, err := ref.resolveTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	if opts.SmoothingWindow < 0 {
		return nil, configErrorf("smoothing window", "must not be negative, got %d", opts.SmoothingWindow)
	}
	if opts.SmoothingWindow > 0 {
		smoothed, err := Smooth(series.Frame(), fields, opts.SmoothingWindow, AggregateMean, EdgeShrink)
		if err != nil {
			return nil, err
		}
		series = series.rewrap(smoothed)
	}

	table := &FullComparisonTable{Primary: opts.Primary, Secondary: opts.Secondary, Target: target}
	index := make(map[CalendarKey]int)
	for _, field := range fields {
		for _, lag := range []Lag{LagNone, LagPreviousYear} {
			run, err := Compare(series, ref, cmp, CompareOptions{Field: field, Target: target, Lag: lag})
			if err != nil {
				return nil, err
			}
			for _, r := range run.Rows {
				i, ok := index[r.Key]
				if !ok {
					i = len(table.Rows)
					index[r.Key] = i
					table.Rows = append(table.Rows, FullComparisonRow{Key: r.Key})
				}
				cell := Cell{Stat: r.Stat, PValue: r.PValue}
				row := &table.Rows[i]
				switch {
				case field == opts.Primary && lag == LagNone:
					row.Primary = cell
				case field == opts.Primary:
					row.PrimaryPrev = cell
				case lag == LagNone:
					row.Secondary = cell
				default:
					row.SecondaryPrev = cell
				}
			}
		}
	}
	return table, nil
}
