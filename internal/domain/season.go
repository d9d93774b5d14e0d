package domain

import "slices"

// SeasonOptions configures growth season extraction.
type SeasonOptions struct {
	Field string `json:"field,omitempty"`
	// SmoothingWindow pre-smooths Field over the whole series with a shrinking
	// centered mean before the years are scanned. Zero disables it.
	SmoothingWindow int `json:"smoothing_window"`
	// StartWindow is the width of the centered rolling sum used to find the start.
	StartWindow    int     `json:"start_window"`
	StartThreshold float64 `json:"start_threshold"`
	EndThreshold   float64 `json:"end_threshold"`
}

// DefaultSeasonOptions returns the usual temperature-based season rule.
func DefaultSeasonOptions() SeasonOptions {
	return SeasonOptions{
		Field:           ColTemperature,
		SmoothingWindow: 7,
		StartWindow:     10,
		StartThreshold:  108,
		EndThreshold:    6,
	}
}

func (o SeasonOptions) validate(f *Frame) error {
	if err := requireFloatColumn(f, "field", o.Field); err != nil {
		return err
	}
	if o.SmoothingWindow < 0 {
		return configErrorf("smoothing window", "must not be negative, got %d", o.SmoothingWindow)
	}
	if o.StartWindow <= 0 {
		return configErrorf("start window", "must be a positive integer, got %d", o.StartWindow)
	}
	return nil
}

// FindSeasonBounds scans one year of values. start is the first position where
// the centered rolling sum over window exceeds startThreshold; end is the first
// position at or after start whose value is below endThreshold. ok is false
// when either is missing, including seasons still open at the end of the data.
func FindSeasonBounds(values []float64, window int, startThreshold, endThreshold float64) (start, end int, ok bool) {
	sums := RollingSum(values, window)
	start = slices.IndexFunc(sums, func(s float64) bool { return s > startThreshold })
	if start < 0 {
		return 0, 0, false
	}
	// TODO: open seasons are dropped rather than clipped to the last row;
	// revisit once consumers can tell a clipped season apart.
	offset := slices.IndexFunc(values[start:], func(v float64) bool { return v < endThreshold })
	if offset < 0 {
		return 0, 0, false
	}
	return start, start + offset, true
}

// GrowthSeason is the season of one year. Start and End are inclusive row
// positions within that year's rows; Rows holds them without the Year column.
type GrowthSeason struct {
	Year     int         `json:"year"`
	Start    int         `json:"start"`
	End      int         `json:"end"`
	FirstDay CalendarKey `json:"first_day"`
	LastDay  CalendarKey `json:"last_day"`
	Rows     *Frame      `json:"rows"`
}

// Len returns the number of days in the season.
func (s GrowthSeason) Len() int { return s.End - s.Start + 1 }

// SeasonTable is the result of ExtractGrowthSeasons.
type SeasonTable struct {
	Seasons []GrowthSeason `json:"seasons"`
	// Absent lists the years without a season, in first-seen order.
	Absent []int `json:"absent_years"`
	frame  *Frame
}

// Frame returns all seasons stacked in year order with the Year column.
func (t *SeasonTable) Frame() *Frame { return t.frame }

// ExtractGrowthSeasons finds the growth season of every year of series, in
// the order the years first appear. Years without a season contribute nothing
// to the stacked frame and are listed in Absent.
func ExtractGrowthSeasons(series *DailySeries, opts SeasonOptions) (*SeasonTable, error) {
	f := series.Frame()
	if err := opts.validate(f); err != nil {
		return nil, err
	}
	if opts.SmoothingWindow > 0 {
		var err error
		f, err = Smooth(f, []string{opts.Field}, opts.SmoothingWindow, AggregateMean, EdgeShrink)
		if err != nil {
			return nil, err
		}
	}

	keys := series.CalendarKeys()
	values := f.floatCol(opts.Field)
	years, groups := groupBy(f.intCol(ColYear))
	table := &SeasonTable{}
	var stacked []int
	for _, year := range years {
		rows := groups[year]
		yearValues := make([]float64, len(rows))
		for i, row := range rows {
			yearValues[i] = values[row]
		}
		start, end, ok := FindSeasonBounds(yearValues, opts.StartWindow, opts.StartThreshold, opts.EndThreshold)
		if !ok {
			table.Absent = append(table.Absent, year)
			continue
		}
		idx := rows[start : end+1]
		stacked = append(stacked, idx...)
		table.Seasons = append(table.Seasons, GrowthSeason{
			Year:     year,
			Start:    start,
			End:      end,
			FirstDay: keys[idx[0]],
			LastDay:  keys[idx[len(idx)-1]],
			Rows:     f.Take(idx).Drop(ColYear),
		})
	}
	table.frame = f.Take(stacked)
	return table, nil
}
