package domain

import (
	"math"
	"slices"
	"strconv"
)

// wideDailyLayout describes a wide daily table: Month and Day columns plus one
// numeric column per year, named by the year.
type wideDailyLayout struct {
	months []int
	days   []int
	years  []int
	cols   []string
}

func parseWideDaily(name string, f *Frame) (wideDailyLayout, error) {
	schema := Schema{
		Name: name + " wide",
		Columns: []ColumnSpec{
			bounded(ColMonth, KindInt, false, 1, 12),
			bounded(ColDay, KindInt, false, 1, 31),
		},
		Checks: []FrameCheck{checkCalendarDays, uniqueRows(ColMonth, ColDay)},
	}
	if err := schema.Validate(f); err != nil {
		return wideDailyLayout{}, err
	}
	layout := wideDailyLayout{months: f.intCol(ColMonth), days: f.intCol(ColDay)}
	for _, col := range f.Columns() {
		if col == ColMonth || col == ColDay {
			continue
		}
		year, err := strconv.Atoi(col)
		if err != nil {
			return wideDailyLayout{}, configErrorf(name, "column %q is not a year", col)
		}
		if kind, _ := f.Kind(col); kind != KindFloat {
			return wideDailyLayout{}, configErrorf(name, "year column %q is %s, not numeric", col, kind)
		}
		layout.years = append(layout.years, year)
		layout.cols = append(layout.cols, col)
	}
	return layout, nil
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DailyFromWide converts wide daily tables (Month, Day, one column per year)
// into a long DailySeries ordered by year, then by the table's row order.
// prec may be nil; otherwise it must share the layout of temp. Feb 29 rows of
// non-leap years are dropped when they hold no value.
func DailyFromWide(temp, prec *Frame) (*DailySeries, error) {
	if temp == nil {
		return nil, configErrorf("temperature", "wide temperature table is required")
	}
	tl, err := parseWideDaily("temperature", temp)
	if err != nil {
		return nil, err
	}
	var pl wideDailyLayout
	if prec != nil {
		if pl, err = parseWideDaily("precipitation", prec); err != nil {
			return nil, err
		}
		if !slices.Equal(tl.months, pl.months) || !slices.Equal(tl.days, pl.days) {
			return nil, configErrorf("sources", "temperature and precipitation have different Month/Day rows")
		}
		if !slices.Equal(tl.years, pl.years) {
			return nil, configErrorf("sources", "temperature years %v differ from precipitation years %v", tl.years, pl.years)
		}
	}

	var years, months, days []int
	var temps, precs []float64
	for c, year := range tl.years {
		t := temp.floatCol(tl.cols[c])
		var p []float64
		if prec != nil {
			p = prec.floatCol(pl.cols[c])
		}
		for row := range tl.days {
			hasValue := !math.IsNaN(t[row]) || (p != nil && !math.IsNaN(p[row]))
			if tl.months[row] == 2 && tl.days[row] == 29 && !isLeap(year) && !hasValue {
				continue
			}
			years = append(years, year)
			months = append(months, tl.months[row])
			days = append(days, tl.days[row])
			temps = append(temps, t[row])
			if p != nil {
				precs = append(precs, p[row])
			}
		}
	}

	out := NewFrame()
	out.mustAdd(out.AddInts(ColYear, nonNilInts(years)))
	out.mustAdd(out.AddInts(ColMonth, nonNilInts(months)))
	out.mustAdd(out.AddInts(ColDay, nonNilInts(days)))
	out.mustAdd(out.AddFloats(ColTemperature, nonNilFloats(temps)))
	if prec != nil {
		out.mustAdd(out.AddFloats(ColPrecipitation, nonNilFloats(precs)))
	}
	return NewDailySeries(out)
}
