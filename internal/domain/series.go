package domain

// Well-known column names.
const (
	ColYear          = "Year"
	ColMonth         = "Month"
	ColDay           = "Day"
	ColTemperature   = "Temperature"
	ColPrecipitation = "Precipitation"
)

// DailySchema is the contract of a daily climate table.
var DailySchema = Schema{
	Name: "daily",
	Columns: []ColumnSpec{
		{Name: ColYear, Kind: KindInt},
		bounded(ColMonth, KindInt, false, 1, 12),
		bounded(ColDay, KindInt, false, 1, 31),
		{Name: ColTemperature, Kind: KindFloat, Optional: true, Nullable: true, Bounded: true, Min: -100, Max: 100},
		{Name: ColPrecipitation, Kind: KindFloat, Optional: true, Nullable: true, Bounded: true, Min: 0, Max: 1000},
	},
	Checks: []FrameCheck{checkCalendarDays, uniqueRows(ColYear, ColMonth, ColDay)},
}

// MonthlySchema is the contract of a long-format monthly climate table.
var MonthlySchema = Schema{
	Name: "monthly",
	Columns: []ColumnSpec{
		{Name: ColYear, Kind: KindInt},
		bounded(ColMonth, KindInt, false, 1, 12),
		{Name: ColTemperature, Kind: KindFloat, Optional: true, Nullable: true, Bounded: true, Min: -100, Max: 100},
		{Name: ColPrecipitation, Kind: KindFloat, Optional: true, Nullable: true, Bounded: true, Min: 0, Max: 10000},
	},
	Checks: []FrameCheck{uniqueRows(ColYear, ColMonth)},
}

// ReferenceSchema only constrains the join column.
var ReferenceSchema = Schema{
	Name:    "reference",
	Columns: []ColumnSpec{{Name: ColYear, Kind: KindInt}},
}

// ClimateSeries is a validated climate table that can be aligned across years
// by calendar key. It is implemented by *DailySeries and *MonthlySeries.
type ClimateSeries interface {
	Frame() *Frame
	CalendarKeys() []CalendarKey
	// rewrap returns the same series type around a derived frame that keeps
	// the key columns untouched.
	rewrap(f *Frame) ClimateSeries
}

// DailySeries is a daily climate table validated against DailySchema.
type DailySeries struct {
	frame *Frame
}

// NewDailySeries validates f and wraps a copy of it, so later changes to f
// cannot bypass validation.
func NewDailySeries(f *Frame) (*DailySeries, error) {
	if err := DailySchema.Validate(f); err != nil {
		return nil, err
	}
	return &DailySeries{frame: f.Clone()}, nil
}

// Frame returns the underlying read-only frame.
func (d *DailySeries) Frame() *Frame { return d.frame }

// Len returns the number of days.
func (d *DailySeries) Len() int { return d.frame.Len() }

// CalendarKeys returns the (Month, Day) key of every row.
func (d *DailySeries) CalendarKeys() []CalendarKey {
	months, days := d.frame.intCol(ColMonth), d.frame.intCol(ColDay)
	keys := make([]CalendarKey, len(days))
	for i := range days {
		keys[i] = DailyKey(months[i], days[i])
	}
	return keys
}

func (d *DailySeries) rewrap(f *Frame) ClimateSeries { return &DailySeries{frame: f} }

// MovingAverage returns a copy with the listed columns replaced by their
// centered rolling mean. Strict keeps a value only where a full window of
// non-null points exists.
func (d *DailySeries) MovingAverage(columns []string, window int, strict bool) (*DailySeries, error) {
	edge := EdgeShrink
	if strict {
		edge = EdgeStrict
	}
	f, err := Smooth(d.frame, columns, window, AggregateMean, edge)
	if err != nil {
		return nil, err
	}
	return &DailySeries{frame: f}, nil
}

// MovingSum returns a copy with the listed columns replaced by their centered
// rolling sum over the available points.
func (d *DailySeries) MovingSum(columns []string, window int) (*DailySeries, error) {
	f, err := Smooth(d.frame, columns, window, AggregateSum, EdgeShrink)
	if err != nil {
		return nil, err
	}
	return &DailySeries{frame: f}, nil
}

// MonthlySeries is a long-format monthly climate table validated against MonthlySchema.
type MonthlySeries struct {
	frame *Frame
}

// NewMonthlySeries validates f and wraps a copy of it.
func NewMonthlySeries(f *Frame) (*MonthlySeries, error) {
	if err := MonthlySchema.Validate(f); err != nil {
		return nil, err
	}
	return &MonthlySeries{frame: f.Clone()}, nil
}

// Frame returns the underlying read-only frame.
func (m *MonthlySeries) Frame() *Frame { return m.frame }

// Len returns the number of (Year, Month) rows.
func (m *MonthlySeries) Len() int { return m.frame.Len() }

// CalendarKeys returns the Month key of every row.
func (m *MonthlySeries) CalendarKeys() []CalendarKey {
	months := m.frame.intCol(ColMonth)
	keys := make([]CalendarKey, len(months))
	for i, month := range months {
		keys[i] = MonthlyKey(month)
	}
	return keys
}

func (m *MonthlySeries) rewrap(f *Frame) ClimateSeries { return &MonthlySeries{frame: f} }

// Reference is the table a climate series is compared against, joined on Year.
type Reference struct {
	frame *Frame
}

// NewReference validates f and wraps a copy of it.
func NewReference(f *Frame) (*Reference, error) {
	if err := ReferenceSchema.Validate(f); err != nil {
		return nil, err
	}
	return &Reference{frame: f.Clone()}, nil
}

// Frame returns the underlying read-only frame.
func (r *Reference) Frame() *Frame { return r.frame }

// resolveTarget picks the comparison column: the named one, or the only float
// column when no name is given.
func (r *Reference) resolveTarget(name string) (string, error) {
	if name != "" {
		kind, ok := r.frame.Kind(name)
		if !ok {
			return "", configErrorf("target", "reference has no column %q", name)
		}
		if kind != KindFloat {
			return "", configErrorf("target", "reference column %q is not numeric", name)
		}
		return name, nil
	}
	floats := r.frame.FloatColumns()
	if len(floats) != 1 {
		return "", configErrorf("target", "reference has %d numeric columns %v, name one", len(floats), floats)
	}
	return floats[0], nil
}

// yearIndex maps each reference year to its rows.
func (r *Reference) yearIndex() map[int][]int {
	_, groups := groupBy(r.frame.intCol(ColYear))
	return groups
}

func requireFloatColumn(f *Frame, parameter, name string) error {
	kind, ok := f.Kind(name)
	if !ok {
		return configErrorf(parameter, "unknown column %q", name)
	}
	if kind != KindFloat {
		return configErrorf(parameter, "column %q is %s, not numeric", name, kind)
	}
	return nil
}
