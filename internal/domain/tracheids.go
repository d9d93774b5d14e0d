package domain

import (
	"math"
	"strings"
)

// Tracheid table columns.
const (
	ColTree   = "Tree"
	ColNumber = "№"
	ColTRW    = "TRW"
)

// TracheidSchema is the contract of a tracheid measurement table: one row per
// cell of a tree ring, followed by the cell measurement columns.
var TracheidSchema = Schema{
	Name: "tracheids",
	Columns: []ColumnSpec{
		{Name: ColTree, Kind: KindString},
		{Name: ColYear, Kind: KindInt},
		{Name: ColNumber, Kind: KindInt},
		{Name: ColTRW, Kind: KindFloat, Bounded: true, Min: 0, Max: math.Inf(1)},
	},
}

// Tracheids is a validated tracheid measurement table.
type Tracheids struct {
	frame *Frame
}

// NewTracheids validates f and wraps a copy of it.
func NewTracheids(f *Frame) (*Tracheids, error) {
	if err := TracheidSchema.Validate(f); err != nil {
		return nil, err
	}
	return &Tracheids{frame: f.Clone()}, nil
}

// Frame returns the underlying read-only frame.
func (t *Tracheids) Frame() *Frame { return t.frame }

// MeasurementColumns returns the cell measurement columns: the float columns
// whose name contains "D" or "CWT".
func (t *Tracheids) MeasurementColumns() []string {
	var cols []string
	for _, col := range t.frame.FloatColumns() {
		if strings.Contains(col, "D") || strings.Contains(col, "CWT") {
			cols = append(cols, col)
		}
	}
	return cols
}

// NormalizeSeries resamples x to norm points. Every element is repeated norm
// times and the stretched sequence is averaged in chunks of len(x).
func NormalizeSeries(x []float64, norm int) []float64 {
	n := len(x)
	out := make([]float64, norm)
	if n == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for i := range norm {
		sum := 0.0
		for j := n * i; j < n*(i+1); j++ {
			sum += x[j/norm]
		}
		out[i] = sum / float64(n)
	}
	return out
}

// NormalizeTracheids resamples every ring (Tree, Year) to norm cells. Each
// ring keeps its first TRW value, cells are renumbered 1..norm and every
// measurement column is resampled with NormalizeSeries.
func NormalizeTracheids(t *Tracheids, norm int) (*Tracheids, error) {
	if norm <= 0 {
		return nil, configErrorf("norm", "must be a positive integer, got %d", norm)
	}
	f := t.frame
	type ring struct {
		tree string
		year int
	}
	trees, years := f.stringCol(ColTree), f.intCol(ColYear)
	keys := make([]ring, f.Len())
	for i := range keys {
		keys[i] = ring{trees[i], years[i]}
	}
	order, groups := groupBy(keys)
	measures := t.MeasurementColumns()

	var outTrees []string
	var outYears, outNumbers []int
	var outTRW []float64
	outMeasures := make([][]float64, len(measures))
	for _, k := range order {
		rows := groups[k]
		trw := f.floatCol(ColTRW)[rows[0]]
		for i := range norm {
			outTrees = append(outTrees, k.tree)
			outYears = append(outYears, k.year)
			outNumbers = append(outNumbers, i+1)
			outTRW = append(outTRW, trw)
		}
		for m, col := range measures {
			src := f.floatCol(col)
			x := make([]float64, len(rows))
			for i, row := range rows {
				x[i] = src[row]
			}
			outMeasures[m] = append(outMeasures[m], NormalizeSeries(x, norm)...)
		}
	}

	out := NewFrame()
	out.mustAdd(out.AddStrings(ColTree, nonNilStrings(outTrees)))
	out.mustAdd(out.AddInts(ColYear, nonNilInts(outYears)))
	out.mustAdd(out.AddInts(ColNumber, nonNilInts(outNumbers)))
	out.mustAdd(out.AddFloats(ColTRW, nonNilFloats(outTRW)))
	for m, col := range measures {
		out.mustAdd(out.AddFloats(col, nonNilFloats(outMeasures[m])))
	}
	return NewTracheids(out)
}
