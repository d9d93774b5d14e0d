package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Kind is the storage type of a frame column.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Frame is an ordered, column-oriented table. Float columns use NaN for null;
// integer and string columns are never null.
//
// Frames are built once with the Add* methods and are read-only after that:
// every transformation returns a new Frame and the column accessors return
// copies.
type Frame struct {
	names   []string
	kinds   map[string]Kind
	floats  map[string][]float64
	ints    map[string][]int
	strings map[string][]string
	rows    int
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{
		kinds:   make(map[string]Kind),
		floats:  make(map[string][]float64),
		ints:    make(map[string][]int),
		strings: make(map[string][]string),
	}
}

func (f *Frame) checkAdd(name string, n int) error {
	if _, ok := f.kinds[name]; ok {
		return fmt.Errorf("add column %q: duplicate column", name)
	}
	if len(f.names) > 0 && n != f.rows {
		return fmt.Errorf("add column %q: length %d, frame has %d rows", name, n, f.rows)
	}
	return nil
}

// AddFloats appends a float column.
func (f *Frame) AddFloats(name string, values []float64) error {
	if err := f.checkAdd(name, len(values)); err != nil {
		return err
	}
	f.names = append(f.names, name)
	f.kinds[name] = KindFloat
	f.floats[name] = values
	f.rows = len(values)
	return nil
}

// AddInts appends an integer column.
func (f *Frame) AddInts(name string, values []int) error {
	if err := f.checkAdd(name, len(values)); err != nil {
		return err
	}
	f.names = append(f.names, name)
	f.kinds[name] = KindInt
	f.ints[name] = values
	f.rows = len(values)
	return nil
}

// AddStrings appends a string column.
func (f *Frame) AddStrings(name string, values []string) error {
	if err := f.checkAdd(name, len(values)); err != nil {
		return err
	}
	f.names = append(f.names, name)
	f.kinds[name] = KindString
	f.strings[name] = values
	f.rows = len(values)
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order.
func (f *Frame) Columns() []string { return slices.Clone(f.names) }

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.kinds[name]
	return ok
}

// Kind returns the storage type of the named column.
func (f *Frame) Kind(name string) (Kind, bool) {
	k, ok := f.kinds[name]
	return k, ok
}

// Floats returns a copy of the named float column, or nil.
func (f *Frame) Floats(name string) []float64 { return slices.Clone(f.floats[name]) }

// Ints returns a copy of the named integer column, or nil.
func (f *Frame) Ints(name string) []int { return slices.Clone(f.ints[name]) }

// Strings returns a copy of the named string column, or nil.
func (f *Frame) Strings(name string) []string { return slices.Clone(f.strings[name]) }

// floatCol, intCol and stringCol share the column storage with the engines
// of this package, which only read them.
func (f *Frame) floatCol(name string) []float64 { return f.floats[name] }

func (f *Frame) intCol(name string) []int { return f.ints[name] }

func (f *Frame) stringCol(name string) []string { return f.strings[name] }

// FloatColumns returns the names of all float columns in order.
func (f *Frame) FloatColumns() []string {
	var out []string
	for _, name := range f.names {
		if f.kinds[name] == KindFloat {
			out = append(out, name)
		}
	}
	return out
}

// Take returns a new frame with the rows at idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	out := NewFrame()
	for _, name := range f.names {
		switch f.kinds[name] {
		case KindFloat:
			src := f.floats[name]
			col := make([]float64, len(idx))
			for i, j := range idx {
				col[i] = src[j]
			}
			out.mustAdd(out.AddFloats(name, col))
		case KindInt:
			src := f.ints[name]
			col := make([]int, len(idx))
			for i, j := range idx {
				col[i] = src[j]
			}
			out.mustAdd(out.AddInts(name, col))
		case KindString:
			src := f.strings[name]
			col := make([]string, len(idx))
			for i, j := range idx {
				col[i] = src[j]
			}
			out.mustAdd(out.AddStrings(name, col))
		}
	}
	out.rows = len(idx)
	return out
}

// Slice returns rows [start, end) as a new frame.
func (f *Frame) Slice(start, end int) *Frame {
	idx := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		idx = append(idx, i)
	}
	return f.Take(idx)
}

// Drop returns a copy without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	out := NewFrame()
	for _, name := range f.names {
		if slices.Contains(names, name) {
			continue
		}
		out.copyColumn(f, name, name)
	}
	out.rows = f.rows
	return out
}

// Select returns a copy holding only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := NewFrame()
	for _, name := range names {
		if !f.Has(name) {
			return nil, fmt.Errorf("select: unknown column %q", name)
		}
		out.copyColumn(f, name, name)
	}
	out.rows = f.rows
	return out, nil
}

// Rename returns a copy with columns renamed according to mapping.
func (f *Frame) Rename(mapping map[string]string) *Frame {
	out := NewFrame()
	for _, name := range f.names {
		to := name
		if renamed, ok := mapping[name]; ok {
			to = renamed
		}
		out.copyColumn(f, name, to)
	}
	out.rows = f.rows
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame { return f.Drop() }

// WithFloats returns a copy where the named float column is replaced, or
// appended when the frame does not have it yet.
func (f *Frame) WithFloats(name string, values []float64) (*Frame, error) {
	if len(values) != f.rows && len(f.names) > 0 {
		return nil, fmt.Errorf("replace column %q: length %d, frame has %d rows", name, len(values), f.rows)
	}
	out := NewFrame()
	replaced := false
	for _, col := range f.names {
		if col == name {
			out.mustAdd(out.AddFloats(name, slices.Clone(values)))
			replaced = true
			continue
		}
		out.copyColumn(f, col, col)
	}
	if !replaced {
		out.mustAdd(out.AddFloats(name, slices.Clone(values)))
	}
	return out, nil
}

// Concat stacks frames with identical column layouts.
func Concat(frames ...*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return NewFrame(), nil
	}
	first := frames[0]
	out := NewFrame()
	for _, name := range first.names {
		kind := first.kinds[name]
		for _, fr := range frames[1:] {
			if k, ok := fr.kinds[name]; !ok || k != kind || len(fr.names) != len(first.names) {
				return nil, fmt.Errorf("concat: column layouts differ at %q", name)
			}
		}
		switch kind {
		case KindFloat:
			var col []float64
			for _, fr := range frames {
				col = append(col, fr.floats[name]...)
			}
			out.mustAdd(out.AddFloats(name, nonNilFloats(col)))
		case KindInt:
			var col []int
			for _, fr := range frames {
				col = append(col, fr.ints[name]...)
			}
			out.mustAdd(out.AddInts(name, nonNilInts(col)))
		case KindString:
			var col []string
			for _, fr := range frames {
				col = append(col, fr.strings[name]...)
			}
			out.mustAdd(out.AddStrings(name, nonNilStrings(col)))
		}
	}
	return out, nil
}

// Value returns the cell at row for the named column as float64, int or
// string. Null floats are returned as nil.
func (f *Frame) Value(row int, name string) any {
	switch f.kinds[name] {
	case KindFloat:
		v := f.floats[name][row]
		if math.IsNaN(v) {
			return nil
		}
		return v
	case KindInt:
		return f.ints[name][row]
	case KindString:
		return f.strings[name][row]
	}
	return nil
}

// Records returns the rows as column-name keyed maps.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.rows)
	for i := range out {
		rec := make(map[string]any, len(f.names))
		for _, name := range f.names {
			rec[name] = f.Value(i, name)
		}
		out[i] = rec
	}
	return out
}

// MarshalJSON encodes the frame as an array of row objects with null for
// missing floats.
func (f *Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Records())
}

// FrameFromRecords builds a frame from decoded JSON rows. Columns listed in
// kinds get that storage type; everything else is a float column. Column order
// follows order, then any remaining keys in first-seen, sorted-per-row order.
func FrameFromRecords(records []map[string]any, order []string, kinds map[string]Kind) (*Frame, error) {
	names := slices.Clone(order)
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !slices.Contains(names, k) {
				names = append(names, k)
			}
		}
	}

	var issues []Issue
	out := NewFrame()
	for _, name := range names {
		switch kinds[name] {
		case KindInt:
			col := make([]int, len(records))
			for i, rec := range records {
				n, ok := toInt(rec[name])
				if !ok {
					issues = append(issues, Issue{Column: name, Rule: "type", Row: i, Detail: fmt.Sprintf("expected integer, got %v", rec[name])})
					continue
				}
				col[i] = n
			}
			out.mustAdd(out.AddInts(name, col))
		case KindString:
			col := make([]string, len(records))
			for i, rec := range records {
				s, ok := rec[name].(string)
				if !ok {
					issues = append(issues, Issue{Column: name, Rule: "type", Row: i, Detail: fmt.Sprintf("expected string, got %v", rec[name])})
					continue
				}
				col[i] = s
			}
			out.mustAdd(out.AddStrings(name, col))
		default:
			col := make([]float64, len(records))
			for i, rec := range records {
				v, ok := toFloat(rec[name])
				if !ok {
					issues = append(issues, Issue{Column: name, Rule: "type", Row: i, Detail: fmt.Sprintf("expected number, got %v", rec[name])})
					continue
				}
				col[i] = v
			}
			out.mustAdd(out.AddFloats(name, col))
		}
	}
	out.rows = len(records)
	if len(issues) > 0 {
		return nil, &SchemaViolation{Schema: "records", Issues: issues}
	}
	return out, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsNaN(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func (f *Frame) copyColumn(src *Frame, from, to string) {
	switch src.kinds[from] {
	case KindFloat:
		f.mustAdd(f.AddFloats(to, slices.Clone(src.floats[from])))
	case KindInt:
		f.mustAdd(f.AddInts(to, slices.Clone(src.ints[from])))
	case KindString:
		f.mustAdd(f.AddStrings(to, slices.Clone(src.strings[from])))
	}
}

// mustAdd panics on errors that can only come from a programming mistake
// inside this package (duplicate names or mismatched lengths on copies).
func (f *Frame) mustAdd(err error) {
	if err != nil {
		panic(err)
	}
}

func nonNilFloats(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
