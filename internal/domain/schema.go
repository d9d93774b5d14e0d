package domain

import (
	"fmt"
	"math"
)

// ColumnSpec is one column rule of a Schema. Bounds apply when Bounded is set
// and are inclusive; nulls are never range-checked.
type ColumnSpec struct {
	Name     string
	Kind     Kind
	Optional bool
	Nullable bool
	Bounded  bool
	Min      float64
	Max      float64
}

// FrameCheck is a whole-frame rule that runs after the column rules, for
// constraints spanning several columns.
type FrameCheck func(f *Frame) []Issue

// Schema is an ordered list of column rules plus optional frame checks.
type Schema struct {
	Name    string
	Columns []ColumnSpec
	Checks  []FrameCheck
}

func bounded(name string, kind Kind, nullable bool, lo, hi float64) ColumnSpec {
	return ColumnSpec{Name: name, Kind: kind, Nullable: nullable, Bounded: true, Min: lo, Max: hi}
}

// Validate checks f against every rule and returns a *SchemaViolation listing
// all of them, or nil.
func (s Schema) Validate(f *Frame) error {
	var issues []Issue
	for _, spec := range s.Columns {
		issues = append(issues, spec.check(f)...)
	}
	if len(issues) == 0 {
		for _, check := range s.Checks {
			issues = append(issues, check(f)...)
		}
	}
	if len(issues) > 0 {
		return &SchemaViolation{Schema: s.Name, Issues: issues}
	}
	return nil
}

func (c ColumnSpec) check(f *Frame) []Issue {
	kind, ok := f.Kind(c.Name)
	if !ok {
		if c.Optional {
			return nil
		}
		return []Issue{{Column: c.Name, Rule: "required", Detail: "column is missing"}}
	}
	if kind != c.Kind {
		return []Issue{{Column: c.Name, Rule: "type", Detail: fmt.Sprintf("expected %s, got %s", c.Kind, kind)}}
	}

	var issues []Issue
	nulls := rowCounter{}
	outOfRange := rowCounter{}
	switch kind {
	case KindFloat:
		for i, v := range f.floatCol(c.Name) {
			if math.IsNaN(v) {
				if !c.Nullable {
					nulls.add(i)
				}
				continue
			}
			if c.Bounded && (v < c.Min || v > c.Max) {
				outOfRange.add(i)
			}
		}
	case KindInt:
		if c.Bounded {
			for i, v := range f.intCol(c.Name) {
				if float64(v) < c.Min || float64(v) > c.Max {
					outOfRange.add(i)
				}
			}
		}
	}
	if nulls.count > 0 {
		issues = append(issues, Issue{Column: c.Name, Rule: "nullable", Row: nulls.first, Count: nulls.count, Detail: "null values not allowed"})
	}
	if outOfRange.count > 0 {
		issues = append(issues, Issue{
			Column: c.Name, Rule: "range", Row: outOfRange.first, Count: outOfRange.count,
			Detail: fmt.Sprintf("values must be within [%g, %g]", c.Min, c.Max),
		})
	}
	return issues
}

type rowCounter struct {
	first int
	count int
}

func (r *rowCounter) add(row int) {
	if r.count == 0 {
		r.first = row
	}
	r.count++
}

var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// checkCalendarDays rejects days that do not exist in their month, including
// Feb 29 outside leap years.
func checkCalendarDays(f *Frame) []Issue {
	years, months, days := f.intCol(ColYear), f.intCol(ColMonth), f.intCol(ColDay)
	bad := rowCounter{}
	for i := range days {
		m := months[i]
		if m < 1 || m > 12 || days[i] < 1 {
			bad.add(i)
			continue
		}
		last := daysInMonth[m]
		if m == 2 && isLeap(years[i]) {
			last = 29
		}
		if days[i] > last {
			bad.add(i)
		}
	}
	if bad.count == 0 {
		return nil
	}
	return []Issue{{Column: ColDay, Rule: "calendar", Row: bad.first, Count: bad.count, Detail: "day is not valid for its month"}}
}

func uniqueRows(columns ...string) FrameCheck {
	return func(f *Frame) []Issue {
		seen := make(map[[3]int]struct{}, f.Len())
		dup := rowCounter{}
		for i := 0; i < f.Len(); i++ {
			var key [3]int
			for j, col := range columns {
				key[j] = f.intCol(col)[i]
			}
			if _, ok := seen[key]; ok {
				dup.add(i)
				continue
			}
			seen[key] = struct{}{}
		}
		if dup.count == 0 {
			return nil
		}
		return []Issue{{Column: fmt.Sprint(columns), Rule: "unique", Row: dup.first, Count: dup.count, Detail: "duplicate key"}}
	}
}
