package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/couchcryptid/dendroclim/internal/domain"
)

// Key columns written in front of every comparison table.
var keyHeader = []string{"Month", "Day"}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return formatFloat(x)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

// keyCells renders a calendar key. Monthly keys leave Day empty.
func keyCells(k domain.CalendarKey) []string {
	day := ""
	if !k.IsMonthly() {
		day = strconv.Itoa(k.Day)
	}
	return []string{strconv.Itoa(int(k.Month)), day}
}

func flush(cw *csv.Writer) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteFrame writes f as csv with a header row. Null cells are empty.
func WriteFrame(w io.Writer, f *domain.Frame) error {
	cw := csv.NewWriter(w)
	cols := f.Columns()
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	record := make([]string, len(cols))
	for row := 0; row < f.Len(); row++ {
		for i, c := range cols {
			record[i] = formatValue(f.Value(row, c))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return flush(cw)
}

// WriteComparison writes one row per calendar key: Month, Day, Stat, P-value.
func WriteComparison(w io.Writer, t *domain.ComparisonTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, keyHeader...), "Stat", "P-value")); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, r := range t.Rows {
		record := append(keyCells(r.Key), formatPtr(r.Stat), formatPtr(r.PValue))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return flush(cw)
}

// WriteFullComparison writes the merged table with its eight statistic columns.
func WriteFullComparison(w io.Writer, t *domain.FullComparisonTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, keyHeader...), t.StatColumns()...)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, r := range t.Rows {
		record := keyCells(r.Key)
		for _, c := range r.Cells() {
			record = append(record, formatPtr(c.Stat), formatPtr(c.PValue))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return flush(cw)
}

// WriteSeasons writes one summary row per season. The stacked daily rows are
// written with WriteFrame(t.Frame()).
func WriteSeasons(w io.Writer, t *domain.SeasonTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Year", "Start month", "Start day", "End month", "End day", "Length"}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, s := range t.Seasons {
		record := []string{
			strconv.Itoa(s.Year),
			strconv.Itoa(int(s.FirstDay.Month)), strconv.Itoa(s.FirstDay.Day),
			strconv.Itoa(int(s.LastDay.Month)), strconv.Itoa(s.LastDay.Day),
			strconv.Itoa(s.Len()),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return flush(cw)
}

// WriteMatrix writes a square matrix with the column names as both the header
// and the first column. NaN cells are empty.
func WriteMatrix(w io.Writer, m domain.Matrix) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, m.Names...)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for i, name := range m.Names {
		record := []string{name}
		for j := range m.Names {
			v := m.Data.At(i, j)
			if math.IsNaN(v) {
				record = append(record, "")
				continue
			}
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	return flush(cw)
}
