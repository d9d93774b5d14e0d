package tabular

import (
	"fmt"
	"math"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Column headers of tracheid workbooks.
const (
	tracheidYearHeader = "Год"
	tracheidTRWHeader  = "ШГК"
)

// LoadSheet reads one sheet of an xlsx workbook. The first row is the header.
func LoadSheet(path string, sel Selector) (*domain.Frame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return readSheet(f, sel)
}

func readSheet(f *excelize.File, sel Selector) (*domain.Frame, error) {
	sheet := sel.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	frame, err := buildFrame(rows, sel)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	return frame, nil
}

// LoadDailyWorkbook reads wide daily temperature and precipitation sheets
// (Month, Day, one column per year) and converts them into a long daily series.
// An empty precSheet loads temperature only.
func LoadDailyWorkbook(path, tempSheet, precSheet string) (*domain.DailySeries, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	temp, err := readSheet(f, Selector{Sheet: tempSheet})
	if err != nil {
		return nil, err
	}
	var prec *domain.Frame
	if precSheet != "" {
		if prec, err = readSheet(f, Selector{Sheet: precSheet}); err != nil {
			return nil, err
		}
	}
	return domain.DailyFromWide(temp, prec)
}

// openWorkbook opens path after checking that it is an existing xlsx file.
func openWorkbook(path string) (*excelize.File, error) {
	format, err := checkSource(path)
	if err != nil {
		return nil, err
	}
	if format != formatXLSX {
		return nil, fmt.Errorf("load %s: %w: workbook expected", path, domain.ErrUnsupportedFormat)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return f, nil
}

// LoadTracheidWorkbook reads one sheet per tree. Year and ring width headers
// are renamed to Year and TRW, rows with an empty measurement are dropped
// and the sheet name becomes the Tree column.
func LoadTracheidWorkbook(path string, trees []string) (*domain.Tracheids, error) {
	f, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if len(trees) == 0 {
		trees = f.GetSheetList()
	}

	// Year and cell number are read as floats so rows with empty cells can be
	// dropped before they are converted.
	sel := Selector{Kinds: map[string]domain.Kind{
		tracheidYearHeader: domain.KindFloat,
		domain.ColNumber:   domain.KindFloat,
	}}
	frames := make([]*domain.Frame, 0, len(trees))
	for _, tree := range trees {
		sel.Sheet = tree
		sheet, err := readSheet(f, sel)
		if err != nil {
			return nil, err
		}
		sheet = sheet.Rename(map[string]string{tracheidYearHeader: domain.ColYear, tracheidTRWHeader: domain.ColTRW})
		sheet, err = floatsToInts(dropNullRows(sheet), domain.ColYear, domain.ColNumber)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", tree, err)
		}
		names := make([]string, sheet.Len())
		for i := range names {
			names[i] = tree
		}
		withTree, err := prependStrings(sheet, domain.ColTree, names)
		if err != nil {
			return nil, err
		}
		frames = append(frames, withTree)
	}
	all, err := domain.Concat(frames...)
	if err != nil {
		return nil, fmt.Errorf("combine tree sheets: %w", err)
	}
	return domain.NewTracheids(all)
}

// dropNullRows keeps the rows without a null float cell.
func dropNullRows(f *domain.Frame) *domain.Frame {
	var floats [][]float64
	for _, col := range f.FloatColumns() {
		floats = append(floats, f.Floats(col))
	}
	var keep []int
	for row := 0; row < f.Len(); row++ {
		ok := true
		for _, col := range floats {
			if math.IsNaN(col[row]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, row)
		}
	}
	return f.Take(keep)
}

// floatsToInts converts the named float columns to integer columns. Missing
// columns are left for schema validation to report.
func floatsToInts(f *domain.Frame, names ...string) (*domain.Frame, error) {
	out := f
	for _, name := range names {
		if kind, ok := out.Kind(name); !ok || kind != domain.KindFloat {
			continue
		}
		src := out.Floats(name)
		ints := make([]int, len(src))
		for i, v := range src {
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("column %s row %d: %v is not an integer", name, i, v)
			}
			ints[i] = int(v)
		}
		cols := out.Columns()
		next := domain.NewFrame()
		for _, col := range cols {
			var err error
			switch {
			case col == name:
				err = next.AddInts(col, ints)
			default:
				err = copyColumn(next, out, col)
			}
			if err != nil {
				return nil, err
			}
		}
		out = next
	}
	return out, nil
}

func copyColumn(dst, src *domain.Frame, col string) error {
	kind, _ := src.Kind(col)
	switch kind {
	case domain.KindFloat:
		return dst.AddFloats(col, src.Floats(col))
	case domain.KindInt:
		return dst.AddInts(col, src.Ints(col))
	default:
		return dst.AddStrings(col, src.Strings(col))
	}
}

func prependStrings(f *domain.Frame, name string, values []string) (*domain.Frame, error) {
	out := domain.NewFrame()
	if err := out.AddStrings(name, values); err != nil {
		return nil, err
	}
	for _, col := range f.Columns() {
		if err := copyColumn(out, f, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WriteWorkbook saves frames as sheets of a new xlsx workbook, in order.
func WriteWorkbook(path string, sheets []string, frames []*domain.Frame) error {
	if len(sheets) != len(frames) {
		return fmt.Errorf("write workbook: %d sheet names for %d frames", len(sheets), len(frames))
	}
	wb := excelize.NewFile()
	defer wb.Close()
	for i, name := range sheets {
		if i == 0 {
			if err := wb.SetSheetName(wb.GetSheetName(0), name); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
		} else if _, err := wb.NewSheet(name); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		if err := writeSheet(wb, name, frames[i]); err != nil {
			return fmt.Errorf("write sheet %q: %w", name, err)
		}
	}
	return wb.SaveAs(path)
}

func writeSheet(wb *excelize.File, sheet string, f *domain.Frame) error {
	cols := f.Columns()
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for row := 0; row < f.Len(); row++ {
		values := make([]any, len(cols))
		for i, c := range cols {
			if v := f.Value(row, c); v != nil {
				values[i] = v
			} else {
				values[i] = ""
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, row+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}
