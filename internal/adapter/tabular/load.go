// Package tabular loads frames from xlsx and csv files and writes frames and
// analysis results as csv.
package tabular

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/dendroclim/internal/domain"
)

// Selector narrows what is read from a source.
type Selector struct {
	// Sheet is the xlsx sheet name. Empty selects the first sheet.
	Sheet string
	// Columns keeps only these columns, in this order. Empty keeps all.
	Columns []string
	// Kinds overrides the storage type of named columns. Year, Month, Day and
	// № are integers and Tree is a string unless overridden; every other
	// column is numeric when all of its cells parse as numbers.
	Kinds map[string]domain.Kind
}

var defaultKinds = map[string]domain.Kind{
	domain.ColYear:   domain.KindInt,
	domain.ColMonth:  domain.KindInt,
	domain.ColDay:    domain.KindInt,
	domain.ColNumber: domain.KindInt,
	domain.ColTree:   domain.KindString,
}

func (s Selector) kindOf(name string) (domain.Kind, bool) {
	if k, ok := s.Kinds[name]; ok {
		return k, true
	}
	k, ok := defaultKinds[name]
	return k, ok
}

// Load reads one table from an xlsx or csv file.
func Load(path string, sel Selector) (*domain.Frame, error) {
	format, err := checkSource(path)
	if err != nil {
		return nil, err
	}
	if format == formatCSV {
		return LoadCSV(path, sel)
	}
	return LoadSheet(path, sel)
}

const (
	formatXLSX = "xlsx"
	formatCSV  = "csv"
)

// checkSource reports the format of path, or ErrFileNotFound and
// ErrUnsupportedFormat.
func checkSource(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("load %s: %w", path, domain.ErrFileNotFound)
		}
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return formatXLSX, nil
	case ".csv":
		return formatCSV, nil
	default:
		return "", fmt.Errorf("load %s: %w: %q", path, domain.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// buildFrame turns a header row plus data rows of cell text into a frame.
// Columns with an empty header are dropped, as are rows with no cell text.
func buildFrame(rows [][]string, sel Selector) (*domain.Frame, error) {
	if len(rows) == 0 {
		return domain.NewFrame(), nil
	}
	header := rows[0]
	var data [][]string
	for _, row := range rows[1:] {
		if !blank(row) {
			data = append(data, row)
		}
	}
	cell := func(row []string, col int) string {
		if col < len(row) {
			return strings.TrimSpace(row[col])
		}
		return ""
	}

	positions := make(map[string]int)
	var names []string
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "Unnamed") {
			continue
		}
		if _, dup := positions[h]; dup {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		positions[h] = i
		names = append(names, h)
	}
	if len(sel.Columns) > 0 {
		for _, name := range sel.Columns {
			if _, ok := positions[name]; !ok {
				return nil, fmt.Errorf("column %q not found", name)
			}
		}
		names = sel.Columns
	}

	f := domain.NewFrame()
	var issues []domain.Issue
	for _, name := range names {
		col := positions[name]
		kind, fixed := sel.kindOf(name)
		if !fixed {
			kind = inferKind(data, func(row []string) string { return cell(row, col) })
		}
		var err error
		switch kind {
		case domain.KindInt:
			values := make([]int, len(data))
			for i, row := range data {
				n, perr := parseInt(cell(row, col))
				if perr != nil {
					issues = append(issues, domain.Issue{Column: name, Rule: "type", Row: i, Detail: perr.Error()})
					continue
				}
				values[i] = n
			}
			err = f.AddInts(name, values)
		case domain.KindFloat:
			values := make([]float64, len(data))
			for i, row := range data {
				v, perr := parseFloat(cell(row, col))
				if perr != nil {
					issues = append(issues, domain.Issue{Column: name, Rule: "type", Row: i, Detail: perr.Error()})
					continue
				}
				values[i] = v
			}
			err = f.AddFloats(name, values)
		default:
			values := make([]string, len(data))
			for i, row := range data {
				values[i] = cell(row, col)
			}
			err = f.AddStrings(name, values)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(issues) > 0 {
		return nil, &domain.SchemaViolation{Schema: "source", Issues: issues}
	}
	return f, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func inferKind(data [][]string, cell func([]string) string) domain.Kind {
	for _, row := range data {
		if _, err := parseFloat(cell(row)); err != nil {
			return domain.KindString
		}
	}
	return domain.KindFloat
}

func parseFloat(s string) (float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}

func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v != math.Trunc(v) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(v), nil
}
