package tabular

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func TestReadCSV(t *testing.T) {
	input := "Year,Month,Day,Temperature,Station,\n" +
		"2000,1,1,-3.5,north,\n" +
		"2000,1,2,,north\n" +
		",,,,\n" +
		"2000,1,3,\"-1,5\",south,\n"

	f, err := ReadCSV(strings.NewReader(input), Selector{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Year", "Month", "Day", "Temperature", "Station"}, f.Columns())
	assert.Equal(t, 3, f.Len(), "blank rows are skipped")
	assert.Equal(t, []int{1, 2, 3}, f.Ints(domain.ColDay))
	temps := f.Floats(domain.ColTemperature)
	assert.InDelta(t, -3.5, temps[0], 1e-12)
	assert.True(t, math.IsNaN(temps[1]))
	assert.InDelta(t, -1.5, temps[2], 1e-12, "decimal comma")
	assert.Equal(t, []string{"north", "north", "south"}, f.Strings("Station"))
}

func TestReadCSV_Selector(t *testing.T) {
	input := "Year,TRW,Note\n2000,1.5,a\n2001,2,b\n"

	f, err := ReadCSV(strings.NewReader(input), Selector{
		Columns: []string{"TRW", "Year"},
		Kinds:   map[string]domain.Kind{"Year": domain.KindFloat},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"TRW", "Year"}, f.Columns())
	kind, _ := f.Kind("Year")
	assert.Equal(t, domain.KindFloat, kind)

	_, err = ReadCSV(strings.NewReader(input), Selector{Columns: []string{"Width"}})
	assert.ErrorContains(t, err, `column "Width" not found`)
}

func TestReadCSV_TypeIssues(t *testing.T) {
	input := "Year,Month,Day\n2000,1,x\n2000,Jan,2\n"

	_, err := ReadCSV(strings.NewReader(input), Selector{})
	var violation *domain.SchemaViolation
	require.True(t, errors.As(err, &violation), "got %v", err)
	require.Len(t, violation.Issues, 2)
	assert.Equal(t, "Month", violation.Issues[0].Column)
	assert.Equal(t, 1, violation.Issues[0].Row)
	assert.Equal(t, "Day", violation.Issues[1].Column)
}

func TestReadCSV_DuplicateHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("Year,Year\n1,2\n"), Selector{})
	assert.ErrorContains(t, err, "duplicate column")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.csv"), Selector{})
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	txt := filepath.Join(dir, "table.txt")
	require.NoError(t, os.WriteFile(txt, []byte("Year\n2000\n"), 0o600))
	_, err = Load(txt, Selector{})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	csvPath := filepath.Join(dir, "table.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Year,TRW\n2000,1.5\n"), 0o600))
	_, err = LoadDailyWorkbook(csvPath, "T", "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat, "daily workbooks must be xlsx")

	f, err := Load(csvPath, Selector{})
	require.NoError(t, err)
	assert.Equal(t, []int{2000}, f.Ints(domain.ColYear))
}

func TestWorkbookRoundTrip(t *testing.T) {
	f := domain.NewFrame()
	require.NoError(t, f.AddInts(domain.ColYear, []int{2000, 2001}))
	require.NoError(t, f.AddFloats(domain.ColTRW, []float64{0.75, nan}))
	path := filepath.Join(t.TempDir(), "ref.xlsx")
	require.NoError(t, WriteWorkbook(path, []string{"Chronology"}, []*domain.Frame{f}))

	got, err := Load(path, Selector{Sheet: "Chronology"})
	require.NoError(t, err)
	assert.Equal(t, []int{2000, 2001}, got.Ints(domain.ColYear))
	trw := got.Floats(domain.ColTRW)
	assert.InDelta(t, 0.75, trw[0], 1e-12)
	assert.True(t, math.IsNaN(trw[1]))

	_, err = Load(path, Selector{Sheet: "Missing"})
	assert.ErrorContains(t, err, `sheet "Missing" not found`)
}

func wideSheet(t *testing.T, years map[string][]float64, order ...string) *domain.Frame {
	t.Helper()
	f := domain.NewFrame()
	require.NoError(t, f.AddInts(domain.ColMonth, []int{2, 2, 3}))
	require.NoError(t, f.AddInts(domain.ColDay, []int{28, 29, 1}))
	for _, year := range order {
		require.NoError(t, f.AddFloats(year, years[year]))
	}
	return f
}

func TestLoadDailyWorkbook(t *testing.T) {
	temp := wideSheet(t, map[string][]float64{"2003": {-5, nan, -2}, "2004": {-4, -3, 0}}, "2003", "2004")
	prec := wideSheet(t, map[string][]float64{"2003": {1, nan, 0}, "2004": {0, 2, 3}}, "2003", "2004")
	path := filepath.Join(t.TempDir(), "daily.xlsx")
	require.NoError(t, WriteWorkbook(path, []string{"Temp", "Prec"}, []*domain.Frame{temp, prec}))

	series, err := LoadDailyWorkbook(path, "Temp", "Prec")
	require.NoError(t, err)
	f := series.Frame()
	assert.Equal(t, []int{2003, 2003, 2004, 2004, 2004}, f.Ints(domain.ColYear))
	assert.Equal(t, []float64{-5, -2, -4, -3, 0}, f.Floats(domain.ColTemperature))
	assert.Equal(t, []float64{1, 0, 0, 2, 3}, f.Floats(domain.ColPrecipitation))

	tempOnly, err := LoadDailyWorkbook(path, "Temp", "")
	require.NoError(t, err)
	assert.False(t, tempOnly.Frame().Has(domain.ColPrecipitation))
}

func tracheidSheet(t *testing.T, numbers []int, trw, d1 []float64) *domain.Frame {
	t.Helper()
	f := domain.NewFrame()
	require.NoError(t, f.AddInts(domain.ColNumber, numbers))
	require.NoError(t, f.AddInts(tracheidYearHeader, []int{1990, 1990, 1991}))
	require.NoError(t, f.AddFloats(tracheidTRWHeader, trw))
	require.NoError(t, f.AddFloats("D1", d1))
	return f
}

func TestLoadTracheidWorkbook(t *testing.T) {
	a := tracheidSheet(t, []int{1, 2, 1}, []float64{1.2, 1.2, 0.8}, []float64{30, 28, 25})
	b := tracheidSheet(t, []int{1, 2, 1}, []float64{0.9, 0.9, 1.1}, []float64{31, nan, 27})
	path := filepath.Join(t.TempDir(), "cells.xlsx")
	require.NoError(t, WriteWorkbook(path, []string{"T1", "T2"}, []*domain.Frame{a, b}))

	tr, err := LoadTracheidWorkbook(path, nil)
	require.NoError(t, err)
	f := tr.Frame()

	assert.Equal(t, []string{domain.ColTree, domain.ColNumber, domain.ColYear, domain.ColTRW, "D1"}, f.Columns())
	assert.Equal(t, []string{"T1", "T1", "T1", "T2", "T2"}, f.Strings(domain.ColTree), "row with an empty D1 is dropped")
	assert.Equal(t, []int{1990, 1990, 1991, 1990, 1991}, f.Ints(domain.ColYear))
	assert.Equal(t, []int{1, 2, 1, 1, 1}, f.Ints(domain.ColNumber))
	assert.Equal(t, []string{"D1"}, tr.MeasurementColumns())

	only, err := LoadTracheidWorkbook(path, []string{"T2"})
	require.NoError(t, err)
	assert.Equal(t, 2, only.Frame().Len())
}

func TestWriteFrame(t *testing.T) {
	f := domain.NewFrame()
	require.NoError(t, f.AddInts(domain.ColYear, []int{2000, 2001}))
	require.NoError(t, f.AddFloats(domain.ColTRW, []float64{1.25, nan}))
	require.NoError(t, f.AddStrings(domain.ColTree, []string{"a", "b,c"}))

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))
	assert.Equal(t, "Year,TRW,Tree\n2000,1.25,a\n2001,,\"b,c\"\n", buf.String())
}

func ptr(v float64) *float64 { return &v }

func TestWriteComparison(t *testing.T) {
	table := &domain.ComparisonTable{Rows: []domain.ComparisonRow{
		{Key: domain.DailyKey(1, 1), Stat: ptr(0.5), PValue: ptr(0.01), N: 10},
		{Key: domain.MonthlyKey(2), N: 1},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteComparison(&buf, table))
	assert.Equal(t, "Month,Day,Stat,P-value\n1,1,0.5,0.01\n2,,,\n", buf.String())
}

func TestWriteFullComparison(t *testing.T) {
	table := &domain.FullComparisonTable{
		Primary:   domain.ColTemperature,
		Secondary: domain.ColPrecipitation,
		Rows: []domain.FullComparisonRow{{
			Key:     domain.DailyKey(3, 4),
			Primary: domain.Cell{Stat: ptr(0.1), PValue: ptr(0.2)},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFullComparison(&buf, table))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Month,Day,Stat Temp,P-value Temp,Stat Temp prev,P-value Temp prev,"+
		"Stat Prec,P-value Prec,Stat Prec prev,P-value Prec prev", lines[0])
	assert.Equal(t, "3,4,0.1,0.2,,,,,,", lines[1])
}

func TestWriteSeasons(t *testing.T) {
	table := &domain.SeasonTable{Seasons: []domain.GrowthSeason{{
		Year: 2000, Start: 120, End: 250,
		FirstDay: domain.DailyKey(5, 1), LastDay: domain.DailyKey(9, 8),
	}}}

	var buf bytes.Buffer
	require.NoError(t, WriteSeasons(&buf, table))
	assert.Equal(t, "Year,Start month,Start day,End month,End day,Length\n2000,5,1,9,8,131\n", buf.String())
}

func TestWriteMatrix(t *testing.T) {
	f := domain.NewFrame()
	require.NoError(t, f.AddFloats("A", []float64{1, 2, nan}))
	require.NoError(t, f.AddFloats("B", []float64{1, nan, 3}))
	m, err := domain.PairwiseOverlap(f)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteMatrix(&buf, m))
	assert.Equal(t, ",A,B\nA,2,1\nB,1,2\n", buf.String())
}
