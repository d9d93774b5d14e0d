package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dendroclim/internal/domain"
)

const dailyCSV = `Year,Month,Day,Temperature,Precipitation
2000,1,1,1,2
2000,1,2,3,4
2001,1,1,2,0
2002,1,1,3,1
2003,1,1,4,0
`

const referenceCSV = `Year,TRW
2000,2
2001,4
2002,6
2003,8
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCompareCmd(t *testing.T) {
	daily := writeFile(t, "daily.csv", dailyCSV)
	ref := writeFile(t, "trw.csv", referenceCSV)

	out, err := execute(t, "compare", daily, ref)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Month,Day,Stat,P-value", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,1,"), lines[1])
	assert.Equal(t, "1,2,,", lines[2], "a single pair gives a null row")
}

func TestCompareCmd_MonthlyWithLag(t *testing.T) {
	daily := writeFile(t, "daily.csv", dailyCSV)
	ref := writeFile(t, "trw.csv", referenceCSV)

	out, err := execute(t, "compare", daily, ref, "--monthly", "--lag", "previous_year", "--comparator", "spearman")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "1,,"), "monthly keys leave Day empty: %s", lines[1])
}

func TestCompareCmd_Errors(t *testing.T) {
	daily := writeFile(t, "daily.csv", dailyCSV)
	ref := writeFile(t, "trw.csv", referenceCSV)

	_, err := execute(t, "compare", daily, ref, "--comparator", "kendall")
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "comparator", cfgErr.Parameter)

	_, err = execute(t, "compare", daily, ref, "--lag", "tomorrow")
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "lag", cfgErr.Parameter)

	_, err = execute(t, "compare", filepath.Join(t.TempDir(), "missing.csv"), ref)
	assert.ErrorIs(t, err, domain.ErrFileNotFound)

	_, err = execute(t, "compare", daily)
	assert.Error(t, err, "two arguments are required")
}

func TestFullCmd_WritesOutputFile(t *testing.T) {
	daily := writeFile(t, "daily.csv", dailyCSV)
	ref := writeFile(t, "trw.csv", referenceCSV)
	outPath := filepath.Join(t.TempDir(), "full.csv")

	stdout, err := execute(t, "full", daily, ref, "-o", outPath, "--smoothing-window", "3")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Len(t, strings.Split(lines[0], ","), 10, "Month, Day and eight statistic columns")
}

func TestSeasonCmd(t *testing.T) {
	var b strings.Builder
	b.WriteString("Year,Month,Day,Temperature\n")
	for i, v := range []int{0, 0, 20, 20, 20, 20, 20, 20, 2, 0} {
		fmt.Fprintf(&b, "2000,5,%d,%d\n", i+1, v)
	}
	daily := writeFile(t, "daily.csv", b.String())

	out, err := execute(t, "season", daily, "--smoothing-window", "0", "--start-window", "3", "--start-threshold", "50", "--end-threshold", "5")
	require.NoError(t, err)
	assert.Equal(t, "Year,Start month,Start day,End month,End day,Length\n2000,5,4,5,9,6\n", out)
}

func TestMonthlyCmd(t *testing.T) {
	daily := writeFile(t, "daily.csv", dailyCSV)

	out, err := execute(t, "monthly", daily)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "Year,Month,Temperature,Precipitation", lines[0])
	assert.Equal(t, "2000,1,2,6", lines[1])
	assert.Len(t, lines, 5)

	out, err = execute(t, "monthly", daily, "--climatology")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestOverlapCmd(t *testing.T) {
	table := writeFile(t, "chron.csv", "Year,A,B\n2000,1,\n2001,2,3\n2002,,4\n")

	out, err := execute(t, "overlap", table, "--columns", "A,B")
	require.NoError(t, err)
	assert.Equal(t, ",A,B\nA,2,1\nB,1,2\n", out)
}

func TestCorrCmd(t *testing.T) {
	table := writeFile(t, "chron.csv", "Year,A,B\n2000,1,2\n2001,2,4\n2002,3,6\n2003,4,9\n")

	out, err := execute(t, "corr", table, "--columns", "A,B")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "A,,0.9"), lines[1])

	out, err = execute(t, "corr", table, "--columns", "A,B", "--pvalues")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.Split(out, "\n")[1], "A,,0.0"))
}

func TestValidateCmd(t *testing.T) {
	daily := writeFile(t, "daily.csv", dailyCSV)
	out, err := execute(t, "validate", daily)
	require.NoError(t, err)
	assert.Contains(t, out, "5 rows match the daily schema")

	bad := writeFile(t, "bad.csv", "Year,Month,Day,Temperature\n2001,2,29,1\n")
	_, err = execute(t, "validate", bad)
	var violation *domain.SchemaViolation
	require.True(t, errors.As(err, &violation), "got %v", err)
	assert.Equal(t, "daily", violation.Schema)

	_, err = execute(t, "validate", daily, "--schema", "weekly")
	var cfgErr *domain.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
}
