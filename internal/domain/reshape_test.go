package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wideDaily(t *testing.T, months, days []int, years map[string][]float64, order ...string) *Frame {
	t.Helper()
	f := NewFrame()
	require.NoError(t, f.AddInts(ColMonth, months))
	require.NoError(t, f.AddInts(ColDay, days))
	for _, name := range order {
		require.NoError(t, f.AddFloats(name, years[name]))
	}
	return f
}

func TestDailyFromWide(t *testing.T) {
	months := []int{2, 2, 3}
	days := []int{28, 29, 1}
	temp := wideDaily(t, months, days, map[string][]float64{
		"2003": {-5, nan, -2},
		"2004": {-4, -3, 0},
	}, "2003", "2004")
	prec := wideDaily(t, months, days, map[string][]float64{
		"2003": {1, nan, 0},
		"2004": {0, 2, nan},
	}, "2003", "2004")

	series, err := DailyFromWide(temp, prec)
	require.NoError(t, err)
	f := series.Frame()

	assert.Equal(t, []string{ColYear, ColMonth, ColDay, ColTemperature, ColPrecipitation}, f.Columns())
	assert.Equal(t, []int{2003, 2003, 2004, 2004, 2004}, f.Ints(ColYear), "empty Feb 29 of 2003 is dropped")
	assert.Equal(t, []int{28, 1, 28, 29, 1}, f.Ints(ColDay))
	assertFloats(t, []float64{-5, -2, -4, -3, 0}, f.Floats(ColTemperature))
	assertFloats(t, []float64{1, 0, 0, 2, nan}, f.Floats(ColPrecipitation))
}

func TestDailyFromWide_TemperatureOnly(t *testing.T) {
	temp := wideDaily(t, []int{1, 1}, []int{1, 2}, map[string][]float64{"1990": {1, 2}}, "1990")

	series, err := DailyFromWide(temp, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{ColYear, ColMonth, ColDay, ColTemperature}, series.Frame().Columns())
	assert.Equal(t, 2, series.Len())
}

func TestDailyFromWide_Errors(t *testing.T) {
	temp := wideDaily(t, []int{1, 1}, []int{1, 2}, map[string][]float64{"1990": {1, 2}, "1991": {3, 4}}, "1990", "1991")

	tests := []struct {
		name string
		prec *Frame
	}{
		{"different days", wideDaily(t, []int{1, 1}, []int{1, 3}, map[string][]float64{"1990": {1, 2}, "1991": {3, 4}}, "1990", "1991")},
		{"different years", wideDaily(t, []int{1, 1}, []int{1, 2}, map[string][]float64{"1990": {1, 2}, "1992": {3, 4}}, "1990", "1992")},
		{"non-year column", wideDaily(t, []int{1, 1}, []int{1, 2}, map[string][]float64{"1990": {1, 2}, "total": {3, 4}}, "1990", "total")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DailyFromWide(temp, tt.prec)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}

	_, err := DailyFromWide(nil, nil)
	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	badDay := wideDaily(t, []int{4}, []int{31}, map[string][]float64{"1990": {1}}, "1990")
	_, err = DailyFromWide(badDay, nil)
	var violation *SchemaViolation
	assert.True(t, errors.As(err, &violation))
}
