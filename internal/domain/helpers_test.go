package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

// dailyFrame builds a daily frame for consecutive days of each year starting
// on January 1st. temps holds one slice per year.
func dailyFrame(t *testing.T, startYear int, temps ...[]float64) *Frame {
	t.Helper()
	var years, months, days []int
	var values []float64
	for i, yearTemps := range temps {
		day := time.Date(startYear+i, time.January, 1, 0, 0, 0, 0, time.UTC)
		for _, v := range yearTemps {
			years = append(years, day.Year())
			months = append(months, int(day.Month()))
			days = append(days, day.Day())
			values = append(values, v)
			day = day.AddDate(0, 0, 1)
		}
	}
	f := NewFrame()
	require.NoError(t, f.AddInts(ColYear, years))
	require.NoError(t, f.AddInts(ColMonth, months))
	require.NoError(t, f.AddInts(ColDay, days))
	require.NoError(t, f.AddFloats(ColTemperature, values))
	return f
}

func dailySeries(t *testing.T, startYear int, temps ...[]float64) *DailySeries {
	t.Helper()
	s, err := NewDailySeries(dailyFrame(t, startYear, temps...))
	require.NoError(t, err)
	return s
}

func reference(t *testing.T, years []int, trw []float64) *Reference {
	t.Helper()
	f := NewFrame()
	require.NoError(t, f.AddInts(ColYear, years))
	require.NoError(t, f.AddFloats(ColTRW, trw))
	ref, err := NewReference(f)
	require.NoError(t, err)
	return ref
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
