package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJobID = "job-42"

const comparisonJob = `{
	"id": "job-42",
	"kind": "comparison",
	"field": "Temperature",
	"lag": "previous_year",
	"daily": [
		{"Year": 2000, "Month": 1, "Day": 1, "Temperature": 1},
		{"Year": 2000, "Month": 1, "Day": 2, "Temperature": 10},
		{"Year": 2001, "Month": 1, "Day": 1, "Temperature": 2},
		{"Year": 2001, "Month": 1, "Day": 2, "Temperature": null},
		{"Year": 2002, "Month": 1, "Day": 1, "Temperature": 3},
		{"Year": 2002, "Month": 1, "Day": 2, "Temperature": 30}
	],
	"reference": [
		{"Year": 2000, "TRW": 1},
		{"Year": 2001, "TRW": 2},
		{"Year": 2002, "TRW": 3}
	]
}`

func resolveDot(name string) (Comparator, error) {
	if name != "dot" {
		return nil, &ConfigurationError{Parameter: "comparator", Reason: "unknown comparator " + name}
	}
	return &dotComparator{}, nil
}

func TestParseAnalysisJob(t *testing.T) {
	job, err := ParseAnalysisJob(RawEvent{Value: []byte(comparisonJob)})
	require.NoError(t, err)

	assert.Equal(t, testJobID, job.ID)
	assert.Equal(t, JobComparison, job.Kind)
	assert.Equal(t, LagPreviousYear, job.Compare.Lag)
	require.NotNil(t, job.Daily)
	assert.Equal(t, 6, job.Daily.Len())
	assert.Nil(t, job.Daily.Frame().Value(3, ColTemperature))
	assert.Equal(t, []string{ColYear, ColMonth, ColDay, ColTemperature}, job.Daily.Frame().Columns())
	require.NotNil(t, job.Reference)
	assert.Equal(t, DefaultSeasonOptions(), job.Season)
}

func TestParseAnalysisJob_Errors(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T, err error)
	}{
		{
			name:  "invalid JSON",
			value: `{not json`,
			check: func(t *testing.T, err error) { assert.Contains(t, err.Error(), "parse analysis job") },
		},
		{
			name:  "unknown kind",
			value: `{"id":"x","kind":"forecast","daily":[{"Year":2000,"Month":1,"Day":1}]}`,
			check: assertConfigError("kind"),
		},
		{
			name:  "missing reference",
			value: `{"id":"x","kind":"comparison","daily":[{"Year":2000,"Month":1,"Day":1,"Temperature":1}]}`,
			check: assertConfigError("job"),
		},
		{
			name:  "unknown lag",
			value: `{"id":"x","kind":"comparison","lag":"tomorrow"}`,
			check: assertConfigError("lag"),
		},
		{
			name:  "missing id",
			value: `{"kind":"growth_season"}`,
			check: assertConfigError("id"),
		},
		{
			name:  "schema violation",
			value: `{"id":"x","kind":"growth_season","daily":[{"Year":2000,"Month":2,"Day":30,"Temperature":500}]}`,
			check: func(t *testing.T, err error) {
				var violation *SchemaViolation
				require.True(t, errors.As(err, &violation), "got %v", err)
				assert.True(t, strings.HasPrefix(err.Error(), "daily table: "))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnalysisJob(RawEvent{Value: []byte(tt.value)})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestParseAnalysisJob_IDFromKey(t *testing.T) {
	value := `{"kind":"monthly_aggregate","daily":[{"Year":2000,"Month":1,"Day":1,"Temperature":1}]}`
	job, err := ParseAnalysisJob(RawEvent{Key: []byte("from-key"), Value: []byte(value)})
	require.NoError(t, err)
	assert.Equal(t, "from-key", job.ID)
}

func TestParseAnalysisJobWithDefaults(t *testing.T) {
	defaults := DefaultJobDefaults()
	defaults.SmoothingWindow = 5
	defaults.Season.StartThreshold = 90

	value := `{"id":"d","kind":"growth_season","season":{"end_threshold":4},
		"daily":[{"Year":2000,"Month":1,"Day":1,"Temperature":1}]}`
	job, err := ParseAnalysisJobWithDefaults(RawEvent{Value: []byte(value)}, defaults)
	require.NoError(t, err)
	assert.Equal(t, 5, job.FullCompare.SmoothingWindow)
	assert.Equal(t, 90.0, job.Season.StartThreshold)
	assert.Equal(t, 4.0, job.Season.EndThreshold)

	value = `{"id":"d","kind":"growth_season","smoothing_window":0,
		"daily":[{"Year":2000,"Month":1,"Day":1,"Temperature":1}]}`
	job, err = ParseAnalysisJobWithDefaults(RawEvent{Value: []byte(value)}, defaults)
	require.NoError(t, err)
	assert.Zero(t, job.FullCompare.SmoothingWindow, "an explicit zero disables smoothing")
}

func assertConfigError(param string) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "got %v", err)
		assert.Equal(t, param, cfgErr.Parameter)
	}
}

func TestRunAnalysis(t *testing.T) {
	fixed := time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	t.Run("comparison", func(t *testing.T) {
		job, err := ParseAnalysisJob(RawEvent{Value: []byte(comparisonJob)})
		require.NoError(t, err)
		job.Comparator = "dot"

		result, err := RunAnalysis(job, resolveDot, "pearson")
		require.NoError(t, err)
		assert.Equal(t, testJobID, result.JobID)
		assert.True(t, strings.HasPrefix(result.ID, "comparison-"))
		assert.Equal(t, fixed, result.ProcessedAt)
		assert.Equal(t, "dot", result.Comparator)
		require.NotNil(t, result.Comparison)
		// Jan 1 pairs 1 and 2 with 2001 and 2002; Jan 2 only has 10 with 2001.
		assert.Equal(t, 2.0+6, *result.Comparison.Rows[0].Stat)
		assert.True(t, result.Comparison.Rows[1].IsNull())
		assert.Equal(t, ResultSummary{Rows: 2, NullCells: 1}, result.Summary)

		again, err := RunAnalysis(job, resolveDot, "pearson")
		require.NoError(t, err)
		assert.Equal(t, result.ID, again.ID, "result IDs are deterministic")
	})

	t.Run("default comparator", func(t *testing.T) {
		job, err := ParseAnalysisJob(RawEvent{Value: []byte(comparisonJob)})
		require.NoError(t, err)

		_, err = RunAnalysis(job, resolveDot, "pearson")
		assertConfigError("comparator")(t, err)

		result, err := RunAnalysis(job, resolveDot, "dot")
		require.NoError(t, err)
		assert.Equal(t, "dot", result.Comparator)
	})

	t.Run("full comparison", func(t *testing.T) {
		value := strings.Replace(comparisonJob, `"kind": "comparison"`, `"kind": "full_comparison", "secondary": "Temperature2"`, 1)
		value = strings.ReplaceAll(value, `"Temperature": `, `"Temperature2": 0, "Temperature": `)
		job, err := ParseAnalysisJob(RawEvent{Value: []byte(value)})
		require.NoError(t, err)

		result, err := RunAnalysis(job, resolveDot, "dot")
		require.NoError(t, err)
		require.NotNil(t, result.FullComparison)
		assert.Len(t, result.FullComparison.Rows, 2)
		assert.Equal(t, 2, result.Summary.Rows)
	})

	t.Run("growth season", func(t *testing.T) {
		rows := make([]map[string]any, 0, len(warmSpell))
		for i, v := range warmSpell {
			rows = append(rows, map[string]any{"Year": 2000, "Month": 1, "Day": i + 1, "Temperature": v})
		}
		data, err := json.Marshal(map[string]any{
			"id":     "season-1",
			"kind":   "growth_season",
			"season": map[string]any{"smoothing_window": 0},
			"daily":  rows,
		})
		require.NoError(t, err)
		job, err := ParseAnalysisJob(RawEvent{Value: data})
		require.NoError(t, err)
		assert.Equal(t, 10, job.Season.StartWindow, "unset season options keep their defaults")

		result, err := RunAnalysis(job, resolveDot, "dot")
		require.NoError(t, err)
		require.NotNil(t, result.Seasons)
		assert.Equal(t, ResultSummary{Rows: 10}, result.Summary)
		assert.Empty(t, result.Comparator)
	})

	t.Run("monthly aggregate", func(t *testing.T) {
		value := `{"id":"m","kind":"monthly_aggregate","daily":[
			{"Year":2000,"Month":1,"Day":1,"Temperature":1,"Precipitation":2},
			{"Year":2000,"Month":1,"Day":2,"Temperature":3,"Precipitation":4}]}`
		job, err := ParseAnalysisJob(RawEvent{Value: []byte(value)})
		require.NoError(t, err)

		result, err := RunAnalysis(job, resolveDot, "dot")
		require.NoError(t, err)
		require.NotNil(t, result.Monthly)
		assert.Equal(t, []float64{2}, result.Monthly.Floats(ColTemperature))
		assert.Equal(t, []float64{6}, result.Monthly.Floats(ColPrecipitation))

		data, err := json.Marshal(result)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"monthly":[{"Month":1,"Precipitation":6,"Temperature":2,"Year":2000}]`)
	})
}
