package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// JobKind selects the analysis a job runs.
type JobKind string

const (
	JobComparison       JobKind = "comparison"
	JobFullComparison   JobKind = "full_comparison"
	JobGrowthSeason     JobKind = "growth_season"
	JobMonthlyAggregate JobKind = "monthly_aggregate"
)

// jobMessage is the JSON layout of a job on the jobs topic.
type jobMessage struct {
	ID              string                 `json:"id"`
	Kind            JobKind                `json:"kind"`
	Field           string                 `json:"field"`
	Secondary       string                 `json:"secondary"`
	Target          string                 `json:"target"`
	Lag             string                 `json:"lag"`
	Comparator      string                 `json:"comparator"`
	SmoothingWindow *int                   `json:"smoothing_window"`
	Season          json.RawMessage        `json:"season"`
	Aggregations    map[string]Aggregation `json:"aggregations"`
	Daily           []map[string]any       `json:"daily"`
	Monthly         []map[string]any       `json:"monthly"`
	Reference       []map[string]any       `json:"reference"`
}

// AnalysisJob is a parsed and validated job.
type AnalysisJob struct {
	ID         string
	Kind       JobKind
	Comparator string

	Daily     *DailySeries
	Monthly   *MonthlySeries
	Reference *Reference

	Compare      CompareOptions
	FullCompare  FullCompareOptions
	Season       SeasonOptions
	Aggregations map[string]Aggregation
}

// series returns the daily series when present, otherwise the monthly one.
func (j AnalysisJob) series() ClimateSeries {
	if j.Daily != nil {
		return j.Daily
	}
	return j.Monthly
}

var integerColumns = map[string]Kind{
	ColYear:   KindInt,
	ColMonth:  KindInt,
	ColDay:    KindInt,
	ColNumber: KindInt,
	ColTree:   KindString,
}

// recordsFrame builds a frame from JSON rows with the key columns first.
func recordsFrame(records []map[string]any) (*Frame, error) {
	var order []string
	if len(records) > 0 {
		for _, col := range []string{ColYear, ColMonth, ColDay} {
			if _, ok := records[0][col]; ok {
				order = append(order, col)
			}
		}
	}
	return FrameFromRecords(records, order, integerColumns)
}

// JobDefaults holds the options a job inherits when its message leaves them
// unset.
type JobDefaults struct {
	SmoothingWindow int
	Season          SeasonOptions
}

// DefaultJobDefaults returns no full-comparison smoothing and the default
// season options.
func DefaultJobDefaults() JobDefaults {
	return JobDefaults{Season: DefaultSeasonOptions()}
}

// ParseAnalysisJob decodes a job message with DefaultJobDefaults.
func ParseAnalysisJob(raw RawEvent) (AnalysisJob, error) {
	return ParseAnalysisJobWithDefaults(raw, DefaultJobDefaults())
}

// ParseAnalysisJobWithDefaults decodes a job message and validates its tables.
// Schema violations and invalid options are returned before any analysis runs.
func ParseAnalysisJobWithDefaults(raw RawEvent, defaults JobDefaults) (AnalysisJob, error) {
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()
	var msg jobMessage
	if err := dec.Decode(&msg); err != nil {
		return AnalysisJob{}, fmt.Errorf("parse analysis job: %w", err)
	}
	if msg.ID == "" {
		msg.ID = string(raw.Key)
	}
	if msg.ID == "" {
		return AnalysisJob{}, configErrorf("id", "job has no id")
	}

	job := AnalysisJob{
		ID:           msg.ID,
		Kind:         msg.Kind,
		Comparator:   msg.Comparator,
		Aggregations: msg.Aggregations,
	}
	lag, err := ParseLag(msg.Lag)
	if err != nil {
		return AnalysisJob{}, err
	}
	job.Compare = CompareOptions{Field: msg.Field, Target: msg.Target, Lag: lag}
	job.FullCompare = FullCompareOptions{Primary: msg.Field, Secondary: msg.Secondary, Target: msg.Target, SmoothingWindow: defaults.SmoothingWindow}
	if msg.SmoothingWindow != nil {
		job.FullCompare.SmoothingWindow = *msg.SmoothingWindow
	}
	job.Season = defaults.Season
	if len(msg.Season) > 0 {
		if err := json.Unmarshal(msg.Season, &job.Season); err != nil {
			return AnalysisJob{}, fmt.Errorf("parse season options: %w", err)
		}
	}
	if job.Compare.Field == "" {
		job.Compare.Field = ColTemperature
	}

	if len(msg.Daily) > 0 {
		f, err := recordsFrame(msg.Daily)
		if err != nil {
			return AnalysisJob{}, fmt.Errorf("daily table: %w", err)
		}
		if job.Daily, err = NewDailySeries(f); err != nil {
			return AnalysisJob{}, fmt.Errorf("daily table: %w", err)
		}
	}
	if len(msg.Monthly) > 0 {
		f, err := recordsFrame(msg.Monthly)
		if err != nil {
			return AnalysisJob{}, fmt.Errorf("monthly table: %w", err)
		}
		if job.Monthly, err = NewMonthlySeries(f); err != nil {
			return AnalysisJob{}, fmt.Errorf("monthly table: %w", err)
		}
	}
	if len(msg.Reference) > 0 {
		f, err := recordsFrame(msg.Reference)
		if err != nil {
			return AnalysisJob{}, fmt.Errorf("reference table: %w", err)
		}
		if job.Reference, err = NewReference(f); err != nil {
			return AnalysisJob{}, fmt.Errorf("reference table: %w", err)
		}
	}

	switch job.Kind {
	case JobComparison, JobFullComparison:
		if job.Daily == nil && job.Monthly == nil {
			return AnalysisJob{}, configErrorf("job", "%s needs a daily or monthly table", job.Kind)
		}
		if job.Reference == nil {
			return AnalysisJob{}, configErrorf("job", "%s needs a reference table", job.Kind)
		}
	case JobGrowthSeason, JobMonthlyAggregate:
		if job.Daily == nil {
			return AnalysisJob{}, configErrorf("job", "%s needs a daily table", job.Kind)
		}
	default:
		return AnalysisJob{}, configErrorf("kind", "unknown job kind %q", job.Kind)
	}
	return job, nil
}

// ComparatorResolver returns the comparator registered under name.
type ComparatorResolver func(name string) (Comparator, error)

// RunAnalysis executes job. Comparison kinds resolve the job's comparator
// through resolve, falling back to defaultComparator when the job names none.
func RunAnalysis(job AnalysisJob, resolve ComparatorResolver, defaultComparator string) (AnalysisResult, error) {
	result := AnalysisResult{
		ID:    generateResultID(job.ID, job.Kind),
		JobID: job.ID,
		Kind:  job.Kind,
	}

	var cmp Comparator
	if job.Kind == JobComparison || job.Kind == JobFullComparison {
		name := job.Comparator
		if name == "" {
			name = defaultComparator
		}
		var err error
		if cmp, err = resolve(name); err != nil {
			return AnalysisResult{}, err
		}
		result.Comparator = name
	}

	switch job.Kind {
	case JobComparison:
		table, err := Compare(job.series(), job.Reference, cmp, job.Compare)
		if err != nil {
			return AnalysisResult{}, err
		}
		result.Comparison = table
		result.Summary.Rows = len(table.Rows)
		result.Summary.NullCells = table.NullRows()
	case JobFullComparison:
		table, err := FullCompare(job.series(), job.Reference, cmp, job.FullCompare)
		if err != nil {
			return AnalysisResult{}, err
		}
		result.FullComparison = table
		result.Summary.Rows = len(table.Rows)
		result.Summary.NullCells = table.NullCells()
	case JobGrowthSeason:
		seasons, err := ExtractGrowthSeasons(job.Daily, job.Season)
		if err != nil {
			return AnalysisResult{}, err
		}
		result.Seasons = seasons
		result.Summary.Rows = seasons.Frame().Len()
		result.Summary.AbsentSeasons = len(seasons.Absent)
	case JobMonthlyAggregate:
		monthly, err := AggregateMonthly(job.Daily, job.Aggregations)
		if err != nil {
			return AnalysisResult{}, err
		}
		result.Monthly = monthly.Frame()
		result.Summary.Rows = monthly.Len()
	default:
		return AnalysisResult{}, configErrorf("kind", "unknown job kind %q", job.Kind)
	}

	result.ProcessedAt = clock.Now()
	return result, nil
}

// generateResultID is deterministic in the job id and kind so replayed jobs
// upsert the same result.
func generateResultID(jobID string, kind JobKind) string {
	hash := sha256.Sum256([]byte(jobID + "|" + string(kind)))
	return string(kind) + "-" + hex.EncodeToString(hash[:8])
}
