package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the jobs topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ResultSummary holds the counters reported alongside a result.
type ResultSummary struct {
	Rows          int `json:"rows"`
	NullCells     int `json:"null_cells"`
	AbsentSeasons int `json:"absent_seasons"`
}

// AnalysisResult is the outcome of one analysis job. Exactly one of the
// result fields is set, matching Kind.
type AnalysisResult struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	Kind        JobKind   `json:"kind"`
	Comparator  string    `json:"comparator,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`

	Comparison     *ComparisonTable     `json:"comparison,omitempty"`
	FullComparison *FullComparisonTable `json:"full_comparison,omitempty"`
	Seasons        *SeasonTable         `json:"growth_seasons,omitempty"`
	Monthly        *Frame               `json:"monthly,omitempty"`

	Summary ResultSummary `json:"summary"`
}

// OutputEvent is the serialized form destined for the results sink.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Result headers.
const (
	HeaderJobKind     = "job_kind"
	HeaderJobID       = "job_id"
	HeaderProcessedAt = "processed_at"
)

// SerializeResult marshals a result into an OutputEvent keyed by result ID.
func SerializeResult(result AnalysisResult) (OutputEvent, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize analysis result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(result.ID),
		Value: data,
		Headers: map[string]string{
			HeaderJobKind:     string(result.Kind),
			HeaderJobID:       result.JobID,
			HeaderProcessedAt: result.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
