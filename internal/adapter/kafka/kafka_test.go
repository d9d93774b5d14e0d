package kafka

import (
	"testing"
	"time"

	"github.com/couchcryptid/dendroclim/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("job-1"),
		Value:     []byte(`{"id":"job-1"}`),
		Topic:     "analysis-jobs",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("lab")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("job-1"), raw.Key)
	assert.JSONEq(t, `{"id":"job-1"}`, string(raw.Value))
	assert.Equal(t, "analysis-jobs", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "lab", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	out, err := domain.SerializeResult(domain.AnalysisResult{
		ID:          "comparison-1",
		JobID:       "job-1",
		Kind:        domain.JobComparison,
		ProcessedAt: now,
	})
	require.NoError(t, err)

	msg := toMessage(out)

	assert.Equal(t, []byte("comparison-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"comparison"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "job_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("job-1"), msg.Headers[0].Value)
	assert.Equal(t, "job_kind", msg.Headers[1].Key)
	assert.Equal(t, []byte("comparison"), msg.Headers[1].Value)
	assert.Equal(t, "processed_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[2].Value)
}
