package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessroute/accessroute/internal/facility"
	"github.com/accessroute/accessroute/internal/worker"
)

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name string
		data string
		want worker.Disposition
	}{
		{"malformed json", `{not json`, worker.Nack},
		{"unknown job type", `{"job_type":"alert_evaluation"}`, worker.Ack},
		{"health check", `{"job_type":"health_check"}`, worker.Ack},
		{"single update", `{"job_type":"facility_status","facility_id":"ramp-1","status":"blocked","updated_at":"2026-10-19T08:05:00Z"}`, worker.Ack},
		{"unknown facility", `{"job_type":"facility_status","facility_id":"ghost","status":"blocked","updated_at":"2026-10-19T08:05:00Z"}`, worker.Ack},
		{"invalid status", `{"job_type":"facility_status","facility_id":"ramp-1","status":"closed","updated_at":"2026-10-19T08:05:00Z"}`, worker.Nack},
		{"missing facility", `{"job_type":"facility_status","status":"blocked","updated_at":"2026-10-19T08:05:00Z"}`, worker.Nack},
		{"batch", `{"job_type":"facility_status","updates":[
			{"facility_id":"ramp-1","status":"maintenance","updated_at":"2026-10-19T08:05:00Z"},
			{"facility_id":"elev-1","status":"occupied","updated_at":"2026-10-19T08:05:00Z"}]}`, worker.Ack},
		{"batch with malformed entry", `{"job_type":"facility_status","updates":[
			{"facility_id":"ramp-1","status":"maintenance","updated_at":"2026-10-19T08:05:00Z"},
			{"facility_id":"","status":"occupied","updated_at":"2026-10-19T08:05:00Z"}]}`, worker.Nack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := worker.NewProcessor(newJob(seededRepo(), nil), zerolog.Nop())
			assert.Equal(t, tt.want, p.Process(context.Background(), []byte(tt.data)))
		})
	}
}

func TestProcessor_AppliesUpdate(t *testing.T) {
	repo := seededRepo()
	cache := &countingCache{}
	p := worker.NewProcessor(newJob(repo, cache), zerolog.Nop())

	got := p.Process(context.Background(), []byte(`{"job_type":"facility_status","facility_id":"elev-1","status":"blocked","updated_at":"2026-10-19T09:00:00Z"}`))
	require.Equal(t, worker.Ack, got)

	f, err := repo.Get(context.Background(), "elev-1")
	require.NoError(t, err)
	assert.Equal(t, facility.StatusBlocked, f.Status)
	assert.Equal(t, int32(1), cache.calls.Load())
}

func TestProcessor_RetryableFailuresAreNacked(t *testing.T) {
	p := worker.NewProcessor(newJob(failingStore{err: errors.New("db down")}, nil), zerolog.Nop())

	assert.Equal(t, worker.Nack, p.Process(context.Background(), []byte(`{"job_type":"health_check"}`)))
	assert.Equal(t, worker.Nack, p.Process(context.Background(),
		[]byte(`{"job_type":"facility_status","facility_id":"ramp-1","status":"blocked","updated_at":"2026-10-19T08:05:00Z"}`)))
}
