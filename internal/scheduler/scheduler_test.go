package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (c *countingRefresher) Refresh(ctx context.Context) { c.calls.Add(1) }

type failingJob struct{}

func (failingJob) Name() string                  { return "failing" }
func (failingJob) Run(ctx context.Context) error { return errors.New("boom") }

func TestRunNow(t *testing.T) {
	s := New(time.Second, zerolog.Nop())
	target := &countingRefresher{}

	require.NoError(t, s.RunNow(RefreshJob{JobName: "live", Target: target}))
	assert.EqualValues(t, 1, target.calls.Load())

	assert.EqualError(t, s.RunNow(failingJob{}), "boom")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(time.Second, zerolog.Nop())
	assert.Error(t, s.AddJob("not a schedule", failingJob{}))
	assert.NoError(t, s.AddJob("@every 30m", RefreshJob{JobName: "live", Target: &countingRefresher{}}))
	assert.NoError(t, s.AddJob("0 */5 * * * *", failingJob{}))
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(time.Second, zerolog.Nop())
	target := &countingRefresher{}
	require.NoError(t, s.AddJob("@every 1s", RefreshJob{JobName: "live", Target: target}))

	s.Start()
	defer s.Stop()
	assert.Eventually(t, func() bool { return target.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
