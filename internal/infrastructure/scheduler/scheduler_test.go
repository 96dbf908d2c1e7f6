package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prephub/prephub-analytics/pkg/logger"
)

type fakeJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block bool

	mu      sync.Mutex
	lastErr error
}

func (j *fakeJob) Name() string        { return j.name }
func (j *fakeJob) Description() string { return "test job " + j.name }

func (j *fakeJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	err := j.err
	if j.block {
		<-ctx.Done()
		err = ctx.Err()
	}
	j.mu.Lock()
	j.lastErr = err
	j.mu.Unlock()
	return err
}

func (j *fakeJob) LastErr() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

func observed() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewFromZap(zap.New(core)), logs
}

func TestRegister(t *testing.T) {
	log, logs := observed()
	s := New(Config{Logger: log})
	job := &fakeJob{name: "warm"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&fakeJob{name: "x"}, nil), ErrNilSchedule)

	registered := logs.FilterMessage("job registered").All()
	require.Len(t, registered, 1)
	assert.Equal(t, "test job warm", registered[0].ContextMap()["description"])
	assert.Equal(t, "@every 1m0s", registered[0].ContextMap()["schedule"])
}

func TestStartStop_RunsDueJobs(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond})
	job := &fakeJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestRunOnStart(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond, RunOnStart: true})
	job := &fakeJob{name: "warm"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWithoutRunOnStart_WaitsForInterval(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond})
	job := &fakeJob{name: "warm"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, job.runs.Load())
}

func TestJobTimeout(t *testing.T) {
	s := New(Config{TickInterval: 5 * time.Millisecond, JobTimeout: 20 * time.Millisecond, RunOnStart: true})
	job := &fakeJob{name: "slow", block: true}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool {
		return errors.Is(job.LastErr(), context.DeadlineExceeded)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFailuresAreCounted(t *testing.T) {
	log, logs := observed()
	s := New(Config{Logger: log, TickInterval: 2 * time.Millisecond})
	job := &fakeJob{name: "bad", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("job failed").Len() >= 2
	}, 2*time.Second, 2*time.Millisecond)
	require.NoError(t, s.Stop())

	failed := logs.FilterMessage("job failed").All()
	second := failed[1].ContextMap()
	assert.Equal(t, "bad", second["job"])
	assert.Equal(t, "boom", second["error"])
	assert.EqualValues(t, 2, second["failures"])
	assert.EqualValues(t, 2, second["failed_in_row"])
}

func TestStop_CancelsInFlightJobs(t *testing.T) {
	log, logs := observed()
	s := New(Config{Logger: log, TickInterval: 5 * time.Millisecond})
	job := &fakeJob{name: "blocked", block: true}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	// A blocked run is never overlapped by the next due time.
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, job.runs.Load())

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, job.LastErr(), context.Canceled)
	assert.Equal(t, 1, logs.FilterMessage("job cancelled").Len())
	assert.Zero(t, logs.FilterMessage("job failed").Len())
}

func TestIntervalSchedule(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewIntervalSchedule(45 * time.Second)
	assert.Equal(t, base.Add(45*time.Second), s.Next(base))

	clamped := NewIntervalSchedule(0)
	assert.Equal(t, base.Add(time.Second), clamped.Next(base))
	assert.Equal(t, "@every 45s", s.String())
}
