// Package scheduler runs background maintenance jobs for PrepHub analytics:
// expired cache sweeps and leaderboard cache warm-up.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prephub/prephub-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job is one unit of background work.
type Job interface {
	// Name identifies the job in logs and must be unique per scheduler.
	Name() string

	// Description is logged once at registration.
	Description() string

	// Run does one pass. ctx is cancelled on Stop or when the run times out.
	Run(ctx context.Context) error
}

// Schedule decides when a job is due next.
type Schedule interface {
	Next(t time.Time) time.Time
	String() string
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler dispatches due jobs on a ticker.
// A job never overlaps itself: a due run is skipped while the previous one is in flight.
type Scheduler struct {
	mu sync.Mutex

	logger       *logger.Logger
	tickInterval time.Duration
	jobTimeout   time.Duration
	runOnStart   bool

	jobs    map[string]*scheduledJob
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	inFlight bool
	nextRun  time.Time

	runs        int64
	failures    int64
	failedInRow int64
}

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *logger.Logger

	// TickInterval is how often due jobs are checked (default 1s).
	TickInterval time.Duration

	// JobTimeout bounds a single run. Zero means no bound.
	JobTimeout time.Duration

	// RunOnStart makes every job due on the first tick after Start
	// instead of one interval later.
	RunOnStart bool
}

// New creates a stopped Scheduler.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}

	return &Scheduler{
		logger:       config.Logger.With(logger.Component("scheduler")),
		tickInterval: config.TickInterval,
		jobTimeout:   config.JobTimeout,
		runOnStart:   config.RunOnStart,
		jobs:         make(map[string]*scheduledJob),
	}
}

// Register adds a job with its schedule. Jobs registered after Start are
// picked up on the next tick.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{job: job, schedule: schedule, nextRun: schedule.Next(time.Now())}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		logger.String("job", name),
		logger.String("description", job.Description()),
		logger.String("schedule", schedule.String()),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop. The loop stops when ctx is done or on Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	if s.runOnStart {
		now := time.Now()
		for _, sj := range s.jobs {
			sj.nextRun = now
		}
	}

	s.logger.Info("scheduler started", logger.Int("jobs_count", len(s.jobs)), logger.Bool("run_on_start", s.runOnStart))

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning returns true between Start and Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER LOOP
// ══════════════════════════════════════════════════════════════════════════════

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.dispatchDue(now)
		}
	}
}

// dispatchDue claims every due job under the lock, so a job is started at most once per due time.
func (s *Scheduler) dispatchDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	for _, sj := range s.jobs {
		if sj.inFlight || now.Before(sj.nextRun) {
			continue
		}
		sj.inFlight = true
		sj.nextRun = sj.schedule.Next(now)

		s.wg.Add(1)
		go s.runJob(s.ctx, sj)
	}
}

func (s *Scheduler) runJob(ctx context.Context, sj *scheduledJob) {
	defer s.wg.Done()

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := sj.job.Run(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	sj.inFlight = false
	sj.runs++
	if err != nil && !errors.Is(err, context.Canceled) {
		sj.failures++
		sj.failedInRow++
	} else if err == nil {
		sj.failedInRow = 0
	}
	runs, failures, inRow := sj.runs, sj.failures, sj.failedInRow
	s.mu.Unlock()

	log := s.logger.With(logger.String("job", sj.job.Name()), logger.Latency(elapsed))
	switch {
	case err == nil:
		log.Debug("job completed", logger.Int64("runs", runs))
	case errors.Is(err, context.Canceled):
		log.Info("job cancelled")
	default:
		log.Error("job failed",
			logger.Err(err),
			logger.Int64("runs", runs),
			logger.Int64("failures", failures),
			logger.Int64("failed_in_row", inRow),
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNilJob      = errors.New("job cannot be nil")
	ErrNilSchedule = errors.New("schedule cannot be nil")

	// ErrJobAlreadyExists wraps a duplicate job name.
	ErrJobAlreadyExists = errors.New("job already exists")

	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)
