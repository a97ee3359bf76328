package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is an auxiliary task run periodically next to the monitor, such as
// writing the status file or pruning the trace archive.
type Job struct {
	Name     string
	Interval time.Duration
	Delay    time.Duration // before the first run
	Run      func(ctx context.Context) error

	lastRun    time.Time
	nextRun    time.Time
	lastError  error
	errorCount int
	running    bool
	rerun      bool // triggered while running
	mu         sync.RWMutex
}

// JobStatus represents the status of a job.
type JobStatus struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	LastError  string        `json:"last_error,omitempty"`
	ErrorCount int           `json:"error_count"`
	Running    bool          `json:"running"`
}

// JobScheduler runs jobs on their intervals. A job never overlaps itself.
type JobScheduler struct {
	ctx    context.Context
	jobs   []*Job
	tick   time.Duration
	logger *zap.Logger
	mu     sync.RWMutex
	wg     sync.WaitGroup
}

// NewJobScheduler creates a job scheduler bound to ctx.
func NewJobScheduler(ctx context.Context, logger *zap.Logger) *JobScheduler {
	return &JobScheduler{
		ctx:    ctx,
		tick:   time.Second,
		logger: logger,
	}
}

// AddJob adds a job to the scheduler.
func (s *JobScheduler) AddJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.nextRun = time.Now().Add(job.Delay)
	s.jobs = append(s.jobs, job)
}

// Run checks jobs until the context is cancelled, then waits for running
// jobs to return.
func (s *JobScheduler) Run() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.Info("job scheduler started", zap.Int("jobs", len(s.jobs)))

	for {
		select {
		case <-s.ctx.Done():
			s.wg.Wait()
			s.logger.Info("job scheduler stopped")
			return
		case now := <-ticker.C:
			s.checkJobs(now)
		}
	}
}

func (s *JobScheduler) checkJobs(now time.Time) {
	s.mu.RLock()
	jobs := s.jobs
	s.mu.RUnlock()

	for _, job := range jobs {
		job.mu.RLock()
		shouldRun := !job.running && !now.Before(job.nextRun)
		job.mu.RUnlock()

		if shouldRun {
			s.wg.Add(1)
			go func(j *Job) {
				defer s.wg.Done()
				s.runJob(j)
			}(job)
		}
	}
}

func (s *JobScheduler) runJob(job *Job) {
	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		return
	}
	job.running = true
	job.lastRun = time.Now()
	job.mu.Unlock()

	s.logger.Debug("running job", zap.String("job", job.Name))

	ctx, cancel := context.WithTimeout(s.ctx, job.Interval)
	defer cancel()

	err := job.Run(ctx)

	job.mu.Lock()
	job.running = false
	if err != nil {
		job.lastError = err
		job.errorCount++
		s.logger.Warn("job failed", zap.String("job", job.Name), zap.Error(err))
		// Retry sooner after a failure.
		job.nextRun = time.Now().Add(job.Interval / 2)
	} else {
		job.lastError = nil
		job.nextRun = time.Now().Add(job.Interval)
	}
	if job.rerun {
		job.rerun = false
		job.nextRun = time.Now()
	}
	job.mu.Unlock()
}

// GetJobStatuses returns the status of all jobs.
func (s *JobScheduler) GetJobStatuses() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, len(s.jobs))
	for i, job := range s.jobs {
		job.mu.RLock()
		status := JobStatus{
			Name:       job.Name,
			Interval:   job.Interval,
			LastRun:    job.lastRun,
			NextRun:    job.nextRun,
			ErrorCount: job.errorCount,
			Running:    job.running,
		}
		if job.lastError != nil {
			status.LastError = job.lastError.Error()
		}
		job.mu.RUnlock()
		statuses[i] = status
	}
	return statuses
}

// GetJob returns a job by name.
func (s *JobScheduler) GetJob(name string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if job.Name == name {
			return job
		}
	}
	return nil
}

// TriggerJob schedules a job to run on the next tick. A job triggered while
// it runs runs again right after.
func (s *JobScheduler) TriggerJob(name string) bool {
	job := s.GetJob(name)
	if job == nil {
		return false
	}
	job.mu.Lock()
	job.nextRun = time.Now()
	if job.running {
		job.rerun = true
	}
	job.mu.Unlock()
	return true
}
