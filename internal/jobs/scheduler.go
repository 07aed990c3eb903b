// Package jobs runs Mist's periodic background work: the daily mistbox
// reset and digest, and hourly synthetic vote tallying.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mistapp/backend/internal/cache"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"go.uber.org/zap"
)

// Schedule returns the next run time strictly after now
type Schedule func(now time.Time) time.Time

// DailyAt runs once a day at hour:00 UTC
func DailyAt(hour int) Schedule {
	return func(now time.Time) time.Time {
		now = now.UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// Hourly runs at the top of every hour
func Hourly() Schedule {
	return func(now time.Time) time.Time {
		return now.UTC().Truncate(time.Hour).Add(time.Hour)
	}
}

// Job is one named periodic task
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
	// Timeout bounds a single run and the lock TTL
	Timeout time.Duration
}

// Locker takes a named lock so only one worker runs a job at a time
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Scheduler runs each job on its own goroutine
type Scheduler struct {
	jobs   []Job
	locker Locker
	now    func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewScheduler creates a scheduler. locker may be nil to run unlocked.
func NewScheduler(locker Locker, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		locker:   locker,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins scheduling every job
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	for _, job := range s.jobs {
		logger.Log.Info("Scheduling job",
			logger.WithJob(job.Name),
			zap.Time("next_run", job.Schedule(s.now())),
		)
		s.wg.Add(1)
		go s.loop(job)
	}
}

// Stop cancels pending runs and waits for running ones to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	logger.Log.Info("Job scheduler stopped")
}

func (s *Scheduler) loop(job Job) {
	defer s.wg.Done()

	for {
		wait := job.Schedule(s.now()).Sub(s.now())
		timer := time.NewTimer(wait)
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.RunOnce(context.Background(), job)
		}
	}
}

// RunOnce runs job immediately under its lock. Failures are logged and
// counted, never retried.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) {
	m := metrics.Get()
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.locker != nil {
		release, err := s.locker.AcquireLock(ctx, "mist:job:"+job.Name, timeout)
		if errors.Is(err, cache.ErrLockHeld) {
			m.JobLockSkipped.WithLabelValues(job.Name).Inc()
			logger.Log.Info("Job already running elsewhere, skipping", logger.WithJob(job.Name))
			return
		}
		if err != nil {
			// Redis trouble should not stop the job; run unlocked
			logger.WarnWithFields("Failed to acquire job lock", err, logger.WithJob(job.Name))
		} else {
			defer release()
		}
	}

	start := time.Now()
	err := job.Run(ctx)
	m.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		m.JobRunsTotal.WithLabelValues(job.Name, "failed").Inc()
		logger.ErrorWithFields("Job failed", err, logger.WithJob(job.Name))
		return
	}
	m.JobRunsTotal.WithLabelValues(job.Name, "ok").Inc()
	logger.Log.Info("Job completed",
		logger.WithJob(job.Name),
		zap.Duration("duration", time.Since(start)),
	)
}
