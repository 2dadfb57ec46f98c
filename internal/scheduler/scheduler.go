package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/go-co-op/gocron"
)

// Job is run on every tick. Runs never overlap.
type Job func()

type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	jobs      map[string]*gocron.Job
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler instance
func NewScheduler(logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		logger:    logger,
		jobs:      make(map[string]*gocron.Job),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and waits for a running job to return
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Interval returns the period described by cfg
func Interval(cfg types.SchedulingConfig) (time.Duration, error) {
	if cfg.FrequencyAmount < 1 {
		return 0, fmt.Errorf("frequency amount must be greater than 0")
	}
	n := time.Duration(cfg.FrequencyAmount)
	switch cfg.FrequencyEvery {
	case "minute":
		return n * time.Minute, nil
	case "hour":
		return n * time.Hour, nil
	case "day":
		return n * 24 * time.Hour, nil
	case "week":
		return n * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid frequency: %s", cfg.FrequencyEvery)
	}
}

// UpdateJob replaces the job registered under name
func (s *Scheduler) UpdateJob(name string, cfg types.SchedulingConfig, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[name]; ok {
		s.scheduler.RemoveByReference(existing)
		delete(s.jobs, name)
	}

	interval, err := Interval(cfg)
	if err != nil {
		return err
	}

	every := s.scheduler.Every(interval)
	if !cfg.StartNow {
		every = every.WaitForSchedule()
	}

	scheduled, err := every.Do(func() {
		s.logger.Info("executing scheduled job", "job", name, "time", time.Now().UTC())
		job()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	s.jobs[name] = scheduled

	s.logger.Info("scheduled job updated",
		"job", name,
		"frequency", fmt.Sprintf("every %d %s", cfg.FrequencyAmount, cfg.FrequencyEvery),
		"start_now", cfg.StartNow,
	)
	return nil
}

// NextRun reports when the job registered under name runs next
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return job.NextRun(), true
}
