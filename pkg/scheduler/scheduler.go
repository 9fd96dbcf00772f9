// Package scheduler drives the periodic entry points of the pipeline:
// governor runs, remediation sweeps, and category translation refreshes.
// A distributed lock per task keeps multi-instance deployments from
// double-firing.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/redis"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

const (
	// DefaultLockTTL is the default TTL for distributed task locks
	DefaultLockTTL = 10 * time.Minute

	// LockKeyPrefix is the prefix for scheduler task locks
	LockKeyPrefix = "scheduler:task:"
)

// Task is one periodic unit of work.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs registered tasks on their intervals.
type Scheduler struct {
	locker  *redis.Locker
	lockTTL time.Duration
	tasks   []Task
	logger  ectologger.Logger

	// Coordination
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(locker *redis.Locker, lockTTL time.Duration, logger ectologger.Logger) *Scheduler {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Scheduler{
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Register adds a task. Must be called before Start.
func (s *Scheduler) Register(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Start launches one loop per registered task.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	tasks := s.tasks
	s.mu.Unlock()

	for _, task := range tasks {
		if task.Interval <= 0 {
			s.logger.WithContext(ctx).Warnf("Task %s has no interval, not scheduling", task.Name)
			continue
		}
		s.wg.Add(1)
		go s.taskLoop(ctx, task)
	}

	s.logger.WithContext(ctx).Infof("Scheduler started with %d tasks", len(tasks))
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) taskLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.runTask(ctx, task)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debugf("Task loop %s stopping", task.Name)
			return
		case <-ticker.C:
			s.runTask(ctx, task)
		}
	}
}

// runTask runs one task under its distributed lock. Losing the lock
// race means another instance is already on it.
func (s *Scheduler) runTask(ctx context.Context, task Task) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.runTask")
	defer span.End()

	start := time.Now()
	err := s.locker.WithLock(ctx, LockKeyPrefix+task.Name, s.lockTTL, func() error {
		s.logger.WithContext(ctx).Debugf("Running task %s", task.Name)
		return task.Run(ctx)
	})

	switch {
	case errors.Is(err, redis.ErrLockNotAcquired):
		s.logger.WithContext(ctx).Debugf("Task %s is locked by another instance, skipping", task.Name)
	case err != nil:
		s.logger.WithContext(ctx).WithError(err).Errorf("Task %s failed after %s", task.Name, time.Since(start))
	default:
		s.logger.WithContext(ctx).Infof("Task %s completed in %s", task.Name, time.Since(start))
	}
}
