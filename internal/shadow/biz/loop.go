package biz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aylahq/ayla-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// lockGrace extends each job's lock TTL past its interval, so a run that
// overshoots its period keeps the lock. A crashed holder still frees the
// job within one grace window.
const lockGrace = 30 * time.Second

// loopJob is one periodic reconciliation task. delay is the current wait
// before the next run: the configured interval while the job is healthy,
// doubling after each failure up to the loop's cap.
type loopJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error

	mu    sync.Mutex
	delay time.Duration
}

// Loop schedules the engine's periodic jobs. Each run is wrapped in a
// distributed try-lock keyed by job name, so loop ticks and externally
// triggered runs of the same job collapse to a single execution across
// all instances.
type Loop struct {
	jobs       map[string]*loopJob
	order      []string
	locker     Locker
	backoffMax time.Duration
	logger     *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewLoop(locker Locker, backoffMax time.Duration, log *logger.Logger) *Loop {
	return &Loop{
		jobs:       make(map[string]*loopJob),
		locker:     locker,
		backoffMax: backoffMax,
		logger:     log,
	}
}

// Register adds a named job. Must be called before Start.
func (l *Loop) Register(name string, interval time.Duration, run func(ctx context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jobs[name] = &loopJob{
		name:     name,
		interval: interval,
		run:      run,
		delay:    interval,
	}
	l.order = append(l.order, name)
}

// Start launches one goroutine per registered job
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("reconciliation loop already running")
	}
	l.running = true
	l.stopCh = make(chan struct{})

	for _, name := range l.order {
		job := l.jobs[name]
		l.wg.Add(1)
		go l.runJobLoop(ctx, job)
	}

	l.logger.Info("reconciliation loop started", zap.Int("jobs", len(l.jobs)))
	return nil
}

// Stop halts scheduling and waits for in-flight runs to finish
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()
	l.logger.Info("reconciliation loop stopped")
}

// RunNow executes a registered job immediately under its lock. Used by the
// internal job endpoints so an external scheduler shares the loop's
// single-flight guarantee. Returns false when another holder is running
// the job, which callers report as success.
func (l *Loop) RunNow(ctx context.Context, name string) (bool, error) {
	l.mu.Lock()
	job, ok := l.jobs[name]
	l.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("unknown job %q", name)
	}
	return l.execute(ctx, job)
}

func (l *Loop) runJobLoop(ctx context.Context, job *loopJob) {
	defer l.wg.Done()

	timer := time.NewTimer(job.currentDelay())
	defer timer.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if _, err := l.execute(ctx, job); err != nil {
			job.backoff(l.backoffMax)
			l.logger.Warn("job failed, backing off",
				zap.String("job", job.name),
				zap.Duration("next_in", job.currentDelay()),
				zap.Error(err))
		} else {
			job.reset()
		}

		timer.Reset(job.currentDelay())
	}
}

// execute runs the job body under the distributed lock
func (l *Loop) execute(ctx context.Context, job *loopJob) (bool, error) {
	acquired, err := l.locker.TryWithLock(ctx, "reconcile:"+job.name, job.interval+lockGrace, func() error {
		start := time.Now()
		if err := job.run(ctx); err != nil {
			return err
		}
		l.logger.Debug("job complete",
			zap.String("job", job.name),
			zap.Duration("took", time.Since(start)))
		return nil
	})
	if err != nil {
		return acquired, err
	}
	if !acquired {
		l.logger.Debug("job held elsewhere, skipping", zap.String("job", job.name))
	}
	return acquired, nil
}

func (j *loopJob) currentDelay() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.delay
}

func (j *loopJob) backoff(max time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.delay *= 2
	if j.delay > max {
		j.delay = max
	}
}

func (j *loopJob) reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.delay = j.interval
}
