package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager owns the background jobs of the aggregation core with proper
// lifecycle control. Jobs share no state beyond the storage layer.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	jobs   map[string]*jobInfo
	mu     sync.RWMutex
}

type jobInfo struct {
	name        string
	cancel      context.CancelFunc
	description string
}

func NewManager() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*jobInfo),
	}
}

// Start registers and launches a named background job.
func (m *Manager) Start(name, description string, fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[name]; exists {
		slog.Warn("Job already registered, stopping existing one", slog.String("job", name))
		m.stopLocked(name)
	}

	jobCtx, jobCancel := context.WithCancel(m.ctx)
	m.jobs[name] = &jobInfo{
		name:        name,
		cancel:      jobCancel,
		description: description,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background job panic",
					slog.String("job", name),
					slog.Any("panic", r))
			}
		}()

		slog.Info("Starting background job",
			slog.String("job", name),
			slog.String("description", description))

		fn(jobCtx)

		slog.Info("Background job ended", slog.String("job", name))
	}()
}

// StartPeriodic runs fn on a fixed interval until the job is stopped. A run
// that fails only logs; the next tick tries again. Runs must be idempotent.
func (m *Manager) StartPeriodic(name, description string, interval time.Duration, run func(ctx context.Context) error) {
	m.Start(name, description, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := run(ctx); err != nil {
					slog.Error("Periodic job run failed",
						slog.String("type", "job"),
						slog.String("job", name),
						slog.String("error", err.Error()))
				}
			}
		}
	})
}

// Stop cancels one job by name.
func (m *Manager) Stop(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked(name)
}

func (m *Manager) stopLocked(name string) {
	if job, exists := m.jobs[name]; exists {
		job.cancel()
		delete(m.jobs, name)
		slog.Info("Stopped background job", slog.String("job", name))
	}
}

// Shutdown cancels every job and waits for them to drain.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.mu.RLock()
	count := len(m.jobs)
	m.mu.RUnlock()

	slog.Info("Shutting down background jobs", slog.Int("job_count", count))

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("All background jobs stopped gracefully")
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background jobs to stop",
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

// JobCount returns the number of registered jobs.
func (m *Manager) JobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}
