package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartRunsJob(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	ran := make(chan struct{})
	m.Start("one-shot", "test job", func(ctx context.Context) {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	if got := m.JobCount(); got != 1 {
		t.Errorf("JobCount() = %d, want 1", got)
	}
}

func TestStartPeriodicTicks(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	var runs atomic.Int32
	m.StartPeriodic("ticker", "test job", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs within deadline, want at least 3", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartPeriodicKeepsTickingAfterError(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	var runs atomic.Int32
	m.StartPeriodic("flaky", "test job", 10*time.Millisecond, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	})

	deadline := time.After(time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("job did not run again after a failed run")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStopCancelsJob(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	stopped := make(chan struct{})
	m.Start("waiter", "test job", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	m.Stop("waiter")

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled by Stop")
	}
	if got := m.JobCount(); got != 0 {
		t.Errorf("JobCount() = %d, want 0 after Stop", got)
	}
}

func TestStartReplacesExistingJob(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	firstStopped := make(chan struct{})
	m.Start("dup", "first", func(ctx context.Context) {
		<-ctx.Done()
		close(firstStopped)
	})
	m.Start("dup", "second", func(ctx context.Context) {
		<-ctx.Done()
	})

	select {
	case <-firstStopped:
	case <-time.After(time.Second):
		t.Fatal("first job was not stopped when re-registered")
	}
	if got := m.JobCount(); got != 1 {
		t.Errorf("JobCount() = %d, want 1", got)
	}
}

func TestShutdownWaitsForJobs(t *testing.T) {
	m := NewManager()

	m.Start("drainer", "test job", func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
	})

	if err := m.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}

func TestShutdownTimesOut(t *testing.T) {
	m := NewManager()

	release := make(chan struct{})
	m.Start("stuck", "test job", func(ctx context.Context) {
		<-release
	})
	defer close(release)

	if err := m.Shutdown(20 * time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestPanicDoesNotKillManager(t *testing.T) {
	m := NewManager()
	defer m.Shutdown(time.Second)

	m.Start("panicker", "test job", func(ctx context.Context) {
		panic("boom")
	})

	ran := make(chan struct{})
	m.Start("survivor", "test job", func(ctx context.Context) {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("manager stopped launching jobs after a panic")
	}
}
