package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSchedulerRunsJobsUntilStopped(t *testing.T) {
	var runs atomic.Int64

	s := New(zap.NewNop(), Job{
		Name:     "counter",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	s.Start(context.Background())

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("job ran only %d times", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()

	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != settled {
		t.Fatal("job kept running after Stop")
	}
}

func TestSchedulerContinuesAfterJobError(t *testing.T) {
	var runs atomic.Int64

	s := New(zap.NewNop(), Job{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(context.Context) error {
			if runs.Add(1) == 1 {
				return errors.New("transient failure")
			}
			return nil
		},
	})

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("job did not keep running after an error, runs=%d", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSchedulerSkipsMisconfiguredJobs(t *testing.T) {
	s := New(zap.NewNop(), Job{Name: "no-interval"})

	s.Start(context.Background())
	s.Stop()
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := New(zap.NewNop())
	s.Stop()
}
