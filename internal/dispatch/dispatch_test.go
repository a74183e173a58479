package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"media-catalog/internal/pipeline"
)

// countingRunner records processed ids and can hold workers on a gate.
type countingRunner struct {
	mu   sync.Mutex
	seen []string
	gate chan struct{}
	err  error
}

func (r *countingRunner) Process(_ context.Context, recordID string) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.seen = append(r.seen, recordID)
	r.mu.Unlock()
	return r.err
}

func (r *countingRunner) processed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestDispatchProcessesAll(t *testing.T) {
	runner := &countingRunner{}
	d := New(runner, 2, 8)

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		d.Dispatch(id)
	}
	d.Stop()

	got := runner.processed()
	if len(got) != len(ids) {
		t.Errorf("processed %d records, want %d: %v", len(got), len(ids), got)
	}
}

func TestDispatchDoesNotBlockWhenSaturated(t *testing.T) {
	runner := &countingRunner{gate: make(chan struct{})}
	d := New(runner, 1, 1)

	done := make(chan struct{})
	go func() {
		// Worker is gated and the queue holds one entry; further
		// dispatches must still return immediately.
		for i := 0; i < 10; i++ {
			d.Dispatch("overflow")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on a saturated queue")
	}

	close(runner.gate)
	d.Stop()

	if len(runner.processed()) != 10 {
		t.Errorf("processed %d, want all 10 despite saturation", len(runner.processed()))
	}
}

func TestDispatchAfterStopIsDropped(t *testing.T) {
	runner := &countingRunner{}
	d := New(runner, 1, 4)
	d.Stop()

	// Must not panic on the closed channel, and must not process.
	d.Dispatch("late")
	if len(runner.processed()) != 0 {
		t.Error("post-shutdown dispatch should be dropped")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	d := New(&countingRunner{}, 1, 1)
	d.Stop()
	d.Stop()
}

func TestRunInProgressIsNotAnError(t *testing.T) {
	runner := &countingRunner{err: pipeline.ErrRunInProgress}
	d := New(runner, 1, 1)
	d.Dispatch("busy")
	d.Stop()

	if len(runner.processed()) != 1 {
		t.Error("run should have been attempted once")
	}
}

func TestRunFailureDoesNotStopWorkers(t *testing.T) {
	runner := &countingRunner{err: errors.New("structural failure")}
	d := New(runner, 1, 4)
	d.Dispatch("x")
	d.Dispatch("y")
	d.Stop()

	if len(runner.processed()) != 2 {
		t.Errorf("processed %d, want 2; a failed run must not kill the worker", len(runner.processed()))
	}
}
