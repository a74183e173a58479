package dispatch

import (
	"context"
	"errors"
	"sync"

	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
	"media-catalog/internal/pipeline"
)

// Runner executes one processing run. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Process(ctx context.Context, recordID string) error
}

// Dispatcher feeds record ids to a bounded worker pool. Dispatch never
// blocks the caller: when the queue is full the run is handed to a
// dedicated goroutine instead of waiting for a worker.
type Dispatcher struct {
	runner Runner
	jobs   chan string
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New starts workers goroutines consuming a queue of queueSize pending
// runs.
func New(runner Runner, workerCount, queueSize int) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	d := &Dispatcher{
		runner: runner,
		jobs:   make(chan string, queueSize),
	}

	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	logging.Info("Dispatcher started with %d workers (queue %d)", workerCount, queueSize)
	return d
}

// Dispatch schedules a processing run for recordID and returns
// immediately. Upload handling never waits on the pipeline.
func (d *Dispatcher) Dispatch(recordID string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		logging.Warn("dispatch after shutdown dropped for record %s", recordID)
		return
	}

	select {
	case d.jobs <- recordID:
		metrics.PipelineQueueDepth.Set(float64(len(d.jobs)))
		d.mu.Unlock()
	default:
		// Queue saturated. Overflow runs get their own goroutine so the
		// caller still returns immediately.
		d.wg.Add(1)
		d.mu.Unlock()
		go func() {
			defer d.wg.Done()
			d.process(recordID)
		}()
	}
}

// Stop drains the queue and waits for in-flight runs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	logging.Info("Dispatcher stopped")
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for recordID := range d.jobs {
		metrics.PipelineQueueDepth.Set(float64(len(d.jobs)))
		d.process(recordID)
	}
}

func (d *Dispatcher) process(recordID string) {
	err := d.runner.Process(context.Background(), recordID)
	if err == nil {
		return
	}
	if errors.Is(err, pipeline.ErrRunInProgress) {
		logging.Info("Skipped dispatch for record %s: run already active", recordID)
		return
	}
	logging.Error("Background run failed for record %s: %v", recordID, err)
}
