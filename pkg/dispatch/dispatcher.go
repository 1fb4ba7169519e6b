package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrNoWorkers = errors.New("worker count must be at least 1")

// Summary holds aggregate counters of a completed run. It does not identify
// which tasks failed, failures are reported by workers as they happen.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Dispatcher runs a list of tasks to completion on a fixed size pool of
// workers. Each Run creates its own queue and worker pool.
type Dispatcher struct {
	workers int
	log     *slog.Logger

	// spawn starts a worker execution context
	spawn func(fn func())
}

// New creates dispatcher which will use given number of workers per run.
func New(log *slog.Logger, workers int) (*Dispatcher, error) {
	if workers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, workers)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		workers: workers,
		log:     log,
		spawn:   func(fn func()) { go fn() },
	}, nil
}

// Run enqueues all tasks, starts the workers and blocks until every task has
// either completed or failed and every worker has exited. Task failures are
// logged by workers and never returned. Given ctx is passed to the tasks,
// claimed tasks are always run to completion.
func (d *Dispatcher) Run(ctx context.Context, tasks []Task) Summary {
	if len(tasks) == 0 {
		d.log.Debug("nothing to dispatch")
		return Summary{}
	}

	start := time.Now()

	queue := NewQueue()
	for _, t := range tasks {
		queue.Enqueue(t)
	}

	var succeeded, failed atomic.Int64
	var wg sync.WaitGroup

	for n := range d.workers {
		name := fmt.Sprintf("worker-%d", n)
		w := &worker{
			name:      name,
			queue:     queue,
			log:       d.log.With("worker", name),
			succeeded: &succeeded,
			failed:    &failed,
		}
		wg.Add(1)
		d.spawn(func() {
			defer wg.Done()
			w.run(ctx)
		})
	}

	queue.WaitDrained()

	// a worker may still be returning from its last empty claim
	wg.Wait()

	recordRun()

	return Summary{
		Total:     len(tasks),
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Duration:  time.Since(start),
	}
}
