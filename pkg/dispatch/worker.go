package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// worker claims tasks from the queue one at a time and runs them until the
// queue reports nothing pending. It never re-checks an empty queue.
type worker struct {
	name  string
	queue *Queue
	log   *slog.Logger

	succeeded *atomic.Int64
	failed    *atomic.Int64
}

func (w *worker) run(ctx context.Context) {
	w.log.Log(ctx, -8, "worker started")
	defer w.log.Log(ctx, -8, "worker stopped")

	for {
		task, ok := w.queue.TryClaim()
		if !ok {
			return
		}
		w.process(ctx, task)
	}
}

// process executes a claimed task and always marks it done, whatever the
// outcome of the task or of its error handling.
func (w *worker) process(ctx context.Context, task Task) {
	defer w.queue.MarkDone()

	start := time.Now()
	inFlightInc()

	err := execute(ctx, task)

	inFlightDec()
	recordTask(err == nil, start)

	if err != nil {
		w.failed.Add(1)
		w.log.Error("failed executing task", "task", task.String(), "err", err)
		return
	}
	w.succeeded.Add(1)
	w.log.Debug("task complete", "task", task.String(), "time", time.Since(start))
}

// execute runs task converting a panic into an error so that it stays
// isolated to this task.
func execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute(ctx)
}
