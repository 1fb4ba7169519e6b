package dispatch

import (
	"sync"

	"github.com/utilitywarehouse/gh-mirror/internal/lock"
)

// Queue holds pending tasks and counts tasks claimed by workers which have
// not yet been marked done. A task is either pending, in-flight or done,
// never more than one of those at a time.
// A Queue is safe for concurrent use by multiple goroutines.
type Queue struct {
	lock     lock.Mutex
	drained  *sync.Cond
	pending  []Task
	inFlight int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.drained = sync.NewCond(&q.lock)
	return q
}

// Enqueue adds task to the pending set. It never blocks.
func (q *Queue) Enqueue(task Task) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.pending = append(q.pending, task)
}

// TryClaim removes one pending task and marks it in-flight. It returns false
// without blocking if nothing is pending. Every successful claim must be
// followed by exactly one call to MarkDone.
func (q *Queue) TryClaim() (Task, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	n := len(q.pending)
	if n == 0 {
		return nil, false
	}

	task := q.pending[n-1]
	q.pending[n-1] = nil
	q.pending = q.pending[:n-1]
	q.inFlight++

	return task, true
}

// MarkDone acknowledges completion (success or failure) of a claimed task.
func (q *Queue) MarkDone() {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.inFlight <= 0 {
		panic("dispatch: MarkDone called without a claimed task")
	}
	q.inFlight--

	if q.isDrained() {
		q.drained.Broadcast()
	}
}

// WaitDrained blocks until there are no pending and no in-flight tasks.
func (q *Queue) WaitDrained() {
	q.lock.Lock()
	defer q.lock.Unlock()

	for !q.isDrained() {
		q.drained.Wait()
	}
}

// Len returns number of pending tasks.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.pending)
}

// InFlight returns number of claimed tasks not yet marked done.
func (q *Queue) InFlight() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.inFlight
}

func (q *Queue) isDrained() bool {
	return len(q.pending) == 0 && q.inFlight == 0
}
