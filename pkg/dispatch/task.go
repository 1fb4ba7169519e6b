package dispatch

import (
	"context"
	"fmt"
)

// Task is an independent unit of work executed by a worker. Execute must not
// share mutable state with other tasks. A returned error marks the task as
// failed, it is logged by the worker and never retried.
// String is used to identify the task in logs.
type Task interface {
	Execute(ctx context.Context) error
	fmt.Stringer
}

// TaskFunc adapts a plain function to a Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

func (f TaskFunc) String() string {
	return fmt.Sprintf("TaskFunc(%p)", f)
}

type namedTask struct {
	name string
	fn   func(ctx context.Context) error
}

// NamedTask returns a Task which runs fn and is identified by name in logs.
func NamedTask(name string, fn func(ctx context.Context) error) Task {
	return &namedTask{name: name, fn: fn}
}

func (t *namedTask) Execute(ctx context.Context) error {
	return t.fn(ctx)
}

func (t *namedTask) String() string {
	return t.name
}
