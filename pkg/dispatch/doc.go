// Package dispatch runs independent tasks to completion on a fixed size pool
// of workers.
//
// All tasks of a run are loaded into a Queue before workers start. Each worker
// claims one task at a time and exits as soon as it finds nothing pending.
// A failing (or panicking) task is logged by the worker and does not affect
// any other task. Run returns only once the queue is drained and every worker
// has exited.
//
// # Logging:
//
// package takes slog reference for logging. Failed tasks are logged at error
// level, completed tasks at debug and worker start/stop at 'trace' (-8) level.
//
// Example:
//
//	d, err := dispatch.New(logger.With("logger", "dispatch"), 4)
//	if err != nil {
//		panic(err)
//	}
//
//	summary := d.Run(ctx, []dispatch.Task{
//		dispatch.NamedTask("hello", func(ctx context.Context) error {
//			return nil
//		}),
//	})
package dispatch
