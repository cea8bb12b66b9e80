// Package scheduler provides timed executors and schedulers used to move
// work of a pipeline onto a dedicated goroutine.
package scheduler

import (
	"time"

	"github.com/gokit/errors"

	"github.com/gokit/fluxkit"
)

// errors ...
var (
	ErrNotStarted     = errors.New("scheduler is not started")
	ErrRejected       = errors.New("task rejected, scheduler or worker is disposed")
	ErrDisposeTimeout = errors.New("graceful dispose did not complete in time")
)

// Scheduler defines a source of Workers and a place to run tasks.
type Scheduler interface {
	fluxkit.Disposable

	// Start initializes the underline executor. It is idempotent.
	Start()

	Schedule(task Task) (fluxkit.Disposable, error)
	ScheduleAfter(task Task, delay time.Duration) (fluxkit.Disposable, error)
	SchedulePeriodically(task Task, initial time.Duration, period time.Duration) (fluxkit.Disposable, error)

	// CreateWorker returns a Worker running its tasks on the scheduler.
	CreateWorker() Worker
}

// Worker defines a group of tasks disposed together.
type Worker interface {
	fluxkit.Disposable

	Schedule(task Task) (fluxkit.Disposable, error)
	ScheduleAfter(task Task, delay time.Duration) (fluxkit.Disposable, error)
	SchedulePeriodically(task Task, initial time.Duration, period time.Duration) (fluxkit.Disposable, error)
}
