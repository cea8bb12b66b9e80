package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gokit/errors"

	"github.com/gokit/fluxkit"
)

var _ Worker = &ExecutorWorker{}

// ExecutorWorker implements Worker on top of an ExecutorService. It keeps
// track of the tasks it submitted so Dispose can cancel all of them.
type ExecutorWorker struct {
	exec     ExecutorService
	disposed fluxkit.AtomicBool

	tl    sync.Mutex
	tasks map[*workerTask]struct{}
}

// NewExecutorWorker returns a new instance of ExecutorWorker. A nil exec
// yields a worker which rejects every task with ErrNotStarted.
func NewExecutorWorker(exec ExecutorService) *ExecutorWorker {
	return &ExecutorWorker{
		exec:  exec,
		tasks: map[*workerTask]struct{}{},
	}
}

// Schedule runs task as soon as possible.
func (w *ExecutorWorker) Schedule(task Task) (fluxkit.Disposable, error) {
	return w.submit(task, false, func(t Task) (fluxkit.Disposable, error) {
		return w.exec.Submit(t, 0)
	})
}

// ScheduleAfter runs task after delay.
func (w *ExecutorWorker) ScheduleAfter(task Task, delay time.Duration) (fluxkit.Disposable, error) {
	return w.submit(task, false, func(t Task) (fluxkit.Disposable, error) {
		return w.exec.Submit(t, delay)
	})
}

// SchedulePeriodically runs task after initial and then every period.
func (w *ExecutorWorker) SchedulePeriodically(task Task, initial time.Duration, period time.Duration) (fluxkit.Disposable, error) {
	return w.submit(task, true, func(t Task) (fluxkit.Disposable, error) {
		return w.exec.SubmitPeriodic(t, initial, period)
	})
}

// Dispose cancels every task the worker scheduled and rejects new ones.
func (w *ExecutorWorker) Dispose() {
	if !w.disposed.Claim() {
		return
	}

	w.tl.Lock()
	tasks := w.tasks
	w.tasks = nil
	w.tl.Unlock()

	for t := range tasks {
		t.Dispose()
	}
}

// IsDisposed implements the fluxkit.Disposable interface.
func (w *ExecutorWorker) IsDisposed() bool {
	return w.disposed.IsTrue()
}

// Size returns the number of tasks tracked by the worker.
func (w *ExecutorWorker) Size() int {
	w.tl.Lock()
	defer w.tl.Unlock()
	return len(w.tasks)
}

func (w *ExecutorWorker) submit(task Task, periodic bool, fn func(Task) (fluxkit.Disposable, error)) (fluxkit.Disposable, error) {
	if w.exec == nil {
		return nil, errors.Wrap(ErrNotStarted, "worker has no executor")
	}

	wt := &workerTask{worker: w, periodic: periodic}

	w.tl.Lock()
	if w.disposed.IsTrue() {
		w.tl.Unlock()
		return nil, errors.Wrap(ErrRejected, "worker is disposed")
	}
	w.tasks[wt] = struct{}{}
	w.tl.Unlock()

	inner, err := fn(func(ctx context.Context) {
		task(ctx)
		if !wt.periodic {
			w.untrack(wt)
		}
	})
	if err != nil {
		w.untrack(wt)
		return nil, err
	}

	wt.set(inner)
	return wt, nil
}

func (w *ExecutorWorker) untrack(t *workerTask) {
	w.tl.Lock()
	if w.tasks != nil {
		delete(w.tasks, t)
	}
	w.tl.Unlock()
}

//**************************************************
//  workerTask
//**************************************************

type workerTask struct {
	worker   *ExecutorWorker
	periodic bool

	tl       sync.Mutex
	inner    fluxkit.Disposable
	disposed bool
}

func (t *workerTask) set(inner fluxkit.Disposable) {
	t.tl.Lock()
	if t.disposed {
		t.tl.Unlock()
		inner.Dispose()
		return
	}
	t.inner = inner
	t.tl.Unlock()
}

func (t *workerTask) Dispose() {
	t.tl.Lock()
	if t.disposed {
		t.tl.Unlock()
		return
	}
	t.disposed = true
	inner := t.inner
	t.tl.Unlock()

	if inner != nil {
		inner.Dispose()
	}
	t.worker.untrack(t)
}

func (t *workerTask) IsDisposed() bool {
	t.tl.Lock()
	defer t.tl.Unlock()
	if t.disposed {
		return true
	}
	return t.inner != nil && t.inner.IsDisposed()
}
