package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/gokit/errors"
	"github.com/gokit/xid"

	"github.com/gokit/fluxkit"
	"github.com/gokit/fluxkit/queue"
)

//**************************************************
//  ThreadFactory
//**************************************************

// ThreadFactory starts the goroutine backing an executor.
type ThreadFactory interface {
	NewThread(name string, run func())
}

// ThreadFactoryFunc implements ThreadFactory for a function.
type ThreadFactoryFunc func(name string, run func())

// NewThread calls the underline function.
func (fn ThreadFactoryFunc) NewThread(name string, run func()) {
	fn(name, run)
}

// GoroutineFactory starts every run function on a plain goroutine.
var GoroutineFactory = ThreadFactoryFunc(func(_ string, run func()) {
	go run()
})

//**************************************************
//  ExecutorService
//**************************************************

// ExecutorService defines a timed task executor as used by a scheduler.
type ExecutorService interface {
	// Submit runs task once after delay.
	Submit(task Task, delay time.Duration) (fluxkit.Disposable, error)

	// SubmitPeriodic runs task after initial delay and then every period.
	SubmitPeriodic(task Task, initial time.Duration, period time.Duration) (fluxkit.Disposable, error)

	// Shutdown rejects new tasks, cancels periodic ones and lets queued
	// and running one-shot tasks finish.
	Shutdown()

	// ShutdownNow rejects new tasks, drops queued ones and cancels the
	// context of the running task.
	ShutdownNow()

	IsShutdown() bool
	IsTerminated() bool

	// Terminated is closed once the executor stopped running tasks.
	Terminated() <-chan struct{}

	// AwaitTermination blocks till the executor terminated or ctx ended.
	AwaitTermination(ctx context.Context) error
}

// Task defines a unit of work run by an executor. The context is
// cancelled when the task is disposed or the executor is shut down
// forcefully, a long running task should observe it.
type Task func(ctx context.Context)

// executor states.
const (
	executorRunning = iota
	executorShutdown
	executorStopped
)

//**************************************************
//  TimedExecutor
//**************************************************

var _ ExecutorService = &TimedExecutor{}

// TimedExecutor implements ExecutorService on a single goroutine. The
// goroutine is started through the ThreadFactory on first submission.
//
// Tasks without delay are queued in submission order, delayed tasks wait
// in a deadline ordered heap and join the back of that queue once due.
// A panicking task is reported to the dropped error hook and the
// executor keeps running.
type TimedExecutor struct {
	id      xid.ID
	name    string
	factory ThreadFactory
	hooks   *fluxkit.Hooks

	ctx    context.Context
	cancel context.CancelFunc

	wake       chan struct{}
	terminated chan struct{}
	termOnce   sync.Once

	ml      sync.Mutex
	state   int
	started bool
	seq     uint64
	tasks   taskHeap
	ready   *queue.BoxQueue[*scheduledTask]
}

// NewTimedExecutor returns a new instance of a TimedExecutor.
func NewTimedExecutor(name string, factory ThreadFactory, hooks *fluxkit.Hooks) *TimedExecutor {
	if factory == nil {
		factory = GoroutineFactory
	}
	if hooks == nil {
		hooks = fluxkit.DefaultHooks()
	}

	ex := &TimedExecutor{
		id:         xid.New(),
		name:       name,
		factory:    factory,
		hooks:      hooks,
		wake:       make(chan struct{}, 1),
		terminated: make(chan struct{}),
		ready:      queue.New[*scheduledTask](),
	}
	ex.ctx, ex.cancel = context.WithCancel(context.Background())
	return ex
}

// ID returns the unique id of the executor.
func (e *TimedExecutor) ID() string {
	return e.id.String()
}

// Name returns the name given to the executor goroutine.
func (e *TimedExecutor) Name() string {
	return e.name
}

// Submit implements the ExecutorService interface.
func (e *TimedExecutor) Submit(task Task, delay time.Duration) (fluxkit.Disposable, error) {
	return e.enqueue(task, delay, 0)
}

// SubmitPeriodic implements the ExecutorService interface. Runs happen at
// a fixed rate, a run which overruns its period delays the next one.
func (e *TimedExecutor) SubmitPeriodic(task Task, initial time.Duration, period time.Duration) (fluxkit.Disposable, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive, got %s", period)
	}
	return e.enqueue(task, initial, period)
}

// Pending returns the number of queued tasks.
func (e *TimedExecutor) Pending() int {
	e.ml.Lock()
	defer e.ml.Unlock()
	return len(e.tasks) + e.ready.Len()
}

// Shutdown implements the ExecutorService interface.
func (e *TimedExecutor) Shutdown() {
	e.ml.Lock()
	if e.state != executorRunning {
		e.ml.Unlock()
		return
	}

	e.state = executorShutdown
	for i := len(e.tasks) - 1; i >= 0; i-- {
		if t := e.tasks[i]; t.period > 0 {
			heap.Remove(&e.tasks, i)
			t.finish()
		}
	}

	for _, t := range e.drainReady() {
		if t.period > 0 {
			t.finish()
			continue
		}
		e.ready.Push(t)
	}

	started := e.started
	e.ml.Unlock()

	if !started {
		e.terminate()
		return
	}
	e.signal()
}

// ShutdownNow implements the ExecutorService interface.
func (e *TimedExecutor) ShutdownNow() {
	e.ml.Lock()
	if e.state == executorStopped {
		e.ml.Unlock()
		return
	}

	e.state = executorStopped
	dropped := append(e.drainReady(), e.tasks...)
	e.tasks = nil
	started := e.started
	e.ml.Unlock()

	for _, t := range dropped {
		t.index = -1
		t.finish()
	}

	// interrupts the running task.
	e.cancel()

	if !started {
		e.terminate()
		return
	}
	e.signal()
}

// IsShutdown implements the ExecutorService interface.
func (e *TimedExecutor) IsShutdown() bool {
	e.ml.Lock()
	defer e.ml.Unlock()
	return e.state != executorRunning
}

// IsTerminated implements the ExecutorService interface.
func (e *TimedExecutor) IsTerminated() bool {
	select {
	case <-e.terminated:
		return true
	default:
		return false
	}
}

// Terminated implements the ExecutorService interface.
func (e *TimedExecutor) Terminated() <-chan struct{} {
	return e.terminated
}

// AwaitTermination implements the ExecutorService interface.
func (e *TimedExecutor) AwaitTermination(ctx context.Context) error {
	if e.IsTerminated() {
		return nil
	}

	select {
	case <-e.terminated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *TimedExecutor) enqueue(task Task, delay time.Duration, period time.Duration) (fluxkit.Disposable, error) {
	if delay < 0 {
		delay = 0
	}

	e.ml.Lock()
	if e.state != executorRunning {
		e.ml.Unlock()
		return nil, errors.Wrap(ErrRejected, "executor %q is shut down", e.name)
	}

	st := &scheduledTask{
		exec:   e,
		task:   task,
		at:     time.Now().Add(delay),
		period: period,
		index:  -1,
	}
	st.ctx, st.cancel = context.WithCancel(e.ctx)

	e.seq++
	st.seq = e.seq
	if delay == 0 {
		e.ready.Push(st)
	} else {
		heap.Push(&e.tasks, st)
	}

	startNow := !e.started
	e.started = true
	e.ml.Unlock()

	if startNow {
		e.factory.NewThread(e.name, e.run)
	}
	e.signal()
	return st, nil
}

func (e *TimedExecutor) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *TimedExecutor) terminate() {
	e.termOnce.Do(func() {
		e.cancel()
		close(e.terminated)
	})
}

func (e *TimedExecutor) remove(t *scheduledTask) {
	e.ml.Lock()
	if t.index >= 0 && t.index < len(e.tasks) && e.tasks[t.index] == t {
		heap.Remove(&e.tasks, t.index)
	}
	e.ml.Unlock()
}

func (e *TimedExecutor) drainReady() []*scheduledTask {
	var tasks []*scheduledTask
	for {
		t, ok := e.ready.Pop()
		if !ok {
			return tasks
		}
		tasks = append(tasks, t)
	}
}

// promote moves due tasks from the heap to the ready queue.
func (e *TimedExecutor) promote(now time.Time) {
	for len(e.tasks) > 0 && !e.tasks[0].at.After(now) {
		e.ready.Push(heap.Pop(&e.tasks).(*scheduledTask))
	}
}

func (e *TimedExecutor) run() {
	defer e.terminate()

	for {
		e.ml.Lock()
		if e.state == executorStopped {
			e.ml.Unlock()
			return
		}

		e.promote(time.Now())
		if next, ok := e.ready.Pop(); ok {
			e.ml.Unlock()
			e.execute(next)
			continue
		}

		if len(e.tasks) == 0 {
			if e.state == executorShutdown {
				e.ml.Unlock()
				return
			}
			e.ml.Unlock()
			<-e.wake
			continue
		}

		wait := time.Until(e.tasks[0].at)
		e.ml.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-e.wake:
		}
		timer.Stop()
	}
}

func (e *TimedExecutor) execute(next *scheduledTask) {
	if next.disposed.IsTrue() {
		return
	}

	err := fluxkit.Safely(func() error {
		next.task(next.ctx)
		return nil
	})

	if err != nil {
		fluxkit.LogMsg("task panicked").
			String("executor", e.name).
			Err("error", err).
			Write(fluxkit.ERROR, e.hooks.Logs())
		e.hooks.OnErrorDropped(err)
	}

	if next.period <= 0 || err != nil {
		next.finish()
		return
	}

	e.ml.Lock()
	if e.state == executorRunning && !next.disposed.IsTrue() {
		next.at = next.at.Add(next.period)
		heap.Push(&e.tasks, next)
		e.ml.Unlock()
		return
	}
	e.ml.Unlock()
	next.finish()
}

//**************************************************
//  scheduledTask
//**************************************************

type scheduledTask struct {
	exec   *TimedExecutor
	task   Task
	at     time.Time
	period time.Duration
	seq    uint64
	index  int

	ctx      context.Context
	cancel   context.CancelFunc
	disposed fluxkit.AtomicBool
}

// Dispose cancels the task. A queued task never runs, a running one has
// its context cancelled.
func (t *scheduledTask) Dispose() {
	if t.disposed.Claim() {
		t.cancel()
		t.exec.remove(t)
	}
}

// IsDisposed returns true/false if the task was disposed or finished.
func (t *scheduledTask) IsDisposed() bool {
	return t.disposed.IsTrue()
}

func (t *scheduledTask) finish() {
	t.disposed.On()
	t.cancel()
}

//**************************************************
//  taskHeap
//**************************************************

type taskHeap []*scheduledTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*scheduledTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
