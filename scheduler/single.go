package scheduler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gokit/errors"
	"github.com/gokit/xid"

	"github.com/gokit/fluxkit"
)

//**************************************************
//  SingleConfig
//**************************************************

// ExecutorFactory creates the executor installed by a scheduler on Start.
type ExecutorFactory func(name string, factory ThreadFactory, hooks *fluxkit.Hooks) ExecutorService

// SingleConfig defines configuration for a Single scheduler.
type SingleConfig struct {
	// Name is used for the executor goroutine and log lines.
	//
	// Defaults to "single".
	Name string

	// ThreadFactory starts the executor goroutine.
	//
	// Defaults to GoroutineFactory.
	ThreadFactory ThreadFactory

	// Hooks receives panics recovered from tasks.
	//
	// Defaults to fluxkit.DefaultHooks().
	Hooks *fluxkit.Hooks

	// Logs receives lifecycle log lines.
	//
	// Defaults to a fluxkit.LogrusLogs.
	Logs fluxkit.Logs

	// ExecutorFactory creates the executor on Start.
	//
	// Defaults to a TimedExecutor.
	ExecutorFactory ExecutorFactory
}

func (sc *SingleConfig) init() {
	if sc.Name == "" {
		sc.Name = "single"
	}
	if sc.ThreadFactory == nil {
		sc.ThreadFactory = GoroutineFactory
	}
	if sc.Hooks == nil {
		sc.Hooks = fluxkit.DefaultHooks()
	}
	if sc.Logs == nil {
		sc.Logs = fluxkit.NewLogrusLogs()
	}
	if sc.ExecutorFactory == nil {
		sc.ExecutorFactory = func(name string, factory ThreadFactory, hooks *fluxkit.Hooks) ExecutorService {
			return NewTimedExecutor(name, factory, hooks)
		}
	}
}

//**************************************************
//  state
//**************************************************

// terminatedExecutor marks the terminal state of every Single.
var terminatedExecutor = func() ExecutorService {
	ex := NewTimedExecutor("terminated", GoroutineFactory, nil)
	ex.ShutdownNow()
	return ex
}()

// state is an immutable snapshot of a Single. onDispose is only set
// once terminated and resolves when the replaced executor stopped.
type state struct {
	executor  ExecutorService
	onDispose *fluxkit.Future[struct{}]
}

func (s *state) terminated() bool {
	return s != nil && s.executor == terminatedExecutor
}

//**************************************************
//  Single
//**************************************************

var _ Scheduler = &Single{}

// Single implements a Scheduler backed by a single goroutine executor.
//
// A Single moves from uninitialized to running on Start and to terminated
// on Dispose or DisposeGracefully. Once terminated it never runs again.
type Single struct {
	id      xid.ID
	config  SingleConfig
	state   atomic.Pointer[state]
	created fluxkit.AtomicCounter
}

// NewSingle returns a new instance of a Single scheduler. The scheduler
// must be started before tasks can be scheduled.
func NewSingle(config SingleConfig) *Single {
	config.init()
	return &Single{
		id:     xid.New(),
		config: config,
	}
}

// ID returns the unique id of the scheduler.
func (s *Single) ID() string {
	return s.id.String()
}

// String returns a description of the scheduler.
func (s *Single) String() string {
	return fmt.Sprintf("single(%q)", s.config.Name)
}

// Start installs a fresh executor unless one is running or the scheduler
// is terminated. Concurrent callers race on a compare and swap, executors
// of losing callers are stopped right away.
func (s *Single) Start() {
	var candidate ExecutorService
	for {
		current := s.state.Load()
		if current != nil {
			if candidate != nil {
				candidate.ShutdownNow()
				fluxkit.LogMsg("discarded candidate executor").
					String("scheduler", s.config.Name).
					Write(fluxkit.DEBUG, s.config.Logs)
			}
			return
		}

		if candidate == nil {
			name := fmt.Sprintf("%s-%d", s.config.Name, s.created.Inc())
			candidate = s.config.ExecutorFactory(name, s.config.ThreadFactory, s.config.Hooks)
		}

		if s.state.CompareAndSwap(nil, &state{executor: candidate}) {
			fluxkit.LogMsg("scheduler started").
				String("scheduler", s.config.Name).
				String("id", s.id.String()).
				Write(fluxkit.INFO, s.config.Logs)
			return
		}
	}
}

// Dispose terminates the scheduler, stopping the running executor
// immediately. In flight tasks see their context cancelled.
func (s *Single) Dispose() {
	previous, next, ok := s.terminate()
	if !ok {
		return
	}

	if previous != nil {
		previous.executor.ShutdownNow()
		go awaitExecutor(previous.executor, next.onDispose)
	}

	fluxkit.LogMsg("scheduler disposed").
		String("scheduler", s.config.Name).
		Write(fluxkit.INFO, s.config.Logs)
}

// DisposeGracefully terminates the scheduler, letting queued and in flight
// one-shot tasks finish. The returned future resolves once the executor
// stopped, or is rejected with ErrDisposeTimeout after grace.
//
// A scheduler never started resolves immediately, an already terminated
// one returns the outcome of the earlier disposal.
func (s *Single) DisposeGracefully(grace time.Duration) *fluxkit.Future[struct{}] {
	previous, next, ok := s.terminate()
	if !ok {
		return s.withGrace(s.state.Load().onDispose, grace)
	}

	if previous == nil {
		return next.onDispose
	}

	previous.executor.Shutdown()
	go awaitExecutor(previous.executor, next.onDispose)

	fluxkit.LogMsg("scheduler disposing gracefully").
		String("scheduler", s.config.Name).
		String("grace", grace.String()).
		Write(fluxkit.INFO, s.config.Logs)

	return s.withGrace(next.onDispose, grace)
}

// IsDisposed returns true/false if the scheduler is terminated. A running
// scheduler which is shutting down is not disposed yet.
func (s *Single) IsDisposed() bool {
	return s.state.Load().terminated()
}

// Schedule runs task on the scheduler goroutine as soon as possible.
func (s *Single) Schedule(task Task) (fluxkit.Disposable, error) {
	exec, err := s.executor()
	if err != nil {
		return nil, err
	}
	return exec.Submit(task, 0)
}

// ScheduleAfter runs task on the scheduler goroutine after delay.
func (s *Single) ScheduleAfter(task Task, delay time.Duration) (fluxkit.Disposable, error) {
	exec, err := s.executor()
	if err != nil {
		return nil, err
	}
	return exec.Submit(task, delay)
}

// SchedulePeriodically runs task on the scheduler goroutine after initial
// and then every period.
func (s *Single) SchedulePeriodically(task Task, initial time.Duration, period time.Duration) (fluxkit.Disposable, error) {
	exec, err := s.executor()
	if err != nil {
		return nil, err
	}
	return exec.SubmitPeriodic(task, initial, period)
}

// CreateWorker returns a Worker bound to the current executor. It does
// not start the scheduler.
func (s *Single) CreateWorker() Worker {
	return NewExecutorWorker(s.currentExecutor())
}

// Scan implements the fluxkit.Scannable interface.
func (s *Single) Scan(attr fluxkit.Attr) interface{} {
	switch attr {
	case fluxkit.AttrTerminated, fluxkit.AttrCancelled:
		return s.IsDisposed()
	case fluxkit.AttrName:
		return s.String()
	case fluxkit.AttrCapacity:
		return 1
	case fluxkit.AttrBuffered:
		if te, ok := s.currentExecutor().(*TimedExecutor); ok {
			return te.Pending()
		}
		return 0
	case fluxkit.AttrRunStyle:
		return fluxkit.RunStyleAsync
	}
	return nil
}

func (s *Single) currentExecutor() ExecutorService {
	if current := s.state.Load(); current != nil {
		return current.executor
	}
	return nil
}

func (s *Single) executor() (ExecutorService, error) {
	current := s.state.Load()
	if current == nil {
		return nil, errors.Wrap(ErrNotStarted, "%s", s.String())
	}
	if current.terminated() {
		return nil, errors.Wrap(ErrRejected, "%s is disposed", s.String())
	}
	return current.executor, nil
}

// terminate swaps the current state for a terminated one. It returns
// false if the scheduler already was terminated.
func (s *Single) terminate() (previous *state, next *state, ok bool) {
	for {
		current := s.state.Load()
		if current.terminated() {
			return current, current, false
		}

		next = &state{executor: terminatedExecutor, onDispose: fluxkit.NewFuture[struct{}]()}
		if s.state.CompareAndSwap(current, next) {
			if current == nil {
				next.onDispose.Resolve(struct{}{})
			}
			return current, next, true
		}
	}
}

func (s *Single) withGrace(onDispose *fluxkit.Future[struct{}], grace time.Duration) *fluxkit.Future[struct{}] {
	if onDispose.IsSettled() {
		return onDispose
	}

	timed := fluxkit.TimedFutureWith[struct{}](grace, errors.Wrap(ErrDisposeTimeout, "%s after %s", s.String(), grace))
	timed.Watch(func(ev interface{}) {
		if rejected, ok := ev.(fluxkit.FutureRejected); ok {
			fluxkit.LogMsg("graceful dispose timed out").
				String("scheduler", s.config.Name).
				Err("error", rejected.Err).
				Write(fluxkit.WARN, s.config.Logs)
		}
	})
	onDispose.Pipe(timed)
	return timed
}

func awaitExecutor(exec ExecutorService, onDispose *fluxkit.Future[struct{}]) {
	<-exec.Terminated()
	onDispose.Resolve(struct{}{})
}
