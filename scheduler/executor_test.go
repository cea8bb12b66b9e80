package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gerrors "github.com/gokit/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokit/fluxkit"
	"github.com/gokit/fluxkit/internal"
	"github.com/gokit/fluxkit/mocks"
	"github.com/gokit/fluxkit/scheduler"
)

type dropped struct {
	dl   sync.Mutex
	errs []error
}

func (d *dropped) watch(ev interface{}) {
	if e, ok := ev.(fluxkit.ErrorDropped); ok {
		d.dl.Lock()
		d.errs = append(d.errs, e.Err)
		d.dl.Unlock()
	}
}

func (d *dropped) Errors() []error {
	d.dl.Lock()
	defer d.dl.Unlock()
	return append([]error(nil), d.errs...)
}

func testHooks() (*fluxkit.Hooks, *dropped, *internal.TLog) {
	logs := &internal.TLog{}
	hooks := fluxkit.NewHooks(fluxkit.HooksConfig{Logs: logs})
	drops := &dropped{}
	hooks.Watch(drops.watch)
	return hooks, drops, logs
}

func TestTimedExecutorRunsByDeadline(t *testing.T) {
	hooks, _, _ := testHooks()
	ex := scheduler.NewTimedExecutor("ordered", nil, hooks)
	defer ex.ShutdownNow()

	order := make(chan string, 3)
	_, err := ex.Submit(func(_ context.Context) { order <- "late" }, 60*time.Millisecond)
	require.NoError(t, err)
	_, err = ex.Submit(func(_ context.Context) { order <- "middle" }, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = ex.Submit(func(_ context.Context) { order <- "now" }, 0)
	require.NoError(t, err)

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case item := <-order:
			got = append(got, item)
		case <-time.After(time.Second):
			require.Fail(t, "tasks did not run in time")
		}
	}
	assert.Equal(t, []string{"now", "middle", "late"}, got)
}

func TestTimedExecutorStartsGoroutineLazily(t *testing.T) {
	var threads mocks.ThreadCounter
	ex := scheduler.NewTimedExecutor("lazy", &threads, nil)
	defer ex.ShutdownNow()

	require.Equal(t, 0, threads.Count())

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		_, err := ex.Submit(func(_ context.Context) { wg.Done() }, 0)
		require.NoError(t, err)
	}
	wg.Wait()

	require.Equal(t, 1, threads.Count())
}

func TestTimedExecutorDisposeQueuedTask(t *testing.T) {
	ex := scheduler.NewTimedExecutor("dispose", nil, nil)
	defer ex.ShutdownNow()

	var ran int32
	task, err := ex.Submit(func(_ context.Context) { atomic.StoreInt32(&ran, 1) }, 30*time.Millisecond)
	require.NoError(t, err)

	task.Dispose()
	require.True(t, task.IsDisposed())

	marker := make(chan struct{})
	_, err = ex.Submit(func(_ context.Context) { close(marker) }, 60*time.Millisecond)
	require.NoError(t, err)

	<-marker
	require.Equal(t, int32(0), atomic.LoadInt32(&ran))
	require.Equal(t, 0, ex.Pending())
}

func TestTimedExecutorDisposeRunningTask(t *testing.T) {
	ex := scheduler.NewTimedExecutor("interrupt", nil, nil)
	defer ex.ShutdownNow()

	started := make(chan struct{})
	interrupted := make(chan struct{})
	task, err := ex.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(interrupted)
	}, 0)
	require.NoError(t, err)

	<-started
	task.Dispose()

	select {
	case <-interrupted:
	case <-time.After(time.Second):
		require.Fail(t, "running task was not interrupted")
	}
}

func TestTimedExecutorPeriodic(t *testing.T) {
	ex := scheduler.NewTimedExecutor("periodic", nil, nil)
	defer ex.ShutdownNow()

	var runs int32
	reached := make(chan struct{})
	task, err := ex.SubmitPeriodic(func(_ context.Context) {
		if atomic.AddInt32(&runs, 1) == 3 {
			close(reached)
		}
	}, 0, 5*time.Millisecond)
	require.NoError(t, err)

	select {
	case <-reached:
	case <-time.After(time.Second):
		require.Fail(t, "periodic task did not repeat")
	}

	task.Dispose()
	<-time.After(20 * time.Millisecond)
	count := atomic.LoadInt32(&runs)

	<-time.After(30 * time.Millisecond)
	require.Equal(t, count, atomic.LoadInt32(&runs))
	require.True(t, task.IsDisposed())

	_, err = ex.SubmitPeriodic(func(_ context.Context) {}, 0, 0)
	require.Error(t, err)
}

func TestTimedExecutorRecoversPanics(t *testing.T) {
	hooks, drops, logs := testHooks()
	ex := scheduler.NewTimedExecutor("panics", nil, hooks)
	defer ex.ShutdownNow()

	_, err := ex.Submit(func(_ context.Context) { panic("bad task") }, 0)
	require.NoError(t, err)

	done := make(chan struct{})
	_, err = ex.Submit(func(_ context.Context) { close(done) }, 0)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "executor stopped after panic")
	}

	errs := drops.Errors()
	require.Len(t, errs, 1)

	var pe *fluxkit.PanicError
	require.True(t, errors.As(errs[0], &pe))
	require.Equal(t, "bad task", pe.Value)
	require.True(t, logs.Contains(fluxkit.ERROR, "task panicked"))
}

func TestTimedExecutorShutdown(t *testing.T) {
	ex := scheduler.NewTimedExecutor("shutdown", nil, nil)

	var ran, periodicRuns int32
	_, err := ex.Submit(func(_ context.Context) { atomic.StoreInt32(&ran, 1) }, 20*time.Millisecond)
	require.NoError(t, err)

	periodic, err := ex.SubmitPeriodic(func(_ context.Context) {
		atomic.AddInt32(&periodicRuns, 1)
	}, time.Hour, time.Hour)
	require.NoError(t, err)

	ex.Shutdown()
	require.True(t, ex.IsShutdown())
	require.True(t, periodic.IsDisposed())

	_, err = ex.Submit(func(_ context.Context) {}, 0)
	require.Error(t, err)
	require.True(t, gerrors.IsAny(err, scheduler.ErrRejected))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ex.AwaitTermination(ctx))

	require.True(t, ex.IsTerminated())
	require.Equal(t, int32(1), atomic.LoadInt32(&ran))
	require.Equal(t, int32(0), atomic.LoadInt32(&periodicRuns))
}

func TestTimedExecutorShutdownNow(t *testing.T) {
	ex := scheduler.NewTimedExecutor("shutdown-now", nil, nil)

	started := make(chan struct{})
	var interrupted, dropped int32
	_, err := ex.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&interrupted, 1)
	}, 0)
	require.NoError(t, err)

	queued, err := ex.Submit(func(_ context.Context) { atomic.StoreInt32(&dropped, 1) }, 0)
	require.NoError(t, err)

	<-started
	ex.ShutdownNow()

	select {
	case <-ex.Terminated():
	case <-time.After(time.Second):
		require.Fail(t, "executor did not terminate")
	}

	require.Equal(t, int32(1), atomic.LoadInt32(&interrupted))
	require.Equal(t, int32(0), atomic.LoadInt32(&dropped))
	require.True(t, queued.IsDisposed())
}

func TestTimedExecutorShutdownNeverStarted(t *testing.T) {
	var threads mocks.ThreadCounter
	ex := scheduler.NewTimedExecutor("idle", &threads, nil)

	ex.Shutdown()
	require.True(t, ex.IsTerminated())
	require.Equal(t, 0, threads.Count())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, ex.AwaitTermination(ctx))
}

func TestTimedExecutorAwaitTerminatedWithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 200; i++ {
		ex := scheduler.NewTimedExecutor("terminated", nil, nil)
		ex.Shutdown()
		require.NoError(t, ex.AwaitTermination(ctx))
	}

	ex := scheduler.NewTimedExecutor("stopped", nil, nil)
	_, err := ex.Submit(func(_ context.Context) {}, 0)
	require.NoError(t, err)
	ex.Shutdown()
	<-ex.Terminated()
	require.NoError(t, ex.AwaitTermination(ctx))
}

func TestTimedExecutorAwaitTerminationTimeout(t *testing.T) {
	ex := scheduler.NewTimedExecutor("await", nil, nil)
	defer ex.ShutdownNow()

	_, err := ex.Submit(func(_ context.Context) {}, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, ex.AwaitTermination(ctx))
}
