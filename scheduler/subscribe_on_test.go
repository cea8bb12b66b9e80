package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	gerrors "github.com/gokit/errors"
	"github.com/stretchr/testify/require"

	"github.com/gokit/fluxkit"
	"github.com/gokit/fluxkit/mocks"
	"github.com/gokit/fluxkit/scheduler"
)

func TestSubscribeOn(t *testing.T) {
	var threads mocks.ThreadCounter
	single, _ := newSingle("subscribe-on", &threads)
	single.Start()
	defer single.Dispose()

	callers := make(chan string, 1)
	source := fluxkit.FromFunc(func(_ context.Context) (int, error) {
		callers <- "source"
		return 10, nil
	})

	sub := mocks.NewSubscriber[int](nil)
	sub.Request = 1
	scheduler.SubscribeOn[int](source, single).Subscribe(context.Background(), sub)

	require.True(t, sub.Await(time.Second))
	require.Equal(t, []int{10}, sub.Values())
	require.True(t, sub.Completed())
	require.Equal(t, "source", <-callers)
	require.Equal(t, 1, threads.Count())
}

func TestSubscribeOnReplaysEarlyDemand(t *testing.T) {
	single, _ := newSingle("subscribe-on-demand", nil)
	single.Start()
	defer single.Dispose()

	sub := mocks.NewSubscriber[string](nil)
	sub.Request = -1
	scheduler.SubscribeOn[string](fluxkit.Just("late"), single).Subscribe(context.Background(), sub)

	sub.RequestMore(1)

	require.True(t, sub.Await(time.Second))
	require.Equal(t, []string{"late"}, sub.Values())
	require.Equal(t, []string{"onSubscribe", "onNext:late", "onComplete"}, sub.Probe.Entries())
}

func TestSubscribeOnRejected(t *testing.T) {
	single, _ := newSingle("subscribe-on-idle", nil)

	sub := mocks.NewSubscriber[int](nil)
	scheduler.SubscribeOn[int](fluxkit.Just(1), single).Subscribe(context.Background(), sub)

	require.True(t, sub.Await(time.Second))
	require.Empty(t, sub.Values())
	require.True(t, gerrors.IsAny(sub.Err(), scheduler.ErrNotStarted))
}

func TestSubscribeOnCancel(t *testing.T) {
	single, _ := newSingle("subscribe-on-cancel", nil)
	single.Start()
	defer single.Dispose()

	future := fluxkit.NewFuture[int]()

	sub := mocks.NewSubscriber[int](nil)
	scheduler.SubscribeOn[int](future, single).Subscribe(context.Background(), sub)

	require.Eventually(t, func() bool {
		return len(sub.Probe.Entries()) == 1
	}, time.Second, time.Millisecond)

	<-time.After(20 * time.Millisecond)
	sub.Cancel()
	require.NoError(t, future.Resolve(3))

	require.False(t, sub.Await(30*time.Millisecond))
	require.Empty(t, sub.Values())
}

func TestSubscribeOnCancelledWithinOnSubscribe(t *testing.T) {
	single, _ := newSingle("subscribe-on-early-cancel", nil)
	single.Start()
	defer single.Dispose()

	var subscribed int32
	source := fluxkit.PublisherFunc[int](func(ctx context.Context, s fluxkit.Subscriber[int]) {
		atomic.AddInt32(&subscribed, 1)
		fluxkit.Just(1).Subscribe(ctx, s)
	})

	sub := mocks.NewSubscriber[int](nil)
	sub.CancelOnSubscribe = true
	scheduler.SubscribeOn[int](source, single).Subscribe(context.Background(), sub)

	require.False(t, sub.Await(30*time.Millisecond))
	require.Equal(t, []string{"onSubscribe"}, sub.Probe.Entries())
	require.Nil(t, sub.Err())
	require.Equal(t, int32(0), atomic.LoadInt32(&subscribed))
}
