package fluxkit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gokit/fluxkit"
)

func TestBlock(t *testing.T) {
	value, ok, err := fluxkit.Block(context.Background(), fluxkit.Just(42))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, value)

	_, ok, err = fluxkit.Block(context.Background(), fluxkit.Empty[int]())
	require.NoError(t, err)
	require.False(t, ok)

	failure := errors.New("bad")
	_, _, err = fluxkit.Block(context.Background(), fluxkit.Fail[int](failure))
	require.Equal(t, failure, err)
}

func TestBlockAsync(t *testing.T) {
	future := fluxkit.NewFuture[string]()
	time.AfterFunc(10*time.Millisecond, func() {
		future.Resolve("later")
	})

	value, ok, err := fluxkit.Block[string](context.Background(), future)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "later", value)
}

func TestBlockContextCancelled(t *testing.T) {
	ctx, _, _ := hooked()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()

	var cleanups int
	p := fluxkit.Using(func(_ context.Context) (int, error) {
		return 1, nil
	}, func(_ int) (fluxkit.Publisher[int], error) {
		return fluxkit.NewFuture[int](), nil
	}, func(_ int) error {
		cleanups++
		return nil
	}, false)

	_, _, err := fluxkit.Block(ctx, p)
	require.Equal(t, context.DeadlineExceeded, err)
	require.Equal(t, 1, cleanups)
}

func TestSubscribeFunc(t *testing.T) {
	var values []int
	var completed bool

	d := fluxkit.SubscribeFunc(context.Background(), fluxkit.Just(1), func(v int) {
		values = append(values, v)
	}, nil, func() {
		completed = true
	})

	require.Equal(t, []int{1}, values)
	require.True(t, completed)
	require.True(t, d.IsDisposed())
}

func TestSubscribeFuncErrors(t *testing.T) {
	failure := errors.New("bad")

	var got error
	fluxkit.SubscribeFunc(context.Background(), fluxkit.Fail[int](failure), nil, func(err error) {
		got = err
	}, nil)
	require.Equal(t, failure, got)

	ctx, hooks, _ := hooked()
	fluxkit.SubscribeFunc(ctx, fluxkit.Fail[int](failure), nil, nil, nil)
	require.Equal(t, []error{failure}, hooks.Dropped())
}

func TestSubscribeFuncDispose(t *testing.T) {
	ctx, _, _ := hooked()
	future := fluxkit.NewFuture[int]()

	var values []int
	d := fluxkit.SubscribeFunc[int](ctx, future, func(v int) {
		values = append(values, v)
	}, nil, nil)

	require.False(t, d.IsDisposed())
	d.Dispose()
	require.True(t, d.IsDisposed())

	require.NoError(t, future.Resolve(5))
	require.Empty(t, values)
}
