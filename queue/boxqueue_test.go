package queue_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokit/fluxkit/queue"
)

func BenchmarkBoxQueue_PushPop(b *testing.B) {
	b.ReportAllocs()

	q := queue.New[int]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Push(i)
		q.Pop()
	}
	b.StopTimer()
}

func TestBoxQueue_PushPopUnPop(t *testing.T) {
	q := queue.New[int]()

	q.Push(1)
	q.Push(2)
	require.Equal(t, 2, q.Len())

	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	q.UnPop(v)
	assert.Equal(t, 2, q.Len())

	v, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Pop()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = q.Pop()
	assert.False(t, ok)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestBoxQueue_Clear(t *testing.T) {
	q := queue.New[string]()
	q.Push("a")
	q.Push("b")
	assert.False(t, q.Empty())

	q.Clear()
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())

	q.Push("c")
	v, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestBoxQueue_ConcurrentPush(t *testing.T) {
	q := queue.New[int]()

	var w sync.WaitGroup
	for i := 0; i < 10; i++ {
		w.Add(1)
		go func(base int) {
			defer w.Done()
			for j := 0; j < 100; j++ {
				q.Push(base + j)
			}
		}(i * 100)
	}
	w.Wait()

	assert.Equal(t, 1000, q.Len())

	var count int
	for !q.Empty() {
		_, ok := q.Pop()
		require.True(t, ok)
		count++
	}
	assert.Equal(t, 1000, count)
}
