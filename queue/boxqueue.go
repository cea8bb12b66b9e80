package queue

import (
	"sync"
)

type node[T any] struct {
	value T
	next  *node[T]
}

// BoxQueue defines a queue implementation safe for concurrent-use
// across go-routines, which provides ability to requeue, pop and push
// values. BoxQueue uses lock to guarantee safe concurrent use.
type BoxQueue[T any] struct {
	bm    sync.Mutex
	head  *node[T]
	tail  *node[T]
	total int
}

// New returns a new instance of an unbounded box queue.
func New[T any]() *BoxQueue[T] {
	return &BoxQueue[T]{}
}

// Push adds the item to the back of the queue.
//
// Push can be safely called from multiple goroutines.
func (bq *BoxQueue[T]) Push(v T) {
	n := &node[T]{value: v}

	bq.bm.Lock()
	bq.total++
	if bq.head == nil && bq.tail == nil {
		bq.head, bq.tail = n, n
		bq.bm.Unlock()
		return
	}

	bq.tail.next = n
	bq.tail = n
	bq.bm.Unlock()
}

// UnPop adds the item back to the front of the queue.
func (bq *BoxQueue[T]) UnPop(v T) {
	n := &node[T]{value: v}

	bq.bm.Lock()
	bq.total++
	head := bq.head
	if head != nil {
		n.next = head
		bq.head = n
		bq.bm.Unlock()
		return
	}

	bq.head = n
	bq.tail = n
	bq.bm.Unlock()
}

// Pop removes the item from the front of the queue, ok is false
// when the queue is empty.
//
// Pop can be safely called from multiple goroutines.
func (bq *BoxQueue[T]) Pop() (value T, ok bool) {
	bq.bm.Lock()
	head := bq.head
	if head != nil {
		v := head.value

		bq.head = head.next
		if bq.tail == head {
			bq.tail = bq.head
		}
		bq.total--
		bq.bm.Unlock()

		head.next = nil
		return v, true
	}
	bq.bm.Unlock()
	return value, false
}

// Clear removes all pending items.
func (bq *BoxQueue[T]) Clear() {
	bq.bm.Lock()
	bq.head = nil
	bq.tail = nil
	bq.total = 0
	bq.bm.Unlock()
}

// Len returns the number of pending items.
func (bq *BoxQueue[T]) Len() int {
	bq.bm.Lock()
	defer bq.bm.Unlock()
	return bq.total
}

// Empty returns true/false if the queue is empty.
func (bq *BoxQueue[T]) Empty() bool {
	var empty bool
	bq.bm.Lock()
	empty = bq.head == nil && bq.tail == nil
	bq.bm.Unlock()
	return empty
}
