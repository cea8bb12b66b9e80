package mocks

import "sync/atomic"

// ThreadCounter implements a thread factory which starts goroutines and
// counts how many it started.
type ThreadCounter struct {
	count int64
}

// NewThread starts run on a new goroutine.
func (tc *ThreadCounter) NewThread(_ string, run func()) {
	atomic.AddInt64(&tc.count, 1)
	go run()
}

// Count returns the number of goroutines started.
func (tc *ThreadCounter) Count() int {
	return int(atomic.LoadInt64(&tc.count))
}
