package mocks

import (
	"fmt"
	"sync"
	"time"

	"github.com/gokit/fluxkit"
)

//****************************************
// Probe
//****************************************

// Probe records entries in the order they happened, across goroutines.
// Subscribers and cleanup callbacks share one to assert ordering.
type Probe struct {
	pl      sync.Mutex
	entries []string
}

// Record appends an entry.
func (p *Probe) Record(format string, v ...interface{}) {
	entry := format
	if len(v) != 0 {
		entry = fmt.Sprintf(format, v...)
	}

	p.pl.Lock()
	p.entries = append(p.entries, entry)
	p.pl.Unlock()
}

// Entries returns a copy of the recorded entries.
func (p *Probe) Entries() []string {
	p.pl.Lock()
	defer p.pl.Unlock()
	return append([]string(nil), p.entries...)
}

// Count returns how many entries equal entry.
func (p *Probe) Count(entry string) int {
	var count int
	for _, e := range p.Entries() {
		if e == entry {
			count++
		}
	}
	return count
}

//****************************************
// Subscriber
//****************************************

// Subscriber implements fluxkit.Subscriber recording every signal into
// its Probe as "onSubscribe", "onNext:<v>", "onError:<err>" and
// "onComplete".
//
// When Fusion is set it negotiates fusion in OnSubscribe and pulls values
// with Poll: immediately for SYNC, on every OnNext for ASYNC.
type Subscriber[T any] struct {
	Probe *Probe

	// Request is the demand requested in OnSubscribe when not fused
	// in SYNC mode. Zero means fluxkit.Unbounded, negative means
	// nothing is requested.
	Request int64

	// Fusion is the fusion mode requested, FusionNone disables it.
	Fusion fluxkit.FusionMode

	// CancelOnSubscribe cancels the subscription from within OnSubscribe,
	// before any demand is requested.
	CancelOnSubscribe bool

	once sync.Once
	done chan struct{}

	sl         sync.Mutex
	s          fluxkit.Subscription
	qs         fluxkit.QueueSubscription[T]
	mode       fluxkit.FusionMode
	values     []T
	err        error
	completed  bool
	terminated int
	pollFailed bool
}

// NewSubscriber returns a new Subscriber recording into probe, a nil
// probe gets a fresh one.
func NewSubscriber[T any](probe *Probe) *Subscriber[T] {
	if probe == nil {
		probe = &Probe{}
	}
	return &Subscriber[T]{Probe: probe}
}

func (m *Subscriber[T]) init() {
	m.once.Do(func() {
		m.done = make(chan struct{})
		if m.Probe == nil {
			m.Probe = &Probe{}
		}
	})
}

// OnSubscribe implements fluxkit.Subscriber.
func (m *Subscriber[T]) OnSubscribe(s fluxkit.Subscription) {
	m.init()
	m.Probe.Record("onSubscribe")

	m.sl.Lock()
	m.s = s
	m.sl.Unlock()

	if m.CancelOnSubscribe {
		s.Cancel()
		return
	}

	if m.Fusion != fluxkit.FusionNone {
		if qs, ok := s.(fluxkit.QueueSubscription[T]); ok {
			mode := qs.RequestFusion(m.Fusion)

			m.sl.Lock()
			m.qs = qs
			m.mode = mode
			m.sl.Unlock()

			if mode == fluxkit.FusionSync {
				m.drainSync(qs)
				return
			}
		}
	}

	switch {
	case m.Request == 0:
		s.Request(fluxkit.Unbounded)
	case m.Request > 0:
		s.Request(m.Request)
	}
}

// OnNext implements fluxkit.Subscriber.
func (m *Subscriber[T]) OnNext(v T) {
	m.init()
	if m.failed() {
		return
	}
	if m.Mode() == fluxkit.FusionAsync {
		m.drainAsync()
		return
	}
	m.next(v)
}

// OnError implements fluxkit.Subscriber.
func (m *Subscriber[T]) OnError(err error) {
	m.init()
	if m.failed() {
		return
	}
	m.Probe.Record("onError:%v", err)

	m.sl.Lock()
	m.err = err
	m.terminated++
	m.sl.Unlock()
	m.finish()
}

// OnComplete implements fluxkit.Subscriber.
func (m *Subscriber[T]) OnComplete() {
	m.init()
	if m.failed() {
		return
	}
	m.Probe.Record("onComplete")

	m.sl.Lock()
	m.completed = true
	m.terminated++
	m.sl.Unlock()
	m.finish()
}

// Cancel cancels the received subscription.
func (m *Subscriber[T]) Cancel() {
	m.sl.Lock()
	s := m.s
	m.sl.Unlock()

	if s != nil {
		s.Cancel()
	}
}

// RequestMore requests n more values from the received subscription.
func (m *Subscriber[T]) RequestMore(n int64) {
	m.sl.Lock()
	s := m.s
	m.sl.Unlock()

	if s != nil {
		s.Request(n)
	}
}

// Subscription returns the received subscription.
func (m *Subscriber[T]) Subscription() fluxkit.Subscription {
	m.sl.Lock()
	defer m.sl.Unlock()
	return m.s
}

// Mode returns the negotiated fusion mode.
func (m *Subscriber[T]) Mode() fluxkit.FusionMode {
	m.sl.Lock()
	defer m.sl.Unlock()
	return m.mode
}

// Values returns received values.
func (m *Subscriber[T]) Values() []T {
	m.sl.Lock()
	defer m.sl.Unlock()
	return append([]T(nil), m.values...)
}

// Err returns the received error.
func (m *Subscriber[T]) Err() error {
	m.sl.Lock()
	defer m.sl.Unlock()
	return m.err
}

// Completed returns true/false if completion was received.
func (m *Subscriber[T]) Completed() bool {
	m.sl.Lock()
	defer m.sl.Unlock()
	return m.completed
}

// Terminations returns how many terminal signals were received.
func (m *Subscriber[T]) Terminations() int {
	m.sl.Lock()
	defer m.sl.Unlock()
	return m.terminated
}

// Await blocks till a terminal signal is received or d elapses,
// returning false on timeout.
func (m *Subscriber[T]) Await(d time.Duration) bool {
	m.init()
	select {
	case <-m.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (m *Subscriber[T]) next(v T) {
	m.Probe.Record("onNext:%v", v)

	m.sl.Lock()
	m.values = append(m.values, v)
	m.sl.Unlock()
}

func (m *Subscriber[T]) drainSync(qs fluxkit.QueueSubscription[T]) {
	for {
		v, ok, err := qs.Poll()
		if err != nil {
			qs.Cancel()
			m.OnError(err)
			m.markFailed()
			return
		}
		if !ok {
			m.OnComplete()
			return
		}
		m.next(v)
	}
}

func (m *Subscriber[T]) drainAsync() {
	m.sl.Lock()
	qs := m.qs
	m.sl.Unlock()

	for {
		v, ok, err := qs.Poll()
		if err != nil {
			qs.Cancel()
			m.OnError(err)
			m.markFailed()
			return
		}
		if !ok {
			return
		}
		m.next(v)
	}
}

// a failed Poll terminates the subscriber itself, later upstream
// signals are ignored.
func (m *Subscriber[T]) markFailed() {
	m.sl.Lock()
	m.pollFailed = true
	m.sl.Unlock()
}

func (m *Subscriber[T]) failed() bool {
	m.sl.Lock()
	defer m.sl.Unlock()
	return m.pollFailed
}

func (m *Subscriber[T]) finish() {
	m.sl.Lock()
	defer m.sl.Unlock()

	select {
	case <-m.done:
	default:
		close(m.done)
	}
}
