// Package scheduler fires a callback when forward records reach their
// settlement timestamp. It replaces the original design's scheduling hook
// embedded in the record itself: the core stays free of timer concerns and
// this component invokes the validator-gated settlement path from outside.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FireFunc is invoked once per record when its maturity is reached. It runs
// on the scheduler goroutine; long work should be handed off.
type FireFunc func(recordID uuid.UUID, at time.Time)

type entry struct {
	id uuid.UUID
	at time.Time
}

type entryHeap []entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Maturity is a deadline queue over record settlement timestamps.
type Maturity struct {
	mu      sync.Mutex
	pending entryHeap
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	clock   func() time.Time
	fire    FireFunc
}

// Option configures the scheduler.
type Option func(*Maturity)

// WithClock injects the time source; defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Maturity) { m.clock = clock }
}

// New starts the scheduler goroutine.
func New(fire FireFunc, opts ...Option) *Maturity {
	m := &Maturity{
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		clock: time.Now,
		fire:  fire,
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m
}

// Add schedules a record's maturity. Deadlines already in the past fire on
// the next wakeup.
func (m *Maturity) Add(recordID uuid.UUID, at time.Time) {
	m.mu.Lock()
	heap.Push(&m.pending, entry{id: recordID, at: at.UTC()})
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Stop shuts the scheduler down and waits for the goroutine to exit. Pending
// entries that have not matured are dropped.
func (m *Maturity) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Maturity) run() {
	defer close(m.done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next, ok := m.fireMatured()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if ok {
			wait := next.Sub(m.clock())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
		} else {
			timer.Reset(time.Hour)
		}

		select {
		case <-m.stop:
			return
		case <-m.wake:
		case <-timer.C:
		}
	}
}

// fireMatured pops and fires every entry at or past its deadline and returns
// the next pending deadline, if any.
func (m *Maturity) fireMatured() (time.Time, bool) {
	now := m.clock()

	var ready []entry
	m.mu.Lock()
	for m.pending.Len() > 0 && !m.pending[0].at.After(now) {
		ready = append(ready, heap.Pop(&m.pending).(entry))
	}
	var next time.Time
	hasNext := m.pending.Len() > 0
	if hasNext {
		next = m.pending[0].at
	}
	m.mu.Unlock()

	for _, e := range ready {
		m.fire(e.id, e.at)
	}
	return next, hasNext
}
