package datasource

import "sync"

// SerialQueue is a Queue backed by a single goroutine. It stands in for a UI
// event loop in headless clients and tests.
type SerialQueue struct {
	ch   chan func()
	done chan struct{}
	once sync.Once
}

// NewSerialQueue starts the queue goroutine.
func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{
		ch:   make(chan func(), 64),
		done: make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for fn := range q.ch {
			fn()
		}
	}()
	return q
}

// Enqueue schedules fn. It must not be called after Close.
func (q *SerialQueue) Enqueue(fn func()) {
	q.ch <- fn
}

// Do runs fn on the queue and waits for it to return.
func (q *SerialQueue) Do(fn func()) {
	done := make(chan struct{})
	q.ch <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// Close drains the queue and stops its goroutine.
func (q *SerialQueue) Close() {
	q.once.Do(func() { close(q.ch) })
	<-q.done
}
