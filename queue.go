package logpipe

import (
	"sync/atomic"
)

// Queue is a multi-producer, single-consumer record queue.
// Enqueue may be called from any goroutine; TryDequeue from one consumer at a time.
type Queue interface {
	// Enqueue appends a record, returning false if the queue no longer accepts records
	Enqueue(r Record) bool
	// TryDequeue removes the oldest available record
	TryDequeue() (Record, bool)
	// Len returns the approximate number of pending records
	Len() int
	// Close stops accepting records and releases pending ones
	Close()
}

// queueNode is a link in the MPSC list
type queueNode struct {
	next atomic.Pointer[queueNode]
	rec  Record
}

// MPSCQueue is an unbounded linked MPSC queue.
// Producers swap the head and link the previous node, so enqueue never waits on other producers.
// The consumer side keeps a stub node whose successor holds the next record.
type MPSCQueue struct {
	head   atomic.Pointer[queueNode] // producers
	tail   *queueNode                // consumer only
	length atomic.Int64
	closed atomic.Bool
}

// NewMPSCQueue creates an empty queue
func NewMPSCQueue() *MPSCQueue {
	stub := &queueNode{}
	q := &MPSCQueue{tail: stub}
	q.head.Store(stub)
	return q
}

// Enqueue appends a record. Records from one goroutine keep their relative order.
func (q *MPSCQueue) Enqueue(r Record) bool {
	if q.closed.Load() {
		return false
	}
	n := &queueNode{rec: r}
	// Count before linking so Len never goes negative against a fast consumer
	q.length.Add(1)
	prev := q.head.Swap(n)
	prev.next.Store(n)
	return true
}

// TryDequeue removes the oldest linked record. A producer caught between swap and link
// makes the queue look empty until the link lands.
func (q *MPSCQueue) TryDequeue() (Record, bool) {
	next := q.tail.next.Load()
	if next == nil {
		return Record{}, false
	}
	q.tail = next
	rec := next.rec
	next.rec = Record{} // next is the new stub, drop its payload reference
	q.length.Add(-1)
	return rec, true
}

// Len returns the number of pending records, possibly including in-flight enqueues
func (q *MPSCQueue) Len() int {
	n := q.length.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Close stops accepting records and releases linked ones.
// Must be called from the consumer side.
func (q *MPSCQueue) Close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	for {
		if _, ok := q.TryDequeue(); !ok {
			return
		}
	}
}

// Closed reports whether Close has been called
func (q *MPSCQueue) Closed() bool {
	return q.closed.Load()
}
