package events

import "sync/atomic"

// Queue is a bounded sink standing in for the particle simulation's spawn
// buffer. Emit never blocks; when the queue is full the event is dropped.
type Queue struct {
	ch      chan Event
	dropped atomic.Uint64
}

// NewQueue creates a queue holding at most size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan Event, size)}
}

// Emit implements Sink.
func (q *Queue) Emit(e Event) {
	select {
	case q.ch <- e:
	default:
		q.dropped.Add(1)
	}
}

// C exposes the queue for a consumer goroutine.
func (q *Queue) C() <-chan Event { return q.ch }

// Drain removes and returns everything currently queued.
func (q *Queue) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-q.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int { return len(q.ch) }

// Dropped returns how many events were rejected because the queue was full.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
