package csi

import (
	"context"
	"fmt"
	"sync/atomic"
)

// DefaultQueueSize is the default capture queue capacity.
const DefaultQueueSize = 10

// Queue is a fixed-capacity FIFO of Records shared between exactly one
// producer and one consumer. The producer side never blocks: when the
// queue is full the newest record is dropped, keeping the radio's
// delivery context free of stalls. The consumer side blocks when empty.
type Queue struct {
	ch      chan Record
	dropped atomic.Uint64
}

// NewQueue creates a queue holding up to capacity records.
// Returns an error if capacity is not positive.
func NewQueue(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid queue capacity: %d", capacity)
	}
	return &Queue{ch: make(chan Record, capacity)}, nil
}

// TryPush attempts a zero-wait append of r. It returns false and drops r
// if the queue is full. Safe to call concurrently with Pop.
func (q *Queue) TryPush(r Record) bool {
	select {
	case q.ch <- r:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Pop removes and returns the oldest record, blocking until one is
// available or ctx is cancelled. The second return value is false only
// on cancellation.
func (q *Queue) Pop(ctx context.Context) (Record, bool) {
	select {
	case r := <-q.ch:
		return r, true
	case <-ctx.Done():
		return Record{}, false
	}
}

// Len returns the number of records currently queued.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns the number of records rejected by TryPush since the
// queue was created.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
