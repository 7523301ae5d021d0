// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package pzip

import (
	"fmt"
	"sync"
)

// QueueState describes the current occupancy of a ByteQueue.
type QueueState int

const (
	// QueueEmpty means the queue holds no data.
	QueueEmpty QueueState = iota
	// QueueHasData means the queue holds data but is not yet full.
	QueueHasData
	// QueueFull means the queue has reached its configured capacity; a
	// producer with more data to push is blocked in Push until a
	// consumer calls Pop.
	QueueFull
	// QueueShutdown means the queue has been irreversibly closed; no
	// further Push calls are permitted.
	QueueShutdown
)

func (s QueueState) String() string {
	switch s {
	case QueueEmpty:
		return "empty"
	case QueueHasData:
		return "has-data"
	case QueueFull:
		return "full"
	case QueueShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ByteQueue is a bounded, single-producer/single-consumer byte buffer
// used to hand compressed or decompressed data between a worker
// goroutine and the goroutine that writes it to its final destination.
// Push blocks once the queue reaches its configured capacity until the
// consumer calls Pop; Shutdown is irreversible and wakes any blocked
// Push or WaitUntilFullOrShutdown caller.
//
// A ByteQueue is safe for concurrent use by exactly one producer
// goroutine calling Push/Shutdown and one consumer goroutine calling
// Pop/WaitUntilFullOrShutdown.
type ByteQueue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	buffer     []byte
	bufferSize int64
	state      QueueState
}

// NewByteQueue creates a ByteQueue with the given capacity, in bytes.
func NewByteQueue(size int64) *ByteQueue {
	q := &ByteQueue{
		buffer:     make([]byte, 0, size),
		bufferSize: size,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends data to the queue, blocking in chunks as the queue
// fills so that the producer never writes more than Size bytes ahead
// of the consumer. Push panics if called after Shutdown; that is a
// programming error in the caller, not a runtime condition.
func (q *ByteQueue) Push(data []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == QueueShutdown {
		panic("pzip: Push called on a closed ByteQueue")
	}
	if int64(len(q.buffer))+int64(len(data)) < q.bufferSize {
		q.buffer = append(q.buffer, data...)
		if q.state == QueueEmpty {
			q.setState(QueueHasData)
		}
		return
	}
	q.pushInternal(data)
}

// pushInternal handles the case where data does not fit in the
// remaining capacity of the queue in one go; it must be called with
// q.mu held.
func (q *ByteQueue) pushInternal(data []byte) {
	pushed := 0
	for pushed < len(data) {
		room := int(q.bufferSize) - len(q.buffer)
		remaining := len(data) - pushed
		thisRound := remaining
		if room < thisRound {
			thisRound = room
		}
		q.buffer = append(q.buffer, data[pushed:pushed+thisRound]...)
		pushed += thisRound
		if int64(len(q.buffer)) == q.bufferSize {
			q.setState(QueueFull)
			if pushed == len(data) {
				// Everything is in but there's nothing left to push, so
				// return rather than blocking on a Pop that may never
				// come before the caller is done anyway.
				return
			}
			for q.state == QueueFull {
				q.cond.Wait()
			}
			if q.state == QueueShutdown {
				return
			}
		} else {
			q.setState(QueueHasData)
		}
	}
}

// Pop drains and returns the queue's current contents, resetting its
// state to empty (unless the queue has been shut down, in which case
// it remains shutdown). Pop never blocks: if the queue is empty it
// returns a zero-length slice.
func (q *ByteQueue) Pop() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.buffer
	q.buffer = make([]byte, 0, q.bufferSize)
	if q.state != QueueShutdown {
		q.setState(QueueEmpty)
	}
	return out
}

// WaitUntilFullOrShutdown blocks until the queue reaches capacity or
// is shut down. It is used by the consumer to wait until there is a
// full buffer to drain or the producer has finished.
func (q *ByteQueue) WaitUntilFullOrShutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !(q.state == QueueFull || q.state == QueueShutdown) {
		q.cond.Wait()
	}
}

// State returns the queue's current state.
func (q *ByteQueue) State() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Size returns the queue's configured capacity, in bytes.
func (q *ByteQueue) Size() int64 {
	return q.bufferSize
}

// Shutdown irreversibly closes the queue and wakes any goroutine
// blocked in Push or WaitUntilFullOrShutdown. Calling Shutdown more
// than once is a no-op.
func (q *ByteQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == QueueShutdown {
		return
	}
	q.setState(QueueShutdown)
}

// setState must be called with q.mu held. It is a runtime error to
// call it after the queue has been shut down.
func (q *ByteQueue) setState(next QueueState) {
	if q.state == QueueShutdown {
		panic(fmt.Sprintf("pzip: attempted to move a shutdown ByteQueue to state %v", next))
	}
	changed := next != q.state
	q.state = next
	if changed {
		q.cond.Broadcast()
	}
}
