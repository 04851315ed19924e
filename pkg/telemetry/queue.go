// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "sync/atomic"

// DefaultBulkSize is the batch size used by DequeueBulk when max <= 0
const DefaultBulkSize = 256

type node struct {
	next   atomic.Pointer[node]
	update Update
}

// Queue is an unbounded lock-free multi-producer single-consumer queue of
// channel updates. Enqueue may be called from any goroutine; TryDequeue and
// DequeueBulk must only be called from one consumer goroutine.
type Queue struct {
	head atomic.Pointer[node] // last enqueued node, swapped by producers
	tail *node                // consumer-owned stub
	size atomic.Int64
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	stub := &node{}
	q := &Queue{tail: stub}
	q.head.Store(stub)
	return q
}

// Enqueue appends an update. Never blocks; returns false only when the queue
// is nil.
func (q *Queue) Enqueue(name string, value Value) bool {
	if q == nil {
		return false
	}

	n := &node{update: Update{Name: name, Value: value}}
	prev := q.head.Swap(n)
	// Between the swap and this store the consumer sees the queue as ending
	// at prev; the item becomes visible on the next dequeue.
	prev.next.Store(n)
	q.size.Add(1)
	return true
}

// TryDequeue removes the oldest update without blocking
func (q *Queue) TryDequeue() (Update, bool) {
	next := q.tail.next.Load()
	if next == nil {
		return Update{}, false
	}

	u := next.update
	next.update = Update{}
	q.tail = next
	q.size.Add(-1)
	return u, true
}

// DequeueBulk removes up to maxCount updates in FIFO order. A maxCount of
// zero or less uses DefaultBulkSize.
func (q *Queue) DequeueBulk(maxCount int) []Update {
	if maxCount <= 0 {
		maxCount = DefaultBulkSize
	}

	var out []Update
	for len(out) < maxCount {
		u, ok := q.TryDequeue()
		if !ok {
			break
		}
		if out == nil {
			out = make([]Update, 0, min(maxCount, 32))
		}
		out = append(out, u)
	}
	return out
}

// ApproxSize returns an estimate of the number of queued updates, for
// diagnostics only
func (q *Queue) ApproxSize() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
