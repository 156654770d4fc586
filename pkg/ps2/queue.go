// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ps2

import "sync/atomic"

// Queue is a single producer, single consumer ring of received bytes.
//
// The producer never blocks: pushing onto a full queue overwrites the oldest
// byte. The consumer notices the loss on its next pop, skips to the oldest
// byte still held and counts every lost byte in Overflows. Only the producer
// writes head and the slots; only the consumer writes tail.
type Queue struct {
	slots     [QueueSize]atomic.Uint32
	head      atomic.Uint32
	tail      atomic.Uint32
	overflows atomic.Uint32
}

const seqMask = 0xFFFFFF

// Push appends b. Producer side.
func (q *Queue) Push(b byte) {
	h := q.head.Load()
	q.slots[h%QueueSize].Store((h&seqMask)<<8 | uint32(b))
	q.head.Store(h + 1)
}

// Available reports whether a byte can be popped. Consumer side.
func (q *Queue) Available() bool {
	return q.head.Load() != q.tail.Load()
}

// Len returns the number of bytes held.
func (q *Queue) Len() int {
	n := q.head.Load() - q.tail.Load()
	if n > QueueSize {
		return QueueSize
	}
	return int(n)
}

// Pop removes the oldest byte. The queue must not be empty.
func (q *Queue) Pop() byte {
	b, _ := q.TryPop()
	return b
}

// TryPop removes the oldest byte if there is one. Consumer side.
func (q *Queue) TryPop() (byte, bool) {
	for {
		t := q.tail.Load()
		h := q.head.Load()
		if h == t {
			return 0, false
		}
		if h-t > QueueSize {
			q.overflows.Add(h - t - QueueSize)
			q.tail.Store(h - QueueSize)
			continue
		}
		v := q.slots[t%QueueSize].Load()
		if v>>8 != t&seqMask {
			// overwritten while we looked; head catches up shortly
			continue
		}
		q.tail.Store(t + 1)
		return byte(v), true
	}
}

// Overflows returns the number of bytes lost to overwrites so far.
func (q *Queue) Overflows() uint32 { return q.overflows.Load() }

// Reset empties the queue. The producer must be quiescent.
func (q *Queue) Reset() {
	q.tail.Store(q.head.Load())
}
