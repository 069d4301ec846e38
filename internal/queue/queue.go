// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package queue holds the bounded sample ring shared between the watermark
// drain and the reading sessions, and the wake channel they wait on.
package queue

import (
	"sync"

	"github.com/relabs-tech/accelstream/internal/sample"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 64

// Queue is a fixed-capacity FIFO of samples. When full, Push drops the
// incoming sample and reports false; the producer never blocks.
type Queue struct {
	mu   sync.Mutex
	buf  []sample.Sample
	head int // index of the oldest sample
	n    int
}

// New allocates a queue holding at most capacity samples.
func New(capacity int) *Queue {
	if capacity < 1 {
		panic("queue: capacity must be >= 1")
	}
	return &Queue{buf: make([]sample.Sample, capacity)}
}

// Push appends s. It returns false, leaving the queue untouched, when full.
func (q *Queue) Push(s sample.Sample) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = s
	q.n++
	return true
}

// TryPop removes and returns the oldest sample. It never blocks.
func (q *Queue) TryPop() (sample.Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return sample.Sample{}, false
	}
	s := q.buf[q.head]
	q.buf[q.head] = sample.Sample{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return s, true
}

// Len is the number of queued samples.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap is the fixed capacity.
func (q *Queue) Cap() int { return len(q.buf) }
