// Package pipeline carries samples from the motion detector to the
// notifier through a fixed size ring buffer that drops the oldest sample
// when full.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/mlsorensen/gomotion"
)

// DefaultCapacity is the number of samples held before eviction starts.
const DefaultCapacity = 100

// ErrEmpty is returned by TryReceive when no sample is queued.
var ErrEmpty = errors.New("pipeline is empty")

// Stats counts samples admitted and samples evicted to make room.
type Stats struct {
	Pushed  uint64
	Dropped uint64
}

// Queue is a bounded FIFO with a single producer and a single consumer.
type Queue struct {
	mu    sync.Mutex
	buf   []gomotion.SensorSample
	head  int
	count int
	stats Stats

	ready chan struct{}
}

// New allocates a queue holding at most capacity samples.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		buf:   make([]gomotion.SensorSample, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Push enqueues s without blocking. When the queue is full the oldest
// sample is discarded first and Push reports true.
func (q *Queue) Push(s gomotion.SensorSample) (evicted bool) {
	q.mu.Lock()
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.stats.Dropped++
		evicted = true
	}
	q.buf[(q.head+q.count)%len(q.buf)] = s
	q.count++
	q.stats.Pushed++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return evicted
}

// Receive blocks until a sample is available.
func (q *Queue) Receive(ctx context.Context) (gomotion.SensorSample, error) {
	for {
		if s, err := q.TryReceive(); err == nil {
			return s, nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return gomotion.SensorSample{}, ctx.Err()
		}
	}
}

// TryReceive dequeues the oldest sample or returns ErrEmpty.
func (q *Queue) TryReceive() (gomotion.SensorSample, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return gomotion.SensorSample{}, ErrEmpty
	}
	s := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return s, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) Cap() int {
	return len(q.buf)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}
