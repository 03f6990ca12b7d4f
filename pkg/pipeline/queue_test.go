package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsorensen/gomotion"
)

func sample(ts uint32) gomotion.SensorSample {
	return gomotion.SensorSample{TimestampMS: ts}
}

func TestQueueFIFO(t *testing.T) {
	q := New(4)
	for i := uint32(1); i <= 3; i++ {
		assert.False(t, q.Push(sample(i)))
	}
	assert.Equal(t, 3, q.Len())

	for i := uint32(1); i <= 3; i++ {
		s, err := q.TryReceive()
		require.NoError(t, err)
		assert.Equal(t, i, s.TimestampMS)
	}

	_, err := q.TryReceive()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := New(DefaultCapacity)
	for i := uint32(0); i < DefaultCapacity; i++ {
		q.Push(sample(i))
	}
	assert.Equal(t, q.Cap(), q.Len())

	assert.True(t, q.Push(sample(1000)), "push into a full queue evicts")
	assert.Equal(t, DefaultCapacity, q.Len(), "queue never exceeds its capacity")

	first, err := q.TryReceive()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first.TimestampMS, "exactly the oldest entry was dropped")

	var last gomotion.SensorSample
	for q.Len() > 0 {
		last, err = q.TryReceive()
		require.NoError(t, err)
	}
	assert.Equal(t, uint32(1000), last.TimestampMS)

	assert.Equal(t, Stats{Pushed: DefaultCapacity + 1, Dropped: 1}, q.Stats())
}

func TestQueueWrapsAround(t *testing.T) {
	q := New(3)
	var want []uint32
	for i := uint32(0); i < 10; i++ {
		q.Push(sample(i))
		if i%2 == 0 {
			s, err := q.TryReceive()
			require.NoError(t, err)
			want = append(want, s.TimestampMS)
		}
	}
	for i := 1; i < len(want); i++ {
		assert.Greater(t, want[i], want[i-1], "dequeue order follows enqueue order")
	}
}

func TestQueueReceiveBlocks(t *testing.T) {
	q := New(2)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(sample(42))
	}()

	s, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), s.TimestampMS)
}

func TestQueueReceiveCancelled(t *testing.T) {
	q := New(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
