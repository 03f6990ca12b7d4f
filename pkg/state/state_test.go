package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalLatestWins(t *testing.T) {
	s := NewSignal[int]()

	_, ok := s.TryTake()
	assert.False(t, ok, "empty signal must not yield a value")

	s.Signal(1)
	s.Signal(2)
	s.Signal(3)

	v, ok := s.TryTake()
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = s.TryTake()
	assert.False(t, ok, "value is consumed once")
}

func TestSignalWaitBlocksUntilValue(t *testing.T) {
	s := NewSignal[string]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Signal("ready")
	}()

	v, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", v)
}

func TestSignalWaitHonoursContext(t *testing.T) {
	s := NewSignal[bool]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignalConcurrentWriters(t *testing.T) {
	s := NewSignal[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			s.Signal(v)
		}(i)
	}
	wg.Wait()

	_, ok := s.TryTake()
	assert.True(t, ok)
	_, ok = s.TryTake()
	assert.False(t, ok, "at most one value is ever pending")
}

func TestSignalSelect(t *testing.T) {
	s := NewSignal[uint64]()
	s.Signal(10)

	select {
	case v := <-s.C():
		assert.Equal(t, uint64(10), v)
	case <-time.After(time.Second):
		t.Fatal("pending value not visible through C")
	}

	s.Signal(11)
	s.Reset()
	_, ok := s.TryTake()
	assert.False(t, ok)
}

func TestGuarded(t *testing.T) {
	g := NewGuarded[uint16](5)
	assert.Equal(t, uint16(5), g.Get())
	g.Set(9)
	assert.Equal(t, uint16(9), g.Get())
}

func TestBusDefaults(t *testing.T) {
	b := NewBus()
	assert.Equal(t, uint64(0), b.ContinuousSampleInterval.Get())
	assert.Equal(t, uint16(5), b.MotionReadDuration.Get())
	assert.Equal(t, uint64(5), b.MotionSampleInterval.Get())

	_, ok := b.Read.TryTake()
	assert.False(t, ok)
}

func TestBusEpoch(t *testing.T) {
	b := NewBus()
	time.Sleep(30 * time.Millisecond)
	assert.GreaterOrEqual(t, b.Timestamp(), uint32(30))

	b.ResetEpoch()
	assert.Less(t, b.Timestamp(), uint32(20))
}
