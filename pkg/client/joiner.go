package client

import (
	"sync"

	"github.com/smallnest/ringbuffer"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
)

// DefaultJoinCapacity is how many unmatched entries each stream may hold.
const DefaultJoinCapacity = 4 * comms.BatchSize

// Joiner pairs accel and gyro batch entries that carry the same timestamp
// back into samples. The two streams arrive as separate notifications.
type Joiner struct {
	mu    sync.Mutex
	accel *ringbuffer.RingBuffer
	gyro  *ringbuffer.RingBuffer

	headA, headG *comms.Entry
	dropped      uint64
}

func NewJoiner(capacity int) *Joiner {
	if capacity <= 0 {
		capacity = DefaultJoinCapacity
	}
	return &Joiner{
		accel: ringbuffer.New(capacity * comms.EntrySize),
		gyro:  ringbuffer.New(capacity * comms.EntrySize),
	}
}

// PushAccel adds an accel notification and returns any samples completed by it.
func (j *Joiner) PushAccel(data []byte) ([]gomotion.SensorSample, error) {
	return j.push(j.accel, data)
}

// PushGyro adds a gyro notification and returns any samples completed by it.
func (j *Joiner) PushGyro(data []byte) ([]gomotion.SensorSample, error) {
	return j.push(j.gyro, data)
}

// Dropped counts entries discarded without a partner.
func (j *Joiner) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

func (j *Joiner) push(rb *ringbuffer.RingBuffer, data []byte) ([]gomotion.SensorSample, error) {
	if _, err := comms.UnpackBatch(data); err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	// Make room by discarding the oldest entries.
	for rb.Free() < len(data) && rb.Length() >= comms.EntrySize {
		var skip [comms.EntrySize]byte
		_, _ = rb.Read(skip[:])
		j.dropped++
	}
	if len(data) > rb.Free() {
		data = data[len(data)-rb.Free()/comms.EntrySize*comms.EntrySize:]
	}
	if _, err := rb.Write(data); err != nil {
		return nil, err
	}
	return j.match(), nil
}

func next(rb *ringbuffer.RingBuffer, head **comms.Entry) bool {
	if *head != nil {
		return true
	}
	if rb.Length() < comms.EntrySize {
		return false
	}
	var buf [comms.EntrySize]byte
	if _, err := rb.Read(buf[:]); err != nil {
		return false
	}
	e, err := comms.DecodeEntry(buf[:])
	if err != nil {
		return false
	}
	*head = &e
	return true
}

func (j *Joiner) match() []gomotion.SensorSample {
	var out []gomotion.SensorSample
	for next(j.accel, &j.headA) && next(j.gyro, &j.headG) {
		if j.headA.TimestampMS == j.headG.TimestampMS {
			out = append(out, comms.Join(*j.headA, *j.headG))
			j.headA, j.headG = nil, nil
			continue
		}
		// One entry lost its partner: timestamps rise within an epoch, so
		// the older one is the orphan.
		if j.headA.TimestampMS < j.headG.TimestampMS {
			j.headA = nil
		} else {
			j.headG = nil
		}
		j.dropped++
	}
	return out
}

// Reset forgets everything buffered, e.g. after reconnecting.
func (j *Joiner) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.accel.Reset()
	j.gyro.Reset()
	j.headA, j.headG = nil, nil
}
