package state

import "time"

// Defaults for every guarded value and for the values published at boot.
const (
	DefaultContinuousSampleIntervalMS uint64 = 0
	DefaultMotionReadDurationS        uint16 = 5
	DefaultMotionSampleIntervalMS     uint64 = 5

	DefaultMinBuzz float32 = 0.05
	DefaultMaxBuzz float32 = 2.0

	BootBlinkIntervalMS   uint64 = 200
	IdleBlinkIntervalMS   uint64 = 1000
	ActiveBlinkIntervalMS uint64 = 10
	FailBlinkIntervalMS   uint64 = 100
)

// Bus bundles one entry per configuration item and cross-task command.
// It is created once at startup and handed to every task.
type Bus struct {
	boot time.Time

	// Guarded values.
	ContinuousSampleInterval *Guarded[uint64] // ms, 0 disables periodic sampling
	MotionReadDuration       *Guarded[uint16] // s
	MotionSampleInterval     *Guarded[uint64] // ms
	Epoch                    *Guarded[uint32] // ms since boot

	// Feedback.
	BlinkInterval *Signal[uint64] // ms
	Intensity     *Signal[float32]
	MinBuzz       *Signal[float32]
	MaxBuzz       *Signal[float32]
	PlaySound     *Signal[bool]

	// Sensor configuration intents, as raw wire values.
	AccelScale *Signal[uint8]
	GyroScale  *Signal[uint8]
	BuzzMode   *Signal[uint8]
	Filter     *Signal[uint8]

	MotionDetection *Signal[bool]
	Read            *Signal[bool]
	MarkEpoch       *Signal[struct{}]
}

// NewBus returns a bus with every guarded value at its default and every
// signal empty.
func NewBus() *Bus {
	return &Bus{
		boot: time.Now(),

		ContinuousSampleInterval: NewGuarded(DefaultContinuousSampleIntervalMS),
		MotionReadDuration:       NewGuarded(DefaultMotionReadDurationS),
		MotionSampleInterval:     NewGuarded(DefaultMotionSampleIntervalMS),
		Epoch:                    NewGuarded(uint32(0)),

		BlinkInterval: NewSignal[uint64](),
		Intensity:     NewSignal[float32](),
		MinBuzz:       NewSignal[float32](),
		MaxBuzz:       NewSignal[float32](),
		PlaySound:     NewSignal[bool](),

		AccelScale: NewSignal[uint8](),
		GyroScale:  NewSignal[uint8](),
		BuzzMode:   NewSignal[uint8](),
		Filter:     NewSignal[uint8](),

		MotionDetection: NewSignal[bool](),
		Read:            NewSignal[bool](),
		MarkEpoch:       NewSignal[struct{}](),
	}
}

// Millis is the time since the bus was created, wrapping at 2^32 ms.
func (b *Bus) Millis() uint32 {
	return uint32(time.Since(b.boot).Milliseconds())
}

// ResetEpoch sets the epoch to now and returns it.
func (b *Bus) ResetEpoch() uint32 {
	now := b.Millis()
	b.Epoch.Set(now)
	return now
}

// Timestamp is the current time relative to the epoch.
func (b *Bus) Timestamp() uint32 {
	return b.Millis() - b.Epoch.Get()
}
