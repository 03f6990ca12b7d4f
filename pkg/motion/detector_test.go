package motion

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/pipeline"
	"github.com/mlsorensen/gomotion/pkg/sensors/mock"
	"github.com/mlsorensen/gomotion/pkg/state"
)

type fixture struct {
	bus    *state.Bus
	queue  *pipeline.Queue
	sensor *mock.Sensor
	det    *Detector
	ctx    context.Context
}

func newFixture(t *testing.T, detection bool) *fixture {
	t.Helper()
	logrus.SetLevel(logrus.WarnLevel)

	f := &fixture{
		bus:    state.NewBus(),
		queue:  pipeline.New(pipeline.DefaultCapacity),
		sensor: mock.New(nil),
	}
	f.bus.MotionReadDuration.Set(1)
	f.sensor.SetReading(gomotion.Vector3{X: 16384}, gomotion.Vector3{})

	cfg := SensorConfig{
		AccelScale:      gomotion.AccelG2,
		GyroScale:       gomotion.GyroDeg2000,
		BuzzMode:        AccelX,
		Filter:          gomotion.DefaultFilter,
		MotionDetection: detection,
	}
	f.det = NewDetector(f.sensor, f.sensor, f.bus, f.queue, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	f.ctx = ctx
	return f
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(f.ctx)
	go func() { done <- f.det.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func (f *fixture) waitBlink(t *testing.T, want uint64, within time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(f.ctx, within)
	defer cancel()
	for {
		v, err := f.bus.BlinkInterval.Wait(ctx)
		require.NoError(t, err, "blink interval %d never published", want)
		if v == want {
			return
		}
	}
}

func (f *fixture) drain() []gomotion.SensorSample {
	var out []gomotion.SensorSample
	for {
		s, err := f.queue.TryReceive()
		if err != nil {
			return out
		}
		out = append(out, s)
	}
}

func TestInterruptEdgeRunsReadWindow(t *testing.T) {
	f := newFixture(t, true)
	f.run(t)

	f.sensor.SetLevel(true)
	time.Sleep(10 * time.Millisecond)
	f.sensor.SetLevel(false)

	f.waitBlink(t, state.ActiveBlinkIntervalMS, time.Second)

	v, err := f.bus.Intensity.Wait(f.ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-6)

	f.waitBlink(t, state.IdleBlinkIntervalMS, 3*time.Second)

	// the window ends by silencing the buzzer
	assert.Eventually(t, func() bool {
		v, ok := f.bus.Intensity.TryTake()
		return ok && v == 0
	}, time.Second, 5*time.Millisecond)

	samples := f.drain()
	require.NotEmpty(t, samples)
	for i := 1; i < len(samples); i++ {
		assert.GreaterOrEqual(t, samples[i].TimestampMS, samples[i-1].TimestampMS)
	}
	assert.Equal(t, int16(16384), samples[0].Accel.X)
	assert.Equal(t, uint8(gomotion.GyroDeg2000), samples[0].GyroScale)
}

func TestContinuedMotionExtendsWindow(t *testing.T) {
	f := newFixture(t, true)
	f.sensor.SetMotion(true)
	f.run(t)

	start := time.Now()
	f.bus.Read.Signal(true)
	f.waitBlink(t, state.ActiveBlinkIntervalMS, time.Second)

	time.Sleep(1500 * time.Millisecond)
	f.sensor.SetMotion(false)

	f.waitBlink(t, state.IdleBlinkIntervalMS, 3*time.Second)
	assert.GreaterOrEqual(t, time.Since(start), 2400*time.Millisecond)
}

func TestMarkEpochRestartsTimestamps(t *testing.T) {
	f := newFixture(t, true)
	f.bus.MotionReadDuration.Set(2)
	f.run(t)

	f.bus.Read.Signal(true)
	f.waitBlink(t, state.ActiveBlinkIntervalMS, time.Second)

	time.Sleep(300 * time.Millisecond)
	before := f.drain()
	require.NotEmpty(t, before)
	assert.GreaterOrEqual(t, before[len(before)-1].TimestampMS, uint32(250))

	f.bus.MarkEpoch.Signal(struct{}{})
	time.Sleep(50 * time.Millisecond)
	after := f.drain()
	require.NotEmpty(t, after)
	assert.Less(t, after[len(after)-1].TimestampMS, uint32(150))

	_, ended := f.bus.BlinkInterval.TryTake()
	assert.False(t, ended, "mark epoch must not end the window")
}

func TestDisabledDetectionIgnoresInterrupt(t *testing.T) {
	f := newFixture(t, false)
	f.run(t)

	f.sensor.Pulse()
	time.Sleep(100 * time.Millisecond)
	_, started := f.bus.BlinkInterval.TryTake()
	assert.False(t, started)

	f.bus.MotionDetection.Signal(true)
	time.Sleep(50 * time.Millisecond)

	f.sensor.SetLevel(true)
	time.Sleep(10 * time.Millisecond)
	f.sensor.SetLevel(false)
	f.waitBlink(t, state.ActiveBlinkIntervalMS, time.Second)
}

func TestPeriodicSampling(t *testing.T) {
	f := newFixture(t, false)
	f.bus.ContinuousSampleInterval.Set(20)
	f.run(t)

	time.Sleep(150 * time.Millisecond)
	assert.GreaterOrEqual(t, f.queue.Len(), 3)
	_, windowed := f.bus.BlinkInterval.TryTake()
	assert.False(t, windowed, "periodic samples stay in idle")
}

func TestHugeIntervalsDoNotSpin(t *testing.T) {
	f := newFixture(t, false)
	f.bus.ContinuousSampleInterval.Set(math.MaxUint64)
	f.run(t)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.queue.Stats().Pushed, "idle timer must not fire")

	f.bus.MotionSampleInterval.Set(1 << 62)
	f.bus.Read.Signal(true)
	f.waitBlink(t, state.ActiveBlinkIntervalMS, time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, f.queue.Stats().Pushed, uint64(1))
}

func TestMillisSaturates(t *testing.T) {
	assert.Equal(t, 5*time.Millisecond, millis(5))
	assert.Equal(t, time.Duration(maxMillis)*time.Millisecond, millis(math.MaxUint64))
	assert.Positive(t, millis(1<<62))
}

func TestKeepAliveTakesNoSample(t *testing.T) {
	f := newFixture(t, false)
	f.det.KeepAlive = 10 * time.Millisecond
	f.run(t)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.queue.Len())
}

func TestFalseReadKeepsWaiting(t *testing.T) {
	f := newFixture(t, false)
	f.run(t)

	f.bus.Read.Signal(false)
	time.Sleep(50 * time.Millisecond)
	_, started := f.bus.BlinkInterval.TryTake()
	assert.False(t, started)
}

func TestSensorErrorsSkipSamples(t *testing.T) {
	f := newFixture(t, true)
	boom := errors.New("i2c timeout")
	f.sensor.SetReadError(boom)
	f.sensor.SetCheckError(boom)
	f.run(t)

	f.bus.Read.Signal(true)
	f.waitBlink(t, state.ActiveBlinkIntervalMS, time.Second)
	f.waitBlink(t, state.IdleBlinkIntervalMS, 3*time.Second)
	assert.Zero(t, f.queue.Len())
}

func TestRefreshAppliesPendingIntents(t *testing.T) {
	bus := state.NewBus()
	sensor := mock.New(nil)
	cfg := SensorConfig{MotionDetection: true}

	bus.AccelScale.Signal(uint8(gomotion.AccelG8))
	bus.GyroScale.Signal(42)
	bus.BuzzMode.Signal(uint8(GyroMagnitude))
	bus.MotionDetection.Signal(false)

	cfg.Refresh(sensor, bus, logrus.StandardLogger())

	assert.Equal(t, gomotion.AccelG8, cfg.AccelScale)
	assert.Equal(t, gomotion.GyroDeg2000, cfg.GyroScale, "out of range falls back to the default")
	assert.Equal(t, GyroMagnitude, cfg.BuzzMode)
	assert.False(t, cfg.MotionDetection)
	assert.Equal(t, gomotion.Filter(0), cfg.Filter, "nothing pending leaves the field alone")

	a, g, _ := sensor.Settings()
	assert.Equal(t, gomotion.AccelG8, a)
	assert.Equal(t, gomotion.GyroDeg2000, g)
}

func TestNewSensorConfigWaitsForScales(t *testing.T) {
	bus := state.NewBus()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		bus.AccelScale.Signal(uint8(gomotion.AccelG4))
		bus.GyroScale.Signal(uint8(gomotion.GyroDeg500))
	}()

	cfg, err := NewSensorConfig(ctx, bus)
	require.NoError(t, err)
	assert.Equal(t, gomotion.AccelG4, cfg.AccelScale)
	assert.Equal(t, gomotion.GyroDeg500, cfg.GyroScale)
	assert.True(t, cfg.MotionDetection)
}
