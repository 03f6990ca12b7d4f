package firmware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
	gattmock "github.com/mlsorensen/gomotion/pkg/gatt/mock"
	"github.com/mlsorensen/gomotion/pkg/motion"
	"github.com/mlsorensen/gomotion/pkg/sensors/mock"
	"github.com/mlsorensen/gomotion/pkg/state"
)

type led struct {
	mu  sync.Mutex
	n   int
	lit bool
}

func (l *led) High() { l.set(true) }
func (l *led) Low()  { l.set(false) }

func (l *led) set(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.n++
	l.lit = v
}

func (l *led) toggles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

type tone struct {
	mu    sync.Mutex
	freqs []uint32
}

func (t *tone) Play(f uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.freqs = append(t.freqs, f)
	return nil
}

func (t *tone) played() []uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uint32(nil), t.freqs...)
}

type brokenSensor struct {
	*mock.Sensor
}

func (brokenSensor) Calibrate() error { return errors.New("i2c nack") }

func newBoard(sensor gomotion.Sensor, pin gomotion.MotionPin) (Board, *gattmock.Transport) {
	tr := gattmock.NewTransport()
	return Board{
		Sensor:    sensor,
		Pin:       pin,
		LED:       &led{},
		Tone:      &tone{},
		Transport: tr,
	}, tr
}

func TestBoot(t *testing.T) {
	sensor := mock.New(nil)
	require.NoError(t, sensor.SetAccelScale(gomotion.AccelG16))
	board, _ := newBoard(sensor, sensor)
	bus := state.NewBus()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cfg, err := Boot(ctx, board, bus, nil)
	require.NoError(t, err)

	calibrated, interrupts := sensor.Calibrated()
	assert.True(t, calibrated)
	assert.True(t, interrupts)
	a, g, f := sensor.Settings()
	assert.Equal(t, gomotion.DefaultAccelScale, a)
	assert.Equal(t, gomotion.DefaultGyroScale, g)
	assert.Equal(t, gomotion.DefaultFilter, f)

	assert.Equal(t, motion.SensorConfig{
		AccelScale:      gomotion.DefaultAccelScale,
		GyroScale:       gomotion.DefaultGyroScale,
		BuzzMode:        motion.AccelX,
		Filter:          gomotion.DefaultFilter,
		MotionDetection: true,
	}, cfg)

	_, ok := bus.AccelScale.TryTake()
	assert.False(t, ok, "consumed by the first config snapshot")
	blink, ok := bus.BlinkInterval.TryTake()
	require.True(t, ok)
	assert.Equal(t, state.IdleBlinkIntervalMS, blink)
	lo, _ := bus.MinBuzz.TryTake()
	hi, _ := bus.MaxBuzz.TryTake()
	assert.Equal(t, state.DefaultMinBuzz, lo)
	assert.Equal(t, state.DefaultMaxBuzz, hi)
}

func TestBootFailureBlinksFast(t *testing.T) {
	logrus.SetLevel(logrus.PanicLevel)
	defer logrus.SetLevel(logrus.InfoLevel)

	sensor := mock.New(nil)
	board, _ := newBoard(brokenSensor{sensor}, sensor)
	bus := state.NewBus()

	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()
	err := Run(ctx, board, bus, nil)
	require.ErrorContains(t, err, "i2c nack")

	// 100 ms halves for most of 350 ms.
	assert.GreaterOrEqual(t, board.LED.(*led).toggles(), 3)
	assert.Empty(t, board.Tone.(*tone).played(), "no tasks besides the blinker")
}

func TestRunStreamsManualRead(t *testing.T) {
	logrus.SetLevel(logrus.WarnLevel)
	defer logrus.SetLevel(logrus.InfoLevel)

	sensor := mock.New(nil)
	board, tr := newBoard(sensor, sensor)
	bus := state.NewBus()
	bus.MotionReadDuration.Set(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Run(ctx, board, bus, nil) }()

	client, err := tr.Connect(ctx, "client")
	require.NoError(t, err)

	version, err := client.Read(ctx, comms.AttrFirmwareVersion)
	require.NoError(t, err)
	assert.Equal(t, comms.FirmwareVersion, string(version))

	require.NoError(t, client.Write(ctx, comms.AttrPlaySound, comms.EncodeBool(true)))
	require.NoError(t, client.Write(ctx, comms.AttrMotionSampleInterval, comms.EncodeU64(10)))
	require.NoError(t, client.Write(ctx, comms.AttrManualRead, comms.EncodeBool(true)))

	var accel []comms.Entry
	for len(accel) < 20 {
		select {
		case n := <-client.Notifications():
			if n.Attribute != comms.AttrAccel {
				continue
			}
			entries, err := comms.UnpackBatch(n.Data)
			require.NoError(t, err)
			accel = append(accel, entries...)
		case <-ctx.Done():
			require.FailNow(t, "no samples streamed")
		}
	}
	for i := 1; i < len(accel); i++ {
		assert.GreaterOrEqual(t, accel[i].TimestampMS, accel[i-1].TimestampMS)
	}
	assert.Less(t, accel[0].TimestampMS, uint32(500), "timestamps start at the window epoch")

	assert.Eventually(t, func() bool { return len(board.Tone.(*tone).played()) > 2 },
		2*time.Second, 10*time.Millisecond, "buzzer follows intensity")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
