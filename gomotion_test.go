package gomotion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"
)

type nopSensor struct{}

func (nopSensor) ReadMotion() (Vector3, Vector3, error)     { return Vector3{}, Vector3{}, nil }
func (nopSensor) CheckMotion() (bool, error)                { return false, nil }
func (nopSensor) Calibrate() error                          { return nil }
func (nopSensor) SetAccelScale(AccelFullScale) error        { return nil }
func (nopSensor) SetGyroScale(GyroFullScale) error          { return nil }
func (nopSensor) SetFilter(Filter) error                    { return nil }
func (nopSensor) ConfigureMotionInterrupt(_, _ uint8) error { return nil }

func TestRegistryMatchesPrefix(t *testing.T) {
	Register("test-imu", func(bus drivers.I2C) (Sensor, error) {
		return nopSensor{}, nil
	})

	s, err := NewSensor("test-imu-0x69", nil)
	require.NoError(t, err)
	assert.IsType(t, nopSensor{}, s)
	assert.Contains(t, Drivers(), "test-imu")

	_, err = NewSensor("unknown", nil)
	assert.True(t, errors.Is(err, ErrNoDriver))
}

func TestParseFullScaleFallback(t *testing.T) {
	a, ok := ParseAccelFullScale(2)
	assert.True(t, ok)
	assert.Equal(t, AccelG8, a)

	a, ok = ParseAccelFullScale(9)
	assert.False(t, ok)
	assert.Equal(t, AccelG2, a)

	g, ok := ParseGyroFullScale(1)
	assert.True(t, ok)
	assert.Equal(t, GyroDeg500, g)

	g, ok = ParseGyroFullScale(200)
	assert.False(t, ok)
	assert.Equal(t, GyroDeg2000, g)

	f, ok := ParseFilter(6)
	assert.True(t, ok)
	assert.Equal(t, Filter(6), f)

	f, ok = ParseFilter(7)
	assert.False(t, ok)
	assert.Equal(t, DefaultFilter, f)
}

func TestPhysicalUnits(t *testing.T) {
	for scale, lsb := range []float64{16384, 8192, 4096, 2048} {
		assert.Equal(t, lsb, AccelFullScale(scale).LSBPerG())
	}
	assert.Equal(t, float64(16384), AccelFullScale(9).LSBPerG(), "out of range uses the default")
	assert.InDelta(t, 1.0, AccelG2.G(16384), 1e-9)
	assert.InDelta(t, 1.0, AccelG16.G(2048), 1e-9)
	assert.InDelta(t, 1.0, GyroDeg250.DPS(131), 1e-9)
	assert.InDelta(t, 2.0, GyroDeg2000.DPS(33), 0.02)
	assert.Equal(t, "±4g", AccelG4.String())
	assert.Equal(t, "±1000°/s", GyroDeg1000.String())
}

func TestFirstMatch(t *testing.T) {
	stream := func(ids ...string) <-chan FoundDevice {
		ch := make(chan FoundDevice, len(ids))
		for _, id := range ids {
			ch <- FoundDevice{Name: DefaultNamePrefix, ID: id}
		}
		close(ch)
		return ch
	}

	dev, err := firstMatch(stream("AA:01", "AA:02"), "")
	require.NoError(t, err)
	assert.Equal(t, "AA:01", dev.ID)

	dev, err = firstMatch(stream("AA:01", "AA:02"), "aa:02")
	require.NoError(t, err)
	assert.Equal(t, "AA:02", dev.ID)

	_, err = firstMatch(stream(), "")
	assert.ErrorContains(t, err, "no motion reporter found")
	_, err = firstMatch(stream("AA:01"), "BB:01")
	assert.ErrorContains(t, err, "BB:01 not found")
}
