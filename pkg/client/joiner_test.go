package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
)

func samples(from, to uint32) []gomotion.SensorSample {
	var out []gomotion.SensorSample
	for ts := from; ts <= to; ts++ {
		out = append(out, gomotion.SensorSample{
			AccelScale:  1,
			Accel:       gomotion.Vector3{X: int16(ts), Y: -int16(ts), Z: 100},
			GyroScale:   2,
			Gyro:        gomotion.Vector3{Z: int16(ts)},
			TimestampMS: ts,
		})
	}
	return out
}

func TestJoinerPairsBatches(t *testing.T) {
	j := NewJoiner(0)
	want := samples(1, 10)
	accel, gyro := comms.PackBatch(want)

	got, err := j.PushAccel(accel)
	require.NoError(t, err)
	assert.Empty(t, got, "waits for the gyro half")

	got, err = j.PushGyro(gyro)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Zero(t, j.Dropped())
}

func TestJoinerEitherOrder(t *testing.T) {
	j := NewJoiner(0)
	want := samples(5, 7)
	accel, gyro := comms.PackBatch(want)

	got, err := j.PushGyro(gyro)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = j.PushAccel(accel)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJoinerSkipsOrphans(t *testing.T) {
	j := NewJoiner(0)
	lostGyro, _ := comms.PackBatch(samples(1, 10))
	accel, gyro := comms.PackBatch(samples(11, 20))

	_, err := j.PushAccel(lostGyro)
	require.NoError(t, err)
	_, err = j.PushAccel(accel)
	require.NoError(t, err)
	got, err := j.PushGyro(gyro)
	require.NoError(t, err)
	assert.Equal(t, samples(11, 20), got)
	assert.Equal(t, uint64(10), j.Dropped())

	_, lostAccel := comms.PackBatch(samples(21, 30))
	accel, gyro = comms.PackBatch(samples(31, 35))
	_, err = j.PushGyro(lostAccel)
	require.NoError(t, err)
	got, err = j.PushAccel(accel)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = j.PushGyro(gyro)
	require.NoError(t, err)
	assert.Equal(t, samples(31, 35), got)
	assert.Equal(t, uint64(20), j.Dropped())
}

func TestJoinerBoundsMemory(t *testing.T) {
	j := NewJoiner(comms.BatchSize)
	for i := uint32(0); i < 5; i++ {
		accel, _ := comms.PackBatch(samples(i*10+1, i*10+10))
		_, err := j.PushAccel(accel)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, j.accel.Length(), comms.BatchSize*comms.EntrySize)

	_, gyro := comms.PackBatch(samples(41, 50))
	got, err := j.PushGyro(gyro)
	require.NoError(t, err)
	assert.Equal(t, samples(41, 50), got)
}

func TestJoinerRejectsPartialEntries(t *testing.T) {
	j := NewJoiner(0)
	_, err := j.PushAccel(make([]byte, comms.EntrySize+1))
	assert.ErrorIs(t, err, comms.ErrInvalidLength)

	accel, gyro := comms.PackBatch(samples(1, 2))
	_, err = j.PushAccel(accel)
	require.NoError(t, err)
	j.Reset()
	got, err := j.PushGyro(gyro)
	require.NoError(t, err)
	assert.Empty(t, got)
}
