package comms

import (
	"encoding/binary"
	"fmt"

	"github.com/mlsorensen/gomotion"
)

const (
	// SampleSize is the width of an encoded SensorSample: accel scale, three
	// accel axes, gyro scale, three gyro axes, then the timestamp.
	SampleSize = 18

	// EntrySize is the width of one batch entry: timestamp, scale, three axes.
	EntrySize = 11

	// BatchSize is the most samples sent in one pair of notifications.
	BatchSize = 10
)

// EncodeSample writes s in its little-endian wire layout.
func EncodeSample(s gomotion.SensorSample) []byte {
	buf := make([]byte, 0, SampleSize)
	buf = appendAxes(append(buf, s.AccelScale), s.Accel)
	buf = appendAxes(append(buf, s.GyroScale), s.Gyro)
	return binary.LittleEndian.AppendUint32(buf, s.TimestampMS)
}

// DecodeSample is the inverse of EncodeSample.
func DecodeSample(data []byte) (gomotion.SensorSample, error) {
	if err := checkLen(data, SampleSize); err != nil {
		return gomotion.SensorSample{}, err
	}
	return gomotion.SensorSample{
		AccelScale:  data[0],
		Accel:       readAxes(data[1:7]),
		GyroScale:   data[7],
		Gyro:        readAxes(data[8:14]),
		TimestampMS: binary.LittleEndian.Uint32(data[14:18]),
	}, nil
}

func appendAxes(buf []byte, v gomotion.Vector3) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(v.X))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(v.Y))
	return binary.LittleEndian.AppendUint16(buf, uint16(v.Z))
}

func readAxes(b []byte) gomotion.Vector3 {
	return gomotion.Vector3{
		X: int16(binary.LittleEndian.Uint16(b[0:2])),
		Y: int16(binary.LittleEndian.Uint16(b[2:4])),
		Z: int16(binary.LittleEndian.Uint16(b[4:6])),
	}
}

// Entry is one sensor's half of a sample as carried in a batch.
type Entry struct {
	TimestampMS uint32
	Scale       uint8
	Axes        gomotion.Vector3
}

// PackBatch splits samples into the accel and gyro notification payloads.
// Each entry is the timestamp followed by the scale and axes.
func PackBatch(samples []gomotion.SensorSample) (accel, gyro []byte) {
	return AppendBatch(nil, nil, samples)
}

// AppendBatch is PackBatch appending into caller owned buffers.
func AppendBatch(accel, gyro []byte, samples []gomotion.SensorSample) ([]byte, []byte) {
	for _, s := range samples {
		accel = AppendEntry(accel, Entry{s.TimestampMS, s.AccelScale, s.Accel})
		gyro = AppendEntry(gyro, Entry{s.TimestampMS, s.GyroScale, s.Gyro})
	}
	return accel, gyro
}

func AppendEntry(buf []byte, e Entry) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, e.TimestampMS)
	return appendAxes(append(buf, e.Scale), e.Axes)
}

// DecodeEntry decodes exactly one batch entry.
func DecodeEntry(data []byte) (Entry, error) {
	if err := checkLen(data, EntrySize); err != nil {
		return Entry{}, err
	}
	return Entry{
		TimestampMS: binary.LittleEndian.Uint32(data[0:4]),
		Scale:       data[4],
		Axes:        readAxes(data[5:11]),
	}, nil
}

// UnpackBatch decodes a notification payload into its entries.
func UnpackBatch(data []byte) ([]Entry, error) {
	if len(data)%EntrySize != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %d byte entries", ErrInvalidLength, len(data), EntrySize)
	}
	entries := make([]Entry, 0, len(data)/EntrySize)
	for off := 0; off < len(data); off += EntrySize {
		e, err := DecodeEntry(data[off : off+EntrySize])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Join combines matching accel and gyro entries into a sample.
func Join(accel, gyro Entry) gomotion.SensorSample {
	return gomotion.SensorSample{
		AccelScale:  accel.Scale,
		Accel:       accel.Axes,
		GyroScale:   gyro.Scale,
		Gyro:        gyro.Axes,
		TimestampMS: accel.TimestampMS,
	}
}
