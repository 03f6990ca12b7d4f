package motion

import (
	"fmt"
	"math"

	"github.com/mlsorensen/gomotion"
)

// BuzzFrequencyMode selects which axis, or which magnitude, drives the tone.
type BuzzFrequencyMode uint8

const (
	AccelX BuzzFrequencyMode = iota
	AccelY
	AccelZ
	GyroX
	GyroY
	GyroZ
	AccelMagnitude
	GyroMagnitude
)

var modeNames = [...]string{
	"accel-x", "accel-y", "accel-z",
	"gyro-x", "gyro-y", "gyro-z",
	"accel-magnitude", "gyro-magnitude",
}

// ParseBuzzFrequencyMode decodes a wire byte, falling back to AccelX when
// the value is out of range.
func ParseBuzzFrequencyMode(v uint8) (mode BuzzFrequencyMode, ok bool) {
	if int(v) >= len(modeNames) {
		return AccelX, false
	}
	return BuzzFrequencyMode(v), true
}

// ModeByName is the inverse of String.
func ModeByName(name string) (BuzzFrequencyMode, error) {
	for i, n := range modeNames {
		if n == name {
			return BuzzFrequencyMode(i), nil
		}
	}
	return AccelX, fmt.Errorf("unknown buzz frequency mode %q", name)
}

func (m BuzzFrequencyMode) String() string {
	if int(m) >= len(modeNames) {
		return fmt.Sprintf("BuzzFrequencyMode(%d)", uint8(m))
	}
	return modeNames[m]
}

// Intensity reduces a reading to the scalar that drives the tone, in g for
// accelerometer modes and °/s for gyroscope modes. Single axis modes return
// the absolute value; magnitude modes return the Euclidean norm.
func Intensity(mode BuzzFrequencyMode, accel, gyro gomotion.Vector3, as gomotion.AccelFullScale, gs gomotion.GyroFullScale) float32 {
	switch mode {
	case AccelX:
		return float32(math.Abs(as.G(accel.X)))
	case AccelY:
		return float32(math.Abs(as.G(accel.Y)))
	case AccelZ:
		return float32(math.Abs(as.G(accel.Z)))
	case GyroX:
		return float32(math.Abs(gs.DPS(gyro.X)))
	case GyroY:
		return float32(math.Abs(gs.DPS(gyro.Y)))
	case GyroZ:
		return float32(math.Abs(gs.DPS(gyro.Z)))
	case AccelMagnitude:
		return float32(math.Sqrt(square(as.G(accel.X)) + square(as.G(accel.Y)) + square(as.G(accel.Z))))
	case GyroMagnitude:
		return float32(math.Sqrt(square(gs.DPS(gyro.X)) + square(gs.DPS(gyro.Y)) + square(gs.DPS(gyro.Z))))
	default:
		return Intensity(AccelX, accel, gyro, as, gs)
	}
}

func square(v float64) float64 { return v * v }
