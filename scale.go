package gomotion

import "fmt"

// AccelFullScale selects the accelerometer range.
type AccelFullScale uint8

const (
	AccelG2 AccelFullScale = iota
	AccelG4
	AccelG8
	AccelG16
)

// GyroFullScale selects the gyroscope range.
type GyroFullScale uint8

const (
	GyroDeg250 GyroFullScale = iota
	GyroDeg500
	GyroDeg1000
	GyroDeg2000
)

// Filter is the digital low pass filter setting, 0 through 6.
type Filter uint8

const (
	DefaultAccelScale = AccelG2
	DefaultGyroScale  = GyroDeg2000
	DefaultFilter     = Filter(1)

	maxFilter = Filter(6)
)

// ParseAccelFullScale decodes a wire byte. Out of range values fall back to
// DefaultAccelScale and ok is false.
func ParseAccelFullScale(v uint8) (scale AccelFullScale, ok bool) {
	if v > uint8(AccelG16) {
		return DefaultAccelScale, false
	}
	return AccelFullScale(v), true
}

// ParseGyroFullScale decodes a wire byte. Out of range values fall back to
// DefaultGyroScale and ok is false.
func ParseGyroFullScale(v uint8) (scale GyroFullScale, ok bool) {
	if v > uint8(GyroDeg2000) {
		return DefaultGyroScale, false
	}
	return GyroFullScale(v), true
}

// ParseFilter decodes a wire byte. Out of range values fall back to
// DefaultFilter and ok is false.
func ParseFilter(v uint8) (filter Filter, ok bool) {
	if Filter(v) > maxFilter {
		return DefaultFilter, false
	}
	return Filter(v), true
}

// LSBPerG is the raw count for 1 g at this range.
func (s AccelFullScale) LSBPerG() float64 {
	if s > AccelG16 {
		s = DefaultAccelScale
	}
	return float64(int(16384) >> s)
}

// G converts a raw axis value to g.
func (s AccelFullScale) G(raw int16) float64 {
	return float64(raw) / s.LSBPerG()
}

func (s AccelFullScale) String() string {
	if s > AccelG16 {
		return fmt.Sprintf("AccelFullScale(%d)", uint8(s))
	}
	return fmt.Sprintf("±%dg", 2<<s)
}

var gyroSensitivity = [...]float64{131, 65.5, 32.8, 16.4}

// LSBPerDPS is the raw count for 1 °/s at this range.
func (s GyroFullScale) LSBPerDPS() float64 {
	if s > GyroDeg2000 {
		return gyroSensitivity[DefaultGyroScale]
	}
	return gyroSensitivity[s]
}

// DPS converts a raw axis value to degrees per second.
func (s GyroFullScale) DPS(raw int16) float64 {
	return float64(raw) / s.LSBPerDPS()
}

func (s GyroFullScale) String() string {
	if s > GyroDeg2000 {
		return fmt.Sprintf("GyroFullScale(%d)", uint8(s))
	}
	return fmt.Sprintf("±%d°/s", 250<<s)
}
