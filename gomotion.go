// Package gomotion holds the collaborator contracts shared by the motion
// reporter firmware and its host tools: the inertial sensor, the motion
// interrupt pin, the LED and tone outputs, and the sample record that flows
// from the sensor to a connected client.
package gomotion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tinygo.org/x/drivers"
)

// ErrNoDriver is returned by NewSensor when no registered driver matches.
var ErrNoDriver = errors.New("no sensor driver registered")

// Vector3 is a raw, unscaled three-axis sensor reading.
type Vector3 struct {
	X, Y, Z int16
}

// SensorSample is one timestamped accelerometer and gyroscope reading.
// TimestampMS is relative to the current epoch and wraps after ~49 days.
type SensorSample struct {
	AccelScale  uint8
	Accel       Vector3
	GyroScale   uint8
	Gyro        Vector3
	TimestampMS uint32
}

// Sensor is the inertial sensor. Implementations are owned by a single
// goroutine and are not safe for concurrent use.
type Sensor interface {
	// ReadMotion returns the raw accelerometer and gyroscope axes.
	ReadMotion() (accel Vector3, gyro Vector3, err error)

	// CheckMotion reports whether the sensor's own motion detector is
	// currently active.
	CheckMotion() (bool, error)

	Calibrate() error
	SetAccelScale(AccelFullScale) error
	SetGyroScale(GyroFullScale) error
	SetFilter(Filter) error

	// ConfigureMotionInterrupt sets the motion threshold and duration and
	// enables the motion interrupt output.
	ConfigureMotionInterrupt(threshold, duration uint8) error
}

// MotionPin is the sensor's interrupt line.
type MotionPin interface {
	WaitForHigh(ctx context.Context) error
	WaitForLow(ctx context.Context) error
}

// Output is a digital output such as the status LED. machine.Pin satisfies it.
type Output interface {
	High()
	Low()
}

// Tone drives the buzzer. A frequency of 0 silences it.
type Tone interface {
	Play(frequencyHz uint32) error
}

// --- Driver Registry ---

// Factory creates a Sensor on the given bus. Drivers that do not talk to
// real hardware may ignore the bus.
type Factory func(bus drivers.I2C) (Sensor, error)

var (
	registry = make(map[string]Factory)
	regLock  = sync.RWMutex{}
)

// Register makes a sensor driver available by name prefix.
// This function should be called from the init() function of the driver's package.
func Register(namePrefix string, factory Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	if _, found := registry[namePrefix]; found {
		fmt.Printf("warning: sensor driver for prefix '%s' is being overwritten\n", namePrefix)
	}
	registry[namePrefix] = factory
}

// NewSensor finds a registered driver whose prefix matches name and creates
// a Sensor with it. A name of "mpu6050-0x69" matches a driver registered as "mpu6050".
func NewSensor(name string, bus drivers.I2C) (Sensor, error) {
	regLock.RLock()
	defer regLock.RUnlock()

	for prefix, factory := range registry {
		if strings.HasPrefix(name, prefix) {
			return factory(bus)
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNoDriver, name)
}

// Drivers lists the registered driver prefixes in sorted order.
func Drivers() []string {
	regLock.RLock()
	defer regLock.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
