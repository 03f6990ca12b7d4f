// Package mock provides a simulated inertial sensor and motion interrupt pin.
// It is intended for development and testing when no board is attached.
package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"

	"github.com/mlsorensen/gomotion"
)

// This init function registers the simulated sensor with the driver registry.
// To use it, you must explicitly import this package.
func init() {
	gomotion.Register("mock", func(bus drivers.I2C) (gomotion.Sensor, error) {
		return New(nil), nil
	})
}

// Compile-time checks.
var (
	_ gomotion.Sensor    = (*Sensor)(nil)
	_ gomotion.MotionPin = (*Sensor)(nil)
)

// Sensor is a simulated IMU whose interrupt line is part of the same value.
// All methods are safe for concurrent use.
type Sensor struct {
	mu  sync.Mutex
	log logrus.FieldLogger
	rnd *rand.Rand

	accelScale gomotion.AccelFullScale
	gyroScale  gomotion.GyroFullScale
	filter     gomotion.Filter
	threshold  uint8
	duration   uint8
	calibrated bool

	fixed        bool
	accel, gyro  gomotion.Vector3
	motionUntil  time.Time
	readErr      error
	checkErr     error
	reads        int
	interruptsOn bool

	level   bool
	rises   uint64
	falls   uint64
	changed chan struct{}
}

// New creates a resting sensor with gravity on the Z axis.
func New(log logrus.FieldLogger) *Sensor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sensor{
		log:        log.WithField("component", "mock-imu"),
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		accelScale: gomotion.DefaultAccelScale,
		gyroScale:  gomotion.DefaultGyroScale,
		filter:     gomotion.DefaultFilter,
		changed:    make(chan struct{}),
	}
}

// ReadMotion returns the fixed reading if one was set, otherwise a noisy
// reading that is larger while the sensor is shaking.
func (s *Sensor) ReadMotion() (gomotion.Vector3, gomotion.Vector3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return gomotion.Vector3{}, gomotion.Vector3{}, s.readErr
	}
	s.reads++
	if s.fixed {
		return s.accel, s.gyro, nil
	}

	amplitude := 40.0
	if time.Now().Before(s.motionUntil) {
		amplitude = 6000
	}
	oneG := int16(s.accelScale.LSBPerG())
	accel := gomotion.Vector3{
		X: s.noise(amplitude),
		Y: s.noise(amplitude),
		Z: clamp16(float64(oneG) + float64(s.noise(amplitude))),
	}
	gyro := gomotion.Vector3{
		X: s.noise(amplitude / 2),
		Y: s.noise(amplitude / 2),
		Z: s.noise(amplitude / 2),
	}
	return accel, gyro, nil
}

func (s *Sensor) noise(amplitude float64) int16 {
	return clamp16((s.rnd.Float64()*2 - 1) * amplitude)
}

func clamp16(v float64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	}
	return int16(v)
}

// CheckMotion reports true while a Shake is in progress or SetMotion(true) is in effect.
func (s *Sensor) CheckMotion() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return time.Now().Before(s.motionUntil), nil
}

func (s *Sensor) Calibrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calibrated = true
	s.log.Debug("calibrated")
	return nil
}

func (s *Sensor) SetAccelScale(scale gomotion.AccelFullScale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accelScale = scale
	return nil
}

func (s *Sensor) SetGyroScale(scale gomotion.GyroFullScale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gyroScale = scale
	return nil
}

func (s *Sensor) SetFilter(filter gomotion.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = filter
	return nil
}

func (s *Sensor) ConfigureMotionInterrupt(threshold, duration uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold, s.duration = threshold, duration
	s.interruptsOn = true
	return nil
}

// --- Simulation controls ---

// SetReading pins ReadMotion to fixed raw values.
func (s *Sensor) SetReading(accel, gyro gomotion.Vector3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixed = true
	s.accel, s.gyro = accel, gyro
}

// SetReadError makes ReadMotion fail with err until cleared with nil.
func (s *Sensor) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// SetCheckError makes CheckMotion fail with err until cleared with nil.
func (s *Sensor) SetCheckError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkErr = err
}

// SetMotion turns the sensor's motion detector on or off indefinitely.
func (s *Sensor) SetMotion(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active {
		s.motionUntil = time.Now().Add(100 * 365 * 24 * time.Hour)
	} else {
		s.motionUntil = time.Time{}
	}
}

// Shake reports motion for d and pulses the interrupt pin.
func (s *Sensor) Shake(d time.Duration) {
	s.mu.Lock()
	s.motionUntil = time.Now().Add(d)
	s.mu.Unlock()
	s.log.WithField("duration", d).Info("shaking")
	s.Pulse()
}

// Pulse drives the interrupt line high then low.
func (s *Sensor) Pulse() {
	s.SetLevel(true)
	s.SetLevel(false)
}

// SetLevel drives the interrupt line.
func (s *Sensor) SetLevel(high bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level == high {
		return
	}
	s.level = high
	if high {
		s.rises++
	} else {
		s.falls++
	}
	close(s.changed)
	s.changed = make(chan struct{})
}

// Reads is the number of successful ReadMotion calls.
func (s *Sensor) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Settings returns what was last applied to the sensor.
func (s *Sensor) Settings() (gomotion.AccelFullScale, gomotion.GyroFullScale, gomotion.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accelScale, s.gyroScale, s.filter
}

// Calibrated reports whether Calibrate was called and whether the motion
// interrupt was configured.
func (s *Sensor) Calibrated() (calibrated, interrupts bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrated, s.interruptsOn
}

// --- MotionPin ---

// WaitForHigh returns once the line is high or has risen since the call.
func (s *Sensor) WaitForHigh(ctx context.Context) error {
	return s.waitFor(ctx, true)
}

// WaitForLow returns once the line is low or has fallen since the call.
func (s *Sensor) WaitForLow(ctx context.Context) error {
	return s.waitFor(ctx, false)
}

func (s *Sensor) waitFor(ctx context.Context, high bool) error {
	s.mu.Lock()
	edges := s.falls
	if high {
		edges = s.rises
	}
	for {
		current := s.falls
		if high {
			current = s.rises
		}
		if s.level == high || current > edges {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
}

// Simulate shakes the sensor for shake every period until ctx ends.
func (s *Sensor) Simulate(ctx context.Context, every, shake time.Duration) {
	defer s.log.Info("simulation stopped")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Shake(shake)
		case <-ctx.Done():
			return
		}
	}
}
