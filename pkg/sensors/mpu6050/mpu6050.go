// Package mpu6050 drives an InvenSense MPU-6050 over I2C: raw accel and gyro
// reads, full-scale and low pass filter selection, software calibration and
// the hardware motion interrupt.
package mpu6050

import (
	"errors"
	"fmt"
	"math"
	"time"

	"tinygo.org/x/drivers"
	imu "tinygo.org/x/drivers/mpu6050"

	"github.com/mlsorensen/gomotion"
)

func init() {
	gomotion.Register("mpu6050", func(bus drivers.I2C) (gomotion.Sensor, error) {
		d := New(bus)
		if err := d.Init(); err != nil {
			return nil, err
		}
		return d, nil
	})
}

var _ gomotion.Sensor = (*Device)(nil)

// Registers and bits not exported by the upstream driver.
const (
	regMotThr = 0x1F
	regMotDur = 0x20

	intMotion = 0x40
	whoAmI    = 0x68
)

// CalibrationSamples is how many readings Calibrate averages.
const CalibrationSamples = 50

var ErrNotFound = errors.New("mpu6050 not found")

// Device is an MPU-6050 on an I2C bus. Readings have the calibration
// offsets removed.
type Device struct {
	imu.Device
	bus drivers.I2C

	accelScale gomotion.AccelFullScale
	gyroScale  gomotion.GyroFullScale

	// Offsets in g and °/s so they survive scale changes.
	accelOffset [3]float64
	gyroOffset  [3]float64

	// CalibrationInterval is the pause between calibration reads.
	CalibrationInterval time.Duration
}

func New(bus drivers.I2C) *Device {
	return &Device{
		Device:              imu.New(bus),
		bus:                 bus,
		accelScale:          gomotion.DefaultAccelScale,
		gyroScale:           gomotion.DefaultGyroScale,
		CalibrationInterval: 2 * time.Millisecond,
	}
}

func (d *Device) write(reg uint8, value uint8) error {
	if err := d.bus.Tx(d.Address, []byte{reg, value}, nil); err != nil {
		return fmt.Errorf("write register 0x%02X: %w", reg, err)
	}
	return nil
}

func (d *Device) read(reg uint8, buf []byte) error {
	if err := d.bus.Tx(d.Address, []byte{reg}, buf); err != nil {
		return fmt.Errorf("read register 0x%02X: %w", reg, err)
	}
	return nil
}

// Init wakes the sensor on the X gyro clock and applies the default ranges,
// filter 1 and sample rate divider 0.
func (d *Device) Init() error {
	id := []byte{0}
	if err := d.read(imu.WHO_AM_I, id); err != nil {
		return err
	}
	if id[0]&0x7E != whoAmI {
		return fmt.Errorf("%w: WHO_AM_I is 0x%02X", ErrNotFound, id[0])
	}
	if err := d.SetClockSource(imu.CLOCK_PLL_XGYRO); err != nil {
		return fmt.Errorf("set clock source: %w", err)
	}
	if err := d.SetAccelScale(gomotion.DefaultAccelScale); err != nil {
		return err
	}
	if err := d.SetGyroScale(gomotion.DefaultGyroScale); err != nil {
		return err
	}
	if err := d.SetFilter(gomotion.DefaultFilter); err != nil {
		return err
	}
	return d.write(imu.SMPLRT_DIV, 0)
}

func (d *Device) ReadMotion() (gomotion.Vector3, gomotion.Vector3, error) {
	var buf [14]byte // accel, temperature, gyro
	if err := d.read(imu.ACCEL_XOUT_H, buf[:]); err != nil {
		return gomotion.Vector3{}, gomotion.Vector3{}, err
	}
	accel := d.correct(buf[0:6], d.accelOffset, d.accelScale.LSBPerG())
	gyro := d.correct(buf[8:14], d.gyroOffset, d.gyroScale.LSBPerDPS())
	return accel, gyro, nil
}

func (d *Device) correct(b []byte, offset [3]float64, lsb float64) gomotion.Vector3 {
	axis := func(i int) int16 {
		raw := float64(int16(uint16(b[2*i])<<8 | uint16(b[2*i+1])))
		return saturate(raw - offset[i]*lsb)
	}
	return gomotion.Vector3{X: axis(0), Y: axis(1), Z: axis(2)}
}

func saturate(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// CheckMotion reads and clears the interrupt status.
func (d *Device) CheckMotion() (bool, error) {
	status := []byte{0}
	if err := d.read(imu.INT_STATUS, status); err != nil {
		return false, err
	}
	return status[0]&intMotion != 0, nil
}

// Calibrate averages CalibrationSamples readings taken at rest, flat with
// Z up, and stores them as offsets.
func (d *Device) Calibrate() error {
	d.accelOffset, d.gyroOffset = [3]float64{}, [3]float64{}

	var accel, gyro [3]float64
	for i := 0; i < CalibrationSamples; i++ {
		a, g, err := d.ReadMotion()
		if err != nil {
			return fmt.Errorf("calibrate: %w", err)
		}
		for j, v := range [3]int16{a.X, a.Y, a.Z} {
			accel[j] += d.accelScale.G(v)
		}
		for j, v := range [3]int16{g.X, g.Y, g.Z} {
			gyro[j] += d.gyroScale.DPS(v)
		}
		if d.CalibrationInterval > 0 {
			time.Sleep(d.CalibrationInterval)
		}
	}
	for j := range accel {
		d.accelOffset[j] = accel[j] / CalibrationSamples
		d.gyroOffset[j] = gyro[j] / CalibrationSamples
	}
	d.accelOffset[2] -= 1 // gravity
	return nil
}

func (d *Device) SetAccelScale(scale gomotion.AccelFullScale) error {
	if err := d.write(imu.ACCEL_CONFIG, uint8(scale)<<3); err != nil {
		return err
	}
	d.accelScale = scale
	return nil
}

func (d *Device) SetGyroScale(scale gomotion.GyroFullScale) error {
	if err := d.write(imu.GYRO_CONFIG, uint8(scale)<<3); err != nil {
		return err
	}
	d.gyroScale = scale
	return nil
}

// SetFilter selects the digital low pass filter (DLPF_CFG).
func (d *Device) SetFilter(filter gomotion.Filter) error {
	return d.write(imu.CONFIG, uint8(filter)&0x07)
}

// ConfigureMotionInterrupt sets the motion threshold (2 mg/LSB) and duration
// (1 ms/LSB) and routes motion detection to the INT pin as a pulse.
func (d *Device) ConfigureMotionInterrupt(threshold, duration uint8) error {
	if err := d.write(regMotThr, threshold); err != nil {
		return err
	}
	if err := d.write(regMotDur, duration); err != nil {
		return err
	}
	if err := d.write(imu.INT_PIN_CFG, 0); err != nil {
		return err
	}
	return d.write(imu.INT_ENABLE, intMotion)
}
