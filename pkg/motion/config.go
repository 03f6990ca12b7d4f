package motion

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// SensorConfig is the detector's view of the live sensor settings. Only the
// detector mutates it, and only the detector applies it to the sensor.
type SensorConfig struct {
	AccelScale      gomotion.AccelFullScale
	GyroScale       gomotion.GyroFullScale
	BuzzMode        BuzzFrequencyMode
	Filter          gomotion.Filter
	MotionDetection bool
}

// NewSensorConfig blocks until the boot sequence has published the initial
// accelerometer and gyroscope scales.
func NewSensorConfig(ctx context.Context, bus *state.Bus) (SensorConfig, error) {
	a, err := bus.AccelScale.Wait(ctx)
	if err != nil {
		return SensorConfig{}, fmt.Errorf("waiting for accel scale: %w", err)
	}
	g, err := bus.GyroScale.Wait(ctx)
	if err != nil {
		return SensorConfig{}, fmt.Errorf("waiting for gyro scale: %w", err)
	}
	accel, _ := gomotion.ParseAccelFullScale(a)
	gyro, _ := gomotion.ParseGyroFullScale(g)
	return SensorConfig{
		AccelScale:      accel,
		GyroScale:       gyro,
		BuzzMode:        AccelX,
		Filter:          gomotion.DefaultFilter,
		MotionDetection: true,
	}, nil
}

// Refresh drains pending intents from the bus and applies them. Entries with
// nothing pending are left unchanged. Out of range scale, filter and mode
// values are replaced by their defaults.
func (c *SensorConfig) Refresh(sensor gomotion.Sensor, bus *state.Bus, log logrus.FieldLogger) {
	if v, ok := bus.BuzzMode.TryTake(); ok {
		mode, valid := ParseBuzzFrequencyMode(v)
		if !valid {
			log.WithField("value", v).Warn("buzz frequency mode out of range, using default")
		}
		c.BuzzMode = mode
		log.WithField("mode", mode).Info("buzz frequency mode updated")
	}

	if v, ok := bus.AccelScale.TryTake(); ok {
		scale, valid := gomotion.ParseAccelFullScale(v)
		if !valid {
			log.WithField("value", v).Warn("accel scale out of range, using default")
		}
		if err := sensor.SetAccelScale(scale); err != nil {
			log.WithError(err).Error("failed to set accel scale")
		} else {
			c.AccelScale = scale
			log.WithField("scale", scale).Info("accel scale updated")
		}
	}

	if v, ok := bus.GyroScale.TryTake(); ok {
		scale, valid := gomotion.ParseGyroFullScale(v)
		if !valid {
			log.WithField("value", v).Warn("gyro scale out of range, using default")
		}
		if err := sensor.SetGyroScale(scale); err != nil {
			log.WithError(err).Error("failed to set gyro scale")
		} else {
			c.GyroScale = scale
			log.WithField("scale", scale).Info("gyro scale updated")
		}
	}

	if v, ok := bus.Filter.TryTake(); ok {
		filter, valid := gomotion.ParseFilter(v)
		if !valid {
			log.WithField("value", v).Warn("filter out of range, using default")
		}
		if err := sensor.SetFilter(filter); err != nil {
			log.WithError(err).Error("failed to set low pass filter")
		} else {
			c.Filter = filter
			log.WithField("filter", filter).Info("low pass filter updated")
		}
	}

	if v, ok := bus.MotionDetection.TryTake(); ok {
		c.MotionDetection = v
		log.WithField("enabled", v).Info("motion detection updated")
	}
}
