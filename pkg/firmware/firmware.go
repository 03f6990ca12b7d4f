// Package firmware boots the motion reporter and runs its tasks. It is shared
// by the board build and the host simulator, which differ only in the Board
// they pass in.
package firmware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/feedback"
	"github.com/mlsorensen/gomotion/pkg/gatt"
	"github.com/mlsorensen/gomotion/pkg/motion"
	"github.com/mlsorensen/gomotion/pkg/pipeline"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// Board is the set of peripherals the firmware drives.
type Board struct {
	Sensor    gomotion.Sensor
	Pin       gomotion.MotionPin
	LED       gomotion.Output
	Tone      gomotion.Tone
	Transport gatt.Transport
}

// Boot calibrates and configures the sensor, publishes the initial settings
// and returns the detector's first config snapshot. The blink interval on
// the bus tracks progress: boot, then idle, or fail on error.
func Boot(ctx context.Context, board Board, bus *state.Bus, log logrus.FieldLogger) (motion.SensorConfig, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	bus.BlinkInterval.Signal(state.BootBlinkIntervalMS)

	cfg, err := boot(ctx, board.Sensor, bus, log)
	if err != nil {
		bus.BlinkInterval.Signal(state.FailBlinkIntervalMS)
		return motion.SensorConfig{}, err
	}

	bus.MinBuzz.Signal(state.DefaultMinBuzz)
	bus.MaxBuzz.Signal(state.DefaultMaxBuzz)
	bus.PlaySound.Signal(false)
	bus.BlinkInterval.Signal(state.IdleBlinkIntervalMS)
	log.Info("boot complete")
	return cfg, nil
}

func boot(ctx context.Context, sensor gomotion.Sensor, bus *state.Bus, log logrus.FieldLogger) (motion.SensorConfig, error) {
	log.Info("calibrating sensor")
	if err := sensor.Calibrate(); err != nil {
		return motion.SensorConfig{}, fmt.Errorf("calibrate: %w", err)
	}
	if err := sensor.ConfigureMotionInterrupt(motion.MotionThreshold, motion.MotionDuration); err != nil {
		return motion.SensorConfig{}, fmt.Errorf("configure motion interrupt: %w", err)
	}
	if err := sensor.SetAccelScale(gomotion.DefaultAccelScale); err != nil {
		return motion.SensorConfig{}, fmt.Errorf("set accel scale: %w", err)
	}
	if err := sensor.SetGyroScale(gomotion.DefaultGyroScale); err != nil {
		return motion.SensorConfig{}, fmt.Errorf("set gyro scale: %w", err)
	}
	if err := sensor.SetFilter(gomotion.DefaultFilter); err != nil {
		return motion.SensorConfig{}, fmt.Errorf("set filter: %w", err)
	}

	bus.AccelScale.Signal(uint8(gomotion.DefaultAccelScale))
	bus.GyroScale.Signal(uint8(gomotion.DefaultGyroScale))
	return motion.NewSensorConfig(ctx, bus)
}

// Run starts the blinker, boots, then runs the buzzer, the detector and the
// attribute server until one of them fails or ctx ends. If boot fails the
// blinker keeps signalling the failure until ctx ends and the boot error is
// returned.
func Run(ctx context.Context, board Board, bus *state.Bus, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	start("blink", feedback.NewBlinker(board.LED, bus.BlinkInterval, log).Run)

	cfg, err := Boot(ctx, board, bus, log)
	if err != nil {
		log.WithError(err).Error("boot failed")
		<-ctx.Done()
		wg.Wait()
		return fmt.Errorf("boot: %w", err)
	}

	queue := pipeline.New(pipeline.DefaultCapacity)
	start("buzzer", feedback.NewBuzzer(board.Tone, bus, log).Run)
	start("motion", motion.NewDetector(board.Sensor, board.Pin, bus, queue, cfg, log).Run)
	start("gatt", gatt.NewServer(board.Transport, bus, queue, log).Run)

	select {
	case err = <-errs:
		log.WithError(err).Error("task failed")
	case <-ctx.Done():
		err = ctx.Err()
	}
	cancel()
	wg.Wait()
	return err
}
