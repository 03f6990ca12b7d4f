// Package motion runs the motion detection state machine: it waits for a
// motion interrupt, a periodic timeout or a manual read request, then
// samples the sensor into the pipeline for as long as motion continues.
package motion

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/pipeline"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// DefaultKeepAlive bounds the idle wait when periodic sampling is off, so
// settings are re-checked at least this often.
const DefaultKeepAlive = 60 * time.Second

// Motion interrupt settings applied at boot.
const (
	MotionThreshold = 2
	MotionDuration  = 10
)

// trigger is what ended an idle wait.
type trigger int

const (
	triggerTimeout  trigger = iota // periodic timer fired
	triggerMotion                  // interrupt pin went high then low
	triggerSettings                // motion detection setting changed while disabled
	triggerManual                  // read requested over the air
)

func (t trigger) String() string {
	switch t {
	case triggerTimeout:
		return "timeout"
	case triggerMotion:
		return "INT"
	case triggerSettings:
		return "settings"
	case triggerManual:
		return "READ"
	}
	return "unknown"
}

// Detector owns the sensor and its interrupt pin.
type Detector struct {
	sensor gomotion.Sensor
	pin    gomotion.MotionPin
	bus    *state.Bus
	queue  *pipeline.Queue
	cfg    SensorConfig
	log    logrus.FieldLogger

	// KeepAlive replaces the periodic timeout when the continuous sample
	// interval is 0.
	KeepAlive time.Duration
}

// NewDetector builds a detector starting from cfg. A nil logger uses the
// logrus standard logger.
func NewDetector(sensor gomotion.Sensor, pin gomotion.MotionPin, bus *state.Bus, queue *pipeline.Queue, cfg SensorConfig, log logrus.FieldLogger) *Detector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Detector{
		sensor:    sensor,
		pin:       pin,
		bus:       bus,
		queue:     queue,
		cfg:       cfg,
		log:       log.WithField("component", "motion"),
		KeepAlive: DefaultKeepAlive,
	}
}

// Config returns the current settings snapshot. Only safe to call from the
// goroutine running Run, or after it returned.
func (d *Detector) Config() SensorConfig {
	return d.cfg
}

// Run alternates between the idle wait and read windows until ctx ends.
func (d *Detector) Run(ctx context.Context) error {
	d.log.Info("starting motion detection")
	for {
		interval := d.bus.ContinuousSampleInterval.Get()
		d.cfg.Refresh(d.sensor, d.bus, d.log)

		t, err := d.idle(ctx, interval)
		if err != nil {
			return err
		}

		switch t {
		case triggerTimeout:
			if interval != 0 {
				d.report()
			}
		case triggerSettings:
		case triggerMotion:
			if err := d.readWindow(ctx, false); err != nil {
				return err
			}
		case triggerManual:
			err := d.readWindow(ctx, true)
			d.bus.Read.Signal(false)
			if err != nil {
				return err
			}
		}
	}
}

// idle races the periodic timer, the interrupt edge and a manual read
// request. Mark-epoch requests are served without leaving the wait.
func (d *Detector) idle(ctx context.Context, intervalMS uint64) (trigger, error) {
	wait := millis(intervalMS)
	if intervalMS == 0 {
		wait = d.KeepAlive
	}
	d.log.WithFields(logrus.Fields{
		"timeout":          wait,
		"motion_detection": d.cfg.MotionDetection,
	}).Debug("waiting for INT, READ or timeout")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	edgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var edge <-chan error
	var detectionChanged <-chan bool
	if d.cfg.MotionDetection {
		ch := make(chan error, 1)
		go func() { ch <- d.waitEdge(edgeCtx) }()
		edge = ch
	} else {
		detectionChanged = d.bus.MotionDetection.C()
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-timer.C:
			return triggerTimeout, nil
		case err := <-edge:
			if err == nil {
				return triggerMotion, nil
			}
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			d.log.WithError(err).Error("motion pin wait failed")
			edge = nil
		case v := <-detectionChanged:
			// Put it back so the next Refresh applies it.
			d.bus.MotionDetection.Signal(v)
			return triggerSettings, nil
		case read := <-d.bus.Read.C():
			if read {
				return triggerManual, nil
			}
		case <-d.bus.MarkEpoch.C():
			d.log.WithField("epoch", d.bus.ResetEpoch()).Info("epoch marked while idle")
		}
	}
}

// maxMillis is the longest interval a time.Duration can hold.
const maxMillis = math.MaxInt64 / uint64(time.Millisecond)

// millis converts a client written interval, saturating instead of
// overflowing into a negative duration.
func millis(ms uint64) time.Duration {
	if ms > maxMillis {
		ms = maxMillis
	}
	return time.Duration(ms) * time.Millisecond
}

func (d *Detector) waitEdge(ctx context.Context) error {
	if err := d.pin.WaitForHigh(ctx); err != nil {
		return err
	}
	return d.pin.WaitForLow(ctx)
}

// readWindow samples at the motion sample interval until the read duration
// passes with no motion reported by the sensor.
func (d *Detector) readWindow(ctx context.Context, manual bool) error {
	duration := time.Duration(d.bus.MotionReadDuration.Get()) * time.Second
	epoch := d.bus.ResetEpoch()

	d.log.WithFields(logrus.Fields{
		"duration": duration,
		"manual":   manual,
		"epoch":    epoch,
	}).Info("read window started")
	d.bus.BlinkInterval.Signal(state.ActiveBlinkIntervalMS)

	start := time.Now()
	for time.Since(start) < duration {
		if err := ctx.Err(); err != nil {
			return err
		}
		loopStart := time.Now()
		d.cfg.Refresh(d.sensor, d.bus, d.log)

		d.report()
		interval := millis(d.bus.MotionSampleInterval.Get())

		if active, err := d.sensor.CheckMotion(); err != nil {
			d.log.WithError(err).Error("motion check failed")
		} else if active {
			start = time.Now()
			d.log.Debug("motion detected, extending read window")
		}

		elapsed := time.Since(loopStart)
		if elapsed >= interval {
			if interval > 0 {
				d.log.WithField("elapsed", elapsed).Warn("sample loop exceeded the motion sample interval")
			}
			continue
		}

		timer := time.NewTimer(interval - elapsed)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-d.bus.MarkEpoch.C():
			timer.Stop()
			d.log.WithField("epoch", d.bus.ResetEpoch()).Info("epoch marked")
		}
	}

	d.log.Info("no more motion detected")
	d.bus.BlinkInterval.Signal(state.IdleBlinkIntervalMS)
	d.bus.Intensity.Signal(0)
	return nil
}

// report takes one sample, publishes its intensity and queues it.
func (d *Detector) report() {
	accel, gyro, err := d.sensor.ReadMotion()
	if err != nil {
		d.log.WithError(err).Error("sensor read failed")
		return
	}

	d.bus.Intensity.Signal(Intensity(d.cfg.BuzzMode, accel, gyro, d.cfg.AccelScale, d.cfg.GyroScale))

	sample := gomotion.SensorSample{
		AccelScale:  uint8(d.cfg.AccelScale),
		Accel:       accel,
		GyroScale:   uint8(d.cfg.GyroScale),
		Gyro:        gyro,
		TimestampMS: d.bus.Timestamp(),
	}
	d.log.WithField("sample", sample).Trace("reporting motion")

	if d.queue.Push(sample) {
		d.log.WithField("dropped", d.queue.Stats().Dropped).Warn("pipeline full, dropped oldest sample")
	}
}
