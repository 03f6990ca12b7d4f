// Package feedback drives the status LED and the buzzer from the state bus.
package feedback

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// Blinker toggles an output at the most recently published interval. A new
// interval restarts the on/off cycle from "on", whichever half it arrives in.
type Blinker struct {
	out      gomotion.Output
	interval *state.Signal[uint64]
	log      logrus.FieldLogger
}

func NewBlinker(out gomotion.Output, interval *state.Signal[uint64], log logrus.FieldLogger) *Blinker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Blinker{out: out, interval: interval, log: log.WithField("component", "blink")}
}

// Run waits for the first interval, then blinks until ctx ends.
func (b *Blinker) Run(ctx context.Context) error {
	interval, err := b.interval.Wait(ctx)
	if err != nil {
		return err
	}
	b.log.WithField("interval_ms", interval).Debug("blinking")

	for {
		b.out.High()
		next, updated, err := b.hold(ctx, interval)
		if err != nil {
			b.out.Low()
			return err
		}
		if updated {
			interval = next
			continue
		}

		b.out.Low()
		next, updated, err = b.hold(ctx, interval)
		if err != nil {
			return err
		}
		if updated {
			interval = next
		}
	}
}

// hold waits out one half cycle unless a new interval arrives first.
func (b *Blinker) hold(ctx context.Context, intervalMS uint64) (uint64, bool, error) {
	timer := time.NewTimer(time.Duration(intervalMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return intervalMS, false, nil
	case v := <-b.interval.C():
		b.log.WithField("interval_ms", v).Debug("blink interval updated")
		return v, true, nil
	case <-ctx.Done():
		return intervalMS, false, ctx.Err()
	}
}
