package feedback

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/state"
)

const (
	MinFrequency = 100
	MaxFrequency = 2000

	epsilon = 1e-6
)

// FrequencyFor maps an intensity linearly onto MinFrequency..MaxFrequency.
// Intensities at or below minValue are silent. When the bounds are equal every audible
// intensity maps to MinFrequency.
func FrequencyFor(intensity, minValue, maxValue float32) uint32 {
	if isNaN(intensity) || isNaN(minValue) || isNaN(maxValue) || intensity <= minValue {
		return 0
	}
	v := math.Min(float64(intensity), float64(maxValue))
	span := math.Max(float64(maxValue)-float64(minValue), epsilon)
	f := MinFrequency + (v-float64(minValue))*(MaxFrequency-MinFrequency)/span
	return uint32(math.Round(math.Max(f, MinFrequency)))
}

func isNaN(v float32) bool { return math.IsNaN(float64(v)) }

// Buzzer plays a tone whose pitch follows the published intensity while
// sound is enabled.
type Buzzer struct {
	tone gomotion.Tone
	bus  *state.Bus
	log  logrus.FieldLogger
}

func NewBuzzer(tone gomotion.Tone, bus *state.Bus, log logrus.FieldLogger) *Buzzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Buzzer{tone: tone, bus: bus, log: log.WithField("component", "buzzer")}
}

// Prime plays 1 Hz then silence to check the tone output works.
func (b *Buzzer) Prime() {
	b.play(1)
	b.play(0)
}

// Run waits for the initial bounds and play setting, then follows the
// intensity until ctx ends.
func (b *Buzzer) Run(ctx context.Context) error {
	b.Prime()
	b.log.Info("starting buzzer")

	minValue, err := b.bus.MinBuzz.Wait(ctx)
	if err != nil {
		return err
	}
	maxValue, err := b.bus.MaxBuzz.Wait(ctx)
	if err != nil {
		return err
	}

	play := false
	for {
		if !play {
			b.log.Debug("waiting for sound playback to be enabled")
			if play, err = b.bus.PlaySound.Wait(ctx); err != nil {
				return err
			}
			if !play {
				continue
			}
			// Intensities published while muted are stale.
			b.bus.Intensity.Reset()
			b.log.Info("sound playback enabled")
		}

		select {
		case <-ctx.Done():
			b.play(0)
			return ctx.Err()
		case v := <-b.bus.PlaySound.C():
			if !v {
				play = false
				b.play(0)
				b.log.Info("sound playback disabled")
			}
		case intensity := <-b.bus.Intensity.C():
			if v, ok := b.bus.MinBuzz.TryTake(); ok {
				minValue = v
			}
			if v, ok := b.bus.MaxBuzz.TryTake(); ok {
				maxValue = v
			}
			freq := FrequencyFor(intensity, minValue, maxValue)
			b.log.WithFields(logrus.Fields{"intensity": intensity, "frequency": freq}).Trace("tone")
			b.play(freq)
		}
	}
}

func (b *Buzzer) play(freq uint32) {
	if err := b.tone.Play(freq); err != nil {
		b.log.WithError(err).WithField("frequency", freq).Error("failed to play tone")
	}
}
