package gatt

import (
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// handler decodes a written payload and publishes it on the bus.
type handler func(value []byte) error

func guarded[T any](g *state.Guarded[T], decode func([]byte) (T, error)) handler {
	return func(value []byte) error {
		v, err := decode(value)
		if err != nil {
			return err
		}
		g.Set(v)
		return nil
	}
}

func signal[T any](s *state.Signal[T], decode func([]byte) (T, error)) handler {
	return func(value []byte) error {
		v, err := decode(value)
		if err != nil {
			return err
		}
		s.Signal(v)
		return nil
	}
}

func trigger(s *state.Signal[struct{}]) handler {
	return func(value []byte) error {
		v, err := comms.DecodeU8(value)
		if err != nil {
			return err
		}
		if v != 0 {
			s.Signal(struct{}{})
		}
		return nil
	}
}

func writeHandlers(bus *state.Bus) map[comms.Attribute]handler {
	return map[comms.Attribute]handler{
		comms.AttrContinuousSampleInterval: guarded(bus.ContinuousSampleInterval, comms.DecodeU64),
		comms.AttrMotionReadDuration:       guarded(bus.MotionReadDuration, comms.DecodeU16),
		comms.AttrMotionSampleInterval:     guarded(bus.MotionSampleInterval, comms.DecodeU64),

		comms.AttrAccelScale: signal(bus.AccelScale, comms.DecodeU8),
		comms.AttrGyroScale:  signal(bus.GyroScale, comms.DecodeU8),
		comms.AttrBuzzMode:   signal(bus.BuzzMode, comms.DecodeU8),
		comms.AttrFilter:     signal(bus.Filter, comms.DecodeU8),
		comms.AttrMinBuzz:    signal(bus.MinBuzz, comms.DecodeFiniteF32),
		comms.AttrMaxBuzz:    signal(bus.MaxBuzz, comms.DecodeFiniteF32),

		comms.AttrPlaySound:       signal(bus.PlaySound, comms.DecodeBool),
		comms.AttrManualRead:      signal(bus.Read, comms.DecodeBool),
		comms.AttrMotionDetection: signal(bus.MotionDetection, comms.DecodeBool),
		comms.AttrMarkEpoch:       trigger(bus.MarkEpoch),
	}
}
