//go:build tinygo

// Command motionreporter is the board firmware: an MPU6050 on I2C0, its INT
// line on motionPin, a buzzer on buzzerPin and the status LED.
package main

import (
	"context"
	"machine"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
	"tinygo.org/x/drivers/tone"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/firmware"
	"github.com/mlsorensen/gomotion/pkg/gatt/peripheral"
	_ "github.com/mlsorensen/gomotion/pkg/sensors/mpu6050"
	"github.com/mlsorensen/gomotion/pkg/state"
)

const (
	motionPin = machine.D2
	buzzerPin = machine.D3
	ledPin    = machine.LED

	pollInterval = time.Millisecond
)

// pin polls an input until it reaches the wanted level.
type pin struct{ machine.Pin }

func (p pin) WaitForHigh(ctx context.Context) error { return p.waitFor(ctx, true) }
func (p pin) WaitForLow(ctx context.Context) error  { return p.waitFor(ctx, false) }

func (p pin) waitFor(ctx context.Context, level bool) error {
	for p.Get() != level {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return nil
}

// speaker drives the buzzer with a square wave.
type speaker struct{ tone.Speaker }

func (s speaker) Play(hz uint32) error {
	if hz == 0 {
		s.Stop()
		return nil
	}
	s.SetPeriod(uint64(time.Second) / uint64(hz))
	return nil
}

func main() {
	time.Sleep(time.Second) // sensor power up

	log.SetLevel(log.InfoLevel)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz}); err != nil {
		panic("configure i2c: " + err.Error())
	}
	sensor, err := gomotion.NewSensor("mpu6050", i2c)
	if err != nil {
		panic(err.Error())
	}

	motionPin.Configure(machine.PinConfig{Mode: machine.PinInput})
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	buzzer, err := tone.New(machine.PWM0, buzzerPin)
	if err != nil {
		panic("configure buzzer: " + err.Error())
	}

	board := firmware.Board{
		Sensor:    sensor,
		Pin:       pin{motionPin},
		LED:       ledPin,
		Tone:      speaker{buzzer},
		Transport: peripheral.New(bluetooth.DefaultAdapter, gomotion.DefaultNamePrefix, nil),
	}

	// Run only returns when a task fails.
	err = firmware.Run(context.Background(), board, state.NewBus(), nil)
	panic(err.Error())
}
