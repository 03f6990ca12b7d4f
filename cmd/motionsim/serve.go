package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/internal/config"
	"github.com/mlsorensen/gomotion/pkg/client"
	"github.com/mlsorensen/gomotion/pkg/firmware"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
	gattmock "github.com/mlsorensen/gomotion/pkg/gatt/mock"
	"github.com/mlsorensen/gomotion/pkg/gatt/peripheral"
	_ "github.com/mlsorensen/gomotion/pkg/sensors/all"
	"github.com/mlsorensen/gomotion/pkg/sensors/mock"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// logLED reports status LED edges at trace level.
type logLED struct{ log *log.Entry }

func (l logLED) High() { l.log.Trace("led on") }
func (l logLED) Low()  { l.log.Trace("led off") }

// logTone reports buzzer frequency changes.
type logTone struct {
	log  log.FieldLogger
	last uint32
}

func (t *logTone) Play(hz uint32) error {
	if hz != t.last {
		t.log.WithField("hz", hz).Debug("tone")
		t.last = hz
	}
	return nil
}

func serve(cmd *cobra.Command, _ []string) error {
	desc := config.NewDesc()
	if err := desc.Parse(cmd); err != nil {
		return err
	}
	desc.PostParse()
	opt := desc.Opt

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Infoln("shutdown signal received")
		cancel()
	}()

	sensor, err := gomotion.NewSensor(opt.Device.Sensor, nil)
	if err != nil {
		return err
	}
	pin, ok := sensor.(gomotion.MotionPin)
	if !ok {
		return fmt.Errorf("sensor %q has no simulated interrupt pin", opt.Device.Sensor)
	}
	if sim, ok := sensor.(*mock.Sensor); ok && opt.Sim.ShakeEveryMS > 0 {
		go sim.Simulate(ctx,
			time.Duration(opt.Sim.ShakeEveryMS)*time.Millisecond,
			time.Duration(opt.Sim.ShakeForMS)*time.Millisecond)
	}

	logger := log.WithField("device", opt.Device.Name)
	board := firmware.Board{
		Sensor: sensor,
		Pin:    pin,
		LED:    logLED{log: logger.WithField("component", "led")},
		Tone:   &logTone{log: logger.WithField("component", "buzzer")},
	}

	switch opt.Device.Transport {
	case "mock":
		tr := gattmock.NewTransport()
		board.Transport = tr
		go localClient(ctx, tr, logger.WithField("component", "local-client"))
	case "bluetooth":
		board.Transport = peripheral.New(bluetooth.DefaultAdapter, opt.Device.Name, logger)
	default:
		return fmt.Errorf("unknown transport %q", opt.Device.Transport)
	}

	err = firmware.Run(ctx, board, state.NewBus(), logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// localClient stands in for a phone on the mock transport: it connects once
// and logs every sample the reporter streams.
func localClient(ctx context.Context, tr *gattmock.Transport, logger log.FieldLogger) {
	conn, err := tr.Connect(ctx, "local")
	if err != nil {
		logger.WithError(err).Warn("could not connect")
		return
	}
	version, err := conn.Read(ctx, comms.AttrFirmwareVersion)
	if err != nil {
		logger.WithError(err).Warn("could not read firmware version")
		return
	}
	logger.WithField("version", string(version)).Info("connected")

	joiner := client.NewJoiner(0)
	for {
		select {
		case n := <-conn.Notifications():
			push := joiner.PushAccel
			if n.Attribute == comms.AttrGyro {
				push = joiner.PushGyro
			}
			samples, err := push(n.Data)
			if err != nil {
				logger.WithError(err).Warn("bad notification")
				continue
			}
			if len(samples) == 0 {
				continue
			}
			last := samples[len(samples)-1]
			logger.WithFields(log.Fields{
				"count": len(samples),
				"ts":    last.TimestampMS,
				"accel": last.Accel,
				"gyro":  last.Gyro,
			}).Info("samples")
		case <-conn.Closed():
			logger.Info("disconnected")
			return
		case <-ctx.Done():
			return
		}
	}
}
