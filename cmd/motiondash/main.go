// Command motiondash is a desktop dashboard for one motion reporter.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	log "github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/client"
)

func formatSample(s gomotion.SensorSample) (string, string) {
	accel, _ := gomotion.ParseAccelFullScale(s.AccelScale)
	gyro, _ := gomotion.ParseGyroFullScale(s.GyroScale)
	a := fmt.Sprintf("accel  %+6.2f %+6.2f %+6.2f g  (%s)",
		accel.G(s.Accel.X), accel.G(s.Accel.Y), accel.G(s.Accel.Z), accel)
	g := fmt.Sprintf("gyro   %+7.1f %+7.1f %+7.1f dps  (%s)",
		gyro.DPS(s.Gyro.X), gyro.DPS(s.Gyro.Y), gyro.DPS(s.Gyro.Z), gyro)
	return a, g
}

func main() {
	a := app.New()
	w := a.NewWindow("Motion reporter")
	dev, err := gomotion.ScanForOne(10 * time.Second)
	if err != nil {
		log.Fatal(err)
	}
	reporter := client.New(*dev, log.StandardLogger())

	nameLabel := widget.NewLabel(reporter.Name())
	versionLabel := widget.NewLabel("")
	accelLabel := widget.NewLabel("")
	gyroLabel := widget.NewLabel("")
	timeLabel := widget.NewLabel("")

	readButton := widget.NewButton("Manual read", func() {
		log.Infoln("starting a manual read")
		if err := reporter.ManualRead(); err != nil {
			log.WithError(err).Error("manual read failed")
		}
	})
	epochButton := widget.NewButton("Mark epoch", func() {
		if err := reporter.MarkEpoch(); err != nil {
			log.WithError(err).Error("mark epoch failed")
		}
	})
	soundCheck := widget.NewCheck("Play sound", func(on bool) {
		if err := reporter.SetPlaySound(on); err != nil {
			log.WithError(err).Error("play sound failed")
		}
	})
	detectCheck := widget.NewCheck("Motion detection", nil)
	detectCheck.SetChecked(true)
	detectCheck.OnChanged = func(on bool) {
		if err := reporter.SetMotionDetection(on); err != nil {
			log.WithError(err).Error("motion detection failed")
		}
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Infoln("shutdown signal received:", sig)
		fyne.Do(a.Quit)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		samples, err := reporter.Connect()
		if err != nil {
			log.Fatalf("could not connect to reporter: %v", err)
		}
		if version, err := reporter.ReadFirmwareVersion(); err == nil {
			fyne.Do(func() { versionLabel.SetText("firmware " + version) })
		}
		for s := range samples {
			accel, gyro := formatSample(s)
			ts := time.Duration(s.TimestampMS) * time.Millisecond
			fyne.Do(func() {
				accelLabel.SetText(accel)
				gyroLabel.SetText(gyro)
				timeLabel.SetText(ts.String())
			})
		}
	}()

	w.SetContent(container.NewVBox(
		nameLabel,
		versionLabel,
		accelLabel,
		gyroLabel,
		timeLabel,
		container.NewHBox(readButton, epochButton),
		soundCheck,
		detectCheck,
	))
	w.ShowAndRun()

	if err := reporter.Disconnect(); err != nil {
		log.WithError(err).Error("could not disconnect")
	}
	wg.Wait()
}
