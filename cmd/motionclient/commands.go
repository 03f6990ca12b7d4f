package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/internal/config"
	"github.com/mlsorensen/gomotion/pkg/client"
	"github.com/mlsorensen/gomotion/pkg/client/recorder"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
)

func parse(cmd *cobra.Command) (config.Opt, error) {
	desc := config.NewDesc()
	if err := desc.Parse(cmd); err != nil {
		return config.Opt{}, err
	}
	desc.PostParse()
	return desc.Opt, nil
}

func scanTimeout(opt config.Opt) time.Duration {
	return time.Duration(opt.Client.ScanTimeoutS) * time.Second
}

// connect finds the configured reporter and connects to it.
func connect(opt config.Opt) (*client.Client, <-chan gomotion.SensorSample, error) {
	log.Infof("looking for %q for %s", opt.Client.Prefix, scanTimeout(opt))
	dev, err := gomotion.FindDevice(scanTimeout(opt), opt.Client.Address, opt.Client.Prefix)
	if err != nil {
		return nil, nil, err
	}
	c := client.New(*dev, log.StandardLogger())
	samples, err := c.Connect()
	if err != nil {
		return nil, nil, err
	}
	return c, samples, nil
}

func lookup(name string) (comms.AttributeInfo, error) {
	info, ok := comms.LookupName(name)
	if !ok {
		return comms.AttributeInfo{}, fmt.Errorf("unknown attribute %q, see motionclient attributes", name)
	}
	return info, nil
}

func scan(cmd *cobra.Command, _ []string) error {
	opt, err := parse(cmd)
	if err != nil {
		return err
	}
	devices, err := gomotion.Scan(scanTimeout(opt), opt.Client.Prefix)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		log.Infoln("scan complete, no reporters found")
		return nil
	}
	out := cmd.OutOrStdout()
	for i, device := range devices {
		fmt.Fprintf(out, "%d: Name: %s\n", i+1, device.Name)
		fmt.Fprintf(out, "   ID:   %s\n", device.ID)
		fmt.Fprintf(out, "   RSSI: %d\n\n", device.RSSI)
	}
	return nil
}

func stream(cmd *cobra.Command, _ []string) error {
	opt, err := parse(cmd)
	if err != nil {
		return err
	}
	c, samples, err := connect(opt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Infoln("shutdown signal received, disconnecting")
		cancel()
		_ = c.Disconnect()
	}()

	var toInflux chan gomotion.SensorSample
	if opt.Influx.Enabled {
		rec := recorder.New(recorder.Options{
			URL:    opt.Influx.URL,
			Token:  opt.Influx.Token,
			Org:    opt.Influx.Org,
			Bucket: opt.Influx.Bucket,
		}, c.Name(), log.StandardLogger())
		toInflux = make(chan gomotion.SensorSample, 10*comms.BatchSize)
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = rec.Run(ctx, toInflux)
		}()
		defer func() {
			close(toInflux)
			<-done
			rec.Close()
		}()
	}

	for s := range samples {
		log.WithFields(log.Fields{
			"ts":    s.TimestampMS,
			"accel": s.Accel,
			"gyro":  s.Gyro,
		}).Info("sample")
		if toInflux != nil {
			select {
			case toInflux <- s:
			default:
				log.Warn("recorder is behind, dropping sample")
			}
		}
	}
	log.Infoln("sample channel closed")
	return nil
}

func set(cmd *cobra.Command, args []string) error {
	info, err := lookup(args[0])
	if err != nil {
		return err
	}
	value, err := info.Kind.Parse(args[1])
	if err != nil {
		return fmt.Errorf("%s: %w", info.Name, err)
	}
	opt, err := parse(cmd)
	if err != nil {
		return err
	}
	c, _, err := connect(opt)
	if err != nil {
		return err
	}
	defer c.Disconnect()
	return c.WriteAttribute(info.ID, value)
}

func get(cmd *cobra.Command, args []string) error {
	info, err := lookup(args[0])
	if err != nil {
		return err
	}
	opt, err := parse(cmd)
	if err != nil {
		return err
	}
	c, _, err := connect(opt)
	if err != nil {
		return err
	}
	defer c.Disconnect()
	value, err := c.ReadAttribute(info.ID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), info.Kind.Format(value))
	return err
}

func attributes(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tACCESS\tUUID")
	for _, a := range comms.Attributes {
		access := ""
		if a.Readable() {
			access += "r"
		}
		if a.Writable() {
			access += "w"
		}
		if a.Notifies() {
			access += "n"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Kind, access, a.UUID)
	}
	return w.Flush()
}
