// Package recorder stores streamed motion samples in InfluxDB.
package recorder

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
)

// Measurement is the InfluxDB measurement samples are written to.
const Measurement = "motion"

// Writer is the part of api.WriteAPIBlocking the recorder uses.
type Writer interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Options configure the InfluxDB connection.
type Options struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Recorder turns samples into points. Sample timestamps are relative to the
// reporter's epoch, so each epoch is anchored to the time its first sample
// arrived.
type Recorder struct {
	writer Writer
	client influxdb2.Client
	device string
	log    logrus.FieldLogger

	anchor time.Time
	lastTS uint32
	now    func() time.Time
}

// New connects to InfluxDB with blocking writes.
func New(opts Options, device string, log logrus.FieldLogger) *Recorder {
	client := influxdb2.NewClient(opts.URL, opts.Token)
	r := NewWithWriter(client.WriteAPIBlocking(opts.Org, opts.Bucket), device, log)
	r.client = client
	return r
}

// NewWithWriter records through w.
func NewWithWriter(w Writer, device string, log logrus.FieldLogger) *Recorder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{
		writer: w,
		device: device,
		log:    log.WithField("component", "recorder"),
		now:    time.Now,
	}
}

// Point converts s, anchoring a new epoch when timestamps go backwards.
func (r *Recorder) Point(s gomotion.SensorSample) *write.Point {
	if r.anchor.IsZero() || s.TimestampMS < r.lastTS {
		r.anchor = r.now().Add(-time.Duration(s.TimestampMS) * time.Millisecond)
		r.log.WithField("anchor", r.anchor).Debug("new epoch")
	}
	r.lastTS = s.TimestampMS

	return influxdb2.NewPoint(
		Measurement,
		map[string]string{"device": r.device},
		map[string]interface{}{
			"ax":          s.Accel.X,
			"ay":          s.Accel.Y,
			"az":          s.Accel.Z,
			"gx":          s.Gyro.X,
			"gy":          s.Gyro.Y,
			"gz":          s.Gyro.Z,
			"accel_scale": s.AccelScale,
			"gyro_scale":  s.GyroScale,
		},
		r.anchor.Add(time.Duration(s.TimestampMS)*time.Millisecond),
	)
}

func (r *Recorder) Record(ctx context.Context, samples ...gomotion.SensorSample) error {
	points := make([]*write.Point, 0, len(samples))
	for _, s := range samples {
		points = append(points, r.Point(s))
	}
	if err := r.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	return nil
}

// Run records samples in batches until the channel closes or ctx ends.
// Write errors are logged and the batch is dropped.
func (r *Recorder) Run(ctx context.Context, samples <-chan gomotion.SensorSample) error {
	batch := make([]gomotion.SensorSample, 0, comms.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := r.Record(ctx, batch...); err != nil {
			r.log.WithError(err).Error("failed to record samples")
		}
		batch = batch[:0]
	}

	for {
		select {
		case s, ok := <-samples:
			if !ok {
				flush()
				return nil
			}
			batch = append(batch, s)
			if len(batch) == cap(batch) || len(samples) == 0 {
				flush()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Recorder) Close() {
	if r.client != nil {
		r.client.Close()
	}
}
