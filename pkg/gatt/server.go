// Package gatt serves the motion reporter's attribute protocol: it accepts
// one client at a time, routes configuration writes onto the state bus and
// streams batched samples from the pipeline as notifications.
package gatt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
	"github.com/mlsorensen/gomotion/pkg/pipeline"
	"github.com/mlsorensen/gomotion/pkg/state"
)

// DefaultBatchDelay throttles notifications between batches.
const DefaultBatchDelay = 100 * time.Millisecond

var (
	ErrNotifyFailed     = errors.New("notification failed")
	ErrDisconnected     = errors.New("client disconnected")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrNotWritable      = errors.New("attribute is not writable")
)

type Server struct {
	transport Transport
	bus       *state.Bus
	queue     *pipeline.Queue
	log       logrus.FieldLogger
	handlers  map[comms.Attribute]handler

	BatchDelay time.Duration

	mu     sync.Mutex
	values map[comms.Attribute][]byte
}

func NewServer(transport Transport, bus *state.Bus, queue *pipeline.Queue, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	values := make(map[comms.Attribute][]byte, len(comms.Attributes))
	for _, a := range comms.Attributes {
		values[a.ID] = append([]byte(nil), a.Default...)
	}
	return &Server{
		transport:  transport,
		bus:        bus,
		queue:      queue,
		log:        log.WithField("component", "gatt"),
		handlers:   writeHandlers(bus),
		BatchDelay: DefaultBatchDelay,
		values:     values,
	}
}

// Run advertises, serves each connection until it ends and advertises
// again. It returns when ctx is done or advertising fails.
func (s *Server) Run(ctx context.Context) error {
	for {
		s.log.Info("advertising")
		conn, err := s.transport.Advertise(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("advertise: %w", err)
		}

		log := s.log.WithField("peer", conn.RemoteAddress())
		log.Info("client connected")
		err = s.ServeConn(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Info("connection ended")
	}
}

// ServeConn runs the event loop and the notification loop for conn until
// either one ends, then closes conn.
func (s *Server) ServeConn(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- s.serveEvents(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		errs <- s.serveNotifications(ctx, conn)
	}()

	err := <-errs
	cancel()
	wg.Wait()
	return err
}

func (s *Server) serveEvents(ctx context.Context, conn Conn) error {
	for {
		ev, err := conn.Next(ctx)
		if err != nil {
			return err
		}

		var done error
		switch e := ev.(type) {
		case *Disconnected:
			s.log.WithField("reason", e.Reason).Info("disconnected")
			done = fmt.Errorf("%w: %s", ErrDisconnected, e.Reason)
		case *Write:
			if err := s.HandleWrite(e.Attribute, e.Value); err != nil {
				s.log.WithError(err).WithField("attribute", e.Attribute).Warn("write ignored")
			}
		case *Read:
			e.Value = s.Value(e.Attribute)
		default:
			s.log.Debugf("unhandled event %T", ev)
		}

		if err := ev.Accept(); err != nil {
			s.log.WithError(err).Warn("failed to accept event")
		}
		if done != nil {
			return done
		}
	}
}

// HandleWrite decodes value for attr and publishes it on the bus. Payloads
// of the wrong length leave the bus untouched.
func (s *Server) HandleWrite(attr comms.Attribute, value []byte) error {
	info, ok := comms.Lookup(attr)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAttribute, attr)
	}
	h, ok := s.handlers[attr]
	if !ok || !info.Writable() {
		return fmt.Errorf("%w: %s", ErrNotWritable, info.Name)
	}
	if err := h(value); err != nil {
		return fmt.Errorf("%s: %w", info.Name, err)
	}
	if info.Readable() {
		s.setValue(attr, value)
	}
	s.log.WithField("attribute", info.Name).Debugf("set to %s", info.Kind.Format(value))
	return nil
}

// Value is what a client reads from attr. Guarded parameters are read from
// the bus; everything else is the last value written or notified.
func (s *Server) Value(attr comms.Attribute) []byte {
	switch attr {
	case comms.AttrContinuousSampleInterval:
		return comms.EncodeU64(s.bus.ContinuousSampleInterval.Get())
	case comms.AttrMotionReadDuration:
		return comms.EncodeU16(s.bus.MotionReadDuration.Get())
	case comms.AttrMotionSampleInterval:
		return comms.EncodeU64(s.bus.MotionSampleInterval.Get())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.values[attr]...)
}

func (s *Server) setValue(attr comms.Attribute, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[attr] = append(s.values[attr][:0], value...)
}

func (s *Server) serveNotifications(ctx context.Context, conn Conn) error {
	batch := make([]gomotion.SensorSample, 0, comms.BatchSize)
	accel := make([]byte, 0, comms.BatchSize*comms.EntrySize)
	gyro := make([]byte, 0, comms.BatchSize*comms.EntrySize)

	for {
		first, err := s.queue.Receive(ctx)
		if err != nil {
			return err
		}
		batch = append(batch[:0], first)
		for len(batch) < comms.BatchSize {
			next, err := s.queue.TryReceive()
			if err != nil {
				break
			}
			batch = append(batch, next)
		}

		accel, gyro = comms.AppendBatch(accel[:0], gyro[:0], batch)
		if err := conn.Notify(comms.AttrAccel, accel); err != nil {
			s.log.WithError(err).Error("failed to notify accel batch")
			return fmt.Errorf("%w: accel: %v", ErrNotifyFailed, err)
		}
		if err := conn.Notify(comms.AttrGyro, gyro); err != nil {
			s.log.WithError(err).Error("failed to notify gyro batch")
			return fmt.Errorf("%w: gyro: %v", ErrNotifyFailed, err)
		}
		s.setValue(comms.AttrAccel, accel)
		s.setValue(comms.AttrGyro, gyro)
		s.log.Debugf("notified batch of %d samples", len(batch))

		if s.BatchDelay > 0 {
			t := time.NewTimer(s.BatchDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
}
