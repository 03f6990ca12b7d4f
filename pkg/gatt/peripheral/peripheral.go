//go:build tinygo || linux

// Package peripheral exposes the motion reporter service through a
// tinygo.org/x/bluetooth adapter acting as a GATT server.
package peripheral

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/gatt"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
)

var _ gatt.Transport = (*Transport)(nil)

// eventBuffer is how many writes a connection queues before new ones are
// dropped.
const eventBuffer = 32

// Transport registers the service once and advertises under Name until a
// central connects. Stack callbacks are routed to the active connection
// only and never block.
type Transport struct {
	Name string

	adapter *bluetooth.Adapter
	log     logrus.FieldLogger

	setupOnce sync.Once
	setupErr  error
	chars     map[comms.Attribute]*bluetooth.Characteristic
	connects  chan *conn

	mu     sync.Mutex
	active *conn
}

// New creates a transport on adapter. An empty name advertises as
// gomotion.DefaultNamePrefix.
func New(adapter *bluetooth.Adapter, name string, log logrus.FieldLogger) *Transport {
	if name == "" {
		name = gomotion.DefaultNamePrefix
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transport{
		Name:     name,
		adapter:  adapter,
		log:      log.WithField("component", "gatt"),
		chars:    make(map[comms.Attribute]*bluetooth.Characteristic, len(comms.Attributes)),
		connects: make(chan *conn, 1),
	}
}

func flags(p comms.Permission) bluetooth.CharacteristicPermissions {
	var f bluetooth.CharacteristicPermissions
	if p&comms.Read != 0 {
		f |= bluetooth.CharacteristicReadPermission
	}
	if p&comms.Write != 0 {
		f |= bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission
	}
	if p&comms.Notify != 0 {
		f |= bluetooth.CharacteristicNotifyPermission
	}
	return f
}

func (t *Transport) setup() error {
	t.setupOnce.Do(func() {
		if err := t.adapter.Enable(); err != nil {
			t.setupErr = fmt.Errorf("enable BLE stack: %w", err)
			return
		}

		configs := make([]bluetooth.CharacteristicConfig, 0, len(comms.Attributes))
		for _, a := range comms.Attributes {
			handle := new(bluetooth.Characteristic)
			t.chars[a.ID] = handle
			cfg := bluetooth.CharacteristicConfig{
				Handle: handle,
				UUID:   a.UUID,
				Value:  append([]byte(nil), a.Default...),
				Flags:  flags(a.Perm),
			}
			if a.Writable() {
				id := a.ID
				cfg.WriteEvent = func(client bluetooth.Connection, offset int, value []byte) {
					t.written(id, value)
				}
			}
			configs = append(configs, cfg)
		}

		// Add service before starting advertisement.
		err := t.adapter.AddService(&bluetooth.Service{
			UUID:            comms.ServiceUUID,
			Characteristics: configs,
		})
		if err != nil {
			t.setupErr = fmt.Errorf("add service: %w", err)
			return
		}

		t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				t.connected(device.Address.String())
			} else {
				t.disconnected(device.Address.String())
			}
		})

		err = t.adapter.DefaultAdvertisement().Configure(bluetooth.AdvertisementOptions{
			LocalName:    t.Name,
			ServiceUUIDs: []bluetooth.UUID{comms.ServiceUUID},
		})
		if err != nil {
			t.setupErr = fmt.Errorf("configure advertisement: %w", err)
		}
	})
	return t.setupErr
}

// connected makes addr the active connection unless one is already being
// served.
func (t *Transport) connected(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		t.log.WithFields(logrus.Fields{"peer": addr, "active": t.active.addr}).Warn("connection while busy")
		return
	}
	c := &conn{
		t:      t,
		addr:   addr,
		events: make(chan gatt.Event, eventBuffer),
		gone:   make(chan struct{}),
	}
	select {
	case t.connects <- c:
		t.active = c
	default:
		t.log.WithField("peer", addr).Warn("connection not picked up, ignoring")
	}
}

// disconnected ends the active connection if it belongs to addr. Late
// disconnects of peers that are no longer served are dropped.
func (t *Transport) disconnected(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := t.active
	if c == nil || c.addr != addr {
		t.log.WithField("peer", addr).Debug("ignoring disconnect of inactive peer")
		return
	}
	c.end("disconnected by " + addr)
}

// written hands a write to the active connection without blocking the stack.
func (t *Transport) written(attr comms.Attribute, value []byte) {
	t.mu.Lock()
	c := t.active
	t.mu.Unlock()
	if c == nil {
		t.log.WithField("attribute", attr).Warn("write with no active connection, dropping")
		return
	}
	select {
	case c.events <- &gatt.Write{Attribute: attr, Value: append([]byte(nil), value...)}:
	default:
		t.log.WithField("attribute", attr).Warn("event queue full, dropping write")
	}
}

func (t *Transport) Advertise(ctx context.Context) (gatt.Conn, error) {
	if err := t.setup(); err != nil {
		return nil, err
	}

	adv := t.adapter.DefaultAdvertisement()
	if err := adv.Start(); err != nil {
		return nil, fmt.Errorf("start advertising: %w", err)
	}
	t.log.WithField("name", t.Name).Debug("advertising started")
	defer func() {
		if err := adv.Stop(); err != nil {
			t.log.WithError(err).Debug("stop advertising")
		}
	}()

	return t.accept(ctx)
}

func (t *Transport) accept(ctx context.Context) (*conn, error) {
	select {
	case c := <-t.connects:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type conn struct {
	t      *Transport
	addr   string
	events chan gatt.Event

	once   sync.Once
	gone   chan struct{}
	reason string
}

func (c *conn) end(reason string) {
	c.once.Do(func() {
		c.reason = reason
		close(c.gone)
	})
}

func (c *conn) Next(ctx context.Context) (gatt.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.gone:
		return &gatt.Disconnected{Reason: c.reason}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *conn) Notify(attr comms.Attribute, data []byte) error {
	ch, ok := c.t.chars[attr]
	if !ok {
		return fmt.Errorf("%w: %s", gatt.ErrUnknownAttribute, attr)
	}
	_, err := ch.Write(data)
	return err
}

// Close releases the transport for the next central. The stack owns the
// link itself.
func (c *conn) Close() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.t.active == c {
		c.t.active = nil
	}
	c.end("closed")
	return nil
}

func (c *conn) RemoteAddress() string { return c.addr }
