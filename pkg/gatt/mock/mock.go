// Package mock provides an in-memory gatt.Transport. The test or simulator
// plays the client side through the returned *Conn.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mlsorensen/gomotion/pkg/gatt"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
)

var ErrClosed = errors.New("mock connection closed")

// Compile-time checks.
var (
	_ gatt.Transport = (*Transport)(nil)
	_ gatt.Conn      = (*Conn)(nil)
)

// Notification is one notify as seen by the client.
type Notification struct {
	Attribute comms.Attribute
	Data      []byte
}

// Transport hands client connections to the advertising server.
type Transport struct {
	pending chan *Conn
}

func NewTransport() *Transport {
	return &Transport{pending: make(chan *Conn)}
}

func (t *Transport) Advertise(ctx context.Context) (gatt.Conn, error) {
	select {
	case c := <-t.pending:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Connect blocks until the server accepts a new connection from addr.
func (t *Transport) Connect(ctx context.Context, addr string) (*Conn, error) {
	c := &Conn{
		addr:   addr,
		events: make(chan gatt.Event),
		notes:  make(chan Notification, 64),
		closed: make(chan struct{}),
	}
	select {
	case t.pending <- c:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Conn is both ends of a connection: the server uses the gatt.Conn methods,
// the client uses Write, Read, Disconnect and Notifications.
type Conn struct {
	addr   string
	events chan gatt.Event
	notes  chan Notification
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	notifyErr error
}

func (c *Conn) Next(ctx context.Context) (gatt.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) Notify(attr comms.Attribute, data []byte) error {
	c.mu.Lock()
	err := c.notifyErr
	c.mu.Unlock()
	if err != nil {
		return err
	}

	n := Notification{Attribute: attr, Data: append([]byte(nil), data...)}
	select {
	case c.notes <- n:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *Conn) RemoteAddress() string { return c.addr }

// Closed is closed once the server is done with the connection.
func (c *Conn) Closed() <-chan struct{} { return c.closed }

// Notifications delivers everything the server notified, in order.
func (c *Conn) Notifications() <-chan Notification { return c.notes }

// SetNotifyError makes every following Notify fail with err.
func (c *Conn) SetNotifyError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyErr = err
}

// Write sends a write event and waits for the server to accept it.
func (c *Conn) Write(ctx context.Context, attr comms.Attribute, value []byte) error {
	acked := make(chan struct{})
	ev := &gatt.Write{
		Attribute: attr,
		Value:     append([]byte(nil), value...),
		Ack:       func() error { close(acked); return nil },
	}
	return c.roundTrip(ctx, ev, acked)
}

// Read sends a read event and returns the value the server replied with.
func (c *Conn) Read(ctx context.Context, attr comms.Attribute) ([]byte, error) {
	acked := make(chan struct{})
	var value []byte
	ev := &gatt.Read{
		Attribute: attr,
		Ack: func(v []byte) error {
			value = append([]byte(nil), v...)
			close(acked)
			return nil
		},
	}
	if err := c.roundTrip(ctx, ev, acked); err != nil {
		return nil, err
	}
	return value, nil
}

// Disconnect tells the server the client has gone.
func (c *Conn) Disconnect(ctx context.Context, reason string) error {
	acked := make(chan struct{})
	ev := &gatt.Disconnected{
		Reason: reason,
		Ack:    func() error { close(acked); return nil },
	}
	return c.roundTrip(ctx, ev, acked)
}

func (c *Conn) roundTrip(ctx context.Context, ev gatt.Event, acked <-chan struct{}) error {
	select {
	case c.events <- ev:
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-acked:
		return nil
	case <-c.closed:
		select {
		case <-acked:
			return nil
		default:
		}
		return fmt.Errorf("%w before %T was accepted", ErrClosed, ev)
	case <-ctx.Done():
		return ctx.Err()
	}
}
