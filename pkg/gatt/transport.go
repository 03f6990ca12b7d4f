package gatt

import (
	"context"

	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
)

// Transport advertises the service and hands over one connection at a time.
type Transport interface {
	// Advertise blocks until a central connects.
	Advertise(ctx context.Context) (Conn, error)
}

// Conn is a single client connection. It is owned by the server for the
// lifetime of the connection.
type Conn interface {
	// Next blocks for the next connection event.
	Next(ctx context.Context) (Event, error)
	// Notify sends data on a notifying attribute.
	Notify(attr comms.Attribute, data []byte) error
	Close() error
	RemoteAddress() string
}

// Event is something the client did. Every event must be accepted exactly
// once, whatever the server made of it.
type Event interface {
	Accept() error
}

// Disconnected ends the connection.
type Disconnected struct {
	Reason string
	Ack    func() error
}

func (d *Disconnected) Accept() error { return ack(d.Ack) }

// Write carries a value written by the client.
type Write struct {
	Attribute comms.Attribute
	Value     []byte
	Ack       func() error
}

func (w *Write) Accept() error { return ack(w.Ack) }

// Read asks for the current value of an attribute. The server fills Value
// before accepting.
type Read struct {
	Attribute comms.Attribute
	Value     []byte
	Ack       func(value []byte) error
}

func (r *Read) Accept() error {
	if r.Ack == nil {
		return nil
	}
	return r.Ack(r.Value)
}

func ack(f func() error) error {
	if f == nil {
		return nil
	}
	return f()
}
