//go:build !tinygo && !linux

package peripheral

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/mlsorensen/gomotion/pkg/gatt"
)

var ErrUnsupported = errors.New("BLE peripheral mode is not supported on this platform")

type Transport struct {
	Name string
}

func New(adapter *bluetooth.Adapter, name string, log logrus.FieldLogger) *Transport {
	return &Transport{Name: name}
}

func (t *Transport) Advertise(ctx context.Context) (gatt.Conn, error) {
	return nil, ErrUnsupported
}
