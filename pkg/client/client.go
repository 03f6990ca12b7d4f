// Package client connects to a motion reporter as a BLE central, streams its
// samples and writes its configuration.
package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/mlsorensen/gomotion"
	"github.com/mlsorensen/gomotion/pkg/gatt/comms"
	"github.com/mlsorensen/gomotion/pkg/motion"
)

var ErrNotConnected = errors.New("not connected to a motion reporter")

// Client is a connection to one reporter.
type Client struct {
	name    string
	address bluetooth.Address
	log     logrus.FieldLogger

	mu        sync.Mutex
	connected bool

	btDevice bluetooth.Device
	chars    map[comms.Attribute]*bluetooth.DeviceCharacteristic
	joiner   *Joiner
	samples  chan gomotion.SensorSample
}

func New(device gomotion.FoundDevice, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		name:    device.Name,
		address: device.Address,
		log:     log.WithFields(logrus.Fields{"component": "client", "device": device.Name}),
		joiner:  NewJoiner(0),
	}
}

func (c *Client) Name() string { return c.name }

// Connect connects, subscribes to both sample streams and returns the
// channel of joined samples. The channel is closed by Disconnect.
func (c *Client) Connect() (<-chan gomotion.SensorSample, error) {
	if err := gomotion.TryEnableAdapter(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil, fmt.Errorf("%s is already connected", c.name)
	}

	var err error
	c.btDevice, err = gomotion.BTAdapter.Connect(c.address, bluetooth.ConnectionParams{
		MaxInterval: bluetooth.NewDuration(50 * time.Millisecond),
		MinInterval: bluetooth.NewDuration(7500 * time.Microsecond),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.name, err)
	}

	if err = c.setupCharacteristics(); err != nil {
		_ = c.btDevice.Disconnect()
		return nil, err
	}

	c.samples = make(chan gomotion.SensorSample, 10*comms.BatchSize)
	c.joiner.Reset()

	c.log.Debug("setting up notifications")
	if err = c.subscribe(comms.AttrAccel, c.joiner.PushAccel); err != nil {
		_ = c.btDevice.Disconnect()
		return nil, err
	}
	if err = c.subscribe(comms.AttrGyro, c.joiner.PushGyro); err != nil {
		_ = c.btDevice.Disconnect()
		return nil, err
	}

	c.connected = true
	c.log.Info("connected")
	return c.samples, nil
}

// Samples is the channel returned by the last Connect.
func (c *Client) Samples() <-chan gomotion.SensorSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	close(c.samples)
	device := c.btDevice
	c.mu.Unlock()

	c.log.Info("disconnecting")
	return device.Disconnect()
}

func (c *Client) setupCharacteristics() error {
	c.log.Debug("discovering services")
	services, err := c.btDevice.DiscoverServices([]bluetooth.UUID{comms.ServiceUUID})
	if err != nil {
		return fmt.Errorf("could not discover services: %w", err)
	}
	if len(services) == 0 {
		return errors.New("could not find the motion reporter service")
	}

	uuids := make([]bluetooth.UUID, 0, len(comms.Attributes))
	for _, a := range comms.Attributes {
		uuids = append(uuids, a.UUID)
	}
	chars, err := services[0].DiscoverCharacteristics(uuids)
	if err != nil {
		return fmt.Errorf("could not discover characteristics: %w", err)
	}

	c.chars = make(map[comms.Attribute]*bluetooth.DeviceCharacteristic, len(chars))
	for i := range chars {
		if a, ok := comms.LookupUUID(chars[i].UUID()); ok {
			c.chars[a.ID] = &chars[i]
		}
	}
	for _, a := range comms.Attributes {
		if _, ok := c.chars[a.ID]; !ok {
			return fmt.Errorf("characteristic %s not found", a.Name)
		}
	}
	c.log.Debug("characteristics set up")
	return nil
}

func (c *Client) subscribe(attr comms.Attribute, push func([]byte) ([]gomotion.SensorSample, error)) error {
	err := c.chars[attr].EnableNotifications(func(buf []byte) {
		samples, err := push(buf)
		if err != nil {
			c.log.WithError(err).Warnf("bad %s notification: % X", attr, buf)
			return
		}
		c.deliver(samples)
	})
	if err != nil {
		return fmt.Errorf("failed to enable %s notifications: %w", attr, err)
	}
	return nil
}

// deliver hands samples to the consumer without blocking the BLE stack.
func (c *Client) deliver(samples []gomotion.SensorSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	for _, s := range samples {
		select {
		case c.samples <- s:
		default:
			c.log.Warn("sample channel full, dropping sample")
		}
	}
}

func (c *Client) characteristic(attr comms.Attribute) (*bluetooth.DeviceCharacteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil, ErrNotConnected
	}
	ch, ok := c.chars[attr]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not discovered", attr)
	}
	return ch, nil
}

// WriteAttribute writes a raw value after checking it has the attribute's
// wire width.
func (c *Client) WriteAttribute(attr comms.Attribute, value []byte) error {
	info, ok := comms.Lookup(attr)
	if !ok {
		return fmt.Errorf("unknown attribute %d", attr)
	}
	if !info.Writable() {
		return fmt.Errorf("%s is read-only", info.Name)
	}
	if w := info.Kind.Width(); w > 0 && len(value) != w {
		return fmt.Errorf("%s: %w: got %d bytes, want %d", info.Name, comms.ErrInvalidLength, len(value), w)
	}
	ch, err := c.characteristic(attr)
	if err != nil {
		return err
	}
	if _, err := ch.WriteWithoutResponse(value); err != nil {
		return fmt.Errorf("write %s: %w", info.Name, err)
	}
	c.log.WithField("attribute", info.Name).Debugf("wrote %s", info.Kind.Format(value))
	return nil
}

// ReadAttribute reads the current raw value of attr.
func (c *Client) ReadAttribute(attr comms.Attribute) ([]byte, error) {
	ch, err := c.characteristic(attr)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 64)
	n, err := ch.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", attr, err)
	}
	return buf[:n], nil
}

func (c *Client) ReadFirmwareVersion() (string, error) {
	v, err := c.ReadAttribute(comms.AttrFirmwareVersion)
	return string(v), err
}

func (c *Client) SetContinuousSampleInterval(ms uint64) error {
	return c.WriteAttribute(comms.AttrContinuousSampleInterval, comms.EncodeU64(ms))
}

func (c *Client) SetMotionReadDuration(seconds uint16) error {
	return c.WriteAttribute(comms.AttrMotionReadDuration, comms.EncodeU16(seconds))
}

func (c *Client) SetMotionSampleInterval(ms uint64) error {
	return c.WriteAttribute(comms.AttrMotionSampleInterval, comms.EncodeU64(ms))
}

func (c *Client) SetAccelScale(s gomotion.AccelFullScale) error {
	return c.WriteAttribute(comms.AttrAccelScale, comms.EncodeU8(uint8(s)))
}

func (c *Client) SetGyroScale(s gomotion.GyroFullScale) error {
	return c.WriteAttribute(comms.AttrGyroScale, comms.EncodeU8(uint8(s)))
}

func (c *Client) SetFilter(f gomotion.Filter) error {
	return c.WriteAttribute(comms.AttrFilter, comms.EncodeU8(uint8(f)))
}

func (c *Client) SetBuzzMode(m motion.BuzzFrequencyMode) error {
	return c.WriteAttribute(comms.AttrBuzzMode, comms.EncodeU8(uint8(m)))
}

// SetBuzzRange sets the intensities mapped to silence and to the highest tone.
func (c *Client) SetBuzzRange(minValue, maxValue float32) error {
	if err := c.WriteAttribute(comms.AttrMinBuzz, comms.EncodeF32(minValue)); err != nil {
		return err
	}
	return c.WriteAttribute(comms.AttrMaxBuzz, comms.EncodeF32(maxValue))
}

func (c *Client) SetPlaySound(on bool) error {
	return c.WriteAttribute(comms.AttrPlaySound, comms.EncodeBool(on))
}

func (c *Client) SetMotionDetection(on bool) error {
	return c.WriteAttribute(comms.AttrMotionDetection, comms.EncodeBool(on))
}

// ManualRead starts a read window on the reporter.
func (c *Client) ManualRead() error {
	return c.WriteAttribute(comms.AttrManualRead, comms.EncodeBool(true))
}

// MarkEpoch restarts sample timestamps from zero.
func (c *Client) MarkEpoch() error {
	return c.WriteAttribute(comms.AttrMarkEpoch, comms.EncodeU8(1))
}
