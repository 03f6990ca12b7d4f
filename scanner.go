package gomotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

// DefaultNamePrefix is the advertised local name of a motion reporter.
const DefaultNamePrefix = "Motion reporter"

// FoundDevice is a reporter seen while scanning.
type FoundDevice struct {
	Name    string
	ID      string
	Address bluetooth.Address
	RSSI    int
}

// BTAdapter is the host Bluetooth adapter used by scans and clients.
var BTAdapter = bluetooth.DefaultAdapter

var (
	enableOnce sync.Once
	enableErr  error
)

// TryEnableAdapter enables BTAdapter once per process.
func TryEnableAdapter() error {
	enableOnce.Do(func() {
		log.Debugln("enabling bluetooth adapter")
		enableErr = BTAdapter.Enable()
	})
	return enableErr
}

// ScanStream returns a channel that streams FoundDevice as they are discovered
// and stops scanning when the context is canceled.
func ScanStream(ctx context.Context, prefixes ...string) (<-chan FoundDevice, error) {
	if err := TryEnableAdapter(); err != nil {
		return nil, err
	}
	prefixesToScan := getPrefixes(prefixes...)
	deviceChan := make(chan FoundDevice)

	go func() {
		defer close(deviceChan)

		log.WithField("prefixes", prefixesToScan).Info("starting BLE scan")

		handler := func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			name := result.LocalName()
			if name == "" || !hasPrefix(name, prefixesToScan) {
				return
			}
			select {
			case deviceChan <- FoundDevice{
				Name:    name,
				ID:      result.Address.String(),
				Address: result.Address,
				RSSI:    int(result.RSSI),
			}:
			case <-ctx.Done():
			}
		}

		go func() {
			<-ctx.Done()
			if err := BTAdapter.StopScan(); err != nil {
				log.WithError(err).Warn("failed to stop scan cleanly")
			}
		}()

		if err := BTAdapter.Scan(handler); err != nil {
			log.WithError(err).Error("scan failed")
		}
	}()

	return deviceChan, nil
}

// Scan finds reporters whose name starts with one of the prefixes, blocking for duration.
func Scan(duration time.Duration, prefixes ...string) ([]FoundDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	if err := TryEnableAdapter(); err != nil {
		return nil, err
	}

	mu := sync.Mutex{}
	foundDevices := make(map[string]FoundDevice)
	prefixesToScan := getPrefixes(prefixes...)
	log.WithField("prefixes", prefixesToScan).Info("scanning for devices")

	handler := func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()
		if name == "" || !hasPrefix(name, prefixesToScan) {
			return
		}
		id := result.Address.String()
		mu.Lock()
		if _, seen := foundDevices[id]; !seen {
			log.WithField("device", name).Debug("found a match")
		}
		foundDevices[id] = FoundDevice{
			Name:    name,
			ID:      id,
			Address: result.Address,
			RSSI:    int(result.RSSI),
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	scanErrChan := make(chan error, 1)

	go func() {
		defer wg.Done()
		if err := BTAdapter.Scan(handler); err != nil {
			scanErrChan <- err
		}
	}()

	<-ctx.Done()

	if err := BTAdapter.StopScan(); err != nil {
		log.WithError(err).Warn("failed to stop scan cleanly")
	}

	wg.Wait()
	close(scanErrChan)

	if scanErr := <-scanErrChan; scanErr != nil {
		return nil, scanErr
	}

	results := make([]FoundDevice, 0, len(foundDevices))
	for _, device := range foundDevices {
		results = append(results, device)
	}

	log.Infof("scan finished, found %d matching device(s)", len(results))
	return results, nil
}

// ScanForOne returns the first reporter seen within timeout.
func ScanForOne(timeout time.Duration, prefixes ...string) (*FoundDevice, error) {
	return FindDevice(timeout, "", prefixes...)
}

// FindDevice is ScanForOne restricted to the reporter whose ID is address.
// An empty address accepts any reporter.
func FindDevice(timeout time.Duration, address string, prefixes ...string) (*FoundDevice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	devices, err := ScanStream(ctx, prefixes...)
	if err != nil {
		return nil, err
	}
	return firstMatch(devices, address)
}

// firstMatch takes devices until one has the given address, or any device
// when address is empty.
func firstMatch(devices <-chan FoundDevice, address string) (*FoundDevice, error) {
	for dev := range devices {
		if address == "" || strings.EqualFold(dev.ID, address) {
			return &dev, nil
		}
	}
	if address == "" {
		return nil, errors.New("no motion reporter found")
	}
	return nil, fmt.Errorf("motion reporter %s not found", address)
}

func getPrefixes(prefixes ...string) []string {
	if len(prefixes) > 0 {
		return prefixes
	}
	return []string{DefaultNamePrefix}
}

func hasPrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
