// Package sensor describes the wearable's SDK boundary: the control calls
// the relay makes and the callbacks it receives.
package sensor

import (
	"errors"

	"bvp_relay/internal/models"
)

var (
	ErrMissingAPIKey    = errors.New("sensor api key is empty")
	ErrNotAuthenticated = errors.New("sensor sdk is not authenticated")
	ErrUnknownDevice    = errors.New("unknown device handle")
)

// Device is the control side of the sensor SDK.
type Device interface {
	Authenticate(apiKey string) error
	StartScanning() error
	ConnectDevice(handle models.DeviceHandle) error
	Disconnect() error
}

// Listener consumes SDK callbacks. A Device delivers all callbacks to its
// single Listener from one goroutine.
type Listener interface {
	OnSample(sample models.SensorSample)
	OnStatus(status models.ConnectionStatus)
	OnDiscover(event models.DiscoveryEvent)
}
