package models

import (
	"fmt"
	"strings"
)

// ConnectionStatus is the sensor connection state reported by the SDK.
type ConnectionStatus int

const (
	StatusReady ConnectionStatus = iota
	StatusDiscovering
	StatusConnecting
	StatusConnected
	StatusDisconnecting
	StatusDisconnected
)

var statusNames = [...]string{"READY", "DISCOVERING", "CONNECTING", "CONNECTED", "DISCONNECTING", "DISCONNECTED"}

func (s ConnectionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("STATUS(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText renders the status by name in JSON payloads.
func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(b)))
	for i, n := range statusNames {
		if n == name {
			*s = ConnectionStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown connection status %q", string(b))
}

// DeviceHandle identifies a discovered device inside the sensor SDK.
type DeviceHandle string

// DiscoveryEvent reports a candidate device found while scanning.
// Allowed is decided by the SDK's own allow-list.
type DiscoveryEvent struct {
	Handle         DeviceHandle
	Label          string
	SignalStrength int
	Allowed        bool
}
