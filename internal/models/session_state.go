package models

import "time"

// SessionState is the operator-facing snapshot of the relay.
type SessionState struct {
	SensorStatus      ConnectionStatus `json:"sensor_status"`
	StatusText        string           `json:"status_text"`
	BatteryPercent    int              `json:"battery_percent"` // 0..100
	HasBattery        bool             `json:"has_battery"`     // false until first battery report
	Modes             []string         `json:"modes"`           // as last reported by the server
	CalibrationLocked bool             `json:"calibration_locked"`
	Transport         string           `json:"transport,omitempty"` // CLOSED | OPENING | OPEN | CLOSING
	Endpoint          string           `json:"endpoint,omitempty"`  // host:port of the current session
	BatchesSent       uint64           `json:"batches_sent,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
