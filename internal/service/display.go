package service

import (
	"context"
	"sync"
	"time"

	"bvp_relay/internal/logger"
	"bvp_relay/internal/models"
)

const defaultDisplayQueue = 256

// Status texts shown to the operator, one per sensor connection status.
var statusTexts = map[models.ConnectionStatus]string{
	models.StatusReady:         "Ready to scan for wristband",
	models.StatusDiscovering:   "Scanning for wristband",
	models.StatusConnecting:    "Connecting to wristband",
	models.StatusConnected:     "Connected to wristband",
	models.StatusDisconnecting: "Disconnecting from wristband",
	models.StatusDisconnected:  "Disconnected from wristband",
}

// StatusText returns the operator-facing text for status.
func StatusText(status models.ConnectionStatus) string {
	if txt, ok := statusTexts[status]; ok {
		return txt
	}
	return status.String()
}

type displayUpdate func(st *models.SessionState)

// Display owns the operator-facing session state. Updates are posted from
// any goroutine and applied in order by Run; Snapshot may be called
// concurrently with both.
type Display struct {
	updates chan displayUpdate
	log     *logger.Logger
	now     func() time.Time

	mu    sync.RWMutex
	state models.SessionState
}

func NewDisplay(log *logger.Logger) *Display {
	return newDisplay(defaultDisplayQueue, log)
}

func newDisplay(queue int, log *logger.Logger) *Display {
	d := &Display{
		updates: make(chan displayUpdate, queue),
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
	d.state = models.SessionState{
		SensorStatus: models.StatusDisconnected,
		StatusText:   StatusText(models.StatusDisconnected),
		Modes:        []string{},
		UpdatedAt:    d.now(),
	}
	return d
}

// Run applies posted updates until ctx is canceled.
func (d *Display) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.updates:
			d.apply(fn)
		}
	}
}

func (d *Display) apply(fn displayUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.state)
	d.state.UpdatedAt = d.now()
}

// post never blocks; an update that does not fit is dropped.
func (d *Display) post(kind string, fn displayUpdate) {
	select {
	case d.updates <- fn:
	default:
		if d.log != nil {
			d.log.Warnw("display_update_dropped", "update", kind)
		}
	}
}

func (d *Display) SetStatus(status models.ConnectionStatus) {
	text := StatusText(status)
	d.post("status", func(st *models.SessionState) {
		st.SensorStatus = status
		st.StatusText = text
	})
}

// SetBattery records a battery percentage in 0..100.
func (d *Display) SetBattery(percent int) {
	d.post("battery", func(st *models.SessionState) {
		st.BatteryPercent = percent
		st.HasBattery = true
	})
}

// SetModes replaces the mode list. The slice is copied before posting.
func (d *Display) SetModes(modes []string) {
	cp := append([]string{}, modes...)
	d.post("modes", func(st *models.SessionState) {
		st.Modes = cp
	})
}

func (d *Display) SetCalibrated(locked bool) {
	d.post("calibration", func(st *models.SessionState) {
		st.CalibrationLocked = locked
	})
}

// Snapshot returns a copy of the current state.
func (d *Display) Snapshot() models.SessionState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := d.state
	st.Modes = append([]string{}, d.state.Modes...)
	return st
}
