package service

import (
	"context"

	"bvp_relay/internal/logger"
	"bvp_relay/internal/models"
	"bvp_relay/internal/repository"
	"bvp_relay/internal/sensor"
)

// Operator exposes the operator's buttons: server connection, sensor
// connection and mode control.
type Operator interface {
	ConnectServer(ctx context.Context, endpoint models.Endpoint) (models.Endpoint, error)
	RestartServer() bool
	DisconnectServer() bool
	Scan() error
	DisconnectSensor() error
	SetMode(mode string) (bool, error)
	ListModes() bool
}

// Monitoring exposes read-only session state.
type Monitoring interface {
	GetState(ctx context.Context) (models.SessionState, error)
	Modes(ctx context.Context) ([]string, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.SessionEvent, error)
}

// Service aggregates the sub-services the HTTP layer depends on.
type Service struct {
	Operator
	Monitoring
	EventLog
}

// Runtime is everything a running relay needs: the Service for handlers
// plus the concrete parts main wires to the sensor, the transport and the
// background loops.
type Runtime struct {
	*Service
	Controller *SessionController
	Display    *Display
	Events     *EventLogService
}

// NewRuntime wires the repository layer, the sensor device and the server
// transport into concrete services.
func NewRuntime(cfg ControllerConfig, device sensor.Device, tr Transport, repos *repository.Repository, log *logger.Logger) (*Runtime, error) {
	display := NewDisplay(log)
	events := NewEventLogService(repos.EventRepo, log)
	ctrl, err := NewSessionController(cfg, ControllerDeps{
		Device:    device,
		Transport: tr,
		Display:   display,
		Events:    events,
		Settings:  repos.Settings,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Service: &Service{
			Operator:   ctrl,
			Monitoring: NewMonitoringService(display, tr, ctrl),
			EventLog:   events,
		},
		Controller: ctrl,
		Display:    display,
		Events:     events,
	}, nil
}
