package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"bvp_relay/internal/codec"
	"bvp_relay/internal/logger"
	"bvp_relay/internal/models"
	"bvp_relay/internal/pipeline"
	"bvp_relay/internal/repository"
	"bvp_relay/internal/sensor"
	"bvp_relay/internal/transport"
)

var (
	ErrEmptyMode   = errors.New("mode must not be empty")
	ErrUnknownMode = errors.New("mode is not offered by the server")
	ErrNoEndpoint  = errors.New("no server endpoint given, saved or configured")
)

// TransportStatus is the read side of the server connection.
type TransportStatus interface {
	State() transport.State
	Endpoint() (models.Endpoint, bool)
}

// Transport is the server connection as the controller uses it.
type Transport interface {
	TransportStatus
	Open(endpoint models.Endpoint) error
	Close(reason string) bool
	Send(msg []byte) bool
}

// EventRecorder accepts session events without blocking.
type EventRecorder interface {
	Record(e models.SessionEvent)
}

type ControllerConfig struct {
	APIKey           string
	BatchSize        int
	RestartOnConnect bool
	DefaultEndpoint  models.Endpoint // used when nothing is given or saved
}

type ControllerDeps struct {
	Device    sensor.Device
	Transport Transport
	Display   *Display
	Events    EventRecorder // optional
	Settings  repository.SettingsRepo
	Log       *logger.Logger
}

// SessionController ties the sensor SDK to the server connection.
//
// The sensor.Listener methods run on the SDK's callback goroutine and are
// the only code touching the filter, the batch buffer and the scan state.
// The transport.Handler methods run on connection goroutines and the
// operator intents on request goroutines; those reach shared state only
// through the Display, the Transport and the Device.
type SessionController struct {
	cfg       ControllerConfig
	device    sensor.Device
	transport Transport
	display   *Display
	events    EventRecorder
	settings  repository.SettingsRepo
	log       *logger.Logger

	// callback goroutine only
	filter   *pipeline.CalibrationFilter
	batch    *pipeline.BatchBuffer
	status   models.ConnectionStatus
	scanning bool

	batchesSent atomic.Uint64
	connMu      sync.Mutex // serializes ConnectServer and DisconnectServer
}

func NewSessionController(cfg ControllerConfig, deps ControllerDeps) (*SessionController, error) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = pipeline.DefaultBatchSize
	}
	batch, err := pipeline.NewBatchBuffer(cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if deps.Device == nil || deps.Transport == nil || deps.Display == nil {
		return nil, errors.New("session controller: device, transport and display are required")
	}
	return &SessionController{
		cfg:       cfg,
		device:    deps.Device,
		transport: deps.Transport,
		display:   deps.Display,
		events:    deps.Events,
		settings:  deps.Settings,
		log:       deps.Log,
		filter:    pipeline.NewCalibrationFilter(),
		batch:     batch,
		status:    models.StatusDisconnected,
	}, nil
}

// BatchesSent counts batches the transport accepted for sending.
func (c *SessionController) BatchesSent() uint64 {
	return c.batchesSent.Load()
}

// -------- sensor.Listener --------

func (c *SessionController) OnStatus(status models.ConnectionStatus) {
	prev := c.status
	c.status = status
	c.scanning = status == models.StatusDiscovering

	c.display.SetStatus(status)
	c.record(models.EventStatus, StatusText(status), map[string]any{
		"status":   status.String(),
		"previous": prev.String(),
	})
	if c.log != nil {
		c.log.Infow("sensor_status", "status", status.String(), "previous", prev.String())
	}

	if status == models.StatusReady {
		if err := c.device.StartScanning(); err != nil {
			c.fail("start_scanning", err)
		}
	}
}

func (c *SessionController) OnDiscover(ev models.DiscoveryEvent) {
	meta := map[string]any{
		"handle":          string(ev.Handle),
		"label":           ev.Label,
		"signal_strength": ev.SignalStrength,
	}
	if !ev.Allowed {
		if c.log != nil {
			c.log.Debugw("discovery_ignored", "reason", "not_allowed", "label", ev.Label)
		}
		c.record(models.EventDiscovery, "Ignored device "+ev.Label+" (not allowed)", meta)
		return
	}
	if !c.scanning {
		if c.log != nil {
			c.log.Debugw("discovery_ignored", "reason", "not_scanning", "label", ev.Label)
		}
		return
	}
	c.scanning = false

	c.filter.Reset()
	if n := c.batch.Discard(); n > 0 && c.log != nil {
		c.log.Debugw("batch_discarded", "values", n)
	}
	c.display.SetCalibrated(false)

	if c.cfg.RestartOnConnect {
		c.sendCommand(models.CommandRestart, nil)
	}

	c.record(models.EventDiscovery, "Connecting to device "+ev.Label, meta)
	if err := c.device.ConnectDevice(ev.Handle); err != nil {
		c.fail("connect_device", err)
	}
}

func (c *SessionController) OnSample(s models.SensorSample) {
	switch s.Kind {
	case models.SampleBVP:
		c.routeBVP(s.Value)
	case models.SampleBattery:
		c.display.SetBattery(batteryPercent(s.Value))
	}
}

// routeBVP runs one value through filter, buffer, codec and transport.
func (c *SessionController) routeBVP(v float64) {
	wasLocked := c.filter.Locked()
	if !c.filter.Observe(v) {
		return
	}
	if !wasLocked {
		c.display.SetCalibrated(true)
		if c.log != nil {
			c.log.Infow("calibration_locked", "first_value", v)
		}
	}

	batch, full := c.batch.Push(v)
	if !full {
		return
	}
	msg, err := codec.EncodeBatch(batch)
	if err != nil {
		if c.log != nil {
			c.log.Warnw("batch_encode_failed", "err", err)
		}
		return
	}
	if c.transport.Send(msg) {
		c.batchesSent.Add(1)
	}
}

// batteryPercent converts a 0..1 battery level to a whole percentage. The
// fraction is truncated, so a level of 0.996 reads 99.
func batteryPercent(level float64) int {
	if math.IsNaN(level) {
		return 0
	}
	level = min(max(level, 0), 1)
	return int(level * 100)
}

// -------- transport.Handler --------

func (c *SessionController) OnOpen(endpoint models.Endpoint) {
	c.record(models.EventTransport, "Connected to "+endpoint.Address(), map[string]any{
		"endpoint": endpoint.Address(),
	})
	c.sendCommand(models.CommandListModes, nil)
}

func (c *SessionController) OnMessage(data []byte) {
	msg := codec.DecodeMessage(data)
	if !msg.HasModes {
		if c.log != nil {
			c.log.Debugw("server_message_ignored", "bytes", len(data))
		}
		return
	}
	c.display.SetModes(msg.Modes)
	if c.log != nil {
		c.log.Infow("modes_received", "count", len(msg.Modes))
	}
}

// -------- operator intents --------

// ConnectServer opens a session to endpoint, replacing any current one. A
// zero endpoint falls back to the saved one, then the configured default.
// It returns the endpoint actually used.
func (c *SessionController) ConnectServer(ctx context.Context, endpoint models.Endpoint) (models.Endpoint, error) {
	ep, err := c.resolveEndpoint(ctx, endpoint)
	if err != nil {
		return models.Endpoint{}, err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if err := c.transport.Open(ep); err != nil {
		return models.Endpoint{}, err
	}
	c.record(models.EventTransport, "Connecting to "+ep.Address(), map[string]any{"endpoint": ep.Address()})

	if c.settings != nil {
		if err := c.settings.SaveEndpoint(ctx, ep); err != nil && c.log != nil {
			c.log.Warnw("endpoint_save_failed", "err", err, "endpoint", ep.Address())
		}
	}
	return ep, nil
}

func (c *SessionController) resolveEndpoint(ctx context.Context, ep models.Endpoint) (models.Endpoint, error) {
	if !ep.IsZero() {
		return ep, nil
	}
	if c.settings != nil {
		saved, err := c.settings.LoadEndpoint(ctx)
		if err != nil {
			return models.Endpoint{}, fmt.Errorf("load saved endpoint: %w", err)
		}
		if !saved.IsZero() {
			return saved, nil
		}
	}
	if !c.cfg.DefaultEndpoint.IsZero() {
		return c.cfg.DefaultEndpoint, nil
	}
	return models.Endpoint{}, ErrNoEndpoint
}

// DisconnectServer closes the current session. It reports whether one was
// opening or open.
func (c *SessionController) DisconnectServer() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	closed := c.transport.Close(transport.ReasonDisconnecting)
	if closed {
		c.record(models.EventTransport, "Disconnected from server", map[string]any{"reason": transport.ReasonDisconnecting})
	}
	return closed
}

// RestartServer asks the server to restart its analysis.
func (c *SessionController) RestartServer() bool {
	return c.sendCommand(models.CommandRestart, nil)
}

// ListModes asks the server for its operating modes.
func (c *SessionController) ListModes() bool {
	return c.sendCommand(models.CommandListModes, nil)
}

// SetMode asks the server to switch to mode.
func (c *SessionController) SetMode(mode string) (bool, error) {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return false, ErrEmptyMode
	}
	if known := c.display.Snapshot().Modes; len(known) > 0 && !slices.Contains(known, mode) {
		return false, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return c.sendCommand(models.CommandChangeMode, map[string]string{"mode": mode}), nil
}

// Scan authenticates with the SDK; the SDK answers with Ready, which
// starts scanning.
func (c *SessionController) Scan() error {
	if err := c.device.Authenticate(c.cfg.APIKey); err != nil {
		c.fail("authenticate", err)
		return err
	}
	return nil
}

func (c *SessionController) DisconnectSensor() error {
	if err := c.device.Disconnect(); err != nil {
		c.fail("disconnect_sensor", err)
		return err
	}
	return nil
}

// -------- helpers --------

// sendCommand encodes and queues a command. It reports whether the
// transport accepted it.
func (c *SessionController) sendCommand(name string, args map[string]string) bool {
	msg, err := codec.Encode(models.Command{Name: name, Args: args})
	if err != nil {
		c.fail("encode_command", err)
		return false
	}
	sent := c.transport.Send(msg)
	c.record(models.EventCommand, "Command "+name, map[string]any{
		"command": name,
		"args":    args,
		"sent":    sent,
	})
	if c.log != nil {
		c.log.Infow("command_sent", "command", name, "queued", sent)
	}
	return sent
}

func (c *SessionController) fail(op string, err error) {
	if c.log != nil {
		c.log.Errorw(op+"_failed", "err", err)
	}
	c.record(models.EventError, op+": "+err.Error(), nil)
}

func (c *SessionController) record(typ, desc string, meta map[string]any) {
	if c.events == nil {
		return
	}
	e := models.SessionEvent{Type: typ, Description: desc}
	if meta != nil {
		e.Metadata = meta
	}
	c.events.Record(e)
}
