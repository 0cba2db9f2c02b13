package sensor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"bvp_relay/internal/models"
)

// ----------- Simulation constants -----------
const (
	PulseHz        = 1.2  // ~72 bpm
	PulseAmplitude = 0.8  // arbitrary BVP units
	SkinTempC      = 33.5 // °C
	BaseGSR        = 0.42 // µS
	BatteryStart   = 1.0  // fraction
	BatteryDrain   = 0.01 // fraction lost per battery report
	auxEvery       = 64   // samples between temperature/GSR/acc/IBI reports
)

// SimulatorConfig tunes the simulated wristband.
type SimulatorConfig struct {
	SampleRateHz  int      // BVP samples per second
	WarmupSamples int      // zero-valued BVP readings before the pulse locks
	BatteryEvery  int      // BVP samples between battery reports
	Devices       []string // labels found by a scan, in discovery order
	AllowList     []string // labels the SDK allows; empty allows all
}

// phase is the simulator's internal step; it lags the reported status by
// one tick so every transition is observable.
type phase int

const (
	phaseIdle phase = iota
	phaseAuthenticated
	phaseScanning
	phaseConnecting
	phaseStreaming
	phaseDisconnecting
)

// Simulator is an in-process stand-in for the wristband SDK. All Listener
// callbacks are made from the goroutine running Run.
type Simulator struct {
	cfg      SimulatorConfig
	listener Listener // set once by Register, before Run

	mu         sync.Mutex
	phase      phase
	discovered map[models.DeviceHandle]string
	target     models.DeviceHandle
	announced  bool

	// stream state, touched only by Run
	n       int
	battery float64
}

// NewSimulator returns a simulator; Register a Listener before Run.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.SampleRateHz < 1 {
		cfg.SampleRateHz = 64
	}
	if cfg.BatteryEvery < 1 {
		cfg.BatteryEvery = 10 * cfg.SampleRateHz
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = []string{"E4-SIM-001"}
	}
	return &Simulator{
		cfg:        cfg,
		listener:   nopListener{},
		discovered: map[models.DeviceHandle]string{},
	}
}

// Register sets the single consumer of SDK callbacks.
func (s *Simulator) Register(l Listener) {
	if l == nil {
		l = nopListener{}
	}
	s.listener = l
}

type nopListener struct{}

func (nopListener) OnSample(models.SensorSample)     {}
func (nopListener) OnStatus(models.ConnectionStatus) {}
func (nopListener) OnDiscover(models.DiscoveryEvent) {}

// Tick returns the interval between two BVP samples.
func (s *Simulator) Tick() time.Duration {
	return time.Second / time.Duration(s.cfg.SampleRateHz)
}

func (s *Simulator) Authenticate(apiKey string) error {
	if apiKey == "" {
		return ErrMissingAPIKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-authenticating after a disconnect reports Ready again.
	if s.phase == phaseIdle || s.phase == phaseAuthenticated {
		s.setPhase(phaseAuthenticated)
	}
	return nil
}

func (s *Simulator) StartScanning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phaseIdle {
		return ErrNotAuthenticated
	}
	s.setPhase(phaseScanning)
	return nil
}

func (s *Simulator) ConnectDevice(handle models.DeviceHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discovered[handle]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, handle)
	}
	s.target = handle
	s.setPhase(phaseConnecting)
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == phaseConnecting || s.phase == phaseStreaming {
		s.setPhase(phaseDisconnecting)
	}
	return nil
}

// Target returns the device currently being connected or streamed.
func (s *Simulator) Target() (models.DeviceHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target, s.target != ""
}

// setPhase requires s.mu.
func (s *Simulator) setPhase(p phase) {
	s.phase = p
	s.announced = false
}

// Run ticks at the sample rate until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) {
	t := time.NewTicker(s.Tick())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Step()
		}
	}
}

// Step advances the simulation by one sample period.
func (s *Simulator) Step() {
	s.mu.Lock()
	p, announced := s.phase, s.announced
	s.announced = true
	var found []models.DiscoveryEvent
	if p == phaseScanning && !announced {
		found = s.discover()
	}
	s.mu.Unlock()

	switch p {
	case phaseIdle:
	case phaseAuthenticated:
		if !announced {
			s.listener.OnStatus(models.StatusReady)
		}
	case phaseScanning:
		if !announced {
			s.listener.OnStatus(models.StatusDiscovering)
			for _, ev := range found {
				s.listener.OnDiscover(ev)
			}
		}
	case phaseConnecting:
		if !announced {
			s.listener.OnStatus(models.StatusConnecting)
			return
		}
		s.mu.Lock()
		if s.phase == phaseConnecting {
			s.setPhase(phaseStreaming)
		}
		s.mu.Unlock()
	case phaseStreaming:
		if !announced {
			s.n = 0
			s.battery = BatteryStart
			s.listener.OnStatus(models.StatusConnected)
			return
		}
		s.emitSamples()
	case phaseDisconnecting:
		if !announced {
			s.listener.OnStatus(models.StatusDisconnecting)
			return
		}
		s.mu.Lock()
		if s.phase == phaseDisconnecting {
			s.target = ""
			s.phase = phaseAuthenticated
			s.announced = true
		}
		s.mu.Unlock()
		s.listener.OnStatus(models.StatusDisconnected)
	}
}

// discover requires s.mu.
func (s *Simulator) discover() []models.DiscoveryEvent {
	events := make([]models.DiscoveryEvent, 0, len(s.cfg.Devices))
	for i, label := range s.cfg.Devices {
		h := models.DeviceHandle(fmt.Sprintf("sim:%02d:%s", i, label))
		s.discovered[h] = label
		events = append(events, models.DiscoveryEvent{
			Handle:         h,
			Label:          label,
			SignalStrength: -50 - 7*i,
			Allowed:        s.allowed(label),
		})
	}
	return events
}

func (s *Simulator) allowed(label string) bool {
	if len(s.cfg.AllowList) == 0 {
		return true
	}
	for _, a := range s.cfg.AllowList {
		if a == label {
			return true
		}
	}
	return false
}

// emitSamples produces one BVP reading plus any periodic side channels.
func (s *Simulator) emitSamples() {
	ts := float64(s.n) / float64(s.cfg.SampleRateHz)
	s.listener.OnSample(models.BVP(s.bvpAt(s.n), ts))

	if s.n%s.cfg.BatteryEvery == 0 {
		s.listener.OnSample(models.Battery(s.battery, ts))
		s.battery = math.Max(0, s.battery-BatteryDrain)
	}
	if s.n%auxEvery == 0 {
		s.listener.OnSample(models.SensorSample{Kind: models.SampleTemperature, Value: SkinTempC, Timestamp: ts})
		s.listener.OnSample(models.SensorSample{Kind: models.SampleGSR, Value: BaseGSR, Timestamp: ts})
		s.listener.OnSample(models.SensorSample{Kind: models.SampleIBI, Value: 1 / PulseHz, Timestamp: ts})
		s.listener.OnSample(models.Acceleration(0, 0, 64, ts))
	}
	s.n++
}

// bvpAt returns zeros during warm-up, then a two-harmonic pulse wave.
func (s *Simulator) bvpAt(n int) float64 {
	if n < s.cfg.WarmupSamples {
		return 0
	}
	t := float64(n) / float64(s.cfg.SampleRateHz)
	w := 2 * math.Pi * PulseHz * t
	return PulseAmplitude * (math.Sin(w) + 0.35*math.Sin(2*w+0.6))
}
