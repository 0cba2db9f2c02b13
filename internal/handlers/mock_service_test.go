package handlers

import (
	"context"
	"sync"
	"time"

	"bvp_relay/internal/models"
	"bvp_relay/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockOperator struct {
	connectEP     models.Endpoint
	connectErr    error
	sendOK        bool
	disconnectOK  bool
	scanErr       error
	disconnectErr error
	setModeErr    error

	lastConnect  models.Endpoint
	lastMode     string
	connectCalls int
	restartCalls int
	listCalls    int
	scanCalls    int
	sensorDiscs  int
	serverDiscs  int
}

func (m *mockOperator) ConnectServer(ctx context.Context, ep models.Endpoint) (models.Endpoint, error) {
	m.connectCalls++
	m.lastConnect = ep
	if m.connectErr != nil {
		return models.Endpoint{}, m.connectErr
	}
	if ep.IsZero() {
		return m.connectEP, nil
	}
	return ep, nil
}
func (m *mockOperator) RestartServer() bool {
	m.restartCalls++
	return m.sendOK
}
func (m *mockOperator) DisconnectServer() bool {
	m.serverDiscs++
	return m.disconnectOK
}
func (m *mockOperator) Scan() error {
	m.scanCalls++
	return m.scanErr
}
func (m *mockOperator) DisconnectSensor() error {
	m.sensorDiscs++
	return m.disconnectErr
}
func (m *mockOperator) SetMode(mode string) (bool, error) {
	m.lastMode = mode
	if m.setModeErr != nil {
		return false, m.setModeErr
	}
	return m.sendOK, nil
}
func (m *mockOperator) ListModes() bool {
	m.listCalls++
	return m.sendOK
}

type mockMonitoring struct {
	mu    sync.Mutex
	state models.SessionState
	err   error
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

func (m *mockMonitoring) Modes(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Modes, m.err
}

func (m *mockMonitoring) setState(st models.SessionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
}

type mockEventLog struct {
	resp      []models.SessionEvent
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
	calls     int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.SessionEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	m.calls++
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
