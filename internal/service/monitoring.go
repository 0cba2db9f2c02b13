package service

import (
	"context"

	"bvp_relay/internal/models"
)

// BatchCounter reports how many telemetry batches went out.
type BatchCounter interface {
	BatchesSent() uint64
}

type MonitoringService struct {
	display   *Display
	transport TransportStatus
	batches   BatchCounter
}

func NewMonitoringService(display *Display, transport TransportStatus, batches BatchCounter) *MonitoringService {
	return &MonitoringService{display: display, transport: transport, batches: batches}
}

// GetState merges the display snapshot with the live connection state.
func (s *MonitoringService) GetState(ctx context.Context) (models.SessionState, error) {
	if err := ctx.Err(); err != nil {
		return models.SessionState{}, err
	}
	st := s.display.Snapshot()
	st.Transport = s.transport.State().String()
	if ep, ok := s.transport.Endpoint(); ok {
		st.Endpoint = ep.Address()
	}
	if s.batches != nil {
		st.BatchesSent = s.batches.BatchesSent()
	}
	return st, nil
}

// Modes returns the last mode list reported by the server.
func (s *MonitoringService) Modes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.display.Snapshot().Modes, nil
}
