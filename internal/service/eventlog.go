package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bvp_relay/internal/logger"
	"bvp_relay/internal/models"
	"bvp_relay/internal/repository"

	"github.com/google/uuid"
)

const defaultEventQueue = 512

// EventLogService records session events off the hot path and serves the
// filtered history.
type EventLogService struct {
	eventRepo repository.EventRepo
	queue     chan models.SessionEvent
	log       *logger.Logger
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	return &EventLogService{
		eventRepo: eventRepo,
		queue:     make(chan models.SessionEvent, defaultEventQueue),
		log:       log,
	}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	return from, to, eventType, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.SessionEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	events, err := s.eventRepo.List(ctx, from, to, typ)
	if err != nil {
		return nil, err
	}
	if f.Limit > 0 && len(events) > f.Limit {
		events = events[len(events)-f.Limit:]
	}
	return events, nil
}

// Record stamps e and queues it for Run. It never blocks; when the queue is
// full the event is dropped.
func (s *EventLogService) Record(e models.SessionEvent) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	select {
	case s.queue <- e:
	default:
		if s.log != nil {
			s.log.Warnw("event_dropped", "type", e.Type, "description", e.Description)
		}
	}
}

// Run appends queued events until ctx is canceled, then flushes what is
// already queued.
func (s *EventLogService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case e := <-s.queue:
			s.append(ctx, e)
		}
	}
}

func (s *EventLogService) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case e := <-s.queue:
			s.append(ctx, e)
		default:
			return
		}
	}
}

func (s *EventLogService) append(ctx context.Context, e models.SessionEvent) {
	if err := s.eventRepo.Append(ctx, e); err != nil && s.log != nil {
		s.log.Errorw("event_append_failed", "err", err, "type", e.Type)
	}
}
