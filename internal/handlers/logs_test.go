package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bvp_relay/internal/models"
	"bvp_relay/internal/service"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.SessionEvent{
		{EventID: "e1", OccurredAt: now, Type: "STATUS", Description: "Scanning for wristband"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: "COMMAND", Description: "Command change_mode"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		EventLog: logs,
	}
	r := newTestRouter(s)

	// Missing/invalid 'from' → 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?from=notatime", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range and type (lowercase type should be normalized to upper in service call)
	w = httptest.NewRecorder()
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=command"
	req = httptest.NewRequest(http.MethodGet, q, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                   `json:"count"`
		Events []models.SessionEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "COMMAND" {
		t.Fatalf("expected lastType COMMAND, got %q", logs.lastType)
	}
}

func TestLogsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs?from=2025-08-01&to=2025-08-01", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	wantTo := time.Date(2025, time.August, 1, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastTo.Equal(wantTo) {
		t.Fatalf("lastTo=%v; want %v", logs.lastTo, wantTo)
	}
	if !logs.lastFrom.Equal(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected lastFrom=%v", logs.lastFrom)
	}
}

func TestLogsHandler_RangeAndServiceErrors(t *testing.T) {
	logs := &mockEventLog{err: errors.New("db down")}
	r := newTestRouter(&service.Service{EventLog: logs})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs?from=2025-08-02&to=2025-08-01", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on service error, got %d", w.Code)
	}
}

func TestLogsHandler_TypeAndLimitValidation(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{name: "unknown type", query: "?type=sample", wantCode: http.StatusBadRequest},
		{name: "limit zero ignored", query: "?limit=0", wantCode: http.StatusOK},
		{name: "limit too large", query: "?limit=5000", wantCode: http.StatusBadRequest},
		{name: "limit not a number", query: "?limit=abc", wantCode: http.StatusBadRequest},
		{name: "limit passed through", query: "?type=error&limit=25", wantCode: http.StatusOK, wantLimit: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := &mockEventLog{}
			r := newTestRouter(&service.Service{EventLog: logs})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs"+tt.query, nil))
			if w.Code != tt.wantCode {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				if logs.calls != 0 {
					t.Fatalf("service must not be called on a rejected query")
				}
				return
			}
			if logs.lastLimit != tt.wantLimit {
				t.Fatalf("lastLimit=%d, want %d", logs.lastLimit, tt.wantLimit)
			}
		})
	}
}
