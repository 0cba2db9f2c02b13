package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"bvp_relay/internal/models"
	"bvp_relay/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errRange       = "'from' must be <= 'to'"
	errEventType   = "unknown event type"
	errListLogs    = "failed to load logs"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var eventTypes = []string{
	models.EventStatus,
	models.EventDiscovery,
	models.EventTransport,
	models.EventCommand,
	models.EventError,
}

// logsQuery is the bound query string of GET /api/v1/logs.
type logsQuery struct {
	From  string `form:"from"`
	To    string `form:"to"`
	Type  string `form:"type"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// filter turns the raw query into a LogFilter. The returned string is the
// client-facing message when the query is rejected.
func (q logsQuery) filter() (service.LogFilter, string) {
	var f service.LogFilter
	var err error

	if q.From != "" {
		if f.From, err = parseQueryTime(q.From); err != nil {
			return f, errFromInvalid
		}
	}
	if q.To != "" {
		if f.To, err = parseQueryTime(q.To); err != nil {
			return f, errToInvalid
		}
		// a bare date covers the whole day
		if !strings.ContainsAny(q.To, "T ") {
			f.To = f.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errRange
	}

	f.Type = strings.ToUpper(strings.TrimSpace(q.Type))
	if f.Type != "" && !slices.Contains(eventTypes, f.Type) {
		return f, errEventType
	}
	f.Limit = q.Limit
	return f, ""
}

// @Summary      List session events
// @Description  Session events in time order. 'from' and 'to' accept RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' covers the whole day. 'limit' keeps the most recent events.
// @Tags         logs
// @Produce      json
// @Param        from   query   string  false  "Start of range"  example(2025-08-01)
// @Param        to     query   string  false  "End of range, inclusive"  example(2025-08-31)
// @Param        type   query   string  false  "Event type"  Enums(STATUS,DISCOVERY,TRANSPORT,COMMAND,ERROR)
// @Param        limit  query   int     false  "Keep only the last N events (1-1000)"
// @Success      200    {object}  map[string]interface{}  "count, events"
// @Failure      400    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/logs [get]
func (h *Handler) getLogs(c *gin.Context) {
	var q logsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}
	f, msg := q.filter()
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListLogs, "logs_list_failed", err,
			"from", f.From, "to", f.To, "type", f.Type)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// parseQueryTime accepts RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD' and
// returns UTC.
func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
