package handlers

import (
	"errors"
	"io"
	"net/http"

	"bvp_relay/internal/models"
	"bvp_relay/internal/sensor"
	"bvp_relay/internal/service"
	"bvp_relay/internal/transport"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK            = "ok"
	statusConnecting    = "connecting"
	statusDisconnected  = "disconnected"
	statusNotConnected  = "not_connected"
	statusQueued        = "queued"
	statusDropped       = "dropped"
	statusScanning      = "scanning"
	statusDisconnecting = "disconnecting"

	errGetState         = "failed to load state"
	errGetModes         = "failed to load modes"
	errConnectServer    = "failed to connect to server"
	errScanSensor       = "failed to start sensor scan"
	errDisconnectSensor = "failed to disconnect sensor"
	errInvalidBodyPref  = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// statusForError maps operator mistakes to 400 and everything else to 500.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyMode),
		errors.Is(err, service.ErrUnknownMode),
		errors.Is(err, service.ErrNoEndpoint),
		errors.Is(err, transport.ErrInvalidEndpoint),
		errors.Is(err, sensor.ErrMissingAPIKey):
		return http.StatusBadRequest
	case errors.Is(err, sensor.ErrNotAuthenticated):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Respond with a status and include current state if available (best-effort).
func (h *Handler) respondWithStatusAndState(c *gin.Context, status string, extra gin.H) {
	ctx := c.Request.Context()
	resp := gin.H{"status": status}
	for k, v := range extra {
		resp[k] = v
	}
	st, err := h.services.Monitoring.GetState(ctx)
	if err == nil {
		resp["state"] = st
	}
	c.JSON(http.StatusOK, resp)
}

// sentStatus names the outcome of a fire-and-forget command.
func sentStatus(sent bool) string {
	if sent {
		return statusQueued
	}
	return statusDropped
}

// Request DTO for connecting to the analysis server.
type connectRequest struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ConnectRequest is an exported model for Swagger docs of the connect payload.
type ConnectRequest struct {
	// Analysis server host; omit host and port to reuse the last endpoint
	Host string `json:"host" example:"192.168.1.20"`
	// Analysis server port (1-65535)
	Port int `json:"port" example:"8765"`
}

// Request DTO for selecting a mode.
type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// SelectModeRequest is an exported model for Swagger docs of the selectMode payload.
type SelectModeRequest struct {
	// One of the modes reported by the server
	Mode string `json:"mode" example:"relaxed"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get session state
// @Description  Sensor status, battery, modes, calibration and server connection
// @Tags         session
// @Produce      json
// @Success      200  {object}  models.SessionState
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/state [get]
func (h *Handler) getState(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "session_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Connect to analysis server
// @Description  Replaces any current server session. An empty body reuses the last endpoint, then the configured one.
// @Tags         transport
// @Accept       json
// @Produce      json
// @Param        body  body      ConnectRequest  false  "Server endpoint"
// @Success      200   {object}  map[string]interface{}  "status, endpoint, state"
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/transport/connect [post]
func (h *Handler) connectServer(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	ctx := c.Request.Context()
	ep, err := h.services.Operator.ConnectServer(ctx, models.Endpoint{Host: req.Host, Port: req.Port})
	if err != nil {
		code := statusForError(err)
		msg := errConnectServer
		if code == http.StatusBadRequest {
			msg = err.Error()
		}
		h.logAndJSONError(c, code, msg, "transport_connect_failed", err, "host", req.Host, "port", req.Port)
		return
	}
	h.respondWithStatusAndState(c, statusConnecting, gin.H{"endpoint": ep.Address()})
}

// @Summary      Restart server analysis
// @Tags         transport
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/transport/restart [post]
func (h *Handler) restartServer(c *gin.Context) {
	sent := h.services.Operator.RestartServer()
	h.respondWithStatusAndState(c, sentStatus(sent), gin.H{"command": models.CommandRestart})
}

// @Summary      Disconnect from analysis server
// @Tags         transport
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/transport/disconnect [post]
func (h *Handler) disconnectServer(c *gin.Context) {
	status := statusNotConnected
	if h.services.Operator.DisconnectServer() {
		status = statusDisconnected
	}
	h.respondWithStatusAndState(c, status, gin.H{})
}

// @Summary      Scan for the wristband
// @Description  Authenticates with the sensor SDK; scanning starts once it reports ready
// @Tags         sensor
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sensor/scan [post]
func (h *Handler) scanSensor(c *gin.Context) {
	if err := h.services.Operator.Scan(); err != nil {
		code := statusForError(err)
		msg := errScanSensor
		if code != http.StatusInternalServerError {
			msg = err.Error()
		}
		h.logAndJSONError(c, code, msg, "sensor_scan_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusScanning, gin.H{})
}

// @Summary      Disconnect the wristband
// @Tags         sensor
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/sensor/disconnect [post]
func (h *Handler) disconnectSensor(c *gin.Context) {
	if err := h.services.Operator.DisconnectSensor(); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errDisconnectSensor, "sensor_disconnect_failed", err)
		return
	}
	h.respondWithStatusAndState(c, statusDisconnecting, gin.H{})
}

// @Summary      List server modes
// @Description  Modes as last reported by the analysis server
// @Tags         modes
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, modes"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/modes [get]
func (h *Handler) getModes(c *gin.Context) {
	modes, err := h.services.Monitoring.Modes(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetModes, "modes_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(modes),
		"modes": modes,
	})
}

// @Summary      Ask the server for its modes
// @Tags         modes
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/modes/refresh [post]
func (h *Handler) refreshModes(c *gin.Context) {
	sent := h.services.Operator.ListModes()
	h.respondWithStatusAndState(c, sentStatus(sent), gin.H{"command": models.CommandListModes})
}

// @Summary      Select a server mode
// @Tags         modes
// @Accept       json
// @Produce      json
// @Param        body  body      SelectModeRequest  true  "Mode payload"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/v1/modes/select [post]
func (h *Handler) selectMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	sent, err := h.services.Operator.SetMode(req.Mode)
	if err != nil {
		h.logAndJSONError(c, statusForError(err), err.Error(), "mode_select_failed", err, "mode", req.Mode)
		return
	}
	h.respondWithStatusAndState(c, sentStatus(sent), gin.H{"mode": req.Mode})
}
