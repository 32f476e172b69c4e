package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
)

const (
	defaultCallsLimit = 50
	maxCallsLimit     = 500
)

type handler struct {
	ctl Controller
	now func() time.Time
}

func newHandler(ctl Controller, now func() time.Time) *handler {
	if now == nil {
		now = time.Now
	}
	return &handler{ctl: ctl, now: now}
}

type terminationRequest struct {
	Type            string `json:"type"`
	DurationSeconds int    `json:"durationSeconds"`
}

type manualControlRequest struct {
	Temperature *float64           `json:"temperature"`
	Power       string             `json:"power"`
	Termination terminationRequest `json:"termination"`
}

type presenceRequest struct {
	Mode string `json:"mode"`
}

type boilerRequest struct {
	Temperature *float64 `json:"temperature"`
}

type offsetRequest struct {
	Offset *float64 `json:"offset"`
}

type meterReadingRequest struct {
	Date    string `json:"date"`
	Reading *int   `json:"reading"`
}

// GET /healthz
func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"hasSnapshot":  h.ctl.Snapshot() != nil,
		"pollInterval": h.ctl.Interval().String(),
	})
}

// GET /api/snapshot
func (h *handler) snapshot(c *gin.Context) {
	snap := h.ctl.Snapshot()
	if snap == nil {
		abort(c, http.StatusServiceUnavailable, "NO_SNAPSHOT", errors.New("no snapshot yet"))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GET /api/quota
func (h *handler) quota(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.Quota())
}

// GET /api/calls?limit=
func (h *handler) calls(c *gin.Context) {
	limit := defaultCallsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxCallsLimit)
	}

	calls, err := h.ctl.RecentCalls(limit)
	if err != nil {
		writeError(c, h.now(), err)
		return
	}
	if calls == nil {
		calls = []models.APICall{}
	}
	c.JSON(http.StatusOK, calls)
}

// POST /api/refresh
func (h *handler) refresh(c *gin.Context) {
	snap, err := h.ctl.RequestRefresh(c.Request.Context())
	if err != nil {
		writeError(c, h.now(), err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// POST /api/rooms/:id/manual
func (h *handler) setManualControl(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}

	var req manualControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid body: %w", err))
		return
	}
	term, err := models.ParseTermination(req.Termination.Type, time.Duration(req.Termination.DurationSeconds)*time.Second)
	if err != nil {
		badRequest(c, err)
		return
	}
	power := req.Power
	if power == "" {
		power = models.PowerOn
	}

	h.command(c, h.ctl.SetRoomManualControl(c.Request.Context(), roomID, power, req.Temperature, term))
}

// DELETE /api/rooms/:id/manual
func (h *handler) resumeSchedule(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	h.command(c, h.ctl.ResumeSchedule(c.Request.Context(), roomID))
}

// POST /api/rooms/:id/boost
func (h *handler) boostRoom(c *gin.Context) {
	roomID, ok := roomParam(c)
	if !ok {
		return
	}
	h.command(c, h.ctl.BoostRoom(c.Request.Context(), roomID))
}

// POST /api/actions/:action
func (h *handler) quickAction(c *gin.Context) {
	ctx := c.Request.Context()
	switch action := c.Param("action"); action {
	case "boost":
		h.command(c, h.ctl.BoostAll(ctx))
	case "all-off":
		h.command(c, h.ctl.AllOff(ctx))
	case "resume":
		h.command(c, h.ctl.ResumeAllSchedules(ctx))
	default:
		abort(c, http.StatusNotFound, "UNKNOWN_ACTION", fmt.Errorf("unknown action %q", action))
	}
}

// PUT /api/presence
func (h *handler) setPresence(c *gin.Context) {
	var req presenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, fmt.Errorf("invalid body: %w", err))
		return
	}
	mode, err := models.ParsePresenceMode(req.Mode)
	if err != nil {
		badRequest(c, err)
		return
	}
	h.command(c, h.ctl.SetPresence(c.Request.Context(), mode))
}

// PUT /api/devices/:serial/boiler
func (h *handler) setBoilerTemperature(c *gin.Context) {
	var req boilerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Temperature == nil {
		badRequest(c, errors.New("body must contain a temperature"))
		return
	}
	h.command(c, h.ctl.SetBoilerTemperature(c.Request.Context(), c.Param("serial"), *req.Temperature))
}

// PUT /api/devices/:serial/offset
func (h *handler) setTemperatureOffset(c *gin.Context) {
	var req offsetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Offset == nil {
		badRequest(c, errors.New("body must contain an offset"))
		return
	}
	h.command(c, h.ctl.SetTemperatureOffset(c.Request.Context(), c.Param("serial"), *req.Offset))
}

// POST /api/meter-readings
func (h *handler) addMeterReading(c *gin.Context) {
	var req meterReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Reading == nil {
		badRequest(c, errors.New("body must contain a date and a reading"))
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid date %q", req.Date))
		return
	}
	h.command(c, h.ctl.AddMeterReading(c.Request.Context(), date, *req.Reading))
}

// PUT /api/tariff
func (h *handler) setTariff(c *gin.Context) {
	var tariff models.Tariff
	if err := c.ShouldBindJSON(&tariff); err != nil {
		badRequest(c, fmt.Errorf("invalid body: %w", err))
		return
	}
	h.command(c, h.ctl.SetTariff(c.Request.Context(), tariff))
}

// command answers 204 on success. The snapshot is not refreshed.
func (h *handler) command(c *gin.Context, err error) {
	if err != nil {
		writeError(c, h.now(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

func roomParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		badRequest(c, fmt.Errorf("invalid room id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}
