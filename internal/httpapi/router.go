// Package httpapi exposes the snapshot, quota and command surface over a
// local JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

// Controller is the manager surface the API needs.
type Controller interface {
	Snapshot() *models.Snapshot
	Quota() quota.Status
	Interval() time.Duration
	RecentCalls(limit int) ([]models.APICall, error)
	RequestRefresh(ctx context.Context) (*models.Snapshot, error)

	SetRoomManualControl(ctx context.Context, roomID int, power string, temperature *float64, term models.Termination) error
	ResumeSchedule(ctx context.Context, roomID int) error
	BoostRoom(ctx context.Context, roomID int) error
	BoostAll(ctx context.Context) error
	AllOff(ctx context.Context) error
	ResumeAllSchedules(ctx context.Context) error
	SetPresence(ctx context.Context, mode models.PresenceMode) error
	SetBoilerTemperature(ctx context.Context, serial string, celsius float64) error
	SetTemperatureOffset(ctx context.Context, serial string, offset float64) error
	AddMeterReading(ctx context.Context, date time.Time, reading int) error
	SetTariff(ctx context.Context, tariff models.Tariff) error
}

// RouterConfig holds dependencies for the API router.
type RouterConfig struct {
	Controller Controller
	Metrics    http.Handler
	Now        func() time.Time
}

// NewRouter creates and configures the gin router.
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(requestID())
	router.Use(recovery())
	router.Use(logging())

	h := newHandler(config.Controller, config.Now)

	router.GET("/healthz", h.health)
	if config.Metrics != nil {
		router.GET("/metrics", gin.WrapH(config.Metrics))
	}

	api := router.Group("/api")
	{
		api.GET("/snapshot", h.snapshot)
		api.GET("/quota", h.quota)
		api.GET("/calls", h.calls)
		api.POST("/refresh", h.refresh)

		api.POST("/rooms/:id/manual", h.setManualControl)
		api.DELETE("/rooms/:id/manual", h.resumeSchedule)
		api.POST("/rooms/:id/boost", h.boostRoom)
		api.POST("/actions/:action", h.quickAction)
		api.PUT("/presence", h.setPresence)

		api.PUT("/devices/:serial/boiler", h.setBoilerTemperature)
		api.PUT("/devices/:serial/offset", h.setTemperatureOffset)

		api.POST("/meter-readings", h.addMeterReading)
		api.PUT("/tariff", h.setTariff)
	}

	return router
}
