package http

import (
	"net/http"
	"time"

	"pairlink/internal/core/ports"
	"pairlink/internal/infrastructure/monitoring"
	"pairlink/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConnectionCounter reports the number of live signaling connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

// StatusHandler serves the relay's auxiliary HTTP surface: liveness,
// runtime status, and the ICE server list clients use to configure
// their peer connections.
type StatusHandler struct {
	cfg         *config.Config
	roomService ports.RoomService
	connections ConnectionCounter
	health      *monitoring.HealthChecker
	startedAt   time.Time
}

func NewStatusHandler(cfg *config.Config, roomService ports.RoomService, connections ConnectionCounter, health *monitoring.HealthChecker) *StatusHandler {
	return &StatusHandler{
		cfg:         cfg,
		roomService: roomService,
		connections: connections,
		health:      health,
		startedAt:   time.Now(),
	}
}

func (h *StatusHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
	router.GET("/api/ice-servers", h.ICEServers)

	if h.cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

func (h *StatusHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *StatusHandler) Status(c *gin.Context) {
	roomCount, err := h.roomService.RoomCount(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"rooms":          roomCount,
		"connections":    h.connections.ConnectionCount(),
		"timestamp":      time.Now().Unix(),
	})
}

// ICEServers returns the configured STUN and TURN servers verbatim so
// every client builds peer connections from the same list.
func (h *StatusHandler) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"iceServers": h.cfg.WebRTC.ICEServers,
	})
}
