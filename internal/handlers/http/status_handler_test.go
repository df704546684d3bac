package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pairlink/internal/core/services"
	"pairlink/internal/infrastructure/monitoring"
	"pairlink/internal/infrastructure/repositories/memory"
	"pairlink/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticConnectionCount int

func (s staticConnectionCount) ConnectionCount() int { return int(s) }

func newTestRouter(t *testing.T, health *monitoring.HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	roomService := services.NewRoomService(
		memory.NewMemoryRoomRepository(), zap.NewNop(), 30*time.Minute)

	handler := NewStatusHandler(cfg, roomService, staticConnectionCount(3), health)
	router := gin.New()
	handler.SetupRoutes(router)
	return router
}

func TestHealth_ReportsHealthy(t *testing.T) {
	health := monitoring.NewHealthChecker()
	health.AddCheck("noop", func(ctx context.Context) error { return nil }, time.Second)
	router := newTestRouter(t, health)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status monitoring.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
}

func TestHealth_ReportsUnhealthyCheck(t *testing.T) {
	health := monitoring.NewHealthChecker()
	health.AddCheck("backend", func(ctx context.Context) error {
		return errors.New("connection refused")
	}, time.Second)
	router := newTestRouter(t, health)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatus_ReportsCounts(t *testing.T) {
	router := newTestRouter(t, monitoring.NewHealthChecker())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["rooms"])
	assert.EqualValues(t, 3, body["connections"])
}

func TestICEServers_ReturnsConfiguredList(t *testing.T) {
	router := newTestRouter(t, monitoring.NewHealthChecker())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/ice-servers", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		ICEServers []config.ICEServer `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.ICEServers)
	assert.NotEmpty(t, body.ICEServers[0].URLs)
}
