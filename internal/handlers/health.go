package handlers

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// Pinger reports connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health for probes
type HealthHandler struct {
	db        *sqlx.DB
	redis     Pinger
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sqlx.DB, redis Pinger, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		redis:     redis,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Register registers health check endpoints
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/api/v1/health", h.Health)
	e.GET("/api/v1/health/live", h.Live)
	e.GET("/api/v1/health/ready", h.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status
func (h *HealthHandler) Health(c echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	if h.db != nil {
		start := time.Now()
		err := h.db.Ping()
		latency := time.Since(start)

		if err != nil {
			status.Status = "unhealthy"
			status.Checks["database"] = &CheckResult{Status: "unhealthy", Message: err.Error()}
		} else {
			status.Checks["database"] = &CheckResult{Status: "healthy", Latency: latency.String()}
		}
	} else {
		status.Status = "unhealthy"
		status.Checks["database"] = &CheckResult{Status: "unhealthy", Message: "database not configured"}
	}

	if h.redis != nil {
		start := time.Now()
		err := h.redis.Ping(c.Request().Context())
		latency := time.Since(start)

		if err != nil {
			status.Status = "unhealthy"
			status.Checks["redis"] = &CheckResult{Status: "unhealthy", Message: err.Error()}
		} else {
			status.Checks["redis"] = &CheckResult{Status: "healthy", Latency: latency.String()}
		}
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, status)
}

// Live returns the liveness status (is the service running)
func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (h *HealthHandler) Ready(c echo.Context) error {
	if h.ready.Load() {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}
