package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/litmusq-backend/internal/database"
	"github.com/stemsi/litmusq-backend/internal/middleware"
	"github.com/stemsi/litmusq-backend/internal/response"
)

const (
	metricsInterval = 7 * time.Second
	healthTimeout   = 2 * time.Second
)

// DeadlineStats reports the size of the deadline index.
type DeadlineStats interface {
	DeadlineStats(ctx context.Context, now time.Time) (tracked, overdue int64, err error)
}

// QueueLen reports the backlog of the result queue.
type QueueLen interface {
	Len(ctx context.Context) (int64, error)
}

// PoolStats exposes connection pool statistics.
type PoolStats interface {
	Stat() *pgxpool.Stat
}

// SystemHandler streams runtime and worker metrics via SSE.
type SystemHandler struct {
	deadlines DeadlineStats
	results   QueueLen
	pool      PoolStats
	probes    map[string]database.Probe
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. pool may be nil.
// probes are checked by Health.
func NewSystemHandler(deadlines DeadlineStats, results QueueLen, pool PoolStats, probes map[string]database.Probe, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		deadlines: deadlines,
		results:   results,
		pool:      pool,
		probes:    probes,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// PostgreSQL
	DBTotalConns    int32 `json:"db_total_conns"`
	DBIdleConns     int32 `json:"db_idle_conns"`
	DBAcquiredConns int32 `json:"db_acquired_conns"`

	// Workers
	QueueResults    int64 `json:"queue_results"`
	TimedSessions   int64 `json:"timed_sessions"`
	OverdueSessions int64 `json:"overdue_sessions"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	status, ready := database.Readiness(c.Request.Context(), healthTimeout, h.probes)
	if !ready {
		h.log.Warn().Interface("checks", status).Msg("Readiness check failed")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrServiceUnavailable,
			gin.H{"status": "degraded", "checks": status})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok", "checks": status})
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Info().Int("user_id", claims.UserID).Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick
	h.writeMetrics(c)

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	m := h.collect(c.Request.Context())
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	now := time.Now()
	m := systemMetrics{
		Timestamp: now.Unix(),
		Uptime:    formatDuration(now.Sub(h.startTime)),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}

	// ── Go Runtime ──
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.StackInuse = ms.StackInuse
	m.NumGC = ms.NumGC

	// ── Connection Pool ──
	if h.pool != nil {
		st := h.pool.Stat()
		m.DBTotalConns = st.TotalConns()
		m.DBIdleConns = st.IdleConns()
		m.DBAcquiredConns = st.AcquiredConns()
	}

	// ── Worker Backlog ──
	if n, err := h.results.Len(ctx); err == nil {
		m.QueueResults = n
	}
	if tracked, overdue, err := h.deadlines.DeadlineStats(ctx, now); err == nil {
		m.TimedSessions = tracked
		m.OverdueSessions = overdue
	}

	return m
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
