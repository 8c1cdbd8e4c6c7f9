package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/proficiency-backend/internal/repository"
	"github.com/stemsi/proficiency-backend/internal/response"
)

const probeTimeout = 2 * time.Second

// Pinger is a dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// ContentCounter reports the size of each content pool.
type ContentCounter interface {
	Counts(ctx context.Context) (repository.ContentCounts, error)
}

// QueueDepth reports how many cheating events await persistence.
type QueueDepth interface {
	Depth(ctx context.Context) (int64, error)
}

// SystemHandler serves health probes and a reviewer status snapshot.
type SystemHandler struct {
	deps      map[string]Pinger
	content   ContentCounter
	queue     QueueDepth
	presence  string
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. queue may be nil.
func NewSystemHandler(deps map[string]Pinger, content ContentCounter, queue QueueDepth, presenceBackend string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		deps:      deps,
		content:   content,
		queue:     queue,
		presence:  presenceBackend,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
// 200 when every dependency answers, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	healthy := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = "down"
			healthy = false
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health probe failed")
			continue
		}
		checks[name] = "up"
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

type systemStatus struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// Engine
	PresenceBackend string                    `json:"presence_backend"`
	ContentPools    *repository.ContentCounts `json:"content_pools,omitempty"`
	QueueCheats     *int64                    `json:"queue_cheats,omitempty"`
}

// Status godoc
// GET /api/v1/reviewer/system/status
// Runtime stats, content pool sizes and the cheat queue backlog.
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	s := systemStatus{
		Timestamp:       time.Now().Unix(),
		Uptime:          time.Since(h.startTime).Round(time.Second).String(),
		GoVersion:       runtime.Version(),
		NumCPU:          runtime.NumCPU(),
		PresenceBackend: h.presence,
	}

	// ── Go Runtime ──
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAlloc = ms.HeapAlloc
	s.HeapSys = ms.Sys
	s.NumGC = ms.NumGC

	// ── Content pools ──
	if counts, err := h.content.Counts(ctx); err == nil {
		s.ContentPools = &counts
	} else {
		h.log.Warn().Err(err).Msg("Content counts unavailable")
	}

	// ── Worker queue ──
	if h.queue != nil {
		if depth, err := h.queue.Depth(ctx); err == nil {
			s.QueueCheats = &depth
		}
	}

	response.Success(c, http.StatusOK, s)
}
