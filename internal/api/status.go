package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/potooio/ondeath/internal/correlator"
	"github.com/potooio/ondeath/internal/types"
)

// StatsSource reports correlator counters.
type StatsSource interface {
	Stats() correlator.Stats
}

// PlayerSource lists connected players.
type PlayerSource interface {
	Connected() []types.Player
}

// StatusResponse is the wire format for GET /api/v1/status.
type StatusResponse struct {
	Correlator  correlator.Stats `json:"correlator"`
	Subscribers []string         `json:"subscribers"`
	Players     []types.Player   `json:"players"`
}

// StatusHandler handles GET /api/v1/status.
type StatusHandler struct {
	logger  *zap.Logger
	stats   StatsSource
	subs    SubscriptionManager
	players PlayerSource
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(stats StatsSource, subs SubscriptionManager, players PlayerSource, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		logger:  logger.Named("status"),
		stats:   stats,
		subs:    subs,
		players: players,
	}
}

// ServeHTTP implements http.Handler.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StatusResponse{
		Correlator:  h.stats.Stats(),
		Subscribers: nonNil(h.subs.Names()),
		Players:     h.players.Connected(),
	}
	if response.Players == nil {
		response.Players = []types.Player{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

// HealthHandler handles GET /healthz.
type HealthHandler struct {
	logger *zap.Logger
	stats  StatsSource
	subs   SubscriptionManager
	// stale is how long the correlator may go without a completed cycle
	// while it has subscribers before it is reported degraded.
	stale time.Duration
	now   func() time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(stats StatsSource, subs SubscriptionManager, stale time.Duration, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger.Named("health"),
		stats:  stats,
		subs:   subs,
		stale:  stale,
		now:    time.Now,
	}
}

// HealthResponse is the response for the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"` // healthy, idle, degraded
	LastCycle string `json:"lastCycle,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ServeHTTP implements http.Handler.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := h.now()
	stats := h.stats.Stats()
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	if !stats.LastCycle.IsZero() {
		response.LastCycle = stats.LastCycle.UTC().Format(time.RFC3339)
	}

	code := http.StatusOK
	switch {
	case len(h.subs.Names()) == 0:
		response.Status = "idle"
	case h.stale > 0 && !stats.LastCycle.IsZero() && now.Sub(stats.LastCycle) > h.stale:
		response.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
