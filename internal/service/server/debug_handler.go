package server

import (
	"net/http"

	"go.uber.org/zap"
)

// DebugHandler handles debug endpoint requests
type DebugHandler struct {
	store   StatusStore
	metrics MetricsSource
	logger  *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(store StatusStore, metrics MetricsSource, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleStats returns store counters and event metrics
func (h *DebugHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{}

	if h.store != nil {
		stats, err := h.store.GetShareStats(r.Context())
		if err != nil {
			h.logger.Error("failed to get share stats", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to get share stats")
			return
		}
		response["store"] = stats
	}
	if h.metrics != nil {
		response["events"] = h.metrics.GetMetrics()
	}

	writeJSON(w, http.StatusOK, response)
}
