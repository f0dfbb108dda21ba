package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
)

type errorResponse struct {
	Error          string `json:"error"`
	NeedsReconnect bool   `json:"needsReconnect,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors to HTTP responses
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case domain.NeedsReconnect(err):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), NeedsReconnect: true})
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, "Share link has expired")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		if after, ok := domain.GetRetryAfter(err); ok {
			setRetryAfter(w, after)
		}
		logger.Warn("remote storage unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Remote storage is temporarily unavailable")
	case errors.Is(err, domain.ErrAuthExchange):
		logger.Error("authorization failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to connect remote storage")
	case errors.Is(err, domain.ErrFileNotAccessible):
		logger.Error("file not accessible", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "File is not accessible")
	default:
		logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
