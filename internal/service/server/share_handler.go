package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// shareView is the owner's listing entry for a token
type shareView struct {
	Token         string    `json:"token"`
	FileID        string    `json:"fileId"`
	FileName      string    `json:"fileName"`
	IsLocalFile   bool      `json:"isLocalFile"`
	DownloadCount int64     `json:"downloadCount"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	ShareURL      string    `json:"shareUrl"`
	DownloadURL   string    `json:"downloadUrl"`
}

// ShareHandler handles share token management for the owner
type ShareHandler struct {
	shares Shares
	logger *zap.Logger
}

// NewShareHandler creates a new ShareHandler
func NewShareHandler(shares Shares, logger *zap.Logger) *ShareHandler {
	return &ShareHandler{
		shares: shares,
		logger: logger,
	}
}

// HandleList lists the caller's active tokens
func (h *ShareHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.shares.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	views := make([]shareView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, shareView{
			Token:         t.Token,
			FileID:        t.FileID,
			FileName:      t.FileName,
			IsLocalFile:   t.IsLocalFile,
			DownloadCount: t.DownloadCount,
			CreatedAt:     t.CreatedAt,
			ExpiresAt:     t.ExpiresAt,
			ShareURL:      h.shares.ShareURL(t.Token),
			DownloadURL:   h.shares.DownloadURL(t.Token),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": views})
}

// HandleStats returns stats for one of the caller's tokens
func (h *ShareHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.shares.Stats(r.Context(), UserIDFromContext(r.Context()), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleRevoke deactivates one of the caller's tokens
func (h *ShareHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := h.shares.Revoke(r.Context(), UserIDFromContext(r.Context()), r.PathValue("token")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}
