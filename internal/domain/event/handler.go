package event

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case ConnectionEstablished:
		h.logger.Info("remote storage connected",
			zap.String("user_id", e.UserID),
			zap.String("account", e.AccountLabel),
			zap.Bool("reconnect", e.Reconnect),
		)
	case ConnectionRefreshed:
		h.logger.Debug("access token refreshed",
			zap.String("user_id", e.UserID),
			zap.Time("expires_at", e.ExpiresAt),
			zap.Bool("rotated", e.Rotated),
		)
	case ConnectionExpired:
		h.logger.Warn("remote storage credential expired",
			zap.String("user_id", e.UserID),
			zap.String("reason", e.Reason),
			zap.Bool("deactivated", e.Deactivated),
		)
	case ConnectionRemoved:
		h.logger.Info("remote storage disconnected",
			zap.String("user_id", e.UserID),
			zap.Bool("revoked", e.Revoked),
		)
	case ShareIssued:
		h.logger.Info("share token issued",
			zap.String("user_id", e.UserID),
			zap.String("file_id", e.FileID),
			zap.String("token", e.Token),
			zap.Bool("local", e.IsLocal),
			zap.Time("expires_at", e.ExpiresAt),
		)
	case ShareRevoked:
		h.logger.Info("share token revoked",
			zap.String("user_id", e.UserID),
			zap.String("token", e.Token),
		)
	case ShareResolved:
		h.logger.Debug("share resolved",
			zap.String("kind", e.Kind),
			zap.String("file_id", e.FileID),
			zap.String("token", e.Token),
			zap.Bool("local", e.IsLocal),
			zap.Int64("download_count", e.DownloadCount),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{"*"}
}

// MetricsHandler collects counters from events
type MetricsHandler struct {
	connectionsEstablished atomic.Int64
	tokensRefreshed        atomic.Int64
	credentialsExpired     atomic.Int64
	connectionsRemoved     atomic.Int64
	sharesIssued           atomic.Int64
	sharesRevoked          atomic.Int64
	tokenResolutions       atomic.Int64
	legacyResolutions      atomic.Int64
	bytesServed            atomic.Int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case ConnectionEstablished:
		h.connectionsEstablished.Add(1)
	case ConnectionRefreshed:
		h.tokensRefreshed.Add(1)
	case ConnectionExpired:
		h.credentialsExpired.Add(1)
	case ConnectionRemoved:
		h.connectionsRemoved.Add(1)
	case ShareIssued:
		h.sharesIssued.Add(1)
	case ShareRevoked:
		h.sharesRevoked.Add(1)
	case ShareResolved:
		if e.Kind == "legacy" {
			h.legacyResolutions.Add(1)
		} else {
			h.tokenResolutions.Add(1)
		}
		if e.Size > 0 {
			h.bytesServed.Add(e.Size)
		}
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		NameConnectionEstablished,
		NameConnectionRefreshed,
		NameConnectionExpired,
		NameConnectionRemoved,
		NameShareIssued,
		NameShareRevoked,
		NameShareResolved,
	}
}

// GetMetrics returns current metrics
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	return map[string]int64{
		"connections_established": h.connectionsEstablished.Load(),
		"tokens_refreshed":        h.tokensRefreshed.Load(),
		"credentials_expired":     h.credentialsExpired.Load(),
		"connections_removed":     h.connectionsRemoved.Load(),
		"shares_issued":           h.sharesIssued.Load(),
		"shares_revoked":          h.sharesRevoked.Load(),
		"token_resolutions":       h.tokenResolutions.Load(),
		"legacy_resolutions":      h.legacyResolutions.Load(),
		"bytes_served":            h.bytesServed.Load(),
	}
}
