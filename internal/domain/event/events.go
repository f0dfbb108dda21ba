package event

import (
	"time"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time `json:"occurredAt"`
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

const (
	NameConnectionEstablished = "connection.established"
	NameConnectionRefreshed   = "connection.refreshed"
	NameConnectionExpired     = "connection.expired"
	NameConnectionRemoved     = "connection.removed"
	NameShareIssued           = "share.issued"
	NameShareRevoked          = "share.revoked"
	NameShareResolved         = "share.resolved"
)

// ConnectionEstablished is raised after a successful connect
type ConnectionEstablished struct {
	BaseEvent
	UserID       string `json:"userId"`
	AccountLabel string `json:"accountLabel,omitempty"`
	Reconnect    bool   `json:"reconnect"`
}

// EventName returns the event name
func (e ConnectionEstablished) EventName() string { return NameConnectionEstablished }

// NewConnectionEstablished creates a new ConnectionEstablished event
func NewConnectionEstablished(at time.Time, userID, accountLabel string, reconnect bool) ConnectionEstablished {
	return ConnectionEstablished{
		BaseEvent:    BaseEvent{Timestamp: at},
		UserID:       userID,
		AccountLabel: accountLabel,
		Reconnect:    reconnect,
	}
}

// ConnectionRefreshed is raised when an access token was renewed
type ConnectionRefreshed struct {
	BaseEvent
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	Rotated   bool      `json:"refreshTokenRotated"`
}

// EventName returns the event name
func (e ConnectionRefreshed) EventName() string { return NameConnectionRefreshed }

// NewConnectionRefreshed creates a new ConnectionRefreshed event
func NewConnectionRefreshed(at time.Time, userID string, expiresAt time.Time, rotated bool) ConnectionRefreshed {
	return ConnectionRefreshed{
		BaseEvent: BaseEvent{Timestamp: at},
		UserID:    userID,
		ExpiresAt: expiresAt,
		Rotated:   rotated,
	}
}

// ConnectionExpired is raised when a credential can no longer be refreshed
type ConnectionExpired struct {
	BaseEvent
	UserID      string `json:"userId"`
	Reason      string `json:"reason"`
	Deactivated bool   `json:"deactivated"`
}

// EventName returns the event name
func (e ConnectionExpired) EventName() string { return NameConnectionExpired }

// NewConnectionExpired creates a new ConnectionExpired event
func NewConnectionExpired(at time.Time, userID, reason string, deactivated bool) ConnectionExpired {
	return ConnectionExpired{
		BaseEvent:   BaseEvent{Timestamp: at},
		UserID:      userID,
		Reason:      reason,
		Deactivated: deactivated,
	}
}

// ConnectionRemoved is raised after disconnect
type ConnectionRemoved struct {
	BaseEvent
	UserID  string `json:"userId"`
	Revoked bool   `json:"revokedAtProvider"`
}

// EventName returns the event name
func (e ConnectionRemoved) EventName() string { return NameConnectionRemoved }

// NewConnectionRemoved creates a new ConnectionRemoved event
func NewConnectionRemoved(at time.Time, userID string, revoked bool) ConnectionRemoved {
	return ConnectionRemoved{
		BaseEvent: BaseEvent{Timestamp: at},
		UserID:    userID,
		Revoked:   revoked,
	}
}

// ShareIssued is raised when a share token is minted. Token is masked.
type ShareIssued struct {
	BaseEvent
	UserID    string    `json:"userId"`
	FileID    string    `json:"fileId"`
	Token     string    `json:"token"`
	IsLocal   bool      `json:"isLocal"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EventName returns the event name
func (e ShareIssued) EventName() string { return NameShareIssued }

// NewShareIssued creates a new ShareIssued event
func NewShareIssued(at time.Time, userID, fileID, maskedToken string, isLocal bool, expiresAt time.Time) ShareIssued {
	return ShareIssued{
		BaseEvent: BaseEvent{Timestamp: at},
		UserID:    userID,
		FileID:    fileID,
		Token:     maskedToken,
		IsLocal:   isLocal,
		ExpiresAt: expiresAt,
	}
}

// ShareRevoked is raised when the owner revokes a token. Token is masked.
type ShareRevoked struct {
	BaseEvent
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// EventName returns the event name
func (e ShareRevoked) EventName() string { return NameShareRevoked }

// NewShareRevoked creates a new ShareRevoked event
func NewShareRevoked(at time.Time, userID, maskedToken string) ShareRevoked {
	return ShareRevoked{
		BaseEvent: BaseEvent{Timestamp: at},
		UserID:    userID,
		Token:     maskedToken,
	}
}

// ShareResolved is raised after a public identifier was served
type ShareResolved struct {
	BaseEvent
	Kind          string `json:"kind"`
	FileID        string `json:"fileId"`
	Token         string `json:"token,omitempty"`
	IsLocal       bool   `json:"isLocal"`
	Size          int64  `json:"size"`
	DownloadCount int64  `json:"downloadCount"`
}

// EventName returns the event name
func (e ShareResolved) EventName() string { return NameShareResolved }

// NewShareResolved creates a new ShareResolved event
func NewShareResolved(at time.Time, kind, fileID, maskedToken string, isLocal bool, size, downloadCount int64) ShareResolved {
	return ShareResolved{
		BaseEvent:     BaseEvent{Timestamp: at},
		Kind:          kind,
		FileID:        fileID,
		Token:         maskedToken,
		IsLocal:       isLocal,
		Size:          size,
		DownloadCount: downloadCount,
	}
}
