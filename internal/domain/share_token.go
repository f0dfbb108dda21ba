package domain

import (
	"time"

	"github.com/vertextoedge/estateshare/internal/domain/vo"
)

// ShareToken is a public, expiring, revocable link to a single file.
type ShareToken struct {
	ID            int64
	Token         string
	FileID        string
	UserID        string
	FileName      string
	IsLocalFile   bool
	LocalFilePath string
	ExpiresAt     time.Time
	DownloadCount int64
	IsActive      bool
	CreatedAt     time.Time
}

// GetToken returns the token as a value object
func (s *ShareToken) GetToken() vo.ShareToken {
	st, err := vo.NewShareToken(s.Token)
	if err != nil {
		return vo.EmptyShareToken()
	}
	return st
}

// IsExpired is purely time-derived and independent of IsActive.
func (s *ShareToken) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsOwnedBy returns true if the token was issued by userID.
func (s *ShareToken) IsOwnedBy(userID string) bool {
	return s.UserID == userID
}

// ValidateAccess returns nil if the token can be resolved at now.
// Revocation is checked before expiry so a revoked link never reports as expired.
func (s *ShareToken) ValidateAccess(now time.Time) error {
	if !s.IsActive {
		return ErrNotFound
	}
	if s.IsExpired(now) {
		return ErrExpired
	}
	return nil
}

// Revoke marks the token as permanently unusable.
func (s *ShareToken) Revoke() {
	s.IsActive = false
}

// Stats projects the token for its owner.
func (s *ShareToken) Stats(now time.Time) ShareStats {
	return ShareStats{
		FileName:      s.FileName,
		DownloadCount: s.DownloadCount,
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		IsExpired:     s.IsExpired(now),
		IsActive:      s.IsActive,
	}
}

// ShareStats is the ownership-checked view of a share token.
type ShareStats struct {
	FileName      string    `json:"fileName"`
	DownloadCount int64     `json:"downloadCount"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	IsExpired     bool      `json:"isExpired"`
	IsActive      bool      `json:"isActive"`
}

// IssuedShare is returned to the caller after minting a token.
type IssuedShare struct {
	Token       string    `json:"token"`
	ShareURL    string    `json:"shareUrl"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
