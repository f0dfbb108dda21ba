package domain

import (
	"strings"
	"testing"
	"time"
)

func TestConnection_State(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		conn *Connection
		want CredentialState
	}{
		{"nil connection", nil, StateDisconnected},
		{"inactive", &Connection{IsActive: false, ExpiresAt: now.Add(time.Hour)}, StateDisconnected},
		{"fresh", &Connection{IsActive: true, ExpiresAt: now.Add(time.Hour)}, StateConnected},
		{"inside margin", &Connection{IsActive: true, ExpiresAt: now.Add(time.Minute)}, StateNeedsRefresh},
		{"exactly at margin", &Connection{IsActive: true, ExpiresAt: now.Add(RefreshMargin)}, StateNeedsRefresh},
		{"exactly at expiry", &Connection{IsActive: true, ExpiresAt: now}, StateExpired},
		{"past expiry", &Connection{IsActive: true, ExpiresAt: now.Add(-time.Minute)}, StateExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.conn.State(now); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConnection_ApplyGrantKeepsRefreshToken(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	c := &Connection{AccessToken: "old", RefreshToken: "refresh-1"}

	c.ApplyGrant(&TokenGrant{AccessToken: "new", ExpiresAt: exp})
	if c.AccessToken != "new" || c.RefreshToken != "refresh-1" || !c.ExpiresAt.Equal(exp) {
		t.Errorf("unexpected connection after grant without refresh token: %+v", c)
	}

	c.ApplyGrant(&TokenGrant{AccessToken: "newer", RefreshToken: "refresh-2", ExpiresAt: exp})
	if c.RefreshToken != "refresh-2" {
		t.Errorf("refresh token not rotated: %s", c.RefreshToken)
	}
}

func TestShareToken_ValidateAccess(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		share ShareToken
		want  error
	}{
		{"active and valid", ShareToken{IsActive: true, ExpiresAt: now.Add(time.Hour)}, nil},
		{"expired", ShareToken{IsActive: true, ExpiresAt: now.Add(-time.Second)}, ErrExpired},
		{"revoked before expiry", ShareToken{IsActive: false, ExpiresAt: now.Add(time.Hour)}, ErrNotFound},
		{"revoked and expired", ShareToken{IsActive: false, ExpiresAt: now.Add(-time.Hour)}, ErrNotFound},
		{"expiry instant is still valid", ShareToken{IsActive: true, ExpiresAt: now}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.share.ValidateAccess(now); got != tt.want {
				t.Errorf("ValidateAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyIdentifier(t *testing.T) {
	tests := []struct {
		identifier string
		want       AddressKind
	}{
		{strings.Repeat("a1", 32), AddressToken},
		{strings.Repeat("A1", 32), AddressToken},
		{"abc123-report.pdf", AddressLegacy},
		{"1AbCdEfGhIjK", AddressLegacy},
		{strings.Repeat("a", 64) + "-x", AddressLegacy},
		{"", AddressLegacy},
	}
	for _, tt := range tests {
		if got := ClassifyIdentifier(tt.identifier); got != tt.want {
			t.Errorf("ClassifyIdentifier(%q) = %v, want %v", tt.identifier, got, tt.want)
		}
	}
}

func TestLegacyFileID(t *testing.T) {
	tests := map[string]string{
		"abc123-report.pdf":   "abc123",
		"abc123":              "abc123",
		"abc123-my-file.docx": "abc123",
		"-leading":            "",
	}
	for in, want := range tests {
		if got := LegacyFileID(in); got != want {
			t.Errorf("LegacyFileID(%q) = %q, want %q", in, got, want)
		}
	}
}
