package vo

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

// TokenBytes is the amount of randomness in a share token.
const TokenBytes = 32

// TokenLength is the length of the hex-encoded token.
const TokenLength = TokenBytes * 2

// ShareToken is the opaque public identifier of a share link.
type ShareToken struct {
	value string
}

var (
	ErrEmptyToken   = errors.New("share token cannot be empty")
	ErrInvalidToken = errors.New("invalid share token format")
)

// NewShareToken validates and normalizes a token presented by a client.
func NewShareToken(token string) (ShareToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ShareToken{}, ErrEmptyToken
	}
	if !IsValidTokenFormat(token) {
		return ShareToken{}, ErrInvalidToken
	}
	return ShareToken{value: strings.ToLower(token)}, nil
}

// GenerateShareToken returns a fresh cryptographically random token.
func GenerateShareToken() (ShareToken, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ShareToken{}, err
	}
	return ShareToken{value: hex.EncodeToString(buf)}, nil
}

// EmptyShareToken returns an empty ShareToken.
func EmptyShareToken() ShareToken {
	return ShareToken{}
}

// IsValidTokenFormat reports whether s is exactly 64 hex characters (any case).
func IsValidTokenFormat(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// String returns the string representation of the token.
func (st ShareToken) String() string {
	return st.value
}

// IsEmpty returns true if the token is empty.
func (st ShareToken) IsEmpty() bool {
	return st.value == ""
}

// Equals checks if two tokens are equal.
func (st ShareToken) Equals(other ShareToken) bool {
	return st.value == other.value
}

// Masked returns a masked version of the token for logging.
// Shows first 4 and last 4 characters with asterisks in between.
func (st ShareToken) Masked() string {
	return MaskIdentifier(st.value)
}

// MaskIdentifier masks any public identifier for logging.
func MaskIdentifier(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + "****" + s[len(s)-4:]
}
