package domain

import (
	"strings"

	"github.com/vertextoedge/estateshare/internal/domain/vo"
)

// AddressKind is the addressing generation of a public identifier.
type AddressKind int

const (
	// AddressLegacy is a bare provider file id, optionally followed by -<name>.
	AddressLegacy AddressKind = iota
	// AddressToken is an opaque share token.
	AddressToken
)

// String returns the string representation of the kind
func (k AddressKind) String() string {
	if k == AddressToken {
		return "token"
	}
	return "legacy"
}

// ClassifyIdentifier decides once per request which lookup path applies.
func ClassifyIdentifier(identifier string) AddressKind {
	if vo.IsValidTokenFormat(identifier) {
		return AddressToken
	}
	return AddressLegacy
}

// LegacyFileID extracts the provider file id from a legacy identifier.
func LegacyFileID(identifier string) string {
	fileID, _, _ := strings.Cut(identifier, "-")
	return fileID
}
