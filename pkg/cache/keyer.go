package cache

import "strings"

// Keyer builds cache keys for registry data.
type Keyer interface {
	// ManifestKey generates a key for a published manifest.
	ManifestKey(id, version string) string

	// VersionsKey generates a key for a package's version listing.
	VersionsKey(id string) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard key layout.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ManifestKey returns a key derived from the lower-cased id and the version.
// Package ids are case-insensitive in the registry.
func (DefaultKeyer) ManifestKey(id, version string) string {
	return hashKey("manifest", strings.ToLower(id), version)
}

// VersionsKey returns a key derived from the lower-cased id.
func (DefaultKeyer) VersionsKey(id string) string {
	return hashKey("versions", strings.ToLower(id))
}

var _ Keyer = DefaultKeyer{}
