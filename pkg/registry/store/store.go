// Package store persists published manifests for the registry server.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/version"
)

// ErrNotFound is returned when no manifest exists for a package or version.
var ErrNotFound = errors.New("not found")

// Store holds one manifest per (id, version). Ids are case-insensitive.
type Store interface {
	// Versions returns the published versions of id, highest first.
	// An unknown id yields ErrNotFound.
	Versions(ctx context.Context, id string) ([]string, error)

	// Get returns the manifest published as id@version.
	Get(ctx context.Context, id, version string) (*manifest.Manifest, error)

	// Put inserts or replaces the manifest keyed by (m.ID, m.Version).
	// It reports whether the version was new.
	Put(ctx context.Context, m *manifest.Manifest) (created bool, err error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// key returns the storage key for id@ver. Versions are canonicalized so
// "1.2" and "1.2.0" address the same entry.
func key(id, ver string) (string, error) {
	v, err := version.Parse(ver)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id) + "@" + v.Canonical(), nil
}

// sortDesc orders version strings highest first. Unparseable entries are dropped.
func sortDesc(raw []string) []string {
	vs := make([]version.Version, 0, len(raw))
	for _, s := range raw {
		if v, err := version.Parse(s); err == nil {
			vs = append(vs, v)
		}
	}
	version.Sort(vs)
	out := make([]string, len(vs))
	for i, v := range vs {
		out[len(vs)-1-i] = v.String()
	}
	return out
}
