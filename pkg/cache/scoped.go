package cache

// ScopedKeyer wraps a Keyer with a prefix so that responses from different
// registries never share cache entries.
//
// Example usage:
//
//	// Keys for the public registry
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "qpackages.com:")
//
//	// Keys for a local mirror
//	mirror := NewScopedKeyer(NewDefaultKeyer(), "localhost:8080:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ManifestKey generates a prefixed key for a published manifest.
func (k *ScopedKeyer) ManifestKey(id, version string) string {
	return k.prefix + k.inner.ManifestKey(id, version)
}

// VersionsKey generates a prefixed key for a version listing.
func (k *ScopedKeyer) VersionsKey(id string) string {
	return k.prefix + k.inner.VersionsKey(id)
}
