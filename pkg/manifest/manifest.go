// Package manifest models a package manifest (nativepkg.toml) and the lock
// file (nativepkg.lock) that records its resolved dependency closure.
//
// On disk both files are TOML. On the registry wire a manifest is JSON with
// the same field names.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/fsutil"
	"github.com/matzehuels/nativepkg/pkg/version"
)

// FileName is the manifest file name at the project root.
const FileName = "nativepkg.toml"

// Manifest describes a package: identity, version, layout and dependencies.
type Manifest struct {
	ID              string           `toml:"id" json:"id"`
	Version         string           `toml:"version" json:"version"`
	Name            string           `toml:"name,omitempty" json:"name,omitempty"`
	SharedDir       string           `toml:"sharedDir,omitempty" json:"sharedDir,omitempty"`
	DependenciesDir string           `toml:"dependenciesDir,omitempty" json:"dependenciesDir,omitempty"`
	Dependencies    []DependencySpec `toml:"dependencies,omitempty" json:"dependencies,omitempty"`
	ExtensionData   ExtensionData    `toml:"extensionData,omitempty" json:"extensionData,omitempty"`
}

// DependencySpec is one declared dependency.
type DependencySpec struct {
	ID            string        `toml:"id" json:"id"`
	VersionRange  string        `toml:"versionRange,omitempty" json:"versionRange,omitempty"`
	ExtensionData ExtensionData `toml:"extensionData,omitempty" json:"extensionData,omitempty"`
}

// Range returns the declared range, or [version.Any] when none is set.
func (d DependencySpec) Range() string {
	if strings.TrimSpace(d.VersionRange) == "" {
		return version.Any
	}
	return d.VersionRange
}

// UseRelease reports whether the dependency asks for the release binary instead of
// the debug one.
func (d DependencySpec) UseRelease() (bool, error) {
	v, _, err := d.ExtensionData.GetBool(KeyUseRelease)
	return v, err
}

// Clone returns a deep copy.
func (d DependencySpec) Clone() DependencySpec {
	d.ExtensionData = d.ExtensionData.Clone()
	return d
}

// HeadersOnly reports whether the package ships no binary.
func (m *Manifest) HeadersOnly() (bool, error) {
	v, _, err := m.ExtensionData.GetBool(KeyHeadersOnly)
	return v, err
}

// SoLink returns the release binary URL, if any.
func (m *Manifest) SoLink() (string, error) {
	v, _, err := m.ExtensionData.GetString(KeySoLink)
	return v, err
}

// DebugSoLink returns the debug binary URL, if any.
func (m *Manifest) DebugSoLink() (string, error) {
	v, _, err := m.ExtensionData.GetString(KeyDebugSoLink)
	return v, err
}

// OverrideSoName returns the explicit binary file name, if any.
func (m *Manifest) OverrideSoName() (string, error) {
	v, _, err := m.ExtensionData.GetString(KeyOverrideSoName)
	return v, err
}

// Dependency returns the declaration for id (case-insensitive) and its index, or
// -1 when the manifest does not declare it.
func (m *Manifest) Dependency(id string) (*DependencySpec, int) {
	for i := range m.Dependencies {
		if strings.EqualFold(m.Dependencies[i].ID, id) {
			return &m.Dependencies[i], i
		}
	}
	return nil, -1
}

// SetDependency adds spec, or replaces the existing spec with the same id in
// place. It reports whether an existing spec was replaced.
func (m *Manifest) SetDependency(spec DependencySpec) bool {
	if _, i := m.Dependency(spec.ID); i >= 0 {
		m.Dependencies[i] = spec
		return true
	}
	m.Dependencies = append(m.Dependencies, spec)
	return false
}

// RemoveDependency deletes the declaration for id. It reports whether one was removed.
func (m *Manifest) RemoveDependency(id string) bool {
	_, i := m.Dependency(id)
	if i < 0 {
		return false
	}
	m.Dependencies = append(m.Dependencies[:i], m.Dependencies[i+1:]...)
	return true
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	out.ExtensionData = m.ExtensionData.Clone()
	if m.Dependencies != nil {
		out.Dependencies = make([]DependencySpec, len(m.Dependencies))
		for i, d := range m.Dependencies {
			out.Dependencies[i] = d.Clone()
		}
	}
	return &out
}

// Validate checks the manifest invariants: a valid id, a semantic version,
// parseable ranges and pairwise-unique dependency ids. All problems are
// reported together.
func (m *Manifest) Validate() error {
	var problems []string

	if err := nperrors.ValidatePackageID(m.ID); err != nil {
		problems = append(problems, nperrors.UserMessage(err))
	}
	if !version.IsValid(m.Version) {
		problems = append(problems, fmt.Sprintf("invalid version %q", m.Version))
	}
	for _, dir := range []struct{ name, path string }{
		{"sharedDir", m.SharedDir},
		{"dependenciesDir", m.DependenciesDir},
	} {
		if dir.path == "" {
			continue
		}
		if err := nperrors.ValidatePath(dir.path); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", dir.name, nperrors.UserMessage(err)))
		}
	}

	seen := make(map[string]bool, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if err := nperrors.ValidatePackageID(d.ID); err != nil {
			problems = append(problems, fmt.Sprintf("dependency %q: %s", d.ID, nperrors.UserMessage(err)))
			continue
		}
		key := strings.ToLower(d.ID)
		if seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate dependency %q", d.ID))
		}
		seen[key] = true
		if _, err := version.ParseRange(d.VersionRange); err != nil {
			problems = append(problems, fmt.Sprintf("dependency %q: %v", d.ID, err))
		}
	}

	if len(problems) > 0 {
		return nperrors.New(nperrors.ErrCodeInvalidManifest, "%s", strings.Join(problems, "; "))
	}
	return nil
}

// Parse decodes a TOML manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, nperrors.Wrap(nperrors.ErrCodeInvalidManifest, err, "parse manifest")
	}
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Encode returns the TOML encoding of the manifest.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the manifest to path atomically.
func (m *Manifest) Save(path string) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := fsutil.WriteIfChanged(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func (m *Manifest) normalize() error {
	if err := m.ExtensionData.Normalize(); err != nil {
		return err
	}
	for i := range m.Dependencies {
		if err := m.Dependencies[i].ExtensionData.Normalize(); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeExtensions folds decoded extension values into the supported kinds.
// Callers that decode manifests from JSON use it before reading typed keys.
func (m *Manifest) NormalizeExtensions() error { return m.normalize() }
