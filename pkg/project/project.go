// Package project maps a project root to the files nativepkg reads and
// writes: the manifest, the lock file, the three derived build files and the
// dependencies directory.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/nativepkg/pkg/buildfile"
	"github.com/matzehuels/nativepkg/pkg/ideconfig"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/modinfo"
)

const (
	// DefaultDependenciesDir is used when the manifest names none.
	DefaultDependenciesDir = "extern"

	// DefaultSharedDir is used by "create" when no shared dir is given.
	DefaultSharedDir = "shared"

	// LibsDir is the subdirectory of the dependencies dir holding binaries.
	LibsDir = "libs"
)

// Project is a package checkout rooted at Root.
type Project struct {
	Root string
}

// New returns the project rooted at root.
func New(root string) *Project {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return &Project{Root: abs}
}

// Find walks up from start until it finds a directory with a manifest.
func Find(start string) (*Project, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return nil, err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, manifest.FileName)); err == nil {
			return &Project{Root: dir}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("no %s found in %s or any parent directory", manifest.FileName, start)
		}
		dir = parent
	}
}

func (p *Project) ManifestPath() string  { return filepath.Join(p.Root, manifest.FileName) }
func (p *Project) LockPath() string      { return filepath.Join(p.Root, manifest.LockFileName) }
func (p *Project) BuildFilePath() string { return filepath.Join(p.Root, buildfile.FileName) }
func (p *Project) IDEConfigPath() string { return ideconfig.Path(p.Root) }
func (p *Project) ModInfoPath() string   { return modinfo.Path(p.Root) }

// LoadManifest reads and validates the project manifest.
func (p *Project) LoadManifest() (*manifest.Manifest, error) {
	m, err := manifest.Load(p.ManifestPath())
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadLock reads the lock file; a missing lock file is empty.
func (p *Project) LoadLock() (*manifest.LockFile, error) {
	return manifest.LoadLock(p.LockPath())
}

// DependenciesDir returns the manifest's dependencies dir relative to the
// root, falling back to [DefaultDependenciesDir].
func DependenciesDir(m *manifest.Manifest) string {
	if m == nil || m.DependenciesDir == "" {
		return DefaultDependenciesDir
	}
	return filepath.ToSlash(filepath.Clean(m.DependenciesDir))
}

// BinaryRel is the root-relative path of a placed dependency binary, as it
// appears in the build descriptor.
func BinaryRel(m *manifest.Manifest, name string) string {
	return DependenciesDir(m) + "/" + LibsDir + "/" + name
}

// IncludeRel is the root-relative include directory exported for a
// dependency.
func IncludeRel(m *manifest.Manifest, id string) string {
	return DependenciesDir(m) + "/" + id
}

// BinaryPath is the absolute destination of a placed dependency binary.
func (p *Project) BinaryPath(m *manifest.Manifest, name string) string {
	return filepath.Join(p.Root, filepath.FromSlash(BinaryRel(m, name)))
}

// Dir resolves a root-relative directory.
func (p *Project) Dir(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// TempCacheDir is the machine-wide download cache shared by every project.
func TempCacheDir() string {
	return filepath.Join(os.TempDir(), "nativepkg")
}
