// Package syncer keeps the derived build files consistent with the manifest.
//
// A [Synchronizer] handles every lifecycle event by editing each derived file
// that exists on disk: the build descriptor (Android.mk), the IDE
// include-path descriptor (.vscode/c_cpp_properties.json) and the packaging
// metadata (mod.json). Each edit is idempotent and a file is rewritten only
// when its content changes. Missing files are skipped; a file that cannot be
// parsed is logged and skipped so the other files still update.
package syncer

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nativepkg/pkg/artifact"
	"github.com/matzehuels/nativepkg/pkg/buildfile"
	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/events"
	"github.com/matzehuels/nativepkg/pkg/fsutil"
	"github.com/matzehuels/nativepkg/pkg/ideconfig"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/modinfo"
	"github.com/matzehuels/nativepkg/pkg/project"
)

// Define names used in the primary build module.
const (
	DefineID      = "ID"
	DefineVersion = "VERSION"
)

// WorkspaceFolder prefixes include paths in the IDE descriptor.
const WorkspaceFolder = "${workspaceFolder}"

// Synchronizer applies lifecycle events to a project's derived files.
type Synchronizer struct {
	project *project.Project
	logger  *log.Logger
}

// New returns a synchronizer for p. A nil logger discards output.
func New(p *project.Project, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Synchronizer{project: p, logger: logger}
}

// Handle implements [events.Handler].
func (s *Synchronizer) Handle(_ context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.IdentityChanged:
		return s.apply(
			s.ide(func(f *ideconfig.File) bool { return f.SetID(e.New) }),
			s.mod(func(f *modinfo.File) bool { return f.SetID(e.New) }),
			s.primary(func(m *buildfile.Module) bool {
				changed := m.SetDefine(DefineID, e.New)
				if e.Old != "" && strings.EqualFold(m.ID, e.Old) && m.ID != e.New {
					m.ID = e.New
					changed = true
				}
				return changed
			}),
		)

	case events.VersionChanged:
		return s.apply(
			s.ide(func(f *ideconfig.File) bool { return f.SetVersion(e.New) }),
			s.mod(func(f *modinfo.File) bool { return f.SetVersion(e.New) }),
			s.primary(func(m *buildfile.Module) bool { return m.SetDefine(DefineVersion, e.New) }),
		)

	case events.NameChanged:
		return s.apply(
			s.mod(func(f *modinfo.File) bool { return f.SetName(e.New) }),
		)

	case events.PackageCreated:
		return s.packageCreated(e.Manifest)

	case events.DependencyResolved:
		return s.dependencyResolved(e)

	case events.DependencyRemoved:
		return s.apply(
			s.build(func(f *buildfile.File) bool {
				changed := f.RemoveModule(e.ID)
				if p := f.Primary(); p != nil && p.RemoveSharedLibrary(e.ID) {
					changed = true
				}
				return changed
			}),
		)
	}
	return nil
}

func (s *Synchronizer) packageCreated(m *manifest.Manifest) error {
	var dirs []string
	for _, d := range []string{m.SharedDir, m.DependenciesDir} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	for _, d := range dirs {
		if err := os.MkdirAll(s.project.Dir(d), 0o755); err != nil {
			return nperrors.Wrap(nperrors.ErrCodeArtifactWrite, err, "create %s", d)
		}
	}

	return s.apply(
		s.ide(func(f *ideconfig.File) bool {
			changed := f.SetID(m.ID)
			changed = f.SetVersion(m.Version) || changed
			for _, d := range dirs {
				changed = f.AddIncludePath(WorkspaceFolder+"/"+d) || changed
			}
			return changed
		}),
		s.mod(func(f *modinfo.File) bool {
			changed := f.SetID(m.ID)
			return f.SetVersion(m.Version) || changed
		}),
		s.primary(func(pm *buildfile.Module) bool {
			changed := pm.SetDefine(DefineID, m.ID)
			changed = pm.SetDefine(DefineVersion, m.Version) || changed
			for _, d := range dirs {
				changed = pm.AddExportInclude(d) || changed
			}
			return changed
		}),
	)
}

func (s *Synchronizer) dependencyResolved(e events.DependencyResolved) error {
	headersOnly, err := e.Resolved.HeadersOnly()
	if err != nil {
		return err
	}
	if headersOnly {
		return nil
	}
	name, err := artifact.BinaryName(e.Resolved)
	if err != nil {
		return err
	}
	sources := []string{project.BinaryRel(e.Own, name)}
	includes := []string{project.IncludeRel(e.Own, e.Resolved.ID)}

	return s.apply(
		s.build(func(f *buildfile.File) bool {
			p := f.Primary()
			if p == nil {
				s.logger.Warn("build descriptor has no primary module, not linking", "id", e.Resolved.ID)
				return false
			}
			changed := f.UpsertDependency(e.Resolved.ID, sources, includes)
			return p.AddSharedLibrary(e.Resolved.ID) || changed
		}),
	)
}

// edit loads one derived file, applies a mutation and writes it back when
// it changed. A missing file returns nil without calling anything.
type edit func() error

// apply runs every edit and joins the write failures.
func (s *Synchronizer) apply(edits ...edit) error {
	var errs []error
	for _, e := range edits {
		if err := e(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (s *Synchronizer) ide(mutate func(*ideconfig.File) bool) edit {
	return func() error {
		path := s.project.IDEConfigPath()
		f, ok := load(s, path, ideconfig.Load)
		if !ok || !mutate(f) {
			return nil
		}
		data, err := f.Bytes()
		if err != nil {
			s.logger.Warn("skipping include-path descriptor", "path", path, "err", err)
			return nil
		}
		return s.write(path, data)
	}
}

func (s *Synchronizer) mod(mutate func(*modinfo.File) bool) edit {
	return func() error {
		path := s.project.ModInfoPath()
		f, ok := load(s, path, modinfo.Load)
		if !ok || !mutate(f) {
			return nil
		}
		data, err := f.Bytes()
		if err != nil {
			s.logger.Warn("skipping packaging metadata", "path", path, "err", err)
			return nil
		}
		return s.write(path, data)
	}
}

func (s *Synchronizer) build(mutate func(*buildfile.File) bool) edit {
	return func() error {
		path := s.project.BuildFilePath()
		f, ok := load(s, path, buildfile.Load)
		if !ok || !mutate(f) {
			return nil
		}
		return s.write(path, f.Bytes())
	}
}

// primary edits the primary module of the build descriptor.
func (s *Synchronizer) primary(mutate func(*buildfile.Module) bool) edit {
	return s.build(func(f *buildfile.File) bool {
		p := f.Primary()
		if p == nil {
			s.logger.Warn("build descriptor has no primary module", "path", s.project.BuildFilePath())
			return false
		}
		return mutate(p)
	})
}

func load[T any](s *Synchronizer, path string, loader func(string) (T, error)) (T, bool) {
	f, err := loader(path)
	if err == nil {
		return f, true
	}
	if os.IsNotExist(err) {
		s.logger.Debug("not present, skipping", "path", path)
	} else {
		s.logger.Warn("skipping malformed file", "path", path, "err", err)
	}
	var zero T
	return zero, false
}

func (s *Synchronizer) write(path string, data []byte) error {
	written, err := fsutil.WriteIfChanged(path, data, 0o644)
	if err != nil {
		return nperrors.Wrap(nperrors.ErrCodeArtifactWrite, err, "write %s", path)
	}
	if written {
		s.logger.Debug("updated", "path", path)
	}
	return nil
}
