// Package artifact places prebuilt dependency binaries into a project.
//
// Placement uses two tiers: the project destination
// (<dependenciesDir>/libs/<name>) and a machine-wide download cache
// (<tmp>/nativepkg/<id>/<version>/<name>) shared by every project. A binary
// already at its destination is left alone; a cached binary is copied; only
// otherwise is it downloaded, into the cache first.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/charmbracelet/log"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/events"
	"github.com/matzehuels/nativepkg/pkg/fsutil"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/observability"
	"github.com/matzehuels/nativepkg/pkg/project"
)

// Source tells where a placed binary came from.
type Source string

const (
	SourceNone     Source = "none" // headers-only, nothing placed
	SourcePresent  Source = "present"
	SourceCache    Source = "cache"
	SourceDownload Source = "download"
)

// Downloader streams the body of url into w.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Placement describes one placed binary.
type Placement struct {
	ID      string
	Version string
	Name    string // binary file name
	Path    string // absolute destination
	Source  Source
}

var separators = regexp.MustCompile(`[^A-Za-z0-9]+`)

// BinaryName returns the file name of a dependency's binary: the manifest's
// override name, or lib<id>_<version>.so with every run of non-alphanumeric
// characters collapsed to "_".
func BinaryName(m *manifest.Manifest) (string, error) {
	override, err := m.OverrideSoName()
	if err != nil {
		return "", err
	}
	if override != "" {
		return override, nil
	}
	return "lib" + separators.ReplaceAllString(m.ID+"_"+m.Version, "_") + ".so", nil
}

// SelectLink picks the download URL for a dependency: the debug link unless
// the requesting spec asks for the release binary or there is no debug link.
func SelectLink(m *manifest.Manifest, spec manifest.DependencySpec) (string, error) {
	release, err := m.SoLink()
	if err != nil {
		return "", err
	}
	debug, err := m.DebugSoLink()
	if err != nil {
		return "", err
	}
	useRelease, err := spec.UseRelease()
	if err != nil {
		return "", err
	}
	switch {
	case debug != "" && (!useRelease || release == ""):
		return debug, nil
	case release != "":
		return release, nil
	}
	return "", nperrors.New(nperrors.ErrCodeMissingArtifactLink,
		"%s@%s publishes no binary link (neither %s nor %s)", m.ID, m.Version, manifest.KeyDebugSoLink, manifest.KeySoLink)
}

// releaseIgnored reports whether spec asks for the release binary but dep only
// publishes a debug one.
func releaseIgnored(dep *manifest.Manifest, spec manifest.DependencySpec) bool {
	useRelease, _ := spec.UseRelease()
	release, _ := dep.SoLink()
	debug, _ := dep.DebugSoLink()
	return useRelease && release == "" && debug != ""
}

// Check reports the problems Place would hit before any I/O: malformed
// extension data or a missing link.
func Check(m *manifest.Manifest, spec manifest.DependencySpec) error {
	headersOnly, err := m.HeadersOnly()
	if err != nil || headersOnly {
		return err
	}
	if _, err := SelectLink(m, spec); err != nil {
		return err
	}
	_, err = BinaryName(m)
	return err
}

// Options configures a [Placer].
type Options struct {
	// CacheDir is the shared download cache. Defaults to project.TempCacheDir().
	CacheDir string
	Logger   *log.Logger
}

// Placer places binaries for resolved dependencies. It handles
// [events.DependencyResolved] and ignores every other event.
type Placer struct {
	project  *project.Project
	dl       Downloader
	cacheDir string
	logger   *log.Logger
}

// NewPlacer returns a placer for p that downloads through dl.
func NewPlacer(p *project.Project, dl Downloader, opts Options) *Placer {
	if opts.CacheDir == "" {
		opts.CacheDir = project.TempCacheDir()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Placer{project: p, dl: dl, cacheDir: opts.CacheDir, logger: opts.Logger}
}

// Handle implements [events.Handler].
func (p *Placer) Handle(ctx context.Context, ev events.Event) error {
	e, ok := ev.(events.DependencyResolved)
	if !ok {
		return nil
	}
	_, err := p.Place(ctx, e.Own, e.Resolved, e.Spec)
	return err
}

// CachePath is where the shared cache keeps a dependency's binary.
func (p *Placer) CachePath(m *manifest.Manifest, name string) string {
	return filepath.Join(p.cacheDir, m.ID, m.Version, name)
}

// Place makes sure the binary of dep exists in own's dependencies directory.
func (p *Placer) Place(ctx context.Context, own, dep *manifest.Manifest, spec manifest.DependencySpec) (pl Placement, err error) {
	pl = Placement{ID: dep.ID, Version: dep.Version, Source: SourceNone}

	headersOnly, err := dep.HeadersOnly()
	if err != nil {
		return pl, err
	}
	if headersOnly {
		p.logger.Debug("headers only, no binary", "id", dep.ID, "version", dep.Version)
		return pl, nil
	}

	link, err := SelectLink(dep, spec)
	if err != nil {
		return pl, err
	}
	if releaseIgnored(dep, spec) {
		p.logger.Warn("release binary requested but not published, using debug", "id", dep.ID, "version", dep.Version)
	}
	if pl.Name, err = BinaryName(dep); err != nil {
		return pl, err
	}
	pl.Path = p.project.BinaryPath(own, pl.Name)

	start := time.Now()
	defer func() {
		observability.Resolve().OnPlace(ctx, dep.ID, dep.Version, string(pl.Source), time.Since(start), err)
	}()

	if fsutil.Exists(pl.Path) {
		pl.Source = SourcePresent
		p.logger.Debug("binary present", "id", dep.ID, "path", pl.Path)
		return pl, nil
	}

	cached := p.CachePath(dep, pl.Name)
	if fsutil.Exists(cached) {
		pl.Source = SourceCache
	} else {
		if err = p.download(ctx, link, cached); err != nil {
			return pl, err
		}
		pl.Source = SourceDownload
	}

	if err = fsutil.CopyFile(cached, pl.Path); err != nil {
		return pl, nperrors.Wrap(nperrors.ErrCodeArtifactWrite, err, "copy %s into project", pl.Name)
	}
	p.logger.Info("placed binary", "id", dep.ID, "version", dep.Version, "from", pl.Source)
	return pl, nil
}

// download fetches url into the cache path through a temp file so a failed
// transfer never leaves a partial binary behind.
func (p *Placer) download(ctx context.Context, url, dst string) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nperrors.Wrap(nperrors.ErrCodeArtifactWrite, err, "create download cache")
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return nperrors.Wrap(nperrors.ErrCodeArtifactWrite, err, "create download cache")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	p.logger.Debug("downloading", "url", url)
	n, err := p.dl.Download(ctx, url, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = nperrors.Wrap(nperrors.ErrCodeArtifactWrite, cerr, "write %s", filepath.Base(dst))
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return nperrors.New(nperrors.ErrCodeRegistry, "download %s: empty body", url)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return nperrors.Wrap(nperrors.ErrCodeArtifactWrite, err, "move %s into cache", filepath.Base(dst))
	}
	return nil
}

func (pl Placement) String() string {
	if pl.Source == SourceNone {
		return fmt.Sprintf("%s@%s (headers only)", pl.ID, pl.Version)
	}
	return fmt.Sprintf("%s@%s -> %s (%s)", pl.ID, pl.Version, pl.Name, pl.Source)
}
