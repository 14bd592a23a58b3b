package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/fsutil"
)

// LockFileName is the lock file name at the project root.
const LockFileName = "nativepkg.lock"

// LockFormat is the current lock file format version.
const LockFormat = 1

// LockFile is the resolved dependency closure of a manifest.
// Entries keep resolution order; ids are unique case-insensitively.
type LockFile struct {
	Format       int                  `toml:"format"`
	Dependencies []ResolvedDependency `toml:"dependency,omitempty"`
}

// ResolvedDependency is a dependency bound to one published version.
type ResolvedDependency struct {
	ID       string   `toml:"id"`
	Version  string   `toml:"version"`
	Range    string   `toml:"range,omitempty"`
	Manifest Manifest `toml:"manifest"`
}

// NewLockFile creates an empty lock file.
func NewLockFile() *LockFile {
	return &LockFile{Format: LockFormat}
}

// Get returns the entry for id (case-insensitive).
func (l *LockFile) Get(id string) (*ResolvedDependency, bool) {
	for i := range l.Dependencies {
		if strings.EqualFold(l.Dependencies[i].ID, id) {
			return &l.Dependencies[i], true
		}
	}
	return nil, false
}

// Put records rd, replacing any stale entry for the same id in place.
func (l *LockFile) Put(rd ResolvedDependency) {
	for i := range l.Dependencies {
		if strings.EqualFold(l.Dependencies[i].ID, rd.ID) {
			l.Dependencies[i] = rd
			return
		}
	}
	l.Dependencies = append(l.Dependencies, rd)
}

// Remove deletes the entry for id. It reports whether one existed.
func (l *LockFile) Remove(id string) bool {
	for i := range l.Dependencies {
		if strings.EqualFold(l.Dependencies[i].ID, id) {
			l.Dependencies = append(l.Dependencies[:i], l.Dependencies[i+1:]...)
			return true
		}
	}
	return false
}

// IDs returns the locked ids in order.
func (l *LockFile) IDs() []string {
	ids := make([]string, len(l.Dependencies))
	for i, d := range l.Dependencies {
		ids[i] = d.ID
	}
	return ids
}

// Clone returns a deep copy.
func (l *LockFile) Clone() *LockFile {
	out := &LockFile{Format: l.Format}
	if l.Dependencies != nil {
		out.Dependencies = make([]ResolvedDependency, len(l.Dependencies))
		for i, d := range l.Dependencies {
			d.Manifest = *d.Manifest.Clone()
			out.Dependencies[i] = d
		}
	}
	return out
}

// Encode returns the TOML encoding of the lock file.
func (l *LockFile) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# Generated by nativepkg. Do not edit.\n\n")
	if err := toml.NewEncoder(&buf).Encode(l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseLock decodes a TOML lock file.
func ParseLock(data []byte) (*LockFile, error) {
	var l LockFile
	if _, err := toml.Decode(string(data), &l); err != nil {
		return nil, nperrors.Wrap(nperrors.ErrCodeInvalidManifest, err, "parse lock file")
	}
	if l.Format == 0 {
		l.Format = LockFormat
	}
	if l.Format > LockFormat {
		return nil, nperrors.New(nperrors.ErrCodeInvalidManifest,
			"lock file format %d is newer than supported format %d", l.Format, LockFormat)
	}
	for i := range l.Dependencies {
		if err := l.Dependencies[i].Manifest.normalize(); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

// LoadLock reads the lock file at path. A missing file yields an empty lock.
func LoadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLockFile(), nil
		}
		return nil, fmt.Errorf("read lock file: %w", err)
	}
	l, err := ParseLock(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Save writes the lock file atomically. An unchanged lock file is not
// rewritten.
func (l *LockFile) Save(path string) error {
	data, err := l.Encode()
	if err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}
	if _, err := fsutil.WriteIfChanged(path, data, 0o644); err != nil {
		return nperrors.Wrap(nperrors.ErrCodeArtifactWrite, err, "write lock file")
	}
	return nil
}
