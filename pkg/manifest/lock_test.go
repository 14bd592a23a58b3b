package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
)

func sampleLock() *LockFile {
	l := NewLockFile()
	l.Put(ResolvedDependency{
		ID: "codegen", Version: "0.33.0", Range: "^0.33.0",
		Manifest: Manifest{
			ID: "codegen", Version: "0.33.0",
			Dependencies:  []DependencySpec{{ID: "beatsaber-hook", VersionRange: "^3.8.0"}},
			ExtensionData: ExtensionData{KeySoLink: "https://example.com/libcodegen.so"},
		},
	})
	l.Put(ResolvedDependency{
		ID: "beatsaber-hook", Version: "3.8.4", Range: "^3.8.0",
		Manifest: Manifest{ID: "beatsaber-hook", Version: "3.8.4"},
	})
	return l
}

func TestLockPutReplacesInPlace(t *testing.T) {
	l := sampleLock()
	l.Put(ResolvedDependency{ID: "Codegen", Version: "0.34.0"})

	if len(l.Dependencies) != 2 {
		t.Fatalf("entries = %d, want 2", len(l.Dependencies))
	}
	if l.Dependencies[0].Version != "0.34.0" {
		t.Errorf("replaced entry version = %s", l.Dependencies[0].Version)
	}
	if got := strings.Join(l.IDs(), ","); got != "Codegen,beatsaber-hook" {
		t.Errorf("IDs() = %s", got)
	}
}

func TestLockGetRemove(t *testing.T) {
	l := sampleLock()

	if rd, ok := l.Get("BEATSABER-HOOK"); !ok || rd.Version != "3.8.4" {
		t.Errorf("Get() = %v, %v", rd, ok)
	}
	if !l.Remove("beatsaber-hook") {
		t.Error("Remove should report removal")
	}
	if l.Remove("beatsaber-hook") {
		t.Error("Remove of missing id should report false")
	}
	if _, ok := l.Get("beatsaber-hook"); ok {
		t.Error("entry still present after Remove")
	}
}

func TestLockSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)
	l := sampleLock()

	if err := l.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	first, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(first), "# Generated by nativepkg") {
		t.Errorf("missing header:\n%s", first)
	}

	loaded, err := LoadLock(path)
	if err != nil {
		t.Fatalf("LoadLock: %v", err)
	}
	if len(loaded.Dependencies) != 2 {
		t.Fatalf("entries = %d", len(loaded.Dependencies))
	}
	cg, _ := loaded.Get("codegen")
	if cg.Range != "^0.33.0" || cg.Manifest.Dependencies[0].ID != "beatsaber-hook" {
		t.Errorf("codegen entry = %+v", cg)
	}
	if link, _ := cg.Manifest.SoLink(); link == "" {
		t.Error("manifest extension data lost")
	}

	if err := loaded.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Error("load/save should be byte-identical")
	}
}

func TestLoadLockMissing(t *testing.T) {
	l, err := LoadLock(filepath.Join(t.TempDir(), "nope.lock"))
	if err != nil {
		t.Fatalf("LoadLock: %v", err)
	}
	if l.Format != LockFormat || len(l.Dependencies) != 0 {
		t.Errorf("missing lock = %+v, want empty", l)
	}
}

func TestParseLockNewerFormat(t *testing.T) {
	_, err := ParseLock([]byte("format = 99\n"))
	if !nperrors.Is(err, nperrors.ErrCodeInvalidManifest) {
		t.Errorf("ParseLock error = %v, want INVALID_MANIFEST", err)
	}
}

func TestLockCloneIsDeep(t *testing.T) {
	l := sampleLock()
	c := l.Clone()
	c.Dependencies[0].Manifest.ExtensionData[KeySoLink] = "changed"
	c.Remove("codegen")

	if len(l.Dependencies) != 2 {
		t.Error("Clone shares the entry slice")
	}
	if link, _ := l.Dependencies[0].Manifest.SoLink(); link == "changed" {
		t.Error("Clone shares manifest extension data")
	}
}
