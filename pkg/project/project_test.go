package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/nativepkg/pkg/manifest"
)

func TestFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "hooks")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, manifest.FileName), []byte("id = \"x\"\nversion = \"0.1.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want, _ := filepath.EvalSymlinks(root)
	got, _ := filepath.EvalSymlinks(p.Root)
	if got != want {
		t.Errorf("Root = %s, want %s", got, want)
	}

	m, err := p.LoadManifest()
	if err != nil || m.ID != "x" {
		t.Errorf("LoadManifest = %+v, %v", m, err)
	}
	lock, err := p.LoadLock()
	if err != nil || len(lock.Dependencies) != 0 {
		t.Errorf("LoadLock = %+v, %v", lock, err)
	}
}

func TestFindMissing(t *testing.T) {
	if _, err := Find(t.TempDir()); err == nil {
		t.Error("Find should fail without a manifest")
	}
}

func TestPaths(t *testing.T) {
	p := New("/work/mod")
	m := &manifest.Manifest{ID: "mod", DependenciesDir: "deps/"}

	tests := []struct {
		name, got, want string
	}{
		{"deps dir", DependenciesDir(m), "deps"},
		{"default deps dir", DependenciesDir(&manifest.Manifest{}), DefaultDependenciesDir},
		{"binary rel", BinaryRel(m, "libfoo.so"), "deps/libs/libfoo.so"},
		{"include rel", IncludeRel(m, "foo"), "deps/foo"},
		{"binary path", p.BinaryPath(m, "libfoo.so"), filepath.FromSlash("/work/mod/deps/libs/libfoo.so")},
		{"lock", p.LockPath(), filepath.FromSlash("/work/mod/nativepkg.lock")},
		{"build file", p.BuildFilePath(), filepath.FromSlash("/work/mod/Android.mk")},
		{"ide", p.IDEConfigPath(), filepath.FromSlash("/work/mod/.vscode/c_cpp_properties.json")},
		{"mod", p.ModInfoPath(), filepath.FromSlash("/work/mod/mod.json")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}
