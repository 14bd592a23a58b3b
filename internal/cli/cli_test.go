package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/modinfo"
	"github.com/matzehuels/nativepkg/pkg/project"
	"github.com/matzehuels/nativepkg/pkg/registry/registrytest"
)

const androidMk = `LOCAL_PATH := $(call my-dir)

include $(CLEAR_VARS)
LOCAL_MODULE := my-mod
LOCAL_SRC_FILES += $(call rwildcard,src/,*.cpp)
LOCAL_CFLAGS += -DID=\"my-mod\"
LOCAL_CFLAGS += -DVERSION=\"0.1.0\"
include $(BUILD_SHARED_LIBRARY)
`

type harness struct {
	t   *testing.T
	reg *registrytest.Registry
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NATIVEPKG_CACHE_DIR", t.TempDir())
	t.Setenv("NATIVEPKG_DOWNLOAD_DIR", t.TempDir())
	t.Setenv("NATIVEPKG_TOKEN", "")
	t.Setenv("NATIVEPKG_REDIS_URL", "")

	reg := registrytest.New(t)
	reg.Add(t,
		&manifest.Manifest{ID: "codegen", Version: "0.32.0", ExtensionData: manifest.ExtensionData{
			manifest.KeySoLink: reg.AddFile("libcodegen_0_32_0.so", []byte("ELF codegen 0.32.0")),
		}},
		&manifest.Manifest{ID: "codegen", Version: "0.33.0", ExtensionData: manifest.ExtensionData{
			manifest.KeySoLink: reg.AddFile("libcodegen_0_33_0.so", []byte("ELF codegen 0.33.0")),
		}},
	)
	return &harness{t: t, reg: reg, dir: t.TempDir()}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--dir", h.dir, "--registry", h.reg.URL}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (h *harness) manifest() *manifest.Manifest {
	h.t.Helper()
	m, err := project.New(h.dir).LoadManifest()
	if err != nil {
		h.t.Fatal(err)
	}
	return m
}

func (h *harness) write(name, content string) {
	h.t.Helper()
	if err := os.WriteFile(filepath.Join(h.dir, name), []byte(content), 0o644); err != nil {
		h.t.Fatal(err)
	}
}

func TestCreateAddRestore(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "my-mod", "0.1.0", "--name", "My Mod")
	h.write("Android.mk", androidMk)

	h.mustRun("dependency", "add", "codegen")
	spec, _ := h.manifest().Dependency("codegen")
	if spec == nil || spec.VersionRange != "^0.33.0" {
		t.Fatalf("declared spec = %+v, want ^0.33.0", spec)
	}

	out := h.mustRun("restore")
	if !strings.Contains(out, "codegen") {
		t.Errorf("restore output = %q", out)
	}
	p := project.New(h.dir)
	lock, err := p.LoadLock()
	if err != nil {
		t.Fatal(err)
	}
	if rd, ok := lock.Get("codegen"); !ok || rd.Version != "0.33.0" {
		t.Fatalf("lock = %+v", lock.Dependencies)
	}
	bin := filepath.Join(h.dir, "extern", "libs", "libcodegen_0_33_0.so")
	if data, err := os.ReadFile(bin); err != nil || string(data) != "ELF codegen 0.33.0" {
		t.Errorf("binary = %q, %v", data, err)
	}
	mk, _ := os.ReadFile(p.BuildFilePath())
	if !strings.Contains(string(mk), "LOCAL_SHARED_LIBRARIES := codegen") {
		t.Errorf("Android.mk does not link codegen:\n%s", mk)
	}

	h.reg.ResetRequests()
	out = h.mustRun("restore")
	if !strings.Contains(out, "up to date") {
		t.Errorf("second restore output = %q", out)
	}
	if n := len(h.reg.Requests()); n != 0 {
		t.Errorf("second restore made %d requests: %v", n, h.reg.Requests())
	}
}

func TestCreateRefusesExistingManifest(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "my-mod", "0.1.0")
	_, err := h.run("create", "other", "1.0.0")
	if !nperrors.Is(err, nperrors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
	if h.manifest().ID != "my-mod" {
		t.Error("existing manifest was overwritten")
	}
}

func TestCreateRejectsInvalidVersion(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("create", "my-mod", "one"); err == nil {
		t.Error("invalid version should fail")
	}
	if _, err := os.Stat(filepath.Join(h.dir, manifest.FileName)); !os.IsNotExist(err) {
		t.Error("no manifest should be written")
	}
}

func TestDependencyAdd(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "my-mod", "0.1.0")

	h.mustRun("dependency", "add", "codegen", "~0.32.0", "--release")
	spec, _ := h.manifest().Dependency("codegen")
	if spec == nil || spec.VersionRange != "~0.32.0" {
		t.Fatalf("spec = %+v", spec)
	}
	if rel, _ := spec.UseRelease(); !rel {
		t.Error("--release should set useRelease")
	}

	tests := []struct {
		name string
		args []string
		code nperrors.Code
	}{
		{"bad range", []string{"codegen", "abc"}, nperrors.ErrCodeInvalidInput},
		{"unknown package", []string{"nope"}, nperrors.ErrCodeNotFound},
		{"no match", []string{"codegen", "^2.0.0"}, nperrors.ErrCodeNotFound},
		{"self", []string{"my-mod"}, nperrors.ErrCodeInvalidInput},
		{"pick with range", []string{"codegen", "^0.33.0", "--pick"}, nperrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run(append([]string{"dependency", "add"}, tt.args...)...)
			if !nperrors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestDependencyRemove(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "my-mod", "0.1.0")
	h.write("Android.mk", androidMk)
	h.mustRun("dependency", "add", "codegen")
	h.mustRun("restore")

	h.mustRun("dependency", "remove", "codegen")
	if spec, _ := h.manifest().Dependency("codegen"); spec != nil {
		t.Error("codegen still declared")
	}
	lock, _ := project.New(h.dir).LoadLock()
	if len(lock.Dependencies) != 0 {
		t.Errorf("lock = %+v", lock.Dependencies)
	}
	mk, _ := os.ReadFile(filepath.Join(h.dir, "Android.mk"))
	if strings.Contains(string(mk), "codegen") {
		t.Errorf("Android.mk still mentions codegen:\n%s", mk)
	}

	_, err := h.run("dependency", "remove", "codegen")
	if !nperrors.Is(err, nperrors.ErrCodeNotFound) {
		t.Errorf("second remove error = %v, want NOT_FOUND", err)
	}
}

func TestUpdate(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "my-mod", "0.1.0")
	h.mustRun("dependency", "add", "codegen", "^0.32.0")
	h.mustRun("restore")

	h.reg.Add(t, &manifest.Manifest{ID: "codegen", Version: "0.32.5", ExtensionData: manifest.ExtensionData{
		manifest.KeySoLink: h.reg.AddFile("libcodegen_0_32_5.so", []byte("ELF codegen 0.32.5")),
	}})
	h.mustRun("restore")
	lock, _ := project.New(h.dir).LoadLock()
	if rd, _ := lock.Get("codegen"); rd.Version != "0.32.0" {
		t.Fatalf("restore moved the lock to %s", rd.Version)
	}

	h.mustRun("update", "codegen")
	lock, _ = project.New(h.dir).LoadLock()
	if rd, _ := lock.Get("codegen"); rd.Version != "0.32.5" {
		t.Errorf("update locked %s, want 0.32.5", rd.Version)
	}

	if _, err := h.run("update", "nope"); !nperrors.Is(err, nperrors.ErrCodeInvalidInput) {
		t.Errorf("update of unlocked id error = %v, want INVALID_INPUT", err)
	}
}

func TestPackageEdit(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "my-mod", "0.1.0")
	h.write("Android.mk", androidMk)
	h.write(modinfo.FileName, `{"id": "my-mod", "version": "0.1.0", "name": "Old"}`)

	h.mustRun("package", "edit", "--id", "renamed", "--version", "0.2.0", "--name", "New")

	m := h.manifest()
	if m.ID != "renamed" || m.Version != "0.2.0" || m.Name != "New" {
		t.Errorf("manifest = %+v", m)
	}
	mk, _ := os.ReadFile(filepath.Join(h.dir, "Android.mk"))
	for _, want := range []string{"LOCAL_MODULE := renamed", `-DID=\"renamed\"`, `-DVERSION=\"0.2.0\"`} {
		if !strings.Contains(string(mk), want) {
			t.Errorf("Android.mk missing %q:\n%s", want, mk)
		}
	}
	mod, err := modinfo.Load(modinfo.Path(h.dir))
	if err != nil {
		t.Fatal(err)
	}
	if mod.ID() != "renamed" || mod.Version() != "0.2.0" || mod.Name() != "New" {
		t.Errorf("mod.json = %s %s %s", mod.ID(), mod.Version(), mod.Name())
	}

	out := h.mustRun("package", "edit", "--id", "renamed")
	if !strings.Contains(out, "already up to date") {
		t.Errorf("unchanged edit output = %q", out)
	}
	if _, err := h.run("package", "edit"); !nperrors.Is(err, nperrors.ErrCodeInvalidInput) {
		t.Errorf("edit without flags error = %v", err)
	}
}

func TestVersions(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("versions", "codegen")
	if !strings.Contains(out, "0.33.0") || !strings.Contains(out, "0.32.0") {
		t.Errorf("versions output:\n%s", out)
	}

	out = h.mustRun("versions", "codegen", "--limit", "1")
	if strings.Contains(out, "0.32.0") || !strings.Contains(out, "showing 1 of 2") {
		t.Errorf("limited output:\n%s", out)
	}

	if _, err := h.run("versions", "nope"); !nperrors.Is(err, nperrors.ErrCodeNotFound) {
		t.Errorf("unknown package error = %v", err)
	}
}

func TestGraph(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "my-mod", "0.1.0")
	h.mustRun("dependency", "add", "codegen")
	h.mustRun("restore")

	out := h.mustRun("graph")
	for _, want := range []string{"digraph G", `"my-mod" -> "codegen"`} {
		if !strings.Contains(out, want) {
			t.Errorf("graph output missing %q:\n%s", want, out)
		}
	}

	path := filepath.Join(t.TempDir(), "deps.dot")
	h.mustRun("graph", "-o", path)
	if data, err := os.ReadFile(path); err != nil || !strings.Contains(string(data), "codegen") {
		t.Errorf("graph file = %q, %v", data, err)
	}

	if _, err := h.run("graph", "--format", "png"); !nperrors.Is(err, nperrors.ErrCodeInvalidInput) {
		t.Errorf("unknown format error = %v", err)
	}
}

func TestPublish(t *testing.T) {
	h := newHarness(t)
	h.mustRun("create", "paper", "1.2.0")

	if _, err := h.run("publish"); !nperrors.Is(err, nperrors.ErrCodeInvalidInput) {
		t.Errorf("publish without token error = %v", err)
	}

	out := h.mustRun("publish", "--dry-run")
	if !strings.Contains(out, `id = "paper"`) {
		t.Errorf("dry run output:\n%s", out)
	}
	if _, err := h.reg.Store.Get(context.Background(), "paper", "1.2.0"); err == nil {
		t.Fatal("dry run must not publish")
	}

	h.mustRun("publish", "--token", registrytest.Token)
	if _, err := h.reg.Store.Get(context.Background(), "paper", "1.2.0"); err != nil {
		t.Errorf("published manifest not stored: %v", err)
	}
}

func TestCachePathAndClear(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("cache", "path")
	if !strings.Contains(out, os.Getenv("NATIVEPKG_CACHE_DIR")) || !strings.Contains(out, os.Getenv("NATIVEPKG_DOWNLOAD_DIR")) {
		t.Errorf("cache path output:\n%s", out)
	}

	h.mustRun("versions", "codegen")
	entries, _ := os.ReadDir(os.Getenv("NATIVEPKG_CACHE_DIR"))
	if len(entries) == 0 {
		t.Fatal("versions should have populated the response cache")
	}
	h.mustRun("cache", "clear")
	entries, _ = os.ReadDir(os.Getenv("NATIVEPKG_CACHE_DIR"))
	if len(entries) != 0 {
		t.Errorf("cache not cleared: %d entries left", len(entries))
	}
	if _, err := os.Stat(os.Getenv("NATIVEPKG_DOWNLOAD_DIR")); !os.IsNotExist(err) {
		t.Error("download cache not removed")
	}
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("version")
	if !strings.Contains(out, "version: ") {
		t.Errorf("version output = %q", out)
	}
}
