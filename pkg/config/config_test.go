package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/matzehuels/nativepkg/pkg/registry"
)

func TestLoadDefaults(t *testing.T) {
	cfg, used, err := Load(LoadOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if used != "" {
		t.Errorf("used = %q, want none", used)
	}
	if cfg.RegistryURL != registry.DefaultURL || cfg.Timeout != 30*time.Second || cfg.CacheTTL != 24*time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := "registry_url = \"https://file.example\"\ntimeout = \"5s\"\ntoken = \"from-file\"\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(file), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NATIVEPKG_TOKEN", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("registry", "", "")
	flags.String("token", "", "")
	if err := flags.Parse([]string{"--registry", "https://flag.example"}); err != nil {
		t.Fatal(err)
	}

	cfg, used, err := Load(LoadOptions{Dir: dir, Flags: flags})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if used != filepath.Join(dir, FileName) {
		t.Errorf("used = %q", used)
	}

	tests := []struct{ name, got, want string }{
		{"flag beats file", cfg.RegistryURL, "https://flag.example"},
		{"env beats file", cfg.Token, "from-env"},
		{"file beats default", cfg.Timeout.String(), "5s"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadExplicitFile(t *testing.T) {
	if _, _, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.toml")}); err == nil {
		t.Error("missing explicit config file should fail")
	}

	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("redis_url = \"redis://localhost:6379/0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, used, err := Load(LoadOptions{File: path})
	if err != nil {
		t.Fatal(err)
	}
	if used != path || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("cfg = %+v, used = %s", cfg, used)
	}
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("NATIVEPKG_TIMEOUT", "0s")
	if _, _, err := Load(LoadOptions{Dir: t.TempDir()}); err == nil {
		t.Error("zero timeout should be rejected")
	}
}

func TestRegistryConfig(t *testing.T) {
	cfg := Default()
	cfg.Token = "tok"
	rc := cfg.RegistryConfig(nil)
	if rc.URL != registry.DefaultURL || rc.Token != "tok" || rc.CacheTTL != 24*time.Hour {
		t.Errorf("RegistryConfig = %+v", rc)
	}
}
