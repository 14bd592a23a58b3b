package registry_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matzehuels/nativepkg/pkg/cache"
	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/registry"
	"github.com/matzehuels/nativepkg/pkg/registry/registrytest"
)

func seed(t *testing.T) *registrytest.Registry {
	t.Helper()
	reg := registrytest.New(t)
	reg.Add(t,
		&manifest.Manifest{ID: "codegen", Version: "0.32.0"},
		&manifest.Manifest{ID: "codegen", Version: "0.33.0", Dependencies: []manifest.DependencySpec{
			{ID: "beatsaber-hook", VersionRange: "^3.8.0"},
		}},
		&manifest.Manifest{ID: "beatsaber-hook", Version: "3.8.4", ExtensionData: manifest.ExtensionData{
			manifest.KeySoLink: "https://example.com/libbs.so",
		}},
	)
	return reg
}

func TestListVersions(t *testing.T) {
	reg := seed(t)
	c := registry.NewClient(registry.Config{URL: reg.URL})

	got, err := c.ListVersions(context.Background(), "codegen")
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(got) != 2 || got[0].Version != "0.33.0" || got[1].Version != "0.32.0" {
		t.Errorf("ListVersions() = %+v", got)
	}
}

func TestListVersionsErrors(t *testing.T) {
	reg := seed(t)
	c := registry.NewClient(registry.Config{URL: reg.URL})

	_, err := c.ListVersions(context.Background(), "")
	if !nperrors.Is(err, nperrors.ErrCodeInvalidInput) {
		t.Errorf("empty id error = %v, want INVALID_INPUT", err)
	}
	if len(reg.Requests()) != 0 {
		t.Error("empty id should not reach the network")
	}

	_, err = c.ListVersions(context.Background(), "unknown")
	if !nperrors.Is(err, nperrors.ErrCodeNotFound) {
		t.Errorf("unknown id error = %v, want NOT_FOUND", err)
	}
}

func TestListVersionsEmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer ts.Close()

	c := registry.NewClient(registry.Config{URL: ts.URL})
	_, err := c.ListVersions(context.Background(), "codegen")
	if !nperrors.Is(err, nperrors.ErrCodeNotFound) {
		t.Errorf("empty list error = %v, want NOT_FOUND", err)
	}
}

func TestLatest(t *testing.T) {
	reg := seed(t)
	c := registry.NewClient(registry.Config{URL: reg.URL})

	tests := []struct {
		rng  string
		want string
	}{
		{"", "0.33.0"},
		{"*", "0.33.0"},
		{"~0.32.0", "0.32.0"},
		{"^0.33.0", "0.33.0"},
	}
	for _, tt := range tests {
		got, err := c.Latest(context.Background(), "codegen", tt.rng)
		if err != nil {
			t.Fatalf("Latest(%q): %v", tt.rng, err)
		}
		if got.Version != tt.want || got.ID != "codegen" {
			t.Errorf("Latest(%q) = %+v, want %s", tt.rng, got, tt.want)
		}
	}

	_, err := c.Latest(context.Background(), "codegen", "^1.0.0")
	if !nperrors.Is(err, nperrors.ErrCodeNotFound) {
		t.Errorf("unsatisfiable range error = %v, want NOT_FOUND", err)
	}
}

func TestLatestRejectsNonMatchingAnswer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"codegen","version":"9.0.0"}`))
	}))
	defer ts.Close()

	c := registry.NewClient(registry.Config{URL: ts.URL})
	_, err := c.Latest(context.Background(), "codegen", "^1.0.0")
	if !nperrors.Is(err, nperrors.ErrCodeRegistry) {
		t.Errorf("error = %v, want REGISTRY_ERROR", err)
	}
}

func TestFetchManifest(t *testing.T) {
	reg := seed(t)
	c := registry.NewClient(registry.Config{URL: reg.URL})

	m, err := c.FetchManifest(context.Background(), "beatsaber-hook", "3.8.4")
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if link, _ := m.SoLink(); link != "https://example.com/libbs.so" {
		t.Errorf("SoLink() = %q", link)
	}

	_, err = c.FetchManifest(context.Background(), "beatsaber-hook", "9.9.9")
	if !nperrors.Is(err, nperrors.ErrCodeNotFound) {
		t.Errorf("missing version error = %v, want NOT_FOUND", err)
	}
}

func TestFetchManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{")) }},
		{"missing id", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"version":"1.0.0"}`)) }},
		{"timeout", func(w http.ResponseWriter, r *http.Request) { time.Sleep(300 * time.Millisecond) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			c := registry.NewClient(registry.Config{URL: ts.URL, Timeout: 50 * time.Millisecond})
			_, err := c.FetchManifest(context.Background(), "codegen", "1.0.0")
			if !nperrors.Is(err, nperrors.ErrCodeRegistry) {
				t.Errorf("error = %v, want REGISTRY_ERROR", err)
			}
		})
	}
}

func TestFetchManifestIsCached(t *testing.T) {
	reg := seed(t)
	fc, _ := cache.NewFileCache(t.TempDir())
	c := registry.NewClient(registry.Config{URL: reg.URL, Cache: fc})

	for i := 0; i < 3; i++ {
		if _, err := c.FetchManifest(context.Background(), "codegen", "0.33.0"); err != nil {
			t.Fatalf("FetchManifest: %v", err)
		}
	}
	if n := reg.Count("GET /codegen/0.33.0"); n != 1 {
		t.Errorf("manifest fetched %d times, want 1", n)
	}
}

func TestListVersionsCacheAndRefresh(t *testing.T) {
	reg := seed(t)
	fc, _ := cache.NewFileCache(t.TempDir())
	c := registry.NewClient(registry.Config{URL: reg.URL, Cache: fc, CacheTTL: time.Hour})

	c.ListVersions(context.Background(), "codegen")
	c.ListVersions(context.Background(), "codegen")
	if n := reg.Count("GET /codegen/"); n != 1 {
		t.Errorf("listing fetched %d times, want 1", n)
	}

	reg.Add(t, &manifest.Manifest{ID: "codegen", Version: "0.34.0"})
	got, _ := c.WithRefresh().ListVersions(context.Background(), "codegen")
	if len(got) != 3 || got[0].Version != "0.34.0" {
		t.Errorf("refreshed listing = %+v", got)
	}
}

func TestPublish(t *testing.T) {
	reg := registrytest.New(t)
	c := registry.NewClient(registry.Config{URL: reg.URL, Token: registrytest.Token})

	m := &manifest.Manifest{ID: "paper", Version: "1.2.0", Name: "Paper"}
	if err := c.Publish(context.Background(), m); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got, err := reg.Store.Get(context.Background(), "paper", "1.2.0")
	if err != nil || got.Name != "Paper" {
		t.Errorf("stored = %+v, %v", got, err)
	}
}

func TestPublishHeaders(t *testing.T) {
	var auth, reqID, method string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		reqID = r.Header.Get(registry.RequestIDHeader)
		method = r.Method
	}))
	defer ts.Close()

	c := registry.NewClient(registry.Config{URL: ts.URL, Token: "abc"})
	if err := c.Publish(context.Background(), &manifest.Manifest{ID: "paper", Version: "1.0.0"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if method != http.MethodPut || auth != "Bearer abc" {
		t.Errorf("method = %s, auth = %q", method, auth)
	}
	if len(reqID) != 36 {
		t.Errorf("request id = %q, want a uuid", reqID)
	}
}

func TestPublishRejected(t *testing.T) {
	reg := registrytest.New(t)
	c := registry.NewClient(registry.Config{URL: reg.URL, Token: "wrong"})

	err := c.Publish(context.Background(), &manifest.Manifest{ID: "paper", Version: "1.0.0"})
	if !nperrors.Is(err, nperrors.ErrCodeRegistry) {
		t.Errorf("error = %v, want REGISTRY_ERROR", err)
	}
}

func TestDownload(t *testing.T) {
	reg := registrytest.New(t)
	url := reg.AddFile("libpaper.so", []byte("\x7fELF-paper"))
	c := registry.NewClient(registry.Config{URL: reg.URL})

	var buf bytes.Buffer
	if _, err := c.Download(context.Background(), url, &buf); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if buf.String() != "\x7fELF-paper" {
		t.Errorf("downloaded %q", buf.String())
	}

	_, err := c.Download(context.Background(), reg.URL+"/_files/missing.so", &buf)
	if !nperrors.Is(err, nperrors.ErrCodeNotFound) {
		t.Errorf("missing file error = %v, want NOT_FOUND", err)
	}
}
