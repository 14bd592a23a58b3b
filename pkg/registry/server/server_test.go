package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/registry"
	"github.com/matzehuels/nativepkg/pkg/registry/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, v := range []string{"1.0.0", "1.4.2", "2.0.0", "2.1.0-beta.1"} {
		st.Put(context.Background(), &manifest.Manifest{ID: "codegen", Version: v})
	}
	ts := httptest.NewServer(New(st, Options{Token: "secret"}))
	t.Cleanup(ts.Close)
	return ts, st
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestList(t *testing.T) {
	ts, _ := newTestServer(t)

	var out []registry.Summary
	if code := getJSON(t, ts.URL+"/codegen/?req=*&limit=10", &out); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	var got []string
	for _, s := range out {
		got = append(got, s.Version)
	}
	if strings.Join(got, ",") != "2.1.0-beta.1,2.0.0,1.4.2,1.0.0" {
		t.Errorf("versions = %v", got)
	}

	if code := getJSON(t, ts.URL+"/codegen/?req=*&limit=2", &out); code != http.StatusOK || len(out) != 2 {
		t.Errorf("limit=2 returned %d entries (status %d)", len(out), code)
	}
	if code := getJSON(t, ts.URL+"/unknown/?req=*", nil); code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", code)
	}
	if code := getJSON(t, ts.URL+"/codegen/?limit=abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", code)
	}
}

func TestLatest(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		req  string
		want string
		code int
	}{
		{"*", "2.1.0-beta.1", http.StatusOK},
		{"", "2.1.0-beta.1", http.StatusOK},
		{"~2.0.0", "2.0.0", http.StatusOK},
		{"^1.0.0", "1.4.2", http.StatusOK},
		{"~1.0.0", "1.0.0", http.StatusOK},
		{"^3.0.0", "", http.StatusNotFound},
		{"^", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			var s registry.Summary
			code := getJSON(t, ts.URL+"/codegen?req="+urlQuery(tt.req), &s)
			if code != tt.code {
				t.Fatalf("status = %d, want %d", code, tt.code)
			}
			if s.Version != tt.want {
				t.Errorf("version = %q, want %q", s.Version, tt.want)
			}
		})
	}
}

func TestGetManifest(t *testing.T) {
	ts, _ := newTestServer(t)

	var m manifest.Manifest
	if code := getJSON(t, ts.URL+"/CodeGen/1.4.2", &m); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if m.ID != "codegen" || m.Version != "1.4.2" {
		t.Errorf("manifest = %+v", m)
	}
	if code := getJSON(t, ts.URL+"/codegen/9.9.9", nil); code != http.StatusNotFound {
		t.Errorf("missing version status = %d, want 404", code)
	}
}

func TestPublish(t *testing.T) {
	ts, st := newTestServer(t)

	put := func(path, token string, body any) int {
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPut, ts.URL+path, bytes.NewReader(data))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	m := manifest.Manifest{ID: "paper", Version: "1.0.0"}
	if code := put("/paper/1.0.0", "", m); code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", code)
	}
	if code := put("/paper/1.0.0", "wrong", m); code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", code)
	}
	if code := put("/paper/1.0.1", "secret", m); code != http.StatusBadRequest {
		t.Errorf("path mismatch status = %d, want 400", code)
	}
	bad := manifest.Manifest{ID: "paper", Version: "1.0.0", Dependencies: []manifest.DependencySpec{{ID: "a"}, {ID: "a"}}}
	if code := put("/paper/1.0.0", "secret", bad); code != http.StatusUnprocessableEntity {
		t.Errorf("invalid manifest status = %d, want 422", code)
	}

	if code := put("/paper/1.0.0", "secret", m); code != http.StatusCreated {
		t.Errorf("publish status = %d, want 201", code)
	}
	if code := put("/paper/1.0.0", "secret", m); code != http.StatusOK {
		t.Errorf("republish status = %d, want 200", code)
	}
	if _, err := st.Get(context.Background(), "paper", "1.0.0"); err != nil {
		t.Errorf("published manifest not stored: %v", err)
	}
}

func TestPublishDisabledWithoutToken(t *testing.T) {
	ts := httptest.NewServer(New(store.NewMemoryStore(), Options{}))
	defer ts.Close()

	data, _ := json.Marshal(manifest.Manifest{ID: "paper", Version: "1.0.0"})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/paper/1.0.0", bytes.NewReader(data))
	req.Header.Set("Authorization", "Bearer ")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func urlQuery(s string) string {
	r := strings.NewReplacer("^", "%5E", "~", "%7E", "*", "%2A", " ", "+")
	return r.Replace(s)
}
