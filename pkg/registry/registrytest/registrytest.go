// Package registrytest runs an in-process registry for tests.
//
// The registry serves the real wire protocol from [server.Server] over a
// [store.MemoryStore], hosts binary artifacts under /_files/, and records
// every request so tests can assert on network traffic.
package registrytest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/registry/server"
	"github.com/matzehuels/nativepkg/pkg/registry/store"
)

// Token is the publish token accepted by the test registry.
const Token = "test-token"

// Registry is a running test registry.
type Registry struct {
	*httptest.Server
	Store *store.MemoryStore

	mu       sync.Mutex
	requests []string
	files    map[string][]byte
}

// New starts a registry that is closed when the test ends.
func New(t testing.TB) *Registry {
	t.Helper()
	r := &Registry{
		Store: store.NewMemoryStore(),
		files: make(map[string][]byte),
	}
	srv := server.New(r.Store, server.Options{Token: Token})

	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.record(req)
		if name, ok := strings.CutPrefix(req.URL.Path, "/_files/"); ok {
			r.serveFile(w, name)
			return
		}
		srv.ServeHTTP(w, req)
	}))
	t.Cleanup(r.Close)
	return r
}

// Add publishes manifests directly into the store, bypassing HTTP.
func (r *Registry) Add(t testing.TB, ms ...*manifest.Manifest) {
	t.Helper()
	for _, m := range ms {
		if _, err := r.Store.Put(context.Background(), m); err != nil {
			t.Fatalf("registrytest: add %s@%s: %v", m.ID, m.Version, err)
		}
	}
}

// AddFile hosts data under name and returns its download URL.
func (r *Registry) AddFile(name string, data []byte) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[name] = data
	return r.URL + "/_files/" + name
}

// Requests returns the recorded requests as "METHOD /path".
func (r *Registry) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

// Count returns how many recorded requests start with prefix,
// e.g. "GET /codegen/" or "GET /_files/".
func (r *Registry) Count(prefix string) int {
	n := 0
	for _, req := range r.Requests() {
		if strings.HasPrefix(req, prefix) {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (r *Registry) ResetRequests() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

func (r *Registry) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req.Method+" "+req.URL.Path)
}

func (r *Registry) serveFile(w http.ResponseWriter, name string) {
	r.mu.Lock()
	data, ok := r.files[name]
	r.mu.Unlock()
	if !ok {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
