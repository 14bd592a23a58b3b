// Package registry is the client for a nativepkg package registry.
//
// Wire protocol (JSON bodies):
//
//	GET  /{id}/?req=*&limit={n}   list of {id, version}
//	GET  /{id}?req={range}        newest {id, version} matching range
//	GET  /{id}/{version}          full manifest
//	PUT  /{id}/{version}          publish a manifest (bearer token)
//
// Every call is a single attempt. A 404 maps to NOT_FOUND; any other
// failure, including transport errors, timeouts and malformed payloads, maps
// to REGISTRY_ERROR.
package registry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/nativepkg/pkg/buildinfo"
	"github.com/matzehuels/nativepkg/pkg/cache"
	nperrors "github.com/matzehuels/nativepkg/pkg/errors"
	"github.com/matzehuels/nativepkg/pkg/integrations"
	"github.com/matzehuels/nativepkg/pkg/manifest"
	"github.com/matzehuels/nativepkg/pkg/version"
)

// DefaultURL is the public registry.
const DefaultURL = "https://qpackages.com"

// DefaultListLimit caps version listings.
const DefaultListLimit = 1000

// RequestIDHeader carries a per-publish request id.
const RequestIDHeader = "X-Request-ID"

// Summary identifies one published version.
type Summary struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// Config configures a [Client].
type Config struct {
	URL       string        // registry base URL (default [DefaultURL])
	Token     string        // bearer token for Publish
	Timeout   time.Duration // per-request timeout (default 30s)
	Cache     cache.Cache   // response cache (default none)
	CacheTTL  time.Duration // expiry for version listings (0 disables); manifests never expire
	ListLimit int           // limit parameter for listings (default [DefaultListLimit])
}

// Client talks to one registry.
type Client struct {
	http    *integrations.Client
	base    string
	token   string
	keyer   cache.Keyer
	limit   int
	listTTL time.Duration
	refresh bool
}

// NewClient creates a registry client.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = DefaultURL
	}
	limit := cfg.ListLimit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	scope := base
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		scope = u.Host
	}

	h := integrations.NewClient(cfg.Cache, "registry:", cfg.CacheTTL, map[string]string{
		"Accept":     "application/json",
		"User-Agent": buildinfo.UserAgent(),
	})
	h.SetTimeout(cfg.Timeout)

	return &Client{
		http:    h,
		base:    base,
		token:   cfg.Token,
		keyer:   cache.NewScopedKeyer(cache.NewDefaultKeyer(), scope+":"),
		limit:   limit,
		listTTL: cfg.CacheTTL,
	}
}

// URL returns the registry base URL.
func (c *Client) URL() string { return c.base }

// WithRefresh returns a client that bypasses cached version listings.
// Manifests are still served from cache because published versions are
// immutable.
func (c *Client) WithRefresh() *Client {
	cp := *c
	cp.refresh = true
	return &cp
}

// SetHTTPClient replaces the transport (used by tests).
func (c *Client) SetHTTPClient(h *http.Client) { c.http.SetHTTPClient(h) }

// ListVersions returns every published version of id, in registry order.
func (c *Client) ListVersions(ctx context.Context, id string) ([]Summary, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	var out []Summary
	endpoint := integrations.JoinURL(c.base, id, "") + "?req=*&limit=" + strconv.Itoa(c.limit)
	fetch := func() error {
		out = nil
		return c.http.Get(ctx, endpoint, &out)
	}
	var err error
	if c.listTTL > 0 {
		err = c.http.Cached(ctx, c.keyer.VersionsKey(id), c.refresh, &out, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, mapError(err, "list versions of %s", id)
	}
	if len(out) == 0 {
		return nil, nperrors.New(nperrors.ErrCodeNotFound, "package %s has no published versions", id)
	}
	for _, s := range out {
		if !version.IsValid(s.Version) {
			return nil, nperrors.New(nperrors.ErrCodeRegistry, "list versions of %s: invalid version %q in response", id, s.Version)
		}
	}
	return out, nil
}

// Latest returns the newest published version of id matching rangeExpr.
// An empty range matches any version.
func (c *Client) Latest(ctx context.Context, id, rangeExpr string) (Summary, error) {
	if err := checkID(id); err != nil {
		return Summary{}, err
	}
	if strings.TrimSpace(rangeExpr) == "" {
		rangeExpr = version.Any
	}
	r, err := version.ParseRange(rangeExpr)
	if err != nil {
		return Summary{}, nperrors.Wrap(nperrors.ErrCodeInvalidInput, err, "latest %s", id)
	}

	var out Summary
	endpoint := integrations.JoinURL(c.base, id) + "?req=" + integrations.URLEncode(rangeExpr)
	if err := c.http.Get(ctx, endpoint, &out); err != nil {
		return Summary{}, mapError(err, "no published version of %s matches %s", id, rangeExpr)
	}

	v, err := version.Parse(out.Version)
	if err != nil {
		return Summary{}, nperrors.Wrap(nperrors.ErrCodeRegistry, err, "latest %s", id)
	}
	if !r.Match(v) {
		return Summary{}, nperrors.New(nperrors.ErrCodeRegistry,
			"registry returned %s@%s which does not satisfy %s", id, out.Version, rangeExpr)
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// FetchManifest returns the published manifest of id@ver.
func (c *Client) FetchManifest(ctx context.Context, id, ver string) (*manifest.Manifest, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if !version.IsValid(ver) {
		return nil, nperrors.New(nperrors.ErrCodeInvalidInput, "invalid version %q", ver)
	}

	var m manifest.Manifest
	endpoint := integrations.JoinURL(c.base, id, ver)
	err := c.http.CachedTTL(ctx, c.keyer.ManifestKey(id, ver), 0, false, &m, func() error {
		m = manifest.Manifest{}
		return c.http.Get(ctx, endpoint, &m)
	})
	if err != nil {
		return nil, mapError(err, "fetch %s@%s", id, ver)
	}
	if m.ID == "" || m.Version == "" {
		return nil, nperrors.New(nperrors.ErrCodeRegistry, "fetch %s@%s: manifest is missing id or version", id, ver)
	}
	if err := m.NormalizeExtensions(); err != nil {
		return nil, nperrors.Wrap(nperrors.ErrCodeRegistry, err, "fetch %s@%s", id, ver)
	}
	return &m, nil
}

// Publish uploads m under (m.ID, m.Version). The manifest is not validated
// client-side; rejecting bad manifests is the registry's job.
func (c *Client) Publish(ctx context.Context, m *manifest.Manifest) error {
	headers := map[string]string{RequestIDHeader: uuid.NewString()}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	endpoint := integrations.JoinURL(c.base, m.ID, m.Version)
	if err := c.http.Send(ctx, http.MethodPut, endpoint, headers, m); err != nil {
		return nperrors.Wrap(nperrors.ErrCodeRegistry, err, "publish %s@%s", m.ID, m.Version)
	}
	return nil
}

// Download streams the file at rawURL into w.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	if err := nperrors.ValidateURL(rawURL); err != nil {
		return 0, err
	}
	n, err := c.http.Stream(ctx, rawURL, w)
	if err != nil {
		return n, mapError(err, "download %s", rawURL)
	}
	return n, nil
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return nperrors.New(nperrors.ErrCodeInvalidInput, "package id cannot be empty")
	}
	return nil
}

func mapError(err error, format string, args ...any) error {
	if errors.Is(err, integrations.ErrNotFound) {
		return nperrors.Wrap(nperrors.ErrCodeNotFound, err, format, args...)
	}
	return nperrors.Wrap(nperrors.ErrCodeRegistry, err, format, args...)
}
