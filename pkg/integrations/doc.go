// Package integrations provides the shared HTTP layer for registry clients.
//
// # Client Pattern
//
// Registry clients embed a [Client] and build typed calls on top of it:
//
//	c := integrations.NewClient(fileCache, "qpackages.com:", 24*time.Hour, nil)
//	var versions []Summary
//	err := c.Cached(ctx, key, false, &versions, func() error {
//	    return c.Get(ctx, integrations.JoinURL(base, id, ""), &versions)
//	})
//
// The client handles:
//   - default and per-request headers
//   - response caching via [cache.Cache]
//   - status mapping: 404 to [ErrNotFound], 401/403 to [ErrUnauthorized],
//     other failures to [ErrStatus] wrapped in a [StatusError]
//   - transport failures and timeouts as [ErrNetwork]
//   - HTTP and cache events via [observability] hooks
//
// Calls are single-attempt. Callers that need retries wrap the call themselves.
//
// [cache.Cache]: github.com/matzehuels/nativepkg/pkg/cache.Cache
// [observability]: github.com/matzehuels/nativepkg/pkg/observability
package integrations
