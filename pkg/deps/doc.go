// Package deps resolves a manifest's declared dependencies against the
// registry and maintains the lock file.
//
// # Resolving
//
// [Resolver.Resolve] walks the manifest's dependency list in declaration
// order and recurses into each dependency's own manifest:
//
//	r := deps.NewResolver(client, dispatcher, logger)
//	res, err := r.Resolve(ctx, own, proj.LockPath())
//
// A dependency already in the lock file at a version that satisfies its range
// is not looked up again; a fully locked manifest resolves without touching
// the network. Every id is recorded before its own dependencies are walked, so
// diamonds resolve once and cycles terminate.
//
// # Conflicts
//
// When an id already bound in this pass is requested with a range its version
// does not satisfy, the resolver lists the published versions and pins the
// highest one satisfying every range seen so far, then walks again. When no
// such version exists resolution fails with
// [errors.DependencyConflictError]. There is no backtracking beyond that.
//
// # Committing
//
// Resolution is all-or-nothing. Events ("dependency removed" for pruned
// entries, then "dependency resolved" for every bound dependency) are
// dispatched and the lock file written only after the walk succeeds.
//
// [Remover.Remove] drops a locked dependency, plus any locked entries only it
// kept reachable, and raises "dependency removed" for each.
package deps
