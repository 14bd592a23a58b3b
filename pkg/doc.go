// Package pkg provides the libraries behind the nativepkg package manager.
//
// # Overview
//
// nativepkg manages the dependencies of native (ndk-build) projects. A project
// declares its identity and dependencies in nativepkg.toml; nativepkg binds
// every dependency to a published version, places the prebuilt binaries and
// keeps the project's derived files in step. The pkg directory is organized
// into these areas:
//
//  1. [manifest], [version] - Data model (manifest, lock file, semver ranges)
//  2. [registry] - Registry client, plus a chi server and stores for mirrors
//  3. [deps] - Dependency resolution and removal
//  4. [events], [artifact], [syncer] - Lifecycle events and their handlers
//  5. [buildfile], [ideconfig], [modinfo] - Derived-file codecs
//  6. [cache], [integrations], [fsutil] - Infrastructure
//
// # Architecture
//
// The typical data flow of "nativepkg restore":
//
//	nativepkg.toml (+ nativepkg.lock)
//	         ↓
//	    [deps] Resolver (registry lookups for unlocked ids only)
//	         ↓
//	    "dependency resolved" events
//	         ↓
//	    [artifact] Placer → extern/libs/*.so
//	    [syncer] Synchronizer → Android.mk, mod.json, c_cpp_properties.json
//	         ↓
//	    nativepkg.lock
//
// The lock file is written only after every handler succeeded, so a failed
// run leaves the previous lock in place.
//
// # Quick Start
//
//	client := registry.NewClient(registry.Config{URL: registry.DefaultURL})
//	p := project.New(".")
//	own, _ := p.LoadManifest()
//
//	d := events.NewDispatcher(
//	    artifact.NewPlacer(p, client, artifact.Options{}),
//	    syncer.New(p, logger),
//	)
//	res, err := deps.NewResolver(client, d, logger).Resolve(ctx, own, p.LockPath())
package pkg
